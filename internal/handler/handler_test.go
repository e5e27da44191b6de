package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"booking-service/internal/config"
	"booking-service/internal/encryption"
	"booking-service/internal/events"
	"booking-service/internal/gateway"
	"booking-service/internal/hashing"
	"booking-service/internal/models"
	"booking-service/internal/repository/memory"
	"booking-service/internal/service"
	"booking-service/internal/token"
)

const razorpaySecret = "rzp_handler_secret"

// codeCatcher keeps the last OTP handed to the notification stream.
type codeCatcher struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *codeCatcher) Publish(ctx context.Context, stream events.Stream, key, eventType string, data interface{}) {
	if n, ok := data.(events.OTPNotification); ok {
		c.mu.Lock()
		c.codes[n.Mobile] = n.Code
		c.mu.Unlock()
	}
}

func (c *codeCatcher) Close() error { return nil }

func (c *codeCatcher) code(mobile string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[mobile]
}

type stubGateway struct{ n int }

func (g *stubGateway) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	g.n++
	return &gateway.Order{ID: fmt.Sprintf("order_h%d", g.n), AmountMinor: req.AmountMinor, Currency: req.Currency, Receipt: req.Receipt}, nil
}

func (g *stubGateway) Refund(ctx context.Context, paymentID string, amountMinor int64) (*gateway.Refund, error) {
	return &gateway.Refund{ID: "rfnd_h1", PaymentID: paymentID, AmountMinor: amountMinor, Status: "processed"}, nil
}

type staticHealth map[string]error

func (h staticHealth) HealthCheck(ctx context.Context) map[string]error { return h }

type testServer struct {
	router     http.Handler
	store      *memory.Store
	codes      *codeCatcher
	center     *models.Center
	consultant *models.Consultant
}

func newTestServer(t *testing.T, health HealthChecker) *testServer {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
		Hashing: config.HashingConfig{
			Argon2MemoryCost:  64,
			Argon2TimeCost:    1,
			Argon2Parallelism: 1,
			Peppers:           []string{"1:handler-pepper"},
		},
		OTP:      config.OTPConfig{TTL: 5 * time.Minute, MaxAttempts: 5},
		JWT:      config.JWTConfig{Secret: "handler-jwt-secret", ExpiresIn: time.Hour, Issuer: "booking-service"},
		Razorpay: config.RazorpayConfig{KeyID: "rzp_test_key", KeySecret: razorpaySecret, Currency: "INR"},
		Booking:  config.BookingConfig{DefaultFee: 100},
	}
	hasher, err := hashing.NewHasher(cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	issuer, err := token.NewIssuer(cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	store := memory.NewStore()
	codes := &codeCatcher{codes: make(map[string]string)}
	logger := zap.NewNop()
	sf := service.NewServiceFactory(service.Dependencies{
		Store:     store,
		Ledger:    memory.NewLedger(),
		Hasher:    hasher,
		Encryptor: encryption.NewEncryptionManager(cfg, nil),
		Tokens:    issuer,
		Gateway:   &stubGateway{},
		Publisher: codes,
	}, cfg, logger)

	ctx := context.Background()
	center := &models.Center{Name: "Koramangala", City: "Bengaluru", IsActive: true}
	if err := store.Directory().SaveCenter(ctx, center); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	consultant := &models.Consultant{Name: "Dr. Iyer", Specialty: "Neuro rehab", CenterID: center.ID, IsActive: true}
	if err := store.Directory().SaveConsultant(ctx, consultant); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	router := NewRouter(Handlers{
		Auth:          NewAuthHandler(sf.AuthService(), sf.ProfileService(), logger),
		Directory:     NewDirectoryHandler(sf.DirectoryService(), sf.BookingService(), logger),
		Appointments:  NewAppointmentHandler(sf.BookingService(), logger),
		Payments:      NewPaymentHandler(sf.PaymentService(), sf.PaymentMethodService(), logger),
		Goals:         NewGoalHandler(sf.GoalService(), logger),
		Authenticator: sf.AuthService(),
	}, health, cfg, logger)

	return &testServer{router: router, store: store, codes: codes, center: center, consultant: consultant}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (ts *testServer) do(t *testing.T, method, path, bearer string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("Expected JSON body, got %q", rec.Body.String())
		}
	}
	return rec.Code, env
}

// signIn registers a new patient through the OTP flow and returns the token.
func (ts *testServer) signIn(t *testing.T, mobile string) string {
	t.Helper()
	if status, env := ts.do(t, http.MethodPost, "/api/v1/auth/otp", "", map[string]string{"mobile": mobile}); status != http.StatusOK {
		t.Fatalf("Expected 200 from otp, got %d: %+v", status, env)
	}
	code := ts.codes.code(mobile)
	if len(code) != 6 {
		t.Fatalf("Expected a 6 digit code, got %q", code)
	}
	status, env := ts.do(t, http.MethodPost, "/api/v1/auth/verify", "", map[string]interface{}{
		"mobile": mobile,
		"otp":    code,
		"userDetails": map[string]string{
			"name":  "Asha Menon",
			"email": "asha." + mobile[len(mobile)-4:] + "@example.com",
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("Expected 201 for a new user, got %d: %+v", status, env)
	}
	var res struct {
		Token     string `json:"token"`
		IsNewUser bool   `json:"isNewUser"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil || res.Token == "" || !res.IsNewUser {
		t.Fatalf("Unexpected auth result %s: %v", env.Data, err)
	}
	return res.Token
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, staticHealth{})
	if status, _ := ts.do(t, http.MethodGet, "/health", "", nil); status != http.StatusOK {
		t.Errorf("Expected 200, got %d", status)
	}
	if status, _ := ts.do(t, http.MethodGet, "/health/ready", "", nil); status != http.StatusOK {
		t.Errorf("Expected ready, got %d", status)
	}

	failing := newTestServer(t, staticHealth{"mongo": errors.New("ping timeout")})
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	failing.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ping timeout") {
		t.Errorf("Expected failing dependency in body, got %s", rec.Body.String())
	}
}

func TestProtectedRoutesNeedBearer(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		bearer string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := ts.do(t, http.MethodGet, "/api/v1/appointments", tt.bearer, nil)
			if status != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", status)
			}
			if env.Success || env.Code != "UNAUTHENTICATED" {
				t.Errorf("Expected UNAUTHENTICATED envelope, got %+v", env)
			}
		})
	}
}

func TestSignInAndProfile(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	tok := ts.signIn(t, "9876543210")

	status, env := ts.do(t, http.MethodGet, "/api/v1/me", tok, nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %+v", status, env)
	}
	var me struct {
		Name   string `json:"name"`
		Mobile string `json:"mobile"`
	}
	_ = json.Unmarshal(env.Data, &me)
	if me.Name != "Asha Menon" {
		t.Errorf("Expected profile name, got %+v", me)
	}

	status, env = ts.do(t, http.MethodPatch, "/api/v1/me", tok, map[string]string{"bloodGroup": "B_NEGATIVE"})
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %+v", status, env)
	}

	status, env = ts.do(t, http.MethodPost, "/api/v1/auth/refresh", tok, nil)
	if status != http.StatusOK {
		t.Errorf("Expected refresh 200, got %d: %+v", status, env)
	}
}

func TestVerifyWrongCode(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodPost, "/api/v1/auth/otp", "", map[string]string{"mobile": "9876543211"})

	wrong := "000000"
	if ts.codes.code("9876543211") == wrong {
		wrong = "111111"
	}
	status, env := ts.do(t, http.MethodPost, "/api/v1/auth/verify", "", map[string]string{"mobile": "9876543211", "otp": wrong})
	if status != http.StatusUnauthorized || env.Code != "INVALID_OTP" {
		t.Errorf("Expected 401 INVALID_OTP, got %d %+v", status, env)
	}
}

func TestBadBodies(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	tests := []struct {
		name string
		body interface{}
	}{
		{"malformed json", "{"},
		{"bad mobile", map[string]string{"mobile": "12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := ts.do(t, http.MethodPost, "/api/v1/auth/otp", "", tt.body)
			if status != http.StatusBadRequest || env.Code != "INVALID_INPUT" {
				t.Errorf("Expected 400 INVALID_INPUT, got %d %+v", status, env)
			}
		})
	}
}

func TestBookingOverHTTP(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	first := ts.signIn(t, "9876543212")
	second := ts.signIn(t, "9876543213")

	booking := map[string]interface{}{
		"consultantId": ts.consultant.ID.Hex(),
		"centerId":     ts.center.ID.Hex(),
		"date":         "2030-03-14",
		"time":         "10:30",
		"type":         "IN_PERSON",
	}
	status, env := ts.do(t, http.MethodPost, "/api/v1/appointments", first, booking)
	if status != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %+v", status, env)
	}
	var appt struct {
		ID         string  `json:"id"`
		Status     string  `json:"status"`
		BookingFee float64 `json:"bookingFee"`
	}
	_ = json.Unmarshal(env.Data, &appt)
	if appt.Status != "BOOKED" || appt.BookingFee != 100 {
		t.Errorf("Unexpected appointment %s", env.Data)
	}

	status, env = ts.do(t, http.MethodPost, "/api/v1/appointments", second, booking)
	if status != http.StatusConflict || env.Code != "CONFLICT" {
		t.Errorf("Expected 409 for a taken slot, got %d %+v", status, env)
	}

	path := fmt.Sprintf("/api/v1/availability?consultantId=%s&date=2030-03-14&time=10:30", ts.consultant.ID.Hex())
	_, env = ts.do(t, http.MethodGet, path, "", nil)
	if string(env.Data) != `{"available":false}` {
		t.Errorf("Expected slot taken, got %s", env.Data)
	}

	if status, _ := ts.do(t, http.MethodGet, "/api/v1/appointments/"+appt.ID, second, nil); status != http.StatusNotFound {
		t.Errorf("Expected another patient's appointment to be hidden, got %d", status)
	}

	status, env = ts.do(t, http.MethodPost, "/api/v1/appointments/"+appt.ID+"/cancel", first, nil)
	if status != http.StatusOK {
		t.Fatalf("Expected cancel 200, got %d: %+v", status, env)
	}
	if status, env := ts.do(t, http.MethodPost, "/api/v1/appointments", second, booking); status != http.StatusCreated {
		t.Errorf("Expected freed slot to be bookable, got %d %+v", status, env)
	}
}

func TestPaymentOverHTTP(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	tok := ts.signIn(t, "9876543214")

	status, env := ts.do(t, http.MethodPost, "/api/v1/payments/orders", tok, map[string]interface{}{"amount": 500})
	if status != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %+v", status, env)
	}
	var order service.OrderResult
	if err := json.Unmarshal(env.Data, &order); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if order.Amount != 50000 || order.KeyID != "rzp_test_key" {
		t.Errorf("Unexpected order %+v", order)
	}

	verify := map[string]string{
		"razorpayOrderId":   order.OrderID,
		"razorpayPaymentId": "pay_h1",
		"razorpaySignature": strings.Repeat("0", 64),
		"method":            "UPI",
	}
	status, env = ts.do(t, http.MethodPost, "/api/v1/payments/verify", tok, verify)
	if status != http.StatusUnauthorized || env.Code != "INVALID_SIGNATURE" {
		t.Errorf("Expected 401 INVALID_SIGNATURE, got %d %+v", status, env)
	}

	verify["razorpaySignature"] = gateway.PaymentSignature(razorpaySecret, order.OrderID, "pay_h1")
	status, env = ts.do(t, http.MethodPost, "/api/v1/payments/verify", tok, verify)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %+v", status, env)
	}

	status, env = ts.do(t, http.MethodPost, "/api/v1/payments/"+order.PaymentID+"/refund", tok, nil)
	if status != http.StatusOK {
		t.Fatalf("Expected refund 200, got %d: %+v", status, env)
	}
	status, env = ts.do(t, http.MethodPost, "/api/v1/payments/"+order.PaymentID+"/refund", tok, nil)
	if status != http.StatusUnprocessableEntity || env.Code != "INVALID_STATUS" {
		t.Errorf("Expected second refund to be rejected, got %d %+v", status, env)
	}

	_, env = ts.do(t, http.MethodGet, "/api/v1/payments/"+order.PaymentID+"/ledger", tok, nil)
	var entries []json.RawMessage
	_ = json.Unmarshal(env.Data, &entries)
	if len(entries) != 3 {
		t.Errorf("Expected 3 ledger entries, got %d", len(entries))
	}
}

func TestPaymentMethodsOverHTTP(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	tok := ts.signIn(t, "9876543215")

	status, env := ts.do(t, http.MethodPost, "/api/v1/payment-methods", tok, map[string]interface{}{
		"type": "CARD", "last4": "4242", "cardBrand": "VISA", "isDefault": true,
	})
	if status != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %+v", status, env)
	}
	var m struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(env.Data, &m)

	status, env = ts.do(t, http.MethodDelete, "/api/v1/payment-methods/"+m.ID, tok, nil)
	if status != http.StatusOK || string(env.Data) != `{"deleted":true}` {
		t.Errorf("Expected deletion, got %d %s", status, env.Data)
	}
}

func TestGoalsOverHTTP(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	tok := ts.signIn(t, "9876543216")

	if status, _ := ts.do(t, http.MethodGet, "/api/v1/goals", "", nil); status != http.StatusUnauthorized {
		t.Errorf("Expected 401 without bearer, got %d", status)
	}

	status, env := ts.do(t, http.MethodPost, "/api/v1/goals", tok, map[string]interface{}{
		"name": "Touch toes", "duration": "4 weeks", "type": "flexibility", "priority": "LOW",
	})
	if status != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %+v", status, env)
	}
	var g struct {
		ID       string `json:"id"`
		Priority string `json:"priority"`
		Status   string `json:"status"`
		Progress int    `json:"progress"`
	}
	_ = json.Unmarshal(env.Data, &g)
	if g.Priority != "LOW" || g.Status != "ACTIVE" || g.Progress != 0 {
		t.Errorf("Expected wire enums and zero progress, got %+v", g)
	}

	status, env = ts.do(t, http.MethodPatch, "/api/v1/goals/"+g.ID, tok, map[string]interface{}{"progress": 150})
	if status != http.StatusBadRequest || env.Code != "INVALID_INPUT" {
		t.Errorf("Expected INVALID_INPUT for progress above 100, got %d %+v", status, env)
	}
	status, _ = ts.do(t, http.MethodPatch, "/api/v1/goals/"+g.ID, tok, map[string]interface{}{"progress": 30})
	if status != http.StatusOK {
		t.Errorf("Expected 200, got %d", status)
	}

	other := ts.signIn(t, "9876543217")
	if status, env := ts.do(t, http.MethodGet, "/api/v1/goals/"+g.ID, other, nil); status != http.StatusNotFound || env.Code != "NOT_FOUND" {
		t.Errorf("Expected NOT_FOUND for another patient, got %d %+v", status, env)
	}

	status, env = ts.do(t, http.MethodGet, "/api/v1/goals?status=ACTIVE", tok, nil)
	var list []json.RawMessage
	_ = json.Unmarshal(env.Data, &list)
	if status != http.StatusOK || len(list) != 1 {
		t.Errorf("Expected one active goal, got %d with %d", status, len(list))
	}

	status, env = ts.do(t, http.MethodDelete, "/api/v1/goals/"+g.ID, tok, nil)
	if status != http.StatusOK || string(env.Data) != `{"deleted":true}` {
		t.Errorf("Expected deletion, got %d %s", status, env.Data)
	}
	if status, _ := ts.do(t, http.MethodDelete, "/api/v1/goals/"+g.ID, tok, nil); status != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", status)
	}
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	if status, _ := ts.do(t, http.MethodGet, "/api/v2/nothing", "", nil); status != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", status)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrMissingPaymentID, http.StatusBadRequest},
		{service.ErrUserDetailsRequired, http.StatusBadRequest},
		{service.ErrInvalidSignature, http.StatusUnauthorized},
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrInvalidStatus, http.StatusUnprocessableEntity},
		{service.ErrRateLimited, http.StatusTooManyRequests},
		{service.ErrGatewayError, http.StatusBadGateway},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("Expected %d for %v, got %d", tt.want, tt.err, got)
		}
	}
}
