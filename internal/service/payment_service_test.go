package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"booking-service/internal/bucketing"
	"booking-service/internal/config"
	"booking-service/internal/events"
	"booking-service/internal/gateway"
	"booking-service/internal/models"
	"booking-service/internal/repository/memory"
)

type paymentFixture struct {
	store     *memory.Store
	ledger    *memory.Ledger
	gateway   *fakeGateway
	publisher *recordingPublisher
	recorder  *recordingRecorder
	payments  *PaymentService
}

func newPaymentFixture(t *testing.T, mutate func(cfg *config.Config)) *paymentFixture {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	f := &paymentFixture{
		store:     memory.NewStore(),
		ledger:    memory.NewLedger(),
		gateway:   &fakeGateway{},
		publisher: &recordingPublisher{},
		recorder:  &recordingRecorder{},
	}
	f.payments = NewPaymentService(f.store.Payments(), f.store.Appointments(), f.ledger, f.gateway,
		bucketing.NewStripedLocker(16), f.publisher, f.recorder, cfg, nopLogger())
	return f
}

func (f *paymentFixture) verifyRequest(orderID, paymentID string) *VerifyPaymentRequest {
	return &VerifyPaymentRequest{
		RazorpayOrderID:   orderID,
		RazorpayPaymentID: paymentID,
		RazorpaySignature: gateway.PaymentSignature(testSecret, orderID, paymentID),
		Method:            "UPI",
	}
}

func TestPaymentScenario(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t, nil)
	ctx := context.Background()
	patient := newPatient()

	order, err := f.payments.CreateOrder(ctx, patient, &CreateOrderRequest{Amount: 500})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if order.Amount != 50000 || f.gateway.orders[0].AmountMinor != 50000 {
		t.Errorf("Expected 50000 minor units, got %d and %d", order.Amount, f.gateway.orders[0].AmountMinor)
	}
	if order.Currency != "INR" || order.KeyID != "rzp_test_key" {
		t.Errorf("Unexpected order: %+v", order)
	}
	notes := f.gateway.orders[0].Notes
	if notes["patientId"] != patient.Hex() || notes["description"] != defaultPaymentDescription {
		t.Errorf("Unexpected notes: %v", notes)
	}

	pending, _ := f.payments.Get(ctx, patient, order.PaymentID)
	if pending.Status != models.PaymentPending || pending.Method != models.MethodCard {
		t.Errorf("Expected pending card payment, got %s %s", pending.Status, pending.Method)
	}

	completed, err := f.payments.Verify(ctx, patient, f.verifyRequest(order.OrderID, "pay_9A33XWu170gUtm"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if completed.Status != models.PaymentCompleted || completed.TransactionID != "pay_9A33XWu170gUtm" ||
		completed.GatewayPaymentID != "pay_9A33XWu170gUtm" || completed.Method != models.MethodUPI || completed.CompletedAt == nil {
		t.Errorf("Unexpected completed payment: %+v", completed)
	}

	refunded, err := f.payments.Refund(ctx, patient, order.PaymentID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if refunded.Status != models.PaymentRefunded || refunded.RefundID != "rfnd_1" || refunded.RefundedAt == nil {
		t.Errorf("Unexpected refunded payment: %+v", refunded)
	}
	if f.gateway.refunds[0] != 50000 {
		t.Errorf("Expected refund of 50000, got %d", f.gateway.refunds[0])
	}

	if _, err := f.payments.Refund(ctx, patient, order.PaymentID); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus on second refund, got %v", err)
	}
	if f.gateway.refundCount() != 1 {
		t.Errorf("Expected one gateway refund, got %d", f.gateway.refundCount())
	}

	entries, err := f.payments.Ledger(ctx, patient, order.PaymentID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	wantTo := []models.PaymentStatus{models.PaymentPending, models.PaymentCompleted, models.PaymentRefunded}
	if len(entries) != len(wantTo) {
		t.Fatalf("Expected %d ledger entries, got %d", len(wantTo), len(entries))
	}
	for i, e := range entries {
		if e.To != wantTo[i] {
			t.Errorf("Expected entry %d to be %s, got %s", i, wantTo[i], e.To)
		}
	}
	if entries[0].From != "" || entries[2].GatewayRef != "rfnd_1" {
		t.Errorf("Unexpected ledger entries: %+v %+v", entries[0], entries[2])
	}

	want := []string{events.TypePaymentCreated, events.TypePaymentCompleted, events.TypePaymentRefunded}
	got := f.publisher.types()
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("Expected events %v, got %v", want, got)
		}
	}
	if f.recorder.count(models.EventRefundIssued) != 1 {
		t.Error("Expected refund audit event")
	}
}

func TestVerifyRejectsEveryFlippedCharacter(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t, nil)
	ctx := context.Background()
	patient := newPatient()
	order, _ := f.payments.CreateOrder(ctx, patient, &CreateOrderRequest{Amount: 500})
	good := f.verifyRequest(order.OrderID, "pay_abc")

	for i := range good.RazorpaySignature {
		sig := []byte(good.RazorpaySignature)
		if sig[i] == '0' {
			sig[i] = '1'
		} else {
			sig[i] = '0'
		}
		req := *good
		req.RazorpaySignature = string(sig)
		if _, err := f.payments.Verify(ctx, patient, &req); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("Expected ErrInvalidSignature with char %d flipped, got %v", i, err)
		}
	}

	p, _ := f.payments.Get(ctx, patient, order.PaymentID)
	if p.Status != models.PaymentPending {
		t.Errorf("Expected payment to stay pending, got %s", p.Status)
	}
	if n := f.recorder.count(models.EventSignatureMismatch); n != len(good.RazorpaySignature) {
		t.Errorf("Expected %d mismatch audit events, got %d", len(good.RazorpaySignature), n)
	}
}

func TestVerifyDuplicateDelivery(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t, nil)
	ctx := context.Background()
	patient := newPatient()
	order, _ := f.payments.CreateOrder(ctx, patient, &CreateOrderRequest{Amount: 500})

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.payments.Verify(ctx, patient, f.verifyRequest(order.OrderID, "pay_abc"))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("Expected duplicate %d to be accepted, got %v", i, err)
		}
	}

	entries, _ := f.payments.Ledger(ctx, patient, order.PaymentID)
	if len(entries) != 2 {
		t.Errorf("Expected a single completion in the ledger, got %d entries", len(entries))
	}

	if _, err := f.payments.Verify(ctx, patient, f.verifyRequest(order.OrderID, "pay_other")); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus for a different payment id, got %v", err)
	}
}

func TestVerifyUnknownOrder(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t, nil)
	ctx := context.Background()
	owner := newPatient()
	order, _ := f.payments.CreateOrder(ctx, owner, &CreateOrderRequest{Amount: 500})

	if _, err := f.payments.Verify(ctx, newPatient(), f.verifyRequest(order.OrderID, "pay_abc")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for another patient, got %v", err)
	}
	req := f.verifyRequest(order.OrderID, "pay_abc")
	req.Method = "CASH"
	if _, err := f.payments.Verify(ctx, owner, req); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for unknown method, got %v", err)
	}
}

func TestRefundPendingIsInvalidStatus(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t, nil)
	ctx := context.Background()
	patient := newPatient()
	order, _ := f.payments.CreateOrder(ctx, patient, &CreateOrderRequest{Amount: 500})

	if _, err := f.payments.Refund(ctx, patient, order.PaymentID); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus, got %v", err)
	}
	if f.gateway.refundCount() != 0 {
		t.Error("Expected no gateway refund")
	}
}

func TestRefundGatewayFailureKeepsCompleted(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t, nil)
	f.gateway.RefundFunc = func(context.Context, string, int64) (*gateway.Refund, error) {
		return nil, errors.New("BAD_REQUEST_ERROR")
	}
	ctx := context.Background()
	patient := newPatient()
	order, _ := f.payments.CreateOrder(ctx, patient, &CreateOrderRequest{Amount: 500})
	_, _ = f.payments.Verify(ctx, patient, f.verifyRequest(order.OrderID, "pay_abc"))

	_, err := f.payments.Refund(ctx, patient, order.PaymentID)
	if !errors.Is(err, ErrRefundFailed) || !errors.Is(err, ErrGatewayError) || Code(err) != "RAZORPAY_REFUND_ERROR" {
		t.Errorf("Expected RAZORPAY_REFUND_ERROR, got %v (%s)", err, Code(err))
	}
	if err != nil && (err.Error() != ErrRefundFailed.Error() || strings.Contains(err.Error(), "BAD_REQUEST_ERROR")) {
		t.Errorf("Expected gateway detail to stay out of the error, got %q", err.Error())
	}
	p, _ := f.payments.Get(ctx, patient, order.PaymentID)
	if p.Status != models.PaymentCompleted {
		t.Errorf("Expected payment to stay completed, got %s", p.Status)
	}
}

func TestConcurrentRefundsRefundOnce(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t, nil)
	ctx := context.Background()
	patient := newPatient()
	order, _ := f.payments.CreateOrder(ctx, patient, &CreateOrderRequest{Amount: 500})
	_, _ = f.payments.Verify(ctx, patient, f.verifyRequest(order.OrderID, "pay_abc"))

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		oks int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.payments.Refund(ctx, patient, order.PaymentID)
			if err == nil {
				mu.Lock()
				oks++
				mu.Unlock()
			} else if !errors.Is(err, ErrInvalidStatus) {
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if oks != 1 || f.gateway.refundCount() != 1 {
		t.Errorf("Expected exactly one refund, got %d successes and %d gateway calls", oks, f.gateway.refundCount())
	}
}

func TestCreateOrderGatewayFailure(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t, nil)
	f.gateway.CreateOrderFunc = func(context.Context, gateway.OrderRequest) (*gateway.Order, error) {
		return nil, errors.New("authentication failed")
	}
	ctx := context.Background()
	patient := newPatient()

	_, err := f.payments.CreateOrder(ctx, patient, &CreateOrderRequest{Amount: 500})
	if !errors.Is(err, ErrOrderFailed) || Code(err) != "RAZORPAY_ORDER_ERROR" {
		t.Errorf("Expected RAZORPAY_ORDER_ERROR, got %v", err)
	}
	if err != nil && err.Error() != ErrOrderFailed.Error() {
		t.Errorf("Expected bare %q, got %q", ErrOrderFailed.Error(), err.Error())
	}
	if list, _ := f.payments.List(ctx, patient, ""); len(list) != 0 {
		t.Errorf("Expected no payment row, got %d", len(list))
	}
}

func TestCreateOrderValidation(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t, nil)
	ctx := context.Background()
	patient := newPatient()

	tests := []struct {
		name string
		req  CreateOrderRequest
		want error
	}{
		{"zero amount", CreateOrderRequest{Amount: 0}, ErrInvalidInput},
		{"below minimum", CreateOrderRequest{Amount: 0.5}, ErrInvalidInput},
		{"above maximum", CreateOrderRequest{Amount: 1000001}, ErrInvalidInput},
		{"long description", CreateOrderRequest{Amount: 10, Description: strings.Repeat("a", 501)}, ErrInvalidInput},
		{"malformed appointment", CreateOrderRequest{Amount: 10, AppointmentID: "nope"}, ErrInvalidInput},
		{"foreign appointment", CreateOrderRequest{Amount: 10, AppointmentID: primitive.NewObjectID().Hex()}, ErrNotFound},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.payments.CreateOrder(ctx, patient, &tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(f.gateway.orders) != 0 {
		t.Errorf("Expected no gateway call, got %d", len(f.gateway.orders))
	}
}

func TestCreateOrderForOwnAppointment(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t, nil)
	ctx := context.Background()
	patient := newPatient()
	center, consultant := seedDirectory(t, f.store)
	booking := NewBookingService(f.store.Appointments(), f.store.Directory(), nil, f.publisher, testConfig(), nopLogger())
	appt, err := booking.Create(ctx, patient, &CreateAppointmentRequest{
		ConsultantID: consultant.ID.Hex(), CenterID: center.ID.Hex(), Date: "2025-05-01", Time: "10:00", Type: "ONLINE",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	order, err := f.payments.CreateOrder(ctx, patient, &CreateOrderRequest{Amount: 100, AppointmentID: appt.ID.Hex(), Description: "<b>Session</b>"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	p, _ := f.payments.Get(ctx, patient, order.PaymentID)
	if p.AppointmentID == nil || *p.AppointmentID != appt.ID {
		t.Errorf("Expected payment linked to appointment, got %v", p.AppointmentID)
	}
	if strings.Contains(p.Description, "<") {
		t.Errorf("Expected description to be sanitized, got %q", p.Description)
	}
}

func TestReceiptsAreUniqueAndBounded(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t, nil)
	patient := newPatient()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		r := receiptFor(patient, f.payments.stamp())
		if len(r) > maxReceiptLen {
			t.Fatalf("Expected receipt within %d chars, got %d", maxReceiptLen, len(r))
		}
		if !strings.HasPrefix(r, "rcpt_"+patient.Hex()[16:]+"_") {
			t.Errorf("Unexpected receipt %s", r)
		}
		if seen[r] {
			t.Fatalf("Duplicate receipt %s", r)
		}
		seen[r] = true
	}
}

func TestToMinor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want int64
	}{
		{500, 50000},
		{1, 100},
		{1.5, 150},
		{0.29, 29},
		{99.99, 9999},
		{1000000, 100000000},
	}
	for _, tt := range tests {
		if got := toMinor(tt.in); got != tt.want {
			t.Errorf("Expected %d for %v, got %d", tt.want, tt.in, got)
		}
	}
}

func TestTestBypass(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("enabled outside production", func(t *testing.T) {
		t.Parallel()
		f := newPaymentFixture(t, func(cfg *config.Config) { cfg.Razorpay.AllowTestBypass = true })
		patient := newPatient()
		order, _ := f.payments.CreateOrder(ctx, patient, &CreateOrderRequest{Amount: 500})

		req := &VerifyPaymentRequest{RazorpayOrderID: order.OrderID, RazorpayPaymentID: "pay_test_123", RazorpaySignature: "bogus", Method: "CARD"}
		if _, err := f.payments.Verify(ctx, patient, req); err != nil {
			t.Fatalf("Expected bypass to accept, got %v", err)
		}
		if f.recorder.count(models.EventTestBypassUsed) != 1 {
			t.Error("Expected bypass audit event")
		}

		p, err := f.payments.Refund(ctx, patient, order.PaymentID)
		if err != nil || !strings.HasPrefix(p.RefundID, "rfnd_test_") {
			t.Fatalf("Expected simulated refund, got %+v, %v", p, err)
		}
		if f.gateway.refundCount() != 0 {
			t.Error("Expected no gateway refund for a test payment")
		}
	})

	t.Run("ignored in production", func(t *testing.T) {
		t.Parallel()
		f := newPaymentFixture(t, func(cfg *config.Config) {
			cfg.Razorpay.AllowTestBypass = true
			cfg.Environment = "production"
		})
		patient := newPatient()
		order, _ := f.payments.CreateOrder(ctx, patient, &CreateOrderRequest{Amount: 500})
		req := &VerifyPaymentRequest{RazorpayOrderID: order.OrderID, RazorpayPaymentID: "pay_test_123", RazorpaySignature: "bogus", Method: "CARD"}
		if _, err := f.payments.Verify(ctx, patient, req); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Expected ErrInvalidSignature in production, got %v", err)
		}
	})
}

func TestPaymentStatsAndList(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t, nil)
	ctx := context.Background()
	patient := newPatient()

	a, _ := f.payments.CreateOrder(ctx, patient, &CreateOrderRequest{Amount: 500})
	_, _ = f.payments.CreateOrder(ctx, patient, &CreateOrderRequest{Amount: 200})
	_, _ = f.payments.Verify(ctx, patient, f.verifyRequest(a.OrderID, "pay_a"))

	stats, err := f.payments.Stats(ctx, patient)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats.TotalPaid != 500 || stats.TotalPending != 200 || stats.PaymentCount != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	list, _ := f.payments.List(ctx, patient, "")
	if len(list) != 2 || list[0].Amount != 200 {
		t.Errorf("Expected newest first, got %d items", len(list))
	}
	if done, _ := f.payments.List(ctx, patient, "COMPLETED"); len(done) != 1 {
		t.Errorf("Expected one completed payment, got %d", len(done))
	}
	if _, err := f.payments.Ledger(ctx, newPatient(), a.PaymentID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for another patient's ledger, got %v", err)
	}
}
