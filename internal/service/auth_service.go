package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"booking-service/internal/audit"
	"booking-service/internal/config"
	"booking-service/internal/events"
	"booking-service/internal/models"
	"booking-service/internal/repository"
	"booking-service/internal/token"
	"booking-service/internal/util"
)

type SendOTPRequest struct {
	Mobile string `json:"mobile" validate:"required,mobile"`
}

type UserDetails struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email"`
	DateOfBirth string `json:"dateOfBirth,omitempty" validate:"omitempty,ymd"`
	Gender      string `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
}

type VerifyOTPRequest struct {
	Mobile      string       `json:"mobile" validate:"required,mobile"`
	OTP         string       `json:"otp" validate:"required,len=6,numeric"`
	UserDetails *UserDetails `json:"userDetails,omitempty"`
}

type AuthResult struct {
	Token     string       `json:"token"`
	User      *models.User `json:"user"`
	IsNewUser bool         `json:"isNewUser"`
}

type clientIPKey struct{}

// WithClientIP attaches the caller's address for audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// AuthService is the OTP sign-in flow on top of the OTP engine.
type AuthService struct {
	otp       *OTPEngine
	users     repository.UserRepository
	limiter   RateLimiter
	tokens    TokenIssuer
	publisher events.Publisher
	recorder  audit.Recorder
	cfg       *config.Config
	logger    *zap.Logger
}

func NewAuthService(
	otp *OTPEngine,
	users repository.UserRepository,
	limiter RateLimiter,
	tokens TokenIssuer,
	publisher events.Publisher,
	recorder audit.Recorder,
	cfg *config.Config,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		otp:       otp,
		users:     users,
		limiter:   limiter,
		tokens:    tokens,
		publisher: publisher,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *AuthService) audit(ctx context.Context, t models.SecurityEventType, subject, patientID string, details map[string]interface{}) {
	e := audit.NewEvent(t, subject, patientID, details)
	e.IPAddress = clientIP(ctx)
	s.recorder.Record(ctx, e)
}

// SendOTP issues a code for the mobile and hands it to the notification
// stream. Delivery problems are logged, never returned.
func (s *AuthService) SendOTP(ctx context.Context, req *SendOTPRequest) error {
	req.Mobile = util.NormalizeMobile(req.Mobile)
	if err := validateStruct(req); err != nil {
		return err
	}

	if s.limiter != nil && s.cfg.OTP.IssueLimit > 0 {
		count, err := s.limiter.IncrementCounter(ctx, "otp_issue:"+req.Mobile, s.cfg.OTP.IssueLimitWindow)
		if err != nil {
			s.logger.Warn("OTP rate limit unavailable", util.ErrorField(err))
		} else if count > s.cfg.OTP.IssueLimit {
			s.audit(ctx, models.EventOTPRateLimited, req.Mobile, "", map[string]interface{}{"count": count})
			return ErrRateLimited
		}
	}

	code, challenge, err := s.otp.Issue(ctx, req.Mobile)
	if err != nil {
		return err
	}
	if !s.cfg.IsProduction() {
		s.logger.Debug("OTP issued", zap.String("mobile", req.Mobile), zap.String("otp", code))
	}

	notification := events.OTPNotification{Mobile: req.Mobile, Code: code, ExpiresAt: challenge.ExpiresAt}
	if user, err := s.users.FindByMobile(ctx, req.Mobile); err == nil && user.Email != "" {
		notification.Email = user.Email
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("Failed to look up user for OTP email", util.ErrorField(err))
	}
	s.publisher.Publish(ctx, events.StreamOTP, req.Mobile, events.TypeOTPIssued, notification)
	s.audit(ctx, models.EventOTPIssued, req.Mobile, "", nil)

	s.logger.Info("OTP sent", zap.String("mobile", req.Mobile))
	return nil
}

// VerifyOTP consumes the challenge and signs the caller in. A mobile with
// no account needs UserDetails; the challenge is spent either way.
func (s *AuthService) VerifyOTP(ctx context.Context, req *VerifyOTPRequest) (*AuthResult, error) {
	req.Mobile = util.NormalizeMobile(req.Mobile)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	ok, err := s.otp.Verify(ctx, req.Mobile, req.OTP)
	if errors.Is(err, ErrAttemptsExceeded) {
		s.audit(ctx, models.EventOTPExhausted, req.Mobile, "", nil)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		s.audit(ctx, models.EventOTPFailed, req.Mobile, "", nil)
		return nil, ErrInvalidOTP
	}

	user, err := s.users.FindByMobile(ctx, req.Mobile)
	isNew := false
	switch {
	case errors.Is(err, repository.ErrNotFound):
		user, err = s.createUser(ctx, req.Mobile, req.UserDetails)
		if err != nil {
			return nil, err
		}
		isNew = true
	case err != nil:
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	signed, err := s.tokens.Sign(token.Identity{UserID: user.ID, Mobile: user.Mobile})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, models.EventOTPVerified, req.Mobile, user.ID.Hex(), map[string]interface{}{"newUser": isNew})

	s.logger.Info("User signed in",
		zap.String("user_id", user.ID.Hex()),
		zap.Bool("new_user", isNew))
	return &AuthResult{Token: signed, User: user, IsNewUser: isNew}, nil
}

func (s *AuthService) createUser(ctx context.Context, mobile string, details *UserDetails) (*models.User, error) {
	if details == nil {
		return nil, ErrUserDetailsRequired
	}
	if err := validateStruct(details); err != nil {
		return nil, err
	}
	if util.ContainsSuspicious(details.Name) {
		return nil, invalid("name contains invalid characters")
	}

	now := s.otp.now()
	user := &models.User{
		Name:      strings.TrimSpace(details.Name),
		Mobile:    mobile,
		Email:     strings.ToLower(strings.TrimSpace(details.Email)),
		Gender:    details.Gender,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if details.DateOfBirth != "" {
		dob, err := parseDate(details.DateOfBirth)
		if err != nil {
			return nil, err
		}
		user.DateOfBirth = &dob
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: a user with this mobile or email already exists", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// RefreshToken re-signs a token for an existing user.
func (s *AuthService) RefreshToken(ctx context.Context, id token.Identity) (*AuthResult, error) {
	user, err := s.users.FindByID(ctx, id.UserID)
	if err != nil {
		return nil, storeErr("refresh token", "user", err)
	}
	signed, err := s.tokens.Sign(token.Identity{UserID: user.ID, Mobile: user.Mobile})
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: signed, User: user}, nil
}

// Authenticate validates a bearer token.
func (s *AuthService) Authenticate(raw string) (token.Identity, error) {
	id, err := s.tokens.Validate(raw)
	if err != nil {
		return token.Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return id, nil
}
