package service

import (
	"go.uber.org/zap"

	"booking-service/internal/audit"
	"booking-service/internal/config"
	"booking-service/internal/events"
	"booking-service/internal/gateway"
	"booking-service/internal/repository"
)

// Dependencies are the collaborators the services are built from. Optional
// ones may be nil: Gateway, SlotLocker, Index.
type Dependencies struct {
	Store      repository.Store
	Ledger     repository.LedgerRepository
	Hasher     OTPHasher
	Encryptor  FieldEncryptor
	Tokens     TokenIssuer
	Limiter    RateLimiter
	Locker     Locker
	SlotLocker Locker
	Gateway    gateway.Gateway
	Index      ConsultantSearcher
	Publisher  events.Publisher
	Recorder   audit.Recorder
}

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	deps   Dependencies
	cfg    *config.Config
	logger *zap.Logger

	otpEngine      *OTPEngine
	authService    *AuthService
	profileService *ProfileService
	directory      *DirectoryService
	booking        *BookingService
	payments       *PaymentService
	paymentMethods *PaymentMethodService
	goals          *GoalService
}

func NewServiceFactory(deps Dependencies, cfg *config.Config, logger *zap.Logger) *ServiceFactory {
	if deps.Publisher == nil {
		deps.Publisher = events.NewLogPublisher(logger)
	}
	if deps.Recorder == nil {
		deps.Recorder = audit.NopRecorder{}
	}
	return &ServiceFactory{deps: deps, cfg: cfg, logger: logger}
}

// OTPEngine returns the OTP engine instance (singleton)
func (f *ServiceFactory) OTPEngine() *OTPEngine {
	if f.otpEngine == nil {
		f.otpEngine = NewOTPEngine(f.deps.Store.OTPs(), f.deps.Hasher, f.cfg, f.logger.Named("otp"))
	}
	return f.otpEngine
}

func (f *ServiceFactory) AuthService() *AuthService {
	if f.authService == nil {
		f.authService = NewAuthService(
			f.OTPEngine(),
			f.deps.Store.Users(),
			f.deps.Limiter,
			f.deps.Tokens,
			f.deps.Publisher,
			f.deps.Recorder,
			f.cfg,
			f.logger.Named("auth"),
		)
	}
	return f.authService
}

func (f *ServiceFactory) ProfileService() *ProfileService {
	if f.profileService == nil {
		f.profileService = NewProfileService(f.deps.Store.Users(), f.logger.Named("profile"))
	}
	return f.profileService
}

func (f *ServiceFactory) DirectoryService() *DirectoryService {
	if f.directory == nil {
		f.directory = NewDirectoryService(f.deps.Store.Directory(), f.deps.Index, f.logger.Named("directory"))
	}
	return f.directory
}

func (f *ServiceFactory) BookingService() *BookingService {
	if f.booking == nil {
		f.booking = NewBookingService(
			f.deps.Store.Appointments(),
			f.deps.Store.Directory(),
			f.deps.SlotLocker,
			f.deps.Publisher,
			f.cfg,
			f.logger.Named("booking"),
		)
	}
	return f.booking
}

func (f *ServiceFactory) PaymentService() *PaymentService {
	if f.payments == nil {
		f.payments = NewPaymentService(
			f.deps.Store.Payments(),
			f.deps.Store.Appointments(),
			f.deps.Ledger,
			f.deps.Gateway,
			f.deps.Locker,
			f.deps.Publisher,
			f.deps.Recorder,
			f.cfg,
			f.logger.Named("payments"),
		)
	}
	return f.payments
}

func (f *ServiceFactory) PaymentMethodService() *PaymentMethodService {
	if f.paymentMethods == nil {
		f.paymentMethods = NewPaymentMethodService(
			f.deps.Store.PaymentMethods(),
			f.deps.Encryptor,
			f.deps.Locker,
			f.logger.Named("payment_methods"),
		)
	}
	return f.paymentMethods
}

func (f *ServiceFactory) GoalService() *GoalService {
	if f.goals == nil {
		f.goals = NewGoalService(f.deps.Store.Goals(), f.logger.Named("goals"))
	}
	return f.goals
}

// Cleanup flushes the asynchronous sinks.
func (f *ServiceFactory) Cleanup() {
	if err := f.deps.Publisher.Close(); err != nil {
		f.logger.Warn("Failed to close event publisher", zap.Error(err))
	}
	if err := f.deps.Recorder.Close(); err != nil {
		f.logger.Warn("Failed to close audit recorder", zap.Error(err))
	}
}
