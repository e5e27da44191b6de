package service

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"booking-service/internal/models"
	"booking-service/internal/repository"
	"booking-service/internal/util"
)

type CreatePaymentMethodRequest struct {
	Type      string `json:"type" validate:"required"`
	Last4     string `json:"last4,omitempty" validate:"omitempty,last4"`
	BankName  string `json:"bankName,omitempty" validate:"omitempty,max=100"`
	UPIID     string `json:"upiId,omitempty" validate:"omitempty,upi"`
	CardBrand string `json:"cardBrand,omitempty"`
	IsDefault bool   `json:"isDefault"`
}

type UpdatePaymentMethodRequest struct {
	IsDefault *bool `json:"isDefault,omitempty"`
	IsActive  *bool `json:"isActive,omitempty"`
}

// PaymentMethodService is the saved-method registry. Writes for one
// patient are serialized so at most one method is ever the default.
type PaymentMethodService struct {
	methods   repository.PaymentMethodRepository
	encryptor FieldEncryptor
	locker    Locker
	logger    *zap.Logger
	now       func() time.Time
}

func NewPaymentMethodService(methods repository.PaymentMethodRepository, encryptor FieldEncryptor, locker Locker, logger *zap.Logger) *PaymentMethodService {
	return &PaymentMethodService{
		methods:   methods,
		encryptor: encryptor,
		locker:    locker,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func upiPurpose(patientID primitive.ObjectID) string {
	return "upi:" + patientID.Hex()
}

func methodLockKey(patientID primitive.ObjectID) string {
	return "methods:" + patientID.Hex()
}

func (s *PaymentMethodService) Create(ctx context.Context, patientID primitive.ObjectID, req *CreatePaymentMethodRequest) (*models.SavedPaymentMethod, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	methodType, err := models.ParseSavedMethodType(req.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now()
	m := &models.SavedPaymentMethod{
		PatientID: patientID,
		Type:      methodType,
		IsDefault: req.IsDefault,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch methodType {
	case models.SavedCard:
		if req.Last4 == "" {
			return nil, invalid("last4 is required for card methods")
		}
		m.Last4 = req.Last4
		if req.CardBrand != "" {
			brand, err := models.ParseCardBrand(req.CardBrand)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			m.CardBrand = brand
		}
	case models.SavedUPI:
		if req.UPIID == "" {
			return nil, invalid("upiId is required for UPI methods")
		}
		field, err := s.encryptor.EncryptField(ctx, req.UPIID, upiPurpose(patientID))
		if err != nil {
			return nil, fmt.Errorf("encrypt upi id: %w", err)
		}
		m.UPIIDEncrypted = field
	case models.SavedBank:
		bank := util.SanitizeInput(req.BankName)
		if bank == "" {
			return nil, invalid("bankName is required for bank methods")
		}
		m.BankName = bank
		m.Last4 = req.Last4
	}

	err = withLock(ctx, s.locker, methodLockKey(patientID), 0, func() error {
		if err := s.methods.Create(ctx, m); err != nil {
			return fmt.Errorf("store payment method: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment method saved",
		zap.String("method_id", m.ID.Hex()),
		zap.String("type", string(m.Type)),
		zap.Bool("default", m.IsDefault))
	m.UPIID = req.UPIID
	return m, nil
}

// List returns active methods, the default first and then newest first.
func (s *PaymentMethodService) List(ctx context.Context, patientID primitive.ObjectID) ([]*models.SavedPaymentMethod, error) {
	list, err := s.methods.ListActive(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	for _, m := range list {
		s.reveal(ctx, m)
	}
	return list, nil
}

func (s *PaymentMethodService) Get(ctx context.Context, patientID primitive.ObjectID, id string) (*models.SavedPaymentMethod, error) {
	oid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	m, err := s.methods.FindByIDForPatient(ctx, oid, patientID)
	if err != nil {
		return nil, storeErr("load payment method", "payment method", err)
	}
	s.reveal(ctx, m)
	return m, nil
}

// Update changes the default and active flags. A deactivated method loses
// its default flag.
func (s *PaymentMethodService) Update(ctx context.Context, patientID primitive.ObjectID, id string, req *UpdatePaymentMethodRequest) (*models.SavedPaymentMethod, error) {
	oid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	if req.IsDefault == nil && req.IsActive == nil {
		return s.Get(ctx, patientID, id)
	}

	var updated *models.SavedPaymentMethod
	err = withLock(ctx, s.locker, methodLockKey(patientID), 0, func() error {
		m, err := s.methods.Update(ctx, oid, patientID, models.SavedMethodUpdate{
			IsDefault: req.IsDefault,
			IsActive:  req.IsActive,
		}, s.now())
		if err != nil {
			return storeErr("update payment method", "payment method", err)
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.reveal(ctx, updated)
	return updated, nil
}

// Delete reports whether a method was removed.
func (s *PaymentMethodService) Delete(ctx context.Context, patientID primitive.ObjectID, id string) (bool, error) {
	oid, err := parseID("id", id)
	if err != nil {
		return false, err
	}
	var deleted bool
	err = withLock(ctx, s.locker, methodLockKey(patientID), 0, func() error {
		ok, err := s.methods.Delete(ctx, oid, patientID)
		if err != nil {
			return fmt.Errorf("delete payment method: %w", err)
		}
		deleted = ok
		return nil
	})
	return deleted, err
}

// reveal decrypts the UPI id in place. A failure is logged and leaves the
// field empty.
func (s *PaymentMethodService) reveal(ctx context.Context, m *models.SavedPaymentMethod) {
	if m.UPIIDEncrypted == nil {
		return
	}
	upi, err := s.encryptor.DecryptField(ctx, m.UPIIDEncrypted, upiPurpose(m.PatientID))
	if err != nil {
		s.logger.Error("Failed to decrypt UPI id", zap.String("method_id", m.ID.Hex()), util.ErrorField(err))
		return
	}
	m.UPIID = upi
}
