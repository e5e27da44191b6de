// Package repository declares the store contracts shared by the Mongo and
// in-memory implementations. Every method that guards an invariant is a
// single conditional write so callers never need a read-modify-write.
package repository

import (
	"context"
	"errors"
	"time"

	"booking-service/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound means no document matched the lookup or the condition of a
	// conditional write.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate means a unique index rejected the write.
	ErrDuplicate = errors.New("duplicate key")
)

type OTPRepository interface {
	// Issue voids every unverified challenge for the mobile and inserts c.
	Issue(ctx context.Context, c *models.OTPChallenge) error
	// FindActive returns the newest unverified, unexpired challenge.
	FindActive(ctx context.Context, mobile string, now time.Time) (*models.OTPChallenge, error)
	// IncrementAttempts adds one attempt if the challenge is unverified and
	// below maxAttempts, returning the updated challenge. ErrNotFound when the
	// condition fails.
	IncrementAttempts(ctx context.Context, id primitive.ObjectID, maxAttempts int) (*models.OTPChallenge, error)
	// MarkVerified flips an unverified challenge to verified. ErrNotFound if
	// it was already verified.
	MarkVerified(ctx context.Context, id primitive.ObjectID, now time.Time) error
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByMobile(ctx context.Context, mobile string) (*models.User, error)
	Update(ctx context.Context, id primitive.ObjectID, update models.UserUpdate, now time.Time) (*models.User, error)
}

type DirectoryRepository interface {
	ListCenters(ctx context.Context, city string) ([]*models.Center, error)
	FindCenter(ctx context.Context, id primitive.ObjectID) (*models.Center, error)
	ListConsultants(ctx context.Context, filter models.ConsultantFilter) ([]*models.Consultant, error)
	FindConsultant(ctx context.Context, id primitive.ObjectID) (*models.Consultant, error)
	// SearchConsultants matches active consultants by name or specialty, case-insensitively.
	SearchConsultants(ctx context.Context, text string, limit int) ([]*models.Consultant, error)
	SaveCenter(ctx context.Context, c *models.Center) error
	SaveConsultant(ctx context.Context, c *models.Consultant) error
}

type AppointmentRepository interface {
	// Create inserts a; ErrDuplicate when a slot-holding appointment already
	// occupies the same (consultant, date, time).
	Create(ctx context.Context, a *models.Appointment) error
	FindByIDForPatient(ctx context.Context, id, patientID primitive.ObjectID) (*models.Appointment, error)
	ListByPatient(ctx context.Context, patientID primitive.ObjectID, status models.AppointmentStatus) ([]*models.Appointment, error)
	// SlotTaken reports whether a slot-holding appointment other than
	// excludeID occupies slot. Advisory only.
	SlotTaken(ctx context.Context, slot models.Slot, excludeID primitive.ObjectID) (bool, error)
	// UpdateBooked applies changes to a booked appointment owned by patientID.
	// ErrNotFound if it is no longer booked, ErrDuplicate on a slot clash.
	UpdateBooked(ctx context.Context, id, patientID primitive.ObjectID, changes models.AppointmentChanges, now time.Time) (*models.Appointment, error)
	// Cancel moves a booked appointment to cancelled and releases its slot.
	// ErrNotFound if it is not currently booked.
	Cancel(ctx context.Context, id, patientID primitive.ObjectID, now time.Time) (*models.Appointment, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	FindByIDForPatient(ctx context.Context, id, patientID primitive.ObjectID) (*models.Payment, error)
	FindByOrderForPatient(ctx context.Context, orderID string, patientID primitive.ObjectID) (*models.Payment, error)
	ListByPatient(ctx context.Context, patientID primitive.ObjectID, status models.PaymentStatus) ([]*models.Payment, error)
	// Transition applies t only if the payment is still in t.From.
	// ErrNotFound when the status has moved on.
	Transition(ctx context.Context, id primitive.ObjectID, t models.PaymentTransition) (*models.Payment, error)
}

type PaymentMethodRepository interface {
	// Create inserts m. When m.IsDefault, every other default of the patient
	// is cleared in the same operation.
	Create(ctx context.Context, m *models.SavedPaymentMethod) error
	FindByIDForPatient(ctx context.Context, id, patientID primitive.ObjectID) (*models.SavedPaymentMethod, error)
	ListActive(ctx context.Context, patientID primitive.ObjectID) ([]*models.SavedPaymentMethod, error)
	// Update applies u. Setting IsDefault clears every other default of the
	// patient in the same operation.
	Update(ctx context.Context, id, patientID primitive.ObjectID, u models.SavedMethodUpdate, now time.Time) (*models.SavedPaymentMethod, error)
	Delete(ctx context.Context, id, patientID primitive.ObjectID) (bool, error)
}

type GoalRepository interface {
	Create(ctx context.Context, g *models.Goal) error
	FindByIDForPatient(ctx context.Context, id, patientID primitive.ObjectID) (*models.Goal, error)
	// ListForPatient returns the patient's goals newest first, optionally
	// filtered by status.
	ListForPatient(ctx context.Context, patientID primitive.ObjectID, status models.GoalStatus) ([]*models.Goal, error)
	Update(ctx context.Context, id, patientID primitive.ObjectID, changes models.GoalChanges, now time.Time) (*models.Goal, error)
	Delete(ctx context.Context, id, patientID primitive.ObjectID) (bool, error)
}

// LedgerRepository is the append-only history of payment transitions.
type LedgerRepository interface {
	Append(ctx context.Context, e *models.LedgerEntry) error
	ListForPatient(ctx context.Context, patientID string, limit int) ([]*models.LedgerEntry, error)
	ListForPayment(ctx context.Context, paymentID string) ([]*models.LedgerEntry, error)
}

// Store bundles every repository a deployment needs.
type Store interface {
	OTPs() OTPRepository
	Users() UserRepository
	Directory() DirectoryRepository
	Appointments() AppointmentRepository
	Payments() PaymentRepository
	PaymentMethods() PaymentMethodRepository
	Goals() GoalRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
