// Package mongo is the production Store. Invariants that span concurrent
// requests are enforced by unique indexes and conditional updates; see
// client.IndexPlan for the indexes this package depends on.
package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"booking-service/internal/client"
	"booking-service/internal/repository"
)

type Store struct {
	client *client.MongoClient
}

var _ repository.Store = (*Store)(nil)

func NewStore(mc *client.MongoClient) *Store {
	return &Store{client: mc}
}

func (s *Store) OTPs() repository.OTPRepository {
	return &otpRepository{coll: s.client.Collection(client.CollectionOTPs), tx: s.client}
}

func (s *Store) Users() repository.UserRepository {
	return &userRepository{coll: s.client.Collection(client.CollectionUsers)}
}

func (s *Store) Directory() repository.DirectoryRepository {
	return &directoryRepository{
		centers:     s.client.Collection(client.CollectionCenters),
		consultants: s.client.Collection(client.CollectionConsultants),
	}
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{coll: s.client.Collection(client.CollectionAppointments)}
}

func (s *Store) Payments() repository.PaymentRepository {
	return &paymentRepository{coll: s.client.Collection(client.CollectionPayments)}
}

func (s *Store) PaymentMethods() repository.PaymentMethodRepository {
	return &paymentMethodRepository{coll: s.client.Collection(client.CollectionPaymentMethods), tx: s.client}
}

func (s *Store) Goals() repository.GoalRepository {
	return &goalRepository{coll: s.client.Collection(client.CollectionGoals)}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// transactor runs fn atomically where the deployment supports it.
type transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// mapErr converts driver errors into repository sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return repository.ErrDuplicate
	default:
		return err
	}
}
