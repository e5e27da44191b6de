package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"booking-service/internal/bucketing"
	"booking-service/internal/models"
	"booking-service/internal/repository"
	"booking-service/internal/util"
)

const defaultLedgerLimit = 100

// LedgerRepository appends payment transitions to two tables: one
// partitioned by (patient bucket, patient) and one by payment.
type LedgerRepository struct {
	client  *ScyllaClient
	buckets *bucketing.BucketingManager
}

var _ repository.LedgerRepository = (*LedgerRepository)(nil)

func NewLedgerRepository(client *ScyllaClient, buckets *bucketing.BucketingManager) *LedgerRepository {
	return &LedgerRepository{client: client, buckets: buckets}
}

func (r *LedgerRepository) Append(ctx context.Context, e *models.LedgerEntry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	eventID := gocql.UUIDFromTime(e.At)
	e.EventID = eventID.String()

	batch := r.client.Batch(gocql.LoggedBatch)
	batch.Query(r.client.Prepared.InsertByPatient, patientRow(e, eventID, r.buckets.PatientBucket(e.PatientID))...)
	batch.Query(r.client.Prepared.InsertByPayment, paymentRow(e, eventID)...)

	if err := r.client.ExecuteBatchWithRetry(ctx, batch, 2); err != nil {
		util.Error("Failed to append payment ledger entry",
			zap.String("payment_id", e.PaymentID),
			zap.String("to_status", string(e.To)),
			zap.Error(err))
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	util.Debug("Payment ledger entry appended",
		zap.String("payment_id", e.PaymentID),
		zap.String("event_id", e.EventID))
	return nil
}

// ListForPatient returns the newest entries first.
func (r *LedgerRepository) ListForPatient(ctx context.Context, patientID string, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultLedgerLimit
	}
	bucket := r.buckets.PatientBucket(patientID)
	iter := r.client.Query(r.client.Prepared.SelectByPatient, bucket, patientID, limit).WithContext(ctx).Iter()
	return scanEntries(iter)
}

// ListForPayment returns a payment's entries oldest first.
func (r *LedgerRepository) ListForPayment(ctx context.Context, paymentID string) ([]*models.LedgerEntry, error) {
	iter := r.client.Query(r.client.Prepared.SelectByPayment, paymentID).WithContext(ctx).Iter()
	return scanEntries(iter)
}

func scanEntries(iter *gocql.Iter) ([]*models.LedgerEntry, error) {
	var out []*models.LedgerEntry
	scanner := iter.Scanner()
	for scanner.Next() {
		var (
			eventID  gocql.UUID
			from, to string
			e        models.LedgerEntry
		)
		if err := scanner.Scan(&eventID, &e.PaymentID, &e.PatientID, &from, &to,
			&e.Amount, &e.Currency, &e.GatewayRef, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.EventID = eventID.String()
		e.From = models.PaymentStatus(from)
		e.To = models.PaymentStatus(to)
		out = append(out, &e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return out, nil
}

func patientRow(e *models.LedgerEntry, eventID gocql.UUID, bucket int) []interface{} {
	return []interface{}{
		bucket, e.PatientID, eventID, e.PaymentID, string(e.From), string(e.To),
		e.Amount, e.Currency, e.GatewayRef, e.At,
	}
}

func paymentRow(e *models.LedgerEntry, eventID gocql.UUID) []interface{} {
	return []interface{}{
		e.PaymentID, eventID, e.PatientID, string(e.From), string(e.To),
		e.Amount, e.Currency, e.GatewayRef, e.At,
	}
}
