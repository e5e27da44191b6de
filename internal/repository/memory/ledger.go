package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"booking-service/internal/models"
	"booking-service/internal/repository"
)

// Ledger keeps payment ledger entries in process.
type Ledger struct {
	mu      sync.RWMutex
	entries []*models.LedgerEntry
}

var _ repository.LedgerRepository = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Append(ctx context.Context, e *models.LedgerEntry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	e.EventID = uuid.NewString()
	cp := *e
	l.mu.Lock()
	l.entries = append(l.entries, &cp)
	l.mu.Unlock()
	return nil
}

// ListForPatient returns the newest entries first.
func (l *Ledger) ListForPatient(ctx context.Context, patientID string, limit int) ([]*models.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*models.LedgerEntry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].PatientID != patientID {
			continue
		}
		cp := *l.entries[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListForPayment returns a payment's entries oldest first.
func (l *Ledger) ListForPayment(ctx context.Context, paymentID string) ([]*models.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*models.LedgerEntry
	for _, e := range l.entries {
		if e.PaymentID == paymentID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
