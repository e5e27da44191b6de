// Package audit records security events. Recording never blocks or fails
// the operation being audited.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-service/internal/client"
	"booking-service/internal/models"
)

type Recorder interface {
	Record(ctx context.Context, e models.SecurityEvent)
	Close() error
}

// NewEvent fills the id and timestamps. details is JSON encoded; nil leaves it empty.
func NewEvent(t models.SecurityEventType, subject, patientID string, details map[string]interface{}) models.SecurityEvent {
	now := time.Now().UTC()
	e := models.SecurityEvent{
		EventID:   uuid.NewString(),
		EventDate: now.Format("2006-01-02"),
		EventTime: now,
		EventType: t,
		Subject:   subject,
		PatientID: patientID,
	}
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			e.Details = string(b)
		}
	}
	return e
}

// NopRecorder discards events.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, models.SecurityEvent) {}
func (NopRecorder) Close() error { return nil }

const insertSecurityEvents = `INSERT INTO security_events
	(event_id, event_date, event_time, event_type, subject, patient_id, ip_address, details)`

type batchInserter interface {
	BatchInsert(ctx context.Context, query string, rows [][]interface{}) error
}

var _ batchInserter = (*client.ClickHouseClient)(nil)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 2 * time.Second
	queueSize            = 1024
)

// ClickHouseRecorder buffers events and writes them in batches from a
// single goroutine. Events are dropped when the queue is full.
type ClickHouseRecorder struct {
	db            batchInserter
	logger        *zap.Logger
	queue         chan models.SecurityEvent
	batchSize     int
	flushInterval time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func NewClickHouseRecorder(db batchInserter, logger *zap.Logger) *ClickHouseRecorder {
	r := &ClickHouseRecorder{
		db:            db,
		logger:        logger,
		queue:         make(chan models.SecurityEvent, queueSize),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		done:          make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *ClickHouseRecorder) Record(ctx context.Context, e models.SecurityEvent) {
	select {
	case r.queue <- e:
	default:
		r.logger.Warn("Audit queue full, dropping event",
			zap.String("event_type", string(e.EventType)),
			zap.String("event_id", e.EventID))
	}
}

// Close flushes queued events and stops the writer. Record must not be
// called after Close.
func (r *ClickHouseRecorder) Close() error {
	r.closeOnce.Do(func() { close(r.queue) })
	<-r.done
	return nil
}

func (r *ClickHouseRecorder) run() {
	defer close(r.done)
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]models.SecurityEvent, 0, r.batchSize)
	for {
		select {
		case e, ok := <-r.queue:
			if !ok {
				r.flush(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= r.batchSize {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *ClickHouseRecorder) flush(batch []models.SecurityEvent) {
	if len(batch) == 0 {
		return
	}
	rows := make([][]interface{}, 0, len(batch))
	for _, e := range batch {
		rows = append(rows, row(e))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.db.BatchInsert(ctx, insertSecurityEvents, rows); err != nil {
		r.logger.Error("Failed to write security events",
			zap.Int("count", len(batch)),
			zap.Error(err))
		return
	}
	r.logger.Debug("Security events written", zap.Int("count", len(batch)))
}

func row(e models.SecurityEvent) []interface{} {
	date, err := time.Parse("2006-01-02", e.EventDate)
	if err != nil {
		date = e.EventTime.UTC().Truncate(24 * time.Hour)
	}
	return []interface{}{
		e.EventID,
		date,
		e.EventTime,
		string(e.EventType),
		e.Subject,
		e.PatientID,
		e.IPAddress,
		e.Details,
	}
}
