package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"booking-service/internal/config"
	"booking-service/internal/util"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS payment_ledger (
		patient_bucket int,
		patient_id text,
		event_id timeuuid,
		payment_id text,
		from_status text,
		to_status text,
		amount double,
		currency text,
		gateway_ref text,
		created_at timestamp,
		PRIMARY KEY ((patient_bucket, patient_id), event_id)
	) WITH CLUSTERING ORDER BY (event_id DESC)`,
	`CREATE TABLE IF NOT EXISTS payment_ledger_by_payment (
		payment_id text,
		event_id timeuuid,
		patient_id text,
		from_status text,
		to_status text,
		amount double,
		currency text,
		gateway_ref text,
		created_at timestamp,
		PRIMARY KEY ((payment_id), event_id)
	) WITH CLUSTERING ORDER BY (event_id ASC)`,
}

// PreparedStatements holds the statement text the ledger binds on every call.
// gocql caches the server-side preparation per session.
type PreparedStatements struct {
	InsertByPatient string
	InsertByPayment string
	SelectByPatient string
	SelectByPayment string
}

type ScyllaClient struct {
	Session  *gocql.Session
	config   *config.ScyllaConfig
	Prepared *PreparedStatements
}

func NewScyllaClient(cfg *config.Config) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 2
	cluster.SocketKeepalive = 30 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
		NumRetries: 3,
	}

	if !cfg.IsDevelopment() {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 util.GetEnv("SCYLLA_CA_PATH", "/app/certs/scylla-ca.pem"),
			CertPath:               util.GetEnv("SCYLLA_CERT_PATH", "/app/certs/scylla.pem"),
			KeyPath:                util.GetEnv("SCYLLA_KEY_PATH", "/app/certs/scylla.key"),
			EnableHostVerification: true,
		}
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session:  session,
		config:   &scyllaConfig,
		Prepared: ledgerStatements(),
	}

	if err := client.EnsureSchema(context.Background()); err != nil {
		session.Close()
		return nil, err
	}

	util.Info("ScyllaDB client initialized",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func ledgerStatements() *PreparedStatements {
	return &PreparedStatements{
		InsertByPatient: `INSERT INTO payment_ledger (
			patient_bucket, patient_id, event_id, payment_id, from_status, to_status,
			amount, currency, gateway_ref, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		InsertByPayment: `INSERT INTO payment_ledger_by_payment (
			payment_id, event_id, patient_id, from_status, to_status,
			amount, currency, gateway_ref, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		SelectByPatient: `SELECT event_id, payment_id, patient_id, from_status, to_status,
			amount, currency, gateway_ref, created_at
			FROM payment_ledger WHERE patient_bucket = ? AND patient_id = ? LIMIT ?`,
		SelectByPayment: `SELECT event_id, payment_id, patient_id, from_status, to_status,
			amount, currency, gateway_ref, created_at
			FROM payment_ledger_by_payment WHERE payment_id = ?`,
	}
}

// EnsureSchema creates the ledger tables if they are missing.
func (s *ScyllaClient) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.Session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("failed to apply scylla schema: %w", err)
		}
	}
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) Batch(typ gocql.BatchType) *gocql.Batch {
	return s.Session.NewBatch(typ)
}

func (s *ScyllaClient) HealthCheck(ctx context.Context) error {
	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

// ExecuteBatchWithRetry retries a batch with linear backoff. Ledger batches
// are idempotent because the event id is fixed before the first attempt.
func (s *ScyllaClient) ExecuteBatchWithRetry(ctx context.Context, batch *gocql.Batch, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := s.Session.ExecuteBatch(batch.WithContext(ctx)); err != nil {
			lastErr = err
			if i < maxRetries {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(i+1) * 100 * time.Millisecond):
				}
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}
