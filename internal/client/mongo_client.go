package client

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"booking-service/internal/config"
	"booking-service/internal/util"
)

const (
	CollectionOTPs           = "otps"
	CollectionUsers          = "users"
	CollectionCenters        = "centers"
	CollectionConsultants    = "consultants"
	CollectionAppointments   = "appointments"
	CollectionPayments       = "payments"
	CollectionPaymentMethods = "paymentmethods"
	CollectionGoals          = "goals"
)

// SlotIndexName is the partial unique index that arbitrates bookings.
const SlotIndexName = "uniq_slot_holder"

type MongoClient struct {
	Client *mongo.Client
	DB     *mongo.Database
	config *config.MongoConfig
}

func NewMongoClient(cfg *config.Config) (*MongoClient, error) {
	mongoConfig := cfg.Mongo

	opts := options.Client().
		ApplyURI(mongoConfig.URI).
		SetServerSelectionTimeout(mongoConfig.Timeout).
		SetConnectTimeout(mongoConfig.Timeout).
		SetMaxPoolSize(100).
		SetRetryWrites(true)

	ctx, cancel := context.WithTimeout(context.Background(), mongoConfig.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	mc := &MongoClient{
		Client: client,
		DB:     client.Database(mongoConfig.Database),
		config: &mongoConfig,
	}

	if err := mc.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	util.Info("MongoDB client initialized",
		zap.String("database", mongoConfig.Database),
		zap.Bool("transactions", mongoConfig.UseTransactions))

	return mc, nil
}

func (m *MongoClient) Collection(name string) *mongo.Collection {
	return m.DB.Collection(name)
}

// IndexPlan lists every index the repositories rely on, keyed by collection.
func IndexPlan() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		CollectionOTPs: {
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetName("ttl_expires_at").SetExpireAfterSeconds(0)},
			{Keys: bson.D{{Key: "mobile", Value: 1}, {Key: "verified", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("mobile_active")},
		},
		CollectionUsers: {
			{Keys: bson.D{{Key: "mobile", Value: 1}}, Options: options.Index().SetName("uniq_mobile").SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("uniq_email").SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$gt": ""}})},
		},
		CollectionCenters: {
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "city", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetName("active_city")},
		},
		CollectionConsultants: {
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "centerId", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetName("active_center")},
		},
		CollectionAppointments: {
			{Keys: bson.D{{Key: "consultantId", Value: 1}, {Key: "date", Value: 1}, {Key: "time", Value: 1}}, Options: options.Index().SetName(SlotIndexName).SetUnique(true).
				SetPartialFilterExpression(bson.M{"holdsSlot": true})},
			{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "date", Value: -1}, {Key: "time", Value: -1}}, Options: options.Index().SetName("patient_schedule")},
		},
		CollectionPayments: {
			{Keys: bson.D{{Key: "gatewayOrderId", Value: 1}}, Options: options.Index().SetName("uniq_gateway_order").SetUnique(true)},
			{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("patient_history")},
		},
		CollectionPaymentMethods: {
			{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "isActive", Value: 1}, {Key: "isDefault", Value: -1}}, Options: options.Index().SetName("patient_methods")},
		},
		CollectionGoals: {
			{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "status", Value: 1}}, Options: options.Index().SetName("patient_status")},
			{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("patient_goals")},
		},
	}
}

// EnsureIndexes creates the indexes in IndexPlan. Existing indexes with the
// same definition are left alone by the server.
func (m *MongoClient) EnsureIndexes(ctx context.Context) error {
	for coll, models := range IndexPlan() {
		if _, err := m.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	util.Debug("MongoDB indexes ensured")
	return nil
}

// WithTransaction runs fn in a session transaction when transactions are
// enabled, otherwise directly.
func (m *MongoClient) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.config.UseTransactions {
		return fn(ctx)
	}
	session, err := m.Client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start MongoDB session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (m *MongoClient) HealthCheck(ctx context.Context) error {
	if err := m.Client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

func (m *MongoClient) Close(ctx context.Context) error {
	if m.Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := m.Client.Disconnect(ctx); err != nil {
		util.Error("Failed to disconnect MongoDB", zap.Error(err))
		return err
	}
	util.Info("MongoDB client closed")
	return nil
}
