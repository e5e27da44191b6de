package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"booking-service/internal/models"
)

type paymentRepository struct {
	coll *mongo.Collection
}

// transitionSet is the $set document for t. It writes the same fields
// PaymentTransition.Apply does.
func transitionSet(t models.PaymentTransition) bson.M {
	set := bson.M{"status": t.To, "updatedAt": t.At}
	if t.Method != "" {
		set["method"] = t.Method
	}
	if t.GatewayPaymentID != "" {
		set["gatewayPaymentId"] = t.GatewayPaymentID
	}
	if t.GatewaySignature != "" {
		set["gatewaySignature"] = t.GatewaySignature
	}
	if t.TransactionID != "" {
		set["transactionId"] = t.TransactionID
	}
	if t.RefundID != "" {
		set["refundId"] = t.RefundID
	}
	if t.FailureReason != "" {
		set["failureReason"] = t.FailureReason
	}
	switch t.To {
	case models.PaymentCompleted:
		set["completedAt"] = t.At
	case models.PaymentRefunded:
		set["refundedAt"] = t.At
	}
	return set
}

func (r *paymentRepository) Create(ctx context.Context, p *models.Payment) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, p)
	return mapErr(err)
}

func (r *paymentRepository) FindByIDForPatient(ctx context.Context, id, patientID primitive.ObjectID) (*models.Payment, error) {
	return r.findOne(ctx, bson.M{"_id": id, "patientId": patientID})
}

func (r *paymentRepository) FindByOrderForPatient(ctx context.Context, orderID string, patientID primitive.ObjectID) (*models.Payment, error) {
	return r.findOne(ctx, bson.M{"gatewayOrderId": orderID, "patientId": patientID})
}

func (r *paymentRepository) findOne(ctx context.Context, filter bson.M) (*models.Payment, error) {
	var p models.Payment
	if err := r.coll.FindOne(ctx, filter).Decode(&p); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *paymentRepository) ListByPatient(ctx context.Context, patientID primitive.ObjectID, status models.PaymentStatus) ([]*models.Payment, error) {
	filter := bson.M{"patientId": patientID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []*models.Payment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *paymentRepository) Transition(ctx context.Context, id primitive.ObjectID, t models.PaymentTransition) (*models.Payment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Payment
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": t.From},
		bson.M{"$set": transitionSet(t)},
		opts).Decode(&p)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}
