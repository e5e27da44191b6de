package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"booking-service/internal/models"
)

type paymentMethodRepository struct {
	coll *mongo.Collection
	tx   transactor
}

// otherDefaultsFilter selects the patient's default methods except keepID.
func otherDefaultsFilter(patientID, keepID primitive.ObjectID) bson.M {
	return bson.M{
		"patientId": patientID,
		"_id":       bson.M{"$ne": keepID},
		"isDefault": true,
	}
}

func (r *paymentMethodRepository) clearOtherDefaults(ctx context.Context, patientID, keepID primitive.ObjectID, now time.Time) error {
	_, err := r.coll.UpdateMany(ctx, otherDefaultsFilter(patientID, keepID),
		bson.M{"$set": bson.M{"isDefault": false, "updatedAt": now}})
	return err
}

func (r *paymentMethodRepository) Create(ctx context.Context, m *models.SavedPaymentMethod) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if m.IsDefault {
			if err := r.clearOtherDefaults(ctx, m.PatientID, m.ID, m.CreatedAt); err != nil {
				return err
			}
		}
		_, err := r.coll.InsertOne(ctx, m)
		return mapErr(err)
	})
}

func (r *paymentMethodRepository) FindByIDForPatient(ctx context.Context, id, patientID primitive.ObjectID) (*models.SavedPaymentMethod, error) {
	var m models.SavedPaymentMethod
	if err := r.coll.FindOne(ctx, bson.M{"_id": id, "patientId": patientID}).Decode(&m); err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (r *paymentMethodRepository) ListActive(ctx context.Context, patientID primitive.ObjectID) ([]*models.SavedPaymentMethod, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "isDefault", Value: -1},
		{Key: "createdAt", Value: -1},
		{Key: "_id", Value: -1},
	})
	cur, err := r.coll.Find(ctx, bson.M{"patientId": patientID, "isActive": true}, opts)
	if err != nil {
		return nil, err
	}
	var out []*models.SavedPaymentMethod
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// nextFlags applies u to the current flags. An inactive method is never default.
func nextFlags(current *models.SavedPaymentMethod, u models.SavedMethodUpdate) (isDefault, isActive bool) {
	isDefault, isActive = current.IsDefault, current.IsActive
	if u.IsActive != nil {
		isActive = *u.IsActive
	}
	if u.IsDefault != nil {
		isDefault = *u.IsDefault
	}
	if !isActive {
		isDefault = false
	}
	return isDefault, isActive
}

// Update runs under the caller's per-patient lock, so the read of the
// current flags cannot race another default write for the same patient.
func (r *paymentMethodRepository) Update(ctx context.Context, id, patientID primitive.ObjectID, u models.SavedMethodUpdate, now time.Time) (*models.SavedPaymentMethod, error) {
	var updated models.SavedPaymentMethod
	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := r.FindByIDForPatient(ctx, id, patientID)
		if err != nil {
			return err
		}
		isDefault, isActive := nextFlags(current, u)
		if isDefault {
			if err := r.clearOtherDefaults(ctx, patientID, id, now); err != nil {
				return err
			}
		}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		return mapErr(r.coll.FindOneAndUpdate(ctx,
			bson.M{"_id": id, "patientId": patientID},
			bson.M{"$set": bson.M{"isDefault": isDefault, "isActive": isActive, "updatedAt": now}},
			opts).Decode(&updated))
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *paymentMethodRepository) Delete(ctx context.Context, id, patientID primitive.ObjectID) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "patientId": patientID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
