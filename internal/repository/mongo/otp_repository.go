package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"booking-service/internal/models"
	"booking-service/internal/repository"
)

type otpRepository struct {
	coll *mongo.Collection
	tx   transactor
}

func otpActiveFilter(mobile string, now time.Time) bson.M {
	return bson.M{
		"mobile":    mobile,
		"verified":  false,
		"expiresAt": bson.M{"$gt": now},
	}
}

// otpAttemptFilter matches only a challenge that may still take a guess.
func otpAttemptFilter(id primitive.ObjectID, maxAttempts int) bson.M {
	return bson.M{
		"_id":      id,
		"verified": false,
		"attempts": bson.M{"$lt": maxAttempts},
	}
}

func (r *otpRepository) Issue(ctx context.Context, c *models.OTPChallenge) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := r.coll.UpdateMany(ctx,
			bson.M{"mobile": c.Mobile, "verified": false},
			bson.M{"$set": bson.M{"verified": true, "updatedAt": c.CreatedAt}})
		if err != nil {
			return fmt.Errorf("failed to void previous challenges: %w", err)
		}
		if _, err := r.coll.InsertOne(ctx, c); err != nil {
			return fmt.Errorf("failed to insert challenge: %w", mapErr(err))
		}
		return nil
	})
}

func (r *otpRepository) FindActive(ctx context.Context, mobile string, now time.Time) (*models.OTPChallenge, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	var c models.OTPChallenge
	if err := r.coll.FindOne(ctx, otpActiveFilter(mobile, now), opts).Decode(&c); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *otpRepository) IncrementAttempts(ctx context.Context, id primitive.ObjectID, maxAttempts int) (*models.OTPChallenge, error) {
	update := bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c models.OTPChallenge
	if err := r.coll.FindOneAndUpdate(ctx, otpAttemptFilter(id, maxAttempts), update, opts).Decode(&c); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *otpRepository) MarkVerified(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "verified": false},
		bson.M{"$set": bson.M{"verified": true, "updatedAt": now}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
