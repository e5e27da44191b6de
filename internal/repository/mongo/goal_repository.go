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

type goalRepository struct {
	coll *mongo.Collection
}

func goalChangesSet(c models.GoalChanges, now time.Time) bson.M {
	set := bson.M{"lastUpdated": now, "updatedAt": now}
	if c.Name != nil {
		set["name"] = *c.Name
	}
	if c.Progress != nil {
		set["progress"] = *c.Progress
	}
	if c.Current != nil {
		set["current"] = *c.Current
	}
	if c.Target != nil {
		set["target"] = *c.Target
	}
	if c.LatestAchievement != nil {
		set["latestAchievement"] = *c.LatestAchievement
	}
	if c.Status != nil {
		set["status"] = *c.Status
	}
	return set
}

func (r *goalRepository) Create(ctx context.Context, g *models.Goal) error {
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, g)
	return mapErr(err)
}

func (r *goalRepository) FindByIDForPatient(ctx context.Context, id, patientID primitive.ObjectID) (*models.Goal, error) {
	var g models.Goal
	if err := r.coll.FindOne(ctx, bson.M{"_id": id, "patientId": patientID}).Decode(&g); err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}

func (r *goalRepository) ListForPatient(ctx context.Context, patientID primitive.ObjectID, status models.GoalStatus) ([]*models.Goal, error) {
	filter := bson.M{"patientId": patientID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []*models.Goal
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *goalRepository) Update(ctx context.Context, id, patientID primitive.ObjectID, changes models.GoalChanges, now time.Time) (*models.Goal, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var g models.Goal
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "patientId": patientID},
		bson.M{"$set": goalChangesSet(changes, now)},
		opts).Decode(&g)
	if err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}

func (r *goalRepository) Delete(ctx context.Context, id, patientID primitive.ObjectID) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "patientId": patientID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
