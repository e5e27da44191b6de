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

type userRepository struct {
	coll *mongo.Collection
}

func (r *userRepository) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, u)
	return mapErr(err)
}

func (r *userRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepository) FindByMobile(ctx context.Context, mobile string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"mobile": mobile})
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func userUpdateSet(u models.UserUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Email != nil {
		set["email"] = *u.Email
	}
	if u.DateOfBirth != nil {
		set["dateOfBirth"] = *u.DateOfBirth
	}
	if u.Gender != nil {
		set["gender"] = *u.Gender
	}
	if u.Age != nil {
		set["age"] = *u.Age
	}
	if u.Weight != nil {
		set["weight"] = *u.Weight
	}
	if u.Height != nil {
		set["height"] = *u.Height
	}
	if u.BloodGroup != nil {
		set["bloodGroup"] = *u.BloodGroup
	}
	return set
}

func (r *userRepository) Update(ctx context.Context, id primitive.ObjectID, update models.UserUpdate, now time.Time) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": userUpdateSet(update, now)}, opts).Decode(&u)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}
