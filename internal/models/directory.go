package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Center struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Address   string             `bson:"address" json:"address"`
	City      string             `bson:"city" json:"city"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type Consultant struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name       string             `bson:"name" json:"name"`
	Specialty  string             `bson:"specialty" json:"specialty"`
	Experience string             `bson:"experience" json:"experience"`
	Rating     float64            `bson:"rating" json:"rating"`
	CenterID   primitive.ObjectID `bson:"centerId" json:"centerId"`
	IsActive   bool               `bson:"isActive" json:"isActive"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ConsultantFilter narrows directory listings. Zero values match everything.
type ConsultantFilter struct {
	CenterID  primitive.ObjectID
	Specialty string
}
