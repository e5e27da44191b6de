package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OTPChallenge is a time-boxed passcode issued to a mobile number. Only the
// Argon2id hash of the code is stored.
type OTPChallenge struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Mobile        string             `bson:"mobile" json:"mobile"`
	CodeHash      string             `bson:"codeHash" json:"-"`
	CodeSalt      string             `bson:"codeSalt" json:"-"`
	PepperVersion int                `bson:"pepperVersion" json:"-"`
	ExpiresAt     time.Time          `bson:"expiresAt" json:"expiresAt"`
	Verified      bool               `bson:"verified" json:"verified"`
	Attempts      int                `bson:"attempts" json:"attempts"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsActive reports whether the challenge can still be verified at now.
func (c *OTPChallenge) IsActive(now time.Time) bool {
	return !c.Verified && now.Before(c.ExpiresAt)
}
