package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Mobile      string             `bson:"mobile" json:"mobile"`
	Email       string             `bson:"email" json:"email"`
	DateOfBirth *time.Time         `bson:"dateOfBirth,omitempty" json:"dateOfBirth,omitempty"`
	Gender      string             `bson:"gender,omitempty" json:"gender,omitempty"`
	Age         *int               `bson:"age,omitempty" json:"age,omitempty"`
	Weight      *float64           `bson:"weight,omitempty" json:"weight,omitempty"`
	Height      *float64           `bson:"height,omitempty" json:"height,omitempty"`
	BloodGroup  BloodGroup         `bson:"bloodGroup,omitempty" json:"bloodGroup,omitempty"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// UserUpdate carries the profile fields a patient may change. Nil fields are left untouched.
type UserUpdate struct {
	Name        *string
	Email       *string
	DateOfBirth *time.Time
	Gender      *string
	Age         *int
	Weight      *float64
	Height      *float64
	BloodGroup  *BloodGroup
}

// IsEmpty reports whether the update changes nothing.
func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.DateOfBirth == nil && u.Gender == nil &&
		u.Age == nil && u.Weight == nil && u.Height == nil && u.BloodGroup == nil
}

// Apply copies set fields onto user.
func (u UserUpdate) Apply(user *User) {
	if u.Name != nil {
		user.Name = *u.Name
	}
	if u.Email != nil {
		user.Email = *u.Email
	}
	if u.DateOfBirth != nil {
		user.DateOfBirth = u.DateOfBirth
	}
	if u.Gender != nil {
		user.Gender = *u.Gender
	}
	if u.Age != nil {
		user.Age = u.Age
	}
	if u.Weight != nil {
		user.Weight = u.Weight
	}
	if u.Height != nil {
		user.Height = u.Height
	}
	if u.BloodGroup != nil {
		user.BloodGroup = *u.BloodGroup
	}
}
