package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EncryptedField is an envelope-encrypted value: the ciphertext plus the
// wrapped data key that decrypts it.
type EncryptedField struct {
	Value        string    `bson:"value" json:"-"`
	EncryptedDEK string    `bson:"encryptedDek" json:"-"`
	KeyID        string    `bson:"keyId" json:"-"`
	Version      string    `bson:"version" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"-"`
}

// SavedPaymentMethod is a patient's reusable instrument. UPIID is only
// populated after decryption and is never persisted in clear.
type SavedPaymentMethod struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PatientID      primitive.ObjectID `bson:"patientId" json:"patientId"`
	Type           SavedMethodType    `bson:"type" json:"type"`
	Last4          string             `bson:"last4,omitempty" json:"last4,omitempty"`
	BankName       string             `bson:"bankName,omitempty" json:"bankName,omitempty"`
	CardBrand      CardBrand          `bson:"cardBrand,omitempty" json:"cardBrand,omitempty"`
	UPIID          string             `bson:"-" json:"upiId,omitempty"`
	UPIIDEncrypted *EncryptedField    `bson:"upiIdEncrypted,omitempty" json:"-"`
	IsDefault      bool               `bson:"isDefault" json:"isDefault"`
	IsActive       bool               `bson:"isActive" json:"isActive"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// SavedMethodUpdate carries the mutable flags of a saved method.
type SavedMethodUpdate struct {
	IsDefault *bool
	IsActive  *bool
}
