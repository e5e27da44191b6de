package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Appointment is a patient's booking of a consultant slot.
// HoldsSlot mirrors Status.HoldsSlot() and backs the partial unique index on
// (consultantId, date, time).
type Appointment struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PatientID    primitive.ObjectID `bson:"patientId" json:"patientId"`
	ConsultantID primitive.ObjectID `bson:"consultantId" json:"consultantId"`
	CenterID     primitive.ObjectID `bson:"centerId" json:"centerId"`
	Date         time.Time          `bson:"date" json:"date"`
	Time         string             `bson:"time" json:"time"`
	Type         AppointmentType    `bson:"type" json:"type"`
	Status       AppointmentStatus  `bson:"status" json:"status"`
	HoldsSlot    bool               `bson:"holdsSlot" json:"-"`
	BookingFee   float64            `bson:"bookingFee" json:"bookingFee"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// SetStatus changes the status and keeps HoldsSlot consistent with it.
func (a *Appointment) SetStatus(s AppointmentStatus) {
	a.Status = s
	a.HoldsSlot = s.HoldsSlot()
}

// Slot returns the arbitrated (consultant, date, time) tuple.
func (a *Appointment) Slot() Slot {
	return Slot{ConsultantID: a.ConsultantID, Date: a.Date, Time: a.Time}
}

// Slot identifies one bookable consultant time.
type Slot struct {
	ConsultantID primitive.ObjectID
	Date         time.Time
	Time         string
}

// Key is a stable string form used for lock names.
func (s Slot) Key() string {
	return s.ConsultantID.Hex() + ":" + s.Date.UTC().Format("2006-01-02") + ":" + s.Time
}

// AppointmentChanges carries the mutable fields of a booked appointment.
type AppointmentChanges struct {
	Date       *time.Time
	Time       *string
	Type       *AppointmentType
	BookingFee *float64
}

func (c AppointmentChanges) MovesSlot() bool {
	return c.Date != nil || c.Time != nil
}

// AppointmentView is an appointment with its consultant and center attached.
type AppointmentView struct {
	*Appointment
	Consultant Ref[Consultant] `json:"consultant"`
	Center     Ref[Center]     `json:"center"`
}
