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

type appointmentRepository struct {
	coll *mongo.Collection
}

// slotFilter mirrors the partial unique index: only slot-holding documents count.
func slotFilter(slot models.Slot, excludeID primitive.ObjectID) bson.M {
	f := bson.M{
		"consultantId": slot.ConsultantID,
		"date":         slot.Date,
		"time":         slot.Time,
		"holdsSlot":    true,
	}
	if !excludeID.IsZero() {
		f["_id"] = bson.M{"$ne": excludeID}
	}
	return f
}

func bookedFilter(id, patientID primitive.ObjectID) bson.M {
	return bson.M{"_id": id, "patientId": patientID, "status": models.AppointmentBooked}
}

func appointmentChangesSet(c models.AppointmentChanges, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if c.Date != nil {
		set["date"] = *c.Date
	}
	if c.Time != nil {
		set["time"] = *c.Time
	}
	if c.Type != nil {
		set["type"] = *c.Type
	}
	if c.BookingFee != nil {
		set["bookingFee"] = *c.BookingFee
	}
	return set
}

func (r *appointmentRepository) Create(ctx context.Context, a *models.Appointment) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, a)
	return mapErr(err)
}

func (r *appointmentRepository) FindByIDForPatient(ctx context.Context, id, patientID primitive.ObjectID) (*models.Appointment, error) {
	var a models.Appointment
	if err := r.coll.FindOne(ctx, bson.M{"_id": id, "patientId": patientID}).Decode(&a); err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID primitive.ObjectID, status models.AppointmentStatus) ([]*models.Appointment, error) {
	filter := bson.M{"patientId": patientID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "time", Value: -1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []*models.Appointment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *appointmentRepository) SlotTaken(ctx context.Context, slot models.Slot, excludeID primitive.ObjectID) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, slotFilter(slot, excludeID), options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *appointmentRepository) UpdateBooked(ctx context.Context, id, patientID primitive.ObjectID, changes models.AppointmentChanges, now time.Time) (*models.Appointment, error) {
	return r.findAndSet(ctx, bookedFilter(id, patientID), appointmentChangesSet(changes, now))
}

func (r *appointmentRepository) Cancel(ctx context.Context, id, patientID primitive.ObjectID, now time.Time) (*models.Appointment, error) {
	return r.findAndSet(ctx, bookedFilter(id, patientID), bson.M{
		"status":    models.AppointmentCancelled,
		"holdsSlot": models.AppointmentCancelled.HoldsSlot(),
		"updatedAt": now,
	})
}

func (r *appointmentRepository) findAndSet(ctx context.Context, filter, set bson.M) (*models.Appointment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var a models.Appointment
	if err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&a); err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}
