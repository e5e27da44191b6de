package models

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ref is a related entity that is either only referenced by id or already
// resolved. Callers branch on IsResolved instead of inspecting field shapes.
type Ref[T any] struct {
	ID    primitive.ObjectID
	value *T
}

func Reference[T any](id primitive.ObjectID) Ref[T] {
	return Ref[T]{ID: id}
}

func Resolved[T any](id primitive.ObjectID, v *T) Ref[T] {
	return Ref[T]{ID: id, value: v}
}

func (r Ref[T]) IsResolved() bool {
	return r.value != nil
}

// Value returns the resolved entity, or nil for a bare reference.
func (r Ref[T]) Value() *T {
	return r.value
}

// MarshalJSON emits the entity when resolved and {"id": ...} otherwise.
func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.value != nil {
		return json.Marshal(r.value)
	}
	return json.Marshal(struct {
		ID string `json:"id"`
	}{ID: r.ID.Hex()})
}
