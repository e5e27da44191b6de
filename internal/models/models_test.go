package models

import (
	"encoding/json"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEnumTablesRoundTrip(t *testing.T) {
	t.Parallel()

	for _, m := range PaymentMethods() {
		got, err := ParsePaymentMethod(m.Wire())
		if err != nil || got != m {
			t.Errorf("Expected %s to round trip, got %s (%v)", m, got, err)
		}
	}
	for _, s := range PaymentStatuses() {
		if got, err := ParsePaymentStatus(s.Wire()); err != nil || got != s {
			t.Errorf("Expected %s to round trip, got %s (%v)", s, got, err)
		}
	}
	for _, tp := range AppointmentTypes() {
		if got, err := ParseAppointmentType(tp.Wire()); err != nil || got != tp {
			t.Errorf("Expected %s to round trip, got %s (%v)", tp, got, err)
		}
	}
	for _, s := range AppointmentStatuses() {
		if got, err := ParseAppointmentStatus(s.Wire()); err != nil || got != s {
			t.Errorf("Expected %s to round trip, got %s (%v)", s, got, err)
		}
	}
	for _, tp := range SavedMethodTypes() {
		if got, err := ParseSavedMethodType(tp.Wire()); err != nil || got != tp {
			t.Errorf("Expected %s to round trip, got %s (%v)", tp, got, err)
		}
	}
	for _, b := range CardBrands() {
		if got, err := ParseCardBrand(b.Wire()); err != nil || got != b {
			t.Errorf("Expected %s to round trip, got %s (%v)", b, got, err)
		}
	}
	for _, p := range GoalPriorities() {
		if got, err := ParseGoalPriority(p.Wire()); err != nil || got != p {
			t.Errorf("Expected %s to round trip, got %s (%v)", p, got, err)
		}
	}
	for _, s := range GoalStatuses() {
		if got, err := ParseGoalStatus(s.Wire()); err != nil || got != s {
			t.Errorf("Expected %s to round trip, got %s (%v)", s, got, err)
		}
	}
	if len(BloodGroups()) != 8 {
		t.Errorf("Expected 8 blood groups, got %d", len(BloodGroups()))
	}
}

func TestEnumTablesAreExhaustive(t *testing.T) {
	t.Parallel()

	methods := []PaymentMethod{MethodCard, MethodUPI, MethodNetbanking, MethodWallet}
	if len(PaymentMethods()) != len(methods) {
		t.Fatalf("Expected %d payment methods in table, got %d", len(methods), len(PaymentMethods()))
	}
	for _, m := range methods {
		if m.Wire() == "" {
			t.Errorf("Expected wire value for %s", m)
		}
	}
	statuses := []PaymentStatus{PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded}
	for _, s := range statuses {
		if s.Wire() == "" {
			t.Errorf("Expected wire value for %s", s)
		}
	}
}

func TestEnumJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(struct {
		Type AppointmentType `json:"type"`
	}{AppointmentInPerson})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(b) != `{"type":"IN_PERSON"}` {
		t.Errorf("Expected wire spelling, got %s", b)
	}

	var in struct {
		Method PaymentMethod `json:"method"`
	}
	if err := json.Unmarshal([]byte(`{"method":"NETBANKING"}`), &in); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if in.Method != MethodNetbanking {
		t.Errorf("Expected netbanking, got %s", in.Method)
	}
	if err := json.Unmarshal([]byte(`{"method":"cash"}`), &in); err == nil {
		t.Error("Expected error for unknown method")
	}
}

func TestPaymentTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentPending, PaymentCompleted, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentCompleted, PaymentRefunded, true},
		{PaymentPending, PaymentRefunded, false},
		{PaymentRefunded, PaymentPending, false},
		{PaymentFailed, PaymentCompleted, false},
		{PaymentCompleted, PaymentPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestAppointmentSetStatusTracksSlot(t *testing.T) {
	t.Parallel()

	a := &Appointment{}
	a.SetStatus(AppointmentBooked)
	if !a.HoldsSlot {
		t.Error("Expected booked appointment to hold its slot")
	}
	a.SetStatus(AppointmentCancelled)
	if a.HoldsSlot {
		t.Error("Expected cancelled appointment to release its slot")
	}
	a.SetStatus(AppointmentCompleted)
	if !a.HoldsSlot {
		t.Error("Expected completed appointment to hold its slot")
	}
}

func TestRefJSON(t *testing.T) {
	t.Parallel()

	id := primitive.NewObjectID()
	ref := Reference[Center](id)
	b, _ := json.Marshal(ref)
	if string(b) != `{"id":"`+id.Hex()+`"}` {
		t.Errorf("Expected bare reference, got %s", b)
	}

	resolved := Resolved(id, &Center{ID: id, Name: "Indiranagar"})
	if !resolved.IsResolved() {
		t.Fatal("Expected resolved ref")
	}
	var out map[string]interface{}
	b, _ = json.Marshal(resolved)
	_ = json.Unmarshal(b, &out)
	if out["name"] != "Indiranagar" {
		t.Errorf("Expected resolved center name, got %v", out["name"])
	}
}

func TestPaymentStatsAdd(t *testing.T) {
	t.Parallel()

	var s PaymentStats
	for _, p := range []*Payment{
		{Amount: 500, Status: PaymentCompleted},
		{Amount: 200, Status: PaymentPending},
		{Amount: 100, Status: PaymentFailed},
		{Amount: 50, Status: PaymentRefunded},
	} {
		s.Add(p)
	}
	if s.TotalPaid != 500 || s.TotalPending != 200 || s.TotalFailed != 100 || s.PaymentCount != 4 {
		t.Errorf("Unexpected stats: %+v", s)
	}
}

func TestSlotKey(t *testing.T) {
	t.Parallel()

	id, _ := primitive.ObjectIDFromHex("65f000000000000000000001")
	s := Slot{ConsultantID: id, Date: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), Time: "10:00"}
	if s.Key() != "65f000000000000000000001:2025-05-01:10:00" {
		t.Errorf("Unexpected slot key %s", s.Key())
	}
}
