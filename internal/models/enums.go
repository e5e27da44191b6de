package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// enumCodec is the single translation table between the stored value of an
// enum and its wire spelling. Construction panics on a non-bijective table.
type enumCodec[T ~string] struct {
	name     string
	toWire   map[T]string
	fromWire map[string]T
}

func newEnumCodec[T ~string](name string, table map[T]string) *enumCodec[T] {
	c := &enumCodec[T]{
		name:     name,
		toWire:   make(map[T]string, len(table)),
		fromWire: make(map[string]T, len(table)),
	}
	for stored, wire := range table {
		if _, dup := c.fromWire[wire]; dup {
			panic(fmt.Sprintf("models: duplicate wire value %q for %s", wire, name))
		}
		c.toWire[stored] = wire
		c.fromWire[wire] = stored
	}
	return c
}

func (c *enumCodec[T]) wire(v T) (string, bool) {
	w, ok := c.toWire[v]
	return w, ok
}

func (c *enumCodec[T]) parse(wire string) (T, error) {
	if v, ok := c.fromWire[wire]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", c.name, wire)
}

func (c *enumCodec[T]) values() []T {
	out := make([]T, 0, len(c.toWire))
	for v := range c.toWire {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *enumCodec[T]) marshal(v T) ([]byte, error) {
	if v == "" {
		return []byte("null"), nil
	}
	w, ok := c.toWire[v]
	if !ok {
		return nil, fmt.Errorf("models: %s %q has no wire value", c.name, string(v))
	}
	return json.Marshal(w)
}

func (c *enumCodec[T]) unmarshal(data []byte, v *T) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid %s: %w", c.name, err)
	}
	parsed, err := c.parse(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// -------------------- Appointments --------------------

type AppointmentType string

const (
	AppointmentInPerson AppointmentType = "in-person"
	AppointmentOnline   AppointmentType = "online"
)

type AppointmentStatus string

const (
	AppointmentBooked    AppointmentStatus = "booked"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

var appointmentTypeCodec = newEnumCodec("appointment type", map[AppointmentType]string{
	AppointmentInPerson: "IN_PERSON",
	AppointmentOnline:   "ONLINE",
})

var appointmentStatusCodec = newEnumCodec("appointment status", map[AppointmentStatus]string{
	AppointmentBooked:    "BOOKED",
	AppointmentCompleted: "COMPLETED",
	AppointmentCancelled: "CANCELLED",
})

func ParseAppointmentType(s string) (AppointmentType, error) { return appointmentTypeCodec.parse(s) }
func AppointmentTypes() []AppointmentType { return appointmentTypeCodec.values() }
func (t AppointmentType) Wire() string { w, _ := appointmentTypeCodec.wire(t); return w }
func (t AppointmentType) MarshalJSON() ([]byte, error) { return appointmentTypeCodec.marshal(t) }
func (t *AppointmentType) UnmarshalJSON(b []byte) error { return appointmentTypeCodec.unmarshal(b, t) }

func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	return appointmentStatusCodec.parse(s)
}
func AppointmentStatuses() []AppointmentStatus { return appointmentStatusCodec.values() }
func (s AppointmentStatus) Wire() string { w, _ := appointmentStatusCodec.wire(s); return w }
func (s AppointmentStatus) MarshalJSON() ([]byte, error) { return appointmentStatusCodec.marshal(s) }
func (s *AppointmentStatus) UnmarshalJSON(b []byte) error { return appointmentStatusCodec.unmarshal(b, s) }

// HoldsSlot reports whether an appointment in this status occupies its slot.
func (s AppointmentStatus) HoldsSlot() bool {
	return s == AppointmentBooked || s == AppointmentCompleted
}

// -------------------- Payments --------------------

type PaymentMethod string

const (
	MethodCard       PaymentMethod = "card"
	MethodUPI        PaymentMethod = "upi"
	MethodNetbanking PaymentMethod = "netbanking"
	MethodWallet     PaymentMethod = "wallet"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

var paymentMethodCodec = newEnumCodec("payment method", map[PaymentMethod]string{
	MethodCard:       "CARD",
	MethodUPI:        "UPI",
	MethodNetbanking: "NETBANKING",
	MethodWallet:     "WALLET",
})

var paymentStatusCodec = newEnumCodec("payment status", map[PaymentStatus]string{
	PaymentPending:   "PENDING",
	PaymentCompleted: "COMPLETED",
	PaymentFailed:    "FAILED",
	PaymentRefunded:  "REFUNDED",
})

func ParsePaymentMethod(s string) (PaymentMethod, error) { return paymentMethodCodec.parse(s) }
func PaymentMethods() []PaymentMethod { return paymentMethodCodec.values() }
func (m PaymentMethod) Wire() string { w, _ := paymentMethodCodec.wire(m); return w }
func (m PaymentMethod) MarshalJSON() ([]byte, error) { return paymentMethodCodec.marshal(m) }
func (m *PaymentMethod) UnmarshalJSON(b []byte) error { return paymentMethodCodec.unmarshal(b, m) }

func ParsePaymentStatus(s string) (PaymentStatus, error) { return paymentStatusCodec.parse(s) }
func PaymentStatuses() []PaymentStatus { return paymentStatusCodec.values() }
func (s PaymentStatus) Wire() string { w, _ := paymentStatusCodec.wire(s); return w }
func (s PaymentStatus) MarshalJSON() ([]byte, error) { return paymentStatusCodec.marshal(s) }
func (s *PaymentStatus) UnmarshalJSON(b []byte) error { return paymentStatusCodec.unmarshal(b, s) }

// paymentEdges is the complete transition relation.
var paymentEdges = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed},
	PaymentCompleted: {PaymentRefunded},
}

// CanTransition reports whether from -> to is an edge of the payment state machine.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, next := range paymentEdges[s] {
		if next == to {
			return true
		}
	}
	return false
}

// -------------------- Saved methods --------------------

type SavedMethodType string

const (
	SavedCard SavedMethodType = "card"
	SavedUPI  SavedMethodType = "upi"
	SavedBank SavedMethodType = "bank"
)

type CardBrand string

const (
	BrandVisa       CardBrand = "visa"
	BrandMastercard CardBrand = "mastercard"
	BrandRupay      CardBrand = "rupay"
	BrandAmex       CardBrand = "amex"
)

var savedMethodTypeCodec = newEnumCodec("payment method type", map[SavedMethodType]string{
	SavedCard: "CARD",
	SavedUPI:  "UPI",
	SavedBank: "BANK",
})

var cardBrandCodec = newEnumCodec("card brand", map[CardBrand]string{
	BrandVisa:       "VISA",
	BrandMastercard: "MASTERCARD",
	BrandRupay:      "RUPAY",
	BrandAmex:       "AMEX",
})

func ParseSavedMethodType(s string) (SavedMethodType, error) { return savedMethodTypeCodec.parse(s) }
func SavedMethodTypes() []SavedMethodType { return savedMethodTypeCodec.values() }
func (t SavedMethodType) Wire() string { w, _ := savedMethodTypeCodec.wire(t); return w }
func (t SavedMethodType) MarshalJSON() ([]byte, error) { return savedMethodTypeCodec.marshal(t) }
func (t *SavedMethodType) UnmarshalJSON(b []byte) error { return savedMethodTypeCodec.unmarshal(b, t) }

func ParseCardBrand(s string) (CardBrand, error) { return cardBrandCodec.parse(s) }
func CardBrands() []CardBrand { return cardBrandCodec.values() }
func (b CardBrand) Wire() string { w, _ := cardBrandCodec.wire(b); return w }
func (b CardBrand) MarshalJSON() ([]byte, error) { return cardBrandCodec.marshal(b) }
func (b *CardBrand) UnmarshalJSON(data []byte) error { return cardBrandCodec.unmarshal(data, b) }

// -------------------- Profile --------------------

type BloodGroup string

var bloodGroupCodec = newEnumCodec("blood group", map[BloodGroup]string{
	"A+":  "A_POSITIVE",
	"A-":  "A_NEGATIVE",
	"B+":  "B_POSITIVE",
	"B-":  "B_NEGATIVE",
	"AB+": "AB_POSITIVE",
	"AB-": "AB_NEGATIVE",
	"O+":  "O_POSITIVE",
	"O-":  "O_NEGATIVE",
})

func ParseBloodGroup(s string) (BloodGroup, error) { return bloodGroupCodec.parse(s) }
func BloodGroups() []BloodGroup { return bloodGroupCodec.values() }
func (g BloodGroup) Wire() string { w, _ := bloodGroupCodec.wire(g); return w }
func (g BloodGroup) MarshalJSON() ([]byte, error) { return bloodGroupCodec.marshal(g) }
func (g *BloodGroup) UnmarshalJSON(b []byte) error { return bloodGroupCodec.unmarshal(b, g) }

// -------------------- Goals --------------------

type GoalPriority string

const (
	GoalHigh   GoalPriority = "high"
	GoalMedium GoalPriority = "medium"
	GoalLow    GoalPriority = "low"
)

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
)

var goalPriorityCodec = newEnumCodec("goal priority", map[GoalPriority]string{
	GoalHigh:   "HIGH",
	GoalMedium: "MEDIUM",
	GoalLow:    "LOW",
})

var goalStatusCodec = newEnumCodec("goal status", map[GoalStatus]string{
	GoalActive:    "ACTIVE",
	GoalCompleted: "COMPLETED",
})

func ParseGoalPriority(s string) (GoalPriority, error) { return goalPriorityCodec.parse(s) }
func GoalPriorities() []GoalPriority { return goalPriorityCodec.values() }
func (p GoalPriority) Wire() string { w, _ := goalPriorityCodec.wire(p); return w }
func (p GoalPriority) MarshalJSON() ([]byte, error) { return goalPriorityCodec.marshal(p) }
func (p *GoalPriority) UnmarshalJSON(b []byte) error { return goalPriorityCodec.unmarshal(b, p) }

func ParseGoalStatus(s string) (GoalStatus, error) { return goalStatusCodec.parse(s) }
func GoalStatuses() []GoalStatus { return goalStatusCodec.values() }
func (s GoalStatus) Wire() string { w, _ := goalStatusCodec.wire(s); return w }
func (s GoalStatus) MarshalJSON() ([]byte, error) { return goalStatusCodec.marshal(s) }
func (s *GoalStatus) UnmarshalJSON(b []byte) error { return goalStatusCodec.unmarshal(b, s) }
