// Package memory is an in-process Store used by tests and by local runs with
// USE_MEMORY_STORE. A single mutex makes every method atomic, which gives the
// same guarantees the Mongo indexes and conditional updates give in production.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu sync.RWMutex

	otps           []*models.OTPChallenge
	users          map[primitive.ObjectID]*models.User
	centers        map[primitive.ObjectID]*models.Center
	consultants    map[primitive.ObjectID]*models.Consultant
	appointments   map[primitive.ObjectID]*models.Appointment
	payments       map[primitive.ObjectID]*models.Payment
	paymentMethods map[primitive.ObjectID]*models.SavedPaymentMethod
	goals          map[primitive.ObjectID]*models.Goal

	// seq breaks createdAt ties so "newest" is deterministic.
	seq   int64
	order map[primitive.ObjectID]int64
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		users:          make(map[primitive.ObjectID]*models.User),
		centers:        make(map[primitive.ObjectID]*models.Center),
		consultants:    make(map[primitive.ObjectID]*models.Consultant),
		appointments:   make(map[primitive.ObjectID]*models.Appointment),
		payments:       make(map[primitive.ObjectID]*models.Payment),
		paymentMethods: make(map[primitive.ObjectID]*models.SavedPaymentMethod),
		goals:          make(map[primitive.ObjectID]*models.Goal),
		order:          make(map[primitive.ObjectID]int64),
	}
}

func (s *Store) OTPs() repository.OTPRepository { return otpRepo{s} }
func (s *Store) Users() repository.UserRepository { return userRepo{s} }
func (s *Store) Directory() repository.DirectoryRepository { return directoryRepo{s} }
func (s *Store) Appointments() repository.AppointmentRepository { return appointmentRepo{s} }
func (s *Store) Payments() repository.PaymentRepository { return paymentRepo{s} }
func (s *Store) PaymentMethods() repository.PaymentMethodRepository { return paymentMethodRepo{s} }
func (s *Store) Goals() repository.GoalRepository { return goalRepo{s} }

func (s *Store) HealthCheck(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close(ctx context.Context) error { return nil }

// assign gives a new document an id and an insertion rank. Caller holds mu.
func (s *Store) assign(id *primitive.ObjectID) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
	s.seq++
	s.order[*id] = s.seq
}

// newer orders by createdAt desc, then insertion desc.
func (s *Store) newer(a, b primitive.ObjectID, at, bt time.Time) bool {
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return s.order[a] > s.order[b]
}

// ==============================
// OTP challenges
// ==============================

type otpRepo struct{ s *Store }

func (r otpRepo) Issue(ctx context.Context, c *models.OTPChallenge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.otps[:0]
	for _, existing := range r.s.otps {
		if !existing.ExpiresAt.After(c.CreatedAt) {
			delete(r.s.order, existing.ID)
			continue
		}
		if existing.Mobile == c.Mobile && !existing.Verified {
			existing.Verified = true
			existing.UpdatedAt = c.CreatedAt
		}
		kept = append(kept, existing)
	}
	clear(r.s.otps[len(kept):])
	r.s.otps = kept
	r.s.assign(&c.ID)
	cp := *c
	r.s.otps = append(r.s.otps, &cp)
	return nil
}

func (r otpRepo) FindActive(ctx context.Context, mobile string, now time.Time) (*models.OTPChallenge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var best *models.OTPChallenge
	for _, c := range r.s.otps {
		if c.Mobile != mobile || !c.IsActive(now) {
			continue
		}
		if best == nil || r.s.newer(c.ID, best.ID, c.CreatedAt, best.CreatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r otpRepo) IncrementAttempts(ctx context.Context, id primitive.ObjectID, maxAttempts int) (*models.OTPChallenge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.otps {
		if c.ID != id {
			continue
		}
		if c.Verified || c.Attempts >= maxAttempts {
			return nil, repository.ErrNotFound
		}
		c.Attempts++
		cp := *c
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (r otpRepo) MarkVerified(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.otps {
		if c.ID == id && !c.Verified {
			c.Verified = true
			c.UpdatedAt = now
			return nil
		}
	}
	return repository.ErrNotFound
}

// Challenges returns a snapshot of every stored challenge for mobile, oldest first.
func (s *Store) Challenges(mobile string) []models.OTPChallenge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.OTPChallenge
	for _, c := range s.otps {
		if c.Mobile == mobile {
			out = append(out, *c)
		}
	}
	return out
}

// ==============================
// Users
// ==============================

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Mobile == u.Mobile || (u.Email != "" && strings.EqualFold(existing.Email, u.Email)) {
			return repository.ErrDuplicate
		}
	}
	r.s.assign(&u.ID)
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r userRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) FindByMobile(ctx context.Context, mobile string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Mobile == mobile {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) Update(ctx context.Context, id primitive.ObjectID, update models.UserUpdate, now time.Time) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.Email != nil {
		for otherID, other := range r.s.users {
			if otherID != id && *update.Email != "" && strings.EqualFold(other.Email, *update.Email) {
				return nil, repository.ErrDuplicate
			}
		}
	}
	update.Apply(u)
	u.UpdatedAt = now
	cp := *u
	return &cp, nil
}

// ==============================
// Directory
// ==============================

type directoryRepo struct{ s *Store }

func (r directoryRepo) ListCenters(ctx context.Context, city string) ([]*models.Center, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Center
	for _, c := range r.s.centers {
		if !c.IsActive || (city != "" && c.City != city) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r directoryRepo) FindCenter(ctx context.Context, id primitive.ObjectID) (*models.Center, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.centers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r directoryRepo) ListConsultants(ctx context.Context, filter models.ConsultantFilter) ([]*models.Consultant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Consultant
	for _, c := range r.s.consultants {
		if !c.IsActive {
			continue
		}
		if !filter.CenterID.IsZero() && c.CenterID != filter.CenterID {
			continue
		}
		if filter.Specialty != "" && c.Specialty != filter.Specialty {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r directoryRepo) FindConsultant(ctx context.Context, id primitive.ObjectID) (*models.Consultant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.consultants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r directoryRepo) SearchConsultants(ctx context.Context, text string, limit int) ([]*models.Consultant, error) {
	all, err := r.ListConsultants(ctx, models.ConsultantFilter{})
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(text))
	var out []*models.Consultant
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), needle) || strings.Contains(strings.ToLower(c.Specialty), needle) {
			out = append(out, c)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r directoryRepo) SaveCenter(ctx context.Context, c *models.Center) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.centers[c.ID]; !exists {
		r.s.assign(&c.ID)
	}
	cp := *c
	r.s.centers[c.ID] = &cp
	return nil
}

func (r directoryRepo) SaveConsultant(ctx context.Context, c *models.Consultant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.consultants[c.ID]; !exists {
		r.s.assign(&c.ID)
	}
	cp := *c
	r.s.consultants[c.ID] = &cp
	return nil
}

// ==============================
// Appointments
// ==============================

type appointmentRepo struct{ s *Store }

// slotHolder returns the slot-holding appointment for slot, skipping excludeID. Caller holds mu.
func (s *Store) slotHolder(slot models.Slot, excludeID primitive.ObjectID) *models.Appointment {
	for id, a := range s.appointments {
		if id == excludeID || !a.HoldsSlot {
			continue
		}
		if a.ConsultantID == slot.ConsultantID && a.Date.Equal(slot.Date) && a.Time == slot.Time {
			return a
		}
	}
	return nil
}

func (r appointmentRepo) Create(ctx context.Context, a *models.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if a.HoldsSlot && r.s.slotHolder(a.Slot(), primitive.NilObjectID) != nil {
		return repository.ErrDuplicate
	}
	r.s.assign(&a.ID)
	cp := *a
	r.s.appointments[a.ID] = &cp
	return nil
}

func (r appointmentRepo) FindByIDForPatient(ctx context.Context, id, patientID primitive.ObjectID) (*models.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.appointments[id]
	if !ok || a.PatientID != patientID {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r appointmentRepo) ListByPatient(ctx context.Context, patientID primitive.ObjectID, status models.AppointmentStatus) ([]*models.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Appointment
	for _, a := range r.s.appointments {
		if a.PatientID != patientID || (status != "" && a.Status != status) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Time > out[j].Time
	})
	return out, nil
}

func (r appointmentRepo) SlotTaken(ctx context.Context, slot models.Slot, excludeID primitive.ObjectID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.slotHolder(slot, excludeID) != nil, nil
}

func (r appointmentRepo) UpdateBooked(ctx context.Context, id, patientID primitive.ObjectID, changes models.AppointmentChanges, now time.Time) (*models.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.appointments[id]
	if !ok || a.PatientID != patientID || a.Status != models.AppointmentBooked {
		return nil, repository.ErrNotFound
	}
	next := *a
	if changes.Date != nil {
		next.Date = *changes.Date
	}
	if changes.Time != nil {
		next.Time = *changes.Time
	}
	if changes.Type != nil {
		next.Type = *changes.Type
	}
	if changes.BookingFee != nil {
		next.BookingFee = *changes.BookingFee
	}
	if changes.MovesSlot() && r.s.slotHolder(next.Slot(), id) != nil {
		return nil, repository.ErrDuplicate
	}
	next.UpdatedAt = now
	*a = next
	cp := next
	return &cp, nil
}

func (r appointmentRepo) Cancel(ctx context.Context, id, patientID primitive.ObjectID, now time.Time) (*models.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.appointments[id]
	if !ok || a.PatientID != patientID || a.Status != models.AppointmentBooked {
		return nil, repository.ErrNotFound
	}
	a.SetStatus(models.AppointmentCancelled)
	a.UpdatedAt = now
	cp := *a
	return &cp, nil
}

// ==============================
// Payments
// ==============================

type paymentRepo struct{ s *Store }

func (r paymentRepo) Create(ctx context.Context, p *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.payments {
		if existing.GatewayOrderID == p.GatewayOrderID {
			return repository.ErrDuplicate
		}
	}
	r.s.assign(&p.ID)
	cp := *p
	r.s.payments[p.ID] = &cp
	return nil
}

func (r paymentRepo) FindByIDForPatient(ctx context.Context, id, patientID primitive.ObjectID) (*models.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.payments[id]
	if !ok || p.PatientID != patientID {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r paymentRepo) FindByOrderForPatient(ctx context.Context, orderID string, patientID primitive.ObjectID) (*models.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.payments {
		if p.GatewayOrderID == orderID && p.PatientID == patientID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r paymentRepo) ListByPatient(ctx context.Context, patientID primitive.ObjectID, status models.PaymentStatus) ([]*models.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Payment
	for _, p := range r.s.payments {
		if p.PatientID != patientID || (status != "" && p.Status != status) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.newer(out[i].ID, out[j].ID, out[i].CreatedAt, out[j].CreatedAt)
	})
	return out, nil
}

func (r paymentRepo) Transition(ctx context.Context, id primitive.ObjectID, t models.PaymentTransition) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.payments[id]
	if !ok || p.Status != t.From {
		return nil, repository.ErrNotFound
	}
	t.Apply(p)
	cp := *p
	return &cp, nil
}

// ==============================
// Saved payment methods
// ==============================

type paymentMethodRepo struct{ s *Store }

// clearDefaults unsets isDefault on the patient's other methods. Caller holds mu.
func (s *Store) clearDefaults(patientID, keepID primitive.ObjectID, now time.Time) {
	for id, m := range s.paymentMethods {
		if id != keepID && m.PatientID == patientID && m.IsDefault {
			m.IsDefault = false
			m.UpdatedAt = now
		}
	}
}

func (r paymentMethodRepo) Create(ctx context.Context, m *models.SavedPaymentMethod) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.assign(&m.ID)
	if m.IsDefault {
		r.s.clearDefaults(m.PatientID, m.ID, m.CreatedAt)
	}
	cp := *m
	cp.UPIID = ""
	r.s.paymentMethods[m.ID] = &cp
	return nil
}

func (r paymentMethodRepo) FindByIDForPatient(ctx context.Context, id, patientID primitive.ObjectID) (*models.SavedPaymentMethod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.paymentMethods[id]
	if !ok || m.PatientID != patientID {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r paymentMethodRepo) ListActive(ctx context.Context, patientID primitive.ObjectID) ([]*models.SavedPaymentMethod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.SavedPaymentMethod
	for _, m := range r.s.paymentMethods {
		if m.PatientID == patientID && m.IsActive {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return r.s.newer(out[i].ID, out[j].ID, out[i].CreatedAt, out[j].CreatedAt)
	})
	return out, nil
}

func (r paymentMethodRepo) Update(ctx context.Context, id, patientID primitive.ObjectID, u models.SavedMethodUpdate, now time.Time) (*models.SavedPaymentMethod, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.paymentMethods[id]
	if !ok || m.PatientID != patientID {
		return nil, repository.ErrNotFound
	}
	if u.IsActive != nil {
		m.IsActive = *u.IsActive
	}
	if u.IsDefault != nil {
		m.IsDefault = *u.IsDefault
	}
	if !m.IsActive {
		m.IsDefault = false
	}
	if m.IsDefault {
		r.s.clearDefaults(patientID, id, now)
	}
	m.UpdatedAt = now
	cp := *m
	return &cp, nil
}

func (r paymentMethodRepo) Delete(ctx context.Context, id, patientID primitive.ObjectID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.paymentMethods[id]
	if !ok || m.PatientID != patientID {
		return false, nil
	}
	delete(r.s.paymentMethods, id)
	delete(r.s.order, id)
	return true, nil
}

// ==============================
// Goals
// ==============================

type goalRepo struct{ s *Store }

func (r goalRepo) Create(ctx context.Context, g *models.Goal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.assign(&g.ID)
	cp := *g
	r.s.goals[g.ID] = &cp
	return nil
}

func (r goalRepo) FindByIDForPatient(ctx context.Context, id, patientID primitive.ObjectID) (*models.Goal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	g, ok := r.s.goals[id]
	if !ok || g.PatientID != patientID {
		return nil, repository.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (r goalRepo) ListForPatient(ctx context.Context, patientID primitive.ObjectID, status models.GoalStatus) ([]*models.Goal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Goal
	for _, g := range r.s.goals {
		if g.PatientID != patientID || (status != "" && g.Status != status) {
			continue
		}
		cp := *g
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.newer(out[i].ID, out[j].ID, out[i].CreatedAt, out[j].CreatedAt)
	})
	return out, nil
}

func (r goalRepo) Update(ctx context.Context, id, patientID primitive.ObjectID, changes models.GoalChanges, now time.Time) (*models.Goal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.goals[id]
	if !ok || g.PatientID != patientID {
		return nil, repository.ErrNotFound
	}
	changes.Apply(g)
	g.LastUpdated = now
	g.UpdatedAt = now
	cp := *g
	return &cp, nil
}

func (r goalRepo) Delete(ctx context.Context, id, patientID primitive.ObjectID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.goals[id]
	if !ok || g.PatientID != patientID {
		return false, nil
	}
	delete(r.s.goals, id)
	delete(r.s.order, id)
	return true, nil
}
