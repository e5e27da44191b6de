package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var testNow = time.Date(2025, 4, 30, 9, 0, 0, 0, time.UTC)

func TestOTPIssueVoidsPrevious(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	first := &models.OTPChallenge{Mobile: "9876500001", ExpiresAt: testNow.Add(5 * time.Minute), CreatedAt: testNow}
	second := &models.OTPChallenge{Mobile: "9876500001", ExpiresAt: testNow.Add(5 * time.Minute), CreatedAt: testNow}
	if err := s.OTPs().Issue(ctx, first); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := s.OTPs().Issue(ctx, second); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	active, err := s.OTPs().FindActive(ctx, "9876500001", testNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if active.ID != second.ID {
		t.Errorf("Expected newest challenge %s to be active, got %s", second.ID.Hex(), active.ID.Hex())
	}

	all := s.Challenges("9876500001")
	if len(all) != 2 || !all[0].Verified {
		t.Errorf("Expected first challenge to be voided, got %+v", all)
	}
}

func TestOTPFindActiveIgnoresExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	c := &models.OTPChallenge{Mobile: "9876500002", ExpiresAt: testNow.Add(time.Minute), CreatedAt: testNow}
	_ = s.OTPs().Issue(ctx, c)

	if _, err := s.OTPs().FindActive(ctx, "9876500002", testNow.Add(2*time.Minute)); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for expired challenge, got %v", err)
	}
}

func TestOTPIncrementAttemptsIsCapped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	c := &models.OTPChallenge{Mobile: "9876500003", ExpiresAt: testNow.Add(time.Minute), CreatedAt: testNow}
	_ = s.OTPs().Issue(ctx, c)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.OTPs().IncrementAttempts(ctx, c.ID, 5); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 {
		t.Errorf("Expected exactly 5 increments, got %d", succeeded)
	}
	if got := s.Challenges("9876500003")[0].Attempts; got != 5 {
		t.Errorf("Expected attempts 5, got %d", got)
	}
}

func TestOTPMarkVerifiedOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	c := &models.OTPChallenge{Mobile: "9876500004", ExpiresAt: testNow.Add(time.Minute), CreatedAt: testNow}
	_ = s.OTPs().Issue(ctx, c)

	if err := s.OTPs().MarkVerified(ctx, c.ID, testNow); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := s.OTPs().MarkVerified(ctx, c.ID, testNow); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second verify, got %v", err)
	}
}

func newBooked(patient, consultant primitive.ObjectID, date time.Time, tm string) *models.Appointment {
	a := &models.Appointment{
		PatientID:    patient,
		ConsultantID: consultant,
		CenterID:     primitive.NewObjectID(),
		Date:         date,
		Time:         tm,
		Type:         models.AppointmentInPerson,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	a.SetStatus(models.AppointmentBooked)
	return a
}

func TestAppointmentSlotUniqueUnderConcurrency(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()
	consultant := primitive.NewObjectID()
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Appointments().Create(ctx, newBooked(primitive.NewObjectID(), consultant, date, "10:00"))
		}()
	}
	wg.Wait()
	close(results)

	ok, dup := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrDuplicate):
			dup++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != 9 {
		t.Errorf("Expected 1 success and 9 duplicates, got %d and %d", ok, dup)
	}
}

func TestAppointmentCancelReleasesSlot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()
	patient, consultant := primitive.NewObjectID(), primitive.NewObjectID()
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	first := newBooked(patient, consultant, date, "10:00")
	if err := s.Appointments().Create(ctx, first); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	cancelled, err := s.Appointments().Cancel(ctx, first.ID, patient, testNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cancelled.Status != models.AppointmentCancelled || cancelled.HoldsSlot {
		t.Errorf("Expected cancelled appointment without slot, got %+v", cancelled)
	}
	if _, err := s.Appointments().Cancel(ctx, first.ID, patient, testNow); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound cancelling twice, got %v", err)
	}
	if err := s.Appointments().Create(ctx, newBooked(patient, consultant, date, "10:00")); err != nil {
		t.Errorf("Expected rebooking to succeed, got %v", err)
	}
}

func TestAppointmentUpdateBookedDetectsClash(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()
	patient, consultant := primitive.NewObjectID(), primitive.NewObjectID()
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	a := newBooked(patient, consultant, date, "10:00")
	b := newBooked(patient, consultant, date, "11:00")
	_ = s.Appointments().Create(ctx, a)
	_ = s.Appointments().Create(ctx, b)

	clash := "10:00"
	if _, err := s.Appointments().UpdateBooked(ctx, b.ID, patient, models.AppointmentChanges{Time: &clash}, testNow); !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}

	same := "11:00"
	if _, err := s.Appointments().UpdateBooked(ctx, b.ID, patient, models.AppointmentChanges{Time: &same}, testNow); err != nil {
		t.Errorf("Expected re-saving own slot to succeed, got %v", err)
	}
	if _, err := s.Appointments().UpdateBooked(ctx, b.ID, primitive.NewObjectID(), models.AppointmentChanges{Time: &same}, testNow); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for other patient, got %v", err)
	}
}

func TestPaymentTransitionIsConditional(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()
	patient := primitive.NewObjectID()

	p := &models.Payment{PatientID: patient, GatewayOrderID: "order_1", Status: models.PaymentPending, CreatedAt: testNow}
	if err := s.Payments().Create(ctx, p); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	done, err := s.Payments().Transition(ctx, p.ID, models.PaymentTransition{
		From: models.PaymentPending, To: models.PaymentCompleted, GatewayPaymentID: "pay_1", At: testNow,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if done.Status != models.PaymentCompleted || done.GatewayPaymentID != "pay_1" || done.CompletedAt == nil {
		t.Errorf("Unexpected payment after transition: %+v", done)
	}

	if _, err := s.Payments().Transition(ctx, p.ID, models.PaymentTransition{From: models.PaymentPending, To: models.PaymentCompleted, At: testNow}); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for stale transition, got %v", err)
	}
}

func TestPaymentMethodSingleDefault(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()
	patient := primitive.NewObjectID()

	var ids []primitive.ObjectID
	for i := 0; i < 3; i++ {
		m := &models.SavedPaymentMethod{PatientID: patient, Type: models.SavedCard, Last4: "4242", IsDefault: true, IsActive: true, CreatedAt: testNow.Add(time.Duration(i) * time.Second)}
		if err := s.PaymentMethods().Create(ctx, m); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		ids = append(ids, m.ID)
	}

	list, _ := s.PaymentMethods().ListActive(ctx, patient)
	defaults := 0
	for _, m := range list {
		if m.IsDefault {
			defaults++
		}
	}
	if defaults != 1 || list[0].ID != ids[2] {
		t.Errorf("Expected only the newest method to be default, got %d defaults and head %s", defaults, list[0].ID.Hex())
	}

	yes := true
	if _, err := s.PaymentMethods().Update(ctx, ids[0], patient, models.SavedMethodUpdate{IsDefault: &yes}, testNow); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	list, _ = s.PaymentMethods().ListActive(ctx, patient)
	if !list[0].IsDefault || list[0].ID != ids[0] || list[1].IsDefault || list[2].IsDefault {
		t.Errorf("Expected first method to be the only default, got %+v", list)
	}

	no := false
	updated, _ := s.PaymentMethods().Update(ctx, ids[0], patient, models.SavedMethodUpdate{IsActive: &no}, testNow)
	if updated.IsDefault {
		t.Error("Expected deactivated method to lose its default flag")
	}
}

func TestOTPIssuePrunesExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	stale := &models.OTPChallenge{Mobile: "9876500006", ExpiresAt: testNow.Add(time.Minute), CreatedAt: testNow}
	other := &models.OTPChallenge{Mobile: "9876500007", ExpiresAt: testNow.Add(time.Minute), CreatedAt: testNow}
	_ = s.OTPs().Issue(ctx, stale)
	_ = s.OTPs().Issue(ctx, other)

	later := testNow.Add(10 * time.Minute)
	fresh := &models.OTPChallenge{Mobile: "9876500006", ExpiresAt: later.Add(5 * time.Minute), CreatedAt: later}
	if err := s.OTPs().Issue(ctx, fresh); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := s.Challenges("9876500006"); len(got) != 1 || got[0].ID != fresh.ID {
		t.Errorf("Expected only the fresh challenge to remain, got %+v", got)
	}
	if got := s.Challenges("9876500007"); len(got) != 0 {
		t.Errorf("Expected expired challenges of other mobiles to be pruned, got %d", len(got))
	}
	if _, err := s.OTPs().FindActive(ctx, "9876500006", later); err != nil {
		t.Errorf("Expected fresh challenge to be active, got %v", err)
	}
}

func TestGoalsAreScopedAndOrdered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()
	patient := primitive.NewObjectID()
	stranger := primitive.NewObjectID()

	var ids []primitive.ObjectID
	for i, status := range []models.GoalStatus{models.GoalActive, models.GoalCompleted, models.GoalActive} {
		g := &models.Goal{PatientID: patient, Name: "Knee flexion", Status: status, Priority: models.GoalMedium, CreatedAt: testNow.Add(time.Duration(i) * time.Hour)}
		if err := s.Goals().Create(ctx, g); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		ids = append(ids, g.ID)
	}

	tests := []struct {
		name   string
		status models.GoalStatus
		want   []primitive.ObjectID
	}{
		{"all", "", []primitive.ObjectID{ids[2], ids[1], ids[0]}},
		{"active", models.GoalActive, []primitive.ObjectID{ids[2], ids[0]}},
		{"completed", models.GoalCompleted, []primitive.ObjectID{ids[1]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Goals().ListForPatient(ctx, patient, tt.status)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d goals, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("Expected goal %d to be %s, got %s", i, tt.want[i].Hex(), got[i].ID.Hex())
				}
			}
		})
	}

	if _, err := s.Goals().FindByIDForPatient(ctx, ids[0], stranger); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for another patient, got %v", err)
	}
	progress := 40
	later := testNow.Add(24 * time.Hour)
	updated, err := s.Goals().Update(ctx, ids[0], patient, models.GoalChanges{Progress: &progress}, later)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if updated.Progress != 40 || !updated.LastUpdated.Equal(later) {
		t.Errorf("Expected progress 40 updated at %v, got %d at %v", later, updated.Progress, updated.LastUpdated)
	}
	if ok, _ := s.Goals().Delete(ctx, ids[0], stranger); ok {
		t.Error("Expected delete by another patient to fail")
	}
	if ok, _ := s.Goals().Delete(ctx, ids[0], patient); !ok {
		t.Error("Expected delete by owner to succeed")
	}
}
