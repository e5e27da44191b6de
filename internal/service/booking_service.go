package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"booking-service/internal/config"
	"booking-service/internal/events"
	"booking-service/internal/models"
	"booking-service/internal/repository"
)

type CreateAppointmentRequest struct {
	ConsultantID string   `json:"consultantId" validate:"required,objectid"`
	CenterID     string   `json:"centerId" validate:"required,objectid"`
	Date         string   `json:"date" validate:"required,ymd"`
	Time         string   `json:"time" validate:"required,hhmm"`
	Type         string   `json:"type" validate:"required"`
	BookingFee   *float64 `json:"bookingFee,omitempty" validate:"omitempty,gte=0"`
}

type UpdateAppointmentRequest struct {
	Date       *string  `json:"date,omitempty" validate:"omitempty,ymd"`
	Time       *string  `json:"time,omitempty" validate:"omitempty,hhmm"`
	Type       *string  `json:"type,omitempty"`
	BookingFee *float64 `json:"bookingFee,omitempty" validate:"omitempty,gte=0"`
}

type AvailabilityRequest struct {
	ConsultantID string `json:"consultantId" validate:"required,objectid"`
	Date         string `json:"date" validate:"required,ymd"`
	Time         string `json:"time" validate:"required,hhmm"`
}

// BookingService arbitrates consultant slots. The store's unique slot index
// decides races; the optional slot lock only narrows the window.
type BookingService struct {
	appointments repository.AppointmentRepository
	directory    repository.DirectoryRepository
	slotLock     Locker
	publisher    events.Publisher
	defaultFee   float64
	lockTTL      time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewBookingService(
	appointments repository.AppointmentRepository,
	directory repository.DirectoryRepository,
	slotLock Locker,
	publisher events.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *BookingService {
	fee := cfg.Booking.DefaultFee
	if fee <= 0 {
		fee = 100
	}
	return &BookingService{
		appointments: appointments,
		directory:    directory,
		slotLock:     slotLock,
		publisher:    publisher,
		defaultFee:   fee,
		lockTTL:      cfg.Booking.SlotLockTTL,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// checkReferences loads the consultant and center together and checks they
// are active and related.
func (s *BookingService) checkReferences(ctx context.Context, consultantID, centerID primitive.ObjectID) (*models.Consultant, *models.Center, error) {
	var (
		consultant *models.Consultant
		center     *models.Center
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.directory.FindConsultant(gctx, consultantID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !c.IsActive) {
			return notFound("consultant not found or inactive")
		}
		consultant = c
		return err
	})
	g.Go(func() error {
		c, err := s.directory.FindCenter(gctx, centerID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !c.IsActive) {
			return notFound("center not found or inactive")
		}
		center = c
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if consultant.CenterID != center.ID {
		return nil, nil, invalid("consultant does not belong to the specified center")
	}
	return consultant, center, nil
}

func (s *BookingService) Create(ctx context.Context, patientID primitive.ObjectID, req *CreateAppointmentRequest) (*models.AppointmentView, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	consultantID, _ := primitive.ObjectIDFromHex(req.ConsultantID)
	centerID, _ := primitive.ObjectIDFromHex(req.CenterID)
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	apptType, err := models.ParseAppointmentType(req.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fee := s.defaultFee
	if req.BookingFee != nil {
		fee = *req.BookingFee
	}

	consultant, center, err := s.checkReferences(ctx, consultantID, centerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	appt := &models.Appointment{
		PatientID:    patientID,
		ConsultantID: consultantID,
		CenterID:     centerID,
		Date:         date,
		Time:         req.Time,
		Type:         apptType,
		BookingFee:   fee,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	appt.SetStatus(models.AppointmentBooked)
	slot := appt.Slot()

	err = withLock(ctx, s.slotLock, "slot:"+slot.Key(), s.lockTTL, func() error {
		taken, err := s.appointments.SlotTaken(ctx, slot, primitive.NilObjectID)
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if taken {
			return slotConflict()
		}
		if err := s.appointments.Create(ctx, appt); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return slotConflict()
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Appointment booked",
		zap.String("appointment_id", appt.ID.Hex()),
		zap.String("slot", slot.Key()))
	s.publish(ctx, events.TypeAppointmentBooked, appt)

	return &models.AppointmentView{
		Appointment: appt,
		Consultant:  models.Resolved(consultant.ID, consultant),
		Center:      models.Resolved(center.ID, center),
	}, nil
}

func slotConflict() error {
	return fmt.Errorf("%w: time slot is already booked", ErrConflict)
}

func (s *BookingService) Update(ctx context.Context, patientID primitive.ObjectID, id string, req *UpdateAppointmentRequest) (*models.AppointmentView, error) {
	oid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	current, err := s.appointments.FindByIDForPatient(ctx, oid, patientID)
	if err != nil {
		return nil, storeErr("load appointment", "appointment", err)
	}
	if current.Status != models.AppointmentBooked {
		return nil, fmt.Errorf("%w: only booked appointments can be updated", ErrInvalidStatus)
	}

	var changes models.AppointmentChanges
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			return nil, err
		}
		changes.Date = &d
	}
	changes.Time = req.Time
	if req.Type != nil {
		t, err := models.ParseAppointmentType(*req.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		changes.Type = &t
	}
	changes.BookingFee = req.BookingFee

	apply := func() (*models.Appointment, error) {
		updated, err := s.appointments.UpdateBooked(ctx, oid, patientID, changes, s.now())
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, slotConflict()
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: only booked appointments can be updated", ErrInvalidStatus)
		case err != nil:
			return nil, fmt.Errorf("update appointment: %w", err)
		}
		return updated, nil
	}

	var updated *models.Appointment
	if changes.MovesSlot() {
		target := current.Slot()
		if changes.Date != nil {
			target.Date = *changes.Date
		}
		if changes.Time != nil {
			target.Time = *changes.Time
		}
		err = withLock(ctx, s.slotLock, "slot:"+target.Key(), s.lockTTL, func() error {
			taken, err := s.appointments.SlotTaken(ctx, target, oid)
			if err != nil {
				return fmt.Errorf("check slot: %w", err)
			}
			if taken {
				return slotConflict()
			}
			updated, err = apply()
			return err
		})
	} else {
		updated, err = apply()
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeAppointmentUpdated, updated)
	return s.view(ctx, updated)
}

// Cancel releases the slot immediately. Cancelling twice returns the
// cancelled appointment; a completed appointment cannot be cancelled.
func (s *BookingService) Cancel(ctx context.Context, patientID primitive.ObjectID, id string) (*models.AppointmentView, error) {
	oid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	current, err := s.appointments.FindByIDForPatient(ctx, oid, patientID)
	if err != nil {
		return nil, storeErr("load appointment", "appointment", err)
	}

	switch current.Status {
	case models.AppointmentCancelled:
		return s.view(ctx, current)
	case models.AppointmentCompleted:
		return nil, fmt.Errorf("%w: completed appointments cannot be cancelled", ErrInvalidStatus)
	}

	cancelled, err := s.appointments.Cancel(ctx, oid, patientID, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		latest, lerr := s.appointments.FindByIDForPatient(ctx, oid, patientID)
		if lerr != nil {
			return nil, storeErr("load appointment", "appointment", lerr)
		}
		if latest.Status == models.AppointmentCancelled {
			return s.view(ctx, latest)
		}
		return nil, fmt.Errorf("%w: completed appointments cannot be cancelled", ErrInvalidStatus)
	}
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logger.Info("Appointment cancelled", zap.String("appointment_id", oid.Hex()))
	s.publish(ctx, events.TypeAppointmentCancelled, cancelled)
	return s.view(ctx, cancelled)
}

func (s *BookingService) Get(ctx context.Context, patientID primitive.ObjectID, id string) (*models.AppointmentView, error) {
	oid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	appt, err := s.appointments.FindByIDForPatient(ctx, oid, patientID)
	if err != nil {
		return nil, storeErr("load appointment", "appointment", err)
	}
	return s.view(ctx, appt)
}

// List returns the patient's appointments, latest date and time first.
func (s *BookingService) List(ctx context.Context, patientID primitive.ObjectID, status string) ([]*models.AppointmentView, error) {
	var st models.AppointmentStatus
	if status != "" {
		parsed, err := models.ParseAppointmentStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		st = parsed
	}
	list, err := s.appointments.ListByPatient(ctx, patientID, st)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	r := newResolver(s.directory)
	out := make([]*models.AppointmentView, 0, len(list))
	for _, a := range list {
		v, err := r.view(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// CheckAvailability is advisory: true means no booked or completed
// appointment holds the slot right now.
func (s *BookingService) CheckAvailability(ctx context.Context, req *AvailabilityRequest) (bool, error) {
	if err := validateStruct(req); err != nil {
		return false, err
	}
	consultantID, _ := primitive.ObjectIDFromHex(req.ConsultantID)
	if _, err := s.directory.FindConsultant(ctx, consultantID); err != nil {
		return false, storeErr("load consultant", "consultant", err)
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return false, err
	}
	taken, err := s.appointments.SlotTaken(ctx, models.Slot{ConsultantID: consultantID, Date: date, Time: req.Time}, primitive.NilObjectID)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return !taken, nil
}

func (s *BookingService) view(ctx context.Context, a *models.Appointment) (*models.AppointmentView, error) {
	return newResolver(s.directory).view(ctx, a)
}

func (s *BookingService) publish(ctx context.Context, eventType string, a *models.Appointment) {
	s.publisher.Publish(ctx, events.StreamAppointment, a.ID.Hex(), eventType, events.AppointmentEvent{
		AppointmentID: a.ID.Hex(),
		PatientID:     a.PatientID.Hex(),
		ConsultantID:  a.ConsultantID.Hex(),
		CenterID:      a.CenterID.Hex(),
		Date:          a.Date.UTC().Format(dateLayout),
		Time:          a.Time,
		Status:        a.Status.Wire(),
	})
}

// refResolver attaches consultants and centers to appointments, loading
// each id at most once. Missing entities stay bare references.
type refResolver struct {
	directory   repository.DirectoryRepository
	consultants map[primitive.ObjectID]*models.Consultant
	centers     map[primitive.ObjectID]*models.Center
}

func newResolver(d repository.DirectoryRepository) *refResolver {
	return &refResolver{
		directory:   d,
		consultants: make(map[primitive.ObjectID]*models.Consultant),
		centers:     make(map[primitive.ObjectID]*models.Center),
	}
}

func (r *refResolver) view(ctx context.Context, a *models.Appointment) (*models.AppointmentView, error) {
	v := &models.AppointmentView{
		Appointment: a,
		Consultant:  models.Reference[models.Consultant](a.ConsultantID),
		Center:      models.Reference[models.Center](a.CenterID),
	}

	consultant, ok := r.consultants[a.ConsultantID]
	if !ok {
		c, err := r.directory.FindConsultant(ctx, a.ConsultantID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("resolve consultant: %w", err)
		}
		consultant = c
		r.consultants[a.ConsultantID] = c
	}
	if consultant != nil {
		v.Consultant = models.Resolved(a.ConsultantID, consultant)
	}

	center, ok := r.centers[a.CenterID]
	if !ok {
		c, err := r.directory.FindCenter(ctx, a.CenterID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("resolve center: %w", err)
		}
		center = c
		r.centers[a.CenterID] = c
	}
	if center != nil {
		v.Center = models.Resolved(a.CenterID, center)
	}
	return v, nil
}
