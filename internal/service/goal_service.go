package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"booking-service/internal/models"
	"booking-service/internal/repository"
)

type CreateGoalRequest struct {
	Name       string   `json:"name" validate:"required,min=1,max=200"`
	Duration   string   `json:"duration" validate:"required"`
	Type       string   `json:"type" validate:"required"`
	Priority   string   `json:"priority" validate:"required"`
	Target     *float64 `json:"target,omitempty" validate:"omitempty,gte=0"`
	Unit       string   `json:"unit,omitempty" validate:"omitempty,max=50"`
	TargetDate string   `json:"targetDate,omitempty" validate:"omitempty,ymd"`
}

type UpdateGoalRequest struct {
	Name              *string  `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Progress          *int     `json:"progress,omitempty" validate:"omitempty,gte=0,lte=100"`
	Current           *float64 `json:"current,omitempty" validate:"omitempty,gte=0"`
	Target            *float64 `json:"target,omitempty" validate:"omitempty,gte=0"`
	LatestAchievement *string  `json:"latestAchievement,omitempty" validate:"omitempty,max=500"`
	Status            *string  `json:"status,omitempty"`
}

// GoalService tracks a patient's rehabilitation goals. Every read and
// write is scoped to the caller.
type GoalService struct {
	goals  repository.GoalRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewGoalService(goals repository.GoalRepository, logger *zap.Logger) *GoalService {
	return &GoalService{
		goals:  goals,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *GoalService) Create(ctx context.Context, patientID primitive.ObjectID, req *CreateGoalRequest) (*models.Goal, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	priority, err := models.ParseGoalPriority(req.Priority)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now()
	g := &models.Goal{
		PatientID:   patientID,
		Name:        req.Name,
		Duration:    req.Duration,
		Type:        req.Type,
		Progress:    0,
		Priority:    priority,
		Status:      models.GoalActive,
		Target:      req.Target,
		Unit:        req.Unit,
		LastUpdated: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.TargetDate != "" {
		d, err := parseDate(req.TargetDate)
		if err != nil {
			return nil, err
		}
		g.TargetDate = &d
	}
	if err := s.goals.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("store goal: %w", err)
	}

	s.logger.Info("Goal created",
		zap.String("goal_id", g.ID.Hex()),
		zap.String("priority", string(g.Priority)))
	return g, nil
}

// List returns the patient's goals newest first. An empty status lists all.
func (s *GoalService) List(ctx context.Context, patientID primitive.ObjectID, status string) ([]*models.Goal, error) {
	var filter models.GoalStatus
	if status != "" {
		parsed, err := models.ParseGoalStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		filter = parsed
	}
	list, err := s.goals.ListForPatient(ctx, patientID, filter)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return list, nil
}

func (s *GoalService) Get(ctx context.Context, patientID primitive.ObjectID, id string) (*models.Goal, error) {
	oid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	g, err := s.goals.FindByIDForPatient(ctx, oid, patientID)
	if err != nil {
		return nil, storeErr("load goal", "goal", err)
	}
	return g, nil
}

// Update applies the provided fields and stamps lastUpdated.
func (s *GoalService) Update(ctx context.Context, patientID primitive.ObjectID, id string, req *UpdateGoalRequest) (*models.Goal, error) {
	oid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	changes := models.GoalChanges{
		Name:              req.Name,
		Progress:          req.Progress,
		Current:           req.Current,
		Target:            req.Target,
		LatestAchievement: req.LatestAchievement,
	}
	if req.Status != nil {
		status, err := models.ParseGoalStatus(*req.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		changes.Status = &status
	}

	g, err := s.goals.Update(ctx, oid, patientID, changes, s.now())
	if err != nil {
		return nil, storeErr("update goal", "goal", err)
	}
	return g, nil
}

// Delete removes the goal. A goal the patient does not own is not found.
func (s *GoalService) Delete(ctx context.Context, patientID primitive.ObjectID, id string) (bool, error) {
	oid, err := parseID("id", id)
	if err != nil {
		return false, err
	}
	ok, err := s.goals.Delete(ctx, oid, patientID)
	if err != nil {
		return false, fmt.Errorf("delete goal: %w", err)
	}
	if !ok {
		return false, notFound("goal")
	}
	return true, nil
}
