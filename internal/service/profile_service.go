package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"booking-service/internal/models"
	"booking-service/internal/repository"
	"booking-service/internal/util"
)

// UpdateProfileRequest carries optional profile changes. BloodGroup is the
// wire spelling, for example A_POSITIVE.
type UpdateProfileRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Email       *string  `json:"email,omitempty" validate:"omitempty,email"`
	DateOfBirth *string  `json:"dateOfBirth,omitempty" validate:"omitempty,ymd"`
	Gender      *string  `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	Age         *int     `json:"age,omitempty" validate:"omitempty,gte=0,lte=150"`
	Weight      *float64 `json:"weight,omitempty" validate:"omitempty,gte=0"`
	Height      *float64 `json:"height,omitempty" validate:"omitempty,gte=0"`
	BloodGroup  *string  `json:"bloodGroup,omitempty"`
}

type ProfileService struct {
	users  repository.UserRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewProfileService(users repository.UserRepository, logger *zap.Logger) *ProfileService {
	return &ProfileService{users: users, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (s *ProfileService) Me(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr("load profile", "user", err)
	}
	return user, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, req *UpdateProfileRequest) (*models.User, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	update, err := req.toUpdate()
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return s.Me(ctx, userID)
	}

	user, err := s.users.Update(ctx, userID, update, s.now())
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("%w: email already in use", ErrConflict)
	}
	if err != nil {
		return nil, storeErr("update profile", "user", err)
	}
	s.logger.Info("Profile updated", zap.String("user_id", userID.Hex()))
	return user, nil
}

func (r *UpdateProfileRequest) toUpdate() (models.UserUpdate, error) {
	u := models.UserUpdate{
		Gender: r.Gender,
		Age:    r.Age,
		Weight: r.Weight,
		Height: r.Height,
	}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if util.ContainsSuspicious(name) {
			return u, invalid("name contains invalid characters")
		}
		u.Name = &name
	}
	if r.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*r.Email))
		u.Email = &email
	}
	if r.DateOfBirth != nil {
		dob, err := parseDate(*r.DateOfBirth)
		if err != nil {
			return u, err
		}
		u.DateOfBirth = &dob
	}
	if r.BloodGroup != nil {
		g, err := models.ParseBloodGroup(*r.BloodGroup)
		if err != nil {
			return u, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		u.BloodGroup = &g
	}
	return u, nil
}
