package service

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"booking-service/internal/models"
	"booking-service/internal/repository"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// DirectoryService serves centers and consultants. Search goes to the
// index when one is configured and falls back to the store otherwise.
type DirectoryService struct {
	directory repository.DirectoryRepository
	index     ConsultantSearcher
	logger    *zap.Logger
}

func NewDirectoryService(directory repository.DirectoryRepository, index ConsultantSearcher, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{directory: directory, index: index, logger: logger}
}

func (s *DirectoryService) ListCenters(ctx context.Context, city string) ([]*models.Center, error) {
	centers, err := s.directory.ListCenters(ctx, strings.TrimSpace(city))
	if err != nil {
		return nil, storeErr("list centers", "center", err)
	}
	return centers, nil
}

func (s *DirectoryService) GetCenter(ctx context.Context, id string) (*models.Center, error) {
	oid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	c, err := s.directory.FindCenter(ctx, oid)
	if err != nil {
		return nil, storeErr("get center", "center", err)
	}
	return c, nil
}

func (s *DirectoryService) ListConsultants(ctx context.Context, centerID, specialty string) ([]*models.Consultant, error) {
	filter := models.ConsultantFilter{Specialty: strings.TrimSpace(specialty)}
	if centerID != "" {
		oid, err := parseID("centerId", centerID)
		if err != nil {
			return nil, err
		}
		filter.CenterID = oid
	}
	list, err := s.directory.ListConsultants(ctx, filter)
	if err != nil {
		return nil, storeErr("list consultants", "consultant", err)
	}
	return list, nil
}

func (s *DirectoryService) GetConsultant(ctx context.Context, id string) (*models.Consultant, error) {
	oid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	c, err := s.directory.FindConsultant(ctx, oid)
	if err != nil {
		return nil, storeErr("get consultant", "consultant", err)
	}
	return c, nil
}

func (s *DirectoryService) SearchConsultants(ctx context.Context, text string, limit int) ([]*models.Consultant, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("search text is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	if s.index != nil {
		ids, err := s.index.Search(ctx, text, limit)
		if err == nil {
			return s.resolve(ctx, ids)
		}
		s.logger.Warn("Consultant index search failed, using store", zap.Error(err))
	}

	list, err := s.directory.SearchConsultants(ctx, text, limit)
	if err != nil {
		return nil, storeErr("search consultants", "consultant", err)
	}
	return list, nil
}

// resolve loads index hits from the store in hit order, skipping ids that
// are gone or inactive.
func (s *DirectoryService) resolve(ctx context.Context, ids []primitive.ObjectID) ([]*models.Consultant, error) {
	out := make([]*models.Consultant, 0, len(ids))
	for _, id := range ids {
		c, err := s.directory.FindConsultant(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, storeErr("resolve consultant", "consultant", err)
		}
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}
