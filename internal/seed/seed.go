// Package seed writes the demo clinic directory. Entries already present by
// name are left alone, so running it twice changes nothing.
package seed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"booking-service/internal/models"
	"booking-service/internal/repository"
)

type centerSeed struct {
	Name    string
	Address string
	City    string
}

type consultantSeed struct {
	Name       string
	Specialty  string
	Experience string
	Rating     float64
	Center     string
}

var centers = []centerSeed{
	{Name: "Mumbai Physiotherapy Center", Address: "123 Marine Drive, Colaba", City: "Mumbai"},
	{Name: "Delhi Rehabilitation Center", Address: "456 Connaught Place", City: "Delhi"},
	{Name: "Bangalore Sports Medicine", Address: "789 MG Road", City: "Bangalore"},
}

var consultants = []consultantSeed{
	{Name: "Dr. Rajesh Kumar", Specialty: "Orthopedic", Experience: "10 years", Rating: 4.5, Center: "Mumbai Physiotherapy Center"},
	{Name: "Dr. Priya Sharma", Specialty: "Sports Medicine", Experience: "8 years", Rating: 4.8, Center: "Mumbai Physiotherapy Center"},
	{Name: "Dr. Amit Patel", Specialty: "Orthopedic", Experience: "12 years", Rating: 4.7, Center: "Delhi Rehabilitation Center"},
	{Name: "Dr. Sneha Reddy", Specialty: "Neurological", Experience: "7 years", Rating: 4.6, Center: "Bangalore Sports Medicine"},
}

// Result counts what a run inserted.
type Result struct {
	Centers     int
	Consultants int
}

// Directory inserts the demo centers and consultants that are missing.
func Directory(ctx context.Context, repo repository.DirectoryRepository, logger *zap.Logger) (Result, error) {
	var res Result
	now := time.Now().UTC()

	existing, err := repo.ListCenters(ctx, "")
	if err != nil {
		return res, fmt.Errorf("list centers: %w", err)
	}
	byName := make(map[string]*models.Center, len(existing))
	for _, c := range existing {
		byName[c.Name] = c
	}

	for _, s := range centers {
		if _, ok := byName[s.Name]; ok {
			continue
		}
		c := &models.Center{Name: s.Name, Address: s.Address, City: s.City, IsActive: true, CreatedAt: now, UpdatedAt: now}
		if err := repo.SaveCenter(ctx, c); err != nil {
			return res, fmt.Errorf("save center %q: %w", s.Name, err)
		}
		byName[c.Name] = c
		res.Centers++
		logger.Info("Seeded center", zap.String("name", c.Name), zap.String("id", c.ID.Hex()))
	}

	for _, s := range consultants {
		center := byName[s.Center]
		present, err := repo.ListConsultants(ctx, models.ConsultantFilter{CenterID: center.ID})
		if err != nil {
			return res, fmt.Errorf("list consultants: %w", err)
		}
		if containsConsultant(present, s.Name) {
			continue
		}
		c := &models.Consultant{
			Name:       s.Name,
			Specialty:  s.Specialty,
			Experience: s.Experience,
			Rating:     s.Rating,
			CenterID:   center.ID,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := repo.SaveConsultant(ctx, c); err != nil {
			return res, fmt.Errorf("save consultant %q: %w", s.Name, err)
		}
		res.Consultants++
		logger.Info("Seeded consultant", zap.String("name", c.Name), zap.String("center", s.Center))
	}
	return res, nil
}

func containsConsultant(list []*models.Consultant, name string) bool {
	for _, c := range list {
		if c.Name == name {
			return true
		}
	}
	return false
}
