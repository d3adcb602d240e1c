// Package service holds the profile operations behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/careerpulse/internal/db"
	"github.com/raphaelgruber/careerpulse/internal/metrics"
	"github.com/raphaelgruber/careerpulse/internal/models"
)

// MaxInsights is the largest insight set a profile may hold.
const MaxInsights = 10

var (
	// ErrInvalidSelection rejects a commit that could not have come from a
	// valid curation.
	ErrInvalidSelection = errors.New("invalid insight selection")

	// ErrInvalidProfile rejects malformed profile input.
	ErrInvalidProfile = errors.New("invalid profile")
)

// ProfileStore is the record store boundary.
type ProfileStore interface {
	CreateProfile(ctx context.Context, input models.ProfileInput) (*models.CareerProfile, error)
	GetProfile(ctx context.Context, id string) (*models.CareerProfile, error)
	ReplaceInsights(ctx context.Context, id string, insights []models.InsightRecord) (*models.CareerProfile, error)
}

// ProfileService validates and forwards profile operations.
type ProfileService struct {
	store   ProfileStore
	metrics *metrics.Collector
}

// NewProfileService creates a service over store.
func NewProfileService(store ProfileStore, mc *metrics.Collector) *ProfileService {
	return &ProfileService{store: store, metrics: mc}
}

// Create creates a profile.
func (s *ProfileService) Create(ctx context.Context, input models.ProfileInput) (*models.CareerProfile, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	return s.store.CreateProfile(ctx, input)
}

// Get returns the profile or an error wrapping db.ErrNotFound.
func (s *ProfileService) Get(ctx context.Context, id string) (*models.CareerProfile, error) {
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("profile %s: %w", id, db.ErrNotFound)
	}
	return p, nil
}

// CommitInsights replaces the profile's persisted insight set with insights.
// The set is written whole, in the given order.
func (s *ProfileService) CommitInsights(ctx context.Context, id string, insights []models.InsightRecord) (*models.CareerProfile, error) {
	if err := ValidateSelection(insights); err != nil {
		return nil, err
	}

	start := time.Now()
	p, err := s.store.ReplaceInsights(ctx, id, insights)
	s.metrics.RecordTiming(metrics.OpDBCommit, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("commit insights: %w", err)
	}
	return p, nil
}

// ValidateSelection checks size bounds, id uniqueness and enum values.
func ValidateSelection(insights []models.InsightRecord) error {
	if len(insights) == 0 {
		return fmt.Errorf("%w: empty selection", ErrInvalidSelection)
	}
	if len(insights) > MaxInsights {
		return fmt.Errorf("%w: %d insights exceeds limit of %d", ErrInvalidSelection, len(insights), MaxInsights)
	}

	seen := make(map[int]bool, len(insights))
	for _, rec := range insights {
		if rec.ID < 1 {
			return fmt.Errorf("%w: insight id %d", ErrInvalidSelection, rec.ID)
		}
		if seen[rec.ID] {
			return fmt.Errorf("%w: duplicate insight id %d", ErrInvalidSelection, rec.ID)
		}
		seen[rec.ID] = true
		if !rec.Category.Valid() || !rec.Relevance.Valid() {
			return fmt.Errorf("%w: insight %d has unknown category or relevance", ErrInvalidSelection, rec.ID)
		}
	}
	return nil
}
