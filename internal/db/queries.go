package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/careerpulse/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// newProfileID derives a readable, unique record key from the profile name.
func newProfileID(name string) string {
	suffix := uuid.NewString()[:8]
	if slug := models.Slugify(name); slug != "" {
		return slug + "-" + suffix
	}
	return suffix
}

// CreateProfile creates a profile with an empty insight set.
func (c *Client) CreateProfile(ctx context.Context, input models.ProfileInput) (*models.CareerProfile, error) {
	defer c.observe(time.Now())

	results, err := surrealdb.Query[[]models.CareerProfile](ctx, c.db, `
		CREATE type::record("career_profile", $id) CONTENT {
			name: $name,
			description: $description,
			insights: [],
			created: time::now()
		} RETURN AFTER
	`, map[string]any{
		"id":          newProfileID(input.Name),
		"name":        input.Name,
		"description": input.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create profile: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// GetProfile retrieves a profile by ID.
// Returns nil if not found.
func (c *Client) GetProfile(ctx context.Context, id string) (*models.CareerProfile, error) {
	defer c.observe(time.Now())

	results, err := surrealdb.Query[[]models.CareerProfile](ctx, c.db, `
		SELECT * FROM type::record("career_profile", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// ReplaceInsights overwrites the profile's insight set in one write. The
// previous set is discarded; concurrent commits resolve last-write-wins.
func (c *Client) ReplaceInsights(ctx context.Context, id string, insights []models.InsightRecord) (*models.CareerProfile, error) {
	defer c.observe(time.Now())

	if insights == nil {
		insights = []models.InsightRecord{}
	}

	results, err := surrealdb.Query[[]models.CareerProfile](ctx, c.db, `
		UPDATE type::record("career_profile", $id) SET
			insights = $insights,
			insights_updated_at = time::now()
		RETURN AFTER
	`, map[string]any{
		"id":       id,
		"insights": insights,
	})
	if err != nil {
		return nil, fmt.Errorf("replace insights: %w", wrapQueryError(err))
	}

	// UPDATE on a missing record affects nothing.
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("replace insights %s: %w", id, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// DeleteProfile deletes a profile. Returns false if it did not exist.
func (c *Client) DeleteProfile(ctx context.Context, id string) (bool, error) {
	defer c.observe(time.Now())

	results, err := surrealdb.Query[[]models.CareerProfile](ctx, c.db, `
		DELETE type::record("career_profile", $id) RETURN BEFORE
	`, map[string]any{"id": id})
	if err != nil {
		return false, fmt.Errorf("delete profile: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return false, nil
	}
	return len((*results)[0].Result) > 0, nil
}

// CountProfiles returns the number of stored profiles.
func (c *Client) CountProfiles(ctx context.Context) (int, error) {
	defer c.observe(time.Now())

	results, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, c.db, `SELECT count() AS count FROM career_profile GROUP ALL`, nil)
	if err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}
