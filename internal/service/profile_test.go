package service

import (
	"context"
	"errors"
	"testing"

	"github.com/raphaelgruber/careerpulse/internal/db"
	"github.com/raphaelgruber/careerpulse/internal/metrics"
	"github.com/raphaelgruber/careerpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	createFn  func(ctx context.Context, input models.ProfileInput) (*models.CareerProfile, error)
	getFn     func(ctx context.Context, id string) (*models.CareerProfile, error)
	replaceFn func(ctx context.Context, id string, insights []models.InsightRecord) (*models.CareerProfile, error)
}

func (m *mockStore) CreateProfile(ctx context.Context, input models.ProfileInput) (*models.CareerProfile, error) {
	return m.createFn(ctx, input)
}

func (m *mockStore) GetProfile(ctx context.Context, id string) (*models.CareerProfile, error) {
	return m.getFn(ctx, id)
}

func (m *mockStore) ReplaceInsights(ctx context.Context, id string, insights []models.InsightRecord) (*models.CareerProfile, error) {
	return m.replaceFn(ctx, id, insights)
}

func records(ids ...int) []models.InsightRecord {
	out := make([]models.InsightRecord, len(ids))
	for i, id := range ids {
		out[i] = models.InsightRecord{ID: id, Category: models.CategoryEconomicInfo, Relevance: models.RelevanceLow}
	}
	return out
}

func TestCommitInsights(t *testing.T) {
	mc := metrics.NewCollector()
	var written []models.InsightRecord
	store := &mockStore{replaceFn: func(_ context.Context, id string, insights []models.InsightRecord) (*models.CareerProfile, error) {
		written = insights
		return &models.CareerProfile{Name: id, Insights: insights}, nil
	}}
	svc := NewProfileService(store, mc)

	p, err := svc.CommitInsights(context.Background(), "ana", records(7, 2, 4))
	require.NoError(t, err)
	assert.Equal(t, "ana", p.Name)
	assert.Equal(t, []int{7, 2, 4}, ids(written), "order is kept as given")
	require.NotNil(t, mc.Snapshot().DBCommit)
}

func TestCommitInsightsRejects(t *testing.T) {
	tests := []struct {
		name     string
		insights []models.InsightRecord
	}{
		{"empty", nil},
		{"over limit", records(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11)},
		{"duplicate", records(1, 2, 1)},
		{"zero id", records(0)},
		{"bad category", []models.InsightRecord{{ID: 1, Category: "gossip", Relevance: models.RelevanceHigh}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			store := &mockStore{replaceFn: func(context.Context, string, []models.InsightRecord) (*models.CareerProfile, error) {
				called = true
				return nil, nil
			}}

			_, err := NewProfileService(store, nil).CommitInsights(context.Background(), "ana", tt.insights)
			require.ErrorIs(t, err, ErrInvalidSelection)
			assert.False(t, called, "store never written")
		})
	}
}

func TestCommitInsightsAtLimit(t *testing.T) {
	store := &mockStore{replaceFn: func(_ context.Context, _ string, insights []models.InsightRecord) (*models.CareerProfile, error) {
		return &models.CareerProfile{Insights: insights}, nil
	}}

	p, err := NewProfileService(store, nil).CommitInsights(context.Background(), "ana", records(1, 2, 3, 4, 5, 6, 7, 8, 9, 10))
	require.NoError(t, err)
	assert.Len(t, p.Insights, MaxInsights)
}

func TestCommitInsightsStoreError(t *testing.T) {
	store := &mockStore{replaceFn: func(context.Context, string, []models.InsightRecord) (*models.CareerProfile, error) {
		return nil, db.ErrNotFound
	}}

	_, err := NewProfileService(store, nil).CommitInsights(context.Background(), "ghost", records(1))
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestGet(t *testing.T) {
	store := &mockStore{getFn: func(_ context.Context, id string) (*models.CareerProfile, error) {
		if id == "ana" {
			return &models.CareerProfile{Name: "Ana"}, nil
		}
		return nil, nil
	}}
	svc := NewProfileService(store, nil)

	p, err := svc.Get(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Name)

	_, err = svc.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestCreate(t *testing.T) {
	store := &mockStore{createFn: func(_ context.Context, input models.ProfileInput) (*models.CareerProfile, error) {
		return &models.CareerProfile{Name: input.Name}, nil
	}}
	svc := NewProfileService(store, nil)

	p, err := svc.Create(context.Background(), models.ProfileInput{Name: "  Ana  "})
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Name)

	_, err = svc.Create(context.Background(), models.ProfileInput{Name: "   "})
	assert.True(t, errors.Is(err, ErrInvalidProfile))
}

func ids(insights []models.InsightRecord) []int {
	out := make([]int, len(insights))
	for i, rec := range insights {
		out[i] = rec.ID
	}
	return out
}
