package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/careerpulse/internal/db"
	"github.com/raphaelgruber/careerpulse/internal/insight"
	"github.com/raphaelgruber/careerpulse/internal/metrics"
	"github.com/raphaelgruber/careerpulse/internal/models"
	"github.com/raphaelgruber/careerpulse/internal/pipeline"
	"github.com/raphaelgruber/careerpulse/internal/service"
	"github.com/raphaelgruber/careerpulse/internal/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

type stubGenerator struct {
	generate func(ctx context.Context, topic string) (*models.InsightReport, error)
}

func (g stubGenerator) Generate(ctx context.Context, topic string) (*models.InsightReport, error) {
	return g.generate(ctx, topic)
}

func reportOf(n int) *models.InsightReport {
	r := &models.InsightReport{Summary: models.ExecutiveSummary{GeneralTrend: "up", MainChallenges: []string{}}}
	for i := 1; i <= n; i++ {
		r.Insights = append(r.Insights, models.InsightRecord{
			ID:        i,
			Title:     fmt.Sprintf("insight %d", i),
			Category:  models.CategorySkillFormation,
			Relevance: models.RelevanceMedium,
		})
	}
	return r
}

// memoryStore is an in-memory service.ProfileStore.
type memoryStore struct {
	mu         sync.Mutex
	profiles   map[string]*models.CareerProfile
	replaceErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{profiles: map[string]*models.CareerProfile{}}
}

func (m *memoryStore) CreateProfile(_ context.Context, input models.ProfileInput) (*models.CareerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := models.Slugify(input.Name)
	p := &models.CareerProfile{
		ID:          surrealmodels.NewRecordID(models.ProfileTable, id),
		Name:        input.Name,
		Description: input.Description,
		Insights:    []models.InsightRecord{},
		Created:     time.Now(),
	}
	m.profiles[id] = p
	return p, nil
}

func (m *memoryStore) GetProfile(_ context.Context, id string) (*models.CareerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[id], nil
}

func (m *memoryStore) ReplaceInsights(_ context.Context, id string, insights []models.InsightRecord) (*models.CareerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return nil, m.replaceErr
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	now := time.Now()
	p.Insights = insights
	p.InsightsUpdatedAt = &now
	return p, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixture struct {
	srv     *httptest.Server
	store   *memoryStore
	metrics *metrics.Collector
}

func newFixture(t *testing.T, gen pipeline.ReportGenerator, pacing pipeline.Pacing) *fixture {
	t.Helper()
	mc := metrics.NewCollector()
	store := newMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := New(Deps{
		Emitter: pipeline.NewEmitter(gen, pipeline.Options{
			Steps:   []string{"one", "two"},
			Pacing:  pacing,
			Logger:  logger,
			Metrics: mc,
		}),
		Profiles: service.NewProfileService(store, mc),
		Metrics:  mc,
		Logger:   logger,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, store: store, metrics: mc}
}

func readFrames(t *testing.T, body io.Reader) []sse.Frame {
	t.Helper()
	r := sse.NewReader(body)
	var frames []sse.Frame
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}
}

func eventNames(frames []sse.Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Event
	}
	return out
}

func TestStreamSuccess(t *testing.T) {
	topics := make(chan string, 1)
	gen := stubGenerator{generate: func(_ context.Context, topic string) (*models.InsightReport, error) {
		topics <- topic
		return reportOf(10), nil
	}}
	f := newFixture(t, gen, pipeline.Pacing{})

	resp, err := http.Get(f.srv.URL + "/insights/stream/data%20science")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	frames := readFrames(t, resp.Body)
	assert.Equal(t, "data science", <-topics)

	want := []string{"start", "progress", "progress", "generating", "insights_start"}
	for range 10 {
		want = append(want, "insight")
	}
	want = append(want, "summary", "complete")
	assert.Equal(t, want, eventNames(frames))

	var start pipeline.InsightsStartEvent
	require.NoError(t, json.Unmarshal([]byte(frames[4].Data), &start))
	assert.Equal(t, 10, start.Total)

	var third pipeline.InsightEvent
	require.NoError(t, json.Unmarshal([]byte(frames[7].Data), &third))
	assert.Equal(t, 3, third.Index)
	assert.Equal(t, "insight 3", third.Insight.Title)
}

func TestStreamMalformedPayload(t *testing.T) {
	gen := stubGenerator{generate: func(context.Context, string) (*models.InsightReport, error) {
		return insight.Parse("Sorry, I can't produce JSON today.")
	}}
	f := newFixture(t, gen, pipeline.Pacing{})

	resp, err := http.Get(f.srv.URL + "/insights/stream/law")
	require.NoError(t, err)
	defer resp.Body.Close()

	frames := readFrames(t, resp.Body)
	assert.Equal(t, []string{"start", "progress", "progress", "generating", "error"}, eventNames(frames))

	var ev pipeline.ErrorEvent
	require.NoError(t, json.Unmarshal([]byte(frames[len(frames)-1].Data), &ev))
	assert.Equal(t, "MalformedUpstreamPayload", ev.Kind)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Counters[metrics.CounterRunsFailed])
}

func TestStreamClientDisconnect(t *testing.T) {
	gen := stubGenerator{generate: func(context.Context, string) (*models.InsightReport, error) {
		return reportOf(10), nil
	}}
	f := newFixture(t, gen, pipeline.Pacing{InsightDelay: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/insights/stream/x", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	r := sse.NewReader(resp.Body)
	insights := 0
	for insights < 3 {
		fr, err := r.Next()
		require.NoError(t, err)
		if fr.Event == "insight" {
			insights++
		}
	}
	cancel()
	resp.Body.Close()

	assert.Eventually(t, func() bool {
		return f.metrics.Snapshot().Counters[metrics.CounterRunsAborted] == 1
	}, 2*time.Second, 10*time.Millisecond)
	snap := f.metrics.Snapshot()
	assert.Zero(t, snap.Counters[metrics.CounterRunsCompleted])
	// start, 2 progress, generating, insights_start, then at most one insight past the third
	assert.LessOrEqual(t, snap.Counters[metrics.CounterFramesEmitted], int64(5+4))
}

func TestProfileLifecycle(t *testing.T) {
	f := newFixture(t, stubGenerator{}, pipeline.Pacing{})

	resp, err := http.Post(f.srv.URL+"/profiles", "application/json", strings.NewReader(`{"name":"Ana Torres"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.ProfileView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "ana-torres", created.ID)
	assert.Empty(t, created.Insights)

	body, _ := json.Marshal(CommitRequest{Insights: reportOf(3).Insights[1:]})
	req, _ := http.NewRequest(http.MethodPut, f.srv.URL+"/profiles/ana-torres/insights", bytes.NewReader(body))
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	resp3, err := http.Get(f.srv.URL + "/profiles/ana-torres")
	require.NoError(t, err)
	defer resp3.Body.Close()

	var got models.ProfileView
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&got))
	require.Len(t, got.Insights, 2)
	assert.Equal(t, 2, got.Insights[0].ID)
	assert.Equal(t, 3, got.Insights[1].ID)
	assert.NotNil(t, got.InsightsUpdatedAt)
}

func TestCommitErrors(t *testing.T) {
	tests := []struct {
		name       string
		profile    string
		body       string
		replaceErr error
		wantStatus int
		wantKind   string
		retryable  bool
	}{
		{"bad json", "ana", `{`, nil, http.StatusBadRequest, KindInvalidRequest, false},
		{"empty selection", "ana", `{"insights":[]}`, nil, http.StatusBadRequest, KindInvalidSelection, false},
		{"missing profile", "ghost", `{"insights":[{"id":1,"category":"market_trend","relevance":"high"}]}`, nil, http.StatusNotFound, KindNotFound, false},
		{"store failure", "ana", `{"insights":[{"id":1,"category":"market_trend","relevance":"high"}]}`, errors.New("ws closed"), http.StatusInternalServerError, KindPersistenceFailure, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, stubGenerator{}, pipeline.Pacing{})
			_, err := f.store.CreateProfile(context.Background(), models.ProfileInput{Name: "ana"})
			require.NoError(t, err)
			f.store.replaceErr = tt.replaceErr

			req, _ := http.NewRequest(http.MethodPut, f.srv.URL+"/profiles/"+tt.profile+"/insights", strings.NewReader(tt.body))
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			var eb ErrorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&eb))
			assert.Equal(t, tt.wantKind, eb.Error.Kind)
			assert.Equal(t, tt.retryable, eb.Error.Retryable)
		})
	}
}

func TestGetProfileNotFound(t *testing.T) {
	f := newFixture(t, stubGenerator{}, pipeline.Pacing{})

	resp, err := http.Get(f.srv.URL + "/profiles/nobody")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatsAndHealth(t *testing.T) {
	f := newFixture(t, stubGenerator{}, pipeline.Pacing{})

	resp, err := http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))

	resp, err = http.Get(f.srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var snap metrics.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestHealthStoreDown(t *testing.T) {
	s := New(Deps{
		Metrics: metrics.NewCollector(),
		Store:   pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
