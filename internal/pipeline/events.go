package pipeline

import (
	"time"

	"github.com/raphaelgruber/careerpulse/internal/models"
)

// StartEvent opens a run.
type StartEvent struct {
	RunID string `json:"run_id"`
	Topic string `json:"topic"`
}

// ProgressEvent describes one configured pacing step.
type ProgressEvent struct {
	Step    int    `json:"step"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// GeneratingEvent precedes the upstream call.
type GeneratingEvent struct {
	Message string `json:"message"`
}

// InsightsStartEvent announces how many insight frames follow.
type InsightsStartEvent struct {
	Total int `json:"total"`
}

// InsightEvent carries one insight and its 1-based position.
type InsightEvent struct {
	Index   int                  `json:"index"`
	Total   int                  `json:"total"`
	Insight models.InsightRecord `json:"insight"`
}

// SummaryEvent carries the run's executive summary.
type SummaryEvent struct {
	Summary models.ExecutiveSummary `json:"summary"`
}

// CompleteEvent closes a successful run. Summary is only read by consumers
// that never saw a summary frame; the emitter leaves it empty.
type CompleteEvent struct {
	RunID     string                   `json:"run_id"`
	Total     int                      `json:"total"`
	Timestamp time.Time                `json:"timestamp"`
	Summary   *models.ExecutiveSummary `json:"summary,omitempty"`
}

// ErrorEvent closes a failed run.
type ErrorEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
