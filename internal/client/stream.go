package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/raphaelgruber/careerpulse/internal/models"
	"github.com/raphaelgruber/careerpulse/internal/pipeline"
	"github.com/raphaelgruber/careerpulse/internal/sse"
)

var (
	// ErrStreamInterrupted means the channel ended before a terminal frame.
	ErrStreamInterrupted = errors.New("stream interrupted")

	// ErrUnexpectedFrame means a frame arrived out of stage order or could
	// not be decoded.
	ErrUnexpectedFrame = errors.New("unexpected frame")
)

// StreamError is a run failure reported by the server in an error frame.
type StreamError struct {
	Kind    string
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// State is the consumer's view of a run.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the run has ended.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Result is the finalized output of a completed run. It is never modified
// after construction; accessors return copies.
type Result struct {
	runID       string
	topic       string
	insights    []models.InsightRecord
	summary     models.ExecutiveSummary
	completedAt time.Time
}

func (r *Result) RunID() string          { return r.runID }
func (r *Result) Topic() string          { return r.topic }
func (r *Result) CompletedAt() time.Time { return r.completedAt }

// Len returns the number of insights.
func (r *Result) Len() int { return len(r.insights) }

// Summary returns the run's executive summary.
func (r *Result) Summary() models.ExecutiveSummary {
	s := r.summary
	s.MainChallenges = slices.Clone(r.summary.MainChallenges)
	return s
}

// Insights returns the insights in delivery order.
func (r *Result) Insights() []models.InsightRecord {
	return slices.Clone(r.insights)
}

// Insight looks up an insight by its run-local id.
func (r *Result) Insight(id int) (models.InsightRecord, bool) {
	for _, rec := range r.insights {
		if rec.ID == id {
			return rec, true
		}
	}
	return models.InsightRecord{}, false
}

type resultJSON struct {
	RunID       string                  `json:"run_id"`
	Topic       string                  `json:"topic"`
	Insights    []models.InsightRecord  `json:"insights"`
	Summary     models.ExecutiveSummary `json:"summary"`
	CompletedAt time.Time               `json:"completed_at"`
}

// MarshalJSON encodes the result.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		RunID:       r.runID,
		Topic:       r.topic,
		Insights:    r.insights,
		Summary:     r.summary,
		CompletedAt: r.completedAt,
	})
}

// Progress is a point-in-time copy of the accumulator for rendering.
type Progress struct {
	State    State
	Log      []string
	Insights []models.InsightRecord
	Total    int
	Step     int
	Steps    int
	Err      error
}

// Accumulator folds frames of one run into its final result. It is not
// safe for concurrent use.
type Accumulator struct {
	state    State
	last     pipeline.Stage
	runID    string
	topic    string
	steps    int
	step     int
	total    int
	insights []models.InsightRecord
	summary  *models.ExecutiveSummary
	log      []string
	err      error
	result   *Result
}

// NewAccumulator returns an idle accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// State returns the current run state.
func (a *Accumulator) State() State { return a.state }

// Err returns the failure cause once the run has failed.
func (a *Accumulator) Err() error { return a.err }

// Log returns the human-readable progress lines received so far.
func (a *Accumulator) Log() []string { return slices.Clone(a.log) }

// Result returns the finalized result, or false if the run did not complete.
func (a *Accumulator) Result() (*Result, bool) {
	return a.result, a.result != nil
}

// Progress returns a copy of the accumulator state.
func (a *Accumulator) Progress() Progress {
	return Progress{
		State:    a.state,
		Log:      a.Log(),
		Insights: slices.Clone(a.insights),
		Total:    a.total,
		Step:     a.step,
		Steps:    a.steps,
		Err:      a.err,
	}
}

// Fail moves a non-terminal run to the failed state. Partial insights and
// the log are kept.
func (a *Accumulator) Fail(err error) {
	if a.state.Terminal() {
		return
	}
	a.state = StateFailed
	a.err = err
	a.logf("Error: %v", err)
}

// Apply folds one frame into the accumulator. Frames after a terminal
// frame and frames with unknown event names are ignored.
func (a *Accumulator) Apply(f sse.Frame) {
	if a.state.Terminal() {
		return
	}
	stage, ok := pipeline.StageForEvent(f.Event)
	if !ok {
		return
	}
	if !stage.CanFollow(a.last) && !completesWithoutSummary(stage, a.last) {
		a.Fail(fmt.Errorf("%w: %s after %s", ErrUnexpectedFrame, stage, a.last))
		return
	}
	if err := a.apply(stage, []byte(f.Data)); err != nil {
		a.Fail(fmt.Errorf("%w: %s: %v", ErrUnexpectedFrame, stage, err))
		return
	}
	a.last = stage
}

// completesWithoutSummary admits a complete frame that carries the summary
// itself in place of a summary frame.
func completesWithoutSummary(s, prev pipeline.Stage) bool {
	return s == pipeline.StageComplete && (prev == pipeline.StageInsight || prev == pipeline.StageInsightsStart)
}

func (a *Accumulator) apply(stage pipeline.Stage, data []byte) error {
	switch stage {
	case pipeline.StageStart:
		var ev pipeline.StartEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		a.state = StateStreaming
		a.runID, a.topic = ev.RunID, ev.Topic
		a.logf("Starting analysis for %q", ev.Topic)

	case pipeline.StageProgress:
		var ev pipeline.ProgressEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		a.step, a.steps = ev.Step, ev.Total
		a.logf("[%d/%d] %s", ev.Step, ev.Total, ev.Message)

	case pipeline.StageGenerating:
		var ev pipeline.GeneratingEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		a.logf("%s", ev.Message)

	case pipeline.StageInsightsStart:
		var ev pipeline.InsightsStartEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		a.total = ev.Total
		a.logf("Receiving %d insights", ev.Total)

	case pipeline.StageInsight:
		var ev pipeline.InsightEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		a.insights = append(a.insights, ev.Insight)
		a.logf("Insight %d/%d: %s", ev.Index, ev.Total, ev.Insight.Title)

	case pipeline.StageSummary:
		var ev pipeline.SummaryEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		a.summary = &ev.Summary
		a.logf("Executive summary received")

	case pipeline.StageComplete:
		var ev pipeline.CompleteEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		// The summary frame is authoritative; the complete frame only fills
		// in a missing one.
		summary := a.summary
		if summary == nil {
			summary = ev.Summary
		}
		if summary == nil {
			return errors.New("run completed without a summary")
		}
		if ev.Total != len(a.insights) {
			return fmt.Errorf("complete reports %d insights, received %d", ev.Total, len(a.insights))
		}
		a.state = StateComplete
		a.result = &Result{
			runID:       a.runID,
			topic:       a.topic,
			insights:    append([]models.InsightRecord{}, a.insights...),
			summary:     *summary,
			completedAt: ev.Timestamp,
		}
		a.logf("Analysis complete: %d insights", len(a.insights))

	case pipeline.StageError:
		var ev pipeline.ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		a.state = StateFailed
		a.err = &StreamError{Kind: ev.Kind, Message: ev.Message}
		a.logf("Error (%s): %s", ev.Kind, ev.Message)
	}
	return nil
}

func (a *Accumulator) logf(format string, args ...any) {
	a.log = append(a.log, fmt.Sprintf(format, args...))
}
