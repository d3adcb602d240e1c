// Package pipeline replays one generated insight report onto a push channel
// as an ordered, paced sequence of named frames.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/careerpulse/internal/insight"
	"github.com/raphaelgruber/careerpulse/internal/metrics"
	"github.com/raphaelgruber/careerpulse/internal/models"
)

// Sink receives frames in emission order.
type Sink interface {
	Send(ctx context.Context, event string, payload any) error
}

// ReportGenerator produces the full report for a topic in one call.
type ReportGenerator interface {
	Generate(ctx context.Context, topic string) (*models.InsightReport, error)
}

// Pacing holds the cosmetic delays between frames. Zero disables a delay.
type Pacing struct {
	StepDelay    time.Duration
	InsightDelay time.Duration
}

// Options configures an Emitter.
type Options struct {
	Steps           []string
	Pacing          Pacing
	UpstreamTimeout time.Duration
	Logger          *slog.Logger
	Metrics         *metrics.Collector
}

// Status is how a run ended.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// Outcome summarizes one run. Err is set for failed and aborted runs.
type Outcome struct {
	RunID    string
	Status   Status
	Frames   int
	Insights int
	Err      error
}

// Emitter walks the stage machine for each run. It holds no per-run state
// and may serve concurrent runs.
type Emitter struct {
	generator       ReportGenerator
	steps           []string
	pacing          Pacing
	upstreamTimeout time.Duration
	logger          *slog.Logger
	metrics         *metrics.Collector
}

// NewEmitter creates an emitter over gen.
func NewEmitter(gen ReportGenerator, opts Options) *Emitter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		generator:       gen,
		steps:           append([]string(nil), opts.Steps...),
		pacing:          opts.Pacing,
		upstreamTimeout: opts.UpstreamTimeout,
		logger:          logger,
		metrics:         opts.Metrics,
	}
}

// Steps returns the number of progress frames per run.
func (e *Emitter) Steps() int {
	return len(e.steps)
}

// run is the state of one generation run.
type run struct {
	e      *Emitter
	ctx    context.Context
	sink   Sink
	id     string
	stage  Stage
	frames int
	logger *slog.Logger
}

// Run emits the full frame sequence for topic to sink. It never returns an
// error: a closed channel ends the run as aborted, and upstream failures are
// reported in-band as an error frame.
func (e *Emitter) Run(ctx context.Context, topic string, sink Sink) Outcome {
	id := uuid.NewString()
	r := &run{
		e:      e,
		ctx:    ctx,
		sink:   sink,
		id:     id,
		logger: e.logger.With("run_id", id, "topic", topic),
	}

	start := time.Now()
	out := r.execute(topic)
	out.RunID = id
	out.Frames = r.frames
	e.metrics.RecordTiming(metrics.OpStreamRun, time.Since(start))

	switch out.Status {
	case StatusCompleted:
		e.metrics.Inc(metrics.CounterRunsCompleted)
		r.logger.Info("run complete", "insights", out.Insights, "frames", out.Frames, "duration_ms", time.Since(start).Milliseconds())
	case StatusFailed:
		e.metrics.Inc(metrics.CounterRunsFailed)
		r.logger.Warn("run failed", "error", out.Err, "frames", out.Frames)
	case StatusAborted:
		e.metrics.Inc(metrics.CounterRunsAborted)
		r.logger.Info("run aborted, channel closed", "frames", out.Frames, "error", out.Err)
	}
	return out
}

func (r *run) execute(topic string) Outcome {
	e := r.e

	if err := r.emit(StageStart, StartEvent{RunID: r.id, Topic: topic}); err != nil {
		return aborted(err)
	}

	total := len(e.steps)
	for i, step := range e.steps {
		if err := r.emit(StageProgress, ProgressEvent{Step: i + 1, Total: total, Message: step}); err != nil {
			return aborted(err)
		}
		if err := sleep(r.ctx, e.pacing.StepDelay); err != nil {
			return aborted(err)
		}
	}

	if err := r.emit(StageGenerating, GeneratingEvent{Message: "Generating report"}); err != nil {
		return aborted(err)
	}

	report, err := r.generate(topic)
	if err != nil {
		return r.fail(err)
	}
	if err := r.ctx.Err(); err != nil {
		return aborted(err)
	}

	n := len(report.Insights)
	if err := r.emit(StageInsightsStart, InsightsStartEvent{Total: n}); err != nil {
		return aborted(err)
	}
	for i, rec := range report.Insights {
		if i > 0 {
			if err := sleep(r.ctx, e.pacing.InsightDelay); err != nil {
				return aborted(err)
			}
		}
		if err := r.emit(StageInsight, InsightEvent{Index: i + 1, Total: n, Insight: rec}); err != nil {
			return aborted(err)
		}
		r.logger.Debug("insight emitted", "index", i+1, "total", n)
	}

	if err := r.emit(StageSummary, SummaryEvent{Summary: report.Summary}); err != nil {
		return aborted(err)
	}
	if err := r.emit(StageComplete, CompleteEvent{RunID: r.id, Total: n, Timestamp: time.Now().UTC()}); err != nil {
		return aborted(err)
	}
	return Outcome{Status: StatusCompleted, Insights: n}
}

// generate performs the single upstream call. Client cancellation does not
// reach it; only the upstream timeout does.
func (r *run) generate(topic string) (*models.InsightReport, error) {
	ctx := context.WithoutCancel(r.ctx)
	if r.e.upstreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.e.upstreamTimeout)
		defer cancel()
	}

	start := time.Now()
	report, err := r.e.generator.Generate(ctx, topic)
	if err != nil {
		return nil, err
	}
	r.logger.Info("report generated", "insights", len(report.Insights), "duration_ms", time.Since(start).Milliseconds())
	return report, nil
}

// fail reports err in-band and ends the run.
func (r *run) fail(err error) Outcome {
	kind := insight.KindOf(err)
	if sendErr := r.emit(StageError, ErrorEvent{Kind: string(kind), Message: err.Error()}); sendErr != nil {
		return aborted(sendErr)
	}
	return Outcome{Status: StatusFailed, Err: err}
}

func (r *run) emit(next Stage, payload any) error {
	if !next.CanFollow(r.stage) {
		return fmt.Errorf("pipeline: illegal transition %s -> %s", r.stage, next)
	}
	if err := r.sink.Send(r.ctx, next.Event(), payload); err != nil {
		return err
	}
	r.stage = next
	r.frames++
	r.e.metrics.Inc(metrics.CounterFramesEmitted)
	return nil
}

func aborted(err error) Outcome {
	return Outcome{Status: StatusAborted, Err: err}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

