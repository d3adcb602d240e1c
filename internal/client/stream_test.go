package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/raphaelgruber/careerpulse/internal/models"
	"github.com/raphaelgruber/careerpulse/internal/pipeline"
	"github.com/raphaelgruber/careerpulse/internal/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameOf(t *testing.T, event string, payload any) sse.Frame {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return sse.Frame{Event: event, Data: string(data)}
}

func testInsight(id int) models.InsightRecord {
	return models.InsightRecord{
		ID:        id,
		Title:     fmt.Sprintf("insight %d", id),
		Category:  models.CategoryWorkModality,
		Relevance: models.RelevanceHigh,
	}
}

var testSummary = models.ExecutiveSummary{
	GeneralTrend:   "growing",
	MainChallenges: []string{"automation"},
}

var completedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// successFrames builds a full successful run with n insights. Insight ids
// are deliberately out of numeric order.
func successFrames(t *testing.T, n int) []sse.Frame {
	t.Helper()
	frames := []sse.Frame{
		frameOf(t, pipeline.EventStart, pipeline.StartEvent{RunID: "run-1", Topic: "nursing"}),
		frameOf(t, pipeline.EventProgress, pipeline.ProgressEvent{Step: 1, Total: 2, Message: "Reading market data"}),
		frameOf(t, pipeline.EventProgress, pipeline.ProgressEvent{Step: 2, Total: 2, Message: "Checking salaries"}),
		frameOf(t, pipeline.EventGenerating, pipeline.GeneratingEvent{Message: "Generating report"}),
		frameOf(t, pipeline.EventInsightsStart, pipeline.InsightsStartEvent{Total: n}),
	}
	for i := 1; i <= n; i++ {
		frames = append(frames, frameOf(t, pipeline.EventInsight, pipeline.InsightEvent{Index: i, Total: n, Insight: testInsight(n - i + 1)}))
	}
	return append(frames,
		frameOf(t, pipeline.EventSummary, pipeline.SummaryEvent{Summary: testSummary}),
		frameOf(t, pipeline.EventComplete, pipeline.CompleteEvent{RunID: "run-1", Total: n, Timestamp: completedAt}),
	)
}

func applyAll(frames []sse.Frame) *Accumulator {
	acc := NewAccumulator()
	for _, f := range frames {
		acc.Apply(f)
	}
	return acc
}

func TestAccumulatorSuccess(t *testing.T) {
	acc := applyAll(successFrames(t, 10))

	require.Equal(t, StateComplete, acc.State())
	result, ok := acc.Result()
	require.True(t, ok)
	assert.Equal(t, "run-1", result.RunID())
	assert.Equal(t, "nursing", result.Topic())
	assert.Equal(t, 10, result.Len())
	assert.Equal(t, testSummary, result.Summary())
	assert.Equal(t, completedAt, result.CompletedAt())

	insights := result.Insights()
	assert.Equal(t, 10, insights[0].ID, "delivery order, not id order")
	assert.Equal(t, 1, insights[9].ID)

	log := acc.Log()
	assert.Len(t, log, 17)
	assert.Equal(t, `Starting analysis for "nursing"`, log[0])
	assert.Equal(t, "[1/2] Reading market data", log[1])
	assert.Equal(t, "Analysis complete: 10 insights", log[len(log)-1])
}

func TestAccumulatorReplayIsIdempotent(t *testing.T) {
	frames := successFrames(t, 7)

	first, ok := applyAll(frames).Result()
	require.True(t, ok)
	second, ok := applyAll(frames).Result()
	require.True(t, ok)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestAccumulatorResultIsImmutable(t *testing.T) {
	result, ok := applyAll(successFrames(t, 2)).Result()
	require.True(t, ok)

	insights := result.Insights()
	insights[0].Title = "changed"
	summary := result.Summary()
	summary.MainChallenges[0] = "changed"

	assert.Equal(t, "insight 2", result.Insights()[0].Title)
	assert.Equal(t, "automation", result.Summary().MainChallenges[0])
}

func TestAccumulatorSummaryFromComplete(t *testing.T) {
	frames := successFrames(t, 2)
	// drop the summary frame and carry the summary in complete
	frames = append(frames[:len(frames)-2],
		frameOf(t, pipeline.EventComplete, pipeline.CompleteEvent{RunID: "run-1", Total: 2, Timestamp: completedAt, Summary: &testSummary}))

	acc := applyAll(frames)
	require.Equal(t, StateComplete, acc.State())
	result, _ := acc.Result()
	assert.Equal(t, testSummary, result.Summary())
}

func TestAccumulatorSummaryFrameWins(t *testing.T) {
	other := models.ExecutiveSummary{GeneralTrend: "shrinking"}
	frames := successFrames(t, 1)
	frames[len(frames)-1] = frameOf(t, pipeline.EventComplete, pipeline.CompleteEvent{Total: 1, Summary: &other})

	result, ok := applyAll(frames).Result()
	require.True(t, ok)
	assert.Equal(t, "growing", result.Summary().GeneralTrend)
}

func TestAccumulatorErrorFrame(t *testing.T) {
	frames := successFrames(t, 10)[:4]
	frames = append(frames, frameOf(t, pipeline.EventError, pipeline.ErrorEvent{Kind: "MalformedUpstreamPayload", Message: "not json"}))

	acc := applyAll(frames)
	assert.Equal(t, StateFailed, acc.State())
	_, ok := acc.Result()
	assert.False(t, ok)
	assert.Empty(t, acc.Progress().Insights)

	var streamErr *StreamError
	require.True(t, errors.As(acc.Err(), &streamErr))
	assert.Equal(t, "MalformedUpstreamPayload", streamErr.Kind)
	assert.Contains(t, acc.Log()[len(acc.Log())-1], "not json")
}

func TestAccumulatorIgnoresFramesAfterTerminal(t *testing.T) {
	frames := successFrames(t, 1)
	frames = append(frames, frameOf(t, pipeline.EventInsight, pipeline.InsightEvent{Index: 2, Total: 1, Insight: testInsight(9)}))

	acc := applyAll(frames)
	result, ok := acc.Result()
	require.True(t, ok)
	assert.Equal(t, 1, result.Len())
}

func TestAccumulatorProtocolViolations(t *testing.T) {
	tests := []struct {
		name   string
		frames func(t *testing.T) []sse.Frame
	}{
		{"insight before start", func(t *testing.T) []sse.Frame {
			return []sse.Frame{frameOf(t, pipeline.EventInsight, pipeline.InsightEvent{Index: 1, Total: 1, Insight: testInsight(1)})}
		}},
		{"bad payload", func(t *testing.T) []sse.Frame {
			return []sse.Frame{{Event: pipeline.EventStart, Data: "{"}}
		}},
		{"total mismatch", func(t *testing.T) []sse.Frame {
			frames := successFrames(t, 2)
			frames[len(frames)-1] = frameOf(t, pipeline.EventComplete, pipeline.CompleteEvent{Total: 3})
			return frames
		}},
		{"complete without summary", func(t *testing.T) []sse.Frame {
			frames := successFrames(t, 2)
			return append(frames[:len(frames)-2], frameOf(t, pipeline.EventComplete, pipeline.CompleteEvent{Total: 2}))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := applyAll(tt.frames(t))
			assert.Equal(t, StateFailed, acc.State())
			assert.ErrorIs(t, acc.Err(), ErrUnexpectedFrame)
		})
	}
}

func TestAccumulatorIgnoresUnknownEvents(t *testing.T) {
	frames := successFrames(t, 1)
	frames = append([]sse.Frame{{Event: "message", Data: "hello"}}, frames...)

	acc := applyAll(frames)
	assert.Equal(t, StateComplete, acc.State())
}

func TestAccumulatorFail(t *testing.T) {
	acc := applyAll(successFrames(t, 5)[:7])
	require.Equal(t, StateStreaming, acc.State())

	acc.Fail(ErrStreamInterrupted)
	assert.Equal(t, StateFailed, acc.State())
	assert.Len(t, acc.Progress().Insights, 2, "partial insights stay visible")

	acc.Fail(errors.New("again"))
	assert.ErrorIs(t, acc.Err(), ErrStreamInterrupted, "first failure sticks")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.True(t, StateComplete.Terminal())
	assert.False(t, StateStreaming.Terminal())
}
