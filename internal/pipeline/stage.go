package pipeline

// Stage is one state of a generation run.
type Stage int

const (
	StageNone Stage = iota
	StageStart
	StageProgress
	StageGenerating
	StageInsightsStart
	StageInsight
	StageSummary
	StageComplete
	StageError
)

// Event names on the wire.
const (
	EventStart         = "start"
	EventProgress      = "progress"
	EventGenerating    = "generating"
	EventInsightsStart = "insights_start"
	EventInsight       = "insight"
	EventSummary       = "summary"
	EventComplete      = "complete"
	EventError         = "error"
)

var stageEvents = map[Stage]string{
	StageStart:         EventStart,
	StageProgress:      EventProgress,
	StageGenerating:    EventGenerating,
	StageInsightsStart: EventInsightsStart,
	StageInsight:       EventInsight,
	StageSummary:       EventSummary,
	StageComplete:      EventComplete,
	StageError:         EventError,
}

// Event returns the wire event name, or "" for StageNone.
func (s Stage) Event() string {
	return stageEvents[s]
}

func (s Stage) String() string {
	if e := s.Event(); e != "" {
		return e
	}
	return "none"
}

// StageForEvent maps a wire event name back to its stage.
func StageForEvent(event string) (Stage, bool) {
	for s, e := range stageEvents {
		if e == event {
			return s, true
		}
	}
	return StageNone, false
}

// Terminal reports whether no stage may follow s.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// CanFollow reports whether s is a legal successor of prev. Stages only
// move forward; progress and insight repeat; error may follow any
// non-terminal stage after start.
func (s Stage) CanFollow(prev Stage) bool {
	if prev.Terminal() {
		return false
	}
	if s == StageError {
		return prev != StageNone
	}

	switch prev {
	case StageNone:
		return s == StageStart
	case StageStart:
		return s == StageProgress || s == StageGenerating
	case StageProgress:
		return s == StageProgress || s == StageGenerating
	case StageGenerating:
		return s == StageInsightsStart
	case StageInsightsStart:
		return s == StageInsight || s == StageSummary
	case StageInsight:
		return s == StageInsight || s == StageSummary
	case StageSummary:
		return s == StageComplete
	}
	return false
}
