package client

import (
	"errors"

	"github.com/raphaelgruber/careerpulse/internal/models"
)

// MaxSelection is the most insights one profile can keep.
const MaxSelection = 10

var (
	// ErrRunNotComplete rejects curation over a run that did not complete.
	ErrRunNotComplete = errors.New("run did not complete")

	// ErrEmptySelection rejects a commit with nothing selected.
	ErrEmptySelection = errors.New("no insights selected")
)

// ToggleResult is the outcome of Selection.Toggle.
type ToggleResult int

const (
	Added ToggleResult = iota
	Removed
	LimitReached
	Unknown
)

func (t ToggleResult) String() string {
	switch t {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case LimitReached:
		return "limit reached"
	case Unknown:
		return "unknown insight"
	}
	return "invalid"
}

// Selection is a bounded set of insight ids over one completed run.
type Selection struct {
	result *Result
	ids    map[int]bool
}

// NewSelection starts an empty selection over result.
func NewSelection(result *Result) (*Selection, error) {
	if result == nil {
		return nil, ErrRunNotComplete
	}
	return &Selection{result: result, ids: make(map[int]bool)}, nil
}

// Toggle adds or removes id. Adding past MaxSelection is a no-op that
// reports LimitReached.
func (s *Selection) Toggle(id int) ToggleResult {
	if _, ok := s.result.Insight(id); !ok {
		return Unknown
	}
	if s.ids[id] {
		delete(s.ids, id)
		return Removed
	}
	if len(s.ids) >= MaxSelection {
		return LimitReached
	}
	s.ids[id] = true
	return Added
}

// Len returns the number of selected insights.
func (s *Selection) Len() int { return len(s.ids) }

// Contains reports whether id is selected.
func (s *Selection) Contains(id int) bool { return s.ids[id] }

// CanCommit reports whether the selection may be committed.
func (s *Selection) CanCommit() bool { return len(s.ids) > 0 }

// Result returns the run the selection was made over.
func (s *Selection) Result() *Result { return s.result }

// Insights returns the full selected records in run order.
func (s *Selection) Insights() []models.InsightRecord {
	out := make([]models.InsightRecord, 0, len(s.ids))
	for _, rec := range s.result.insights {
		if s.ids[rec.ID] {
			out = append(out, rec)
		}
	}
	return out
}
