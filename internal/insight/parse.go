// Package insight turns the opaque upstream response into an insight report.
package insight

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/raphaelgruber/careerpulse/internal/models"
)

const fence = "```"

// rawReport mirrors the upstream payload. The summary may arrive under
// either key; "summary" wins when both are present.
type rawReport struct {
	Insights         *[]models.InsightRecord  `json:"insights"`
	Summary          *models.ExecutiveSummary `json:"summary"`
	ResumenEjecutivo *models.ExecutiveSummary `json:"resumenEjecutivo"`
}

// StripFences removes markdown code fences around a JSON payload and
// narrows the text to its outermost object.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)

	if i := strings.Index(s, fence); i >= 0 {
		rest := s[i+len(fence):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:] // drop the language tag line
		} else {
			rest = strings.TrimPrefix(rest, "json")
		}
		if j := strings.LastIndex(rest, fence); j >= 0 {
			rest = rest[:j]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// Parse decodes the upstream text into a report. The whole payload is
// decoded before anything is returned; failures wrap ErrMalformedPayload.
func Parse(raw string) (*models.InsightReport, error) {
	text := StripFences(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedPayload)
	}

	var rr rawReport
	if err := json.Unmarshal([]byte(text), &rr); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(text)
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		rr = rawReport{}
		if err := json.Unmarshal([]byte(repaired), &rr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	}

	if rr.Insights == nil {
		return nil, fmt.Errorf("%w: missing insights", ErrMalformedPayload)
	}
	summary := rr.Summary
	if summary == nil {
		summary = rr.ResumenEjecutivo
	}
	if summary == nil {
		return nil, fmt.Errorf("%w: missing summary", ErrMalformedPayload)
	}

	insights := *rr.Insights
	for i := range insights {
		if err := normalize(&insights[i], i+1); err != nil {
			return nil, fmt.Errorf("%w: insight %d: %v", ErrMalformedPayload, i+1, err)
		}
	}
	if insights == nil {
		insights = []models.InsightRecord{}
	}

	report := &models.InsightReport{
		Insights: insights,
		Summary:  *summary,
	}
	if report.Summary.MainChallenges == nil {
		report.Summary.MainChallenges = []string{}
	}
	return report, nil
}

// normalize assigns the run-local id and canonicalizes the enum fields.
func normalize(rec *models.InsightRecord, id int) error {
	rec.ID = id

	rec.Category = models.Category(enumValue(string(rec.Category)))
	if !rec.Category.Valid() {
		return fmt.Errorf("unknown category %q", rec.Category)
	}
	rec.Relevance = models.Relevance(enumValue(string(rec.Relevance)))
	if !rec.Relevance.Valid() {
		return fmt.Errorf("unknown relevance %q", rec.Relevance)
	}

	rec.LocalEmployers = nonNil(rec.LocalEmployers)
	rec.SpecificData.DemandedSkills = nonNil(rec.SpecificData.DemandedSkills)
	rec.SpecificData.ValuedCertifications = nonNil(rec.SpecificData.ValuedCertifications)
	rec.SpecificData.TrendingTools = nonNil(rec.SpecificData.TrendingTools)
	return nil
}

func enumValue(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
