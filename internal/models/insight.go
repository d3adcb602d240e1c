package models

// Category classifies an insight.
type Category string

const (
	CategoryMarketTrend      Category = "market_trend"
	CategoryJobOpportunity   Category = "job_opportunity"
	CategorySkillFormation   Category = "skill_formation"
	CategoryEconomicInfo     Category = "economic_info"
	CategoryWorkModality     Category = "work_modality"
	CategoryEducationContext Category = "education_context"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryMarketTrend,
	CategoryJobOpportunity,
	CategorySkillFormation,
	CategoryEconomicInfo,
	CategoryWorkModality,
	CategoryEducationContext,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Relevance ranks how much an insight matters to the student.
type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
	RelevanceLow    Relevance = "low"
)

// Valid reports whether r is high, medium or low.
func (r Relevance) Valid() bool {
	return r == RelevanceHigh || r == RelevanceMedium || r == RelevanceLow
}

// Money is an amount in local currency with its USD equivalent.
type Money struct {
	LocalCurrency string `json:"local_currency"`
	USD           string `json:"usd"`
}

// SalaryRanges holds salary bands by seniority.
type SalaryRanges struct {
	Entry  Money `json:"entry"`
	Mid    Money `json:"mid"`
	Senior Money `json:"senior"`
}

// SpecificData carries the quantitative part of an insight.
type SpecificData struct {
	SalaryRanges         *SalaryRanges `json:"salary_ranges,omitempty"`
	DemandedSkills       []string      `json:"demanded_skills"`
	ValuedCertifications []string      `json:"valued_certifications"`
	TrendingTools        []string      `json:"trending_tools"`
}

// InsightRecord is one finding of a generation run.
// ID is assigned 1..N per run and is not durable across runs.
type InsightRecord struct {
	ID                    int          `json:"id"`
	Title                 string       `json:"title"`
	Description           string       `json:"description"`
	Category              Category     `json:"category"`
	Relevance             Relevance    `json:"relevance"`
	Date                  string       `json:"date"`
	SourceName            string       `json:"source_name"`
	SourceLink            string       `json:"source_link"`
	Impact                string       `json:"impact"`
	RecencyNote           string       `json:"recency_note"`
	LocalEmployers        []string     `json:"local_employers"`
	LocalContext          string       `json:"local_context"`
	SpecificData          SpecificData `json:"specific_data"`
	StudentRecommendation string       `json:"student_recommendation"`
}

// ExecutiveSummary closes a generation run. Exactly one exists per run.
type ExecutiveSummary struct {
	GeneralTrend          string   `json:"general_trend"`
	MainOpportunity       string   `json:"main_opportunity"`
	MainChallenges        []string `json:"main_challenges"`
	GeneralRecommendation string   `json:"general_recommendation"`
	OutlookNextPeriod     string   `json:"outlook_next_period"`
}

// InsightReport is the parsed upstream payload: the insights in upstream order plus the summary.
type InsightReport struct {
	Insights []InsightRecord  `json:"insights"`
	Summary  ExecutiveSummary `json:"summary"`
}
