package models

import (
	"fmt"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ProfileTable is the SurrealDB table holding career profiles.
const ProfileTable = "career_profile"

// CareerProfile is the parent entity that owns a persisted insight set.
type CareerProfile struct {
	ID                surrealmodels.RecordID `json:"id"`
	Name              string                 `json:"name"`
	Description       *string                `json:"description,omitempty"`
	Insights          []InsightRecord        `json:"insights"`
	InsightsUpdatedAt *time.Time             `json:"insights_updated_at,omitempty"`
	Created           time.Time              `json:"created,omitempty"`
}

// ProfileInput holds the fields for creating a profile.
type ProfileInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// ProfileView is the wire form of a profile with a plain string ID.
type ProfileView struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       *string         `json:"description,omitempty"`
	Insights          []InsightRecord `json:"insights"`
	InsightsUpdatedAt *time.Time      `json:"insights_updated_at,omitempty"`
	Created           time.Time       `json:"created"`
}

// View converts the stored profile to its wire form.
func (p *CareerProfile) View() ProfileView {
	id, err := RecordIDString(p.ID)
	if err != nil {
		id = fmt.Sprint(p.ID.ID)
	}
	insights := p.Insights
	if insights == nil {
		insights = []InsightRecord{}
	}
	return ProfileView{
		ID:                id,
		Name:              p.Name,
		Description:       p.Description,
		Insights:          insights,
		InsightsUpdatedAt: p.InsightsUpdatedAt,
		Created:           p.Created,
	}
}
