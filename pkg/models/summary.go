package models

import "time"

// SummaryMapping is the trimmed mapping row shown on the dashboard
type SummaryMapping struct {
	InstanceOrgName    string   `json:"instance_org_name"`
	InstanceOrgAcronym *string  `json:"instance_org_acronym,omitempty"`
	FundName           *string  `json:"fund_name,omitempty"`
	MatchPercent       *float64 `json:"match_percent,omitempty"`
	RiskLevel          *string  `json:"risk_level,omitempty"`
	Status             *string  `json:"status,omitempty"`
}

// SummaryMember is one organization inside a duplicate group or the
// unique list, with its recommendation breakdown and capped mappings.
type SummaryMember struct {
	ID                  int64            `json:"id"`
	Name                string           `json:"name"`
	Acronym             *string          `json:"acronym,omitempty"`
	UsageCount          int              `json:"usage_count"`
	RecommendationScore float64          `json:"recommendation_score"`
	KBMatch             *string          `json:"kb_match,omitempty"`
	IsRecommended       bool             `json:"is_recommended"`
	Mappings            []SummaryMapping `json:"mappings"`
}

// SummaryGroup is one duplicate group: the recommended master first,
// remaining members by descending usage count.
type SummaryGroup struct {
	MaxScore      float64         `json:"max_score"`
	Organizations []SummaryMember `json:"organizations"`
}

// SummaryResponse is the duplicate-group dashboard payload
type SummaryResponse struct {
	TotalOrganizations  int             `json:"total_organizations"`
	DuplicateGroupCount int             `json:"duplicate_group_count"`
	DuplicateOrgCount   int             `json:"duplicate_org_count"`
	UniqueOrgCount      int             `json:"unique_org_count"`
	DuplicateGroups     []SummaryGroup  `json:"duplicate_groups"`
	UniqueOrganizations []SummaryMember `json:"unique_organizations"`
	GeneratedAt         time.Time       `json:"generated_at"`
}
