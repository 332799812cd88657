package models

import "time"

// Risk levels derived from a mapping's match_percent
const (
	RiskLevelLow    = "LOW"
	RiskLevelMedium = "MEDIUM"
	RiskLevelHigh   = "HIGH"
)

// RiskLevelFor maps a name-match percentage to a risk level
func RiskLevelFor(matchPercent float64) string {
	switch {
	case matchPercent >= 85:
		return RiskLevelLow
	case matchPercent >= 60:
		return RiskLevelMedium
	default:
		return RiskLevelHigh
	}
}

// OrgMapping links a locally observed organization instance within a
// pooled fund to a global organization. Natural key is
// (instance_org_id, fund_id, org_id); org_id may be rewritten by an
// external merge decision, which the engine tolerates.
type OrgMapping struct {
	ID                 int64     `json:"id" db:"id"`
	OrgID              int64     `json:"org_id" db:"org_id"`
	InstanceOrgID      int64     `json:"instance_org_id" db:"instance_org_id"`
	InstanceOrgName    string    `json:"instance_org_name" db:"instance_org_name"`
	InstanceOrgAcronym *string   `json:"instance_org_acronym,omitempty" db:"instance_org_acronym"`
	InstanceOrgType    *string   `json:"instance_org_type,omitempty" db:"instance_org_type"`
	FundID             int64     `json:"fund_id" db:"fund_id"`
	FundName           *string   `json:"fund_name,omitempty" db:"fund_name"`
	MatchPercent       *float64  `json:"match_percent,omitempty" db:"match_percent"`
	RiskLevel          *string   `json:"risk_level,omitempty" db:"risk_level"`
	Status             *string   `json:"status,omitempty" db:"status"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}
