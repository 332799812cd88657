package models

import "time"

// Organization is a canonical global organization record subject to
// deduplication. Rows are created and updated only by the sync executor;
// usage_count is refreshed from mapping counts during a recompute pass.
type Organization struct {
	ID         int64     `json:"id" db:"org_id"`
	Name       string    `json:"name" db:"name"`
	Acronym    *string   `json:"acronym,omitempty" db:"acronym"`
	UsageCount int       `json:"usage_count" db:"usage_count"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// AcronymValue returns the acronym or an empty string
func (o *Organization) AcronymValue() string {
	if o.Acronym == nil {
		return ""
	}
	return *o.Acronym
}

// OrganizationListResponse is the response for listing organizations
type OrganizationListResponse struct {
	Items      []Organization `json:"items"`
	TotalCount int            `json:"total_count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
}
