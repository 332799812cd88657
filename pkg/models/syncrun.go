package models

import "time"

// Sync types for the two upstream CSV feeds
const (
	SyncTypeGlobalOrg  = "global_org"
	SyncTypeOrgMapping = "org_mapping"
)

// Sync run statuses
const (
	SyncStatusRunning   = "running"
	SyncStatusSuccess   = "success"
	SyncStatusFailed    = "failed"
	SyncStatusNoChanges = "no_changes"
)

// Aggregate outcomes for a run over all sync types
const (
	SyncAllCompleted     = "completed"
	SyncAllPartialFailed = "partial_failed"
	SyncAllFailed        = "failed"
)

// SyncRun is one sync attempt for a single sync type. A row is created
// with status running when the attempt starts; terminal fields are set
// exactly once at completion or failure and rows are never deleted.
type SyncRun struct {
	ID             int64      `json:"id" db:"id"`
	SyncType       string     `json:"sync_type" db:"sync_type"`
	Status         string     `json:"status" db:"status"`
	RecordsFetched int        `json:"records_fetched" db:"records_fetched"`
	RecordsCreated int        `json:"records_created" db:"records_created"`
	RecordsUpdated int        `json:"records_updated" db:"records_updated"`
	RecordsSkipped int        `json:"records_skipped" db:"records_skipped"`
	Checksum       *string    `json:"checksum,omitempty" db:"checksum"`
	ErrorMessage   *string    `json:"error_message,omitempty" db:"error_message"`
	TriggeredBy    string     `json:"triggered_by" db:"triggered_by"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Changed reports whether the run wrote anything
func (r *SyncRun) Changed() bool {
	return r.RecordsCreated > 0 || r.RecordsUpdated > 0
}

// SyncTypeStatus summarizes recent activity for one sync type
type SyncTypeStatus struct {
	IsSyncing      bool     `json:"is_syncing"`
	LastSync       *SyncRun `json:"last_sync,omitempty"`
	LastAttempt    *SyncRun `json:"last_attempt,omitempty"`
	Last24hTotal   int      `json:"last_24h_total"`
	Last24hSuccess int      `json:"last_24h_success"`
	Last24hFailed  int      `json:"last_24h_failed"`
}

// SyncStatusResponse is the status endpoint payload
type SyncStatusResponse struct {
	SyncTypes map[string]SyncTypeStatus `json:"sync_types"`
}

// SyncAllResult reports per-type outcomes of a full sync pass
type SyncAllResult struct {
	Status string              `json:"status"`
	Runs   map[string]*SyncRun `json:"runs"`
	Errors map[string]string   `json:"errors,omitempty"`
}
