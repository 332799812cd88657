package models

import "time"

// SimilarityEdge is a persisted similarity relation between two
// organizations. Edges are stored symmetrically: for every (a,b,s)
// row a (b,a,s) row exists, because lookups are always by source_org_id.
// The table is fully replaced on each recompute, never patched.
type SimilarityEdge struct {
	SourceOrgID int64     `json:"source_org_id" db:"source_org_id"`
	TargetOrgID int64     `json:"target_org_id" db:"target_org_id"`
	Score       float64   `json:"score" db:"score"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// DuplicateGroup is a transiently computed duplicate cluster. Group ids
// are arbitrary and not stable across recomputes.
type DuplicateGroup struct {
	GroupID          int     `json:"group_id"`
	MemberIDs        []int64 `json:"member_ids"`
	MaxInternalScore float64 `json:"max_internal_score"`
}

// RecomputeResult reports the outcome of a full similarity recompute
type RecomputeResult struct {
	Organizations  int           `json:"organizations"`
	CandidatePairs int           `json:"candidate_pairs"`
	PairsScored    int           `json:"pairs_scored"`
	EdgesStored    int           `json:"edges_stored"`
	Groups         int           `json:"groups"`
	Threshold      float64       `json:"threshold"`
	Duration       time.Duration `json:"duration_ms"`
}
