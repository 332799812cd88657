// Package sync keeps the registry current against the upstream CSV
// feeds: change detection, leased execution, idempotent upserts, and
// the sync audit trail.
package sync

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/CBPFGMS/GOmapping/pkg/cache"
	"github.com/CBPFGMS/GOmapping/pkg/events"
	"github.com/CBPFGMS/GOmapping/pkg/httpclient"
	"github.com/CBPFGMS/GOmapping/pkg/logging"
	"github.com/CBPFGMS/GOmapping/pkg/metrics"
	"github.com/CBPFGMS/GOmapping/pkg/models"
	"github.com/CBPFGMS/GOmapping/pkg/redis"
	"github.com/CBPFGMS/GOmapping/pkg/tracing"
)

// DefaultMinInterval is the minimum time between syncs of one type
const DefaultMinInterval = 30 * time.Minute

// DefaultChecksumSampleSize is how many leading bytes of the feed the
// cheap change-detection checksum covers.
const DefaultChecksumSampleSize = 10240

// DefaultLockTTL bounds how long a sync lease is held
const DefaultLockTTL = 10 * time.Minute

// Decision reasons returned by ShouldSync
const (
	ReasonForce      = "force_sync"
	ReasonTooSoon    = "too_soon"
	ReasonNoChanges  = "no_changes"
	ReasonShouldSync = "should_sync"
)

// OrganizationStore is the organization surface the executor writes
type OrganizationStore interface {
	ListAll(ctx context.Context) ([]models.Organization, error)
	InsertBatch(ctx context.Context, orgs []models.Organization) error
	Update(ctx context.Context, org *models.Organization) error
}

// MappingStore is the mapping surface the executor writes
type MappingStore interface {
	ListAll(ctx context.Context) ([]models.OrgMapping, error)
	InsertBatch(ctx context.Context, mappings []models.OrgMapping) error
	Update(ctx context.Context, m *models.OrgMapping) error
}

// RunStore is the sync audit-log surface
type RunStore interface {
	Create(ctx context.Context, run *models.SyncRun) error
	Complete(ctx context.Context, run *models.SyncRun) error
	LastCompleted(ctx context.Context, syncType string, statuses ...string) (*models.SyncRun, error)
	List(ctx context.Context, syncType string, limit int) ([]models.SyncRun, error)
	CountsSince(ctx context.Context, syncType string, since time.Time) (total, success, failed int, err error)
}

// Lease is a held mutual-exclusion lease
type Lease interface {
	Release(ctx context.Context) error
}

// Locker grants per-sync-type leases so two runs of the same type can
// never execute concurrently.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// RedisLocker adapts the redis Locker to the Lease interfaces
type RedisLocker struct {
	Locker *redis.Locker
}

func (r RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	return r.Locker.Acquire(ctx, key, ttl)
}

// Config holds sync service configuration
type Config struct {
	GlobalOrgURL       string
	OrgMappingURL      string
	MinInterval        time.Duration
	ChecksumSampleSize int64
	LockTTL            time.Duration
}

// Decision is the outcome of the three-level sync gate
type Decision struct {
	Proceed bool            `json:"proceed"`
	Reason  string          `json:"reason"`
	LastRun *models.SyncRun `json:"last_run,omitempty"`
}

// Result reports one sync attempt
type Result struct {
	Synced bool            `json:"synced"`
	Reason string          `json:"reason,omitempty"`
	Run    *models.SyncRun `json:"run,omitempty"`
}

// Service orchestrates feed synchronization
type Service struct {
	cfg      Config
	http     *httpclient.Client
	orgs     OrganizationStore
	mappings MappingStore
	runs     RunStore
	locker   Locker
	cache    *cache.Cache
	emitter  *events.Emitter
	logger   logging.Logger
	now      func() time.Time
}

// NewService creates a sync service
func NewService(cfg Config, client *httpclient.Client, orgs OrganizationStore, mappings MappingStore, runs RunStore, locker Locker, viewCache *cache.Cache, emitter *events.Emitter, logger logging.Logger) *Service {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.ChecksumSampleSize <= 0 {
		cfg.ChecksumSampleSize = DefaultChecksumSampleSize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	return &Service{
		cfg:      cfg,
		http:     client,
		orgs:     orgs,
		mappings: mappings,
		runs:     runs,
		locker:   locker,
		cache:    viewCache,
		emitter:  emitter,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) feedURL(syncType string) (string, error) {
	switch syncType {
	case models.SyncTypeGlobalOrg:
		return s.cfg.GlobalOrgURL, nil
	case models.SyncTypeOrgMapping:
		return s.cfg.OrgMappingURL, nil
	default:
		return "", httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown sync type %q", syncType))
	}
}

// ShouldSync runs the three-level gate: force bypasses everything,
// then the minimum interval, then the cheap feed checksum. A checksum
// failure falls through to proceeding, it never blocks a sync.
func (s *Service) ShouldSync(ctx context.Context, syncType string, force bool) (Decision, error) {
	ctx, span := tracing.StartSpan(ctx, "sync.Service.ShouldSync")
	defer span.End()

	if force {
		return Decision{Proceed: true, Reason: ReasonForce}, nil
	}

	lastRun, err := s.runs.LastCompleted(ctx, syncType, models.SyncStatusSuccess, models.SyncStatusNoChanges)
	if err != nil {
		return Decision{}, err
	}

	if lastRun != nil && lastRun.CompletedAt != nil {
		sinceLast := s.now().Sub(*lastRun.CompletedAt)
		if sinceLast < s.cfg.MinInterval {
			return Decision{
				Proceed: false,
				Reason:  fmt.Sprintf("%s (%.1f minutes ago)", ReasonTooSoon, sinceLast.Minutes()),
				LastRun: lastRun,
			}, nil
		}
	}

	checksum, err := s.feedChecksum(ctx, syncType)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warnf("Unable to checksum %s feed, proceeding with sync", syncType)
	} else if lastRun != nil && lastRun.Checksum != nil && checksum == *lastRun.Checksum {
		return Decision{Proceed: false, Reason: ReasonNoChanges, LastRun: lastRun}, nil
	}

	return Decision{Proceed: true, Reason: ReasonShouldSync, LastRun: lastRun}, nil
}

// feedChecksum hashes the first ChecksumSampleSize bytes of the feed
func (s *Service) feedChecksum(ctx context.Context, syncType string) (string, error) {
	url, err := s.feedURL(syncType)
	if err != nil {
		return "", err
	}

	prefix, err := s.http.GetPrefix(ctx, url, s.cfg.ChecksumSampleSize)
	if err != nil {
		return "", err
	}

	return checksumOf(prefix), nil
}

func checksumOf(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Sync runs one gated, leased sync of a single type
func (s *Service) Sync(ctx context.Context, syncType string, triggeredBy string, force bool) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "sync.Service.Sync")
	defer span.End()

	url, err := s.feedURL(syncType)
	if err != nil {
		return nil, err
	}

	decision, err := s.ShouldSync(ctx, syncType, force)
	if err != nil {
		return nil, err
	}
	if !decision.Proceed {
		s.logger.WithContext(ctx).WithFields(map[string]any{"sync_type": syncType, "reason": decision.Reason}).Info("Sync skipped")
		return &Result{Synced: false, Reason: decision.Reason, Run: decision.LastRun}, nil
	}

	lease, err := s.locker.Acquire(ctx, "sync:"+syncType, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			return nil, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("a %s sync is already running", syncType))
		}
		return nil, err
	}
	defer func() {
		if releaseErr := lease.Release(ctx); releaseErr != nil {
			s.logger.WithContext(ctx).WithError(releaseErr).Warn("Failed to release sync lease")
		}
	}()

	run := &models.SyncRun{
		SyncType:    syncType,
		Status:      models.SyncStatusRunning,
		TriggeredBy: triggeredBy,
		StartedAt:   s.now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := s.execute(ctx, run, url, syncType); err != nil {
		msg := err.Error()
		run.Status = models.SyncStatusFailed
		run.ErrorMessage = &msg
		if completeErr := s.runs.Complete(ctx, run); completeErr != nil {
			s.logger.WithContext(ctx).WithError(completeErr).Error("Failed to record sync failure")
		}
		metrics.SyncRunsTotal.WithLabelValues(syncType, run.Status).Inc()
		return nil, err
	}

	if err := s.runs.Complete(ctx, run); err != nil {
		return nil, err
	}

	metrics.SyncRunsTotal.WithLabelValues(syncType, run.Status).Inc()
	metrics.SyncDuration.WithLabelValues(syncType).Observe(time.Since(start).Seconds())
	metrics.SyncRowsSkipped.WithLabelValues(syncType).Add(float64(run.RecordsSkipped))

	if err := s.emitter.EmitSyncCompleted(ctx, syncType, run.Status, run.RecordsCreated+run.RecordsUpdated, triggeredBy); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Sync event emission failed")
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"sync_type": syncType,
		"status":    run.Status,
		"fetched":   run.RecordsFetched,
		"created":   run.RecordsCreated,
		"updated":   run.RecordsUpdated,
		"skipped":   run.RecordsSkipped,
	}).Info("Sync completed")

	return &Result{Synced: true, Reason: decision.Reason, Run: run}, nil
}

// execute fetches and upserts one feed, filling the run's counters
func (s *Service) execute(ctx context.Context, run *models.SyncRun, url string, syncType string) error {
	resp, err := s.http.Get(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("feed fetch failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed fetch failed: unexpected status %d", resp.StatusCode)
	}

	rows, err := ParseRows(resp.Body)
	if err != nil {
		return fmt.Errorf("feed parse failed: %w", err)
	}
	run.RecordsFetched = len(rows)

	var created, updated, skipped int
	switch syncType {
	case models.SyncTypeGlobalOrg:
		created, updated, skipped, err = s.upsertGlobalOrgs(ctx, rows)
	case models.SyncTypeOrgMapping:
		created, updated, skipped, err = s.upsertOrgMappings(ctx, rows)
	}
	if err != nil {
		return err
	}

	run.RecordsCreated = created
	run.RecordsUpdated = updated
	run.RecordsSkipped = skipped

	sample := resp.Body
	if int64(len(sample)) > s.cfg.ChecksumSampleSize {
		sample = sample[:s.cfg.ChecksumSampleSize]
	}
	checksum := checksumOf(sample)
	run.Checksum = &checksum

	if created > 0 || updated > 0 {
		run.Status = models.SyncStatusSuccess
		s.cache.Invalidate(ctx)
	} else {
		run.Status = models.SyncStatusNoChanges
	}

	return nil
}

// upsertGlobalOrgs merges the global organization feed into the store.
// Only rows whose mutable fields actually differ count as updates, so
// re-running an identical feed reports zero deltas.
func (s *Service) upsertGlobalOrgs(ctx context.Context, rows []Row) (created, updated, skipped int, err error) {
	incoming, skipped := parseGlobalOrgRows(rows)
	if skipped > 0 {
		s.logger.WithContext(ctx).Warnf("GlobalOrg feed: skipped %d rows failing validation", skipped)
	}
	if len(incoming) == 0 {
		return 0, 0, skipped, nil
	}

	existing, err := s.orgs.ListAll(ctx)
	if err != nil {
		return 0, 0, skipped, err
	}
	byID := make(map[int64]models.Organization, len(existing))
	for _, org := range existing {
		byID[org.ID] = org
	}

	toCreate := make([]models.Organization, 0)
	for _, org := range incoming {
		current, ok := byID[org.ID]
		if !ok {
			toCreate = append(toCreate, org)
			continue
		}
		if current.Name != org.Name || !strPtrEqual(current.Acronym, org.Acronym) {
			org.UsageCount = current.UsageCount
			if updateErr := s.orgs.Update(ctx, &org); updateErr != nil {
				return created, updated, skipped, updateErr
			}
			updated++
		}
	}

	if err := s.orgs.InsertBatch(ctx, toCreate); err != nil {
		return created, updated, skipped, err
	}
	created = len(toCreate)

	return created, updated, skipped, nil
}

// upsertOrgMappings merges the mapping feed, creating placeholder
// organizations for referenced ids the global feed has not delivered
// yet, and scoring each row's name match against its organization.
func (s *Service) upsertOrgMappings(ctx context.Context, rows []Row) (created, updated, skipped int, err error) {
	incoming, skipped := parseMappingRows(rows)
	if skipped > 0 {
		s.logger.WithContext(ctx).Warnf("OrgMapping feed: skipped %d rows failing validation", skipped)
	}
	if len(incoming) == 0 {
		return 0, 0, skipped, nil
	}

	orgs, err := s.orgs.ListAll(ctx)
	if err != nil {
		return 0, 0, skipped, err
	}
	orgNames := make(map[int64]string, len(orgs))
	for _, org := range orgs {
		orgNames[org.ID] = org.Name
	}

	placeholders := make([]models.Organization, 0)
	for _, m := range incoming {
		if _, ok := orgNames[m.OrgID]; ok {
			continue
		}
		name := fmt.Sprintf("Global Org %d", m.OrgID)
		orgNames[m.OrgID] = name
		placeholders = append(placeholders, models.Organization{ID: m.OrgID, Name: name})
	}
	if err := s.orgs.InsertBatch(ctx, placeholders); err != nil {
		return 0, 0, skipped, err
	}

	existing, err := s.mappings.ListAll(ctx)
	if err != nil {
		return 0, 0, skipped, err
	}
	byKey := make(map[mappingKey]models.OrgMapping, len(existing))
	for _, m := range existing {
		byKey[mappingKey{m.InstanceOrgID, m.FundID, m.OrgID}] = m
	}

	toCreate := make([]models.OrgMapping, 0)
	for _, m := range incoming {
		m.MatchPercent = matchPercent(m.InstanceOrgName, orgNames[m.OrgID])
		if m.MatchPercent != nil {
			level := models.RiskLevelFor(*m.MatchPercent)
			m.RiskLevel = &level
		}

		current, ok := byKey[mappingKey{m.InstanceOrgID, m.FundID, m.OrgID}]
		if !ok {
			toCreate = append(toCreate, m)
			continue
		}
		if mappingChanged(current, m) {
			m.ID = current.ID
			if updateErr := s.mappings.Update(ctx, &m); updateErr != nil {
				return created, updated, skipped, updateErr
			}
			updated++
		}
	}

	if err := s.mappings.InsertBatch(ctx, toCreate); err != nil {
		return created, updated, skipped, err
	}
	created = len(toCreate)

	return created, updated, skipped, nil
}

func mappingChanged(current, next models.OrgMapping) bool {
	return current.InstanceOrgName != next.InstanceOrgName ||
		!strPtrEqual(current.InstanceOrgAcronym, next.InstanceOrgAcronym) ||
		!strPtrEqual(current.InstanceOrgType, next.InstanceOrgType) ||
		!strPtrEqual(current.FundName, next.FundName) ||
		!strPtrEqual(current.Status, next.Status) ||
		!floatPtrEqual(current.MatchPercent, next.MatchPercent)
}

// SyncAll syncs the global organization feed, then the mapping feed.
// A global-org failure is partial (mappings are still attempted); a
// mapping failure marks the whole pass failed.
func (s *Service) SyncAll(ctx context.Context, triggeredBy string, force bool) *models.SyncAllResult {
	ctx, span := tracing.StartSpan(ctx, "sync.Service.SyncAll")
	defer span.End()

	result := &models.SyncAllResult{
		Status: models.SyncAllCompleted,
		Runs:   map[string]*models.SyncRun{},
		Errors: map[string]string{},
	}

	if res, err := s.Sync(ctx, models.SyncTypeGlobalOrg, triggeredBy, force); err != nil {
		result.Errors[models.SyncTypeGlobalOrg] = err.Error()
		result.Status = models.SyncAllPartialFailed
	} else {
		result.Runs[models.SyncTypeGlobalOrg] = res.Run
	}

	if res, err := s.Sync(ctx, models.SyncTypeOrgMapping, triggeredBy, force); err != nil {
		result.Errors[models.SyncTypeOrgMapping] = err.Error()
		result.Status = models.SyncAllFailed
	} else {
		result.Runs[models.SyncTypeOrgMapping] = res.Run
	}

	if len(result.Errors) == 0 {
		result.Errors = nil
	}
	return result
}

// Status reports recent sync activity per sync type
func (s *Service) Status(ctx context.Context) (*models.SyncStatusResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "sync.Service.Status")
	defer span.End()

	resp := &models.SyncStatusResponse{SyncTypes: map[string]models.SyncTypeStatus{}}
	since := s.now().Add(-24 * time.Hour)

	for _, syncType := range []string{models.SyncTypeGlobalOrg, models.SyncTypeOrgMapping} {
		lastSync, err := s.runs.LastCompleted(ctx, syncType, models.SyncStatusSuccess, models.SyncStatusNoChanges)
		if err != nil {
			return nil, err
		}
		running, err := s.runs.LastCompleted(ctx, syncType, models.SyncStatusRunning)
		if err != nil {
			return nil, err
		}
		attempts, err := s.runs.List(ctx, syncType, 1)
		if err != nil {
			return nil, err
		}
		total, success, failed, err := s.runs.CountsSince(ctx, syncType, since)
		if err != nil {
			return nil, err
		}

		status := models.SyncTypeStatus{
			IsSyncing:      running != nil && running.CompletedAt == nil,
			LastSync:       lastSync,
			Last24hTotal:   total,
			Last24hSuccess: success,
			Last24hFailed:  failed,
		}
		if len(attempts) > 0 {
			status.LastAttempt = &attempts[0]
		}
		resp.SyncTypes[syncType] = status
	}

	return resp, nil
}

// History returns recent sync runs, optionally filtered by type
func (s *Service) History(ctx context.Context, syncType string, limit int) ([]models.SyncRun, error) {
	ctx, span := tracing.StartSpan(ctx, "sync.Service.History")
	defer span.End()

	return s.runs.List(ctx, syncType, limit)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
