package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CBPFGMS/GOmapping/pkg/httpclient"
	"github.com/CBPFGMS/GOmapping/pkg/logging"
	"github.com/CBPFGMS/GOmapping/pkg/models"
	"github.com/CBPFGMS/GOmapping/pkg/redis"
)

const globalOrgCSV = "ParentOrganizationId,GlobalOrgName,GlobalOrgAcronym\n" +
	"1,Save the Children,SC\n" +
	"2,Oxfam GB,\n"

const orgMappingCSV = "OrganizationId,GlobalOrgId,OrganizationName,OrganizationAcronym,OrganizationTypeName,PooledFundId,PooledFundName,DueDiligenceStatus\n" +
	"100,1,Save the Children Yemen,SCY,INGO,7,Yemen Humanitarian Fund,Completed\n" +
	"101,9,Mystery Org,,NNGO,7,Yemen Humanitarian Fund,\n"

type memOrgStore struct {
	orgs    map[int64]models.Organization
	created int
	updated int
}

func newMemOrgStore() *memOrgStore {
	return &memOrgStore{orgs: map[int64]models.Organization{}}
}

func (s *memOrgStore) ListAll(ctx context.Context) ([]models.Organization, error) {
	out := make([]models.Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		out = append(out, org)
	}
	return out, nil
}

func (s *memOrgStore) InsertBatch(ctx context.Context, orgs []models.Organization) error {
	for _, org := range orgs {
		s.orgs[org.ID] = org
		s.created++
	}
	return nil
}

func (s *memOrgStore) Update(ctx context.Context, org *models.Organization) error {
	s.orgs[org.ID] = *org
	s.updated++
	return nil
}

type memMappingStore struct {
	mappings map[int64]models.OrgMapping
	nextID   int64
	created  int
	updated  int
}

func newMemMappingStore() *memMappingStore {
	return &memMappingStore{mappings: map[int64]models.OrgMapping{}}
}

func (s *memMappingStore) ListAll(ctx context.Context) ([]models.OrgMapping, error) {
	out := make([]models.OrgMapping, 0, len(s.mappings))
	for _, m := range s.mappings {
		out = append(out, m)
	}
	return out, nil
}

func (s *memMappingStore) InsertBatch(ctx context.Context, mappings []models.OrgMapping) error {
	for _, m := range mappings {
		s.nextID++
		m.ID = s.nextID
		s.mappings[m.ID] = m
		s.created++
	}
	return nil
}

func (s *memMappingStore) Update(ctx context.Context, m *models.OrgMapping) error {
	s.mappings[m.ID] = *m
	s.updated++
	return nil
}

type memRunStore struct {
	runs   []*models.SyncRun
	nextID int64
}

func (s *memRunStore) Create(ctx context.Context, run *models.SyncRun) error {
	s.nextID++
	run.ID = s.nextID
	s.runs = append(s.runs, run)
	return nil
}

func (s *memRunStore) Complete(ctx context.Context, run *models.SyncRun) error {
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	return nil
}

func (s *memRunStore) LastCompleted(ctx context.Context, syncType string, statuses ...string) (*models.SyncRun, error) {
	for i := len(s.runs) - 1; i >= 0; i-- {
		run := s.runs[i]
		if run.SyncType != syncType {
			continue
		}
		for _, status := range statuses {
			if run.Status == status {
				return run, nil
			}
		}
	}
	return nil, nil
}

func (s *memRunStore) List(ctx context.Context, syncType string, limit int) ([]models.SyncRun, error) {
	out := []models.SyncRun{}
	for i := len(s.runs) - 1; i >= 0; i-- {
		if syncType != "" && s.runs[i].SyncType != syncType {
			continue
		}
		out = append(out, *s.runs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memRunStore) CountsSince(ctx context.Context, syncType string, since time.Time) (int, int, int, error) {
	total, success, failed := 0, 0, 0
	for _, run := range s.runs {
		if run.SyncType != syncType || run.StartedAt.Before(since) {
			continue
		}
		total++
		switch run.Status {
		case models.SyncStatusSuccess, models.SyncStatusNoChanges:
			success++
		case models.SyncStatusFailed:
			failed++
		}
	}
	return total, success, failed, nil
}

type fakeLease struct{}

func (fakeLease) Release(ctx context.Context) error { return nil }

type fakeLocker struct {
	held map[string]bool
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if l.held[key] {
		return nil, redis.ErrLockNotAcquired
	}
	return fakeLease{}, nil
}

type testHarness struct {
	svc      *Service
	orgs     *memOrgStore
	mappings *memMappingStore
	runs     *memRunStore
	locker   *fakeLocker
	server   *httptest.Server
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/global-orgs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(globalOrgCSV))
	})
	mux.HandleFunc("/org-mappings", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(orgMappingCSV))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	logger := logging.NewNop()
	h := &testHarness{
		orgs:     newMemOrgStore(),
		mappings: newMemMappingStore(),
		runs:     &memRunStore{},
		locker:   &fakeLocker{held: map[string]bool{}},
		server:   server,
	}
	h.svc = NewService(Config{
		GlobalOrgURL:  server.URL + "/global-orgs",
		OrgMappingURL: server.URL + "/org-mappings",
	}, httpclient.NewClient(httpclient.DefaultConfig(), logger),
		h.orgs, h.mappings, h.runs, h.locker, nil, nil, logger)

	return h
}

func TestShouldSyncForce(t *testing.T) {
	h := newHarness(t)

	decision, err := h.svc.ShouldSync(context.Background(), models.SyncTypeGlobalOrg, true)
	require.NoError(t, err)
	assert.True(t, decision.Proceed)
	assert.Equal(t, ReasonForce, decision.Reason)
}

func TestShouldSyncTooSoon(t *testing.T) {
	h := newHarness(t)

	completed := time.Now().UTC().Add(-10 * time.Minute)
	h.runs.runs = append(h.runs.runs, &models.SyncRun{
		SyncType:    models.SyncTypeGlobalOrg,
		Status:      models.SyncStatusSuccess,
		CompletedAt: &completed,
	})

	decision, err := h.svc.ShouldSync(context.Background(), models.SyncTypeGlobalOrg, false)
	require.NoError(t, err)
	assert.False(t, decision.Proceed)
	assert.True(t, strings.HasPrefix(decision.Reason, ReasonTooSoon))
}

func TestShouldSyncNoChanges(t *testing.T) {
	h := newHarness(t)

	checksum := checksumOf([]byte(globalOrgCSV))
	completed := time.Now().UTC().Add(-2 * time.Hour)
	h.runs.runs = append(h.runs.runs, &models.SyncRun{
		SyncType:    models.SyncTypeGlobalOrg,
		Status:      models.SyncStatusSuccess,
		Checksum:    &checksum,
		CompletedAt: &completed,
	})

	decision, err := h.svc.ShouldSync(context.Background(), models.SyncTypeGlobalOrg, false)
	require.NoError(t, err)
	assert.False(t, decision.Proceed)
	assert.Equal(t, ReasonNoChanges, decision.Reason)
}

func TestShouldSyncChangedFeed(t *testing.T) {
	h := newHarness(t)

	stale := checksumOf([]byte("different payload"))
	completed := time.Now().UTC().Add(-2 * time.Hour)
	h.runs.runs = append(h.runs.runs, &models.SyncRun{
		SyncType:    models.SyncTypeGlobalOrg,
		Status:      models.SyncStatusSuccess,
		Checksum:    &stale,
		CompletedAt: &completed,
	})

	decision, err := h.svc.ShouldSync(context.Background(), models.SyncTypeGlobalOrg, false)
	require.NoError(t, err)
	assert.True(t, decision.Proceed)
	assert.Equal(t, ReasonShouldSync, decision.Reason)
}

func TestSyncGlobalOrg(t *testing.T) {
	h := newHarness(t)

	result, err := h.svc.Sync(context.Background(), models.SyncTypeGlobalOrg, "test", true)
	require.NoError(t, err)
	require.True(t, result.Synced)

	run := result.Run
	assert.Equal(t, models.SyncStatusSuccess, run.Status)
	assert.Equal(t, 2, run.RecordsFetched)
	assert.Equal(t, 2, run.RecordsCreated)
	assert.Zero(t, run.RecordsUpdated)
	require.NotNil(t, run.Checksum)
	assert.NotNil(t, run.CompletedAt)

	assert.Len(t, h.orgs.orgs, 2)
	assert.Equal(t, "Save the Children", h.orgs.orgs[1].Name)
}

func TestSyncGlobalOrgIdempotent(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Sync(context.Background(), models.SyncTypeGlobalOrg, "test", true)
	require.NoError(t, err)

	result, err := h.svc.Sync(context.Background(), models.SyncTypeGlobalOrg, "test", true)
	require.NoError(t, err)

	// an identical feed produces no writes on the second pass
	assert.Equal(t, models.SyncStatusNoChanges, result.Run.Status)
	assert.Zero(t, result.Run.RecordsCreated)
	assert.Zero(t, result.Run.RecordsUpdated)
	assert.Equal(t, 2, h.orgs.created)
	assert.Zero(t, h.orgs.updated)
}

func TestSyncOrgMappingCreatesPlaceholders(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Sync(context.Background(), models.SyncTypeGlobalOrg, "test", true)
	require.NoError(t, err)

	result, err := h.svc.Sync(context.Background(), models.SyncTypeOrgMapping, "test", true)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSuccess, result.Run.Status)
	assert.Equal(t, 2, result.Run.RecordsCreated)

	// global org 9 only appears in the mapping feed
	placeholder, ok := h.orgs.orgs[9]
	require.True(t, ok)
	assert.Equal(t, "Global Org 9", placeholder.Name)

	var yemen *models.OrgMapping
	for _, m := range h.mappings.mappings {
		if m.InstanceOrgID == 100 {
			copied := m
			yemen = &copied
		}
	}
	require.NotNil(t, yemen)
	require.NotNil(t, yemen.MatchPercent)
	assert.Equal(t, 85.0, *yemen.MatchPercent)
	require.NotNil(t, yemen.RiskLevel)
	assert.Equal(t, models.RiskLevelLow, *yemen.RiskLevel)
}

func TestSyncOrgMappingIdempotent(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Sync(context.Background(), models.SyncTypeGlobalOrg, "test", true)
	require.NoError(t, err)
	_, err = h.svc.Sync(context.Background(), models.SyncTypeOrgMapping, "test", true)
	require.NoError(t, err)

	result, err := h.svc.Sync(context.Background(), models.SyncTypeOrgMapping, "test", true)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusNoChanges, result.Run.Status)
	assert.Zero(t, h.mappings.updated)
}

func TestSyncLockConflict(t *testing.T) {
	h := newHarness(t)
	h.locker.held["sync:global_org"] = true

	_, err := h.svc.Sync(context.Background(), models.SyncTypeGlobalOrg, "test", true)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
}

func TestSyncUnknownType(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Sync(context.Background(), "bogus", "test", true)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestSyncAllPartialFailure(t *testing.T) {
	h := newHarness(t)
	h.locker.held["sync:global_org"] = true

	result := h.svc.SyncAll(context.Background(), "test", true)
	assert.Equal(t, models.SyncAllPartialFailed, result.Status)
	assert.Contains(t, result.Errors, models.SyncTypeGlobalOrg)
	assert.NotContains(t, result.Errors, models.SyncTypeOrgMapping)
	assert.Contains(t, result.Runs, models.SyncTypeOrgMapping)
}

func TestStatus(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Sync(context.Background(), models.SyncTypeGlobalOrg, "test", true)
	require.NoError(t, err)

	status, err := h.svc.Status(context.Background())
	require.NoError(t, err)

	globalOrg := status.SyncTypes[models.SyncTypeGlobalOrg]
	assert.False(t, globalOrg.IsSyncing)
	require.NotNil(t, globalOrg.LastSync)
	assert.Equal(t, 1, globalOrg.Last24hTotal)
	assert.Equal(t, 1, globalOrg.Last24hSuccess)

	mapping := status.SyncTypes[models.SyncTypeOrgMapping]
	assert.Zero(t, mapping.Last24hTotal)
	assert.Nil(t, mapping.LastSync)
}
