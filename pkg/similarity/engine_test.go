package similarity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CBPFGMS/GOmapping/pkg/events"
	"github.com/CBPFGMS/GOmapping/pkg/knowledgebase"
	"github.com/CBPFGMS/GOmapping/pkg/logging"
	"github.com/CBPFGMS/GOmapping/pkg/models"
)

type fakeOrgStore struct {
	orgs      []models.Organization
	refreshed bool
}

func (f *fakeOrgStore) ListAll(ctx context.Context) ([]models.Organization, error) {
	return f.orgs, nil
}

func (f *fakeOrgStore) RefreshUsageCounts(ctx context.Context) error {
	f.refreshed = true
	return nil
}

type fakeEdgeStore struct {
	cleared bool
	rows    []models.SimilarityEdge
}

func (f *fakeEdgeStore) Replace(ctx context.Context, edges []models.SimilarityEdge) error {
	f.cleared = true
	f.rows = append([]models.SimilarityEdge(nil), edges...)
	return nil
}

func (f *fakeEdgeStore) InsertBatch(ctx context.Context, edges []models.SimilarityEdge) error {
	f.rows = append(f.rows, edges...)
	return nil
}

func (f *fakeEdgeStore) ListAll(ctx context.Context) ([]models.SimilarityEdge, error) {
	return f.rows, nil
}

type fakeMappingStore struct {
	mappings []models.OrgMapping
}

func (f *fakeMappingStore) ListAll(ctx context.Context) ([]models.OrgMapping, error) {
	return f.mappings, nil
}

func newTestEngine(orgs *fakeOrgStore, edges *fakeEdgeStore, mappings *fakeMappingStore) *Engine {
	logger := logging.NewNop()
	builder := NewSummaryBuilder(knowledgebase.New(), 0, logger)
	return NewEngine(orgs, edges, mappings, builder, nil, events.NewEmitter(nil, logger), logger)
}

func strPtr(s string) *string { return &s }

func TestRecomputeSaveTheChildren(t *testing.T) {
	orgs := &fakeOrgStore{orgs: []models.Organization{
		{ID: 1, Name: "Save the Children", Acronym: strPtr("SC"), UsageCount: 12},
		{ID: 2, Name: "Save the Children International", Acronym: strPtr("SCI"), UsageCount: 3},
		{ID: 3, Name: "Oxfam GB", UsageCount: 5},
	}}
	edges := &fakeEdgeStore{}
	engine := newTestEngine(orgs, edges, &fakeMappingStore{})

	result, err := engine.Recompute(context.Background(), Options{Clear: true})
	require.NoError(t, err)

	assert.True(t, orgs.refreshed)
	assert.True(t, edges.cleared)
	assert.Equal(t, 3, result.Organizations)
	assert.Equal(t, 1, result.Groups)

	// both names normalize identically, scored on the raws and stored
	// once per direction
	require.Len(t, edges.rows, 2)
	assert.Equal(t, int64(1), edges.rows[0].SourceOrgID)
	assert.Equal(t, int64(2), edges.rows[0].TargetOrgID)
	assert.Equal(t, int64(2), edges.rows[1].SourceOrgID)
	assert.Equal(t, int64(1), edges.rows[1].TargetOrgID)
	assert.Equal(t, edges.rows[0].Score, edges.rows[1].Score)
	assert.GreaterOrEqual(t, edges.rows[0].Score, 70.0)
	assert.LessOrEqual(t, edges.rows[0].Score, 98.0)
}

func TestRecomputeEmptyRegistry(t *testing.T) {
	engine := newTestEngine(&fakeOrgStore{}, &fakeEdgeStore{}, &fakeMappingStore{})

	result, err := engine.Recompute(context.Background(), Options{})
	require.NoError(t, err)
	assert.Zero(t, result.Organizations)
	assert.Zero(t, result.EdgesStored)
	assert.Zero(t, result.Groups)
}

func TestRecomputeThresholdFiltersEdges(t *testing.T) {
	orgs := &fakeOrgStore{orgs: []models.Organization{
		{ID: 1, Name: "Save the Children"},
		{ID: 2, Name: "Save the Children International"},
	}}
	edges := &fakeEdgeStore{}
	engine := newTestEngine(orgs, edges, &fakeMappingStore{})

	result, err := engine.Recompute(context.Background(), Options{Threshold: 99, Clear: true})
	require.NoError(t, err)
	assert.Positive(t, result.PairsScored)
	assert.Zero(t, result.EdgesStored)
	assert.Empty(t, edges.rows)
}

func TestSummaryFromStoredEdges(t *testing.T) {
	orgs := &fakeOrgStore{orgs: []models.Organization{
		{ID: 1, Name: "Save the Children", UsageCount: 12},
		{ID: 2, Name: "Save the Children International", UsageCount: 3},
		{ID: 3, Name: "Oxfam GB", UsageCount: 5},
	}}
	edges := &fakeEdgeStore{rows: []models.SimilarityEdge{
		{SourceOrgID: 1, TargetOrgID: 2, Score: 82.5},
		{SourceOrgID: 2, TargetOrgID: 1, Score: 82.5},
	}}
	engine := newTestEngine(orgs, edges, &fakeMappingStore{})

	summary, err := engine.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalOrganizations)
	assert.Equal(t, 1, summary.DuplicateGroupCount)
	assert.Equal(t, 2, summary.DuplicateOrgCount)
	assert.Equal(t, 1, summary.UniqueOrgCount)

	require.Len(t, summary.DuplicateGroups, 1)
	group := summary.DuplicateGroups[0]
	assert.Equal(t, 82.5, group.MaxScore)
	require.Len(t, group.Organizations, 2)
	assert.True(t, group.Organizations[0].IsRecommended)

	require.Len(t, summary.UniqueOrganizations, 1)
	assert.Equal(t, int64(3), summary.UniqueOrganizations[0].ID)
}
