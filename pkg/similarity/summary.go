package similarity

import (
	"context"
	"sort"
	"time"

	"github.com/CBPFGMS/GOmapping/pkg/knowledgebase"
	"github.com/CBPFGMS/GOmapping/pkg/logging"
	"github.com/CBPFGMS/GOmapping/pkg/metrics"
	"github.com/CBPFGMS/GOmapping/pkg/models"
	"github.com/CBPFGMS/GOmapping/pkg/tracing"
)

// DefaultMappingLimit caps the mapping rows shown per organization on
// the dashboard.
const DefaultMappingLimit = 20

const summaryCacheKey = "summary"

// SummaryBuilder assembles the duplicate-group dashboard payload from
// the current registry snapshot.
type SummaryBuilder struct {
	kb           *knowledgebase.KnowledgeBase
	mappingLimit int
	logger       logging.Logger
}

// NewSummaryBuilder creates a summary builder
func NewSummaryBuilder(kb *knowledgebase.KnowledgeBase, mappingLimit int, logger logging.Logger) *SummaryBuilder {
	if mappingLimit <= 0 {
		mappingLimit = DefaultMappingLimit
	}
	return &SummaryBuilder{
		kb:           kb,
		mappingLimit: mappingLimit,
		logger:       logger,
	}
}

// Build computes the summary from in-memory snapshots. Pure aside from
// a warning when edges reference unknown organizations.
func (b *SummaryBuilder) Build(ctx context.Context, orgs []models.Organization, edges []models.SimilarityEdge, mappings []models.OrgMapping) *models.SummaryResponse {
	clusterer := NewClusterer(idsOf(orgs))
	for _, e := range edges {
		// stored rows carry both directions; the clusterer treats the
		// second direction as a no-op union
		clusterer.AddEdge(e.SourceOrgID, e.TargetOrgID, e.Score)
	}
	if dropped := clusterer.DroppedEdges(); dropped > 0 {
		b.logger.WithContext(ctx).Warnf("Dropped %d similarity edges referencing unknown organizations", dropped)
	}

	mappingsByOrg := make(map[int64][]models.SummaryMapping)
	for _, m := range mappings {
		rows := mappingsByOrg[m.OrgID]
		if len(rows) >= b.mappingLimit {
			continue
		}
		mappingsByOrg[m.OrgID] = append(rows, models.SummaryMapping{
			InstanceOrgName:    m.InstanceOrgName,
			InstanceOrgAcronym: m.InstanceOrgAcronym,
			FundName:           m.FundName,
			MatchPercent:       m.MatchPercent,
			RiskLevel:          m.RiskLevel,
			Status:             m.Status,
		})
	}

	orgByID := make(map[int64]models.Organization, len(orgs))
	for _, org := range orgs {
		orgByID[org.ID] = org
	}

	groups := clusterer.Groups()
	grouped := GroupedIDs(groups)

	summaryGroups := make([]models.SummaryGroup, 0, len(groups))
	for _, g := range groups {
		members := make([]models.SummaryMember, 0, len(g.MemberIDs))
		for _, id := range g.MemberIDs {
			org, ok := orgByID[id]
			if !ok {
				continue
			}
			members = append(members, b.member(org, mappingsByOrg[id]))
		}
		if len(members) < 2 {
			continue
		}

		markRecommended(members)
		summaryGroups = append(summaryGroups, models.SummaryGroup{
			MaxScore:      g.MaxInternalScore,
			Organizations: members,
		})
	}

	sort.SliceStable(summaryGroups, func(i, j int) bool {
		return summaryGroups[i].MaxScore > summaryGroups[j].MaxScore
	})

	unique := make([]models.SummaryMember, 0, len(orgs)-len(grouped))
	for _, org := range orgs {
		if _, ok := grouped[org.ID]; ok {
			continue
		}
		unique = append(unique, b.member(org, mappingsByOrg[org.ID]))
	}
	sort.SliceStable(unique, func(i, j int) bool {
		if unique[i].UsageCount != unique[j].UsageCount {
			return unique[i].UsageCount > unique[j].UsageCount
		}
		return unique[i].ID < unique[j].ID
	})

	return &models.SummaryResponse{
		TotalOrganizations:  len(orgs),
		DuplicateGroupCount: len(summaryGroups),
		DuplicateOrgCount:   len(grouped),
		UniqueOrgCount:      len(unique),
		DuplicateGroups:     summaryGroups,
		UniqueOrganizations: unique,
		GeneratedAt:         time.Now().UTC(),
	}
}

func (b *SummaryBuilder) member(org models.Organization, mappings []models.SummaryMapping) models.SummaryMember {
	rec := b.kb.Recommend(org.Name, org.UsageCount)

	member := models.SummaryMember{
		ID:                  org.ID,
		Name:                org.Name,
		Acronym:             org.Acronym,
		UsageCount:          org.UsageCount,
		RecommendationScore: rec.Score,
		Mappings:            mappings,
	}
	if member.Mappings == nil {
		member.Mappings = []models.SummaryMapping{}
	}
	if rec.KBMatch {
		name := rec.StandardName
		member.KBMatch = &name
	}
	return member
}

// markRecommended flags the member with the highest recommendation
// score as the suggested master, breaking ties by lowest id, and
// reorders the slice: recommended first, remaining members by
// descending usage count.
func markRecommended(members []models.SummaryMember) {
	best := 0
	for i := 1; i < len(members); i++ {
		if members[i].RecommendationScore > members[best].RecommendationScore ||
			(members[i].RecommendationScore == members[best].RecommendationScore && members[i].ID < members[best].ID) {
			best = i
		}
	}
	members[best].IsRecommended = true

	recommended := members[best]
	rest := make([]models.SummaryMember, 0, len(members)-1)
	for i, m := range members {
		if i != best {
			rest = append(rest, m)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		if rest[i].UsageCount != rest[j].UsageCount {
			return rest[i].UsageCount > rest[j].UsageCount
		}
		return rest[i].ID < rest[j].ID
	})

	members[0] = recommended
	copy(members[1:], rest)
}

// Summary returns the dashboard payload, serving from the view cache
// when possible.
func (e *Engine) Summary(ctx context.Context) (*models.SummaryResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "similarity.Engine.Summary")
	defer span.End()

	var cached models.SummaryResponse
	if e.cache.Get(ctx, summaryCacheKey, &cached) {
		metrics.CacheHitsTotal.WithLabelValues("summary", "hit").Inc()
		return &cached, nil
	}
	metrics.CacheHitsTotal.WithLabelValues("summary", "miss").Inc()

	orgs, err := e.orgs.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := e.edges.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	mappings, err := e.mappings.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	summary := e.summary.Build(ctx, orgs, edges, mappings)
	e.cache.Set(ctx, summaryCacheKey, summary)

	return summary, nil
}
