package similarity

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/CBPFGMS/GOmapping/pkg/cache"
	"github.com/CBPFGMS/GOmapping/pkg/events"
	"github.com/CBPFGMS/GOmapping/pkg/logging"
	"github.com/CBPFGMS/GOmapping/pkg/metrics"
	"github.com/CBPFGMS/GOmapping/pkg/models"
	"github.com/CBPFGMS/GOmapping/pkg/tracing"
)

// OrganizationStore is the organization surface the engine reads
type OrganizationStore interface {
	ListAll(ctx context.Context) ([]models.Organization, error)
	RefreshUsageCounts(ctx context.Context) error
}

// EdgeStore is the similarity edge surface the engine writes and reads
type EdgeStore interface {
	Replace(ctx context.Context, edges []models.SimilarityEdge) error
	InsertBatch(ctx context.Context, edges []models.SimilarityEdge) error
	ListAll(ctx context.Context) ([]models.SimilarityEdge, error)
}

// MappingStore supplies mapping rows for summary payloads
type MappingStore interface {
	ListAll(ctx context.Context) ([]models.OrgMapping, error)
}

// Options configure a recompute pass
type Options struct {
	Threshold float64 `json:"threshold"`
	MaxBucket int     `json:"max_bucket"`
	Clear     bool    `json:"clear"`
}

// Engine runs the full similarity recompute pass: normalize, block,
// score, persist symmetric edges, and refresh derived state.
type Engine struct {
	orgs     OrganizationStore
	edges    EdgeStore
	mappings MappingStore
	summary  *SummaryBuilder
	cache    *cache.Cache
	emitter  *events.Emitter
	logger   logging.Logger
	workers  int
}

// NewEngine creates a similarity engine
func NewEngine(orgs OrganizationStore, edges EdgeStore, mappings MappingStore, summary *SummaryBuilder, viewCache *cache.Cache, emitter *events.Emitter, logger logging.Logger) *Engine {
	return &Engine{
		orgs:     orgs,
		edges:    edges,
		mappings: mappings,
		summary:  summary,
		cache:    viewCache,
		emitter:  emitter,
		logger:   logger,
		workers:  runtime.NumCPU(),
	}
}

// undirected edge produced by scoring, before symmetric expansion
type scoredEdge struct {
	a, b  int64
	score float64
}

// Recompute runs one full pass. An empty registry yields an empty
// result, not an error.
func (e *Engine) Recompute(ctx context.Context, opts Options) (*models.RecomputeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "similarity.Engine.Recompute")
	defer span.End()

	start := time.Now()
	threshold := ClampThreshold(opts.Threshold)
	maxBucket := opts.MaxBucket
	if maxBucket <= 0 {
		maxBucket = DefaultMaxBucket
	}

	if err := e.orgs.RefreshUsageCounts(ctx); err != nil {
		return nil, err
	}

	orgs, err := e.orgs.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	result := &models.RecomputeResult{
		Organizations: len(orgs),
		Threshold:     threshold,
	}

	if len(orgs) == 0 {
		e.logger.WithContext(ctx).Warn("Recompute requested on an empty registry")
		result.Duration = time.Since(start)
		return result, nil
	}

	records := make([]Record, len(orgs))
	for i, org := range orgs {
		records[i] = NewRecord(org.ID, org.Name, org.AcronymValue())
	}

	pairs, skippedBuckets := CandidatePairs(records, maxBucket)
	result.CandidatePairs = len(pairs)
	metrics.SimilarityCandidatePairs.Set(float64(len(pairs)))

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"organizations":   len(orgs),
		"candidate_pairs": len(pairs),
		"skipped_buckets": skippedBuckets,
		"threshold":       threshold,
	}).Info("Scoring candidate pairs")

	accepted, scored := e.scorePairs(records, pairs, threshold)
	result.PairsScored = scored

	// symmetric expansion: one stored row per direction
	rows := make([]models.SimilarityEdge, 0, len(accepted)*2)
	for _, edge := range accepted {
		rows = append(rows,
			models.SimilarityEdge{SourceOrgID: edge.a, TargetOrgID: edge.b, Score: edge.score},
			models.SimilarityEdge{SourceOrgID: edge.b, TargetOrgID: edge.a, Score: edge.score},
		)
	}
	result.EdgesStored = len(rows)

	if opts.Clear {
		if err := e.edges.Replace(ctx, rows); err != nil {
			return nil, err
		}
	} else if err := e.edges.InsertBatch(ctx, rows); err != nil {
		return nil, err
	}

	clusterer := NewClusterer(idsOf(orgs))
	for _, edge := range accepted {
		clusterer.AddEdge(edge.a, edge.b, edge.score)
	}
	result.Groups = len(clusterer.Groups())

	e.cache.Invalidate(ctx)

	result.Duration = time.Since(start)
	metrics.SimilarityEdgesStored.Set(float64(result.EdgesStored))
	metrics.SimilarityRecomputeDuration.Observe(result.Duration.Seconds())

	if err := e.emitter.EmitSimilarityRecomputed(ctx, result.Organizations, result.PairsScored, result.EdgesStored); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("Recompute event emission failed")
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"edges_stored": result.EdgesStored,
		"groups":       result.Groups,
		"duration":     result.Duration,
	}).Info("Similarity recompute completed")

	return result, nil
}

// scorePairs fans candidate pairs out over a worker pool. Workers share
// only the read-only record snapshot; per-worker edge slices are
// concatenated at the end.
func (e *Engine) scorePairs(records []Record, pairs []CandidatePair, threshold float64) ([]scoredEdge, int) {
	workers := e.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(pairs) {
		workers = len(pairs)
	}
	if workers == 0 {
		return nil, 0
	}

	chunks := make([][]scoredEdge, workers)
	counts := make([]int, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			local := make([]scoredEdge, 0)
			for i := w; i < len(pairs); i += workers {
				a := records[pairs[i].A]
				b := records[pairs[i].B]
				if !ShouldScore(a, b) {
					continue
				}
				counts[w]++
				score := Score(a, b)
				if score >= threshold {
					local = append(local, scoredEdge{a: a.ID, b: b.ID, score: roundScore(score)})
				}
			}
			chunks[w] = local
		}(w)
	}
	wg.Wait()

	scored := 0
	total := 0
	for w := 0; w < workers; w++ {
		scored += counts[w]
		total += len(chunks[w])
	}

	accepted := make([]scoredEdge, 0, total)
	for _, chunk := range chunks {
		accepted = append(accepted, chunk...)
	}
	return accepted, scored
}

func roundScore(s float64) float64 {
	return math.Round(s*100) / 100
}

func idsOf(orgs []models.Organization) []int64 {
	ids := make([]int64, len(orgs))
	for i, org := range orgs {
		ids[i] = org.ID
	}
	return ids
}
