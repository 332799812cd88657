// Package similarityedge persists the symmetric similarity edges
// produced by a recompute pass.
package similarityedge

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/huandu/go-sqlbuilder"

	"github.com/CBPFGMS/GOmapping/pkg/database"
	"github.com/CBPFGMS/GOmapping/pkg/logging"
	"github.com/CBPFGMS/GOmapping/pkg/models"
	"github.com/CBPFGMS/GOmapping/pkg/tracing"
)

// insertChunkSize keeps each INSERT statement well under the driver's
// parameter limit (3 params per row).
const insertChunkSize = 1000

// Repository handles similarity edge persistence
type Repository struct {
	db     database.DB
	logger logging.Logger
}

// NewRepository creates a new similarity edge repository
func NewRepository(db database.DB, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Replace swaps the full edge set in one transaction. Readers see
// either the previous edge set or the new one, never the gap between
// the delete and the inserts.
func (r *Repository) Replace(ctx context.Context, edges []models.SimilarityEdge) error {
	ctx, span := tracing.StartSpan(ctx, "similarityedge.Repository.Replace")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("similarity_edges")
	query, args := sb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to clear similarity edges")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear similarity edges")
	}

	if err := r.insertChunks(ctx, tx, edges); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to commit similarity edge replacement")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit similarity edges")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(edges)}).Debug("Replaced similarity edges")
	return nil
}

// InsertBatch upserts edge rows without touching the rest of the
// table. Re-scored pairs update in place on the composite key.
// Callers supply both directions of each undirected edge.
func (r *Repository) InsertBatch(ctx context.Context, edges []models.SimilarityEdge) error {
	ctx, span := tracing.StartSpan(ctx, "similarityedge.Repository.InsertBatch")
	defer span.End()

	if len(edges) == 0 {
		return nil
	}

	if err := r.insertChunks(ctx, r.db, edges); err != nil {
		return err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(edges)}).Debug("Inserted similarity edges")
	return nil
}

func (r *Repository) insertChunks(ctx context.Context, ex execer, edges []models.SimilarityEdge) error {
	now := time.Now().UTC()
	for start := 0; start < len(edges); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(edges) {
			end = len(edges)
		}

		ib := database.NewInsertBuilder()
		ib.InsertInto("similarity_edges")
		ib.Cols("source_org_id", "target_org_id", "score", "created_at")
		for _, e := range edges[start:end] {
			ib.Values(e.SourceOrgID, e.TargetOrgID, e.Score, now)
		}
		ub := ib.OnConflict("source_org_id", "target_org_id")
		ub.Set(
			ub.Assign("score", database.Excluded("score")),
			ub.Assign("created_at", database.Excluded("created_at")),
		)

		query, args := ib.Build()
		if _, err := ex.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": end - start}).Error("Failed to insert similarity edges")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert similarity edges")
		}
	}

	return nil
}

// ListAll returns every stored edge
func (r *Repository) ListAll(ctx context.Context) ([]models.SimilarityEdge, error) {
	ctx, span := tracing.StartSpan(ctx, "similarityedge.Repository.ListAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("source_org_id", "target_org_id", "score", "created_at")
	sb.From("similarity_edges")
	sb.OrderBy("source_org_id", "target_org_id")

	query, args := sb.Build()
	edges := []models.SimilarityEdge{}
	if err := r.db.SelectContext(ctx, &edges, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list similarity edges")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list similarity edges")
	}

	return edges, nil
}

// ListBySource returns the edges out of one organization, best first.
// Lookups are always directional, which is why edges are stored
// symmetrically.
func (r *Repository) ListBySource(ctx context.Context, sourceOrgID int64) ([]models.SimilarityEdge, error) {
	ctx, span := tracing.StartSpan(ctx, "similarityedge.Repository.ListBySource")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("source_org_id", "target_org_id", "score", "created_at")
	sb.From("similarity_edges")
	sb.Where(sb.Equal("source_org_id", sourceOrgID))
	sb.OrderBy("score DESC", "target_org_id")

	query, args := sb.Build()
	edges := []models.SimilarityEdge{}
	if err := r.db.SelectContext(ctx, &edges, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"source_org_id": sourceOrgID}).Error("Failed to list similarity edges by source")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list similarity edges")
	}

	return edges, nil
}
