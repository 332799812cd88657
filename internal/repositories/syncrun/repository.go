// Package syncrun persists the audit log of sync attempts.
package syncrun

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/huandu/go-sqlbuilder"

	"github.com/CBPFGMS/GOmapping/pkg/database"
	"github.com/CBPFGMS/GOmapping/pkg/logging"
	"github.com/CBPFGMS/GOmapping/pkg/models"
	"github.com/CBPFGMS/GOmapping/pkg/tracing"
)

var columns = []string{
	"sync_type", "status", "records_fetched", "records_created",
	"records_updated", "records_skipped", "checksum", "error_message",
	"triggered_by", "started_at", "completed_at",
}

// Repository handles sync run persistence
type Repository struct {
	db     database.DB
	logger logging.Logger
}

// NewRepository creates a new sync run repository
func NewRepository(db database.DB, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new sync run with status running and fills in its id
func (r *Repository) Create(ctx context.Context, run *models.SyncRun) error {
	ctx, span := tracing.StartSpan(ctx, "syncrun.Repository.Create")
	defer span.End()

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.SyncStatusRunning
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("sync_runs")
	sb.Cols(columns...)
	sb.Values(run.SyncType, run.Status, run.RecordsFetched, run.RecordsCreated,
		run.RecordsUpdated, run.RecordsSkipped, run.Checksum, run.ErrorMessage,
		run.TriggeredBy, run.StartedAt, run.CompletedAt)
	sb.Returning("id")

	query, args := sb.Build()
	if err := r.db.GetContext(ctx, &run.ID, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"sync_type": run.SyncType}).Error("Failed to create sync run")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create sync run")
	}

	return nil
}

// Complete writes a run's terminal fields. Called exactly once per run.
func (r *Repository) Complete(ctx context.Context, run *models.SyncRun) error {
	ctx, span := tracing.StartSpan(ctx, "syncrun.Repository.Complete")
	defer span.End()

	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("sync_runs")
	ub.Set(
		ub.Assign("status", run.Status),
		ub.Assign("records_fetched", run.RecordsFetched),
		ub.Assign("records_created", run.RecordsCreated),
		ub.Assign("records_updated", run.RecordsUpdated),
		ub.Assign("records_skipped", run.RecordsSkipped),
		ub.Assign("checksum", run.Checksum),
		ub.Assign("error_message", run.ErrorMessage),
		ub.Assign("completed_at", run.CompletedAt),
	)
	ub.Where(ub.Equal("id", run.ID))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"sync_run_id": run.ID}).Error("Failed to complete sync run")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to complete sync run")
	}

	return nil
}

// LastCompleted returns the most recent run of the type with one of the
// given statuses, or nil when none exists.
func (r *Repository) LastCompleted(ctx context.Context, syncType string, statuses ...string) (*models.SyncRun, error) {
	ctx, span := tracing.StartSpan(ctx, "syncrun.Repository.LastCompleted")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(append([]string{"id"}, columns...)...)
	sb.From("sync_runs")
	conds := []string{sb.Equal("sync_type", syncType)}
	if len(statuses) > 0 {
		vals := make([]any, len(statuses))
		for i, s := range statuses {
			vals[i] = s
		}
		conds = append(conds, sb.In("status", vals...))
	}
	sb.Where(conds...)
	sb.OrderBy("started_at DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var run models.SyncRun
	if err := r.db.GetContext(ctx, &run, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get last sync run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get last sync run")
	}

	return &run, nil
}

// List returns recent runs for a sync type, newest first. An empty
// syncType returns runs of every type.
func (r *Repository) List(ctx context.Context, syncType string, limit int) ([]models.SyncRun, error) {
	ctx, span := tracing.StartSpan(ctx, "syncrun.Repository.List")
	defer span.End()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(append([]string{"id"}, columns...)...)
	sb.From("sync_runs")
	if syncType != "" {
		sb.Where(sb.Equal("sync_type", syncType))
	}
	sb.OrderBy("started_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	runs := []models.SyncRun{}
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list sync runs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list sync runs")
	}

	return runs, nil
}

// CountsSince returns total, success and failed run counts for a sync
// type since the given time.
func (r *Repository) CountsSince(ctx context.Context, syncType string, since time.Time) (total, success, failed int, err error) {
	ctx, span := tracing.StartSpan(ctx, "syncrun.Repository.CountsSince")
	defer span.End()

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status IN ('success', 'no_changes')) AS success,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed
		FROM sync_runs
		WHERE sync_type = $1 AND started_at >= $2`

	row := r.db.QueryRowxContext(ctx, query, syncType, since)
	if scanErr := row.Scan(&total, &success, &failed); scanErr != nil {
		r.logger.WithContext(ctx).WithError(scanErr).Error("Failed to count sync runs")
		return 0, 0, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count sync runs")
	}

	return total, success, failed, nil
}
