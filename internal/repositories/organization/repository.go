// Package organization persists canonical global organization records.
package organization

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/huandu/go-sqlbuilder"

	"github.com/CBPFGMS/GOmapping/pkg/database"
	"github.com/CBPFGMS/GOmapping/pkg/logging"
	"github.com/CBPFGMS/GOmapping/pkg/models"
	"github.com/CBPFGMS/GOmapping/pkg/tracing"
)

const insertChunkSize = 500

// Repository handles organization persistence
type Repository struct {
	db     database.DB
	logger logging.Logger
}

// NewRepository creates a new organization repository
func NewRepository(db database.DB, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListAll returns every organization ordered by id
func (r *Repository) ListAll(ctx context.Context) ([]models.Organization, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.ListAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("org_id", "name", "acronym", "usage_count", "created_at", "updated_at")
	sb.From("organizations")
	sb.OrderBy("org_id")

	query, args := sb.Build()
	orgs := []models.Organization{}
	if err := r.db.SelectContext(ctx, &orgs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list organizations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list organizations")
	}

	return orgs, nil
}

// List returns a page of organizations and the total count
func (r *Repository) List(ctx context.Context, page, pageSize int) ([]models.Organization, int, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("organizations")
	query, args := countSb.Build()

	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count organizations")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count organizations")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("org_id", "name", "acronym", "usage_count", "created_at", "updated_at")
	sb.From("organizations")
	sb.OrderBy("usage_count DESC", "org_id")
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args = sb.Build()
	orgs := []models.Organization{}
	if err := r.db.SelectContext(ctx, &orgs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list organizations")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list organizations")
	}

	return orgs, total, nil
}

// Get retrieves an organization by id
func (r *Repository) Get(ctx context.Context, id int64) (*models.Organization, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("org_id", "name", "acronym", "usage_count", "created_at", "updated_at")
	sb.From("organizations")
	sb.Where(sb.Equal("org_id", id))

	query, args := sb.Build()
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("organization %d not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get organization")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get organization")
	}

	return &org, nil
}

// InsertBatch inserts new organizations in chunks
func (r *Repository) InsertBatch(ctx context.Context, orgs []models.Organization) error {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.InsertBatch")
	defer span.End()

	if len(orgs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for start := 0; start < len(orgs); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(orgs) {
			end = len(orgs)
		}

		sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		sb.InsertInto("organizations")
		sb.Cols("org_id", "name", "acronym", "usage_count", "created_at", "updated_at")
		for _, org := range orgs[start:end] {
			sb.Values(org.ID, org.Name, org.Acronym, org.UsageCount, now, now)
		}

		query, args := sb.Build()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": end - start}).Error("Failed to insert organizations")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert organizations")
		}
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(orgs)}).Debug("Inserted organizations")
	return nil
}

// Update updates an organization's mutable fields
func (r *Repository) Update(ctx context.Context, org *models.Organization) error {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.Update")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("organizations")
	ub.Set(
		ub.Assign("name", org.Name),
		ub.Assign("acronym", org.Acronym),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("org_id", org.ID))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"org_id": org.ID}).Error("Failed to update organization")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update organization")
	}

	return nil
}

// RefreshUsageCounts recomputes usage_count for every organization
// from its mapping rows, zeroing organizations with no mappings.
func (r *Repository) RefreshUsageCounts(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.RefreshUsageCounts")
	defer span.End()

	query := `
		UPDATE organizations o
		SET usage_count = COALESCE(m.cnt, 0)
		FROM (
			SELECT o2.org_id, COUNT(om.id) AS cnt
			FROM organizations o2
			LEFT JOIN org_mappings om ON om.org_id = o2.org_id
			GROUP BY o2.org_id
		) m
		WHERE m.org_id = o.org_id AND o.usage_count IS DISTINCT FROM COALESCE(m.cnt, 0)`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to refresh usage counts")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to refresh usage counts")
	}

	return nil
}
