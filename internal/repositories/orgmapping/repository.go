// Package orgmapping persists the fund-level organization mapping rows.
package orgmapping

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

const insertChunkSize = 500

var columns = []string{
	"org_id", "instance_org_id", "instance_org_name", "instance_org_acronym",
	"instance_org_type", "fund_id", "fund_name", "match_percent", "risk_level",
	"status", "created_at", "updated_at",
}

// Repository handles org mapping persistence
type Repository struct {
	db     database.DB
	logger logging.Logger
}

// NewRepository creates a new org mapping repository
func NewRepository(db database.DB, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListAll returns every mapping row
func (r *Repository) ListAll(ctx context.Context) ([]models.OrgMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "orgmapping.Repository.ListAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(append([]string{"id"}, columns...)...)
	sb.From("org_mappings")
	sb.OrderBy("org_id", "id")

	query, args := sb.Build()
	mappings := []models.OrgMapping{}
	if err := r.db.SelectContext(ctx, &mappings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list org mappings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list org mappings")
	}

	return mappings, nil
}

// ListByOrg returns the mapping rows for one organization, newest
// first, capped at limit.
func (r *Repository) ListByOrg(ctx context.Context, orgID int64, limit int) ([]models.OrgMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "orgmapping.Repository.ListByOrg")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(append([]string{"id"}, columns...)...)
	sb.From("org_mappings")
	sb.Where(sb.Equal("org_id", orgID))
	sb.OrderBy("updated_at DESC", "id")
	sb.Limit(limit)

	query, args := sb.Build()
	mappings := []models.OrgMapping{}
	if err := r.db.SelectContext(ctx, &mappings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"org_id": orgID}).Error("Failed to list org mappings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list org mappings")
	}

	return mappings, nil
}

// InsertBatch inserts new mapping rows in chunks
func (r *Repository) InsertBatch(ctx context.Context, mappings []models.OrgMapping) error {
	ctx, span := tracing.StartSpan(ctx, "orgmapping.Repository.InsertBatch")
	defer span.End()

	if len(mappings) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for start := 0; start < len(mappings); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(mappings) {
			end = len(mappings)
		}

		sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		sb.InsertInto("org_mappings")
		sb.Cols(columns...)
		for _, m := range mappings[start:end] {
			sb.Values(m.OrgID, m.InstanceOrgID, m.InstanceOrgName, m.InstanceOrgAcronym,
				m.InstanceOrgType, m.FundID, m.FundName, m.MatchPercent, m.RiskLevel,
				m.Status, now, now)
		}

		query, args := sb.Build()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": end - start}).Error("Failed to insert org mappings")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert org mappings")
		}
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(mappings)}).Debug("Inserted org mappings")
	return nil
}

// Update updates a mapping row's mutable fields
func (r *Repository) Update(ctx context.Context, m *models.OrgMapping) error {
	ctx, span := tracing.StartSpan(ctx, "orgmapping.Repository.Update")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("org_mappings")
	ub.Set(
		ub.Assign("instance_org_name", m.InstanceOrgName),
		ub.Assign("instance_org_acronym", m.InstanceOrgAcronym),
		ub.Assign("instance_org_type", m.InstanceOrgType),
		ub.Assign("fund_name", m.FundName),
		ub.Assign("match_percent", m.MatchPercent),
		ub.Assign("risk_level", m.RiskLevel),
		ub.Assign("status", m.Status),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", m.ID))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"mapping_id": m.ID}).Error("Failed to update org mapping")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update org mapping")
	}

	return nil
}
