package sync

import (
	"strings"

	"github.com/CBPFGMS/GOmapping/pkg/models"
	"github.com/CBPFGMS/GOmapping/pkg/similarity"
)

// Feed column names of the upstream CSV extracts
const (
	colParentOrganizationID = "ParentOrganizationId"
	colGlobalOrgName        = "GlobalOrgName"
	colGlobalOrgAcronym     = "GlobalOrgAcronym"

	colOrganizationID       = "OrganizationId"
	colGlobalOrgID          = "GlobalOrgId"
	colOrganizationName     = "OrganizationName"
	colOrganizationAcronym  = "OrganizationAcronym"
	colOrganizationTypeName = "OrganizationTypeName"
	colPooledFundID         = "PooledFundId"
	colPooledFundName       = "PooledFundName"
	colDueDiligenceStatus   = "DueDiligenceStatus"
)

const acronymMaxLen = 50
const statusMaxLen = 50

// parseGlobalOrgRows validates the global organization feed. Rows with
// a missing id or empty name are skipped and counted, never fatal.
// Later rows win when the feed repeats an id.
func parseGlobalOrgRows(rows []Row) (orgs []models.Organization, skipped int) {
	byID := make(map[int64]int)
	orgs = make([]models.Organization, 0, len(rows))

	for _, row := range rows {
		id, ok := row.Int(colParentOrganizationID)
		if !ok {
			skipped++
			continue
		}
		name := row.Str(colGlobalOrgName)
		if name == "" {
			skipped++
			continue
		}

		org := models.Organization{
			ID:      id,
			Name:    name,
			Acronym: row.StrPtr(colGlobalOrgAcronym, acronymMaxLen),
		}

		if idx, dup := byID[id]; dup {
			orgs[idx] = org
			continue
		}
		byID[id] = len(orgs)
		orgs = append(orgs, org)
	}

	return orgs, skipped
}

// mappingKey is the natural key of a mapping row
type mappingKey struct {
	instanceOrgID int64
	fundID        int64
	orgID         int64
}

// parseMappingRows validates the org mapping feed
func parseMappingRows(rows []Row) (mappings []models.OrgMapping, skipped int) {
	mappings = make([]models.OrgMapping, 0, len(rows))

	for _, row := range rows {
		instanceID, okInstance := row.Int(colOrganizationID)
		orgID, okOrg := row.Int(colGlobalOrgID)
		if !okInstance || !okOrg {
			skipped++
			continue
		}
		name := row.Str(colOrganizationName)
		if name == "" {
			skipped++
			continue
		}

		fundID, _ := row.Int(colPooledFundID)

		mappings = append(mappings, models.OrgMapping{
			OrgID:              orgID,
			InstanceOrgID:      instanceID,
			InstanceOrgName:    name,
			InstanceOrgAcronym: row.StrPtr(colOrganizationAcronym, acronymMaxLen),
			InstanceOrgType:    row.StrPtr(colOrganizationTypeName, 0),
			FundID:             fundID,
			FundName:           row.StrPtr(colPooledFundName, 0),
			Status:             row.StrPtr(colDueDiligenceStatus, statusMaxLen),
		})
	}

	return mappings, skipped
}

// matchPercent scores how well an instance name matches its linked
// organization name: plain character ratio of the lowered names.
func matchPercent(instanceName, orgName string) *float64 {
	a := strings.TrimSpace(strings.ToLower(instanceName))
	b := strings.TrimSpace(strings.ToLower(orgName))
	if a == "" || b == "" {
		return nil
	}

	p := roundTo2(similarity.SequenceRatio(a, b) * 100)
	return &p
}
