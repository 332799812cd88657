package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGlobalOrgRows(t *testing.T) {
	rows := []Row{
		{colParentOrganizationID: "1", colGlobalOrgName: "Save the Children", colGlobalOrgAcronym: "SC"},
		{colParentOrganizationID: "", colGlobalOrgName: "Missing ID"},
		{colParentOrganizationID: "2", colGlobalOrgName: ""},
		{colParentOrganizationID: "3", colGlobalOrgName: "Oxfam GB"},
	}

	orgs, skipped := parseGlobalOrgRows(rows)
	assert.Equal(t, 2, skipped)
	require.Len(t, orgs, 2)
	assert.Equal(t, int64(1), orgs[0].ID)
	require.NotNil(t, orgs[0].Acronym)
	assert.Equal(t, "SC", *orgs[0].Acronym)
	assert.Nil(t, orgs[1].Acronym)
}

func TestParseGlobalOrgRowsDuplicateIDLastWins(t *testing.T) {
	rows := []Row{
		{colParentOrganizationID: "1", colGlobalOrgName: "Old Name"},
		{colParentOrganizationID: "1", colGlobalOrgName: "New Name"},
	}

	orgs, skipped := parseGlobalOrgRows(rows)
	assert.Zero(t, skipped)
	require.Len(t, orgs, 1)
	assert.Equal(t, "New Name", orgs[0].Name)
}

func TestParseMappingRows(t *testing.T) {
	rows := []Row{
		{
			colOrganizationID:       "100",
			colGlobalOrgID:          "1",
			colOrganizationName:     "Save the Children Yemen",
			colOrganizationAcronym:  "SCY",
			colOrganizationTypeName: "INGO",
			colPooledFundID:         "7",
			colPooledFundName:       "Yemen Humanitarian Fund",
			colDueDiligenceStatus:   "Completed",
		},
		{colOrganizationID: "", colGlobalOrgID: "1", colOrganizationName: "No Instance"},
		{colOrganizationID: "101", colGlobalOrgID: "", colOrganizationName: "No Org"},
		{colOrganizationID: "102", colGlobalOrgID: "2", colOrganizationName: ""},
		{colOrganizationID: "103", colGlobalOrgID: "2", colOrganizationName: "No Fund"},
	}

	mappings, skipped := parseMappingRows(rows)
	assert.Equal(t, 3, skipped)
	require.Len(t, mappings, 2)

	m := mappings[0]
	assert.Equal(t, int64(100), m.InstanceOrgID)
	assert.Equal(t, int64(1), m.OrgID)
	assert.Equal(t, int64(7), m.FundID)
	require.NotNil(t, m.Status)
	assert.Equal(t, "Completed", *m.Status)

	// a missing fund id defaults to zero rather than skipping the row
	assert.Equal(t, int64(0), mappings[1].FundID)
}

func TestMatchPercent(t *testing.T) {
	p := matchPercent("Save the Children", "Save the Children")
	require.NotNil(t, p)
	assert.Equal(t, 100.0, *p)

	p = matchPercent("Save the Children Yemen", "Save the Children")
	require.NotNil(t, p)
	assert.Greater(t, *p, 70.0)
	assert.Less(t, *p, 100.0)

	assert.Nil(t, matchPercent("", "Save the Children"))
	assert.Nil(t, matchPercent("Save the Children", ""))
}
