package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ospreyintel/awardflow/internal/usaspending"
)

func baseFilters() usaspending.SearchFilters {
	return usaspending.SearchFilters{
		NAICSCodes:     []string{"541512"},
		AwardTypeCodes: []string{"A", "B", "C", "D"},
		Agencies: []usaspending.AgencyFilter{
			{Type: "awarding", Tier: "toptier", Name: "Department of Defense"},
		},
		TimePeriod: []usaspending.TimePeriod{
			{StartDate: "2025-08-30", EndDate: "2026-08-30"},
		},
	}
}

func TestApplyIngestOverridesAgencies(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	req := ingestRequest{Agencies: []string{"Department of Energy", "General Services Administration"}}

	got := applyIngestOverrides(baseFilters(), req, now)

	require.Len(t, got.Agencies, 2)
	assert.Equal(t, usaspending.AgencyFilter{Type: "awarding", Tier: "toptier", Name: "Department of Energy"}, got.Agencies[0])
	assert.Equal(t, "General Services Administration", got.Agencies[1].Name)
	assert.Equal(t, []string{"541512"}, got.NAICSCodes, "unrelated filters keep their defaults")
}

func TestApplyIngestOverridesLookback(t *testing.T) {
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	req := ingestRequest{LookbackMonths: 6}

	got := applyIngestOverrides(baseFilters(), req, now)

	require.Len(t, got.TimePeriod, 1)
	assert.Equal(t, "2026-02-15", got.TimePeriod[0].StartDate)
	assert.Equal(t, "2026-08-30", got.TimePeriod[0].EndDate)
}

func TestApplyIngestOverridesEmptyRequestKeepsDefaults(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	got := applyIngestOverrides(baseFilters(), ingestRequest{}, now)

	assert.Equal(t, baseFilters(), got)
}
