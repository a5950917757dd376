package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsDueNeverRun(t *testing.T) {
	assert.True(t, isDue("@daily", nil))
	assert.True(t, isDue("0 3 * * *", nil))
}

func TestIsDueDaily(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	assert.False(t, isDue("@daily", &recent))

	stale := time.Now().Add(-25 * time.Hour)
	assert.True(t, isDue("@daily", &stale))
}

func TestIsDueCronExpression(t *testing.T) {
	// Hourly at minute zero; a run two hours ago always has a due firing.
	old := time.Now().Add(-2 * time.Hour)
	assert.True(t, isDue("0 * * * *", &old))
}

func TestIsDueInvalidExpressionFallsBackToDaily(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	assert.False(t, isDue("not a cron spec", &recent))

	stale := time.Now().Add(-25 * time.Hour)
	assert.True(t, isDue("not a cron spec", &stale))
}
