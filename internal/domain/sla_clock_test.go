package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotAtRunningAccrues(t *testing.T) {
	resumed := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	clock := SLAClockState{
		TicketID:     "t1",
		Metric:       MetricFirstResponse,
		BudgetMs:     (4 * time.Hour).Milliseconds(),
		ElapsedMs:    (30 * time.Minute).Milliseconds(),
		LastResumeAt: &resumed,
	}

	snap := clock.SnapshotAt(resumed.Add(90*time.Minute), nil)

	assert.Equal(t, (2 * time.Hour).Milliseconds(), snap.ElapsedMs)
	assert.Equal(t, (2 * time.Hour).Milliseconds(), snap.RemainingMs)
	assert.InDelta(t, 50, snap.PercentUsed, 0.01)
	assert.True(t, snap.Running)
}

func TestSnapshotAtPausedIsFrozen(t *testing.T) {
	clock := SLAClockState{
		Metric:    MetricResolution,
		BudgetMs:  (8 * time.Hour).Milliseconds(),
		ElapsedMs: (2 * time.Hour).Milliseconds(),
	}

	snap := clock.SnapshotAt(time.Now().Add(48*time.Hour), nil)

	assert.Equal(t, (2 * time.Hour).Milliseconds(), snap.ElapsedMs)
	assert.False(t, snap.Running)
}

func TestSnapshotAtCountsBusinessTimeOnly(t *testing.T) {
	cal := businessHours()
	// Resumed Friday 16:00; by Monday 10:00 only two countable hours passed.
	resumed := time.Date(2026, 3, 6, 16, 0, 0, 0, time.UTC)
	clock := SLAClockState{
		Metric:       MetricFirstResponse,
		BudgetMs:     (4 * time.Hour).Milliseconds(),
		LastResumeAt: &resumed,
	}

	snap := clock.SnapshotAt(time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), cal)

	assert.Equal(t, (2 * time.Hour).Milliseconds(), snap.ElapsedMs)
	assert.InDelta(t, 50, snap.PercentUsed, 0.01)
}

func TestTerminalStates(t *testing.T) {
	resumed := time.Now()
	clock := SLAClockState{LastResumeAt: &resumed}
	assert.True(t, clock.Running())

	clock.Met = true
	assert.True(t, clock.Terminal())
	assert.False(t, clock.Running())
}

func TestLevelForPercent(t *testing.T) {
	assert.Equal(t, AlertLevelWarning, LevelForPercent(120, 150))
	assert.Equal(t, AlertLevelCritical, LevelForPercent(150, 150))
	assert.Equal(t, AlertLevelCritical, LevelForPercent(300, 150))
}

func TestComplianceRate(t *testing.T) {
	assert.InDelta(t, 100, ComplianceRate(0, 0), 0.01)
	assert.InDelta(t, 75, ComplianceRate(3, 1), 0.01)
	assert.InDelta(t, 0, ComplianceRate(0, 5), 0.01)
}
