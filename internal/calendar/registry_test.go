package calendar

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
)

func writeCalendarFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calendars.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesCalendars(t *testing.T) {
	path := writeCalendarFile(t, `
calendars:
  - id: business-hours
    name: Standard Business Hours
    timezone: UTC
    weekdays: [mon, tue, wed, thu, fri]
    start: "09:00"
    end: "17:00"
    holidays:
      - "2026-12-25"
`)

	reg, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	id := "business-hours"
	cal := reg.Resolve(&id)
	require.NotNil(t, cal)
	assert.Equal(t, 9*60, cal.StartMinute)
	assert.Equal(t, 17*60, cal.EndMinute)
	assert.True(t, cal.Weekdays[time.Monday])
	assert.False(t, cal.Weekdays[time.Saturday])
	assert.True(t, cal.Holidays["2026-12-25"])
}

func TestLoadMissingFileYieldsEmptyRegistry(t *testing.T) {
	reg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), zap.NewNop())
	require.NoError(t, err)

	id := "anything"
	assert.Nil(t, reg.Resolve(&id))
}

func TestLoadRejectsBadDefinitions(t *testing.T) {
	cases := map[string]string{
		"unknown weekday": `
calendars:
  - id: c1
    weekdays: [funday]
    start: "09:00"
    end: "17:00"
`,
		"inverted window": `
calendars:
  - id: c1
    weekdays: [mon]
    start: "17:00"
    end: "09:00"
`,
		"bad holiday": `
calendars:
  - id: c1
    weekdays: [mon]
    start: "09:00"
    end: "17:00"
    holidays: ["december 25"]
`,
		"no weekdays": `
calendars:
  - id: c1
    start: "09:00"
    end: "17:00"
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeCalendarFile(t, content), zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestResolveFallsBackToWallClock(t *testing.T) {
	reg := NewRegistry(&domain.BusinessCalendar{ID: "known", Location: time.UTC})

	known := "known"
	assert.NotNil(t, reg.Resolve(&known))

	unknown := "unknown"
	assert.Nil(t, reg.Resolve(&unknown))
	assert.Nil(t, reg.Resolve(nil))

	empty := ""
	assert.Nil(t, reg.Resolve(&empty))
}
