package calendar

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// Registry resolves business calendars by id. Calendars are loaded once at
// boot from a YAML file; an unresolvable id degrades to wall-clock time.
type Registry struct {
	calendars map[string]*domain.BusinessCalendar
	logger    *zap.Logger
}

type calendarFile struct {
	Calendars []calendarSpec `yaml:"calendars"`
}

type calendarSpec struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Timezone string   `yaml:"timezone"`
	Weekdays []string `yaml:"weekdays"`
	Start    string   `yaml:"start"` // "09:00"
	End      string   `yaml:"end"`   // "17:00"
	Holidays []string `yaml:"holidays"`
}

// Load reads calendar definitions from a YAML file. A missing file yields an
// empty registry, not an error: every lookup then falls back to wall-clock.
func Load(path string, logger *zap.Logger) (*Registry, error) {
	reg := &Registry{calendars: map[string]*domain.BusinessCalendar{}, logger: logger}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("calendar file not found; all policies fall back to wall-clock hours",
				zap.String("path", path))
			return reg, nil
		}
		return nil, fmt.Errorf("read calendar file: %w", err)
	}

	var file calendarFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse calendar file: %w", err)
	}

	for _, spec := range file.Calendars {
		cal, err := buildCalendar(spec)
		if err != nil {
			return nil, fmt.Errorf("calendar %q: %w", spec.ID, err)
		}
		reg.calendars[spec.ID] = cal
	}

	logger.Info("business calendars loaded", zap.Int("count", len(reg.calendars)))
	return reg, nil
}

// NewRegistry builds a registry from already-constructed calendars. Used by
// tests and in-memory deployments.
func NewRegistry(calendars ...*domain.BusinessCalendar) *Registry {
	reg := &Registry{calendars: map[string]*domain.BusinessCalendar{}, logger: zap.NewNop()}
	for _, cal := range calendars {
		reg.calendars[cal.ID] = cal
	}
	return reg
}

// Resolve returns the calendar for an id, or nil (wall-clock) when the id is
// empty or unknown. Misconfiguration never fails closed.
func (r *Registry) Resolve(id *string) *domain.BusinessCalendar {
	if r == nil || id == nil || *id == "" {
		return nil
	}
	cal, ok := r.calendars[*id]
	if !ok && r.logger != nil {
		r.logger.Warn("unknown calendar id; falling back to wall-clock hours",
			zap.String("calendar_id", *id))
	}
	return cal
}

func buildCalendar(spec calendarSpec) (*domain.BusinessCalendar, error) {
	loc := time.UTC
	if spec.Timezone != "" {
		parsed, err := time.LoadLocation(spec.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
		loc = parsed
	}

	weekdays := map[time.Weekday]bool{}
	for _, name := range spec.Weekdays {
		day, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		weekdays[day] = true
	}
	if len(weekdays) == 0 {
		return nil, fmt.Errorf("no weekdays configured")
	}

	start, err := parseMinute(spec.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := parseMinute(spec.End)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if end <= start {
		return nil, fmt.Errorf("end %q not after start %q", spec.End, spec.Start)
	}

	holidays := map[string]bool{}
	for _, day := range spec.Holidays {
		if _, err := time.Parse("2006-01-02", day); err != nil {
			return nil, fmt.Errorf("holiday %q: %w", day, err)
		}
		holidays[day] = true
	}

	return &domain.BusinessCalendar{
		ID:          spec.ID,
		Name:        spec.Name,
		Location:    loc,
		Weekdays:    weekdays,
		StartMinute: start,
		EndMinute:   end,
		Holidays:    holidays,
	}, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	case "tuesday", "tue":
		return time.Tuesday, nil
	case "wednesday", "wed":
		return time.Wednesday, nil
	case "thursday", "thu":
		return time.Thursday, nil
	case "friday", "fri":
		return time.Friday, nil
	case "saturday", "sat":
		return time.Saturday, nil
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", name)
}

func parseMinute(val string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(val), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", val)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("out of range time %q", val)
	}
	return hours*60 + minutes, nil
}
