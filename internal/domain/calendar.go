package domain

import "time"

// BusinessCalendar defines countable working time: weekdays, a daily window
// and holidays, all interpreted in the calendar's timezone. A nil calendar
// means wall-clock time everywhere it is accepted.
type BusinessCalendar struct {
	ID          string
	Name        string
	Location    *time.Location
	Weekdays    map[time.Weekday]bool
	StartMinute int // minutes from midnight, e.g. 540 for 09:00
	EndMinute   int // e.g. 1020 for 17:00
	Holidays    map[string]bool // keyed "2006-01-02" in calendar timezone
}

func (c *BusinessCalendar) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.UTC
}

func (c *BusinessCalendar) isWorkday(t time.Time) bool {
	if !c.Weekdays[t.Weekday()] {
		return false
	}
	return !c.Holidays[t.Format("2006-01-02")]
}

// windowFor returns the working window containing or preceding the given
// local day. Both bounds are in the calendar timezone.
func (c *BusinessCalendar) windowFor(day time.Time) (time.Time, time.Time) {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, c.location())
	return midnight.Add(time.Duration(c.StartMinute) * time.Minute),
		midnight.Add(time.Duration(c.EndMinute) * time.Minute)
}

// AddBusiness walks forward from the given instant accumulating exactly d of
// business time and returns the resulting wall-clock instant.
func (c *BusinessCalendar) AddBusiness(from time.Time, d time.Duration) time.Time {
	if c == nil {
		return from.Add(d)
	}
	cursor := from.In(c.location())
	remaining := d
	// Guard against degenerate calendars that contain no working time.
	for iterations := 0; iterations < 3660; iterations++ {
		if c.isWorkday(cursor) {
			start, end := c.windowFor(cursor)
			if cursor.Before(start) {
				cursor = start
			}
			if cursor.Before(end) {
				available := end.Sub(cursor)
				if remaining <= available {
					return cursor.Add(remaining)
				}
				remaining -= available
			}
		}
		next := cursor.AddDate(0, 0, 1)
		cursor = time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, c.location())
	}
	return from.Add(d)
}

// BusinessBetween returns the amount of business time between two instants.
// It is the inverse of AddBusiness and returns zero for inverted ranges.
func (c *BusinessCalendar) BusinessBetween(from, to time.Time) time.Duration {
	if c == nil {
		if to.Before(from) {
			return 0
		}
		return to.Sub(from)
	}
	if !to.After(from) {
		return 0
	}
	cursor := from.In(c.location())
	end := to.In(c.location())
	var total time.Duration
	for iterations := 0; iterations < 3660 && cursor.Before(end); iterations++ {
		if c.isWorkday(cursor) {
			winStart, winEnd := c.windowFor(cursor)
			segStart := cursor
			if segStart.Before(winStart) {
				segStart = winStart
			}
			segEnd := winEnd
			if end.Before(segEnd) {
				segEnd = end
			}
			if segEnd.After(segStart) {
				total += segEnd.Sub(segStart)
			}
		}
		next := cursor.AddDate(0, 0, 1)
		cursor = time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, c.location())
	}
	return total
}
