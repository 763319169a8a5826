package pclock

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// CronExpr is the seven-field schedule from the glossary: seconds,
// minutes, hours, day-of-month, month, day-of-week, year. The first
// six fields are standard cron and are delegated to robfig/cron; the
// year field has no equivalent in that library (or anywhere else in
// the dependency pack), so it is matched by a small set parser here.
type CronExpr struct {
	raw      string
	schedule cron.Schedule
	years    yearSet
}

var sixFieldParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ParseCronExpr parses a seven-field cron expression. Fields are
// whitespace-separated: sec min hour dom month dow year.
func ParseCronExpr(expr string) (*CronExpr, error) {
	fields := strings.Fields(expr)
	if len(fields) != 7 {
		return nil, fmt.Errorf("cron: expected 7 fields (sec min hour dom month dow year), got %d in %q", len(fields), expr)
	}

	sched, err := sixFieldParser.Parse(strings.Join(fields[:6], " "))
	if err != nil {
		return nil, fmt.Errorf("cron: %w", err)
	}

	years, err := parseYearSet(fields[6])
	if err != nil {
		return nil, fmt.Errorf("cron: year field: %w", err)
	}

	return &CronExpr{raw: expr, schedule: sched, years: years}, nil
}

// String returns the original expression text.
func (c *CronExpr) String() string { return c.raw }

// maxYearSearch bounds how many 6-field matches DurationUntilNext will
// walk through looking for an allowed year before giving up. Chosen so
// a yearly-resolution cron ("0 0 0 1 1 * <year>") never iterates more
// than once per candidate year, while still terminating for schedules
// with no satisfiable year ahead.
const maxYearSearch = 200

// DurationUntilNext returns the duration from now until the next
// instant strictly after now that satisfies the full seven-field
// expression, or false if no such instant exists (an exhausted
// explicit year list).
func (c *CronExpr) DurationUntilNext(now time.Time) (time.Duration, bool) {
	cursor := now
	for i := 0; i < maxYearSearch; i++ {
		next := c.schedule.Next(cursor)
		if c.years.matches(next.Year()) {
			d := next.Sub(now)
			if d < 0 {
				d = 0
			}
			return d, true
		}

		jumpYear, ok := c.years.nextAllowed(next.Year())
		if !ok {
			return 0, false
		}
		// Jump the cursor to just before the start of the next
		// candidate year instead of walking second-by-second.
		cursor = time.Date(jumpYear, time.January, 1, 0, 0, 0, 0, next.Location()).Add(-time.Nanosecond)
	}
	return 0, false
}

// yearSet is the set of years a cron year-field allows.
type yearSet struct {
	all    bool
	years  map[int]struct{}
	maxYr  int
	minYr  int
	hasMin bool
}

func parseYearSet(field string) (yearSet, error) {
	if field == "*" {
		return yearSet{all: true}, nil
	}

	ys := yearSet{years: make(map[int]struct{})}
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		step := 1
		body := part
		if idx := strings.IndexByte(part, '/'); idx >= 0 {
			body = part[:idx]
			n, err := strconv.Atoi(part[idx+1:])
			if err != nil || n <= 0 {
				return yearSet{}, fmt.Errorf("invalid step in %q", part)
			}
			step = n
		}

		var lo, hi int
		switch {
		case body == "*":
			// "*/N": unbounded range anchored at year 0, mod N.
			lo, hi = 0, 9999
		case strings.Contains(body, "-"):
			bounds := strings.SplitN(body, "-", 2)
			a, err1 := strconv.Atoi(bounds[0])
			b, err2 := strconv.Atoi(bounds[1])
			if err1 != nil || err2 != nil || b < a {
				return yearSet{}, fmt.Errorf("invalid range %q", body)
			}
			lo, hi = a, b
		default:
			n, err := strconv.Atoi(body)
			if err != nil {
				return yearSet{}, fmt.Errorf("invalid year %q", body)
			}
			lo, hi = n, n
		}

		for y := lo; y <= hi; y += step {
			ys.years[y] = struct{}{}
			if !ys.hasMin || y < ys.minYr {
				ys.minYr, ys.hasMin = y, true
			}
			if y > ys.maxYr {
				ys.maxYr = y
			}
		}
	}
	return ys, nil
}

func (y yearSet) matches(year int) bool {
	if y.all {
		return true
	}
	_, ok := y.years[year]
	return ok
}

// nextAllowed returns the smallest allowed year strictly greater than
// after, or false if none remains.
func (y yearSet) nextAllowed(after int) (int, bool) {
	if y.all {
		return after + 1, true
	}
	best := 0
	found := false
	for candidate := range y.years {
		if candidate > after && (!found || candidate < best) {
			best, found = candidate, true
		}
	}
	return best, found
}
