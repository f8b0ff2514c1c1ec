package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO date format used for period bounds and API parameters.
const DateLayout = "2006-01-02"

// periodKeySeparator joins the two bounds of a serialized period key.
const periodKeySeparator = "_"

// Period is an inclusive range of civil dates (UTC). From and To are always midnight UTC.
type Period struct {
	From time.Time
	To   time.Time
}

// Date truncates t to midnight UTC of its calendar day.
func Date(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewPeriod builds a period from two instants, truncating both to their UTC dates.
func NewPeriod(from, to time.Time) (Period, error) {
	p := Period{From: Date(from), To: Date(to)}
	if p.From.After(p.To) {
		return Period{}, fmt.Errorf("period start %s is after end %s", p.From.Format(DateLayout), p.To.Format(DateLayout))
	}
	return p, nil
}

// ParsePeriod parses two YYYY-MM-DD dates into a period.
func ParsePeriod(from, to string) (Period, error) {
	f, err := time.Parse(DateLayout, strings.TrimSpace(from))
	if err != nil {
		return Period{}, fmt.Errorf("invalid start date %q: %w", from, err)
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(to))
	if err != nil {
		return Period{}, fmt.Errorf("invalid end date %q: %w", to, err)
	}
	return NewPeriod(f, t)
}

// ParsePeriodKey is the inverse of Period.Key.
func ParsePeriodKey(key string) (Period, error) {
	from, to, ok := strings.Cut(key, periodKeySeparator)
	if !ok {
		return Period{}, fmt.Errorf("malformed period key %q", key)
	}
	p, err := ParsePeriod(from, to)
	if err != nil {
		return Period{}, fmt.Errorf("malformed period key %q: %w", key, err)
	}
	return p, nil
}

// DefaultPeriod is the rolling [yesterday, today] window relative to now.
func DefaultPeriod(now time.Time) Period {
	today := Date(now)
	return Period{From: today.AddDate(0, 0, -1), To: today}
}

// Key serializes the period as "YYYY-MM-DD_YYYY-MM-DD" for storage.
func (p Period) Key() string {
	return p.FromString() + periodKeySeparator + p.ToString()
}

func (p Period) FromString() string { return p.From.Format(DateLayout) }
func (p Period) ToString() string   { return p.To.Format(DateLayout) }

func (p Period) String() string { return p.Key() }

// Start is the first instant covered by the period.
func (p Period) Start() time.Time { return p.From }

// End is the exclusive upper bound: midnight after To.
func (p Period) End() time.Time { return p.To.AddDate(0, 0, 1) }

// Contains reports whether t falls within [From 00:00:00, To 23:59:59.999...].
func (p Period) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.Start()) && t.Before(p.End())
}

// Overlaps reports whether the two inclusive ranges share at least one day.
func (p Period) Overlaps(o Period) bool {
	return !o.To.Before(p.From) && !o.From.After(p.To)
}

// Days returns the number of calendar days covered.
func (p Period) Days() int {
	return int(p.To.Sub(p.From).Hours()/24) + 1
}

// Weeks partitions the period into Monday-aligned, non-overlapping weeks. The first and last
// weeks are clipped to the period bounds.
func (p Period) Weeks() []Period {
	// time.Weekday has Sunday == 0; shift so Monday == 0.
	offset := (int(p.From.Weekday()) + 6) % 7
	monday := p.From.AddDate(0, 0, -offset)

	var weeks []Period
	for start := monday; !start.After(p.To); start = start.AddDate(0, 0, 7) {
		w := Period{From: start, To: start.AddDate(0, 0, 6)}
		if w.From.Before(p.From) {
			w.From = p.From
		}
		if w.To.After(p.To) {
			w.To = p.To
		}
		weeks = append(weeks, w)
	}
	return weeks
}
