package calendar

import (
	"sort"
	"time"

	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// Lookup maps date keys to explicit records for a single service type.
type Lookup map[string]*Availability

// NewLookup indexes records by date key.
func NewLookup(records []*Availability) Lookup {
	l := make(Lookup, len(records))
	for _, r := range records {
		l[r.Key()] = r
	}
	return l
}

// Resolve is the single place a day's state is derived from calendar data.
func (l Lookup) Resolve(key string) State {
	rec, ok := l[key]
	if !ok {
		return Unspecified
	}
	return rec.State()
}

// Report is the outcome of an availability check.
type Report struct {
	TotalDays   int      `json:"total_days"`
	Unavailable []string `json:"unavailable_dates"`
	Unspecified []string `json:"unspecified_dates"`
}

// Blocked reports whether any requested day is unavailable.
func (r Report) Blocked() bool {
	return len(r.Unavailable) > 0
}

// Err returns a conflict error naming the blocked days, or nil.
func (r Report) Err() error {
	if !r.Blocked() {
		return nil
	}
	return domain.NewUnavailableDatesError(r.Unavailable)
}

// Check evaluates the given days against the lookup. Duplicate days are
// counted once and results are in date order.
func Check(days []time.Time, lookup Lookup) Report {
	seen := make(map[string]struct{}, len(days))
	keys := make([]string, 0, len(days))
	for _, d := range days {
		k := DateKey(d)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	report := Report{TotalDays: len(keys), Unavailable: []string{}, Unspecified: []string{}}
	for _, k := range keys {
		switch lookup.Resolve(k) {
		case Unavailable:
			report.Unavailable = append(report.Unavailable, k)
		case Unspecified:
			report.Unspecified = append(report.Unspecified, k)
		}
	}
	return report
}

// Span returns the first and last day in days, for store range queries.
func Span(days []time.Time) (time.Time, time.Time) {
	if len(days) == 0 {
		return time.Time{}, time.Time{}
	}
	first, last := NormalizeDate(days[0]), NormalizeDate(days[0])
	for _, d := range days[1:] {
		n := NormalizeDate(d)
		if n.Before(first) {
			first = n
		}
		if n.After(last) {
			last = n
		}
	}
	return first, last
}
