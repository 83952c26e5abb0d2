// Package recurrence projects recurring templates into concrete due dates.
//
// It is the only place interval arithmetic lives: bill generation, income generation and the
// on-demand recurring check all plan their inserts through Plan.
package recurrence

import (
	"time"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
	"github.com/craigrbailey/BillPilot-sub000/internal/util"
)

// MaxIterations bounds a single ComputeOccurrences call
const MaxIterations = 10000

// DefaultHorizonMonths is how far ahead occurrences must exist
const DefaultHorizonMonths = 12

// Interval is a frequency's step, either in days or in calendar months
type Interval struct {
	Days   int
	Months int
}

// IsZero reports whether the interval would never advance
func (i Interval) IsZero() bool {
	return i.Days <= 0 && i.Months <= 0
}

// IntervalFor returns the step for f. ONE_TIME and unknown frequencies report false.
func IntervalFor(f domain.Frequency) (Interval, bool) {
	switch f {
	case domain.FrequencyWeekly:
		return Interval{Days: 7}, true
	case domain.FrequencyBiweekly:
		return Interval{Days: 14}, true
	case domain.FrequencyMonthly:
		return Interval{Months: 1}, true
	case domain.FrequencyQuarterly:
		return Interval{Months: 3}, true
	case domain.FrequencyBiannual:
		return Interval{Months: 6}, true
	case domain.FrequencyAnnual:
		return Interval{Months: 12}, true
	default:
		return Interval{}, false
	}
}

// Advance returns the date one interval after prev. Month steps land on anchorDay,
// clamped to the target month's last day, so a clamped February does not drag later months.
func Advance(iv Interval, prev time.Time, anchorDay int) time.Time {
	if iv.Months > 0 {
		return util.AddMonthsClamped(prev, iv.Months, anchorDay)
	}
	return prev.AddDate(0, 0, iv.Days)
}

// ComputeOccurrences returns the due dates after afterDate and strictly before horizonEnd,
// each exactly one interval after the previous. afterDate earlier than the template's
// anchor is treated as the anchor. ONE_TIME templates yield nothing.
func ComputeOccurrences(t *domain.RecurringTemplate, horizonEnd, afterDate time.Time) []time.Time {
	iv, ok := IntervalFor(t.Frequency)
	if !ok || iv.IsZero() {
		return nil
	}

	anchor := util.DateOnly(t.StartDate)
	end := util.DateOnly(horizonEnd)
	current := util.DateOnly(afterDate)
	if current.Before(anchor) {
		current = anchor
	}

	var dates []time.Time
	for i := 0; i < MaxIterations; i++ {
		next := Advance(iv, current, anchor.Day())
		if !next.After(current) || !next.Before(end) {
			break
		}
		dates = append(dates, next)
		current = next
	}
	return dates
}

// HorizonEnd returns the exclusive generation boundary for now: the calendar date
// months ahead, plus one day so an occurrence falling exactly on it is kept.
func HorizonEnd(now time.Time, months int) time.Time {
	if months <= 0 {
		months = DefaultHorizonMonths
	}
	return util.DateOnly(now).AddDate(0, months, 1)
}

// Plan returns the planner a store uses while holding the template's lineage lock.
// A template that never generated starts at its anchor; otherwise generation resumes
// after the given date, so re-running it never duplicates or revives deleted dates.
func Plan(t *domain.RecurringTemplate, horizonEnd time.Time) domain.OccurrencePlanner {
	return func(after *time.Time) []time.Time {
		anchor := util.DateOnly(t.StartDate)

		if t.Frequency == domain.FrequencyOneTime {
			if after == nil {
				return []time.Time{anchor}
			}
			return nil
		}

		if after == nil {
			if !anchor.Before(util.DateOnly(horizonEnd)) {
				return nil
			}
			return append([]time.Time{anchor}, ComputeOccurrences(t, horizonEnd, anchor)...)
		}
		return ComputeOccurrences(t, horizonEnd, *after)
	}
}
