// Package timeframe provides immutable time intervals used to bound
// backtest replay and to annualize results.
package timeframe

import (
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/tathienbao/backsim/internal/types"
)

// Timeframe is the interval [start, end), or [start, end] when inclusive.
type Timeframe struct {
	start     time.Time
	end       time.Time
	inclusive bool
}

var (
	minTime = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	maxTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

// Infinite covers every instant a feed can realistically produce.
var Infinite = Timeframe{start: minTime, end: maxTime, inclusive: true}

// New creates a half-open timeframe. start must not be after end.
func New(start, end time.Time) (Timeframe, error) {
	if start.After(end) {
		return Timeframe{}, types.Errorf(types.KindConfiguration,
			"timeframe start %s is after end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Timeframe{start: start.UTC(), end: end.UTC()}, nil
}

// MustNew is like New but panics on error. Intended for constants and tests.
func MustNew(start, end time.Time) Timeframe {
	tf, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return tf
}

// Parse builds a timeframe from two timestamps in RFC 3339 or 2006-01-02 form.
func Parse(start, end string) (Timeframe, error) {
	s, err := parseInstant(start)
	if err != nil {
		return Timeframe{}, err
	}
	e, err := parseInstant(end)
	if err != nil {
		return Timeframe{}, err
	}
	return New(s, e)
}

func parseInstant(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, types.Errorf(types.KindConfiguration, "cannot parse time %q", s)
}

// FromYears returns [first-01-01, (last+1)-01-01) in the given zone.
func FromYears(first, last int, zone *time.Location) (Timeframe, error) {
	zone = orUTC(zone)
	return New(
		time.Date(first, time.January, 1, 0, 0, 0, 0, zone),
		time.Date(last+1, time.January, 1, 0, 0, 0, 0, zone),
	)
}

// Next returns [from, from+d).
func Next(from time.Time, d time.Duration) (Timeframe, error) {
	return New(from, from.Add(d))
}

// Past returns [from-d, from).
func Past(from time.Time, d time.Duration) (Timeframe, error) {
	return New(from.Add(-d), from)
}

func (tf Timeframe) Start() time.Time { return tf.start }
func (tf Timeframe) End() time.Time   { return tf.end }

// IsInclusive reports whether End is part of the interval.
func (tf Timeframe) IsInclusive() bool { return tf.inclusive }

// Inclusive returns the closed-interval variant.
func (tf Timeframe) Inclusive() Timeframe {
	tf.inclusive = true
	return tf
}

// Exclusive returns the half-open variant.
func (tf Timeframe) Exclusive() Timeframe {
	tf.inclusive = false
	return tf
}

// IsInfinite reports whether the timeframe spans the full supported range.
func (tf Timeframe) IsInfinite() bool {
	return tf.Equal(Infinite)
}

// Contains reports whether t lies inside the interval.
func (tf Timeframe) Contains(t time.Time) bool {
	if t.Before(tf.start) {
		return false
	}
	if tf.inclusive {
		return !t.After(tf.end)
	}
	return t.Before(tf.end)
}

// Duration returns end - start.
func (tf Timeframe) Duration() time.Duration {
	return tf.end.Sub(tf.start)
}

// Equal compares bounds and inclusivity.
func (tf Timeframe) Equal(other Timeframe) bool {
	return tf.start.Equal(other.start) && tf.end.Equal(other.end) && tf.inclusive == other.inclusive
}

// Extend widens the interval on both sides.
func (tf Timeframe) Extend(before, after time.Duration) Timeframe {
	return Timeframe{start: tf.start.Add(-before), end: tf.end.Add(after), inclusive: tf.inclusive}
}

// Days yields the start instant and every following calendar day at the same
// wall-clock time in zone while it lies inside the interval. Weekends are
// judged in zone as well. The sequence can be ranged over more than once.
func (tf Timeframe) Days(excludeWeekends bool, zone *time.Location) iter.Seq[time.Time] {
	zone = orUTC(zone)
	return func(yield func(time.Time) bool) {
		for day := tf.start.In(zone); tf.Contains(day); day = day.AddDate(0, 0, 1) {
			if excludeWeekends && isWeekend(day) {
				continue
			}
			if !yield(day) {
				return
			}
		}
	}
}

// Split partitions the interval into consecutive parts of length period.
// The last part may be shorter and keeps the inclusivity of tf. A single
// instant [t, t] is returned as its only part; an empty [t, t) has none.
func (tf Timeframe) Split(period Period) ([]Timeframe, error) {
	if !period.IsPositive() {
		return nil, types.Errorf(types.KindValidation, "split period %s must be positive", period)
	}
	if tf.inclusive && tf.start.Equal(tf.end) {
		return []Timeframe{tf}, nil
	}

	var parts []Timeframe
	offset := tf.start
	for offset.Before(tf.end) {
		next := period.AddTo(offset)
		if !next.Before(tf.end) {
			parts = append(parts, Timeframe{start: offset, end: tf.end, inclusive: tf.inclusive})
			break
		}
		parts = append(parts, Timeframe{start: offset, end: next})
		offset = next
	}
	return parts, nil
}

// Annualize converts a return realized over tf into the equivalent yearly
// rate, compounding as (1+r)^(365/days) - 1.
func (tf Timeframe) Annualize(totalReturn float64) (float64, error) {
	d := tf.Duration()
	if d <= 0 {
		return 0, types.Errorf(types.KindComputation, "cannot annualize over empty timeframe %s", tf)
	}
	if 1+totalReturn < 0 {
		return 0, types.Errorf(types.KindComputation, "cannot annualize return %.4f below -100%%", totalReturn)
	}

	days := d.Hours() / 24
	r := math.Pow(1+totalReturn, 365/days) - 1
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, types.Errorf(types.KindComputation, "annualized return of %.4f over %s is not finite", totalReturn, tf)
	}
	return r, nil
}

// Union returns the convex hull of two overlapping or adjacent timeframes.
func (tf Timeframe) Union(other Timeframe) (Timeframe, error) {
	if tf.start.After(other.end) || other.start.After(tf.end) {
		return Timeframe{}, types.Errorf(types.KindValidation, "timeframes %s and %s do not overlap", tf, other)
	}

	start := tf.start
	if other.start.Before(start) {
		start = other.start
	}

	result := tf
	switch {
	case other.end.After(tf.end):
		result = other
	case other.end.Equal(tf.end):
		result.inclusive = tf.inclusive || other.inclusive
	}
	result.start = start
	return result, nil
}

// IsSingleDay reports whether every instant of tf falls on the same
// calendar date in zone.
func (tf Timeframe) IsSingleDay(zone *time.Location) bool {
	zone = orUTC(zone)
	last := tf.end
	if !tf.inclusive && tf.end.After(tf.start) {
		last = tf.end.Add(-time.Nanosecond)
	}
	y1, m1, d1 := tf.start.In(zone).Date()
	y2, m2, d2 := last.In(zone).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (tf Timeframe) String() string {
	if tf.IsInfinite() {
		return "[-inf, +inf]"
	}
	closing := ")"
	if tf.inclusive {
		closing = "]"
	}
	return fmt.Sprintf("[%s, %s%s", tf.start.Format(time.RFC3339), tf.end.Format(time.RFC3339), closing)
}

// CheckTradingDay fails with a NoTradingDay error when t falls on a weekend
// in zone.
func CheckTradingDay(t time.Time, zone *time.Location) error {
	local := t.In(orUTC(zone))
	if isWeekend(local) {
		return types.Errorf(types.KindNoTradingDay, "%s is not a trading day", local.Format("2006-01-02"))
	}
	return nil
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func orUTC(zone *time.Location) *time.Location {
	if zone == nil {
		return time.UTC
	}
	return zone
}
