package timeframe

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tathienbao/backsim/internal/types"
)

// Period is a calendar-aware length of time.
type Period struct {
	Years    int
	Months   int
	Days     int
	Duration time.Duration
}

// Years returns a period of n years.
func Years(n int) Period { return Period{Years: n} }

// Months returns a period of n months.
func Months(n int) Period { return Period{Months: n} }

// Days returns a period of n days.
func Days(n int) Period { return Period{Days: n} }

// AddTo returns t shifted by the period.
func (p Period) AddTo(t time.Time) time.Time {
	return t.AddDate(p.Years, p.Months, p.Days).Add(p.Duration)
}

// IsPositive reports whether the period always moves time forward.
func (p Period) IsPositive() bool {
	if p.Years < 0 || p.Months < 0 || p.Days < 0 || p.Duration < 0 {
		return false
	}
	return p.Years > 0 || p.Months > 0 || p.Days > 0 || p.Duration > 0
}

func (p Period) String() string {
	var b strings.Builder
	if p.Years != 0 {
		fmt.Fprintf(&b, "%dy", p.Years)
	}
	if p.Months != 0 {
		fmt.Fprintf(&b, "%dm", p.Months)
	}
	if p.Days != 0 {
		fmt.Fprintf(&b, "%dd", p.Days)
	}
	if p.Duration != 0 {
		b.WriteString(p.Duration.String())
	}
	if b.Len() == 0 {
		return "0"
	}
	return b.String()
}

// ParsePeriod parses "2y", "6m" (months), "3w", "30d" or any
// time.ParseDuration string such as "4h" or "90m0s".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Period{}, types.Errorf(types.KindConfiguration, "empty period")
	}

	unit := s[len(s)-1]
	if n, err := strconv.Atoi(s[:len(s)-1]); err == nil {
		switch unit {
		case 'y':
			return Period{Years: n}, nil
		case 'm':
			return Period{Months: n}, nil
		case 'w':
			return Period{Days: 7 * n}, nil
		case 'd':
			return Period{Days: n}, nil
		}
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return Period{}, types.Errorf(types.KindConfiguration, "invalid period %q", s)
	}
	return Period{Duration: d}, nil
}
