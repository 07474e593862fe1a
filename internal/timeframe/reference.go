package timeframe

import "time"

// Well-known market episodes, in UTC.
var (
	// BlackMonday1987 is the regular NYSE session of 19 October 1987.
	BlackMonday1987 = MustNew(utc(1987, 10, 19, 13, 30), utc(1987, 10, 19, 20, 0))

	// FlashCrash2010 is the afternoon of 6 May 2010 when US indices dropped
	// and recovered within minutes.
	FlashCrash2010 = MustNew(utc(2010, 5, 6, 19, 30), utc(2010, 5, 6, 20, 15))

	FinancialCrisis2008   = MustNew(utc(2008, 9, 8, 0, 0), utc(2009, 3, 10, 0, 0))
	TenYearBullMarket2009 = MustNew(utc(2009, 3, 10, 0, 0), utc(2019, 3, 10, 0, 0))
	CoronaCrash2020       = MustNew(utc(2020, 2, 17, 0, 0), utc(2020, 3, 17, 0, 0))
)

// References lists the named episodes by name.
var References = map[string]Timeframe{
	"black_monday_1987":     BlackMonday1987,
	"flash_crash_2010":      FlashCrash2010,
	"financial_crisis_2008": FinancialCrisis2008,
	"bull_market_2009":      TenYearBullMarket2009,
	"corona_crash_2020":     CoronaCrash2020,
}

func utc(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}
