package subscriptions

import (
	"time"

	"github.com/rentiva/rentiva-backend/pkg/enums"
)

// AddPeriod advances t by one billing period in calendar months. The day of
// month is preserved; when the target month is shorter it clamps to the
// month's last day (Jan 31 plus one month is Feb 28, or Feb 29 in a leap
// year). time.AddDate is avoided here because it normalizes overflow days
// into the following month.
func AddPeriod(t time.Time, period enums.BillingPeriod) time.Time {
	return addMonthsClamped(t, period.Months())
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	day := t.Day()
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month. Day zero of the
// following month normalizes to the last day of this one.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
