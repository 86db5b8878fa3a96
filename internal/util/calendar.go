package util

import "time"

// FirstOfNextMonth returns midnight UTC on the first day of the month after
// the given date
func FirstOfNextMonth(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// SameCalendarMonth reports whether two dates fall in the same year and month
func SameCalendarMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// BeforeCalendarMonth reports whether a's calendar month is strictly before b's
func BeforeCalendarMonth(a, b time.Time) bool {
	if a.Year() != b.Year() {
		return a.Year() < b.Year()
	}
	return a.Month() < b.Month()
}

// AddMonthsClamped advances a date by n months, clamping the day to the last
// day of the target month (e.g. Jan 31 + 1 month = Feb 28/29). time.AddDate
// would roll over into March instead.
func AddMonthsClamped(d time.Time, n int) time.Time {
	year, month := d.Year(), int(d.Month())+n
	lastDay := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()

	day := d.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// MonthKey returns a sortable year*100+month key for grouping by calendar month
func MonthKey(d time.Time) int {
	return d.Year()*100 + int(d.Month())
}
