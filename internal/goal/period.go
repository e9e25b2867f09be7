package goal

import (
	"math"
	"time"
)

// Period-identity key layouts. Daily keys name a calendar day, monthly keys
// a calendar month; both are derived from local time.
const (
	dayKeyLayout   = "2006-01-02"
	monthKeyLayout = "2006-01"
)

// DayKey returns the period-identity key for t's calendar day.
func DayKey(t time.Time) string {
	return t.Format(dayKeyLayout)
}

// MonthKey returns the period-identity key for t's calendar month.
func MonthKey(t time.Time) string {
	return t.Format(monthKeyLayout)
}

// PeriodKey returns the period-identity key for the track containing t.
func PeriodKey(track Track, t time.Time) string {
	if track == TrackDaily {
		return DayKey(t)
	}
	return MonthKey(t)
}

// DayWindow returns the inclusive bounds of t's calendar day:
// 00:00:00.000 through 23:59:59.999 in t's location.
func DayWindow(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1).Add(-time.Millisecond)
}

// MonthWindow returns the inclusive bounds of t's calendar month, from the
// first day at 00:00:00.000 through the last day at 23:59:59.999.
func MonthWindow(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0).Add(-time.Millisecond)
}

// PrevMonthWindow returns the inclusive bounds of the calendar month before t's.
func PrevMonthWindow(t time.Time) (time.Time, time.Time) {
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return MonthWindow(firstOfMonth.AddDate(0, -1, 0))
}

// DaysRemainingInMonth counts the days left in t's month, including t's day.
func DaysRemainingInMonth(t time.Time) int {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
	daysInMonth := firstOfNext.AddDate(0, 0, -1).Day()
	return daysInMonth - t.Day() + 1
}

// DailyTargetFromMonthly derives a daily target by spreading the monthly
// target evenly over the days remaining in the month, rounding up.
func DailyTargetFromMonthly(monthlyTarget float64, now time.Time) float64 {
	return math.Ceil(monthlyTarget / float64(DaysRemainingInMonth(now)))
}

func hoursRemaining(now, end time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours()))
}

func daysRemaining(now, end time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}
