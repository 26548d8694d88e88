package service

import "time"

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DayWindow returns the inclusive bounds of the calendar day offsetDays after
// now's day in loc. Calendar arithmetic keeps DST days at their real length.
func DayWindow(now time.Time, loc *time.Location, offsetDays int) (start, end time.Time) {
	start = StartOfDay(now, loc).AddDate(0, 0, offsetDays)
	end = start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// UpcomingWindow returns the bounds used by the digest: after the end of
// today and up to days from now.
func UpcomingWindow(now time.Time, loc *time.Location, days int) (after, until time.Time) {
	_, after = DayWindow(now, loc, 0)
	return after, now.AddDate(0, 0, days)
}
