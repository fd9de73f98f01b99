package metrics

import "time"

const (
	// TrailingDays is the width of the daily chart series and forecast window.
	TrailingDays = 7
	// ExpiryWindow is how far ahead a reservation deadline counts as expiring soon.
	ExpiryWindow = 2 * time.Hour
)

// Calendar pins every date boundary for one refresh. Boundaries are civil
// dates (midnight UTC) derived from now in the deployment timezone.
type Calendar struct {
	Now      time.Time
	Location *time.Location

	Today          time.Time
	TrailingStart  time.Time // today-6, first day of the 7-day series
	WeekAgo        time.Time // today-7
	TwoWeeksAgo    time.Time // today-14
	MonthStart     time.Time
	LastMonthStart time.Time
	LastMonthEnd   time.Time
}

func NewCalendar(now time.Time, loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	today := civilDate(local)
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, time.UTC)

	return Calendar{
		Now:            now,
		Location:       loc,
		Today:          today,
		TrailingStart:  today.AddDate(0, 0, -(TrailingDays - 1)),
		WeekAgo:        today.AddDate(0, 0, -7),
		TwoWeeksAgo:    today.AddDate(0, 0, -14),
		MonthStart:     monthStart,
		LastMonthStart: monthStart.AddDate(0, -1, 0),
		LastMonthEnd:   monthStart.AddDate(0, 0, -1),
	}
}

// MonthStartInstant is the first instant of the current month in the
// deployment timezone, for timestamp columns such as creation dates.
func (c Calendar) MonthStartInstant() time.Time {
	return time.Date(c.MonthStart.Year(), c.MonthStart.Month(), 1, 0, 0, 0, 0, c.Location)
}

func (c Calendar) InTrailingWindow(day time.Time) bool {
	return !day.Before(c.TrailingStart) && !day.After(c.Today)
}

func (c Calendar) InThisWeek(day time.Time) bool {
	return !day.Before(c.WeekAgo)
}

func (c Calendar) InLastWeek(day time.Time) bool {
	return !day.Before(c.TwoWeeksAgo) && day.Before(c.WeekAgo)
}

func (c Calendar) InThisMonth(day time.Time) bool {
	return !day.Before(c.MonthStart)
}

func (c Calendar) InLastMonth(day time.Time) bool {
	return !day.Before(c.LastMonthStart) && !day.After(c.LastMonthEnd)
}

// ExpiringSoon reports whether deadline falls in (now, now+ExpiryWindow].
func (c Calendar) ExpiringSoon(deadline *time.Time) bool {
	if deadline == nil {
		return false
	}
	return deadline.After(c.Now) && !deadline.After(c.Now.Add(ExpiryWindow))
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
