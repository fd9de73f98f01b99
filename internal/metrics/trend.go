package metrics

import (
	"iter"
	"time"

	"github.com/shopspring/decimal"
)

// Trends are signed percentage changes against the preceding comparable period.
type Trends struct {
	RevenueGrowth int `json:"revenueGrowth"` // month vs previous month
	RevenueTrend  int `json:"revenueTrend"`  // week vs previous week
	BookingsTrend int `json:"bookingsTrend"` // week vs previous week
}

// Trend returns round(100*(current-prior)/prior), or 0 when prior is not
// positive.
func Trend(current, prior decimal.Decimal) int {
	if !prior.IsPositive() {
		return 0
	}
	return int(roundHalfUp(current.Sub(prior).Mul(hundred).Div(prior)))
}

// CountTrend is Trend over integer counts.
func CountTrend(current, prior int64) int {
	return Trend(decimal.NewFromInt(current), decimal.NewFromInt(prior))
}

func ComputeTrends(agg Aggregates) Trends {
	return Trends{
		RevenueGrowth: Trend(agg.Revenue.Month, agg.Revenue.LastMonth),
		RevenueTrend:  Trend(agg.Week.ThisWeekRevenue, agg.Week.LastWeekRevenue),
		BookingsTrend: CountTrend(agg.Week.ThisWeekBookings, agg.Week.LastWeekBookings),
	}
}

type DailyPoint struct {
	Date     string          `json:"date"`
	Label    string          `json:"label"`
	Revenue  decimal.Decimal `json:"revenue"`
	Bookings int64           `json:"bookings"`
}

// DailySeries yields one point per day of the trailing window, oldest first.
// Each point only counts bookings dated exactly that day. The sequence is
// recomputed on every iteration.
func DailySeries(bookings []BookingRecord, cal Calendar) iter.Seq[DailyPoint] {
	return func(yield func(DailyPoint) bool) {
		for offset := TrailingDays - 1; offset >= 0; offset-- {
			day := cal.Today.AddDate(0, 0, -offset)
			point := DailyPoint{
				Date:    day.Format("2006-01-02"),
				Label:   dayLabel(day),
				Revenue: decimal.Zero,
			}
			for _, booking := range bookings {
				if !booking.BookingDate.Equal(day) {
					continue
				}
				point.Revenue = point.Revenue.Add(nonNegative(booking.TotalAmount))
				point.Bookings++
			}
			if !yield(point) {
				return
			}
		}
	}
}

func dayLabel(day time.Time) string {
	return day.Weekday().String()[:3]
}
