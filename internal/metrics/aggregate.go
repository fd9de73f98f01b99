package metrics

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

type TripCounts struct {
	Total     int64 `json:"total"`
	Scheduled int64 `json:"scheduled"`
	Boarding  int64 `json:"boarding"`
	Departed  int64 `json:"departed"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	Today     int64 `json:"today"`
}

type BookingCounts struct {
	Total     int64 `json:"total"`
	Confirmed int64 `json:"confirmed"`
	Reserved  int64 `json:"reserved"`
	Pending   int64 `json:"pending"`
	Today     int64 `json:"today"`
	Unpaid    int64 `json:"unpaid"`
	Expiring  int64 `json:"expiring"`
}

type BusCounts struct {
	Total       int64 `json:"total"`
	Available   int64 `json:"available"`
	Maintenance int64 `json:"maintenance"`
}

type CompanyCounts struct {
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
}

// Revenue sums TotalAmount over bookings in recognized-revenue states.
type Revenue struct {
	Total         decimal.Decimal `json:"total"`
	Today         decimal.Decimal `json:"today"`
	Trailing7Days decimal.Decimal `json:"trailing7Days"`
	Month         decimal.Decimal `json:"month"`
	LastMonth     decimal.Decimal `json:"lastMonth"`
}

// WeekComparison holds the raw inputs of the week-over-week trends.
type WeekComparison struct {
	ThisWeekRevenue  decimal.Decimal `json:"thisWeekRevenue"`
	LastWeekRevenue  decimal.Decimal `json:"lastWeekRevenue"`
	ThisWeekBookings int64           `json:"thisWeekBookings"`
	LastWeekBookings int64           `json:"lastWeekBookings"`
}

type Aggregates struct {
	Trips     TripCounts
	Bookings  BookingCounts
	Buses     BusCounts
	Companies CompanyCounts
	Revenue   Revenue
	Week      WeekComparison

	OccupancyRate    int
	CancellationRate int
	Rating           float64
	RatingCount      int64

	// recognized keeps the revenue bookings for the series and forecast stages.
	recognized []BookingRecord
}

// Aggregate reduces the input record sets. It never fails; empty inputs
// yield zero counts and zero rates.
func Aggregate(in Input, cal Calendar) Aggregates {
	var agg Aggregates
	aggregateTrips(&agg, in.Trips, cal)
	aggregateBookings(&agg, in.Bookings, cal)
	aggregateBuses(&agg, in.Buses)
	aggregateCompanies(&agg, in)
	return agg
}

func aggregateTrips(agg *Aggregates, trips []TripRecord, cal Calendar) {
	var totalSeats, bookedSeats int64
	for _, trip := range trips {
		agg.Trips.Total++
		switch trip.State {
		case TripScheduled:
			agg.Trips.Scheduled++
		case TripBoarding:
			agg.Trips.Boarding++
		case TripDeparted:
			agg.Trips.Departed++
		case TripCompleted:
			agg.Trips.Completed++
		case TripCancelled:
			agg.Trips.Cancelled++
		}
		if trip.DepartureDate.Equal(cal.Today) {
			agg.Trips.Today++
		}
		if trip.State.Active() {
			seats := max(trip.TotalSeats, 0)
			available := min(max(trip.AvailableSeats, 0), seats)
			totalSeats += seats
			bookedSeats += seats - available
		}
	}
	agg.OccupancyRate = percent(bookedSeats, totalSeats)
	agg.CancellationRate = percent(agg.Trips.Cancelled, agg.Trips.Total)
}

func aggregateBookings(agg *Aggregates, bookings []BookingRecord, cal Calendar) {
	agg.Revenue = Revenue{
		Total:         decimal.Zero,
		Today:         decimal.Zero,
		Trailing7Days: decimal.Zero,
		Month:         decimal.Zero,
		LastMonth:     decimal.Zero,
	}
	agg.Week = WeekComparison{ThisWeekRevenue: decimal.Zero, LastWeekRevenue: decimal.Zero}

	for _, booking := range bookings {
		agg.Bookings.Total++
		switch booking.State {
		case BookingConfirmed:
			agg.Bookings.Confirmed++
		case BookingReserved:
			agg.Bookings.Reserved++
		}
		if booking.State == BookingDraft || booking.State == BookingReserved {
			agg.Bookings.Pending++
		}
		if !booking.BookingDate.Before(cal.Today) {
			agg.Bookings.Today++
		}
		if booking.AmountDue.IsPositive() && !booking.State.Closed() {
			agg.Bookings.Unpaid++
		}
		if booking.State == BookingReserved && cal.ExpiringSoon(booking.ReservationDeadline) {
			agg.Bookings.Expiring++
		}

		if !booking.State.Recognized() {
			continue
		}
		agg.recognized = append(agg.recognized, booking)
		amount := nonNegative(booking.TotalAmount)
		day := booking.BookingDate

		agg.Revenue.Total = agg.Revenue.Total.Add(amount)
		if !day.Before(cal.Today) {
			agg.Revenue.Today = agg.Revenue.Today.Add(amount)
		}
		if cal.InTrailingWindow(day) {
			agg.Revenue.Trailing7Days = agg.Revenue.Trailing7Days.Add(amount)
		}
		if cal.InThisMonth(day) {
			agg.Revenue.Month = agg.Revenue.Month.Add(amount)
		}
		if cal.InLastMonth(day) {
			agg.Revenue.LastMonth = agg.Revenue.LastMonth.Add(amount)
		}
		if cal.InThisWeek(day) {
			agg.Week.ThisWeekRevenue = agg.Week.ThisWeekRevenue.Add(amount)
			agg.Week.ThisWeekBookings++
		}
		if cal.InLastWeek(day) {
			agg.Week.LastWeekRevenue = agg.Week.LastWeekRevenue.Add(amount)
			agg.Week.LastWeekBookings++
		}
	}
}

func aggregateBuses(agg *Aggregates, buses []BusRecord) {
	for _, bus := range buses {
		agg.Buses.Total++
		switch bus.State {
		case BusAvailable:
			agg.Buses.Available++
		case BusMaintenance:
			agg.Buses.Maintenance++
		}
	}
}

func aggregateCompanies(agg *Aggregates, in Input) {
	for _, company := range in.Companies {
		agg.Companies.Total++
		if company.State == CompanyActive {
			agg.Companies.Active++
		}
	}

	if in.Scope.IsCompany() {
		if in.Company != nil {
			agg.Rating = roundRating(decimal.NewFromFloat(max(in.Company.Rating, 0)))
			agg.RatingCount = in.Company.RatingCount
		}
		return
	}

	weighted := decimal.Zero
	var count int64
	for _, company := range in.Companies {
		if company.Rating <= 0 || company.RatingCount <= 0 {
			continue
		}
		weighted = weighted.Add(decimal.NewFromFloat(company.Rating).Mul(decimal.NewFromInt(company.RatingCount)))
		count += company.RatingCount
	}
	if count > 0 {
		agg.Rating = roundRating(weighted.Div(decimal.NewFromInt(count)))
		agg.RatingCount = count
	}
}

// percent returns round(100*part/whole), or 0 when whole is not positive.
// The result is clamped to [0, 100].
func percent(part, whole int64) int {
	if whole <= 0 || part <= 0 {
		return 0
	}
	rate := int(roundHalfUp(decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(whole))))
	return min(rate, 100)
}

// roundHalfUp rounds to the nearest integer with halves going toward
// positive infinity.
func roundHalfUp(d decimal.Decimal) int64 {
	return d.Add(half).Floor().IntPart()
}

func roundRating(d decimal.Decimal) float64 {
	return d.Round(1).InexactFloat64()
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
