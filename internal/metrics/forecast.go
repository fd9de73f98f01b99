package metrics

import "github.com/shopspring/decimal"

// ForecastHorizonDays is how many days ahead the projection covers.
const ForecastHorizonDays = 7

var trailingDivisor = decimal.NewFromInt(TrailingDays)

// Forecast is a naive moving-average projection: the mean of the trailing
// window times the horizon. It is not a statistical model and carries no
// confidence bounds.
type Forecast struct {
	PredictedRevenue  int64 `json:"predictedRevenue"`
	PredictedBookings int64 `json:"predictedBookings"`
	HorizonDays       int   `json:"horizonDays"`
}

// ComputeForecast averages over all TrailingDays days even when the scope has
// less history than that; days without bookings count as zero.
func ComputeForecast(recognized []BookingRecord, cal Calendar) Forecast {
	revenue := decimal.Zero
	var bookings int64
	for _, booking := range recognized {
		if !cal.InTrailingWindow(booking.BookingDate) {
			continue
		}
		revenue = revenue.Add(nonNegative(booking.TotalAmount))
		bookings++
	}

	horizon := decimal.NewFromInt(ForecastHorizonDays)
	avgRevenue := revenue.Div(trailingDivisor)
	avgBookings := decimal.NewFromInt(bookings).Div(trailingDivisor)

	return Forecast{
		PredictedRevenue:  roundHalfUp(avgRevenue.Mul(horizon)),
		PredictedBookings: roundHalfUp(avgBookings.Mul(horizon)),
		HorizonDays:       ForecastHorizonDays,
	}
}
