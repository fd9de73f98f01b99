package metrics

import "testing"

func TestComputeForecastConstantDailyRevenue(t *testing.T) {
	for _, daily := range []int64{0, 1, 333, 1250, 98765} {
		var bookings []BookingRecord
		for offset := 0; offset < TrailingDays; offset++ {
			bookings = append(bookings, booking(BookingConfirmed, daily, dayOffset(-offset)))
		}

		forecast := ComputeForecast(bookings, testCalendar())
		if forecast.PredictedRevenue != 7*daily {
			t.Fatalf("daily %d: PredictedRevenue = %d, want %d", daily, forecast.PredictedRevenue, 7*daily)
		}
		if forecast.PredictedBookings != 7 {
			t.Fatalf("daily %d: PredictedBookings = %d, want 7", daily, forecast.PredictedBookings)
		}
		if forecast.HorizonDays != 7 {
			t.Fatalf("HorizonDays = %d, want 7", forecast.HorizonDays)
		}
	}
}

func TestComputeForecastDividesBySevenWithShortHistory(t *testing.T) {
	// A company with two days of history still averages over seven days.
	bookings := []BookingRecord{
		booking(BookingConfirmed, 700, dayOffset(0)),
		booking(BookingConfirmed, 700, dayOffset(-1)),
	}

	forecast := ComputeForecast(bookings, testCalendar())
	if forecast.PredictedRevenue != 1400 {
		t.Fatalf("PredictedRevenue = %d, want 1400", forecast.PredictedRevenue)
	}
	if forecast.PredictedBookings != 2 {
		t.Fatalf("PredictedBookings = %d, want 2", forecast.PredictedBookings)
	}
}

func TestComputeForecastIgnoresOlderBookings(t *testing.T) {
	bookings := []BookingRecord{
		booking(BookingConfirmed, 100, dayOffset(-7)),
		booking(BookingConfirmed, 100, dayOffset(-30)),
	}

	forecast := ComputeForecast(bookings, testCalendar())
	if forecast.PredictedRevenue != 0 || forecast.PredictedBookings != 0 {
		t.Fatalf("forecast = %+v, want zero", forecast)
	}
}
