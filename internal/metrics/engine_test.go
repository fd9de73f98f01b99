package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestEngineComputeScenario(t *testing.T) {
	var bookings []BookingRecord
	for i := 0; i < 9; i++ {
		bookings = append(bookings, booking(BookingConfirmed, 1000, dayOffset(0)))
	}
	bookings = append(bookings, booking(BookingCancelled, 5000, dayOffset(0)))

	var trips []TripRecord
	for i := 0; i < 9; i++ {
		trips = append(trips, trip(TripScheduled, 50, 10))
	}
	trips = append(trips, trip(TripCancelled, 50, 50))

	engine := NewEngine(time.UTC)
	snapshot := engine.Compute(Input{Bookings: bookings, Trips: trips}, testNow)

	if !snapshot.Revenue.Total.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("Revenue.Total = %s, want 9000", snapshot.Revenue.Total)
	}
	if snapshot.CancellationRate != 10 {
		t.Fatalf("CancellationRate = %d, want 10", snapshot.CancellationRate)
	}
	if _, ok := findAlert(snapshot.Alerts, AlertHighCancellation); ok {
		t.Fatal("did not expect a cancellation alert at 10%")
	}
	if snapshot.OccupancyRate != 80 {
		t.Fatalf("OccupancyRate = %d, want 80", snapshot.OccupancyRate)
	}
	if snapshot.Forecast.PredictedRevenue != 9000 || snapshot.Forecast.PredictedBookings != 9 {
		t.Fatalf("Forecast = %+v, want 9000 / 9", snapshot.Forecast)
	}
	if len(snapshot.Daily) != 7 {
		t.Fatalf("len(Daily) = %d, want 7", len(snapshot.Daily))
	}
	if !snapshot.GeneratedAt.Equal(testNow) {
		t.Fatalf("GeneratedAt = %v, want %v", snapshot.GeneratedAt, testNow)
	}
	if snapshot.ID == "" {
		t.Fatal("expected snapshot ID")
	}
	if snapshot.Timezone != "UTC" {
		t.Fatalf("Timezone = %q, want UTC", snapshot.Timezone)
	}
}

func TestEngineComputeGrowthGuard(t *testing.T) {
	bookings := []BookingRecord{
		booking(BookingConfirmed, 5000, dayOffset(-2)),
	}

	snapshot := NewEngine(time.UTC).Compute(Input{Bookings: bookings}, testNow)
	if !snapshot.Revenue.LastMonth.IsZero() {
		t.Fatalf("LastMonth = %s, want 0", snapshot.Revenue.LastMonth)
	}
	if !snapshot.Revenue.Month.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("Month = %s, want 5000", snapshot.Revenue.Month)
	}
	if snapshot.Trends.RevenueGrowth != 0 {
		t.Fatalf("RevenueGrowth = %d, want 0", snapshot.Trends.RevenueGrowth)
	}
}

func TestEngineComputeEmptyInput(t *testing.T) {
	snapshot := NewEngine(nil).Compute(Input{}, testNow)

	if len(snapshot.Alerts) != 0 {
		t.Fatalf("expected no alerts, got %v", alertCodes(snapshot.Alerts))
	}
	if snapshot.RecentBookings == nil {
		t.Fatal("RecentBookings should be an empty slice, not nil")
	}
	if snapshot.Forecast.PredictedRevenue != 0 {
		t.Fatalf("PredictedRevenue = %d, want 0", snapshot.Forecast.PredictedRevenue)
	}
}

func TestEngineComputeCompanyView(t *testing.T) {
	company := CompanyRecord{ID: 4, Name: "Sahel Express", State: CompanyActive, Rating: 4.26, RatingCount: 12}
	in := Input{
		Scope:     CompanyScope(4),
		Company:   &company,
		Companies: []CompanyRecord{company},
		Trips: []TripRecord{
			trip(TripBoarding, 40, 10),
			trip(TripDeparted, 40, 0),
		},
		Buses: []BusRecord{
			{ID: 1, State: BusAvailable, CompanyID: 4},
			{ID: 2, State: BusMaintenance, CompanyID: 4},
		},
	}

	snapshot := NewEngine(time.UTC).Compute(in, testNow)
	if snapshot.CompanyName != "Sahel Express" {
		t.Fatalf("CompanyName = %q", snapshot.CompanyName)
	}
	if snapshot.Rating != 4.3 {
		t.Fatalf("Rating = %v, want 4.3", snapshot.Rating)
	}
	want := []string{AlertBoardingTrips, AlertDepartedTrips, AlertMaintenanceBuses}
	got := alertCodes(snapshot.Alerts)
	if len(got) != len(want) {
		t.Fatalf("alerts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("alerts = %v, want %v", got, want)
		}
	}
	if snapshot.Buses.Maintenance != 1 || snapshot.Buses.Available != 1 {
		t.Fatalf("buses = %+v", snapshot.Buses)
	}
}
