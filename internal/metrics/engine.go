// Package metrics turns a scope's raw trip, booking, company and bus records
// into a dashboard snapshot: counters, revenue, trends, rule-based alerts and
// a naive seven-day projection. Everything here is a pure function of its
// inputs and the reference instant.
package metrics

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the immutable result of one refresh.
type Snapshot struct {
	ID          string    `json:"id"`
	Scope       Scope     `json:"scope"`
	CompanyName string    `json:"companyName,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
	Timezone    string    `json:"timezone"`

	Trips      TripCounts      `json:"trips"`
	Bookings   BookingCounts   `json:"bookings"`
	Buses      BusCounts       `json:"buses"`
	Companies  CompanyCounts   `json:"companies"`
	Passengers PassengerCounts `json:"passengers"`
	Revenue    Revenue         `json:"revenue"`
	Trends     Trends          `json:"trends"`

	OccupancyRate    int     `json:"occupancyRate"`
	CancellationRate int     `json:"cancellationRate"`
	Rating           float64 `json:"rating"`
	RatingCount      int64   `json:"ratingCount"`

	Daily    []DailyPoint `json:"daily"`
	Alerts   []Alert      `json:"alerts"`
	Forecast Forecast     `json:"forecast"`

	RecentBookings []BookingRecord `json:"recentBookings"`
	TopCompanies   []CompanyRecord `json:"topCompanies,omitempty"`
	TopRoutes      []RouteRecord   `json:"topRoutes,omitempty"`
	UpcomingTrips  []TripRecord    `json:"upcomingTrips,omitempty"`
}

type Engine struct {
	location *time.Location
}

// NewEngine builds an engine whose calendar days follow loc. A nil loc falls
// back to the process local timezone.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{location: loc}
}

func (e *Engine) Location() *time.Location {
	return e.location
}

// Compute runs aggregation, trends, forecast and alerting over in.
func (e *Engine) Compute(in Input, now time.Time) Snapshot {
	cal := NewCalendar(now, e.location)

	agg := Aggregate(in, cal)
	trends := ComputeTrends(agg)
	forecast := ComputeForecast(agg.recognized, cal)
	alerts := GenerateAlerts(NewAlertState(agg, trends), in.Scope)

	snapshot := Snapshot{
		ID:               uuid.NewString(),
		Scope:            in.Scope,
		GeneratedAt:      now,
		Timezone:         e.location.String(),
		Trips:            agg.Trips,
		Bookings:         agg.Bookings,
		Buses:            agg.Buses,
		Companies:        agg.Companies,
		Passengers:       in.Passengers,
		Revenue:          agg.Revenue,
		Trends:           trends,
		OccupancyRate:    agg.OccupancyRate,
		CancellationRate: agg.CancellationRate,
		Rating:           agg.Rating,
		RatingCount:      agg.RatingCount,
		Daily:            slices.Collect(DailySeries(agg.recognized, cal)),
		Alerts:           alerts,
		Forecast:         forecast,
		RecentBookings:   nonNilBookings(in.RecentBookings),
		TopCompanies:     in.TopCompanies,
		TopRoutes:        in.TopRoutes,
		UpcomingTrips:    in.UpcomingTrips,
	}
	if in.Company != nil {
		snapshot.CompanyName = in.Company.Name
	}
	return snapshot
}

// HasSeverity reports whether any alert in the snapshot has severity s.
func (s Snapshot) HasSeverity(severity Severity) bool {
	for _, alert := range s.Alerts {
		if alert.Severity == severity {
			return true
		}
	}
	return false
}

func nonNilBookings(bookings []BookingRecord) []BookingRecord {
	if bookings == nil {
		return []BookingRecord{}
	}
	return bookings
}
