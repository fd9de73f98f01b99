package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/transitdash/internal/metrics"
	"github.com/codr1/transitdash/internal/query"
)

const (
	recentBookingsLimit = 10
	topCompaniesLimit   = 5
	topRoutesLimit      = 5
	upcomingTripsLimit  = 10
)

var (
	tripFields    = []string{"id", "reference", "state", "departure_date", "departure_at", "total_seats", "available_seats", "company_id"}
	bookingFields = []string{"id", "reference", "passenger_name", "state", "total_amount", "amount_due", "booking_date", "reservation_deadline", "company_id", "created_at"}
	busFields     = []string{"id", "state", "company_id"}
	companyFields = []string{"id", "name", "state", "rating", "rating_count"}
	routeFields   = []string{"id", "name", "code", "departure_city", "arrival_city", "base_price", "state"}
)

// loader reads one scope's records. Reads are independent; a failure in any
// of them fails the whole load.
type loader struct {
	repo query.Repository
}

func scopeFilter(scope metrics.Scope) query.Filter {
	if !scope.IsCompany() {
		return nil
	}
	return query.Where("company_id", query.OpEq, scope.CompanyID)
}

func (l loader) load(ctx context.Context, scope metrics.Scope, cal metrics.Calendar) (metrics.Input, error) {
	in := metrics.Input{Scope: scope}
	filter := scopeFilter(scope)

	if scope.IsCompany() {
		companies, err := l.companies(ctx, query.Where("id", query.OpEq, scope.CompanyID), query.ReadOptions{Limit: 1})
		if err != nil {
			return in, err
		}
		if len(companies) == 0 {
			return in, ErrCompanyNotFound
		}
		in.Company = &companies[0]
		in.Companies = companies
	} else {
		companies, err := l.companies(ctx, nil, query.ReadOptions{})
		if err != nil {
			return in, err
		}
		in.Companies = companies
	}

	var err error
	if in.Trips, err = l.trips(ctx, filter, query.ReadOptions{}); err != nil {
		return in, err
	}
	if in.Bookings, err = l.bookings(ctx, filter, query.ReadOptions{}); err != nil {
		return in, err
	}
	if in.Buses, err = l.buses(ctx, filter); err != nil {
		return in, err
	}

	in.RecentBookings, err = l.bookings(ctx, filter, query.ReadOptions{
		OrderBy: []query.Order{{Field: "created_at", Desc: true}},
		Limit:   recentBookingsLimit,
	})
	if err != nil {
		return in, err
	}

	if scope.IsCompany() {
		upcoming := filter.
			And("state", query.OpIn, []metrics.TripState{metrics.TripScheduled, metrics.TripBoarding}).
			And("departure_date", query.OpGte, cal.Today)
		in.UpcomingTrips, err = l.trips(ctx, upcoming, query.ReadOptions{
			OrderBy: []query.Order{{Field: "departure_date"}, {Field: "departure_at"}},
			Limit:   upcomingTripsLimit,
		})
		if err != nil {
			return in, err
		}
		return in, nil
	}

	in.TopCompanies, err = l.companies(ctx, query.Where("state", query.OpEq, metrics.CompanyActive), query.ReadOptions{
		OrderBy: []query.Order{{Field: "rating", Desc: true}, {Field: "rating_count", Desc: true}},
		Limit:   topCompaniesLimit,
	})
	if err != nil {
		return in, err
	}

	// Newest active routes first.
	in.TopRoutes, err = l.routes(ctx, query.Where("state", query.OpEq, metrics.RouteActive), query.ReadOptions{
		OrderBy: []query.Order{{Field: "id", Desc: true}},
		Limit:   topRoutesLimit,
	})
	if err != nil {
		return in, err
	}

	if in.Passengers.Total, err = l.count(ctx, query.EntityPassenger, nil); err != nil {
		return in, err
	}
	in.Passengers.NewThisMonth, err = l.count(ctx, query.EntityPassenger,
		query.Where("created_at", query.OpGte, cal.MonthStartInstant()))
	if err != nil {
		return in, err
	}
	return in, nil
}

// activeCompanyIDs lists companies the scheduled company refresh covers.
func (l loader) activeCompanyIDs(ctx context.Context) ([]int64, error) {
	rows, err := l.read(ctx, query.EntityCompany, query.Where("state", query.OpEq, metrics.CompanyActive),
		[]string{"id"}, query.ReadOptions{OrderBy: []query.Order{{Field: "id"}}})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Int64("id"))
	}
	return ids, nil
}

func (l loader) count(ctx context.Context, entity query.Entity, filter query.Filter) (int64, error) {
	n, err := l.repo.Count(ctx, entity, filter)
	if err != nil {
		return 0, &RepositoryError{Entity: entity, Op: "count", Err: err}
	}
	return n, nil
}

func (l loader) read(ctx context.Context, entity query.Entity, filter query.Filter, fields []string, opts query.ReadOptions) ([]query.Row, error) {
	rows, err := l.repo.ReadFields(ctx, entity, filter, fields, opts)
	if err != nil {
		return nil, &RepositoryError{Entity: entity, Op: "read", Err: err}
	}
	return rows, nil
}

// date reads a calendar column. A value that does not parse leaves the record
// outside every date window, so it is logged.
func (l loader) date(ctx context.Context, row query.Row, entity query.Entity, field string) time.Time {
	d, ok := row.Date(field)
	if !ok {
		log.Ctx(ctx).Warn().
			Str("entity", string(entity)).
			Int64("id", row.Int64("id")).
			Str("field", field).
			Str("value", row.String(field)).
			Msg("Unparseable date; record excluded from date windows")
	}
	return d
}

func (l loader) trips(ctx context.Context, filter query.Filter, opts query.ReadOptions) ([]metrics.TripRecord, error) {
	rows, err := l.read(ctx, query.EntityTrip, filter, tripFields, opts)
	if err != nil {
		return nil, err
	}
	trips := make([]metrics.TripRecord, 0, len(rows))
	for _, row := range rows {
		departure := l.date(ctx, row, query.EntityTrip, "departure_date")
		trips = append(trips, metrics.TripRecord{
			ID:             row.Int64("id"),
			Reference:      row.String("reference"),
			State:          metrics.TripState(row.String("state")),
			DepartureDate:  departure,
			DepartureAt:    row.Time("departure_at"),
			TotalSeats:     row.Int64("total_seats"),
			AvailableSeats: row.Int64("available_seats"),
			CompanyID:      row.Int64("company_id"),
		})
	}
	return trips, nil
}

func (l loader) bookings(ctx context.Context, filter query.Filter, opts query.ReadOptions) ([]metrics.BookingRecord, error) {
	rows, err := l.read(ctx, query.EntityBooking, filter, bookingFields, opts)
	if err != nil {
		return nil, err
	}
	bookings := make([]metrics.BookingRecord, 0, len(rows))
	for _, row := range rows {
		bookingDate := l.date(ctx, row, query.EntityBooking, "booking_date")
		bookings = append(bookings, metrics.BookingRecord{
			ID:                  row.Int64("id"),
			Reference:           row.String("reference"),
			PassengerName:       row.String("passenger_name"),
			State:               metrics.BookingState(row.String("state")),
			TotalAmount:         row.Decimal("total_amount"),
			AmountDue:           row.Decimal("amount_due"),
			BookingDate:         bookingDate,
			ReservationDeadline: row.Time("reservation_deadline"),
			CompanyID:           row.Int64("company_id"),
			CreatedAt:           row.Time("created_at"),
		})
	}
	return bookings, nil
}

func (l loader) buses(ctx context.Context, filter query.Filter) ([]metrics.BusRecord, error) {
	rows, err := l.read(ctx, query.EntityBus, filter, busFields, query.ReadOptions{})
	if err != nil {
		return nil, err
	}
	buses := make([]metrics.BusRecord, 0, len(rows))
	for _, row := range rows {
		buses = append(buses, metrics.BusRecord{
			ID:        row.Int64("id"),
			State:     metrics.BusState(row.String("state")),
			CompanyID: row.Int64("company_id"),
		})
	}
	return buses, nil
}

func (l loader) companies(ctx context.Context, filter query.Filter, opts query.ReadOptions) ([]metrics.CompanyRecord, error) {
	rows, err := l.read(ctx, query.EntityCompany, filter, companyFields, opts)
	if err != nil {
		return nil, err
	}
	companies := make([]metrics.CompanyRecord, 0, len(rows))
	for _, row := range rows {
		companies = append(companies, metrics.CompanyRecord{
			ID:          row.Int64("id"),
			Name:        row.String("name"),
			State:       metrics.CompanyState(row.String("state")),
			Rating:      row.Float64("rating"),
			RatingCount: row.Int64("rating_count"),
		})
	}
	return companies, nil
}

func (l loader) routes(ctx context.Context, filter query.Filter, opts query.ReadOptions) ([]metrics.RouteRecord, error) {
	rows, err := l.read(ctx, query.EntityRoute, filter, routeFields, opts)
	if err != nil {
		return nil, err
	}
	routes := make([]metrics.RouteRecord, 0, len(rows))
	for _, row := range rows {
		routes = append(routes, metrics.RouteRecord{
			ID:            row.Int64("id"),
			Name:          row.String("name"),
			Code:          row.String("code"),
			DepartureCity: row.String("departure_city"),
			ArrivalCity:   row.String("arrival_city"),
			BasePrice:     row.Decimal("base_price"),
			State:         metrics.RouteState(row.String("state")),
		})
	}
	return routes, nil
}
