package dashboard_test

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/codr1/transitdash/internal/dashboard"
	"github.com/codr1/transitdash/internal/db"
	"github.com/codr1/transitdash/internal/metrics"
	"github.com/codr1/transitdash/internal/query"
	"github.com/codr1/transitdash/internal/testutil"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func day(offset int) time.Time {
	return time.Date(2024, 3, 15+offset, 0, 0, 0, 0, time.UTC)
}

func ago(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

// flakyRepository wraps a real repository and can be told to fail or block.
type flakyRepository struct {
	query.Repository

	fail    atomic.Bool
	reads   atomic.Int64
	entered chan struct{}
	release chan struct{}
}

func (r *flakyRepository) ReadFields(ctx context.Context, entity query.Entity, filter query.Filter, fields []string, opts query.ReadOptions) ([]query.Row, error) {
	if r.fail.Load() && entity == query.EntityBooking {
		return nil, errors.New("connection reset")
	}
	if entity == query.EntityCompany && r.reads.Add(1) == 1 && r.release != nil {
		close(r.entered)
		<-r.release
	}
	return r.Repository.ReadFields(ctx, entity, filter, fields, opts)
}

func seed(t *testing.T) *db.Repository {
	t.Helper()

	database := testutil.NewTestDB(t)
	deadline := testNow.Add(time.Hour)
	data := db.SeedData{
		Companies: []metrics.CompanyRecord{
			{ID: 1, Name: "Sahel Express", State: metrics.CompanyActive, Rating: 4.2, RatingCount: 10},
			{ID: 2, Name: "Dune Lines", State: metrics.CompanyActive, Rating: 4.8, RatingCount: 5},
			{ID: 3, Name: "Old Road", State: metrics.CompanyInactive, Rating: 5, RatingCount: 1},
		},
		Buses: []metrics.BusRecord{
			{ID: 1, CompanyID: 1, State: metrics.BusAvailable},
			{ID: 2, CompanyID: 1, State: metrics.BusMaintenance},
			{ID: 3, CompanyID: 2, State: metrics.BusInTrip},
		},
		Trips: []metrics.TripRecord{
			{ID: 1, CompanyID: 1, Reference: "T1", State: metrics.TripScheduled, DepartureDate: day(0), TotalSeats: 50, AvailableSeats: 10},
			{ID: 2, CompanyID: 1, Reference: "T2", State: metrics.TripBoarding, DepartureDate: day(1), TotalSeats: 50, AvailableSeats: 30},
			{ID: 3, CompanyID: 1, Reference: "T3", State: metrics.TripCompleted, DepartureDate: day(-3), TotalSeats: 50, AvailableSeats: 0},
			{ID: 4, CompanyID: 2, Reference: "T4", State: metrics.TripScheduled, DepartureDate: day(2), TotalSeats: 40, AvailableSeats: 20},
		},
		Bookings: []metrics.BookingRecord{
			{ID: 1, CompanyID: 1, Reference: "B1", State: metrics.BookingConfirmed, TotalAmount: decimal.NewFromInt(3000), BookingDate: day(0), CreatedAt: ago(time.Hour)},
			{ID: 2, CompanyID: 1, Reference: "B2", State: metrics.BookingCompleted, TotalAmount: decimal.NewFromInt(2000), BookingDate: day(-3), CreatedAt: ago(72 * time.Hour)},
			{ID: 3, CompanyID: 1, Reference: "B3", State: metrics.BookingReserved, TotalAmount: decimal.NewFromInt(1500), AmountDue: decimal.NewFromInt(1500),
				BookingDate: day(0), ReservationDeadline: &deadline, CreatedAt: ago(10 * time.Minute)},
			{ID: 4, CompanyID: 2, Reference: "B4", State: metrics.BookingCheckedIn, TotalAmount: decimal.NewFromInt(4000), BookingDate: day(-1), CreatedAt: ago(24 * time.Hour)},
			{ID: 5, CompanyID: 2, Reference: "B5", State: metrics.BookingCancelled, TotalAmount: decimal.NewFromInt(900), BookingDate: day(-1), CreatedAt: ago(20 * time.Hour)},
		},
		Routes: []metrics.RouteRecord{
			{ID: 1, Name: "Dakar - Thies", DepartureCity: "Dakar", ArrivalCity: "Thies", BasePrice: decimal.NewFromInt(2500), State: metrics.RouteActive},
			{ID: 2, Name: "Dakar - Mbour", DepartureCity: "Dakar", ArrivalCity: "Mbour", BasePrice: decimal.NewFromInt(3000), State: metrics.RouteActive},
			{ID: 3, Name: "Dakar - Louga", DepartureCity: "Dakar", ArrivalCity: "Louga", BasePrice: decimal.NewFromInt(4500), State: metrics.RouteSuspended},
			{ID: 4, Name: "Thies - Kaolack", DepartureCity: "Thies", ArrivalCity: "Kaolack", BasePrice: decimal.NewFromInt(3500), State: metrics.RouteActive},
			{ID: 5, Name: "Dakar - Touba", DepartureCity: "Dakar", ArrivalCity: "Touba", BasePrice: decimal.NewFromInt(5000), State: metrics.RouteDraft},
			{ID: 6, Name: "Dakar - Saint-Louis", DepartureCity: "Dakar", ArrivalCity: "Saint-Louis", BasePrice: decimal.RequireFromString("6500.50"), State: metrics.RouteActive},
			{ID: 7, Name: "Kaolack - Tambacounda", DepartureCity: "Kaolack", ArrivalCity: "Tambacounda", BasePrice: decimal.NewFromInt(8000), State: metrics.RouteActive},
			{ID: 8, Name: "Dakar - Ziguinchor", DepartureCity: "Dakar", ArrivalCity: "Ziguinchor", BasePrice: decimal.NewFromInt(12000), State: metrics.RouteActive},
		},
		Passengers: []db.Passenger{
			{ID: 1, Name: "Awa", CreatedAt: day(-60)},
			{ID: 2, Name: "Moussa", CreatedAt: day(-5)},
			{ID: 3, Name: "Fatou", CreatedAt: day(-1)},
		},
	}
	if err := database.Seed(context.Background(), data); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db.NewRepository(database)
}

func newService(repo query.Repository) *dashboard.Service {
	return dashboard.NewService(repo, metrics.NewEngine(time.UTC), dashboard.Config{Clock: fixedClock{now: testNow}})
}

func TestServiceRefreshGlobal(t *testing.T) {
	service := newService(seed(t))

	snapshot, err := service.Refresh(context.Background(), metrics.GlobalScope)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if !snapshot.Revenue.Total.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("Revenue.Total = %s, want 9000", snapshot.Revenue.Total)
	}
	if snapshot.Passengers.Total != 3 || snapshot.Passengers.NewThisMonth != 2 {
		t.Fatalf("Passengers = %+v, want 3 total / 2 this month", snapshot.Passengers)
	}
	if snapshot.Bookings.Unpaid != 1 || snapshot.Bookings.Expiring != 1 {
		t.Fatalf("Bookings = %+v", snapshot.Bookings)
	}
	if len(snapshot.TopCompanies) != 2 || snapshot.TopCompanies[0].ID != 2 {
		t.Fatalf("TopCompanies = %+v, want Dune Lines first and inactive excluded", snapshot.TopCompanies)
	}
	if len(snapshot.RecentBookings) != 5 || snapshot.RecentBookings[0].ID != 3 {
		t.Fatalf("RecentBookings not newest first: %+v", snapshot.RecentBookings)
	}
	if snapshot.UpcomingTrips != nil {
		t.Fatal("global view should not carry upcoming trips")
	}
	var routeIDs []int64
	for _, r := range snapshot.TopRoutes {
		routeIDs = append(routeIDs, r.ID)
	}
	if want := []int64{8, 7, 6, 4, 2}; !slices.Equal(routeIDs, want) {
		t.Fatalf("TopRoutes ids = %v, want %v", routeIDs, want)
	}
	if route := snapshot.TopRoutes[2]; route.ArrivalCity != "Saint-Louis" || !route.BasePrice.Equal(decimal.RequireFromString("6500.5")) {
		t.Fatalf("TopRoutes[2] = %+v", route)
	}

	last, ok := service.Last(metrics.GlobalScope)
	if !ok || last.ID != snapshot.ID {
		t.Fatal("refreshed snapshot was not stored")
	}
}

func TestServiceRefreshCompany(t *testing.T) {
	service := newService(seed(t))

	snapshot, err := service.Refresh(context.Background(), metrics.CompanyScope(1))
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snapshot.CompanyName != "Sahel Express" {
		t.Fatalf("CompanyName = %q", snapshot.CompanyName)
	}
	if !snapshot.Revenue.Total.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("Revenue.Total = %s, want 5000", snapshot.Revenue.Total)
	}
	if snapshot.Rating != 4.2 {
		t.Fatalf("Rating = %v, want 4.2", snapshot.Rating)
	}
	if len(snapshot.UpcomingTrips) != 2 || snapshot.UpcomingTrips[0].ID != 1 {
		t.Fatalf("UpcomingTrips = %+v", snapshot.UpcomingTrips)
	}
	for _, b := range snapshot.RecentBookings {
		if b.CompanyID != 1 {
			t.Fatalf("booking %d of company %d leaked into company view", b.ID, b.CompanyID)
		}
	}
	if snapshot.Buses.Maintenance != 1 {
		t.Fatalf("Buses = %+v", snapshot.Buses)
	}
	if snapshot.TopRoutes != nil {
		t.Fatal("company view should not carry top routes")
	}
}

// garbledDateRepository rewrites one booking's date into a format the
// row accessors do not accept.
type garbledDateRepository struct {
	query.Repository
	bookingID int64
}

func (r garbledDateRepository) ReadFields(ctx context.Context, entity query.Entity, filter query.Filter, fields []string, opts query.ReadOptions) ([]query.Row, error) {
	rows, err := r.Repository.ReadFields(ctx, entity, filter, fields, opts)
	if err != nil || entity != query.EntityBooking {
		return rows, err
	}
	for _, row := range rows {
		if row.Int64("id") == r.bookingID {
			row["booking_date"] = "12/03/2024"
		}
	}
	return rows, nil
}

func TestServiceRefreshLogsUnparseableDates(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())
	service := newService(garbledDateRepository{Repository: seed(t), bookingID: 2})

	snapshot, err := service.Refresh(ctx, metrics.CompanyScope(1))
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snapshot.Bookings.Total != 3 {
		t.Fatalf("Bookings.Total = %d, want 3", snapshot.Bookings.Total)
	}

	logged := buf.String()
	if !strings.Contains(logged, "Unparseable date") || !strings.Contains(logged, `"value":"12/03/2024"`) {
		t.Fatalf("expected a warning for the garbled booking date, got:\n%s", logged)
	}
	if !strings.Contains(logged, `"entity":"booking"`) || !strings.Contains(logged, `"id":2`) {
		t.Fatalf("warning does not identify the record:\n%s", logged)
	}
}

func TestServiceRefreshUnknownCompany(t *testing.T) {
	service := newService(seed(t))

	_, err := service.Refresh(context.Background(), metrics.CompanyScope(99))
	if !errors.Is(err, dashboard.ErrCompanyNotFound) {
		t.Fatalf("err = %v, want ErrCompanyNotFound", err)
	}
	if _, ok := service.Last(metrics.CompanyScope(99)); ok {
		t.Fatal("no snapshot should be stored for an unknown company")
	}
}

func TestServiceRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	repo := &flakyRepository{Repository: seed(t)}
	service := newService(repo)
	ctx := context.Background()

	first, err := service.Refresh(ctx, metrics.GlobalScope)
	if err != nil {
		t.Fatalf("first Refresh: %v", err)
	}

	repo.fail.Store(true)
	_, err = service.Refresh(ctx, metrics.GlobalScope)
	if !errors.Is(err, dashboard.ErrRepository) {
		t.Fatalf("err = %v, want ErrRepository", err)
	}
	var repoErr *dashboard.RepositoryError
	if !errors.As(err, &repoErr) || repoErr.Entity != query.EntityBooking {
		t.Fatalf("err = %v, want RepositoryError for bookings", err)
	}

	last, ok := service.Last(metrics.GlobalScope)
	if !ok || last.ID != first.ID {
		t.Fatal("previous snapshot should survive a failed refresh")
	}
}

func TestServiceRefreshCoalescesConcurrentCalls(t *testing.T) {
	repo := &flakyRepository{
		Repository: seed(t),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	service := newService(repo)
	ctx := context.Background()

	const callers = 8
	ids := make([]string, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		snapshot, err := service.Refresh(ctx, metrics.GlobalScope)
		if err != nil {
			t.Errorf("Refresh: %v", err)
		}
		ids[0] = snapshot.ID
	}()
	<-repo.entered

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snapshot, err := service.Refresh(ctx, metrics.GlobalScope)
			if err != nil {
				t.Errorf("Refresh: %v", err)
			}
			ids[i] = snapshot.ID
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(repo.release)
	wg.Wait()

	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got snapshot %s, want shared %s", i, ids[i], ids[0])
		}
	}
}

func TestServiceSnapshotUsesStoredSnapshot(t *testing.T) {
	repo := &flakyRepository{Repository: seed(t)}
	service := newService(repo)
	ctx := context.Background()

	first, err := service.Snapshot(ctx, metrics.GlobalScope)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	reads := repo.reads.Load()

	second, err := service.Snapshot(ctx, metrics.GlobalScope)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if second.ID != first.ID || repo.reads.Load() != reads {
		t.Fatal("second Snapshot call should not hit the repository")
	}
}

func TestServiceRefreshCompanies(t *testing.T) {
	service := newService(seed(t))

	refreshed, err := service.RefreshCompanies(context.Background())
	if err != nil {
		t.Fatalf("RefreshCompanies: %v", err)
	}
	if refreshed != 2 {
		t.Fatalf("refreshed = %d, want 2 active companies", refreshed)
	}
	for _, id := range []int64{1, 2} {
		if _, ok := service.Last(metrics.CompanyScope(id)); !ok {
			t.Fatalf("company %d has no snapshot", id)
		}
	}
	if _, ok := service.Last(metrics.CompanyScope(3)); ok {
		t.Fatal("inactive company should not be refreshed")
	}
}
