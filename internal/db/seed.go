// internal/db/seed.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/codr1/transitdash/internal/metrics"
	"github.com/codr1/transitdash/internal/query"
)

type Passenger struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// SeedData is a set of records written with explicit ids.
type SeedData struct {
	Companies  []metrics.CompanyRecord
	Buses      []metrics.BusRecord
	Trips      []metrics.TripRecord
	Bookings   []metrics.BookingRecord
	Routes     []metrics.RouteRecord
	Passengers []Passenger
}

// Seed inserts data in a single transaction, parents first.
func (db *DB) Seed(ctx context.Context, data SeedData) error {
	return db.RunInTx(ctx, func(tx *sql.Tx) error {
		for _, c := range data.Companies {
			if err := db.insert(ctx, tx, query.EntityCompany, []string{"id", "name", "state", "rating", "rating_count"},
				c.ID, c.Name, c.State, c.Rating, c.RatingCount); err != nil {
				return err
			}
		}
		for _, b := range data.Buses {
			if err := db.insert(ctx, tx, query.EntityBus, []string{"id", "company_id", "code", "state"},
				b.ID, b.CompanyID, fmt.Sprintf("BUS-%03d", b.ID), b.State); err != nil {
				return err
			}
		}
		for _, t := range data.Trips {
			if err := db.insert(ctx, tx, query.EntityTrip,
				[]string{"id", "company_id", "reference", "state", "departure_date", "departure_at", "total_seats", "available_seats"},
				t.ID, t.CompanyID, t.Reference, t.State, t.DepartureDate, t.DepartureAt, t.TotalSeats, t.AvailableSeats); err != nil {
				return err
			}
		}
		for _, b := range data.Bookings {
			createdAt := b.CreatedAt
			if createdAt == nil {
				now := time.Now()
				createdAt = &now
			}
			if err := db.insert(ctx, tx, query.EntityBooking,
				[]string{"id", "company_id", "reference", "passenger_name", "state", "total_amount", "amount_due", "booking_date", "reservation_deadline", "created_at"},
				b.ID, b.CompanyID, b.Reference, b.PassengerName, b.State, b.TotalAmount, b.AmountDue, b.BookingDate, b.ReservationDeadline, createdAt); err != nil {
				return err
			}
		}
		for _, r := range data.Routes {
			if err := db.insert(ctx, tx, query.EntityRoute,
				[]string{"id", "name", "code", "departure_city", "arrival_city", "base_price", "state"},
				r.ID, r.Name, r.Code, r.DepartureCity, r.ArrivalCity, r.BasePrice, r.State); err != nil {
				return err
			}
		}
		for _, p := range data.Passengers {
			if err := db.insert(ctx, tx, query.EntityPassenger, []string{"id", "name", "created_at"},
				p.ID, p.Name, p.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) insert(ctx context.Context, tx *sql.Tx, entity query.Entity, fields []string, values ...any) error {
	t := tables[entity]
	cols, err := selectColumns(t, fields)
	if err != nil {
		return err
	}

	b := &builder{dialect: db.Dialect}
	marks := make([]string, len(cols))
	for i, c := range cols {
		marks[i] = b.placeholder(b.bind(c, values[i]))
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(fields, ", "), strings.Join(marks, ", "))
	if _, err := tx.ExecContext(ctx, stmt, b.args...); err != nil {
		return fmt.Errorf("insert %s: %w", t.name, err)
	}
	return nil
}
