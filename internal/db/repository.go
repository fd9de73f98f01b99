// internal/db/repository.go
package db

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/transitdash/internal/query"
)

// sqliteTimestampLayout is how instants are stored in SQLite TEXT columns.
// It sorts lexically in chronological order.
const sqliteTimestampLayout = "2006-01-02T15:04:05Z"

type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindFloat
	kindMoney
	kindDate
	kindTimestamp
)

type column struct {
	name string
	kind columnKind
}

type table struct {
	name    string
	columns []column
}

func (t table) column(field string) (column, bool) {
	for _, c := range t.columns {
		if c.name == field {
			return c, true
		}
	}
	return column{}, false
}

// tables is the field whitelist. Only these names ever reach SQL text.
var tables = map[query.Entity]table{
	query.EntityCompany: {name: "companies", columns: []column{
		{"id", kindInt},
		{"name", kindText},
		{"state", kindText},
		{"rating", kindFloat},
		{"rating_count", kindInt},
		{"created_at", kindTimestamp},
	}},
	query.EntityBus: {name: "buses", columns: []column{
		{"id", kindInt},
		{"company_id", kindInt},
		{"code", kindText},
		{"state", kindText},
	}},
	query.EntityTrip: {name: "trips", columns: []column{
		{"id", kindInt},
		{"company_id", kindInt},
		{"reference", kindText},
		{"state", kindText},
		{"departure_date", kindDate},
		{"departure_at", kindTimestamp},
		{"total_seats", kindInt},
		{"available_seats", kindInt},
	}},
	query.EntityBooking: {name: "bookings", columns: []column{
		{"id", kindInt},
		{"company_id", kindInt},
		{"trip_id", kindInt},
		{"reference", kindText},
		{"passenger_name", kindText},
		{"state", kindText},
		{"total_amount", kindMoney},
		{"amount_due", kindMoney},
		{"booking_date", kindDate},
		{"reservation_deadline", kindTimestamp},
		{"created_at", kindTimestamp},
	}},
	query.EntityRoute: {name: "routes", columns: []column{
		{"id", kindInt},
		{"name", kindText},
		{"code", kindText},
		{"departure_city", kindText},
		{"arrival_city", kindText},
		{"base_price", kindMoney},
		{"state", kindText},
	}},
	query.EntityPassenger: {name: "passengers", columns: []column{
		{"id", kindInt},
		{"name", kindText},
		{"created_at", kindTimestamp},
	}},
}

// Repository implements query.Repository over the application database.
type Repository struct {
	db *DB
}

var _ query.Repository = (*Repository)(nil)

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Count(ctx context.Context, entity query.Entity, filter query.Filter) (int64, error) {
	t, ok := tables[entity]
	if !ok {
		return 0, fmt.Errorf("%w: %s", query.ErrUnknownEntity, entity)
	}

	b := r.newBuilder()
	where, err := b.where(t, filter)
	if err != nil {
		return 0, err
	}
	stmt := "SELECT COUNT(*) FROM " + t.name + where

	var n int64
	if err := r.db.QueryRowContext(ctx, stmt, b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}

// ReadFields returns one Row per matching record keyed by field name. An
// empty fields list selects every whitelisted column.
func (r *Repository) ReadFields(ctx context.Context, entity query.Entity, filter query.Filter, fields []string, opts query.ReadOptions) ([]query.Row, error) {
	t, ok := tables[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", query.ErrUnknownEntity, entity)
	}

	cols, err := selectColumns(t, fields)
	if err != nil {
		return nil, err
	}

	b := r.newBuilder()
	where, err := b.where(t, filter)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i, c := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.name)
	}
	sb.WriteString(" FROM ")
	sb.WriteString(t.name)
	sb.WriteString(where)

	if len(opts.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range opts.OrderBy {
			c, ok := t.column(o.Field)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", query.ErrUnknownField, entity, o.Field)
			}
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.name)
			if o.Desc {
				sb.WriteString(" DESC")
			}
		}
	}
	if opts.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(opts.Limit))
	}

	stmt := sb.String()
	log.Ctx(ctx).Debug().Str("entity", string(entity)).Str("sql", stmt).Msg("Reading fields")

	rows, err := r.db.QueryContext(ctx, stmt, b.args...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []query.Row
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		row := make(query.Row, len(cols))
		for i, c := range cols {
			row[c.name] = normalizeScanned(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", t.name, err)
	}
	return out, nil
}

func selectColumns(t table, fields []string) ([]column, error) {
	if len(fields) == 0 {
		return t.columns, nil
	}
	cols := make([]column, 0, len(fields))
	for _, field := range fields {
		c, ok := t.column(field)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", query.ErrUnknownField, t.name, field)
		}
		cols = append(cols, c)
	}
	return cols, nil
}

type builder struct {
	dialect Dialect
	args    []any
}

func (r *Repository) newBuilder() *builder {
	return &builder{dialect: r.db.Dialect}
}

func (b *builder) placeholder(value any) string {
	b.args = append(b.args, value)
	if b.dialect == DialectPostgres {
		return "$" + strconv.Itoa(len(b.args))
	}
	return "?"
}

func (b *builder) where(t table, filter query.Filter) (string, error) {
	if len(filter) == 0 {
		return "", nil
	}

	clauses := make([]string, 0, len(filter))
	for _, cond := range filter {
		if err := cond.Validate(); err != nil {
			return "", err
		}
		c, ok := t.column(cond.Field)
		if !ok {
			return "", fmt.Errorf("%w: %s.%s", query.ErrUnknownField, t.name, cond.Field)
		}

		switch cond.Op {
		case query.OpIn, query.OpNotIn:
			values, _ := query.SetValues(cond.Value)
			marks := make([]string, len(values))
			for i, v := range values {
				marks[i] = b.placeholder(b.bind(c, v))
			}
			op := "IN"
			if cond.Op == query.OpNotIn {
				op = "NOT IN"
			}
			clauses = append(clauses, fmt.Sprintf("%s %s (%s)", c.name, op, strings.Join(marks, ", ")))
		case query.OpNotEq:
			clauses = append(clauses, fmt.Sprintf("%s <> %s", c.name, b.placeholder(b.bind(c, cond.Value))))
		default:
			clauses = append(clauses, fmt.Sprintf("%s %s %s", c.name, cond.Op, b.placeholder(b.bind(c, cond.Value))))
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), nil
}

// bind converts a filter value into the representation stored for the
// column's kind.
func (b *builder) bind(c column, value any) any {
	if p, ok := value.(*time.Time); ok {
		if p == nil {
			return nil
		}
		value = *p
	}
	if t, ok := value.(time.Time); ok {
		switch {
		case c.kind == kindDate && b.dialect == DialectSQLite:
			return t.Format(query.DateLayout)
		case c.kind == kindDate:
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		case b.dialect == DialectSQLite:
			return t.UTC().Format(sqliteTimestampLayout)
		default:
			return t.UTC()
		}
	}
	if s, ok := value.(fmt.Stringer); ok && c.kind == kindMoney {
		return s.String()
	}

	// Named string and integer types, e.g. booking states.
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	}
	return value
}

func normalizeScanned(v any) any {
	if raw, ok := v.([]byte); ok {
		return string(raw)
	}
	return v
}
