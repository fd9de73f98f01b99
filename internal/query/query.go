// Package query defines the read-only repository capability the dashboard
// needs from the booking store: counting records and reading a subset of
// their fields under a conjunctive filter.
package query

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

type Entity string

const (
	EntityTrip      Entity = "trip"
	EntityBooking   Entity = "booking"
	EntityCompany   Entity = "company"
	EntityBus       Entity = "bus"
	EntityPassenger Entity = "passenger"
	EntityRoute     Entity = "route"
)

type Op string

const (
	OpEq    Op = "="
	OpNotEq Op = "!="
	OpGt    Op = ">"
	OpGte   Op = ">="
	OpLt    Op = "<"
	OpLte   Op = "<="
	OpIn    Op = "in"
	OpNotIn Op = "not in"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrUnknownField  = errors.New("unknown field")
	ErrUnknownOp     = errors.New("unknown operator")
	ErrEmptySet      = errors.New("set operator requires at least one value")
)

// Condition is one (field, operator, value) triple. For OpIn and OpNotIn the
// value must be a slice.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Filter is a conjunction of conditions. The zero value matches every record.
type Filter []Condition

// Where starts a filter with a single condition.
func Where(field string, op Op, value any) Filter {
	return Filter{{Field: field, Op: op, Value: value}}
}

// And returns a new filter with the condition appended; the receiver is not
// modified so scope filters can be shared between queries.
func (f Filter) And(field string, op Op, value any) Filter {
	out := make(Filter, 0, len(f)+1)
	out = append(out, f...)
	return append(out, Condition{Field: field, Op: op, Value: value})
}

// Order sorts by a single field.
type Order struct {
	Field string
	Desc  bool
}

type ReadOptions struct {
	OrderBy []Order
	// Limit <= 0 means no limit.
	Limit int
}

// Repository is implemented by storage adapters. Implementations may block
// on I/O and must honor ctx cancellation.
type Repository interface {
	Count(ctx context.Context, entity Entity, filter Filter) (int64, error)
	ReadFields(ctx context.Context, entity Entity, filter Filter, fields []string, opts ReadOptions) ([]Row, error)
}

// Validate checks operator arity without knowing the entity schema.
func (c Condition) Validate() error {
	switch c.Op {
	case OpEq, OpNotEq, OpGt, OpGte, OpLt, OpLte:
		return nil
	case OpIn, OpNotIn:
		values, ok := SetValues(c.Value)
		if !ok {
			return fmt.Errorf("field %s: %s requires a slice value", c.Field, c.Op)
		}
		if len(values) == 0 {
			return fmt.Errorf("field %s: %w", c.Field, ErrEmptySet)
		}
		return nil
	default:
		return fmt.Errorf("field %s: %w %q", c.Field, ErrUnknownOp, c.Op)
	}
}

// SetValues flattens any slice value passed to a set operator.
func SetValues(value any) ([]any, bool) {
	if values, ok := value.([]any); ok {
		return values, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
