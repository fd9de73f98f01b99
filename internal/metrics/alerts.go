package metrics

import (
	"fmt"
	"slices"
)

type Severity string

const (
	SeverityDanger    Severity = "danger"
	SeverityWarning   Severity = "warning"
	SeverityInfo      Severity = "info"
	SeverityPrimary   Severity = "primary"
	SeveritySuccess   Severity = "success"
	SeveritySecondary Severity = "secondary"
)

// Drill-down action tokens. The UI maps them to navigation targets.
const (
	ActionExpiringReservations = "open_expiring_reservations"
	ActionBoardingTrips        = "open_boarding_trips"
	ActionDepartedTrips        = "open_departed_trips"
	ActionUnpaidBookings       = "open_unpaid_bookings"
	ActionCancelledTrips       = "open_cancelled_trips"
	ActionMaintenanceBuses     = "open_maintenance_buses"
)

const (
	AlertExpiringReservations = "expiring_reservations"
	AlertBoardingTrips        = "boarding_trips"
	AlertDepartedTrips        = "departed_trips"
	AlertUnpaidBookings       = "unpaid_bookings"
	AlertMaintenanceBuses     = "maintenance_buses"
	AlertLowOccupancy         = "low_occupancy"
	AlertRevenueGrowth        = "revenue_growth"
	AlertBookingsDrop         = "bookings_drop"
	AlertHighCancellation     = "high_cancellation"
)

type Alert struct {
	Code     string         `json:"code"`
	Severity Severity       `json:"severity"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Params   map[string]int `json:"params"`
	Action   string         `json:"action,omitempty"`
	Priority int            `json:"priority"`
}

// AlertState is the slice of aggregated state the rules look at.
type AlertState struct {
	ExpiringReservations int
	BoardingTrips        int
	DepartedTrips        int
	ScheduledTrips       int
	UnpaidBookings       int
	MaintenanceBuses     int
	OccupancyRate        int
	RevenueGrowth        int
	BookingsTrend        int
	CancellationRate     int
}

func NewAlertState(agg Aggregates, trends Trends) AlertState {
	return AlertState{
		ExpiringReservations: int(agg.Bookings.Expiring),
		BoardingTrips:        int(agg.Trips.Boarding),
		DepartedTrips:        int(agg.Trips.Departed),
		ScheduledTrips:       int(agg.Trips.Scheduled),
		UnpaidBookings:       int(agg.Bookings.Unpaid),
		MaintenanceBuses:     int(agg.Buses.Maintenance),
		OccupancyRate:        agg.OccupancyRate,
		RevenueGrowth:        trends.RevenueGrowth,
		BookingsTrend:        trends.BookingsTrend,
		CancellationRate:     agg.CancellationRate,
	}
}

// Trigger fires when the rule's metric compares against Threshold.
type Trigger struct {
	Severity  Severity
	Threshold int
	Below     bool
	// NoAction drops the rule's drill-down in this view.
	NoAction bool
}

func (t Trigger) matches(value int) bool {
	if t.Below {
		return value < t.Threshold
	}
	return value > t.Threshold
}

func above(severity Severity, threshold int) *Trigger {
	return &Trigger{Severity: severity, Threshold: threshold}
}

func below(severity Severity, threshold int) *Trigger {
	return &Trigger{Severity: severity, Threshold: threshold, Below: true}
}

func withoutAction(t *Trigger) *Trigger {
	t.NoAction = true
	return t
}

// Rule is one row of the alert table. A nil trigger disables the rule for
// that view.
type Rule struct {
	Code     string
	Title    string
	Template string
	Action   string
	Priority int
	Metric   func(AlertState) int
	Guard    func(AlertState) bool
	Global   *Trigger
	Company  *Trigger
}

func (r Rule) trigger(scope Scope) *Trigger {
	if scope.IsCompany() {
		return r.Company
	}
	return r.Global
}

// Rules is evaluated top to bottom; the order is the global view's display
// order and the tie-break order for company priorities.
var Rules = []Rule{
	{
		Code:     AlertExpiringReservations,
		Title:    "Reservations expiring",
		Template: "%d reservation(s) expire within the next 2 hours",
		Action:   ActionExpiringReservations,
		Priority: 1,
		Metric:   func(s AlertState) int { return s.ExpiringReservations },
		Global:   above(SeverityWarning, 0),
		Company:  above(SeverityWarning, 0),
	},
	{
		Code:     AlertBoardingTrips,
		Title:    "Boarding in progress",
		Template: "%d trip(s) currently boarding",
		Action:   ActionBoardingTrips,
		Priority: 1,
		Metric:   func(s AlertState) int { return s.BoardingTrips },
		Global:   above(SeverityInfo, 0),
		Company:  above(SeverityInfo, 0),
	},
	{
		Code:     AlertDepartedTrips,
		Title:    "Trips en route",
		Template: "%d trip(s) currently en route",
		Action:   ActionDepartedTrips,
		Priority: 2,
		Metric:   func(s AlertState) int { return s.DepartedTrips },
		Company:  above(SeverityPrimary, 0),
	},
	{
		Code:     AlertUnpaidBookings,
		Title:    "Payments pending",
		Template: "%d bookings awaiting payment",
		Action:   ActionUnpaidBookings,
		Priority: 1,
		Metric:   func(s AlertState) int { return s.UnpaidBookings },
		Global:   above(SeverityDanger, 10),
		Company:  above(SeverityDanger, 5),
	},
	{
		Code:     AlertMaintenanceBuses,
		Title:    "Buses in maintenance",
		Template: "%d bus(es) unavailable",
		Action:   ActionMaintenanceBuses,
		Priority: 3,
		Metric:   func(s AlertState) int { return s.MaintenanceBuses },
		Company:  above(SeveritySecondary, 0),
	},
	{
		Code:     AlertLowOccupancy,
		Title:    "Low occupancy",
		Template: "Average occupancy is only %d%%",
		Priority: 2,
		Metric:   func(s AlertState) int { return s.OccupancyRate },
		Guard:    func(s AlertState) bool { return s.ScheduledTrips > 0 },
		Global:   below(SeverityWarning, 30),
		Company:  below(SeverityWarning, 30),
	},
	{
		Code:     AlertRevenueGrowth,
		Title:    "Strong growth",
		Template: "+%d%% revenue compared to last month",
		Priority: 4,
		Metric:   func(s AlertState) int { return s.RevenueGrowth },
		Global:   above(SeveritySuccess, 20),
		Company:  above(SeveritySuccess, 10),
	},
	{
		Code:     AlertBookingsDrop,
		Title:    "Bookings dropping",
		Template: "%d%% bookings compared to last week",
		Priority: 2,
		Metric:   func(s AlertState) int { return s.BookingsTrend },
		Global:   below(SeverityDanger, -20),
	},
	{
		Code:     AlertHighCancellation,
		Title:    "High cancellation rate",
		Template: "%d%% of trips are cancelled",
		Action:   ActionCancelledTrips,
		Priority: 2,
		Metric:   func(s AlertState) int { return s.CancellationRate },
		Global:   above(SeverityWarning, 15),
		Company:  withoutAction(above(SeverityDanger, 10)),
	},
}

// GenerateAlerts evaluates every rule independently. Company alerts are
// stable-sorted by ascending priority; global alerts keep table order.
func GenerateAlerts(state AlertState, scope Scope) []Alert {
	return evaluateRules(Rules, state, scope)
}

func evaluateRules(rules []Rule, state AlertState, scope Scope) []Alert {
	alerts := make([]Alert, 0, len(rules))
	for _, rule := range rules {
		trigger := rule.trigger(scope)
		if trigger == nil {
			continue
		}
		if rule.Guard != nil && !rule.Guard(state) {
			continue
		}
		value := rule.Metric(state)
		if !trigger.matches(value) {
			continue
		}
		action := rule.Action
		if trigger.NoAction {
			action = ""
		}
		alerts = append(alerts, Alert{
			Code:     rule.Code,
			Severity: trigger.Severity,
			Title:    rule.Title,
			Message:  fmt.Sprintf(rule.Template, value),
			Params:   map[string]int{"value": value, "threshold": trigger.Threshold},
			Action:   action,
			Priority: rule.Priority,
		})
	}

	if scope.IsCompany() {
		slices.SortStableFunc(alerts, func(a, b Alert) int {
			return a.Priority - b.Priority
		})
	}
	return alerts
}
