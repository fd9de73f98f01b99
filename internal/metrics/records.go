package metrics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type BookingState string

const (
	BookingDraft     BookingState = "draft"
	BookingReserved  BookingState = "reserved"
	BookingConfirmed BookingState = "confirmed"
	BookingCheckedIn BookingState = "checked_in"
	BookingCompleted BookingState = "completed"
	BookingCancelled BookingState = "cancelled"
	BookingExpired   BookingState = "expired"
	BookingNoShow    BookingState = "no_show"
	BookingRefunded  BookingState = "refunded"
)

// RevenueStates are the booking states whose total counts as recognized revenue.
var RevenueStates = []BookingState{BookingConfirmed, BookingCompleted, BookingCheckedIn}

// ClosedStates never carry collectible balances.
var ClosedStates = []BookingState{BookingCancelled, BookingExpired, BookingRefunded}

func (s BookingState) Recognized() bool {
	return s == BookingConfirmed || s == BookingCompleted || s == BookingCheckedIn
}

func (s BookingState) Closed() bool {
	return s == BookingCancelled || s == BookingExpired || s == BookingRefunded
}

type TripState string

const (
	TripScheduled TripState = "scheduled"
	TripBoarding  TripState = "boarding"
	TripDeparted  TripState = "departed"
	TripCompleted TripState = "completed"
	TripCancelled TripState = "cancelled"
)

// ActiveTripStates are the trips whose seats count toward occupancy.
var ActiveTripStates = []TripState{TripScheduled, TripBoarding, TripDeparted}

func (s TripState) Active() bool {
	return s == TripScheduled || s == TripBoarding || s == TripDeparted
}

type CompanyState string

const (
	CompanyActive   CompanyState = "active"
	CompanyInactive CompanyState = "inactive"
)

type RouteState string

const (
	RouteDraft     RouteState = "draft"
	RouteActive    RouteState = "active"
	RouteSuspended RouteState = "suspended"
)

type BusState string

const (
	BusAvailable    BusState = "available"
	BusInTrip       BusState = "in_trip"
	BusMaintenance  BusState = "maintenance"
	BusOutOfService BusState = "out_of_service"
)

// BookingRecord is a read-only booking snapshot. BookingDate is a calendar
// date carried as midnight UTC.
type BookingRecord struct {
	ID                  int64           `json:"id"`
	Reference           string          `json:"reference,omitempty"`
	PassengerName       string          `json:"passengerName,omitempty"`
	State               BookingState    `json:"state"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	AmountDue           decimal.Decimal `json:"amountDue"`
	BookingDate         time.Time       `json:"bookingDate"`
	ReservationDeadline *time.Time      `json:"reservationDeadline,omitempty"`
	CompanyID           int64           `json:"companyId"`
	CreatedAt           *time.Time      `json:"createdAt,omitempty"`
}

type TripRecord struct {
	ID             int64      `json:"id"`
	Reference      string     `json:"reference,omitempty"`
	State          TripState  `json:"state"`
	DepartureDate  time.Time  `json:"departureDate"`
	DepartureAt    *time.Time `json:"departureAt,omitempty"`
	TotalSeats     int64      `json:"totalSeats"`
	AvailableSeats int64      `json:"availableSeats"`
	CompanyID      int64      `json:"companyId"`
}

type CompanyRecord struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	State       CompanyState `json:"state"`
	Rating      float64      `json:"rating"`
	RatingCount int64        `json:"ratingCount"`
}

// RouteRecord is a catalogue route shown on the global view. Routes are not
// owned by a company.
type RouteRecord struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Code          string          `json:"code,omitempty"`
	DepartureCity string          `json:"departureCity"`
	ArrivalCity   string          `json:"arrivalCity"`
	BasePrice     decimal.Decimal `json:"basePrice"`
	State         RouteState      `json:"state"`
}

type BusRecord struct {
	ID        int64    `json:"id"`
	State     BusState `json:"state"`
	CompanyID int64    `json:"companyId"`
}

type PassengerCounts struct {
	Total        int64 `json:"total"`
	NewThisMonth int64 `json:"newThisMonth"`
}

// Scope selects the global view (CompanyID == 0) or one company's view.
type Scope struct {
	CompanyID int64 `json:"companyId,omitempty"`
}

var GlobalScope = Scope{}

func CompanyScope(companyID int64) Scope {
	return Scope{CompanyID: companyID}
}

func (s Scope) IsCompany() bool {
	return s.CompanyID > 0
}

func (s Scope) String() string {
	if s.IsCompany() {
		return fmt.Sprintf("company:%d", s.CompanyID)
	}
	return "global"
}

// Input is everything one refresh reads from the repository. Records are
// expected to be already restricted to the scope; the engine does not filter
// by company again.
type Input struct {
	Scope      Scope
	Company    *CompanyRecord
	Trips      []TripRecord
	Bookings   []BookingRecord
	Buses      []BusRecord
	Companies  []CompanyRecord
	Passengers PassengerCounts

	RecentBookings []BookingRecord
	TopCompanies   []CompanyRecord
	TopRoutes      []RouteRecord
	UpcomingTrips  []TripRecord
}
