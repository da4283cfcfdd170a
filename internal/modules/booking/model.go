// README: Booking aggregate, status definitions and the transition table.
package booking

import (
	"time"

	"cabdispatch/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusEnRoute   Status = "en_route"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// AllStatuses lists every persisted status, in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusAssigned, StatusEnRoute, StatusCompleted, StatusCancelled}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Active reports whether a booking in this status holds a driver and cab.
func (s Status) Active() bool {
	return s == StatusAssigned || s == StatusEnRoute
}

type Booking struct {
	ID            types.ID
	CustomerID    types.ID
	DriverID      *types.ID
	CabID         *types.ID
	Pickup        string
	Dropoff       string
	ScheduledAt   *time.Time
	DistanceKm    float64
	FareEstimate  types.Money
	FareFinal     *types.Money
	Status        Status
	StatusVersion int
	CreatedAt     time.Time
	AssignedAt    *time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	CancelReason  *string
}

type Event struct {
	ID         int64
	BookingID  types.ID
	FromStatus Status
	ToStatus   Status
	ActorRole  types.Role
	ActorID    *types.ID
	DriverID   *types.ID
	CabID      *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the booking state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:  {StatusAssigned, StatusCancelled},
	StatusAssigned: {StatusEnRoute, StatusCancelled},
	StatusEnRoute:  {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Effect is what a transition does to the booking's driver and cab.
type Effect int

const (
	EffectNone    Effect = iota
	EffectClaim          // available -> on_trip, fails if either is not available
	EffectHold           // set on_trip unconditionally (idempotent)
	EffectRelease        // -> available
)

// Transition is applied by the store as one atomic unit: booking status
// compare-and-set, driver/cab effect, timestamps and the audit event.
type Transition struct {
	BookingID types.ID
	From      Status
	To        Status
	Version   int
	DriverID  types.ID
	CabID     types.ID
	Effect    Effect
	FareFinal *types.Money
	Reason    string
	ActorRole types.Role
	ActorID   types.ID
	At        time.Time
}

// Filter selects bookings for listing. Zero values mean "any".
type Filter struct {
	CustomerID types.ID
	DriverID   types.ID
	Statuses   []Status
	// NewestCompletedFirst orders by completed_at instead of created_at.
	NewestCompletedFirst bool
	Limit                int
}

func (f Filter) MatchStatus(s Status) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, v := range f.Statuses {
		if v == s {
			return true
		}
	}
	return false
}
