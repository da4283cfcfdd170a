// README: Booking lifecycle controller; enforces the state machine and caller guards.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"cabdispatch/internal/apperr"
	"cabdispatch/internal/types"
)

// Store persists bookings. ApplyTransition must apply the booking update, the
// driver/cab effect and the audit event atomically, or nothing at all.
type Store interface {
	CreateBooking(ctx context.Context, b *Booking, actor types.Caller) error
	GetBooking(ctx context.Context, id types.ID) (*Booking, error)
	ListBookings(ctx context.Context, f Filter) ([]*Booking, error)
	ApplyTransition(ctx context.Context, t Transition) (*Booking, error)
	ListEvents(ctx context.Context, bookingID types.ID) ([]Event, error)
}

type Estimator interface {
	Estimate(distanceKm float64) types.Money
}

// Customers confirms that a user may own bookings.
type Customers interface {
	ActiveCustomer(ctx context.Context, userID types.ID) error
}

// Drivers resolves a driver user to its driver profile id.
type Drivers interface {
	DriverIDForUser(ctx context.Context, userID types.ID) (types.ID, error)
}

type AssignCommand struct {
	BookingID types.ID
	DriverID  types.ID
	CabID     types.ID
	Caller    types.Caller
}

type AutoAssignCommand struct {
	BookingID types.ID
	Caller    types.Caller
}

// Allocator pairs pending bookings with drivers and cabs.
type Allocator interface {
	Assign(ctx context.Context, cmd AssignCommand) (*Booking, error)
	AutoAssign(ctx context.Context, cmd AutoAssignCommand) (*Booking, error)
	Released(ctx context.Context, driverID, cabID types.ID)
}

// Publisher receives committed transitions. Failures are logged, never returned.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

var (
	ErrNotFound          = apperr.New(apperr.KindNotFound, "booking not found")
	ErrInvalidState      = apperr.New(apperr.KindInvalidTransition, "invalid state transition")
	ErrConflict          = apperr.New(apperr.KindInvalidTransition, "booking state conflict")
	ErrForbidden         = apperr.New(apperr.KindForbidden, "caller may not perform this action")
	ErrDriverUnavailable = apperr.New(apperr.KindResourceUnavailable, "driver not available")
	ErrCabUnavailable    = apperr.New(apperr.KindResourceUnavailable, "cab not available")
)

type Deps struct {
	Store     Store
	Estimator Estimator
	Allocator Allocator
	Customers Customers
	Drivers   Drivers
	Publisher Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

type Service struct {
	store     Store
	estimator Estimator
	allocator Allocator
	customers Customers
	drivers   Drivers
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		store:     d.Store,
		estimator: d.Estimator,
		allocator: d.Allocator,
		customers: d.Customers,
		drivers:   d.Drivers,
		publisher: d.Publisher,
		log:       d.Logger,
		now:       d.Now,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type CreateCommand struct {
	Caller types.Caller
	// CustomerID is required when an admin books on a customer's behalf and
	// must match the caller otherwise.
	CustomerID  types.ID
	Pickup      string
	Dropoff     string
	DistanceKm  float64
	ScheduledAt *time.Time
}

type CancelCommand struct {
	BookingID types.ID
	Caller    types.Caller
	Reason    string
}

type StartCommand struct {
	BookingID types.ID
	Caller    types.Caller
}

type CompleteCommand struct {
	BookingID types.ID
	Caller    types.Caller
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Booking, error) {
	customerID, err := s.bookingOwner(cmd)
	if err != nil {
		return nil, err
	}
	pickup := strings.TrimSpace(cmd.Pickup)
	dropoff := strings.TrimSpace(cmd.Dropoff)
	if pickup == "" {
		return nil, apperr.Invalid("pickup", "pickup address is required")
	}
	if dropoff == "" {
		return nil, apperr.Invalid("dropoff", "dropoff address is required")
	}
	if math.IsNaN(cmd.DistanceKm) || math.IsInf(cmd.DistanceKm, 0) {
		return nil, apperr.Invalid("distance_km", "distance must be a finite number")
	}
	if err := s.customers.ActiveCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	b := &Booking{
		CustomerID:   customerID,
		Pickup:       pickup,
		Dropoff:      dropoff,
		ScheduledAt:  cmd.ScheduledAt,
		DistanceKm:   cmd.DistanceKm,
		FareEstimate: s.estimator.Estimate(cmd.DistanceKm),
		Status:       StatusPending,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateBooking(ctx, b, cmd.Caller); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "booking created",
		"booking_id", b.ID, "customer_id", b.CustomerID, "fare_estimate", b.FareEstimate.Amount)
	s.publish(ctx, Event{
		BookingID:  b.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorRole:  cmd.Caller.Role,
		ActorID:    types.IDPtr(cmd.Caller.UserID),
		CreatedAt:  b.CreatedAt,
	})
	return b, nil
}

func (s *Service) bookingOwner(cmd CreateCommand) (types.ID, error) {
	switch cmd.Caller.Role {
	case types.RoleCustomer:
		if cmd.CustomerID.Valid() && cmd.CustomerID != cmd.Caller.UserID {
			return 0, ErrForbidden
		}
		return cmd.Caller.UserID, nil
	case types.RoleAdmin:
		if !cmd.CustomerID.Valid() {
			return 0, apperr.Invalid("customer_id", "customer id is required")
		}
		return cmd.CustomerID, nil
	default:
		return 0, ErrForbidden
	}
}

func (s *Service) Assign(ctx context.Context, cmd AssignCommand) (*Booking, error) {
	if !cmd.Caller.IsAdmin() {
		return nil, ErrForbidden
	}
	if !cmd.DriverID.Valid() {
		return nil, apperr.Invalid("driver_id", "driver id is required")
	}
	if !cmd.CabID.Valid() {
		return nil, apperr.Invalid("cab_id", "cab id is required")
	}
	b, err := s.allocator.Assign(ctx, cmd)
	if err != nil {
		return nil, err
	}
	s.committed(ctx, StatusPending, b, cmd.Caller)
	return b, nil
}

func (s *Service) AutoAssign(ctx context.Context, cmd AutoAssignCommand) (*Booking, error) {
	if !cmd.Caller.IsAdmin() {
		return nil, ErrForbidden
	}
	b, err := s.allocator.AutoAssign(ctx, cmd)
	if err != nil {
		return nil, err
	}
	s.committed(ctx, StatusPending, b, cmd.Caller)
	return b, nil
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Booking, error) {
	b, err := s.store.GetBooking(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if !cmd.Caller.IsAdmin() && !(cmd.Caller.Role == types.RoleCustomer && b.CustomerID == cmd.Caller.UserID) {
		return nil, ErrForbidden
	}
	if !CanTransition(b.Status, StatusCancelled) {
		return nil, ErrInvalidState
	}

	t := s.transition(b, StatusCancelled, cmd.Caller)
	t.Reason = strings.TrimSpace(cmd.Reason)
	if b.Status == StatusAssigned {
		t.Effect = EffectRelease
	}
	updated, err := s.store.ApplyTransition(ctx, t)
	if err != nil {
		return nil, err
	}
	if t.Effect == EffectRelease {
		s.allocator.Released(ctx, t.DriverID, t.CabID)
	}
	s.committed(ctx, b.Status, updated, cmd.Caller)
	return updated, nil
}

func (s *Service) Start(ctx context.Context, cmd StartCommand) (*Booking, error) {
	b, err := s.driverBooking(ctx, cmd.Caller, cmd.BookingID, StatusEnRoute)
	if err != nil {
		return nil, err
	}
	t := s.transition(b, StatusEnRoute, cmd.Caller)
	t.Effect = EffectHold
	updated, err := s.store.ApplyTransition(ctx, t)
	if err != nil {
		return nil, err
	}
	s.committed(ctx, b.Status, updated, cmd.Caller)
	return updated, nil
}

// Complete closes an en-route trip. The final fare is the estimate captured at
// creation; there is no re-metering.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Booking, error) {
	b, err := s.driverBooking(ctx, cmd.Caller, cmd.BookingID, StatusCompleted)
	if err != nil {
		return nil, err
	}
	fareFinal := b.FareEstimate
	t := s.transition(b, StatusCompleted, cmd.Caller)
	t.Effect = EffectRelease
	t.FareFinal = &fareFinal
	updated, err := s.store.ApplyTransition(ctx, t)
	if err != nil {
		return nil, err
	}
	s.allocator.Released(ctx, t.DriverID, t.CabID)
	s.committed(ctx, b.Status, updated, cmd.Caller)
	return updated, nil
}

// driverBooking loads a booking for a driver-initiated transition. The state
// check runs before the ownership check so that an illegal event is reported
// as such even on a booking that has no driver yet.
func (s *Service) driverBooking(ctx context.Context, caller types.Caller, id types.ID, to Status) (*Booking, error) {
	if caller.Role != types.RoleDriver {
		return nil, ErrForbidden
	}
	driverID, err := s.drivers.DriverIDForUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, to) {
		return nil, ErrInvalidState
	}
	if b.DriverID == nil || *b.DriverID != driverID {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *Service) transition(b *Booking, to Status, caller types.Caller) Transition {
	t := Transition{
		BookingID: b.ID,
		From:      b.Status,
		To:        to,
		Version:   b.StatusVersion,
		ActorRole: caller.Role,
		ActorID:   caller.UserID,
		At:        s.now().UTC(),
	}
	if b.DriverID != nil {
		t.DriverID = *b.DriverID
	}
	if b.CabID != nil {
		t.CabID = *b.CabID
	}
	return t
}

func (s *Service) committed(ctx context.Context, from Status, b *Booking, caller types.Caller) {
	s.log.InfoContext(ctx, "booking transition",
		"booking_id", b.ID, "from", from, "to", b.Status, "actor_role", caller.Role, "actor_id", caller.UserID)
	s.publish(ctx, Event{
		BookingID:  b.ID,
		FromStatus: from,
		ToStatus:   b.Status,
		ActorRole:  caller.Role,
		ActorID:    types.IDPtr(caller.UserID),
		DriverID:   b.DriverID,
		CabID:      b.CabID,
		CreatedAt:  s.now().UTC(),
	})
}

func (s *Service) publish(ctx context.Context, e Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.WarnContext(ctx, "publish booking event", "booking_id", e.BookingID, "to", e.ToStatus, "err", err)
	}
}

// Get returns a booking visible to the caller: admins see all, customers their
// own, drivers the bookings assigned to them.
func (s *Service) Get(ctx context.Context, caller types.Caller, id types.ID) (*Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	switch caller.Role {
	case types.RoleAdmin:
		return b, nil
	case types.RoleCustomer:
		if b.CustomerID == caller.UserID {
			return b, nil
		}
	case types.RoleDriver:
		driverID, err := s.drivers.DriverIDForUser(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		if b.DriverID != nil && *b.DriverID == driverID {
			return b, nil
		}
	}
	return nil, ErrForbidden
}

// ListForCustomer returns a customer's bookings. Customers may omit
// customerID; admins must name one (use List for everything).
func (s *Service) ListForCustomer(ctx context.Context, caller types.Caller, customerID types.ID) ([]*Booking, error) {
	switch caller.Role {
	case types.RoleAdmin:
		if !customerID.Valid() {
			return nil, apperr.Invalid("customer_id", "customer id is required")
		}
	case types.RoleCustomer:
		if customerID.Valid() && customerID != caller.UserID {
			return nil, ErrForbidden
		}
		customerID = caller.UserID
	default:
		return nil, ErrForbidden
	}
	return s.store.ListBookings(ctx, Filter{CustomerID: customerID})
}

// ListActiveForDriver returns assigned and en-route trips. A zero driverID
// means the calling driver's own profile.
func (s *Service) ListActiveForDriver(ctx context.Context, caller types.Caller, driverID types.ID) ([]*Booking, error) {
	id, err := s.driverScope(ctx, caller, driverID)
	if err != nil {
		return nil, err
	}
	return s.store.ListBookings(ctx, Filter{DriverID: id, Statuses: []Status{StatusAssigned, StatusEnRoute}})
}

func (s *Service) ListHistoryForDriver(ctx context.Context, caller types.Caller, driverID types.ID) ([]*Booking, error) {
	id, err := s.driverScope(ctx, caller, driverID)
	if err != nil {
		return nil, err
	}
	return s.store.ListBookings(ctx, Filter{
		DriverID:             id,
		Statuses:             []Status{StatusCompleted},
		NewestCompletedFirst: true,
	})
}

func (s *Service) driverScope(ctx context.Context, caller types.Caller, driverID types.ID) (types.ID, error) {
	switch caller.Role {
	case types.RoleAdmin:
		if !driverID.Valid() {
			return 0, apperr.Invalid("driver_id", "driver id is required")
		}
		return driverID, nil
	case types.RoleDriver:
		own, err := s.drivers.DriverIDForUser(ctx, caller.UserID)
		if err != nil {
			return 0, err
		}
		if driverID.Valid() && driverID != own {
			return 0, ErrForbidden
		}
		return own, nil
	default:
		return 0, ErrForbidden
	}
}

func (s *Service) List(ctx context.Context, caller types.Caller, f Filter) ([]*Booking, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, apperr.Invalid("status", fmt.Sprintf("unknown status %q", st))
		}
	}
	return s.store.ListBookings(ctx, f)
}

func (s *Service) Events(ctx context.Context, caller types.Caller, id types.ID) ([]Event, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	if _, err := s.store.GetBooking(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, id)
}

// IsUnavailable reports whether err means a driver or cab was already taken.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDriverUnavailable) || errors.Is(err, ErrCabUnavailable)
}
