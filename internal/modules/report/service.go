// README: Reporting aggregator; every figure comes from a single store snapshot.
package report

import (
	"context"
	"math"

	"cabdispatch/internal/apperr"
	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/types"
)

type Store interface {
	Snapshot(ctx context.Context, scope Scope) (Snapshot, error)
}

type Drivers interface {
	DriverIDForUser(ctx context.Context, userID types.ID) (types.ID, error)
}

var ErrForbidden = apperr.New(apperr.KindForbidden, "caller may not view this report")

type Service struct {
	store    Store
	drivers  Drivers
	currency string
}

func NewService(store Store, drivers Drivers, currency string) *Service {
	return &Service{store: store, drivers: drivers, currency: currency}
}

func (s *Service) Summary(ctx context.Context, caller types.Caller) (*Summary, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	snap, err := s.store.Snapshot(ctx, Scope{})
	if err != nil {
		return nil, err
	}
	out := &Summary{
		ByStatus:       make(map[booking.Status]int, len(booking.AllStatuses)),
		CompletedTrips: snap.ByStatus[booking.StatusCompleted],
		TotalRevenue:   types.Money{Amount: snap.Revenue, Currency: s.currency},
		AvgFare:        types.Money{Currency: s.currency},
		Drivers:        snap.Drivers,
		Cabs:           snap.Cabs,
	}
	for _, st := range booking.AllStatuses {
		n := snap.ByStatus[st]
		out.ByStatus[st] = n
		out.TotalBookings += n
	}
	out.AvgFare.Amount = average(snap.Revenue, out.CompletedTrips)
	return out, nil
}

func (s *Service) CustomerSummary(ctx context.Context, caller types.Caller, customerID types.ID) (*PartySummary, error) {
	if !customerID.Valid() && caller.Role == types.RoleCustomer {
		customerID = caller.UserID
	}
	if !caller.IsAdmin() && !(caller.Role == types.RoleCustomer && caller.UserID == customerID) {
		return nil, ErrForbidden
	}
	if !customerID.Valid() {
		return nil, apperr.Invalid("customer_id", "customer id is required")
	}
	return s.party(ctx, Scope{CustomerID: customerID})
}

// DriverSummary reports on a driver profile. A zero driverID means the
// calling driver's own profile.
func (s *Service) DriverSummary(ctx context.Context, caller types.Caller, driverID types.ID) (*PartySummary, error) {
	switch caller.Role {
	case types.RoleAdmin:
		if !driverID.Valid() {
			return nil, apperr.Invalid("driver_id", "driver id is required")
		}
	case types.RoleDriver:
		own, err := s.drivers.DriverIDForUser(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		if driverID.Valid() && driverID != own {
			return nil, ErrForbidden
		}
		driverID = own
	default:
		return nil, ErrForbidden
	}
	return s.party(ctx, Scope{DriverID: driverID})
}

func (s *Service) party(ctx context.Context, scope Scope) (*PartySummary, error) {
	snap, err := s.store.Snapshot(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := &PartySummary{
		Pending:   snap.ByStatus[booking.StatusPending],
		Active:    snap.ByStatus[booking.StatusAssigned] + snap.ByStatus[booking.StatusEnRoute],
		Completed: snap.ByStatus[booking.StatusCompleted],
		Cancelled: snap.ByStatus[booking.StatusCancelled],
		Amount:    types.Money{Amount: snap.Revenue, Currency: s.currency},
	}
	out.Total = out.Pending + out.Active + out.Completed + out.Cancelled
	return out, nil
}

// average returns total/n rounded to the nearest minor unit, 0 when n is 0.
func average(total int64, n int) int64 {
	if n == 0 {
		return 0
	}
	return int64(math.Round(float64(total) / float64(n)))
}
