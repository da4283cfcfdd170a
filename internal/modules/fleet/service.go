// README: Fleet service manages cabs, driver staffing links and ratings.
package fleet

import (
	"context"
	"errors"
	"strings"

	"cabdispatch/internal/apperr"
	"cabdispatch/internal/types"
)

type Store interface {
	GetDriver(ctx context.Context, id types.ID) (*Driver, error)
	GetDriverByUser(ctx context.Context, userID types.ID) (*Driver, error)
	ListDrivers(ctx context.Context, f DriverFilter) ([]*Driver, error)
	UpdateDriverRating(ctx context.Context, id types.ID, rating float64) error
	CreateCab(ctx context.Context, c *Cab) error
	GetCab(ctx context.Context, id types.ID) (*Cab, error)
	ListCabs(ctx context.Context, f CabFilter) ([]*Cab, error)
	// LinkCab sets or clears (driverID == nil) the cab's staffing driver.
	LinkCab(ctx context.Context, cabID types.ID, driverID *types.ID) error
}

var (
	ErrDriverNotFound = apperr.New(apperr.KindNotFound, "driver not found")
	ErrCabNotFound    = apperr.New(apperr.KindNotFound, "cab not found")
	ErrNotADriver     = apperr.New(apperr.KindForbidden, "caller has no driver profile")
	ErrForbidden      = apperr.New(apperr.KindForbidden, "fleet management requires admin")
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type CreateCabCommand struct {
	Caller         types.Caller
	RegistrationNo string
	Model          string
	Capacity       int
	DriverID       *types.ID
}

func (s *Service) CreateCab(ctx context.Context, cmd CreateCabCommand) (*Cab, error) {
	if !cmd.Caller.IsAdmin() {
		return nil, ErrForbidden
	}
	reg := strings.ToUpper(strings.TrimSpace(cmd.RegistrationNo))
	model := strings.TrimSpace(cmd.Model)
	if reg == "" {
		return nil, apperr.Invalid("registration_no", "registration number is required")
	}
	if model == "" {
		return nil, apperr.Invalid("model", "model is required")
	}
	if cmd.Capacity <= 0 {
		return nil, apperr.Invalid("capacity", "capacity must be positive")
	}
	if cmd.DriverID != nil {
		if _, err := s.store.GetDriver(ctx, *cmd.DriverID); err != nil {
			return nil, err
		}
	}
	c := &Cab{
		RegistrationNo: reg,
		Model:          model,
		Capacity:       cmd.Capacity,
		Status:         StatusAvailable,
		DriverID:       cmd.DriverID,
	}
	if err := s.store.CreateCab(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// LinkCab attaches a cab to a driver for staffing purposes; a nil driverID
// detaches it. This link is independent of any booking.
func (s *Service) LinkCab(ctx context.Context, caller types.Caller, cabID types.ID, driverID *types.ID) (*Cab, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	if _, err := s.store.GetCab(ctx, cabID); err != nil {
		return nil, err
	}
	if driverID != nil {
		if _, err := s.store.GetDriver(ctx, *driverID); err != nil {
			return nil, err
		}
	}
	if err := s.store.LinkCab(ctx, cabID, driverID); err != nil {
		return nil, err
	}
	return s.store.GetCab(ctx, cabID)
}

func (s *Service) RateDriver(ctx context.Context, caller types.Caller, driverID types.ID, rating float64) (*Driver, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	if !(rating >= 0 && rating <= 5) {
		return nil, apperr.Invalid("rating", "rating must be between 0 and 5")
	}
	if err := s.store.UpdateDriverRating(ctx, driverID, rating); err != nil {
		return nil, err
	}
	return s.store.GetDriver(ctx, driverID)
}

func (s *Service) ListDrivers(ctx context.Context, caller types.Caller, f DriverFilter) ([]*Driver, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Invalid("status", "unknown driver status")
	}
	return s.store.ListDrivers(ctx, f)
}

func (s *Service) ListCabs(ctx context.Context, caller types.Caller, f CabFilter) ([]*Cab, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Invalid("status", "unknown cab status")
	}
	return s.store.ListCabs(ctx, f)
}

// DriverForUser returns the caller's own driver profile.
func (s *Service) DriverForUser(ctx context.Context, caller types.Caller) (*Driver, error) {
	if caller.Role != types.RoleDriver {
		return nil, ErrNotADriver
	}
	d, err := s.store.GetDriverByUser(ctx, caller.UserID)
	if errors.Is(err, ErrDriverNotFound) {
		return nil, ErrNotADriver
	}
	return d, err
}

// DriverIDForUser resolves a user to its driver profile id.
func (s *Service) DriverIDForUser(ctx context.Context, userID types.ID) (types.ID, error) {
	d, err := s.store.GetDriverByUser(ctx, userID)
	if errors.Is(err, ErrDriverNotFound) {
		return 0, ErrNotADriver
	}
	if err != nil {
		return 0, err
	}
	return d.ID, nil
}
