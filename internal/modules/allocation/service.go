// README: Allocation engine pairs pending bookings with a driver and a cab.
package allocation

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"cabdispatch/internal/apperr"
	"cabdispatch/internal/config"
	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/types"
)

var (
	ErrNoCandidates     = apperr.New(apperr.KindResourceUnavailable, "no available driver and cab")
	ErrStrategyDisabled = apperr.New(apperr.KindForbidden, "automatic assignment is disabled")
)

// Bookings is the part of booking.Store the engine needs.
type Bookings interface {
	GetBooking(ctx context.Context, id types.ID) (*booking.Booking, error)
	ApplyTransition(ctx context.Context, t booking.Transition) (*booking.Booking, error)
}

type Engine struct {
	bookings Bookings
	fleet    FleetReader
	index    Index
	cfg      config.AllocationConfig
	log      *slog.Logger
	now      func() time.Time
}

func NewEngine(bookings Bookings, fleet FleetReader, index Index, cfg config.AllocationConfig, log *slog.Logger) *Engine {
	if index == nil {
		index = NewStoreIndex(fleet)
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.CandidatePool <= 0 {
		cfg.CandidatePool = defaultCandidatePool
	}
	return &Engine{bookings: bookings, fleet: fleet, index: index, cfg: cfg, log: log, now: time.Now}
}

// Assign commits the caller's pick. Pre-reads give precise errors; the store
// re-checks availability atomically, so a lost race still surfaces as
// ResourceUnavailable. There are no retries.
func (e *Engine) Assign(ctx context.Context, cmd booking.AssignCommand) (*booking.Booking, error) {
	b, err := e.bookings.GetBooking(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if !booking.CanTransition(b.Status, booking.StatusAssigned) {
		return nil, booking.ErrInvalidState
	}
	d, err := e.fleet.GetDriver(ctx, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if !assignable(d) {
		return nil, booking.ErrDriverUnavailable
	}
	c, err := e.fleet.GetCab(ctx, cmd.CabID)
	if err != nil {
		return nil, err
	}
	if c.Status != fleet.StatusAvailable {
		return nil, booking.ErrCabUnavailable
	}
	return e.commit(ctx, b, Candidate{DriverID: d.ID, CabID: c.ID, Rating: d.Rating}, cmd.Caller)
}

// AutoAssign picks the best-rated available driver, preferring the cab that
// driver staffs and falling back to the first available unstaffed cab.
func (e *Engine) AutoAssign(ctx context.Context, cmd booking.AutoAssignCommand) (*booking.Booking, error) {
	if !e.cfg.AutoAssignEnabled() {
		return nil, ErrStrategyDisabled
	}
	b, err := e.bookings.GetBooking(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if !booking.CanTransition(b.Status, booking.StatusAssigned) {
		return nil, booking.ErrInvalidState
	}

	candidates, err := e.candidates(ctx)
	if err != nil {
		return nil, err
	}
	attempts := 0
	for _, cand := range candidates {
		if attempts == maxCommitAttempts {
			break
		}
		attempts++
		out, err := e.commit(ctx, b, cand, cmd.Caller)
		if err == nil {
			return out, nil
		}
		if !booking.IsUnavailable(err) && !errors.Is(err, fleet.ErrDriverNotFound) && !errors.Is(err, fleet.ErrCabNotFound) {
			return nil, err
		}
		e.log.InfoContext(ctx, "skipping stale candidate",
			"booking_id", b.ID, "driver_id", cand.DriverID, "cab_id", cand.CabID, "err", err)
		e.forget(ctx, cand.DriverID, cand.CabID)
	}
	return nil, ErrNoCandidates
}

// candidates builds driver/cab pairs from the index, re-reading each entry
// from the fleet store and dropping what is no longer available.
func (e *Engine) candidates(ctx context.Context) ([]Candidate, error) {
	driverIDs, err := e.index.AvailableDrivers(ctx, e.cfg.CandidatePool)
	if err != nil {
		return nil, err
	}
	cabIDs, err := e.index.AvailableCabs(ctx, e.cfg.CandidatePool)
	if err != nil {
		return nil, err
	}

	var drivers []*fleet.Driver
	for _, id := range driverIDs {
		d, err := e.fleet.GetDriver(ctx, id)
		if errors.Is(err, fleet.ErrDriverNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if assignable(d) {
			drivers = append(drivers, d)
		}
	}
	sort.SliceStable(drivers, func(i, j int) bool {
		if drivers[i].Rating != drivers[j].Rating {
			return drivers[i].Rating > drivers[j].Rating
		}
		return drivers[i].ID < drivers[j].ID
	})

	var spare []*fleet.Cab
	for _, id := range cabIDs {
		c, err := e.fleet.GetCab(ctx, id)
		if errors.Is(err, fleet.ErrCabNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if c.Status == fleet.StatusAvailable && c.DriverID == nil {
			spare = append(spare, c)
		}
	}
	sort.Slice(spare, func(i, j int) bool { return spare[i].ID < spare[j].ID })

	used := map[types.ID]bool{}
	var out []Candidate
	for _, d := range drivers {
		cabID, ok := e.cabFor(ctx, d, spare, used)
		if !ok {
			continue
		}
		used[cabID] = true
		out = append(out, Candidate{DriverID: d.ID, CabID: cabID, Rating: d.Rating})
	}
	return out, nil
}

func (e *Engine) cabFor(ctx context.Context, d *fleet.Driver, spare []*fleet.Cab, used map[types.ID]bool) (types.ID, bool) {
	if d.CabID != nil && !used[*d.CabID] {
		c, err := e.fleet.GetCab(ctx, *d.CabID)
		if err == nil && c.Status == fleet.StatusAvailable {
			return c.ID, true
		}
	}
	for _, c := range spare {
		if !used[c.ID] {
			return c.ID, true
		}
	}
	return 0, false
}

func (e *Engine) commit(ctx context.Context, b *booking.Booking, cand Candidate, caller types.Caller) (*booking.Booking, error) {
	out, err := e.bookings.ApplyTransition(ctx, booking.Transition{
		BookingID: b.ID,
		From:      b.Status,
		To:        booking.StatusAssigned,
		Version:   b.StatusVersion,
		DriverID:  cand.DriverID,
		CabID:     cand.CabID,
		Effect:    booking.EffectClaim,
		ActorRole: caller.Role,
		ActorID:   caller.UserID,
		At:        e.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	e.forget(ctx, cand.DriverID, cand.CabID)
	return out, nil
}

func (e *Engine) forget(ctx context.Context, driverID, cabID types.ID) {
	if err := e.index.Remove(ctx, driverID, cabID); err != nil {
		e.log.WarnContext(ctx, "allocation index remove", "driver_id", driverID, "cab_id", cabID, "err", err)
	}
}

// Released puts a freed driver and cab back into the index.
func (e *Engine) Released(ctx context.Context, driverID, cabID types.ID) {
	if d, err := e.fleet.GetDriver(ctx, driverID); err == nil {
		if err := e.index.PutDriver(ctx, d); err != nil {
			e.log.WarnContext(ctx, "allocation index put driver", "driver_id", driverID, "err", err)
		}
	}
	if c, err := e.fleet.GetCab(ctx, cabID); err == nil {
		if err := e.index.PutCab(ctx, c); err != nil {
			e.log.WarnContext(ctx, "allocation index put cab", "cab_id", cabID, "err", err)
		}
	}
}

// Sync rebuilds the index from the fleet store.
func (e *Engine) Sync(ctx context.Context) error {
	drivers, err := e.fleet.ListDrivers(ctx, fleet.DriverFilter{Status: fleet.StatusAvailable, ActiveOnly: true})
	if err != nil {
		return err
	}
	cabs, err := e.fleet.ListCabs(ctx, fleet.CabFilter{Status: fleet.StatusAvailable})
	if err != nil {
		return err
	}
	return e.index.Rebuild(ctx, drivers, cabs)
}

// RunIndexSync rebuilds the index on a ticker until ctx is cancelled.
func (e *Engine) RunIndexSync(ctx context.Context) {
	tick := time.Duration(e.cfg.IndexSyncSeconds) * time.Second
	if tick <= 0 {
		tick = defaultSyncInterval
	}
	if err := e.Sync(ctx); err != nil {
		e.log.WarnContext(ctx, "allocation index sync", "err", err)
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Sync(ctx); err != nil {
				e.log.WarnContext(ctx, "allocation index sync", "err", err)
			}
		}
	}
}
