package memory

import (
	"context"
	"sort"

	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/modules/report"
	"cabdispatch/internal/types"
)

func cloneBooking(b *booking.Booking) *booking.Booking {
	cp := *b
	cp.DriverID = copyID(b.DriverID)
	cp.CabID = copyID(b.CabID)
	cp.ScheduledAt = copyTime(b.ScheduledAt)
	cp.AssignedAt = copyTime(b.AssignedAt)
	cp.StartedAt = copyTime(b.StartedAt)
	cp.CompletedAt = copyTime(b.CompletedAt)
	cp.CancelledAt = copyTime(b.CancelledAt)
	if b.FareFinal != nil {
		f := *b.FareFinal
		cp.FareFinal = &f
	}
	if b.CancelReason != nil {
		r := *b.CancelReason
		cp.CancelReason = &r
	}
	return &cp
}

func (db *DB) CreateBooking(ctx context.Context, b *booking.Booking, actor types.Caller) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	b.ID = db.nextID("bookings")
	db.bookings[b.ID] = cloneBooking(b)
	db.appendEvent(booking.Event{
		BookingID:  b.ID,
		FromStatus: booking.StatusNone,
		ToStatus:   b.Status,
		ActorRole:  actor.Role,
		ActorID:    optionalID(actor.UserID),
		CreatedAt:  b.CreatedAt,
	})
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id types.ID) (*booking.Booking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	b, ok := db.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (db *DB) ListBookings(ctx context.Context, f booking.Filter) ([]*booking.Booking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []*booking.Booking
	for _, b := range db.bookings {
		if f.CustomerID.Valid() && b.CustomerID != f.CustomerID {
			continue
		}
		if f.DriverID.Valid() && (b.DriverID == nil || *b.DriverID != f.DriverID) {
			continue
		}
		if !f.MatchStatus(b.Status) {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool {
		a, c := out[i], out[j]
		if f.NewestCompletedFirst && a.CompletedAt != nil && c.CompletedAt != nil && !a.CompletedAt.Equal(*c.CompletedAt) {
			return a.CompletedAt.After(*c.CompletedAt)
		}
		if !f.NewestCompletedFirst && !a.CreatedAt.Equal(c.CreatedAt) {
			return a.CreatedAt.After(c.CreatedAt)
		}
		return a.ID > c.ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ApplyTransition validates everything before mutating anything, so a failed
// transition leaves no trace.
func (db *DB) ApplyTransition(ctx context.Context, t booking.Transition) (*booking.Booking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	b, ok := db.bookings[t.BookingID]
	if !ok {
		return nil, booking.ErrNotFound
	}
	if b.Status != t.From || b.StatusVersion != t.Version {
		return nil, booking.ErrConflict
	}

	var (
		driver *fleet.Driver
		cab    *fleet.Cab
	)
	if t.DriverID.Valid() {
		driver = db.drivers[t.DriverID]
	}
	if t.CabID.Valid() {
		cab = db.cabs[t.CabID]
	}
	if t.Effect == booking.EffectClaim {
		if driver == nil {
			return nil, fleet.ErrDriverNotFound
		}
		if cab == nil {
			return nil, fleet.ErrCabNotFound
		}
		if driver.Status != fleet.StatusAvailable || !db.userActive(driver.UserID) || db.activeFor(func(x *booking.Booking) bool {
			return x.DriverID != nil && *x.DriverID == driver.ID
		}) {
			return nil, booking.ErrDriverUnavailable
		}
		if cab.Status != fleet.StatusAvailable || db.activeFor(func(x *booking.Booking) bool {
			return x.CabID != nil && *x.CabID == cab.ID
		}) {
			return nil, booking.ErrCabUnavailable
		}
	}

	switch t.Effect {
	case booking.EffectClaim, booking.EffectHold:
		setStatus(driver, cab, fleet.StatusOnTrip)
	case booking.EffectRelease:
		setStatus(driver, cab, fleet.StatusAvailable)
	}

	b.Status = t.To
	b.StatusVersion++
	at := t.At
	switch t.To {
	case booking.StatusAssigned:
		b.DriverID = types.IDPtr(t.DriverID)
		b.CabID = types.IDPtr(t.CabID)
		b.AssignedAt = &at
	case booking.StatusEnRoute:
		b.StartedAt = &at
	case booking.StatusCompleted:
		b.CompletedAt = &at
	case booking.StatusCancelled:
		b.CancelledAt = &at
		if t.Reason != "" {
			r := t.Reason
			b.CancelReason = &r
		}
	}
	if t.FareFinal != nil {
		f := *t.FareFinal
		b.FareFinal = &f
	}

	e := booking.Event{
		BookingID:  b.ID,
		FromStatus: t.From,
		ToStatus:   t.To,
		ActorRole:  t.ActorRole,
		ActorID:    optionalID(t.ActorID),
		DriverID:   optionalID(t.DriverID),
		CabID:      optionalID(t.CabID),
		CreatedAt:  t.At,
	}
	db.appendEvent(e)
	return cloneBooking(b), nil
}

func setStatus(d *fleet.Driver, c *fleet.Cab, st fleet.Status) {
	if d != nil {
		d.Status = st
	}
	if c != nil {
		c.Status = st
	}
}

func (db *DB) userActive(id types.ID) bool {
	u, ok := db.users[id]
	return ok && u.Active
}

func (db *DB) activeFor(match func(*booking.Booking) bool) bool {
	for _, b := range db.bookings {
		if b.Status.Active() && match(b) {
			return true
		}
	}
	return false
}

func (db *DB) appendEvent(e booking.Event) {
	db.eventSeq++
	e.ID = db.eventSeq
	db.events[e.BookingID] = append(db.events[e.BookingID], e)
}

func (db *DB) ListEvents(ctx context.Context, bookingID types.ID) ([]booking.Event, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	src := db.events[bookingID]
	out := make([]booking.Event, len(src))
	copy(out, src)
	return out, nil
}

func (db *DB) Snapshot(ctx context.Context, scope report.Scope) (report.Snapshot, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	snap := report.Snapshot{ByStatus: map[booking.Status]int{}}
	for _, b := range db.bookings {
		if scope.CustomerID.Valid() && b.CustomerID != scope.CustomerID {
			continue
		}
		if scope.DriverID.Valid() && (b.DriverID == nil || *b.DriverID != scope.DriverID) {
			continue
		}
		snap.ByStatus[b.Status]++
		if b.Status == booking.StatusCompleted && b.FareFinal != nil {
			snap.Revenue += b.FareFinal.Amount
		}
	}
	if !scope.Global() {
		return snap, nil
	}
	for _, d := range db.drivers {
		snap.Drivers.Total++
		if d.Status == fleet.StatusAvailable {
			snap.Drivers.Available++
		}
	}
	for _, c := range db.cabs {
		snap.Cabs.Total++
		if c.Status == fleet.StatusAvailable {
			snap.Cabs.Available++
		}
	}
	return snap, nil
}

func optionalID(id types.ID) *types.ID {
	if !id.Valid() {
		return nil
	}
	return types.IDPtr(id)
}
