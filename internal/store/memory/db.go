// Package memory is an in-process store implementing every module's Store
// interface behind one mutex. It backs tests and CAB_STORE=memory.
package memory

import (
	"sync"
	"time"

	"cabdispatch/internal/modules/account"
	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/modules/report"
	"cabdispatch/internal/types"
)

var (
	_ account.Store = (*DB)(nil)
	_ fleet.Store   = (*DB)(nil)
	_ booking.Store = (*DB)(nil)
	_ report.Store  = (*DB)(nil)
)

type DB struct {
	mu sync.Mutex

	seq      map[string]types.ID
	users    map[types.ID]*account.User
	drivers  map[types.ID]*fleet.Driver
	cabs     map[types.ID]*fleet.Cab
	bookings map[types.ID]*booking.Booking
	events   map[types.ID][]booking.Event
	eventSeq int64

	now func() time.Time
}

func New() *DB {
	return &DB{
		seq:      map[string]types.ID{},
		users:    map[types.ID]*account.User{},
		drivers:  map[types.ID]*fleet.Driver{},
		cabs:     map[types.ID]*fleet.Cab{},
		bookings: map[types.ID]*booking.Booking{},
		events:   map[types.ID][]booking.Event{},
		now:      time.Now,
	}
}

func (db *DB) nextID(table string) types.ID {
	db.seq[table]++
	return db.seq[table]
}

func copyID(p *types.ID) *types.ID {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
