package memory

import (
	"context"
	"sort"

	"cabdispatch/internal/apperr"
	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/types"
)

// driverView fills the fields the SQL store joins in from users and cabs.
func (db *DB) driverView(d *fleet.Driver) *fleet.Driver {
	cp := *d
	cp.CabID = nil
	if u, ok := db.users[d.UserID]; ok {
		cp.Active = u.Active
	}
	for _, c := range db.cabs {
		if c.DriverID != nil && *c.DriverID == d.ID {
			cp.CabID = types.IDPtr(c.ID)
			break
		}
	}
	return &cp
}

func cabView(c *fleet.Cab) *fleet.Cab {
	cp := *c
	cp.DriverID = copyID(c.DriverID)
	return &cp
}

func (db *DB) GetDriver(ctx context.Context, id types.ID) (*fleet.Driver, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	d, ok := db.drivers[id]
	if !ok {
		return nil, fleet.ErrDriverNotFound
	}
	return db.driverView(d), nil
}

func (db *DB) GetDriverByUser(ctx context.Context, userID types.ID) (*fleet.Driver, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, d := range db.drivers {
		if d.UserID == userID {
			return db.driverView(d), nil
		}
	}
	return nil, fleet.ErrDriverNotFound
}

func (db *DB) ListDrivers(ctx context.Context, f fleet.DriverFilter) ([]*fleet.Driver, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []*fleet.Driver
	for _, d := range db.drivers {
		v := db.driverView(d)
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		if f.ActiveOnly && !v.Active {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (db *DB) UpdateDriverRating(ctx context.Context, id types.ID, rating float64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	d, ok := db.drivers[id]
	if !ok {
		return fleet.ErrDriverNotFound
	}
	d.Rating = rating
	return nil
}

func (db *DB) CreateCab(ctx context.Context, c *fleet.Cab) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, other := range db.cabs {
		if other.RegistrationNo == c.RegistrationNo {
			return apperr.Duplicate("registration_no")
		}
	}
	if err := db.checkStaffing(0, c.DriverID); err != nil {
		return err
	}
	c.ID = db.nextID("cabs")
	c.CreatedAt = db.now().UTC()
	db.cabs[c.ID] = cabView(c)
	return nil
}

func (db *DB) checkStaffing(cabID types.ID, driverID *types.ID) error {
	if driverID == nil {
		return nil
	}
	if _, ok := db.drivers[*driverID]; !ok {
		return fleet.ErrDriverNotFound
	}
	for _, other := range db.cabs {
		if other.ID != cabID && other.DriverID != nil && *other.DriverID == *driverID {
			return apperr.Duplicate("driver_id")
		}
	}
	return nil
}

func (db *DB) GetCab(ctx context.Context, id types.ID) (*fleet.Cab, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.cabs[id]
	if !ok {
		return nil, fleet.ErrCabNotFound
	}
	return cabView(c), nil
}

func (db *DB) ListCabs(ctx context.Context, f fleet.CabFilter) ([]*fleet.Cab, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []*fleet.Cab
	for _, c := range db.cabs {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, cabView(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (db *DB) LinkCab(ctx context.Context, cabID types.ID, driverID *types.ID) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.cabs[cabID]
	if !ok {
		return fleet.ErrCabNotFound
	}
	if err := db.checkStaffing(cabID, driverID); err != nil {
		return err
	}
	c.DriverID = copyID(driverID)
	return nil
}
