package memory

import (
	"context"
	"sort"

	"cabdispatch/internal/apperr"
	"cabdispatch/internal/modules/account"
	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/types"
)

func (db *DB) CreateUser(ctx context.Context, u *account.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkUserUnique(u); err != nil {
		return err
	}
	db.insertUser(u)
	return nil
}

func (db *DB) CreateDriverAccount(ctx context.Context, u *account.User, p account.DriverProfile) (types.ID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkUserUnique(u); err != nil {
		return 0, err
	}
	for _, d := range db.drivers {
		if d.LicenseNo == p.LicenseNo {
			return 0, apperr.Duplicate("license_no")
		}
	}
	db.insertUser(u)
	d := &fleet.Driver{
		ID:        db.nextID("drivers"),
		UserID:    u.ID,
		LicenseNo: p.LicenseNo,
		Rating:    p.Rating,
		Status:    fleet.StatusAvailable,
		CreatedAt: db.now().UTC(),
	}
	db.drivers[d.ID] = d
	return d.ID, nil
}

func (db *DB) checkUserUnique(u *account.User) error {
	for _, other := range db.users {
		if other.Username == u.Username {
			return apperr.Duplicate("username")
		}
		if other.Email == u.Email {
			return apperr.Duplicate("email")
		}
	}
	return nil
}

func (db *DB) insertUser(u *account.User) {
	u.ID = db.nextID("users")
	u.CreatedAt = db.now().UTC()
	cp := *u
	db.users[u.ID] = &cp
}

func (db *DB) GetUser(ctx context.Context, id types.ID) (*account.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	u, ok := db.users[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*account.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, u := range db.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, account.ErrNotFound
}

func (db *DB) ListUsers(ctx context.Context, f account.UserFilter) ([]*account.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []*account.User
	for _, u := range db.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (db *DB) SetUserActive(ctx context.Context, id types.ID, active bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	u, ok := db.users[id]
	if !ok {
		return account.ErrNotFound
	}
	u.Active = active
	return nil
}
