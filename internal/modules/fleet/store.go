// README: Fleet store backed by PostgreSQL.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cabdispatch/internal/infra"
	"cabdispatch/internal/types"
)

var uniqueFields = map[string]string{
	"cabs_registration_no_key": "registration_no",
	"cabs_driver_id_key":       "driver_id",
	"drivers_license_no_key":   "license_no",
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const driverColumns = `
	d.id, d.user_id, d.license_no, d.rating, d.status, u.is_active, c.id, d.created_at`

const driverFrom = `
	FROM drivers d
	JOIN users u ON u.id = d.user_id
	LEFT JOIN cabs c ON c.driver_id = d.id`

func (s *PGStore) GetDriver(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT`+driverColumns+driverFrom+` WHERE d.id = $1`, int64(id))
	return scanDriver(row)
}

func (s *PGStore) GetDriverByUser(ctx context.Context, userID types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT`+driverColumns+driverFrom+` WHERE d.user_id = $1`, int64(userID))
	return scanDriver(row)
}

// ListDrivers orders by rating (best first) then id, which is also the
// candidate order for automatic assignment.
func (s *PGStore) ListDrivers(ctx context.Context, f DriverFilter) ([]*Driver, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.Query(ctx, `SELECT`+driverColumns+driverFrom+`
		WHERE ($1 = '' OR d.status = $1)
		  AND (NOT $2 OR u.is_active)
		ORDER BY d.rating DESC, d.id ASC
		LIMIT $3`,
		string(f.Status), f.ActiveOnly, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateDriverRating(ctx context.Context, id types.ID, rating float64) error {
	tag, err := s.db.Exec(ctx, `UPDATE drivers SET rating = $1 WHERE id = $2`, rating, int64(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDriverNotFound
	}
	return nil
}

func (s *PGStore) CreateCab(ctx context.Context, c *Cab) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO cabs (registration_no, model, capacity, status, driver_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		c.RegistrationNo, c.Model, c.Capacity, string(c.Status), idArg(c.DriverID),
	)
	var id int64
	if err := row.Scan(&id, &c.CreatedAt); err != nil {
		return infra.DuplicateKey(err, uniqueFields)
	}
	c.ID = types.ID(id)
	return nil
}

func (s *PGStore) GetCab(ctx context.Context, id types.ID) (*Cab, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, registration_no, model, capacity, status, driver_id, created_at
		FROM cabs WHERE id = $1`, int64(id))
	return scanCab(row)
}

func (s *PGStore) ListCabs(ctx context.Context, f CabFilter) ([]*Cab, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, registration_no, model, capacity, status, driver_id, created_at
		FROM cabs
		WHERE ($1 = '' OR status = $1)
		ORDER BY id ASC
		LIMIT $2`, string(f.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Cab
	for rows.Next() {
		c, err := scanCab(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGStore) LinkCab(ctx context.Context, cabID types.ID, driverID *types.ID) error {
	tag, err := s.db.Exec(ctx, `UPDATE cabs SET driver_id = $1 WHERE id = $2`, idArg(driverID), int64(cabID))
	if err != nil {
		return infra.DuplicateKey(err, uniqueFields)
	}
	if tag.RowsAffected() == 0 {
		return ErrCabNotFound
	}
	return nil
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var (
		d          Driver
		id, userID int64
		status     string
		cabID      *int64
		createdAt  time.Time
	)
	err := row.Scan(&id, &userID, &d.LicenseNo, &d.Rating, &status, &d.Active, &cabID, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan driver: %w", err)
	}
	d.ID = types.ID(id)
	d.UserID = types.ID(userID)
	d.Status = Status(status)
	d.CabID = toIDPtr(cabID)
	d.CreatedAt = createdAt
	return &d, nil
}

func scanCab(row pgx.Row) (*Cab, error) {
	var (
		c        Cab
		id       int64
		status   string
		driverID *int64
	)
	err := row.Scan(&id, &c.RegistrationNo, &c.Model, &c.Capacity, &status, &driverID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCabNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan cab: %w", err)
	}
	c.ID = types.ID(id)
	c.Status = Status(status)
	c.DriverID = toIDPtr(driverID)
	return &c, nil
}

func idArg(v *types.ID) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

func toIDPtr(v *int64) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}
