// README: Account store backed by PostgreSQL.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cabdispatch/internal/infra"
	"cabdispatch/internal/types"
)

var uniqueFields = map[string]string{
	"users_username_key":     "username",
	"users_email_key":        "email",
	"drivers_license_no_key": "license_no",
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const userColumns = `id, username, email, password_hash, first_name, last_name, phone, role, is_active, created_at`

func (s *PGStore) CreateUser(ctx context.Context, u *User) error {
	return insertUser(ctx, s.db, u)
}

func (s *PGStore) CreateDriverAccount(ctx context.Context, u *User, p DriverProfile) (types.ID, error) {
	var driverID int64
	err := infra.WithinTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO drivers (user_id, license_no, rating, status)
			VALUES ($1, $2, $3, 'available')
			RETURNING id`,
			int64(u.ID), p.LicenseNo, p.Rating,
		).Scan(&driverID)
		return infra.DuplicateKey(err, uniqueFields)
	})
	if err != nil {
		u.ID = 0
		return 0, err
	}
	return types.ID(driverID), nil
}

func insertUser(ctx context.Context, q infra.Querier, u *User) error {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, first_name, last_name, phone, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, string(u.Role), u.Active,
	).Scan(&id, &u.CreatedAt)
	if err != nil {
		return infra.DuplicateKey(err, uniqueFields)
	}
	u.ID = types.ID(id)
	return nil
}

func (s *PGStore) GetUser(ctx context.Context, id types.ID) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, int64(id)))
}

func (s *PGStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (s *PGStore) ListUsers(ctx context.Context, f UserFilter) ([]*User, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY id ASC
		LIMIT $2`, string(f.Role), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PGStore) SetUserActive(ctx context.Context, id types.ID, active bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET is_active = $1 WHERE id = $2`, active, int64(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u    User
		id   int64
		role string
	)
	err := row.Scan(&id, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &role, &u.Active, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = types.ID(id)
	u.Role = types.Role(role)
	return &u, nil
}
