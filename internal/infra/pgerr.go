// README: Postgres error helpers (unique violations surface as duplicate keys).
package infra

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"cabdispatch/internal/apperr"
)

const uniqueViolation = "23505"

// UniqueViolation returns the violated constraint name when err is a unique
// constraint violation.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// DuplicateKey converts a unique violation into apperr.Duplicate using the
// constraint-to-field map; other errors are returned unchanged.
func DuplicateKey(err error, fields map[string]string) error {
	constraint, ok := UniqueViolation(err)
	if !ok {
		return err
	}
	if field, ok := fields[constraint]; ok {
		return apperr.Duplicate(field)
	}
	return apperr.Duplicate(constraint)
}
