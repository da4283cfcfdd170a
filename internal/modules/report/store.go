// README: Report store reading one repeatable-read snapshot from PostgreSQL.
package report

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cabdispatch/internal/infra"
	"cabdispatch/internal/modules/booking"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Snapshot(ctx context.Context, scope Scope) (Snapshot, error) {
	snap := Snapshot{ByStatus: map[booking.Status]int{}}
	err := infra.WithinTx(ctx, s.db, infra.ReadSnapshot, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT status, COUNT(*), COALESCE(SUM(fare_final), 0)
			FROM bookings
			WHERE ($1::bigint = 0 OR customer_id = $1)
			  AND ($2::bigint = 0 OR driver_id = $2)
			GROUP BY status`,
			int64(scope.CustomerID), int64(scope.DriverID),
		)
		if err != nil {
			return fmt.Errorf("count bookings: %w", err)
		}
		for rows.Next() {
			var (
				status  string
				n       int
				revenue int64
			)
			if err := rows.Scan(&status, &n, &revenue); err != nil {
				rows.Close()
				return err
			}
			snap.ByStatus[booking.Status(status)] = n
			if booking.Status(status) == booking.StatusCompleted {
				snap.Revenue = revenue
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if !scope.Global() {
			return nil
		}
		err = tx.QueryRow(ctx, `
			SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'available')
			FROM drivers`).Scan(&snap.Drivers.Total, &snap.Drivers.Available)
		if err != nil {
			return fmt.Errorf("count drivers: %w", err)
		}
		err = tx.QueryRow(ctx, `
			SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'available')
			FROM cabs`).Scan(&snap.Cabs.Total, &snap.Cabs.Available)
		if err != nil {
			return fmt.Errorf("count cabs: %w", err)
		}
		return nil
	})
	return snap, err
}
