// README: Booking store backed by PostgreSQL; transitions are one transaction each.
package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cabdispatch/internal/infra"
	"cabdispatch/internal/types"
)

const (
	activeDriverIndex = "bookings_active_driver_idx"
	activeCabIndex    = "bookings_active_cab_idx"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const bookingColumns = `
	id, customer_id, driver_id, cab_id, pickup_address, dropoff_address, scheduled_time,
	distance_km, fare_estimate, fare_final, currency, status, status_version,
	created_at, assigned_at, started_at, completed_at, cancelled_at, cancel_reason`

// CreateBooking inserts a pending booking together with its creation event.
func (s *PGStore) CreateBooking(ctx context.Context, b *Booking, actor types.Caller) error {
	return infra.WithinTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO bookings (
				customer_id, pickup_address, dropoff_address, scheduled_time,
				distance_km, fare_estimate, currency, status, status_version, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			int64(b.CustomerID), b.Pickup, b.Dropoff, b.ScheduledAt,
			b.DistanceKm, b.FareEstimate.Amount, b.FareEstimate.Currency,
			string(b.Status), b.StatusVersion, b.CreatedAt,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		b.ID = types.ID(id)
		return appendEvent(ctx, tx, Event{
			BookingID:  b.ID,
			FromStatus: StatusNone,
			ToStatus:   b.Status,
			ActorRole:  actor.Role,
			ActorID:    actorID(actor.UserID),
			CreatedAt:  b.CreatedAt,
		})
	})
}

func (s *PGStore) GetBooking(ctx context.Context, id types.ID) (*Booking, error) {
	return getBooking(ctx, s.db, id)
}

func getBooking(ctx context.Context, q infra.Querier, id types.ID) (*Booking, error) {
	row := q.QueryRow(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1`, int64(id))
	return scanBooking(row)
}

func (s *PGStore) ListBookings(ctx context.Context, f Filter) ([]*Booking, error) {
	var statuses []string
	for _, st := range f.Statuses {
		statuses = append(statuses, string(st))
	}
	order := `created_at DESC, id DESC`
	if f.NewestCompletedFirst {
		order = `completed_at DESC NULLS LAST, id DESC`
	}
	// LIMIT NULL is no limit.
	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}
	rows, err := s.db.Query(ctx, `SELECT`+bookingColumns+` FROM bookings
		WHERE ($1::bigint = 0 OR customer_id = $1)
		  AND ($2::bigint = 0 OR driver_id = $2)
		  AND ($3::text[] IS NULL OR status = ANY($3))
		ORDER BY `+order+`
		LIMIT $4`,
		int64(f.CustomerID), int64(f.DriverID), statuses, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ApplyTransition locks rows in a fixed order (booking, driver, cab) so that
// concurrent transitions cannot deadlock.
func (s *PGStore) ApplyTransition(ctx context.Context, t Transition) (*Booking, error) {
	var out *Booking
	err := infra.WithinTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := updateBooking(ctx, tx, t); err != nil {
			return err
		}
		if err := applyEffect(ctx, tx, t); err != nil {
			return err
		}
		e := Event{
			BookingID:  t.BookingID,
			FromStatus: t.From,
			ToStatus:   t.To,
			ActorRole:  t.ActorRole,
			ActorID:    actorID(t.ActorID),
			CreatedAt:  t.At,
		}
		if t.DriverID.Valid() {
			e.DriverID = types.IDPtr(t.DriverID)
		}
		if t.CabID.Valid() {
			e.CabID = types.IDPtr(t.CabID)
		}
		if err := appendEvent(ctx, tx, e); err != nil {
			return err
		}
		b, err := getBooking(ctx, tx, t.BookingID)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func updateBooking(ctx context.Context, tx pgx.Tx, t Transition) error {
	var fareFinal *int64
	if t.FareFinal != nil {
		fareFinal = &t.FareFinal.Amount
	}
	var reason *string
	if t.To == StatusCancelled && t.Reason != "" {
		reason = &t.Reason
	}
	var driverID, cabID *int64
	if t.To == StatusAssigned {
		d, c := int64(t.DriverID), int64(t.CabID)
		driverID, cabID = &d, &c
	}

	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = $1,
			status_version = status_version + 1,
			driver_id = COALESCE($2, driver_id),
			cab_id = COALESCE($3, cab_id),
			fare_final = $4,
			cancel_reason = COALESCE($5, cancel_reason),
			assigned_at = CASE WHEN $1 = 'assigned' THEN $6 ELSE assigned_at END,
			started_at = CASE WHEN $1 = 'en_route' THEN $6 ELSE started_at END,
			completed_at = CASE WHEN $1 = 'completed' THEN $6 ELSE completed_at END,
			cancelled_at = CASE WHEN $1 = 'cancelled' THEN $6 ELSE cancelled_at END
		WHERE id = $7 AND status = $8 AND status_version = $9`,
		string(t.To), driverID, cabID, fareFinal, reason, t.At,
		int64(t.BookingID), string(t.From), t.Version,
	)
	if err != nil {
		constraint, ok := infra.UniqueViolation(err)
		switch {
		case ok && constraint == activeDriverIndex:
			return ErrDriverUnavailable
		case ok && constraint == activeCabIndex:
			return ErrCabUnavailable
		}
		return fmt.Errorf("update booking: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, int64(t.BookingID)).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func applyEffect(ctx context.Context, tx pgx.Tx, t Transition) error {
	switch t.Effect {
	case EffectClaim:
		tag, err := tx.Exec(ctx, `
			UPDATE drivers d SET status = 'on_trip'
			FROM users u
			WHERE d.id = $1 AND d.status = 'available' AND u.id = d.user_id AND u.is_active`,
			int64(t.DriverID))
		if err != nil {
			return fmt.Errorf("claim driver: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrDriverUnavailable
		}
		tag, err = tx.Exec(ctx, `UPDATE cabs SET status = 'on_trip' WHERE id = $1 AND status = 'available'`, int64(t.CabID))
		if err != nil {
			return fmt.Errorf("claim cab: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrCabUnavailable
		}
	case EffectHold:
		return setResources(ctx, tx, t, "on_trip")
	case EffectRelease:
		return setResources(ctx, tx, t, "available")
	}
	return nil
}

func setResources(ctx context.Context, tx pgx.Tx, t Transition, status string) error {
	if t.DriverID.Valid() {
		if _, err := tx.Exec(ctx, `UPDATE drivers SET status = $1 WHERE id = $2`, status, int64(t.DriverID)); err != nil {
			return fmt.Errorf("set driver %s: %w", status, err)
		}
	}
	if t.CabID.Valid() {
		if _, err := tx.Exec(ctx, `UPDATE cabs SET status = $1 WHERE id = $2`, status, int64(t.CabID)); err != nil {
			return fmt.Errorf("set cab %s: %w", status, err)
		}
	}
	return nil
}

func appendEvent(ctx context.Context, q infra.Querier, e Event) error {
	_, err := q.Exec(ctx, `
		INSERT INTO booking_events (
			booking_id, from_status, to_status, actor_role, actor_id, driver_id, cab_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		int64(e.BookingID), string(e.FromStatus), string(e.ToStatus), string(e.ActorRole),
		idArg(e.ActorID), idArg(e.DriverID), idArg(e.CabID), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append booking event: %w", err)
	}
	return nil
}

func (s *PGStore) ListEvents(ctx context.Context, bookingID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, from_status, to_status, actor_role, actor_id, driver_id, cab_id, created_at
		FROM booking_events
		WHERE booking_id = $1
		ORDER BY id ASC`, int64(bookingID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e                      Event
			bid                    int64
			from, to, role         string
			actor, driverID, cabID *int64
		)
		if err := rows.Scan(&e.ID, &bid, &from, &to, &role, &actor, &driverID, &cabID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.BookingID = types.ID(bid)
		e.FromStatus = Status(from)
		e.ToStatus = Status(to)
		e.ActorRole = types.Role(role)
		e.ActorID = toIDPtr(actor)
		e.DriverID = toIDPtr(driverID)
		e.CabID = toIDPtr(cabID)
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b                Booking
		id, customerID   int64
		driverID, cabID  *int64
		fareEstimate     int64
		fareFinal        *int64
		currency, status string
	)
	err := row.Scan(
		&id, &customerID, &driverID, &cabID, &b.Pickup, &b.Dropoff, &b.ScheduledAt,
		&b.DistanceKm, &fareEstimate, &fareFinal, &currency, &status, &b.StatusVersion,
		&b.CreatedAt, &b.AssignedAt, &b.StartedAt, &b.CompletedAt, &b.CancelledAt, &b.CancelReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	b.ID = types.ID(id)
	b.CustomerID = types.ID(customerID)
	b.DriverID = toIDPtr(driverID)
	b.CabID = toIDPtr(cabID)
	b.FareEstimate = types.Money{Amount: fareEstimate, Currency: currency}
	if fareFinal != nil {
		b.FareFinal = &types.Money{Amount: *fareFinal, Currency: currency}
	}
	b.Status = Status(status)
	return &b, nil
}

func actorID(id types.ID) *types.ID {
	if !id.Valid() {
		return nil
	}
	return types.IDPtr(id)
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
