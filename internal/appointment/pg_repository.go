package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	sqlStateExclusionViolation  = "23P01"
	sqlStateForeignKeyViolation = "23503"

	appointmentColumns = `id, provider_id, client_id, start_time, end_time, created_at`
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

type pgCalendarTx struct {
	tx pgx.Tx
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.ClientID,
		&a.Slot.Start,
		&a.Slot.End,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	a.Slot = a.Slot.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateExclusionViolation:
			return ErrSlotUnavailable
		case sqlStateForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrUnknownParty, pgErr.ConstraintName)
		}
	}
	return err
}

// Interface methods

// InProviderTx serializes writers per provider with a transaction scoped
// advisory lock. The exclusion constraint on appointments still rejects any
// overlap that slips past it.
func (r *PgRepository) InProviderTx(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx CalendarTx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, providerID.String()); err != nil {
		return fmt.Errorf("lock provider calendar: %w", err)
	}

	if err = fn(ctx, &pgCalendarTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", mapWriteError(err))
	}
	return nil
}

func (c *pgCalendarTx) ListOverlapping(ctx context.Context, providerID uuid.UUID, slot Slot) ([]Appointment, error) {
	rows, err := c.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time ASC
	`, providerID, slot.Start, slot.End)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (c *pgCalendarTx) Insert(ctx context.Context, appt Appointment) (*Appointment, error) {
	row := c.tx.QueryRow(ctx, `
		INSERT INTO appointments (id, provider_id, client_id, start_time, end_time, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING `+appointmentColumns,
		appt.ID, appt.ProviderID, appt.ClientID, appt.Slot.Start, appt.Slot.End)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM appointments
		WHERE id = $1
		RETURNING `+appointmentColumns, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListUpcomingByProvider(ctx context.Context, providerID uuid.UUID, from time.Time, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND start_time >= $2
		ORDER BY start_time ASC
		LIMIT $3
	`, providerID, from, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListUpcomingByClient(ctx context.Context, clientID uuid.UUID, from time.Time, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE client_id = $1
		  AND start_time >= $2
		ORDER BY start_time ASC
		LIMIT $3
	`, clientID, from, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		ON CONFLICT (appointment_id, event_type, occurred_at) DO NOTHING
	`, ev.EventType, ev.AppointmentID, ev.Payload, ev.OccurredAt, nullableTime(ev.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("insert event log: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
