package slot

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrSlotNotFound     = errors.New("slot not found")
	ErrConcurrentAppend = errors.New("slot log changed since it was read")
)

// Store persists slot event logs. Append succeeds only when the stored log
// still has expectedVersion events.
type Store interface {
	Load(ctx context.Context, slotID uuid.UUID) ([]Event, error)
	Append(ctx context.Context, slotID uuid.UUID, expectedVersion int, events []Event) error
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Load(ctx context.Context, slotID uuid.UUID) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_type, slot_id, start_time, end_time, occurred_at
		FROM slot_events
		WHERE slot_id = $1
		ORDER BY seq ASC
	`, slotID)
	if err != nil {
		return nil, fmt.Errorf("query slot events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var evt Event
		var typ string
		if err := rows.Scan(&typ, &evt.SlotID, &evt.Start, &evt.End, &evt.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan slot event: %w", err)
		}
		evt.Type = EventType(typ)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *PgStore) Append(ctx context.Context, slotID uuid.UUID, expectedVersion int, events []Event) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var current int
	if err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM slot_events WHERE slot_id = $1
	`, slotID).Scan(&current); err != nil {
		return fmt.Errorf("read slot version: %w", err)
	}
	if current != expectedVersion {
		err = fmt.Errorf("%w: have version %d, expected %d", ErrConcurrentAppend, current, expectedVersion)
		return err
	}

	for i, evt := range events {
		_, err = tx.Exec(ctx, `
			INSERT INTO slot_events (slot_id, seq, event_type, start_time, end_time, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, slotID, expectedVersion+i+1, string(evt.Type), evt.Start, evt.End, evt.OccurredAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				err = fmt.Errorf("%w: slot %s", ErrConcurrentAppend, slotID)
				return err
			}
			return fmt.Errorf("insert slot event: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
