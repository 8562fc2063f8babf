package party

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory resolves human readable identifiers to parties.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Party, error)
	GetByLogin(ctx context.Context, login string) (*Party, error)
	GetByNationalID(ctx context.Context, nationalID string) (*Party, error)
}

// Resolve looks a party up by login first and national id second.
func Resolve(ctx context.Context, dir Directory, login, nationalID string) (*Party, error) {
	login = strings.TrimSpace(login)
	nationalID = strings.TrimSpace(nationalID)

	if login != "" {
		return dir.GetByLogin(ctx, login)
	}
	if nationalID != "" {
		if err := ValidateNationalID(nationalID); err != nil {
			return nil, err
		}
		return dir.GetByNationalID(ctx, nationalID)
	}
	return nil, ErrLookupKeyRequired
}

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func scanParty(row pgx.Row) (*Party, error) {
	var p Party
	var role *string

	err := row.Scan(
		&p.ID,
		&p.Login,
		&p.Name,
		&p.Surname,
		&p.NationalID,
		&role,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if role != nil {
		r, err := ParseRole(*role)
		if err != nil {
			return nil, fmt.Errorf("party %s: %w", p.ID, err)
		}
		p.Role = &r
	}
	return &p, nil
}

func (d *PgDirectory) GetByID(ctx context.Context, id uuid.UUID) (*Party, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, login, name, surname, national_id, role, created_at
		FROM parties
		WHERE id = $1
	`, id)
	return scanParty(row)
}

func (d *PgDirectory) GetByLogin(ctx context.Context, login string) (*Party, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, login, name, surname, national_id, role, created_at
		FROM parties
		WHERE login = $1
	`, login)
	return scanParty(row)
}

func (d *PgDirectory) GetByNationalID(ctx context.Context, nationalID string) (*Party, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, login, name, surname, national_id, role, created_at
		FROM parties
		WHERE national_id = $1
	`, nationalID)
	return scanParty(row)
}

// Create inserts p, assigning an id when p.ID is nil.
func (d *PgDirectory) Create(ctx context.Context, p Party) (*Party, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.NationalID != nil {
		if err := ValidateNationalID(*p.NationalID); err != nil {
			return nil, err
		}
	}

	var role *string
	if p.Role != nil {
		r := string(*p.Role)
		role = &r
	}

	row := d.pool.QueryRow(ctx, `
		INSERT INTO parties (id, login, name, surname, national_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, login, name, surname, national_id, role, created_at
	`, p.ID, p.Login, p.Name, p.Surname, p.NationalID, role)

	created, err := scanParty(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %s", ErrLoginAlreadyExists, p.Login)
		}
		return nil, fmt.Errorf("insert party: %w", err)
	}
	return created, nil
}
