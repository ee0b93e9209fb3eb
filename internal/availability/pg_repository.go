package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-booking-engine/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const availabilityCols = `doctor_id, duration_minutes, session_capacity, timezone,
	weekly_hours, breaks, blocks, created_at, updated_at`

func scanAvailability(row pgx.Row) (*Availability, error) {
	var a Availability
	var weekly, breaks, blocks []byte

	err := row.Scan(
		&a.DoctorID,
		&a.DurationMinutes,
		&a.SessionCapacity,
		&a.Timezone,
		&weekly,
		&breaks,
		&blocks,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, db.StorageError("scan availability", err)
	}

	if err := json.Unmarshal(weekly, &a.WeeklyHours); err != nil {
		return nil, db.StorageError("decode weekly_hours", err)
	}
	if err := json.Unmarshal(breaks, &a.Breaks); err != nil {
		return nil, db.StorageError("decode breaks", err)
	}
	if err := json.Unmarshal(blocks, &a.Blocks); err != nil {
		return nil, db.StorageError("decode blocks", err)
	}
	return &a, nil
}

func (r *PgRepository) Get(ctx context.Context, doctorID uuid.UUID) (*Availability, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+availabilityCols+`
		FROM availability
		WHERE doctor_id = $1
	`, doctorID)
	return scanAvailability(row)
}

func (r *PgRepository) GetOrCreate(ctx context.Context, doctorID uuid.UUID) (*Availability, error) {
	if err := insertDefault(ctx, r.pool, doctorID); err != nil {
		return nil, err
	}
	return r.Get(ctx, doctorID)
}

func (r *PgRepository) Update(ctx context.Context, doctorID uuid.UUID, fn func(a *Availability) error) (*Availability, error) {
	var updated *Availability

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertDefault(ctx, tx, doctorID); err != nil {
			return err
		}

		current, err := scanAvailability(tx.QueryRow(ctx, `
			SELECT `+availabilityCols+`
			FROM availability
			WHERE doctor_id = $1
			FOR UPDATE
		`, doctorID))
		if err != nil {
			return err
		}

		if err := fn(current); err != nil {
			return err
		}

		weekly, err := json.Marshal(current.WeeklyHours)
		if err != nil {
			return fmt.Errorf("encode weekly_hours: %w", err)
		}
		breaks, err := json.Marshal(current.Breaks)
		if err != nil {
			return fmt.Errorf("encode breaks: %w", err)
		}
		blocks, err := json.Marshal(current.Blocks)
		if err != nil {
			return fmt.Errorf("encode blocks: %w", err)
		}

		updated, err = scanAvailability(tx.QueryRow(ctx, `
			UPDATE availability
			SET duration_minutes = $2,
			    session_capacity = $3,
			    timezone = $4,
			    weekly_hours = $5,
			    breaks = $6,
			    blocks = $7,
			    updated_at = now()
			WHERE doctor_id = $1
			RETURNING `+availabilityCols,
			doctorID, current.DurationMinutes, current.SessionCapacity, current.Timezone,
			weekly, breaks, blocks))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertDefault(ctx context.Context, conn execer, doctorID uuid.UUID) error {
	_, err := conn.Exec(ctx, `
		INSERT INTO availability (doctor_id, duration_minutes, session_capacity, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (doctor_id) DO NOTHING
	`, doctorID, DefaultDurationMinutes, DefaultSessionCapacity)
	if err != nil {
		return db.StorageError("insert default availability", err)
	}
	return nil
}
