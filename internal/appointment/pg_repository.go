package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-booking-engine/internal/db"
)

const activeSlotConstraint = "appointments_active_slot_uniq"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const appointmentCols = `id, reference_no, patient_id, doctor_id, date, start_time, end_time,
	status, queue_no, patient_name, patient_phone, patient_email, notes,
	cancel_reason, hold_expires_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var cancelReason *string
	var holdExpiresAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.ReferenceNo,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.QueueNo,
		&a.PatientName,
		&a.PatientPhone,
		&a.PatientEmail,
		&a.Notes,
		&cancelReason,
		&holdExpiresAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, db.StorageError("scan appointment", err)
	}

	a.CancelReason = cancelReason
	a.HoldExpiresAt = holdExpiresAt
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := make([]Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, db.StorageError("iterate appointments", err)
	}

	return result, nil
}

// countInSession counts active appointments starting inside session. Times are
// zero-padded HH:MM so text comparison orders them correctly.
func countInSession(ctx context.Context, tx pgx.Tx, doctorID uuid.UUID, date, start, end string, exclude uuid.UUID) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE doctor_id = $1
		  AND date = $2
		  AND start_time >= $3
		  AND start_time < $4
		  AND status <> 'Cancelled'
		  AND id <> $5
	`, doctorID, date, start, end, exclude).Scan(&count)
	if err != nil {
		return 0, db.StorageError("count session appointments", err)
	}
	return count, nil
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveByDoctorDate(ctx context.Context, doctorID uuid.UUID, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND status <> 'Cancelled'
		ORDER BY start_time, created_at
	`, doctorID, date)
	if err != nil {
		return nil, db.StorageError("list active appointments", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE doctor_id = $1 AND date = $2
		ORDER BY start_time, created_at
	`, doctorID, date)
	if err != nil {
		return nil, db.StorageError("list appointments", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, start_time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, db.StorageError("list patient appointments", err)
	}
	return collectAppointments(rows)
}

// Book serializes on the session with an advisory lock, so the count and the
// insert see the same state across every API instance.
func (r *PgRepository) Book(ctx context.Context, p BookingParams) (*Appointment, error) {
	appt := p.Appointment
	var created *Appointment

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := db.AdvisoryXactLock(ctx, tx, SessionKey(appt.DoctorID, appt.Date, p.Session)); err != nil {
			return err
		}

		count, err := countInSession(ctx, tx, appt.DoctorID, appt.Date, p.Session.Start, p.Session.End, uuid.Nil)
		if err != nil {
			return err
		}
		if count >= p.Capacity {
			return ErrSessionFull
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, reference_no, patient_id, doctor_id, date, start_time, end_time,
				status, queue_no, patient_name, patient_phone, patient_email, notes,
				hold_expires_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
			RETURNING `+appointmentCols,
			appt.ID, appt.ReferenceNo, appt.PatientID, appt.DoctorID, appt.Date, appt.StartTime, appt.EndTime,
			appt.Status, count+1, appt.PatientName, appt.PatientPhone, appt.PatientEmail, appt.Notes,
			appt.HoldExpiresAt,
		)
		created, err = scanAppointment(row)
		if err != nil {
			if db.IsUniqueViolation(err, activeSlotConstraint) {
				return ErrSlotTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) Reschedule(ctx context.Context, id uuid.UUID, plan ReschedulePlan) (*Appointment, error) {
	var moved *Appointment

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanAppointment(tx.QueryRow(ctx,
			`SELECT `+appointmentCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := CanReschedule(current.Status); err != nil {
			return err
		}

		if err := db.AdvisoryXactLock(ctx, tx, SessionKey(current.DoctorID, plan.Date, plan.Session)); err != nil {
			return err
		}

		count, err := countInSession(ctx, tx, current.DoctorID, plan.Date, plan.Session.Start, plan.Session.End, id)
		if err != nil {
			return err
		}
		if count >= plan.Capacity {
			return ErrSessionFull
		}

		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET date = $2,
			    start_time = $3,
			    end_time = $4,
			    status = 'Booked',
			    queue_no = $5,
			    hold_expires_at = NULL,
			    updated_at = now()
			WHERE id = $1
			RETURNING `+appointmentCols,
			id, plan.Date, plan.StartTime, plan.EndTime, count+1,
		)
		moved, err = scanAppointment(row)
		if err != nil {
			if db.IsUniqueViolation(err, activeSlotConstraint) {
				return ErrSlotTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func (r *PgRepository) Transition(ctx context.Context, id uuid.UUID, fn func(a *Appointment) error) (*Appointment, error) {
	var updated *Appointment

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanAppointment(tx.QueryRow(ctx,
			`SELECT `+appointmentCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2,
			    cancel_reason = $3,
			    hold_expires_at = $4,
			    updated_at = now()
			WHERE id = $1
			RETURNING `+appointmentCols,
			id, current.Status, current.CancelReason, current.HoldExpiresAt,
		)
		updated, err = scanAppointment(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) FindExpiredHolds(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE status = 'AwaitingPayment'
		  AND hold_expires_at IS NOT NULL
		  AND hold_expires_at < $1
	`, now)
	if err != nil {
		return nil, db.StorageError("find expired holds", err)
	}
	return collectAppointments(rows)
}

// PurgeDay returns exactly the rows it removed, so a booking committed
// concurrently is either reported here or survives the purge.
func (r *PgRepository) PurgeDay(ctx context.Context, doctorID uuid.UUID, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		DELETE FROM appointments
		WHERE doctor_id = $1 AND date = $2
		RETURNING `+appointmentCols,
		doctorID, date)
	if err != nil {
		return nil, db.StorageError("delete appointments", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return db.StorageError("insert event log", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
