package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/clinic-scheduling/internal/availability"
)

const apptColumns = `
	id, clinic_id, practitioner_id, patient_id, start_time, duration_minutes,
	modality, priority, status, reason, room_id,
	confirmed_at, checked_in_at, started_at, completed_at, cancelled_at,
	cancel_reason, cancelled_by, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Specialty,
		&p.DefaultDurationMinutes,
		&p.AcceptingNewPatients,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.ClinicID,
		&a.PractitionerID,
		&a.PatientID,
		&a.Start,
		&a.DurationMinutes,
		&a.Modality,
		&a.Priority,
		&a.Status,
		&a.Reason,
		&a.RoomID,
		&a.ConfirmedAt,
		&a.CheckedInAt,
		&a.StartedAt,
		&a.CompletedAt,
		&a.CancelledAt,
		&a.CancelReason,
		&a.CancelledBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

// isUniqueViolation reports whether err is the Postgres unique_violation
// error class (the booking race loser).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, default_duration_minutes, accepting_new_patients, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) ListWindows(ctx context.Context, practitionerID uuid.UUID) ([]availability.Window, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, practitioner_id, clinic_id, weekday, start_clock, end_clock
		FROM availability_windows
		WHERE practitioner_id = $1
		ORDER BY weekday, start_clock
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []availability.Window
	for rows.Next() {
		var w availability.Window
		var weekday int
		if err := rows.Scan(&w.ID, &w.PractitionerID, &w.ClinicID, &weekday, &w.StartClock, &w.EndClock); err != nil {
			return nil, err
		}
		w.Weekday = time.Weekday(weekday)
		result = append(result, w)
	}

	return result, rows.Err()
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveStarts(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time
		FROM appointments
		WHERE practitioner_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		  AND status NOT IN ('cancelled', 'no-show')
	`, practitionerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	return result, rows.Err()
}

func (r *PgRepository) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, clinic_id, practitioner_id, patient_id, start_time,
			duration_minutes, modality, priority, status, reason,
			confirmed_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING `+apptColumns+`
	`, a.ID, a.ClinicID, a.PractitionerID, a.PatientID, a.Start,
		a.DurationMinutes, a.Modality, a.Priority, a.Status, a.Reason,
		a.ConfirmedAt)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}

	return created, nil
}

func (r *PgRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time, opts TransitionOpts) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now(),
		    confirmed_at  = CASE WHEN $2 = 'confirmed'       THEN $4 ELSE confirmed_at END,
		    checked_in_at = CASE WHEN $2 = 'in-waiting-room' THEN $4 ELSE checked_in_at END,
		    started_at    = CASE WHEN $2 = 'in-progress'     THEN $4 ELSE started_at END,
		    completed_at  = CASE WHEN $2 = 'completed'       THEN $4 ELSE completed_at END,
		    cancelled_at  = CASE WHEN $2 = 'cancelled'       THEN $4 ELSE cancelled_at END,
		    cancel_reason = COALESCE($5, cancel_reason),
		    cancelled_by  = COALESCE($6, cancelled_by)
		WHERE id = $1
		  AND status = $3
		RETURNING `+apptColumns+`
	`, id, to, from, at, opts.CancelReason, opts.CancelledBy)

	return scanAppointment(row)
}

func (r *PgRepository) BindRoom(ctx context.Context, id uuid.UUID, roomID *uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET room_id = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, roomID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) FindOverdue(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE status IN ('scheduled', 'confirmed')
		  AND start_time < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, rows.Err()
}
