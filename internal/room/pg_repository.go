package room

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const roomColumns = `id, clinic_id, name, status, current_appointment_id, assigned_staff_id, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanRoom(row pgx.Row) (*Room, error) {
	var r Room

	err := row.Scan(
		&r.ID,
		&r.ClinicID,
		&r.Name,
		&r.Status,
		&r.CurrentAppointmentID,
		&r.AssignedStaffID,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	return &r, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE id = $1
	`, id)
	return scanRoom(row)
}

func (r *PgRepository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]Room, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE clinic_id = $1
		ORDER BY name
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *room)
	}

	return result, rows.Err()
}

func (r *PgRepository) Occupy(ctx context.Context, roomID, appointmentID uuid.UUID, staffID *uuid.UUID) (*Room, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE rooms
		SET status = 'occupied',
		    current_appointment_id = $2,
		    assigned_staff_id = COALESCE($3, assigned_staff_id),
		    updated_at = now()
		WHERE id = $1
		  AND status = 'available'
		RETURNING `+roomColumns+`
	`, roomID, appointmentID, staffID)

	room, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			// No row matched: either the room does not exist or it is not
			// available. Re-read to report the right one.
			if _, gerr := r.GetByID(ctx, roomID); gerr != nil {
				return nil, gerr
			}
			return nil, ErrRoomUnavailable
		}
		return nil, err
	}

	return room, nil
}

func (r *PgRepository) Free(ctx context.Context, roomID uuid.UUID) (*Room, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE rooms
		SET status = 'available',
		    current_appointment_id = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'occupied'
		RETURNING `+roomColumns+`
	`, roomID)

	room, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			if _, gerr := r.GetByID(ctx, roomID); gerr != nil {
				return nil, gerr
			}
			return nil, ErrRoomNotOccupied
		}
		return nil, err
	}

	return room, nil
}
