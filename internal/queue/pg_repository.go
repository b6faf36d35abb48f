package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const queueColumns = `id, clinic_id, practitioner_id, specialty, service_date, avg_wait_minutes, version, last_updated`

const entryColumns = `id, queue_id, appointment_id, position, status, called_at, started_at, completed_at, created_at, updated_at`

const activeStatuses = `'waiting', 'called', 'in-progress'`

// DB is the slice of pgxpool.Pool the repository uses. pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	pool DB
}

func NewPgRepository(pool DB) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanQueue(row pgx.Row) (*Queue, error) {
	var q Queue

	err := row.Scan(
		&q.ID,
		&q.ClinicID,
		&q.PractitionerID,
		&q.Specialty,
		&q.ServiceDate,
		&q.AvgWaitMinutes,
		&q.Version,
		&q.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQueueNotFound
		}
		return nil, err
	}

	return &q, nil
}

func scanEntry(row pgx.Row) (*QueueEntry, error) {
	var e QueueEntry
	var pos *int

	err := row.Scan(
		&e.ID,
		&e.QueueID,
		&e.AppointmentID,
		&pos,
		&e.Status,
		&e.CalledAt,
		&e.StartedAt,
		&e.CompletedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	if pos != nil {
		e.Position = *pos
	}
	return &e, nil
}

// Interface methods

func (r *PgRepository) GetOrCreate(ctx context.Context, key QueueKey, defaultWaitMins int) (*Queue, error) {
	q, err := r.FindByKey(ctx, key)
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, ErrQueueNotFound) {
		return nil, err
	}

	// Lazily create. ON CONFLICT absorbs the race where two admits create
	// the same clinic-day queue simultaneously; the follow-up read returns
	// whichever row won.
	_, err = r.pool.Exec(ctx, `
		INSERT INTO queues (id, clinic_id, practitioner_id, specialty, service_date, avg_wait_minutes, version, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, 1, now())
		ON CONFLICT DO NOTHING
	`, uuid.New(), key.ClinicID, key.PractitionerID, key.Specialty, key.ServiceDate, defaultWaitMins)
	if err != nil {
		return nil, fmt.Errorf("create queue: %w", err)
	}

	return r.FindByKey(ctx, key)
}

func (r *PgRepository) FindByKey(ctx context.Context, key QueueKey) (*Queue, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+queueColumns+`
		FROM queues
		WHERE clinic_id = $1
		  AND service_date = $2
		  AND practitioner_id IS NOT DISTINCT FROM $3
		  AND specialty IS NOT DISTINCT FROM $4
	`, key.ClinicID, key.ServiceDate, key.PractitionerID, key.Specialty)

	q, err := scanQueue(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadEntries(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Queue, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+queueColumns+`
		FROM queues
		WHERE id = $1
	`, id)

	q, err := scanQueue(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadEntries(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *PgRepository) loadEntries(ctx context.Context, q *Queue) error {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE queue_id = $1
		ORDER BY position NULLS LAST, created_at
	`, q.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return err
		}
		q.Entries = append(q.Entries, *e)
	}

	return rows.Err()
}

func (r *PgRepository) FindActiveEntry(ctx context.Context, appointmentID uuid.UUID) (*QueueEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE appointment_id = $1
		  AND status IN (`+activeStatuses+`)
	`, appointmentID)
	return scanEntry(row)
}

func (r *PgRepository) AppendEntry(ctx context.Context, queueID, appointmentID uuid.UUID) (*QueueEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// The queue row is the unit of mutual exclusion: lock it so appends,
	// reorders and retirements serialize per queue.
	var version int64
	err = tx.QueryRow(ctx, `
		SELECT version FROM queues WHERE id = $1 FOR UPDATE
	`, queueID).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQueueNotFound
		}
		return nil, err
	}

	var queued bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM queue_entries
			WHERE appointment_id = $1
			  AND status IN (`+activeStatuses+`)
		)
	`, appointmentID).Scan(&queued)
	if err != nil {
		return nil, err
	}
	if queued {
		return nil, ErrAlreadyQueued
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO queue_entries (id, queue_id, appointment_id, position, status, created_at, updated_at)
		VALUES (
			$1, $2, $3,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM queue_entries WHERE queue_id = $2),
			'waiting', now(), now()
		)
		RETURNING `+entryColumns+`
	`, uuid.New(), queueID, appointmentID)

	entry, err := scanEntry(row)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE queues SET version = version + 1, last_updated = now() WHERE id = $1
	`, queueID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *PgRepository) CallNext(ctx context.Context, queueID uuid.UUID) (*QueueEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var version int64
	err = tx.QueryRow(ctx, `
		SELECT version FROM queues WHERE id = $1 FOR UPDATE
	`, queueID).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQueueNotFound
		}
		return nil, err
	}

	// Read-lowest-waiting and mark-called in one conditional statement, so
	// two racing calls can never select the same entry.
	row := tx.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = 'called',
		    called_at = now(),
		    updated_at = now()
		WHERE id = (
			SELECT id FROM queue_entries
			WHERE queue_id = $1 AND status = 'waiting'
			ORDER BY position
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+entryColumns+`
	`, queueID)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, ErrEmptyQueue
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE queues SET version = version + 1, last_updated = now() WHERE id = $1
	`, queueID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *PgRepository) ApplyOrder(ctx context.Context, queueID uuid.UUID, expectedVersion int64, order []EntryPosition) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Version CAS doubles as the queue-row lock. A zero-row update means a
	// concurrent writer bumped the version since the caller's read.
	tag, err := tx.Exec(ctx, `
		UPDATE queues
		SET version = version + 1, last_updated = now()
		WHERE id = $1 AND version = $2
	`, queueID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM queues WHERE id = $1)
		`, queueID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrQueueNotFound
		}
		return ErrQueueStale
	}

	for _, op := range order {
		tag, err := tx.Exec(ctx, `
			UPDATE queue_entries
			SET position = $3, updated_at = now()
			WHERE queue_id = $1
			  AND appointment_id = $2
			  AND status IN (`+activeStatuses+`)
		`, queueID, op.AppointmentID, op.Position)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrEntryNotFound
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) MarkStarted(ctx context.Context, queueID, appointmentID uuid.UUID, at time.Time) (*QueueEntry, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = 'in-progress',
		    started_at = $3,
		    updated_at = now()
		WHERE queue_id = $1
		  AND appointment_id = $2
		  AND status = 'called'
		RETURNING `+entryColumns+`
	`, queueID, appointmentID, at)
	return scanEntry(row)
}

func (r *PgRepository) CompleteEntry(ctx context.Context, queueID, appointmentID uuid.UUID, alpha float64) (*QueueEntry, error) {
	return r.retire(ctx, queueID, appointmentID, EntryCompleted, alpha)
}

func (r *PgRepository) RetireNoShow(ctx context.Context, queueID, appointmentID uuid.UUID) (*QueueEntry, error) {
	return r.retire(ctx, queueID, appointmentID, EntryNoShow, 0)
}

// retire closes an active entry, compacts positions behind it so the active
// ordering stays dense, and (for completions with a recorded call time)
// decays the queue's rolling wait average.
func (r *PgRepository) retire(ctx context.Context, queueID, appointmentID uuid.UUID, to EntryStatus, alpha float64) (*QueueEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var version int64
	err = tx.QueryRow(ctx, `
		SELECT version FROM queues WHERE id = $1 FOR UPDATE
	`, queueID).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQueueNotFound
		}
		return nil, err
	}

	var oldPos *int
	err = tx.QueryRow(ctx, `
		SELECT position FROM queue_entries
		WHERE queue_id = $1
		  AND appointment_id = $2
		  AND status IN (`+activeStatuses+`)
		FOR UPDATE
	`, queueID, appointmentID).Scan(&oldPos)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = $3,
		    position = NULL,
		    completed_at = CASE WHEN $3 = 'completed' THEN now() ELSE completed_at END,
		    updated_at = now()
		WHERE queue_id = $1
		  AND appointment_id = $2
		RETURNING `+entryColumns+`
	`, queueID, appointmentID, to)

	entry, err := scanEntry(row)
	if err != nil {
		return nil, err
	}

	if oldPos != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE queue_entries
			SET position = position - 1, updated_at = now()
			WHERE queue_id = $1 AND position > $2
		`, queueID, *oldPos); err != nil {
			return nil, err
		}
	}

	if to == EntryCompleted && entry.CalledAt != nil && entry.CompletedAt != nil && alpha > 0 {
		observed := entry.CompletedAt.Sub(*entry.CalledAt).Minutes()
		if _, err := tx.Exec(ctx, `
			UPDATE queues
			SET avg_wait_minutes = avg_wait_minutes * (1 - $2) + $3 * $2,
			    version = version + 1,
			    last_updated = now()
			WHERE id = $1
		`, queueID, alpha, observed); err != nil {
			return nil, err
		}
	} else {
		if _, err := tx.Exec(ctx, `
			UPDATE queues SET version = version + 1, last_updated = now() WHERE id = $1
		`, queueID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}
