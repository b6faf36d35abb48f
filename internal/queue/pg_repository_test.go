package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queueColumnNames = []string{
	"id", "clinic_id", "practitioner_id", "specialty",
	"service_date", "avg_wait_minutes", "version", "last_updated",
}

var entryColumnNames = []string{
	"id", "queue_id", "appointment_id", "position", "status",
	"called_at", "started_at", "completed_at", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepository(mock)
}

func TestPgGetByIDLoadsEntries(t *testing.T) {
	mock, repo := newMockRepo(t)

	queueID := uuid.New()
	clinicID := uuid.New()
	serviceDate := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery("FROM queues").
		WithArgs(queueID).
		WillReturnRows(pgxmock.NewRows(queueColumnNames).
			AddRow(queueID, clinicID, nil, nil, serviceDate, 15.0, int64(4), now))

	pos1, pos2 := 1, 2
	mock.ExpectQuery("FROM queue_entries").
		WithArgs(queueID).
		WillReturnRows(pgxmock.NewRows(entryColumnNames).
			AddRow(uuid.New(), queueID, uuid.New(), &pos1, "waiting", nil, nil, nil, now, now).
			AddRow(uuid.New(), queueID, uuid.New(), &pos2, "waiting", nil, nil, nil, now, now))

	q, err := repo.GetByID(context.Background(), queueID)
	require.NoError(t, err)

	assert.Equal(t, queueID, q.ID)
	assert.Equal(t, int64(4), q.Version)
	require.Len(t, q.Entries, 2)
	assert.Equal(t, 1, q.Entries[0].Position)
	assert.Equal(t, 2, q.Entries[1].Position)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	queueID := uuid.New()
	mock.ExpectQuery("FROM queues").
		WithArgs(queueID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), queueID)
	assert.ErrorIs(t, err, ErrQueueNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetOrCreateInsertsOnMiss(t *testing.T) {
	mock, repo := newMockRepo(t)

	queueID := uuid.New()
	clinicID := uuid.New()
	serviceDate := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	key := QueueKey{ClinicID: clinicID, ServiceDate: serviceDate}

	mock.ExpectQuery("FROM queues").
		WithArgs(clinicID, serviceDate, (*uuid.UUID)(nil), (*string)(nil)).
		WillReturnError(pgx.ErrNoRows)

	mock.ExpectExec("INSERT INTO queues").
		WithArgs(pgxmock.AnyArg(), clinicID, (*uuid.UUID)(nil), (*string)(nil), serviceDate, 15).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectQuery("FROM queues").
		WithArgs(clinicID, serviceDate, (*uuid.UUID)(nil), (*string)(nil)).
		WillReturnRows(pgxmock.NewRows(queueColumnNames).
			AddRow(queueID, clinicID, nil, nil, serviceDate, 15.0, int64(1), now))

	mock.ExpectQuery("FROM queue_entries").
		WithArgs(queueID).
		WillReturnRows(pgxmock.NewRows(entryColumnNames))

	q, err := repo.GetOrCreate(context.Background(), key, 15)
	require.NoError(t, err)
	assert.Equal(t, queueID, q.ID)
	assert.Empty(t, q.Entries)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgApplyOrderStaleVersion(t *testing.T) {
	mock, repo := newMockRepo(t)

	queueID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE queues").
		WithArgs(queueID, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(queueID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.ApplyOrder(context.Background(), queueID, 3, []EntryPosition{
		{AppointmentID: uuid.New(), Position: 1},
	})
	assert.ErrorIs(t, err, ErrQueueStale)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgApplyOrderUnknownQueue(t *testing.T) {
	mock, repo := newMockRepo(t)

	queueID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE queues").
		WithArgs(queueID, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(queueID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := repo.ApplyOrder(context.Background(), queueID, 3, nil)
	assert.ErrorIs(t, err, ErrQueueNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCallNextEmptyQueue(t *testing.T) {
	mock, repo := newMockRepo(t)

	queueID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT version FROM queues").
		WithArgs(queueID).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(2)))
	mock.ExpectQuery("UPDATE queue_entries").
		WithArgs(queueID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.CallNext(context.Background(), queueID)
	assert.ErrorIs(t, err, ErrEmptyQueue)
	assert.NoError(t, mock.ExpectationsWereMet())
}
