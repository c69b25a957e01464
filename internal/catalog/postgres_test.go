package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "Graz", "summer", 2022, "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "Graz", "summer", 2022)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, city, season, year, status, result, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("running", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", RunStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordDecisions(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO scene_decisions`).
		WithArgs(pgxmock.AnyArg(), "run-1", "LC08_L2SP_190027_20220615_20220628_02_T1", "oli_tirs",
			pgxmock.AnyArg(), true, 0.12, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordDecisions(context.Background(), "run-1", []SceneDecision{{
		SceneID:         "LC08_L2SP_190027_20220615_20220628_02_T1",
		Sensor:          "oli_tirs",
		AcquiredAt:      time.Date(2022, 6, 15, 0, 0, 0, 0, time.UTC),
		Accepted:        true,
		InvalidFraction: 0.12,
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "city", "season", "year", "status", "result", "error", "created_at", "updated_at",
	}).AddRow("run-1", "Graz", "summer", 2022, "complete", nil, nil, now, now)

	mock.ExpectQuery(`SELECT .* FROM runs WHERE true AND status = \$1`).
		WithArgs("complete", 100).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "Graz", runs[0].City)
	assert.NoError(t, mock.ExpectationsWereMet())
}
