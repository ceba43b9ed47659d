package history

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"medgraph-search/internal/logging"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &logging.Logger{Logger: slog.New(handler)}
}

func TestRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewStore(db, testLogger())

	mock.ExpectExec("INSERT INTO search_history").
		WithArgs("h-1", "who has diabetes", "MATCH (p:Patient) RETURN p", "valid", 1,
			int64(420), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.Record(t.Context(), Entry{
		ID:       "h-1",
		Question: "who has diabetes",
		Cypher:   "MATCH (p:Patient) RETURN p",
		Status:   "valid",
		Attempts: 1,
		Duration: 420 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_FillsIDAndTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewStore(db, testLogger())

	mock.ExpectExec("INSERT INTO search_history").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.Record(t.Context(), Entry{Question: "q", Status: "failed", ErrorKind: "repair_exhausted"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewStore(db, testLogger())

	when := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "question", "cypher", "status", "attempts", "duration_ms", "error_kind", "created_at"}).
		AddRow("h-2", "encounters", "MATCH (e:Encounter) RETURN e", "valid", 0, int64(95), nil, when).
		AddRow("h-1", "nonsense", "BROKEN", "failed", 3, int64(2100), "repair_exhausted", when.Add(-time.Hour))

	mock.ExpectQuery("SELECT id, question, cypher, status, attempts, duration_ms, error_kind, created_at FROM search_history").
		WillReturnRows(rows)

	entries, err := store.Recent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "h-2", entries[0].ID)
	assert.Equal(t, 95*time.Millisecond, entries[0].Duration)
	assert.Empty(t, entries[0].ErrorKind)

	assert.Equal(t, "repair_exhausted", entries[1].ErrorKind)
	assert.Equal(t, 3, entries[1].Attempts)

	require.NoError(t, mock.ExpectationsWereMet())
}
