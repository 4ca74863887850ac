package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, path, s.Path())
	assert.FileExists(t, path)

	for _, table := range []string{"runs", "suites", "tests"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %q", table)
	}
}

func TestOpen_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.BeginRun(ctx, "run-1", time.Unix(100, 0)))
	require.NoError(t, s.WriteSuite(ctx, "run-1", 0, createTestSuite("a.yaml")))
	require.NoError(t, s.Close())

	for i := 0; i < 2; i++ {
		s, err = Open(path)
		require.NoError(t, err, "reopen %d", i)
		require.NoError(t, s.Close())
	}

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	suites, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, suites, 1)
	assert.Len(t, suites[0].Tests, 2)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	want := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"user_version": "1",
	}
	for name, value := range want {
		got, err := s.pragma(name)
		require.NoError(t, err)
		assert.Equal(t, value, got, name)
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	if s != nil {
		s.Close()
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaTooNew)
	assert.Contains(t, err.Error(), "version 99")
}

func TestForeignKeys_DeleteRunCascades(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginRun(ctx, "run-1", time.Unix(100, 0)))
	require.NoError(t, s.WriteSuite(ctx, "run-1", 0, createTestSuite("a.yaml")))

	_, err := s.db.Exec("DELETE FROM runs WHERE id = ?", "run-1")
	require.NoError(t, err)

	var suites, tests int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM suites").Scan(&suites))
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM tests").Scan(&tests))
	assert.Zero(t, suites)
	assert.Zero(t, tests)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}
