package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/elsai-console/constants"
)

func TestOpenSelectsStore(t *testing.T) {
	ctx := context.Background()

	r, err := Open(ctx, Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, NoopRecorder{}, r)

	_, err = Open(ctx, Config{DSN: "mysql://nope"}, nil)
	assert.Error(t, err)

	r, err = Open(ctx, Config{DSN: "sqlite://" + filepath.Join(t.TempDir(), "runs.db")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteRecorder{}, r)
	require.NoError(t, r.Close())
}

func TestSQLiteRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	r, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	defer r.Close()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	first := Run{
		ID:        uuid.New(),
		Backend:   constants.BackendAWSTextract,
		FileName:  "sample.pdf",
		FileExt:   "pdf",
		FileSize:  1234,
		SHA256:    "abc",
		Status:    constants.RunStatusFailed,
		ErrorCode: "BACKEND_CALL_FAILED",
		StartedAt: base, FinishedAt: base.Add(time.Second),
	}
	second := Run{
		ID:        uuid.New(),
		Backend:   constants.BackendLlamaParser,
		FileName:  "data.csv",
		FileExt:   "csv",
		Status:    constants.RunStatusOK,
		Method:    "csv-load",
		TextBytes: 42,
		StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute + time.Second),
	}
	require.NoError(t, r.Record(ctx, first))
	require.NoError(t, r.Record(ctx, second))

	runs, err := r.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, constants.BackendLlamaParser, runs[0].Backend)
	assert.Equal(t, 42, runs[0].TextBytes)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, constants.RunStatusFailed, runs[1].Status)
	assert.True(t, first.StartedAt.Equal(runs[1].StartedAt))

	runs, err = r.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLiteRecentOrdersSubSecondTimes(t *testing.T) {
	ctx := context.Background()
	r, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	defer r.Close()

	base := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	older := Run{ID: uuid.New(), Backend: constants.BackendVisionAI, FileName: "older.pdf", Status: constants.RunStatusOK,
		StartedAt: base, FinishedAt: base.Add(100 * time.Millisecond)}
	newer := Run{ID: uuid.New(), Backend: constants.BackendVisionAI, FileName: "newer.pdf", Status: constants.RunStatusOK,
		StartedAt: base.Add(500 * time.Millisecond), FinishedAt: base.Add(time.Second)}
	require.NoError(t, r.Record(ctx, older))
	require.NoError(t, r.Record(ctx, newer))

	runs, err := r.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer.pdf", runs[0].FileName)
	assert.Equal(t, "older.pdf", runs[1].FileName)
	assert.True(t, newer.StartedAt.Equal(runs[0].StartedAt))
	assert.True(t, older.FinishedAt.Equal(runs[1].FinishedAt))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 50, clampLimit(0))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, maxRecent, clampLimit(10_000))
}
