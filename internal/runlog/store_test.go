package runlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBeginFinishGet(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	started := time.Date(2025, 4, 15, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Begin(ctx, Run{
		ID: "r1", From: "2025-04-07", To: "2025-04-14", Products: []string{"odcv"}, Source: "gong", StartedAt: started,
	}))
	r, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, r.Status)
	assert.Nil(t, r.FinishedAt)
	assert.Equal(t, []string{"odcv"}, r.Products)
	assert.True(t, started.Equal(r.StartedAt))

	require.NoError(t, s.Finish(ctx, "r1", Outcome{
		Status: StatusPartial, FinishedAt: started.Add(time.Minute),
		TotalCalls: 10, IncludedCalls: 4, TotalUtterances: 50, IncludedUtterances: 12,
		Err: errors.New("fetch interrupted"),
	}))
	r, err = s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, r.Status)
	require.NotNil(t, r.FinishedAt)
	assert.True(t, started.Add(time.Minute).Equal(*r.FinishedAt))
	assert.Equal(t, 10, r.TotalCalls)
	assert.Equal(t, 4, r.IncludedCalls)
	assert.Equal(t, 12, r.IncludedUtterances)
	assert.Equal(t, "fetch interrupted", r.Error)
}

func TestUnknownRun(t *testing.T) {
	s := openTemp(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Finish(context.Background(), "missing", Outcome{Status: StatusFailed}), ErrNotFound)
}

func TestRecentIsNewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Begin(ctx, Run{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}))
	}
	runs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Begin(context.Background(), Run{ID: "keep", StartedAt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "keep", runs[0].ID)
}
