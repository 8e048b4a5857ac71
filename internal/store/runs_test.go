package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/extend/pkg/types"
)

func TestStore_Runs(t *testing.T) {
	ctx := context.Background()
	s := openSQLiteStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	runs := []types.RunRecord{
		{RunID: "r1", StartedAt: base, FinishedAt: base.Add(time.Second), Status: types.RunStatusSucceeded, Entities: 3},
		{RunID: "r2", Target: "Extend\\Entity\\CV1", StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute), Status: types.RunStatusFailed, Error: "boom"},
	}
	for _, r := range runs {
		require.NoError(t, s.RecordRun(ctx, r))
	}

	got, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].RunID, "newest first")
	assert.Equal(t, "Extend\\Entity\\CV1", got[0].Target)
	assert.Equal(t, "boom", got[0].Error)
	assert.Equal(t, 3, got[1].Entities)
	assert.True(t, base.Equal(got[1].StartedAt))

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	assert.ErrorIs(t, s.RecordRun(ctx, types.RunRecord{}), types.ErrInvalidID)
}
