package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/GoPolymarket/safeboard/internal/model"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRunJournalNewestFirst(t *testing.T) {
	j := NewMemoryRunJournal(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, &model.RunRecord{ID: fmt.Sprintf("run-%d", i)}))
	}

	got, err := j.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "run-4", got[0].ID)
	assert.Equal(t, "run-3", got[1].ID)
	assert.Equal(t, "run-2", got[2].ID)

	got, err = j.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "run-4", got[0].ID)
}

func TestMemoryRunJournalCopies(t *testing.T) {
	j := NewMemoryRunJournal(2)
	rec := &model.RunRecord{ID: "a", Status: model.RunStatusFailed}
	require.NoError(t, j.Record(context.Background(), rec))
	rec.Status = model.RunStatusSucceeded

	got, err := j.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.RunStatusFailed, got[0].Status)
}

func TestLocalOperatorLock(t *testing.T) {
	l := NewLocalOperatorLock()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "0xabc")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "0xabc")
	assert.True(t, apperrors.IsType(err, apperrors.ErrLocked))

	other, err := l.Acquire(ctx, "0xdef")
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := l.Acquire(ctx, "0xabc")
	require.NoError(t, err)
	again()
}
