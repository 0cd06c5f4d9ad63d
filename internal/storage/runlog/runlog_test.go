package runlog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/pkg/config"
)

func TestMemoryStore_RecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Append(ctx, Record{ID: fmt.Sprintf("r%d", i), Status: StatusFinished}))
	}
	recs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "r5", recs[0].ID)
	assert.Equal(t, "r4", recs[1].ID)
	assert.Equal(t, "r3", recs[2].ID)

	recs, _ = s.Recent(ctx, 1)
	require.Len(t, recs, 1)
	assert.Equal(t, "r5", recs[0].ID)
}

func TestMemoryStore_Empty(t *testing.T) {
	recs, err := NewMemoryStore(0).Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, config.RunLogConfig{})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, s)

	s, err = New(ctx, config.RunLogConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = New(ctx, config.RunLogConfig{Type: "sqlite"})
	assert.Error(t, err)

	_, err = New(ctx, config.RunLogConfig{Type: "postgres", DSN: "::not a dsn::"})
	assert.Error(t, err)
}
