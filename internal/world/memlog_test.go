package world

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLogSequencing(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	seq, err := l.Append(ctx, "lounge", Message{Role: RoleUser, Content: "one"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	seq, err = l.Append(ctx, "lounge", Message{Role: RoleUser, Content: "two"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	// Each building sequences independently.
	seq, err = l.Append(ctx, "booth", Message{Role: RoleHost, Content: "opening"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	last, err := l.LastSeq(ctx, "lounge")
	require.NoError(t, err)
	assert.Equal(t, int64(2), last)

	last, err = l.LastSeq(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)
}

func TestMemoryLogReadReturnsCopy(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()
	_, err := l.Append(ctx, "lounge", Message{Role: RoleUser, Content: "one"})
	require.NoError(t, err)

	msgs, err := l.Read(ctx, "lounge")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].CreatedAt.IsZero())

	msgs[0].Content = "mutated"
	again, _ := l.Read(ctx, "lounge")
	assert.Equal(t, "one", again[0].Content)
}

func TestAudibleTo(t *testing.T) {
	m := Message{HeardBy: []string{"mira", "zed"}}
	assert.True(t, m.AudibleTo("mira"))
	assert.False(t, m.AudibleTo("kai"))

	empty := Message{}
	assert.False(t, empty.AudibleTo("mira"))
}
