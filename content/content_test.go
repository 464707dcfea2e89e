package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rec := NewRecord(KindProposal, "abc123", map[string]interface{}{"title": "hello"})
	require.NotEmpty(t, rec.ID)
	require.NoError(t, m.Put(ctx, rec))

	got, err := m.Get(ctx, KindProposal, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "abc123", got.Author)
	assert.Equal(t, "hello", got.Fields["title"])

	// Kinds are isolated namespaces.
	_, err = m.Get(ctx, KindVote, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := m.List(ctx, KindProposal)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRecordIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		rec := NewRecord(KindJournal, "author", nil)
		require.False(t, seen[rec.ID])
		seen[rec.ID] = true
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, k.Valid())
	}
	assert.False(t, Kind("wiki").Valid())
}

func TestMemoryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemory()
	assert.Error(t, m.Put(ctx, NewRecord(KindComment, "a", nil)))
	_, err := m.Get(ctx, KindComment, "x")
	assert.Error(t, err)
}
