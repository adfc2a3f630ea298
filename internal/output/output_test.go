package output

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_VersionsIncrement(t *testing.T) {
	m := NewManager()

	v1, err := m.Write("draft", "first pass", "drafter")
	require.NoError(t, err)
	v2, err := m.Write("draft", "second pass", "reviser")
	require.NoError(t, err)

	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, "reviser", v2.UpdatedBy)
}

func TestWrite_Validation(t *testing.T) {
	m := NewManager()
	_, err := m.Write("", "content", "author")
	assert.Error(t, err)
	_, err = m.Write("draft", "content", "")
	assert.Error(t, err)
}

func TestRead_CurrentAndSpecific(t *testing.T) {
	m := NewManager()
	_, err := m.Write("draft", "one", "a")
	require.NoError(t, err)
	_, err = m.Write("draft", "two", "a")
	require.NoError(t, err)

	cur, ok := m.Read("draft")
	require.True(t, ok)
	assert.Equal(t, "two", cur.Content)

	old, ok := m.ReadVersion("draft", 1)
	require.True(t, ok)
	assert.Equal(t, "one", old.Content)

	_, ok = m.ReadVersion("draft", 3)
	assert.False(t, ok)
	_, ok = m.Read("missing")
	assert.False(t, ok)
}

func TestHistory_NewestFirstAndLimited(t *testing.T) {
	m := NewManager()
	for i := 1; i <= 5; i++ {
		_, err := m.Write("draft", fmt.Sprintf("rev %d", i), "a")
		require.NoError(t, err)
	}

	hist := m.History("draft", 3)
	require.Len(t, hist, 3)
	assert.Equal(t, 5, hist[0].Version)
	assert.Equal(t, 3, hist[2].Version)

	full := m.History("draft", 0)
	assert.Len(t, full, 5)
}

func TestWrite_StrictlyIncreasingUnderConcurrency(t *testing.T) {
	m := NewManager()

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := m.Write("draft", "content", fmt.Sprintf("writer-%d", w))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	hist := m.History("draft", 0)
	require.Len(t, hist, writers*perWriter)

	// History is newest first; versions must be a strict descending run.
	for i := 1; i < len(hist); i++ {
		assert.Equal(t, hist[i-1].Version-1, hist[i].Version)
	}
}
