package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_ParseAndString(t *testing.T) {
	tests := []struct {
		in   Scope
		want string
	}{
		{Static(), "static"},
		{Global(), "global"},
		{Phase("outline"), "phase:outline"},
		{Team("writers"), "team:writers"},
		{Action("draft-1"), "action:draft-1"},
		{Named("chronicle"), "store:chronicle"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.String())
		parsed, err := Parse(tt.want)
		require.NoError(t, err)
		assert.Equal(t, tt.in, parsed)
	}
}

func TestScope_ParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "phase", "static:x", "global:y", "bogus:z", "store"} {
		_, err := Parse(in)
		assert.Error(t, err, "expected %q to be rejected", in)
	}
}

func TestStore_UndefinedKeyIsEmptySentinel(t *testing.T) {
	s := NewStore()
	assert.Equal(t, "", s.Get(Global(), "nothing"))
	assert.Empty(t, s.GetAllInScope(Phase("p1")))
}

func TestStore_SetGet(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set(Global(), "outline", "X"))
	require.NoError(t, s.Set(Phase("draft"), "text", "Y"))

	assert.Equal(t, "X", s.Get(Global(), "outline"))
	assert.Equal(t, "Y", s.Get(Phase("draft"), "text"))
	assert.Equal(t, "", s.Get(Phase("other"), "text"), "scopes are isolated")
}

func TestStore_StaticIsWriteOnce(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set(Static(), "premise", "a story about tides"))

	err := s.Set(Static(), "premise", "something else")
	require.ErrorIs(t, err, ErrStaticRewrite)
	assert.Equal(t, "a story about tides", s.Get(Static(), "premise"))

	// A different static key is still writable.
	require.NoError(t, s.Set(Static(), "tone", "wistful"))
}

func TestStore_RejectsInvalidWrites(t *testing.T) {
	s := NewStore()
	assert.Error(t, s.Set(Scope{Kind: "bogus"}, "k", "v"))
	assert.Error(t, s.Set(Global(), "", "v"))
}

func TestStore_ClearRunScopedKeepsDurable(t *testing.T) {
	d := NewMemDurable()
	s := NewStore(WithDurable(d))

	require.NoError(t, s.Set(Global(), "outline", "X"))
	require.NoError(t, s.Set(Named("chronicle"), "era", "third age"))

	s.ClearRunScoped()

	assert.Equal(t, "", s.Get(Global(), "outline"))
	assert.Equal(t, "third age", s.Get(Named("chronicle"), "era"))
}

func TestStore_DurableWriteThroughAndReload(t *testing.T) {
	d := NewMemDurable()

	s1 := NewStore(WithDurable(d))
	require.NoError(t, s1.Set(Named("chronicle"), "era", "third age"))

	// A fresh store over the same backend sees the write: this is the
	// process-restart path.
	s2 := NewStore(WithDurable(d))
	assert.Equal(t, "third age", s2.Get(Named("chronicle"), "era"))
}

func TestFileDurable_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	d1, err := NewFileDurable(dir)
	require.NoError(t, err)
	require.NoError(t, d1.Save("chronicle", "era", "third age"))
	require.NoError(t, d1.Save("chronicle", "ruler", "the regent"))
	require.NoError(t, d1.Save("gazetteer", "capital", "Low Harbor"))

	d2, err := NewFileDurable(dir)
	require.NoError(t, err)

	vals, err := d2.Load("chronicle")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"era": "third age", "ruler": "the regent"}, vals)

	other, err := d2.Load("gazetteer")
	require.NoError(t, err)
	assert.Equal(t, "Low Harbor", other["capital"])
}

func TestFileDurable_MissingStoreLoadsEmpty(t *testing.T) {
	d, err := NewFileDurable(t.TempDir())
	require.NoError(t, err)

	vals, err := d.Load("never-written")
	require.NoError(t, err)
	assert.Empty(t, vals)
}

func TestFileDurable_LastWriterWins(t *testing.T) {
	d, err := NewFileDurable(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, d.Save("chronicle", "era", "second age"))
	require.NoError(t, d.Save("chronicle", "era", "third age"))

	vals, err := d.Load("chronicle")
	require.NoError(t, err)
	assert.Equal(t, "third age", vals["era"])
}
