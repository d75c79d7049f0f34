package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDuplicateDestinationDifferentSourceErrors(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(KindObject, "out.o", "a.c"))
	err := s.Add(KindObject, "out.o", "b.c")
	assert.Error(t, err)
}

func TestAddDuplicateDestinationSameSourceIsIdempotent(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(KindObject, "out.o", "a.c"))
	require.NoError(t, s.Add(KindObject, "out.o", "a.c"))
	assert.Len(t, s.Destinations(KindObject), 1)
}

func TestAddUnknownKindErrors(t *testing.T) {
	s := NewStore()
	err := s.Add(Kind("bogus"), "x", "y")
	assert.Error(t, err)
}

func TestIsEmpty(t *testing.T) {
	s := NewStore()
	assert.True(t, s.IsEmpty())
	require.NoError(t, s.Add(KindBinary, "bin/x", "x"))
	assert.False(t, s.IsEmpty())
}

func TestAllSortedByKindThenDest(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(KindBinary, "bin/z", "z"))
	require.NoError(t, s.Add(KindBinary, "bin/a", "a"))
	require.NoError(t, s.Add(KindApp, "app/a", "a"))

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, KindApp, all[0].Kind)
	assert.Equal(t, KindBinary, all[1].Kind)
	assert.Equal(t, "bin/a", all[1].Dest)
	assert.Equal(t, "bin/z", all[2].Dest)
}

func TestMaterializeHardlinksIntoWorkspace(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "src.txt"), []byte("hello"), 0644))

	s := NewStore()
	require.NoError(t, s.Add(KindBinary, "bin/out.txt", "src.txt"))

	workspace := t.TempDir()
	require.NoError(t, s.Materialize(root, workspace))

	contents, err := os.ReadFile(filepath.Join(workspace, "bin/out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(contents))
}

func TestPropagationForKnownKind(t *testing.T) {
	p, ok := PropagationFor(KindApp)
	require.True(t, ok)
	assert.Equal(t, "/usr/src/app", p.StagedUnder)
}
