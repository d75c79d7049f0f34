package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func name(s string) QualifiedName {
	return QualifiedName{Module: "m", Local: s}
}

func spec(s string, deps ...string) *TargetSpec {
	t := &TargetSpec{Name: name(s)}
	for _, d := range deps {
		t.AddDep(name(d))
	}
	return t
}

func TestGraphDuplicateTarget(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddTarget(spec("a")))
	err := g.AddTarget(spec("a"))
	require.Error(t, err)
	assert.Equal(t, DuplicateTarget, KindOf(err))
}

func TestGraphCheckCompleteMissingDep(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddTarget(spec("a", "b")))
	err := g.CheckComplete()
	require.Error(t, err)
	assert.Equal(t, UnknownTarget, KindOf(err))
}

func TestGraphStableOrderDependenciesFirst(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddTarget(spec("app", "liba", "libb")))
	require.NoError(t, g.AddTarget(spec("liba", "libb")))
	require.NoError(t, g.AddTarget(spec("libb")))

	order, err := g.StableOrder()
	require.NoError(t, err)
	require.Len(t, order, 3)
	pos := map[string]int{}
	for i, n := range order {
		pos[n.Local] = i
	}
	assert.Less(t, pos["libb"], pos["liba"])
	assert.Less(t, pos["liba"], pos["app"])
}

func TestGraphStableOrderIsDeterministic(t *testing.T) {
	build := func() []QualifiedName {
		g := NewGraph()
		require.NoError(t, g.AddTarget(spec("app", "libb", "liba")))
		require.NoError(t, g.AddTarget(spec("liba")))
		require.NoError(t, g.AddTarget(spec("libb")))
		order, err := g.StableOrder()
		require.NoError(t, err)
		return order
	}
	first := build()
	second := build()
	assert.Equal(t, first, second)
	// Lexicographic tie-break: liba sorts before libb regardless of
	// declaration order in "app"'s deps.
	pos := map[string]int{}
	for i, n := range first {
		pos[n.Local] = i
	}
	assert.Less(t, pos["liba"], pos["libb"])
}

func TestGraphCycleOfLengthTwo(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddTarget(spec("a", "b")))
	require.NoError(t, g.AddTarget(spec("b", "a")))
	_, err := g.StableOrder()
	require.Error(t, err)
	assert.Equal(t, CycleDetected, KindOf(err))
	path := CyclePath(err)
	assert.Contains(t, path, name("a").String())
	assert.Contains(t, path, name("b").String())
}

func TestGraphDescendantsCachedLazily(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddTarget(spec("app", "liba")))
	require.NoError(t, g.AddTarget(spec("liba", "libb")))
	require.NoError(t, g.AddTarget(spec("libb")))

	desc := g.Descendants(name("app"))
	assert.True(t, desc[name("liba")])
	assert.True(t, desc[name("libb")])
	assert.Len(t, desc, 2)

	// Zero-dep target has an empty descendant set.
	assert.Empty(t, g.Descendants(name("libb")))
}

func TestGraphZeroDepsTarget(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddTarget(spec("lonely")))
	order, err := g.StableOrder()
	require.NoError(t, err)
	assert.Equal(t, []QualifiedName{name("lonely")}, order)
}
