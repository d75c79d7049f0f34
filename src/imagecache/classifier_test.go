package imagecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonai/ybt-sub000/src/core"
)

type fakeProber struct {
	cached map[string]bool
}

func (f fakeProber) CachedOrPullable(ref string) bool {
	return f.cached[ref]
}

func iname(s string) core.QualifiedName { return core.QualifiedName{Module: "images", Local: s} }

// buildS5Graph reproduces spec scenario S5: builder-base is a cached
// image target depending on build-tools, tools, unzip, ubuntu. builder
// derives from builder-base and needs nothing beyond it. an-image is an
// unrelated image target with no cached base.
func buildS5Graph(t *testing.T) *core.Graph {
	g := core.NewGraph()

	leafNames := []string{"build-tools", "tools", "unzip", "ubuntu"}
	for _, n := range leafNames {
		require.NoError(t, g.AddTarget(&core.TargetSpec{Name: iname(n), BuilderName: "noop"}))
	}

	base := &core.TargetSpec{
		Name:        iname("builder-base"),
		BuilderName: "image",
		Props: core.PropMap{
			TagProp: {Type: core.TypeString, Str: "registry/builder-base:latest"},
		},
	}
	for _, n := range leafNames {
		base.AddDep(iname(n))
	}
	require.NoError(t, g.AddTarget(base))

	builder := &core.TargetSpec{
		Name:        iname("builder"),
		BuilderName: "image",
		Props: core.PropMap{
			TagProp:       {Type: core.TypeString, Str: "registry/builder:latest"},
			BaseImageProp: {Type: core.TypeTargetRef, Refs: []core.QualifiedName{iname("builder-base")}},
		},
	}
	builder.AddDep(iname("builder-base"))
	for _, n := range leafNames {
		builder.AddDep(iname(n))
	}
	require.NoError(t, g.AddTarget(builder))

	unrelatedLeaf := &core.TargetSpec{Name: iname("something-else"), BuilderName: "noop"}
	require.NoError(t, g.AddTarget(unrelatedLeaf))
	anImage := &core.TargetSpec{
		Name:        iname("an-image"),
		BuilderName: "image",
		Props: core.PropMap{
			TagProp: {Type: core.TypeString, Str: "registry/an-image:latest"},
		},
	}
	anImage.AddDep(iname("something-else"))
	require.NoError(t, g.AddTarget(anImage))

	return g
}

func TestClassifyPreBuiltMatchesBaseDeps(t *testing.T) {
	g := buildS5Graph(t)
	c := &Classifier{
		Graph: g,
		Prober: fakeProber{cached: map[string]bool{
			"registry/builder-base:latest": true,
		}},
	}
	prebuilt, err := c.Classify()
	require.NoError(t, err)

	assert.True(t, prebuilt[iname("build-tools")])
	assert.True(t, prebuilt[iname("tools")])
	assert.True(t, prebuilt[iname("unzip")])
	assert.True(t, prebuilt[iname("ubuntu")])
	assert.False(t, prebuilt[iname("builder-base")])
	assert.False(t, prebuilt[iname("builder")])
}

func TestClassifyAnImageWithNoCachedBaseIsEmpty(t *testing.T) {
	g := buildS5Graph(t)
	c := &Classifier{
		Graph:  g,
		Prober: fakeProber{cached: map[string]bool{}}, // nothing cached
	}
	prebuilt, err := c.Classify()
	require.NoError(t, err)
	assert.Empty(t, prebuilt)
}

func TestClassifyForceRebuildReturnsEmptySet(t *testing.T) {
	g := buildS5Graph(t)
	c := &Classifier{
		Graph:        g,
		Prober:       fakeProber{cached: map[string]bool{"registry/builder-base:latest": true}},
		ForceRebuild: true,
	}
	prebuilt, err := c.Classify()
	require.NoError(t, err)
	assert.Empty(t, prebuilt)
}
