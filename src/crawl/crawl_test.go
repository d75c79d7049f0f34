package crawl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonai/ybt-sub000/src/core"
	"github.com/resonai/ybt-sub000/src/parse"
)

const buildFileName = "YBuild"

func testRegistry(t *testing.T) *core.BuilderRegistry {
	reg := core.NewBuilderRegistry()
	sig := core.BuilderSignature{
		BuilderName: "cc_library",
		Cachable:    true,
		Params: []core.ParamSpec{
			{Name: "name", Type: core.TypeTargetName},
			{Name: "srcs", Type: core.TypeFilePathList, Default: &core.PropValue{Type: core.TypeFilePathList}},
			{Name: "deps", Type: core.TypeTargetRefList, Default: &core.PropValue{Type: core.TypeTargetRefList}},
		},
	}
	require.NoError(t, reg.RegisterBuilderSig(sig))
	return reg
}

func writeModule(t *testing.T, root, module, contents string) {
	dir := filepath.Join(root, module)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, buildFileName), []byte(contents), 0644))
}

func newCrawler(t *testing.T, root string) *Crawler {
	reg := testRegistry(t)
	graph := core.NewGraph()
	ev := parse.NewEvaluator(core.NewExtractor(reg), graph)
	return NewCrawler(root, buildFileName, ev, graph)
}

func TestCrawlConcreteSeedKeepsOnlyItsClosure(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "", `cc_library(name = "root")`)
	writeModule(t, root, "liba", `cc_library(name = "a", deps = ["//libb:b"])`)
	writeModule(t, root, "libb", `cc_library(name = "b")`)
	writeModule(t, root, "unrelated", `cc_library(name = "c")`)

	c := newCrawler(t, root)
	seed := core.QualifiedName{Module: "liba", Local: "a"}
	require.NoError(t, c.Crawl([]core.QualifiedName{seed}))

	assert.True(t, c.Graph.Has(seed))
	assert.True(t, c.Graph.Has(core.QualifiedName{Module: "libb", Local: "b"}))
	assert.False(t, c.Graph.Has(core.QualifiedName{Module: "unrelated", Local: "c"}))
}

func TestCrawlModuleWildcardKeepsAllTargetsInModule(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "", `cc_library(name = "root")`)
	writeModule(t, root, "libs", `cc_library(name = "a")
cc_library(name = "b")`)

	c := newCrawler(t, root)
	require.NoError(t, c.Crawl([]core.QualifiedName{{Module: "libs", Local: "*"}}))

	assert.True(t, c.Graph.Has(core.QualifiedName{Module: "libs", Local: "a"}))
	assert.True(t, c.Graph.Has(core.QualifiedName{Module: "libs", Local: "b"}))
}

func TestCrawlRecursiveWildcardExpandsAllModules(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "", `cc_library(name = "root")`)
	writeModule(t, root, "a", `cc_library(name = "a")`)
	writeModule(t, root, "a/b", `cc_library(name = "b")`)

	c := newCrawler(t, root)
	require.NoError(t, c.Crawl([]core.QualifiedName{{Module: "", Local: "**"}}))

	assert.True(t, c.Graph.Has(core.QualifiedName{Module: "a", Local: "a"}))
	assert.True(t, c.Graph.Has(core.QualifiedName{Module: "a/b", Local: "b"}))
}

func TestCrawlPrunesPhonyAndTaggedTargets(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "", `cc_library(name = "root")`)
	writeModule(t, root, "libs", `cc_library(name = "@phony")
cc_library(name = "tagged")
cc_library(name = "kept")`)

	c := newCrawler(t, root)
	require.NoError(t, c.Evaluator.Extractor.Registry.RegisterManipulateTargetHook("cc_library", func(spec *core.TargetSpec) error {
		if spec.Name.Local == "tagged" {
			spec.AddTag("prune-me")
		}
		return nil
	}))
	require.NoError(t, c.Crawl([]core.QualifiedName{{Module: "libs", Local: "*"}}))

	assert.False(t, c.Graph.Has(core.QualifiedName{Module: "libs", Local: "@phony"}))
	assert.False(t, c.Graph.Has(core.QualifiedName{Module: "libs", Local: "tagged"}))
	assert.True(t, c.Graph.Has(core.QualifiedName{Module: "libs", Local: "kept"}))
}

func TestCrawlUnknownTargetErrors(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "", `cc_library(name = "root")`)
	writeModule(t, root, "libs", `cc_library(name = "a")`)

	c := newCrawler(t, root)
	err := c.Crawl([]core.QualifiedName{{Module: "libs", Local: "nonexistent"}})
	assert.Error(t, err)
	assert.Equal(t, core.UnknownTarget, core.KindOf(err))
}

func TestCrawlAggregatesMultipleBadSeeds(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "", `cc_library(name = "root")`)
	writeModule(t, root, "libs", `cc_library(name = "a")`)

	c := newCrawler(t, root)
	err := c.Crawl([]core.QualifiedName{
		{Module: "libs", Local: "nonexistent-one"},
		{Module: "libs", Local: "nonexistent-two"},
	})
	require.Error(t, err)
	// Neither bad seed short-circuited the other: both names show up in
	// the aggregated message instead of just the first one encountered.
	assert.Contains(t, err.Error(), "nonexistent-one")
	assert.Contains(t, err.Error(), "nonexistent-two")
}
