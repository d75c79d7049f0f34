package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonai/ybt-sub000/src/core"
)

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

func writeBuildFile(t *testing.T, dir, contents string) string {
	path := filepath.Join(dir, "YBuild")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestEvaluateFileRegistersTarget(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.cc"), []byte("int main(){}"), 0644))
	path := writeBuildFile(t, dir, `cc_library(name = "foo", srcs = ["foo.cc"])`)

	reg := testRegistry(t)
	graph := core.NewGraph()
	ev := NewEvaluator(core.NewExtractor(reg), graph)

	require.NoError(t, ev.EvaluateFile(path, "m"))

	target := graph.Target(core.QualifiedName{Module: "m", Local: "foo"})
	require.NotNil(t, target)
	assert.Equal(t, []string{"m/foo.cc"}, target.Props["srcs"].List)
}

func TestEvaluateFileIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeBuildFile(t, dir, `cc_library(name = "foo")`)

	reg := testRegistry(t)
	graph := core.NewGraph()
	ev := NewEvaluator(core.NewExtractor(reg), graph)

	require.NoError(t, ev.EvaluateFile(path, "m"))
	require.NoError(t, ev.EvaluateFile(path, "m")) // re-entry is a no-op, not a duplicate-target error

	assert.Equal(t, 1, graph.Len())
}

func TestEvaluateFileWithGlob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cc"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cc"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte(""), 0644))
	path := writeBuildFile(t, dir, `cc_library(name = "foo", srcs = glob(["*.cc"]))`)

	reg := testRegistry(t)
	graph := core.NewGraph()
	ev := NewEvaluator(core.NewExtractor(reg), graph)
	require.NoError(t, ev.EvaluateFile(path, "m"))

	target := graph.Target(core.QualifiedName{Module: "m", Local: "foo"})
	require.NotNil(t, target)
	assert.ElementsMatch(t, []string{"m/a.cc", "m/b.cc"}, target.Props["srcs"].List)
}

func TestEvaluateFileUnknownBuilderFails(t *testing.T) {
	dir := t.TempDir()
	path := writeBuildFile(t, dir, `mystery(name = "foo")`)

	reg := testRegistry(t)
	graph := core.NewGraph()
	ev := NewEvaluator(core.NewExtractor(reg), graph)

	err := ev.EvaluateFile(path, "m")
	assert.Error(t, err)
}

func TestGlobToRegexpDoubleStar(t *testing.T) {
	re := globToRegexp("**/*.go")
	assert.True(t, re.MatchString("a/b/c.go"))
	assert.True(t, re.MatchString("c.go"))
	assert.False(t, re.MatchString("c.txt"))
}
