package schedule

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonai/ybt-sub000/src/artifact"
	"github.com/resonai/ybt-sub000/src/builder/filegroup"
	"github.com/resonai/ybt-sub000/src/cache"
	"github.com/resonai/ybt-sub000/src/core"
	"github.com/resonai/ybt-sub000/src/fingerprint"
	"github.com/resonai/ybt-sub000/src/imagecache"
)

func newTestEnv(t *testing.T) (root string, reg *core.BuilderRegistry, conf *core.Configuration) {
	root = t.TempDir()
	reg = core.NewBuilderRegistry()
	require.NoError(t, filegroup.Register(reg))
	conf = core.DefaultConfiguration()
	return
}

func newTwoTier(t *testing.T, root string) *cache.TwoTier {
	local, err := cache.NewLocalCache(filepath.Join(root, "ybtwork", ".cache"), 1024, 512)
	require.NoError(t, err)
	return &cache.TwoTier{Local: local}
}

func fingerprintGraph(t *testing.T, graph *core.Graph, root string) {
	_, err := fingerprint.NewFingerprinter(graph, root).FingerprintAll()
	require.NoError(t, err)
}

func TestSchedulerBuildsFilegroupAndCachesIt(t *testing.T) {
	root, reg, conf := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.h"), []byte("int a;"), 0644))

	graph := core.NewGraph()
	call := core.Call{
		BuilderName: filegroup.BuilderName,
		Keyword: map[string]core.RawValue{
			"name": "headers",
			"srcs": []interface{}{"a.h"},
		},
	}
	spec, err := core.NewExtractor(reg).Extract(call, core.ResolveContext{})
	require.NoError(t, err)
	require.NoError(t, graph.AddTarget(spec))
	fingerprintGraph(t, graph, root)

	twoTier := newTwoTier(t, root)
	classifier := imagecache.NewClassifier(graph, false)

	sched1 := NewScheduler(graph, reg, conf, root, twoTier, classifier)
	result1, err := sched1.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.QualifiedName{{Module: "", Local: "headers"}}, result1.Succeeded)
	assert.Empty(t, result1.CacheHits)
	// Frozen only once its build function has returned (§3 Lifecycle),
	// not at evaluation time.
	assert.True(t, spec.Frozen())

	dest := filepath.Join(sched1.outputRoot(), "a.h")
	assert.FileExists(t, dest)

	sched2 := NewScheduler(graph, reg, conf, root, twoTier, classifier)
	result2, err := sched2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.QualifiedName{{Module: "", Local: "headers"}}, result2.CacheHits)
	assert.Empty(t, result2.Succeeded)
}

// countingBuilder is a minimal test-only plug-in that always succeeds
// unless its target's name is in failNames, letting tests exercise
// continue-after-fail propagation without needing a real compiler.
func registerCountingBuilder(t *testing.T, reg *core.BuilderRegistry, failNames map[string]bool, calls map[string]int) {
	sig := core.BuilderSignature{
		BuilderName: "noop",
		Cachable:    false,
		Params: []core.ParamSpec{
			{Name: "name", Type: core.TypeTargetName},
			{Name: "deps", Type: core.TypeTargetRefList, Default: &core.PropValue{Type: core.TypeTargetRefList}},
		},
	}
	require.NoError(t, reg.RegisterBuilderSig(sig))
	require.NoError(t, reg.RegisterBuildFunc("noop", func(ctx context.Context, bctx core.BuildContext, spec *core.TargetSpec) error {
		calls[spec.Name.Local]++
		spec.Artifacts = artifact.NewStore()
		if failNames[spec.Name.Local] {
			return assertError{spec.Name.Local}
		}
		return nil
	}))
}

type assertError struct{ name string }

func (e assertError) Error() string { return "forced failure for " + e.name }

func addNoopTarget(t *testing.T, graph *core.Graph, reg *core.BuilderRegistry, name string, deps []string) {
	refs := make([]interface{}, len(deps))
	for i, d := range deps {
		refs[i] = ":" + d
	}
	call := core.Call{
		BuilderName: "noop",
		Keyword: map[string]core.RawValue{
			"name": name,
			"deps": refs,
		},
	}
	spec, err := core.NewExtractor(reg).Extract(call, core.ResolveContext{})
	require.NoError(t, err)
	require.NoError(t, graph.AddTarget(spec))
}

func TestSchedulerContinueAfterFailSkipsOnlyDescendants(t *testing.T) {
	root, reg, conf := newTestEnv(t)
	calls := map[string]int{}
	registerCountingBuilder(t, reg, map[string]bool{"a": true}, calls)

	graph := core.NewGraph()
	addNoopTarget(t, graph, reg, "a", nil)
	addNoopTarget(t, graph, reg, "c", []string{"a"})
	addNoopTarget(t, graph, reg, "b", nil)
	addNoopTarget(t, graph, reg, "d", []string{"b"})
	fingerprintGraph(t, graph, root)

	twoTier := newTwoTier(t, root)
	classifier := imagecache.NewClassifier(graph, false)
	sched := NewScheduler(graph, reg, conf, root, twoTier, classifier)
	sched.ContinueAfterFail = true

	result, err := sched.Run(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []core.QualifiedName{{Local: "a"}}, result.Failed)
	assert.ElementsMatch(t, []core.QualifiedName{{Local: "c"}}, result.Skipped)
	assert.ElementsMatch(t, []core.QualifiedName{{Local: "b"}, {Local: "d"}}, result.Succeeded)
	assert.Equal(t, 0, calls["c"]) // never invoked once skipped
}

func TestSchedulerAbortsWithoutContinueAfterFail(t *testing.T) {
	root, reg, conf := newTestEnv(t)
	calls := map[string]int{}
	registerCountingBuilder(t, reg, map[string]bool{"a": true}, calls)

	graph := core.NewGraph()
	addNoopTarget(t, graph, reg, "a", nil)
	addNoopTarget(t, graph, reg, "c", []string{"a"})
	fingerprintGraph(t, graph, root)

	twoTier := newTwoTier(t, root)
	classifier := imagecache.NewClassifier(graph, false)
	sched := NewScheduler(graph, reg, conf, root, twoTier, classifier)

	result, err := sched.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, core.BuilderFailed, core.KindOf(err))
	assert.ElementsMatch(t, []core.QualifiedName{{Local: "a"}}, result.Failed)
}
