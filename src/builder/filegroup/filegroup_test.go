package filegroup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resonai/ybt-sub000/src/artifact"
	"github.com/resonai/ybt-sub000/src/core"
)

func extractSpec(t *testing.T, reg *core.BuilderRegistry, call core.Call, ctx core.ResolveContext) *core.TargetSpec {
	spec, err := core.NewExtractor(reg).Extract(call, ctx)
	require.NoError(t, err)
	return spec
}

func TestRegisterAndSignature(t *testing.T) {
	reg := core.NewBuilderRegistry()
	require.NoError(t, Register(reg))

	sig, ok := reg.Signature(BuilderName)
	require.True(t, ok)
	assert.True(t, sig.Cachable)

	fn, ok := reg.BuildFunc(BuilderName)
	require.True(t, ok)
	assert.NotNil(t, fn)
}

func TestBuildDeclaresGeneratedSourceArtifacts(t *testing.T) {
	reg := core.NewBuilderRegistry()
	require.NoError(t, Register(reg))

	call := core.Call{
		BuilderName: BuilderName,
		Keyword: map[string]core.RawValue{
			"name": "headers",
			"srcs": []interface{}{"a.h", "b.h"},
		},
	}
	spec := extractSpec(t, reg, call, core.ResolveContext{CurrentModule: "libs"})

	require.NoError(t, Build(nil, nil, spec))

	store, ok := spec.Artifacts.(*artifact.Store)
	require.True(t, ok)
	assert.False(t, store.IsEmpty())

	dests := store.Destinations(artifact.KindGeneratedSource)
	assert.Equal(t, "libs/a.h", dests["libs/a.h"])
	assert.Equal(t, "libs/b.h", dests["libs/b.h"])
}

func TestBuildWithNoSrcsIsEmpty(t *testing.T) {
	reg := core.NewBuilderRegistry()
	require.NoError(t, Register(reg))

	call := core.Call{
		BuilderName: BuilderName,
		Keyword:     map[string]core.RawValue{"name": "empty"},
	}
	spec := extractSpec(t, reg, call, core.ResolveContext{CurrentModule: "libs"})

	require.NoError(t, Build(nil, nil, spec))

	store := spec.Artifacts.(*artifact.Store)
	assert.True(t, store.IsEmpty())
}
