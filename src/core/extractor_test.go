package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *BuilderRegistry {
	reg := NewBuilderRegistry()
	err := reg.RegisterBuilderSig(BuilderSignature{
		BuilderName: "cc_library",
		Cachable:    true,
		Params: []ParamSpec{
			{Name: "name", Type: TypeTargetName},
			{Name: "srcs", Type: TypeFilePathList, Default: &PropValue{Type: TypeFilePathList}},
			{Name: "deps", Type: TypeTargetRefList, Default: &PropValue{Type: TypeTargetRefList}},
			{Name: "visibility", Type: TypeStringList, Default: &PropValue{Type: TypeStringList}},
		},
	})
	require.NoError(t, err)
	return reg
}

func TestExtractorBindsPositionalAndKeyword(t *testing.T) {
	reg := testRegistry(t)
	e := NewExtractor(reg)
	call := Call{
		BuilderName: "cc_library",
		Positional:  []RawValue{"mylib"},
		Keyword: map[string]RawValue{
			"srcs": []interface{}{"a.cc", "b.cc"},
			"deps": ":other",
		},
		File: "foo/BUILD",
	}
	spec, err := e.Extract(call, ResolveContext{CurrentModule: "foo"})
	require.NoError(t, err)
	assert.Equal(t, QualifiedName{Module: "foo", Local: "mylib"}, spec.Name)
	assert.Equal(t, []string{"foo/a.cc", "foo/b.cc"}, spec.Props["srcs"].List)
	assert.Equal(t, []QualifiedName{{Module: "foo", Local: "other"}}, spec.Deps)
	_, hasName := spec.Props["name"]
	assert.False(t, hasName, "name should be promoted off Props")
}

func TestExtractorMissingRequired(t *testing.T) {
	reg := testRegistry(t)
	e := NewExtractor(reg)
	_, err := e.Extract(Call{BuilderName: "cc_library"}, ResolveContext{})
	require.Error(t, err)
	assert.Equal(t, ParseError, KindOf(err))
}

func TestExtractorUnknownKwarg(t *testing.T) {
	reg := testRegistry(t)
	e := NewExtractor(reg)
	_, err := e.Extract(Call{
		BuilderName: "cc_library",
		Positional:  []RawValue{"x"},
		Keyword:     map[string]RawValue{"bogus": "y"},
	}, ResolveContext{})
	require.Error(t, err)
}

func TestExtractorDuplicateArg(t *testing.T) {
	reg := testRegistry(t)
	e := NewExtractor(reg)
	_, err := e.Extract(Call{
		BuilderName: "cc_library",
		Positional:  []RawValue{"x"},
		Keyword:     map[string]RawValue{"name": "y"},
	}, ResolveContext{})
	require.Error(t, err)
}

func TestExtractorTooManyArgs(t *testing.T) {
	reg := testRegistry(t)
	e := NewExtractor(reg)
	_, err := e.Extract(Call{
		BuilderName: "cc_library",
		Positional:  []RawValue{"a", "b", "c", "d", "e"},
	}, ResolveContext{})
	require.Error(t, err)
}

func TestExtractorFilePathOutsideSandbox(t *testing.T) {
	reg := testRegistry(t)
	e := NewExtractor(reg)
	_, err := e.Extract(Call{
		BuilderName: "cc_library",
		Positional:  []RawValue{"x"},
		Keyword:     map[string]RawValue{"srcs": "../../../etc/passwd"},
	}, ResolveContext{CurrentModule: "a/b"})
	require.Error(t, err)
	assert.Equal(t, EscapesSandbox, KindOf(err))
}

func TestRegistryDuplicateSignature(t *testing.T) {
	reg := testRegistry(t)
	err := reg.RegisterBuilderSig(BuilderSignature{
		BuilderName: "cc_library",
		Params:      []ParamSpec{{Name: "name", Type: TypeTargetName}},
	})
	require.Error(t, err)
}

func TestRegistryManipulateTargetHook(t *testing.T) {
	reg := testRegistry(t)
	err := reg.RegisterManipulateTargetHook("cc_library", func(spec *TargetSpec) error {
		spec.AddTag("generated")
		return nil
	})
	require.NoError(t, err)
	e := NewExtractor(reg)
	spec, err := e.Extract(Call{BuilderName: "cc_library", Positional: []RawValue{"x"}}, ResolveContext{})
	require.NoError(t, err)
	assert.True(t, spec.HasTag("generated"))
}
