package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveRefColon(t *testing.T) {
	n, err := ResolveRef(":foo", ResolveContext{CurrentModule: "spam/eggs"})
	assert.NoError(t, err)
	assert.Equal(t, QualifiedName{Module: "spam/eggs", Local: "foo"}, n)
}

func TestResolveRefRelative(t *testing.T) {
	n, err := ResolveRef("../bar:baz", ResolveContext{CurrentModule: "spam/eggs"})
	assert.NoError(t, err)
	assert.Equal(t, QualifiedName{Module: "spam/bar", Local: "baz"}, n)

	n, err = ResolveRef("./sub:baz", ResolveContext{CurrentModule: "spam"})
	assert.NoError(t, err)
	assert.Equal(t, QualifiedName{Module: "spam/sub", Local: "baz"}, n)
}

func TestResolveRefAbsolute(t *testing.T) {
	n, err := ResolveRef("//root:x", ResolveContext{CurrentModule: "wherever"})
	assert.NoError(t, err)
	assert.Equal(t, QualifiedName{Module: "root", Local: "x"}, n)
}

func TestResolveRefAmbiguous(t *testing.T) {
	_, err := ResolveRef("users", ResolveContext{CurrentModule: "spam"})
	assert.Error(t, err)
	assert.Equal(t, AmbiguousName, KindOf(err))
}

func TestResolveRefEscapesSandbox(t *testing.T) {
	_, err := ResolveRef("../../../etc:passwd", ResolveContext{CurrentModule: "a/b"})
	assert.Error(t, err)
	assert.Equal(t, EscapesSandbox, KindOf(err))
}

func TestResolveRefRecursiveWildcard(t *testing.T) {
	n, err := ResolveRef("**:*", ResolveContext{CurrentModule: "x"})
	assert.NoError(t, err)
	assert.True(t, n.IsRecursiveWildcard())
}

func TestResolveBareModule(t *testing.T) {
	n := ResolveBareModule("foo/bar")
	assert.Equal(t, QualifiedName{Module: "foo/bar", Local: "*"}, n)
	assert.True(t, n.IsWildcard())
}

func TestIsPhony(t *testing.T) {
	assert.True(t, QualifiedName{Local: "@prune-me"}.IsPhony())
	assert.False(t, QualifiedName{Local: "foo"}.IsPhony())
}

func TestStringRendering(t *testing.T) {
	assert.Equal(t, "spam/eggs:ham", QualifiedName{Module: "spam/eggs", Local: "ham"}.String())
}
