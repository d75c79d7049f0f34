package parse

// expr is a parsed expression node in the build-file language: a
// literal, a list, a dict, or a nested call (only `glob(...)` is
// resolved as a callable expression — see eval.go).
type expr interface {
	exprLine() int
}

type stringLit struct {
	value string
	line  int
}

func (s stringLit) exprLine() int { return s.line }

type numberLit struct {
	value float64
	line  int
}

func (n numberLit) exprLine() int { return n.line }

type boolLit struct {
	value bool
	line  int
}

func (b boolLit) exprLine() int { return b.line }

type listLit struct {
	items []expr
	line  int
}

func (l listLit) exprLine() int { return l.line }

type dictLit struct {
	keys   []string
	values []expr
	line   int
}

func (d dictLit) exprLine() int { return d.line }

// callExpr is a nested function call used as an argument value, e.g.
// glob(["*.go"]). The only callable recognized here is "glob".
type callExpr struct {
	name       string
	positional []expr
	keyword    map[string]expr
	line       int
}

func (c callExpr) exprLine() int { return c.line }

// statement is one top-level builder invocation in a build file, e.g.
// cc_library(name = "foo", srcs = ["foo.cc"]).
type statement struct {
	builderName string
	positional  []expr
	keyword     map[string]expr
	line        int
}
