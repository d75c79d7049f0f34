// Package parse implements the Build-File Evaluator (§4.2): a small
// hosted expression interpreter for builder-call build files, wired to
// core.Extractor for signature binding and target registration.
package parse

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/resonai/ybt-sub000/src/cli/logging"
	"github.com/resonai/ybt-sub000/src/core"
)

var log = logging.NamedLogger("parse")

// Evaluator evaluates build files at most once per run, chdir'ing into
// each file's directory for the duration of evaluation so relative
// file-path props resolve naturally, then restoring the original
// directory (§4.2 point 2), grounded on the teacher's parse_step
// working-directory discipline around builder invocation.
type Evaluator struct {
	Extractor *core.Extractor
	Graph     *core.Graph

	mu      sync.Mutex
	evaled  map[string]bool
	chdirMu sync.Mutex // serializes process-wide os.Chdir across evaluations
}

// NewEvaluator returns an Evaluator bound to extractor and graph.
func NewEvaluator(extractor *core.Extractor, graph *core.Graph) *Evaluator {
	return &Evaluator{Extractor: extractor, Graph: graph, evaled: map[string]bool{}}
}

// EvaluateFile evaluates the build file at path if it hasn't already
// been evaluated this run (re-entry is a no-op, §4.2 point 1). module
// is the qualified-name module path the file's targets belong under.
func (e *Evaluator) EvaluateFile(path, module string) error {
	e.mu.Lock()
	if e.evaled[path] {
		e.mu.Unlock()
		return nil
	}
	e.evaled[path] = true
	e.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return core.NewParseError(path, 0, "reading build file: %s", err)
	}
	stmts, err := e.parse(string(data), path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := e.withDir(dir, func() error {
		ctx := core.ResolveContext{CurrentModule: module}
		for _, stmt := range stmts {
			if err := e.evalStatement(stmt, path, dir, ctx); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	log.Debug("evaluated %s (%d targets)", path, len(stmts))
	return nil
}

func (e *Evaluator) parse(src, file string) ([]statement, error) {
	p, err := newParser(src, file)
	if err != nil {
		return nil, core.NewParseError(file, 0, "%s", err)
	}
	stmts, err := p.parseStatements()
	if err != nil {
		return nil, core.NewParseError(file, 0, "%s", err)
	}
	return stmts, nil
}

func (e *Evaluator) evalStatement(stmt statement, file, dir string, ctx core.ResolveContext) error {
	call := core.Call{
		BuilderName: stmt.builderName,
		File:        file,
		Line:        stmt.line,
		Keyword:     map[string]interface{}{},
	}
	for _, p := range stmt.positional {
		v, err := evalExpr(p, dir)
		if err != nil {
			return core.NewParseError(file, stmt.line, "%s", err)
		}
		call.Positional = append(call.Positional, v)
	}
	for k, v := range stmt.keyword {
		val, err := evalExpr(v, dir)
		if err != nil {
			return core.NewParseError(file, stmt.line, "%s", err)
		}
		call.Keyword[k] = val
	}

	spec, err := e.Extractor.Extract(call, ctx)
	if err != nil {
		return err
	}
	return e.Graph.AddTarget(spec)
}

// withDir runs fn with the process working directory set to dir,
// restoring the prior directory afterward. The mutex serializes this
// across evaluations since os.Chdir is process-global (§5: build-file
// evaluation is serialized in the single-threaded scheduling model).
func (e *Evaluator) withDir(dir string, fn func() error) error {
	e.chdirMu.Lock()
	defer e.chdirMu.Unlock()
	prev, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := os.Chdir(dir); err != nil {
		return err
	}
	defer os.Chdir(prev)
	return fn()
}
