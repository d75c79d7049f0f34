// Package crawl implements the Seeded Crawler (§4.4): starting from a
// set of seed selectors, it evaluates only the build files needed to
// reach every transitively-required target, then prunes the graph down
// to exactly what the seeds' closures kept.
package crawl

import (
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/resonai/ybt-sub000/src/cli/logging"
	"github.com/resonai/ybt-sub000/src/core"
	"github.com/resonai/ybt-sub000/src/parse"
)

var log = logging.NamedLogger("crawl")

// Crawler evaluates build files on demand and tracks which targets
// each seed's closure kept, so unreferenced targets can be pruned once
// crawling completes. Grounded on the teacher's parse_step worklist
// (evaluate-on-demand package loading driven by label references) and
// src/query's `...`/`:all` wildcard expansion.
type Crawler struct {
	Root          string
	BuildFileName string
	Evaluator     *parse.Evaluator
	Graph         *core.Graph

	seen map[core.QualifiedName]bool
	kept map[core.QualifiedName]bool
}

// NewCrawler returns a Crawler rooted at root, using evaluator to load
// build files into graph.
func NewCrawler(root, buildFileName string, evaluator *parse.Evaluator, graph *core.Graph) *Crawler {
	return &Crawler{
		Root:          root,
		BuildFileName: buildFileName,
		Evaluator:     evaluator,
		Graph:         graph,
		seen:          map[core.QualifiedName]bool{},
		kept:          map[core.QualifiedName]bool{},
	}
}

// buildFilePath returns the on-disk path of module's build file.
func (c *Crawler) buildFilePath(module string) string {
	return filepath.Join(c.Root, module, c.BuildFileName)
}

// Crawl evaluates the root build file unconditionally, then processes
// seeds to a fixed point, and finally prunes the graph down to exactly
// the kept targets (§4.4 steps 1-4).
//
// A seed that fails to resolve doesn't stop the rest of the worklist:
// every seed's error is collected into a single aggregated error so a
// crawl with several bad selectors reports all of them at once instead
// of making the caller fix one, re-run, and discover the next. This
// mirrors how please's parse phase keeps going after one package fails
// to parse so it can report every broken package in one pass.
func (c *Crawler) Crawl(seeds []core.QualifiedName) error {
	if err := c.Evaluator.EvaluateFile(c.buildFilePath(""), ""); err != nil {
		return err
	}

	var worklist []core.QualifiedName
	for _, seed := range seeds {
		worklist = append(worklist, seed)
	}

	var errs *multierror.Error
	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]
		if c.seen[item] {
			continue
		}
		c.seen[item] = true

		next, err := c.process(item)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		worklist = append(worklist, next...)
	}
	if errs != nil {
		// A single failure is returned bare so callers inspecting its
		// ErrorKind via core.KindOf (e.g. to pick an exit code) still see
		// it; only a genuine multi-selector failure needs aggregation.
		if len(errs.Errors) == 1 {
			return errs.Errors[0]
		}
		return errs
	}

	c.prune()
	return nil
}

// process evaluates whatever build file(s) item requires and returns
// the further work it generates (deps to enqueue, or expanded wildcard
// markers).
func (c *Crawler) process(item core.QualifiedName) ([]core.QualifiedName, error) {
	switch {
	case item.IsRecursiveWildcard():
		return c.expandRecursiveWildcard(item.Module)
	case item.IsWildcard():
		return c.expandModuleWildcard(item.Module)
	default:
		return c.processConcreteTarget(item)
	}
}

// expandRecursiveWildcard implements `**:*`: find every directory under
// module containing a build file and enqueue `<module>:*` for each.
func (c *Crawler) expandRecursiveWildcard(module string) ([]core.QualifiedName, error) {
	dirs, err := core.FindBuildModules(c.Root, filepath.Join(c.Root, module), c.BuildFileName)
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)
	out := make([]core.QualifiedName, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, core.QualifiedName{Module: d, Local: "*"})
	}
	return out, nil
}

// expandModuleWildcard implements `<module>:*`: evaluate the module's
// build file, mark every target it declares as kept, and enqueue their deps.
func (c *Crawler) expandModuleWildcard(module string) ([]core.QualifiedName, error) {
	if err := c.Evaluator.EvaluateFile(c.buildFilePath(module), module); err != nil {
		return nil, err
	}
	var next []core.QualifiedName
	for _, name := range c.Graph.AllNames() {
		if name.Module != module {
			continue
		}
		c.kept[name] = true
		next = append(next, c.depsOf(name)...)
	}
	return next, nil
}

// processConcreteTarget evaluates the containing build file for a
// single named target, marks it kept, and enqueues its deps.
func (c *Crawler) processConcreteTarget(item core.QualifiedName) ([]core.QualifiedName, error) {
	if err := c.Evaluator.EvaluateFile(c.buildFilePath(item.Module), item.Module); err != nil {
		return nil, err
	}
	if !c.Graph.Has(item) {
		return nil, core.NewTargetError(core.UnknownTarget, item.String(), "target not found after evaluating %s", c.buildFilePath(item.Module))
	}
	c.kept[item] = true
	return c.depsOf(item), nil
}

func (c *Crawler) depsOf(name core.QualifiedName) []core.QualifiedName {
	spec := c.Graph.Target(name)
	if spec == nil {
		return nil
	}
	return append([]core.QualifiedName(nil), spec.Deps...)
}

// prune removes every target not kept by some seed's closure, tagged
// prune-me, or phony (§4.4 step 4).
func (c *Crawler) prune() {
	for _, name := range c.Graph.AllNames() {
		spec := c.Graph.Target(name)
		if spec == nil {
			continue
		}
		if !c.kept[name] || spec.HasTag("prune-me") || name.IsPhony() {
			log.Debug("pruning %s", name)
			c.Graph.Remove(name)
		}
	}
}

// Kept reports whether name was retained by some seed's closure, for tests.
func (c *Crawler) Kept(name core.QualifiedName) bool {
	return c.kept[name]
}
