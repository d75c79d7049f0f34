package core

import (
	"sort"
	"sync"
)

// Graph is the directed target graph: edges point from a target to each
// of its declared deps (§4.5). It's guarded by a mutex even though the
// shipped Scheduler walks it single-threaded, per §5's "thread-safe
// intent" requirement for a future parallel scheduler.
type Graph struct {
	mu      sync.Mutex
	targets map[QualifiedName]*TargetSpec
	// successors[n] = deps declared by n, in declaration order.
	successors map[QualifiedName][]QualifiedName
	// predecessors[n] = targets that declare n as a dep.
	predecessors map[QualifiedName][]QualifiedName

	descMu      sync.Mutex
	descendants map[QualifiedName]map[QualifiedName]bool
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		targets:      map[QualifiedName]*TargetSpec{},
		successors:   map[QualifiedName][]QualifiedName{},
		predecessors: map[QualifiedName][]QualifiedName{},
		descendants:  map[QualifiedName]map[QualifiedName]bool{},
	}
}

// AddTarget registers a new target spec into the graph. It's a
// DuplicateTarget error for two specs to share a qualified name.
func (g *Graph) AddTarget(spec *TargetSpec) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, present := g.targets[spec.Name]; present {
		return NewTargetError(DuplicateTarget, spec.Name.String(), "target already registered")
	}
	g.targets[spec.Name] = spec
	g.successors[spec.Name] = append([]QualifiedName(nil), spec.Deps...)
	for _, dep := range spec.Deps {
		g.predecessors[dep] = append(g.predecessors[dep], spec.Name)
	}
	return nil
}

// Target returns the spec for name, or nil if not present.
func (g *Graph) Target(name QualifiedName) *TargetSpec {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.targets[name]
}

// Has returns whether name is registered in the graph.
func (g *Graph) Has(name QualifiedName) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, present := g.targets[name]
	return present
}

// Len returns the number of targets currently in the graph.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.targets)
}

// AllNames returns every target name currently in the graph, in no
// particular order; callers that need determinism should sort.
func (g *Graph) AllNames() []QualifiedName {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]QualifiedName, 0, len(g.targets))
	for name := range g.targets {
		names = append(names, name)
	}
	return names
}

// Remove deletes a target (and its edges) from the graph. Used by the
// Crawler's pruning pass (unkept targets, prune-me tagged, phony names).
func (g *Graph) Remove(name QualifiedName) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, dep := range g.successors[name] {
		preds := g.predecessors[dep]
		for i, p := range preds {
			if p == name {
				g.predecessors[dep] = append(preds[:i], preds[i+1:]...)
				break
			}
		}
	}
	delete(g.successors, name)
	delete(g.targets, name)
	delete(g.predecessors, name)
}

// CheckComplete verifies invariant 1 from §3/§8: every name in every
// target's deps exists in the graph. Returns UnknownTarget on the first
// violation found (in deterministic, sorted-by-name order).
func (g *Graph) CheckComplete() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]QualifiedName, 0, len(g.targets))
	for name := range g.targets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
	for _, name := range names {
		for _, dep := range g.successors[name] {
			if _, present := g.targets[dep]; !present {
				return NewTargetError(UnknownTarget, dep.String(), "dependency of %s not found after crawling", name)
			}
		}
	}
	return nil
}

// StableOrder returns every target in the graph in a stable
// reverse-topological order (dependencies before dependents), breaking
// ties lexicographically by qualified name. This exact tie-break is
// preserved per the Design Notes' Open Question: downstream code depends
// on byte-for-byte reproducible build plans.
func (g *Graph) StableOrder() ([]QualifiedName, error) {
	g.mu.Lock()
	succ := make(map[QualifiedName][]QualifiedName, len(g.successors))
	for n, deps := range g.successors {
		d := append([]QualifiedName(nil), deps...)
		sort.Slice(d, func(i, j int) bool { return d[i].String() < d[j].String() })
		succ[n] = d
	}
	names := make([]QualifiedName, 0, len(g.targets))
	for n := range g.targets {
		names = append(names, n)
	}
	g.mu.Unlock()
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })

	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := map[QualifiedName]int{}
	order := make([]QualifiedName, 0, len(names))
	var path []QualifiedName

	var visit func(n QualifiedName) error
	visit = func(n QualifiedName) error {
		switch color[n] {
		case black:
			return nil
		case grey:
			cycle := append(append([]QualifiedName(nil), path...), n)
			return cycleError(cycle)
		}
		color[n] = grey
		path = append(path, n)
		for _, dep := range succ[n] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		color[n] = black
		order = append(order, n) // dependencies-first = reverse-topological
		return nil
	}
	for _, n := range names {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Descendants returns the set of all nodes reachable from n (its
// transitive deps), computed lazily and cached on first query per §4.5.
func (g *Graph) Descendants(n QualifiedName) map[QualifiedName]bool {
	g.descMu.Lock()
	if cached, ok := g.descendants[n]; ok {
		g.descMu.Unlock()
		return cached
	}
	g.descMu.Unlock()

	g.mu.Lock()
	succ := g.successors
	g.mu.Unlock()

	seen := map[QualifiedName]bool{}
	var walk func(QualifiedName)
	walk = func(cur QualifiedName) {
		for _, dep := range succ[cur] {
			if !seen[dep] {
				seen[dep] = true
				walk(dep)
			}
		}
	}
	walk(n)

	g.descMu.Lock()
	g.descendants[n] = seen
	g.descMu.Unlock()
	return seen
}

// Predecessors returns the targets that directly declare n as a dep.
func (g *Graph) Predecessors(n QualifiedName) []QualifiedName {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]QualifiedName(nil), g.predecessors[n]...)
}

// Successors returns n's direct declared deps, in declaration order.
func (g *Graph) Successors(n QualifiedName) []QualifiedName {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]QualifiedName(nil), g.successors[n]...)
}
