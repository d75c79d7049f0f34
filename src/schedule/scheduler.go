// Package schedule implements the Scheduler (§4.11): a single-process
// executor that walks the target graph in stable topological order,
// skips pre-built and cache-hit targets, invokes builder plug-ins for
// everything else, and propagates failures to descendants when
// continue_after_fail is set.
package schedule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/resonai/ybt-sub000/src/artifact"
	"github.com/resonai/ybt-sub000/src/cache"
	"github.com/resonai/ybt-sub000/src/cli/logging"
	"github.com/resonai/ybt-sub000/src/core"
	"github.com/resonai/ybt-sub000/src/fingerprint"
	"github.com/resonai/ybt-sub000/src/imagecache"
)

var log = logging.NamedLogger("schedule")

// testTag marks a target as a test target for the purposes of §4.11
// bullets 3 and 7. The base spec's tag vocabulary is open-ended (its
// listed examples are installer-related); "test" is this engine's own
// convention, since the ABI has no separate IsTest field or TestFunc.
const testTag = "test"

// Scheduler owns one build run's worth of state: which targets have
// been built, failed, or skipped, layered over a Graph that's already
// been crawled, fingerprinted, and classified.
type Scheduler struct {
	Graph      *core.Graph
	Registry   *core.BuilderRegistry
	Conf       *core.Configuration
	ProjectRoot string
	WorkspaceDir string // absolute; <project_root>/<builders_workspace_dir>
	Cache      *cache.TwoTier
	Classifier *imagecache.Classifier

	// RunID identifies this Scheduler's Run invocation in log output, so
	// lines from concurrent or back-to-back runs (e.g. in a CI log
	// aggregator) can be correlated back to a single build.
	RunID string

	NoBuildCache      bool
	NoTestCache       bool
	ContinueAfterFail bool

	mu       sync.Mutex
	built    map[core.QualifiedName]bool
	cacheHit map[core.QualifiedName]bool
	failed   map[core.QualifiedName]error
	skipped  map[core.QualifiedName]bool
}

// NewScheduler returns a Scheduler ready to Run once its Graph has been
// crawled and fingerprinted.
func NewScheduler(graph *core.Graph, reg *core.BuilderRegistry, conf *core.Configuration, projectRoot string, twoTier *cache.TwoTier, classifier *imagecache.Classifier) *Scheduler {
	return &Scheduler{
		Graph:        graph,
		Registry:     reg,
		Conf:         conf,
		ProjectRoot:  projectRoot,
		WorkspaceDir: filepath.Join(projectRoot, conf.Build.BuildersWorkspaceDir),
		Cache:        twoTier,
		Classifier:   classifier,
		RunID:        uuid.NewString(),
		built:        map[core.QualifiedName]bool{},
		cacheHit:     map[core.QualifiedName]bool{},
		failed:       map[core.QualifiedName]error{},
		skipped:      map[core.QualifiedName]bool{},
	}
}

// outputRoot is where cache restores and fresh builds alike materialize
// artifacts, keyed by each artifact's project-root-relative destination
// path (so multiple targets' outputs coexist without collision).
func (s *Scheduler) outputRoot() string {
	return filepath.Join(s.WorkspaceDir, "out")
}

// Run executes every target in the graph once, per §4.11's numbered
// algorithm, and returns the run's Result. It returns a non-nil error
// only when the run aborts (a fatal error kind, or BuilderFailed without
// ContinueAfterFail); Result is still populated with whatever completed
// before the abort.
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	result := &Result{}
	log.Notice("run %s: starting", s.RunID)

	prebuilt := map[core.QualifiedName]bool{}
	if s.Classifier != nil {
		p, err := s.Classifier.Classify()
		if err != nil {
			return result, err
		}
		prebuilt = p
	}

	order, err := s.Graph.StableOrder()
	if err != nil {
		return result, err
	}

	for _, name := range order {
		if s.skipped[name] {
			result.recordSkipped(name)
			continue
		}
		if prebuilt[name] {
			s.mu.Lock()
			s.built[name] = true
			s.mu.Unlock()
			result.recordPreBuilt(name)
			targetsCached.Inc()
			continue
		}

		cacheHit, err := s.buildWithStatus(ctx, name)
		if err != nil {
			if kind := core.KindOf(err); kind == core.BuilderFailed {
				s.mu.Lock()
				s.failed[name] = err
				s.mu.Unlock()
				result.recordFailed(name)
				targetsFailed.Inc()
				if !s.ContinueAfterFail {
					return result, err
				}
				for _, dep := range s.transitiveDependents(name) {
					s.mu.Lock()
					alreadySkipped := s.skipped[dep]
					s.skipped[dep] = true
					s.mu.Unlock()
					if !alreadySkipped {
						targetsSkipped.Inc()
					}
				}
				continue
			}
			return result, err
		}
		if cacheHit {
			result.recordCacheHit(name)
			targetsCached.Inc()
		} else {
			result.recordSucceeded(name)
			targetsBuilt.Inc()
		}
	}
	return result, nil
}

// buildWithStatus builds (or restores) name and reports whether it was
// satisfied by a cache hit, for Result bookkeeping; buildOne itself
// doesn't distinguish the two since BuildContext.BuildTarget callers
// don't care.
func (s *Scheduler) buildWithStatus(ctx context.Context, name core.QualifiedName) (bool, error) {
	s.mu.Lock()
	if s.built[name] {
		hit := s.cacheHit[name]
		s.mu.Unlock()
		return hit, nil
	}
	s.mu.Unlock()
	return s.buildOneTracked(ctx, name)
}

// buildOne is the core.BuildContext.BuildTarget entrypoint: idempotent,
// recursive (builds deps first if somehow not yet built), safe to call
// out of the Scheduler's own topological walk.
func (s *Scheduler) buildOne(ctx context.Context, name core.QualifiedName) error {
	s.mu.Lock()
	if s.built[name] {
		s.mu.Unlock()
		return nil
	}
	if err, present := s.failed[name]; present {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	_, err := s.buildOneTracked(ctx, name)
	return err
}

func (s *Scheduler) buildOneTracked(ctx context.Context, name core.QualifiedName) (cacheHit bool, err error) {
	spec := s.Graph.Target(name)
	if spec == nil {
		return false, core.NewTargetError(core.UnknownTarget, name.String(), "target not found at build time")
	}

	for _, dep := range spec.Deps {
		if err := s.buildOne(ctx, dep); err != nil {
			return false, err
		}
	}

	if spec.CacheKeys == nil {
		return false, core.NewTargetError(core.BuilderFailed, name.String(), "target was never fingerprinted")
	}
	key := spec.CacheKeys.Combined

	if !s.NoBuildCache && spec.Cachable && s.Cache != nil {
		if _, ok, lookupErr := s.Cache.Lookup(key, s.outputRoot()); lookupErr != nil {
			log.Warning("cache lookup for %s failed, treating as miss: %s", name, lookupErr)
		} else if ok {
			cacheHit = true
		}
	}

	if !cacheHit {
		start := time.Now()
		if err := s.invokeBuilder(ctx, spec); err != nil {
			return false, err
		}
		buildTime := time.Since(start)
		// Per §3 Lifecycle, the spec is frozen once build() returns: only
		// hooks and the target's own build function may mutate it before
		// this point.
		spec.Freeze()
		if spec.Cachable && !s.NoBuildCache && s.Cache != nil {
			if err := s.writeCacheEntry(spec, key, buildTime); err != nil {
				log.Warning("caching %s failed (build still succeeded): %s", name, err)
			}
		}
	} else {
		spec.Freeze()
	}

	if spec.HasTag(testTag) {
		if err := s.runTest(ctx, spec, key, cacheHit); err != nil {
			return cacheHit, err
		}
	}

	s.mu.Lock()
	s.built[name] = true
	s.cacheHit[name] = cacheHit
	s.mu.Unlock()
	return cacheHit, nil
}

// invokeBuilder runs spec's registered build function, capturing
// wall-clock time and materializing any declared artifacts (§4.11
// bullets 4-5).
func (s *Scheduler) invokeBuilder(ctx context.Context, spec *core.TargetSpec) error {
	fn, ok := s.Registry.BuildFunc(spec.BuilderName)
	if !ok {
		return core.NewTargetError(core.BuilderFailed, spec.Name.String(), "no build function registered for builder %q", spec.BuilderName)
	}
	bctx := newBuildContext(s, spec.Name, spec.BuilderName)

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.BuildTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.BuildTimeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(runCtx, bctx, spec)
	elapsed := time.Since(start)
	log.Debug("built %s in %s", spec.Name, elapsed)
	if err != nil {
		return core.NewTargetError(core.BuilderFailed, spec.Name.String(), "%s", err)
	}

	if store, ok := spec.Artifacts.(*artifact.Store); ok && !store.IsEmpty() {
		if err := store.Materialize(s.ProjectRoot, s.outputRoot()); err != nil {
			return core.NewTargetError(core.BuilderFailed, spec.Name.String(), "materializing artifacts: %s", err)
		}
	}
	return nil
}

// writeCacheEntry atomically records spec's cache entry (§4.11 bullet 5),
// with buildTime as the summary's build time.
func (s *Scheduler) writeCacheEntry(spec *core.TargetSpec, key cache.Key, buildTime time.Duration) error {
	store, _ := spec.Artifacts.(*artifact.Store)
	manifest := cache.ArtifactManifest{}
	if store != nil {
		for _, t := range store.All() {
			abs := filepath.Join(s.outputRoot(), t.Dest)
			h, err := fingerprint.FileHash(abs)
			if err != nil {
				return fmt.Errorf("hashing artifact %s: %w", t.Dest, err)
			}
			size, err := fileSize(abs)
			if err != nil {
				return fmt.Errorf("stat artifact %s: %w", t.Dest, err)
			}
			manifest[t.Dest] = cache.ArtifactEntry{Hash: cache.KeyString(h), Size: size}
		}
	}

	deps := make([]string, 0, len(spec.Deps))
	for _, d := range spec.SortedDeps() {
		deps = append(deps, d.String())
	}
	buildEnv := ""
	if spec.BuildEnv != nil {
		buildEnv = spec.BuildEnv.String()
	}
	targetManifest := cache.TargetManifest{
		Name:        spec.Name.String(),
		BuilderName: spec.BuilderName,
		Deps:        deps,
		Flavor:      spec.Flavor,
		Props:       spec.Props.Canonical(),
		Tags:        spec.SortedTags(),
		BuildEnv:    buildEnv,
		SelfHash:    cache.KeyString(spec.CacheKeys.Self),
		Combined:    cache.KeyString(spec.CacheKeys.Combined),
	}
	return s.Cache.Local.Store(key, targetManifest, manifest, s.outputRoot(), buildTime)
}

// runTest implements §4.11 bullets 3 and 7: skip if the test cache
// already records a pass, otherwise re-invoke the builder function up
// to spec.Attempts times until one attempt succeeds.
func (s *Scheduler) runTest(ctx context.Context, spec *core.TargetSpec, key cache.Key, builtFromCache bool) error {
	testName := spec.Name.String()
	if !s.NoTestCache && s.Cache != nil {
		if _, ok := s.Cache.Local.TestResult(key, testName); ok {
			return nil
		}
	}

	attempts := spec.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	testCtx := ctx
	if spec.TestTimeout > 0 {
		var cancel context.CancelFunc
		testCtx, cancel = context.WithTimeout(ctx, spec.TestTimeout)
		defer cancel()
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := s.invokeBuilder(testCtx, spec); err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}
	elapsed := time.Since(start)

	if lastErr == nil && s.Cache != nil {
		if err := s.Cache.Local.WriteTestResult(key, testName, elapsed); err != nil {
			log.Warning("recording test result for %s failed: %s", spec.Name, err)
		}
	}
	return lastErr
}

// transitiveDependents returns every target that depends, directly or
// transitively, on name — the set the failure-propagation BFS (§9
// "Failure propagation") marks skipped.
func (s *Scheduler) transitiveDependents(name core.QualifiedName) []core.QualifiedName {
	seen := map[core.QualifiedName]bool{}
	var queue []core.QualifiedName
	queue = append(queue, s.Graph.Predecessors(name)...)
	var out []core.QualifiedName
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
		queue = append(queue, s.Graph.Predecessors(n)...)
	}
	return out
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
