package core

import (
	"sort"
	"time"
)

// TargetSpec is the materialized output of build-file evaluation for a
// single builder invocation (§3 "Target Spec").
type TargetSpec struct {
	Name        QualifiedName
	BuilderName string
	Props       PropMap
	Deps        []QualifiedName // de-duplicated, order preserved
	Tags        map[string]bool
	BuildEnv    *QualifiedName

	// Flavor is a free-form build configuration flavor (e.g. "opt"/"dbg").
	// Carried in target.json per §6.4 even though nothing in the base
	// spec sets it; builder plug-ins may populate it via props.
	Flavor string

	// BuildTimeout bounds each builder invocation; TestTimeout bounds a
	// test target's attempts as a whole. Zero means "no explicit timeout".
	BuildTimeout time.Duration
	TestTimeout  time.Duration

	// Attempts is the test retry budget: a test passes if any attempt
	// within this budget succeeds (§4.11 bullet 7). Zero is treated as 1.
	Attempts int

	// Cachable mirrors the owning BuilderSignature.Cachable, frozen at
	// registration time so the Scheduler doesn't need the registry.
	Cachable bool

	// Artifacts produced so far; only mutated during this target's own
	// build function (§3 Lifecycle).
	Artifacts TargetArtifacts

	// CacheKeys is set once by the Fingerprinter and immutable thereafter.
	CacheKeys *CacheKeys

	frozen bool
}

// TargetArtifacts is a minimal interface satisfied by artifact.Store so
// core doesn't need to import the artifact package; the artifact package
// does not import core either, so the two stay decoupled through this
// interface seam.
type TargetArtifacts interface {
	IsEmpty() bool
}

// CacheKeys holds the two hashes computed by the Fingerprinter. The
// array size matches fingerprint.Hash (a 32-byte BLAKE3 digest); it's
// duplicated here rather than imported to avoid a core<->fingerprint
// import cycle (fingerprint depends on core for QualifiedName/TargetSpec).
type CacheKeys struct {
	Self     [32]byte
	Combined [32]byte
}

// AddDep appends dep to Deps, de-duplicating while preserving first
// occurrence order, per the "deps is always target-list, de-duplicated"
// invariant in §3.
func (t *TargetSpec) AddDep(dep QualifiedName) {
	for _, d := range t.Deps {
		if d == dep {
			return
		}
	}
	t.Deps = append(t.Deps, dep)
}

// AddTag adds a tag marker if not already present.
func (t *TargetSpec) AddTag(tag string) {
	if t.Tags == nil {
		t.Tags = map[string]bool{}
	}
	t.Tags[tag] = true
}

// HasTag returns whether the spec carries the given tag.
func (t *TargetSpec) HasTag(tag string) bool {
	return t.Tags != nil && t.Tags[tag]
}

// SortedTags returns the tag set in sorted order, for canonicalization.
func (t *TargetSpec) SortedTags() []string {
	tags := make([]string, 0, len(t.Tags))
	for tag := range t.Tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// SortedDeps returns a sorted copy of Deps by string rendering, used
// wherever canonical (not declaration) order is required (cache keys,
// target.json).
func (t *TargetSpec) SortedDeps() []QualifiedName {
	deps := make([]QualifiedName, len(t.Deps))
	copy(deps, t.Deps)
	sort.Slice(deps, func(i, j int) bool {
		return deps[i].String() < deps[j].String()
	})
	return deps
}

// Freeze marks the spec as immutable: after build() returns (§3
// Lifecycle), only registered hooks or the target's own build function
// may have mutated it; once frozen, further mutation is a programming
// error that callers should treat as a bug, not a recoverable condition.
func (t *TargetSpec) Freeze() {
	t.frozen = true
}

// Frozen reports whether Freeze has been called.
func (t *TargetSpec) Frozen() bool {
	return t.frozen
}
