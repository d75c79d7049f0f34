// Package imagecache implements the Image-Cache Classifier (§4.10): it
// decides which targets are "pre-built" because their outputs already
// live inside a container base image that's cached locally or
// pullable, so the scheduler can skip invoking their builder functions.
package imagecache

import (
	"sync"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/daemon"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	digest "github.com/opencontainers/go-digest"
	ispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/errgroup"

	"github.com/resonai/ybt-sub000/src/cli/logging"
	"github.com/resonai/ybt-sub000/src/core"
)

// probeConcurrency bounds how many daemon/registry probes run at once,
// so a graph with many distinct base images doesn't open one HTTP
// connection per target.
const probeConcurrency = 8

var log = logging.NamedLogger("imagecache")

// BaseImageProp is the target-ref prop naming the base image a
// container-image target derives from.
const BaseImageProp = "base_image"

// TagProp is the string prop carrying a target's own image tag.
const TagProp = "tag"

// Prober reports whether an image reference already exists, either in
// the local docker daemon or in a pullable remote registry. Grounded
// on the teacher's image-push stack retrieved via go-containerregistry
// (_examples/kubekattle-ktl/pkg/registry/push.go: name.ParseReference +
// remote.*), used here for read-only existence checks instead of pushes.
type Prober interface {
	CachedOrPullable(ref string) bool
}

// DaemonProber checks the local docker daemon first, then falls back to
// a remote registry HEAD-equivalent lookup.
type DaemonProber struct{}

// CachedOrPullable implements Prober.
func (DaemonProber) CachedOrPullable(ref string) bool {
	r, err := name.ParseReference(ref)
	if err != nil {
		log.Debug("invalid image reference %q: %s", ref, err)
		return false
	}
	if img, err := daemon.Image(r); err == nil {
		warnOnUnexpectedMediaType(ref, img)
		return true
	}
	if img, err := remote.Image(r, remote.WithAuthFromKeychain(authn.DefaultKeychain)); err == nil {
		warnOnUnexpectedMediaType(ref, img)
		return true
	}
	return false
}

// warnOnUnexpectedMediaType logs (without failing the probe) when a
// found image's media type isn't one of the OCI image-spec's own
// manifest or index types, which usually means it's a legacy Docker
// schema1 image this engine hasn't been exercised against.
func warnOnUnexpectedMediaType(ref string, img v1.Image) {
	mt, err := img.MediaType()
	if err != nil {
		log.Debug("%s: could not read media type: %s", ref, err)
		return
	}
	switch string(mt) {
	case ispec.MediaTypeImageManifest, ispec.MediaTypeImageIndex:
	default:
		log.Warning("%s: unexpected media type %s, expected OCI %s or %s", ref, mt, ispec.MediaTypeImageManifest, ispec.MediaTypeImageIndex)
	}
}

// Classifier implements the §4.10 classification rules over a target graph.
type Classifier struct {
	Graph  *core.Graph
	Prober Prober
	// ForceRebuild corresponds to --build-base-images: when set,
	// Classify always returns the empty set.
	ForceRebuild bool
}

// NewClassifier returns a Classifier using DaemonProber.
func NewClassifier(graph *core.Graph, forceRebuild bool) *Classifier {
	return &Classifier{Graph: graph, Prober: DaemonProber{}, ForceRebuild: forceRebuild}
}

// Classify returns the set of target names that are pre-built and
// should be skipped by the scheduler.
//
// For every target declaring a base_image ref whose tag resolves to an
// image that's cached locally or pullable: C is the transitive dep
// closure of that base image target, R is the subset of the target's
// own transitive deps not already covered by C (deps it still needs to
// build itself), and C-R is unioned into the overall pre-built set.
func (c *Classifier) Classify() (map[core.QualifiedName]bool, error) {
	prebuilt := map[core.QualifiedName]bool{}
	if c.ForceRebuild {
		return prebuilt, nil
	}

	var candidates []candidate
	for _, name := range c.Graph.AllNames() {
		spec := c.Graph.Target(name)
		baseRef, ok := baseImageOf(spec)
		if !ok {
			continue
		}
		baseSpec := c.Graph.Target(baseRef)
		if baseSpec == nil {
			log.Warning("target %s references unknown base image %s", name, baseRef)
			continue
		}
		tag, ok := baseSpec.Props[TagProp]
		if !ok || tag.Str == "" {
			continue
		}
		candidates = append(candidates, candidate{name, baseRef, tag.Str})
	}

	cached, err := c.probeAll(candidates)
	if err != nil {
		return nil, err
	}

	for _, cand := range candidates {
		if !cached[digest.FromString(cand.tag).String()] {
			continue
		}
		baseClosure := c.Graph.Descendants(cand.baseRef)
		ownClosure := c.Graph.Descendants(cand.name)

		r := map[core.QualifiedName]bool{}
		for dep := range ownClosure {
			if !baseClosure[dep] {
				r[dep] = true
			}
		}
		for dep := range baseClosure {
			if !r[dep] {
				prebuilt[dep] = true
			}
		}
	}
	return prebuilt, nil
}

// candidate is a target whose base_image resolves to a probeable tag.
type candidate struct {
	name, baseRef core.QualifiedName
	tag           string
}

// probeAll probes every distinct tag among candidates at most once,
// bounded to probeConcurrency concurrent daemon/registry calls via an
// errgroup.Group, and returns the probe results keyed by each tag's
// content-addressed digest rather than the raw tag string, so the
// memoization key stays stable if a future prober normalizes
// equivalent references (e.g. with/without an explicit "latest") to
// the same underlying content.
func (c *Classifier) probeAll(candidates []candidate) (map[string]bool, error) {
	tags := map[string]bool{}
	for _, cand := range candidates {
		tags[cand.tag] = true
	}

	var mu sync.Mutex
	results := make(map[string]bool, len(tags))
	sem := make(chan struct{}, probeConcurrency)
	var group errgroup.Group
	for tag := range tags {
		tag := tag
		sem <- struct{}{}
		group.Go(func() error {
			defer func() { <-sem }()
			ok := c.Prober.CachedOrPullable(tag)
			mu.Lock()
			results[digest.FromString(tag).String()] = ok
			mu.Unlock()
			return nil
		})
	}
	// The probe func never returns a non-nil error today (CachedOrPullable
	// swallows its own), but Wait is still how the group is drained.
	_ = group.Wait()
	return results, nil
}

func baseImageOf(spec *core.TargetSpec) (core.QualifiedName, bool) {
	v, ok := spec.Props[BaseImageProp]
	if !ok || v.Type != core.TypeTargetRef || len(v.Refs) == 0 {
		return core.QualifiedName{}, false
	}
	return v.Refs[0], true
}
