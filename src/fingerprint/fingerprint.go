package fingerprint

import (
	"path/filepath"
	"sort"

	"github.com/resonai/ybt-sub000/src/core"
)

// Fingerprinter computes self and combined hashes for every target in a
// graph, visiting nodes in topological order so a dependent target's
// combined hash can be computed from its already-known dep hashes
// (§4.6: "Fingerprinting visits nodes in topological order").
type Fingerprinter struct {
	Graph *core.Graph
	// ProjectRoot is used to resolve file-path props to disk locations
	// when hashing source files.
	ProjectRoot string
}

// NewFingerprinter returns a Fingerprinter bound to graph, rooted at root.
func NewFingerprinter(graph *core.Graph, root string) *Fingerprinter {
	return &Fingerprinter{Graph: graph, ProjectRoot: root}
}

// FingerprintAll computes and records CacheKeys on every target in the
// graph, returning the combined hash of each by name for convenience.
func (f *Fingerprinter) FingerprintAll() (map[core.QualifiedName]Hash, error) {
	order, err := f.Graph.StableOrder()
	if err != nil {
		return nil, err
	}
	combined := make(map[core.QualifiedName]Hash, len(order))
	for _, name := range order {
		spec := f.Graph.Target(name)
		if spec == nil {
			continue
		}
		self, err := f.SelfHash(spec)
		if err != nil {
			return nil, err
		}
		comb, err := f.combinedHash(spec, self, combined)
		if err != nil {
			return nil, err
		}
		spec.CacheKeys = &core.CacheKeys{Self: self, Combined: comb}
		combined[name] = comb
	}
	return combined, nil
}

// SelfHash computes H(canonical(builder_name, props, sorted(source_file_hashes)))
// per §4.6. It does not consider deps at all beyond their structural
// position already captured inside canonicalProps via target-ref values.
func (f *Fingerprinter) SelfHash(spec *core.TargetSpec) (Hash, error) {
	sourceHashes, err := f.sourceFileHashes(spec)
	if err != nil {
		return Hash{}, err
	}
	parts := [][]byte{[]byte(spec.BuilderName), canonicalProps(spec.Props)}
	for _, h := range sourceHashes {
		parts = append(parts, h[:])
	}
	return H(parts...), nil
}

// combinedHash computes H(self_hash, sorted([combined_hash(d) for d in deps])),
// except that a target with no deps has a combined hash equal to its self
// hash. It requires the deps' combined hashes to already be present in known,
// which holds because FingerprintAll visits in (dependencies-first)
// stable topological order.
func (f *Fingerprinter) combinedHash(spec *core.TargetSpec, self Hash, known map[core.QualifiedName]Hash) (Hash, error) {
	depHashes := make([]Hash, 0, len(spec.Deps))
	for _, dep := range spec.Deps {
		h, present := known[dep]
		if !present {
			return Hash{}, core.NewTargetError(core.CycleDetected, spec.Name.String(),
				"dependency %s not yet fingerprinted; graph was not visited in topological order", dep)
		}
		depHashes = append(depHashes, h)
	}
	sort.Slice(depHashes, func(i, j int) bool { return lessHash(depHashes[i], depHashes[j]) })
	if len(depHashes) == 0 {
		return self, nil
	}

	parts := [][]byte{self[:]}
	for _, h := range depHashes {
		parts = append(parts, h[:])
	}
	return H(parts...), nil
}

func lessHash(a, b Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// sourceFileHashes extracts every file-path / file-path-list prop value
// from spec, hashes the referenced files/directories on disk, and
// returns the digests sorted by path for a stable, order-independent
// result (§4.6, §8 invariant 4: reordering irrelevant things must not
// change the fingerprint).
func (f *Fingerprinter) sourceFileHashes(spec *core.TargetSpec) ([]Hash, error) {
	type pathHash struct {
		path string
		hash Hash
	}
	var all []pathHash
	for _, key := range spec.Props.SortedKeys() {
		v := spec.Props[key]
		switch v.Type {
		case core.TypeFilePath:
			if v.Str == "" {
				continue
			}
			h, err := SourceHash(filepath.Join(f.ProjectRoot, v.Str))
			if err != nil {
				return nil, err
			}
			all = append(all, pathHash{v.Str, h})
		case core.TypeFilePathList:
			for _, p := range v.List {
				h, err := SourceHash(filepath.Join(f.ProjectRoot, p))
				if err != nil {
					return nil, err
				}
				all = append(all, pathHash{p, h})
			}
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].path < all[j].path })
	hashes := make([]Hash, len(all))
	for i, ph := range all {
		hashes[i] = ph.hash
	}
	return hashes, nil
}
