// Package artifact implements the per-target artifact store (§4.7): a
// typed multimap from artifact kind to a destination-path -> source-path
// mapping, plus materialization into a target's workspace directory by
// hardlink, with a byte copy whenever the hardlink cannot be made.
// Grounded on the teacher's fs.RecursiveLink/CopyOrLinkFile
// (src/fs/copy.go) and its link-or-copy semantics.
package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/resonai/ybt-sub000/src/cli/logging"
)

var log = logging.NamedLogger("artifact")

// Kind is the closed set of artifact categories from §4.7's table.
type Kind string

const (
	KindApp              Kind = "app"
	KindBinary           Kind = "binary"
	KindObject           Kind = "object"
	KindGeneratedSource  Kind = "generated-source"
	KindGeneratedHeader  Kind = "generated-header"
	KindGeneratedLangX   Kind = "generated-lang-x"
	KindImage            Kind = "image"
)

// Propagation describes, for a Kind, which of a target's consumers
// inherit it and where it lands inside an image build, per the §4.7
// table verbatim.
type Propagation struct {
	PropagatesTo string // human-readable description of the propagation rule
	StagedUnder  string // image path artifacts of this kind are staged under; "" if not staged
}

var propagationTable = map[Kind]Propagation{
	KindApp:             {PropagatesTo: "direct & indirect deps + image", StagedUnder: "/usr/src/app"},
	KindBinary:          {PropagatesTo: "image builds", StagedUnder: "/usr/src/bin"},
	KindObject:          {PropagatesTo: "link-time only", StagedUnder: ""},
	KindGeneratedSource: {PropagatesTo: "direct C++ dep only", StagedUnder: ""},
	KindGeneratedHeader: {PropagatesTo: "any C++ dep", StagedUnder: ""},
	KindGeneratedLangX:  {PropagatesTo: "same-language deps", StagedUnder: ""},
	KindImage:           {PropagatesTo: "", StagedUnder: ""},
}

// PropagationFor returns the propagation/staging rule for kind.
func PropagationFor(kind Kind) (Propagation, bool) {
	p, ok := propagationTable[kind]
	return p, ok
}

// entry is one destination -> source mapping recorded under a kind.
type entry struct {
	dest string
	src  string
}

// Store is the per-target typed artifact multimap. It is not safe for
// concurrent use by multiple goroutines; a target's own build function
// is the only writer (§3 Lifecycle: only the building goroutine mutates
// a target's state).
type Store struct {
	byKind map[Kind][]entry
	dests  map[string]Kind // destination -> kind it was first added under, for duplicate detection
}

// NewStore returns an empty artifact Store.
func NewStore() *Store {
	return &Store{
		byKind: map[Kind][]entry{},
		dests:  map[string]Kind{},
	}
}

// IsEmpty reports whether the store has recorded any artifacts. It
// satisfies core.TargetArtifacts.
func (s *Store) IsEmpty() bool {
	return s == nil || len(s.dests) == 0
}

// Add records that source is available at destination under kind.
// Adding the same destination twice with a different source is an
// error (§4.7); adding it twice with the identical source is idempotent.
func (s *Store) Add(kind Kind, dest, src string) error {
	if _, ok := propagationTable[kind]; !ok {
		return fmt.Errorf("artifact: unknown kind %q", kind)
	}
	for _, e := range s.byKind[kind] {
		if e.dest == dest {
			if e.src == src {
				return nil
			}
			return fmt.Errorf("artifact: duplicate destination %q (existing source %q, new source %q)", dest, e.src, src)
		}
	}
	if existingKind, ok := s.dests[dest]; ok && existingKind != kind {
		return fmt.Errorf("artifact: destination %q already registered under kind %q", dest, existingKind)
	}
	s.byKind[kind] = append(s.byKind[kind], entry{dest: dest, src: src})
	s.dests[dest] = kind
	return nil
}

// Kinds returns the kinds that have at least one artifact, sorted for
// determinism.
func (s *Store) Kinds() []Kind {
	kinds := make([]Kind, 0, len(s.byKind))
	for k, entries := range s.byKind {
		if len(entries) > 0 {
			kinds = append(kinds, k)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Destinations returns the dest->src mapping for kind as a map, so it
// carries no order; use All for a sorted listing.
func (s *Store) Destinations(kind Kind) map[string]string {
	out := map[string]string{}
	for _, e := range s.byKind[kind] {
		out[e.dest] = e.src
	}
	return out
}

// All returns every (kind, dest, src) triple, sorted by (kind, dest)
// for canonical serialization into artifacts.json.
func (s *Store) All() []struct {
	Kind Kind
	Dest string
	Src  string
} {
	var out []struct {
		Kind Kind
		Dest string
		Src  string
	}
	for _, kind := range s.Kinds() {
		entries := append([]entry(nil), s.byKind[kind]...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].dest < entries[j].dest })
		for _, e := range entries {
			out = append(out, struct {
				Kind Kind
				Dest string
				Src  string
			}{kind, e.dest, e.src})
		}
	}
	return out
}

// Materialize hardlinks every recorded artifact from the project root
// into workspaceDir, preserving each artifact's destination path
// relative to the workspace root. Link copies the file content instead
// whenever os.Link fails for an artifact (for example when the source
// and workspace are on different filesystems), matching the teacher's
// CopyOrLinkFile fallback.
func (s *Store) Materialize(projectRoot, workspaceDir string) error {
	for _, t := range s.All() {
		from := filepath.Join(projectRoot, t.Src)
		to := filepath.Join(workspaceDir, t.Dest)
		if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
			return fmt.Errorf("artifact: creating workspace dir for %s: %w", t.Dest, err)
		}
		if err := Link(from, to); err != nil {
			return fmt.Errorf("artifact: materializing %s -> %s: %w", t.Src, t.Dest, err)
		}
	}
	return nil
}

// Link hardlinks src to dest, replacing any existing file at dest, and
// falling back to a byte copy if the hardlink syscall fails (e.g. src
// and dest are on different filesystems). Grounded on fs.Link/
// fs.CopyOrLinkFile in the teacher.
func Link(src, dest string) error {
	if _, err := os.Lstat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("could not remove existing %s: %w", dest, err)
		}
	}
	if err := os.Link(src, dest); err == nil {
		return nil
	}
	log.Debug("hardlink %s -> %s failed, falling back to copy", src, dest)
	return copyFile(src, dest)
}

func copyFile(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return nil
}
