package core

import (
	"path"
	"strings"
)

// A QualifiedName identifies a target uniquely within a project: a build
// module (directory path relative to the project root, "" for the root
// module) plus a local name within that module.
//
// QualifiedName is the direct equivalent of please's BuildLabel, cut down
// to this spec's data model (no subrepos, no visibility annotations -
// those are builder/policy concerns layered on top, not name-resolution
// concerns).
type QualifiedName struct {
	Module string
	Local  string
}

// String renders build_module:local_name per spec §3, e.g. "foo/bar:baz"
// or ":baz" for the root module.
func (n QualifiedName) String() string {
	return n.Module + ":" + n.Local
}

// IsPhony returns true if this name is pruned from the graph after
// crawling (names starting with '@').
func (n QualifiedName) IsPhony() bool {
	return strings.HasPrefix(n.Local, "@")
}

// IsWildcard returns true if this name is a module-wildcard (<module>:*)
// or recursive-wildcard (<module>/**:*) marker rather than a concrete target.
func (n QualifiedName) IsWildcard() bool {
	return n.Local == "*" || n.Local == "**"
}

// IsRecursiveWildcard returns true for the <module>/**:* recursive marker.
func (n QualifiedName) IsRecursiveWildcard() bool {
	return n.Local == "**"
}

// ResolveContext carries the information needed to resolve a relative
// reference: the build module containing the reference (for refs found
// inside a build file) and/or the working-directory-relative module (for
// CLI seeds).
type ResolveContext struct {
	// CurrentModule is the build module containing the reference.
	CurrentModule string
}

// ResolveRef normalizes a reference string against a context, implementing
// the rule table exactly:
//
//	:x            -> <current_module>:x
//	./x:y, ../x:y -> resolved with POSIX normalization against current module
//	//p:x         -> absolute from project root
//	x (no colon)  -> AmbiguousName
//	escapes root  -> EscapesSandbox
//	**:*          -> recursive wildcard from the current working directory
//
// ResolveRef is pure and side-effect-free: it never touches the filesystem.
func ResolveRef(ref string, ctx ResolveContext) (QualifiedName, error) {
	if ref == "" {
		return QualifiedName{}, NewError(AmbiguousName, "empty target reference")
	}

	// Recursive wildcard from the current module: exactly "**:*".
	if ref == "**:*" {
		return QualifiedName{Module: ctx.CurrentModule, Local: "**"}, nil
	}

	switch {
	case strings.HasPrefix(ref, ":"):
		name := ref[1:]
		if name == "" {
			return QualifiedName{}, NewError(AmbiguousName, "empty local name in reference %q", ref)
		}
		return normalizeModule(ctx.CurrentModule, name)

	case strings.HasPrefix(ref, "//"):
		return resolveAbsolute(ref[2:])

	case strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../"):
		mod, name, ok := splitModuleColon(ref)
		if !ok {
			return QualifiedName{}, NewError(AmbiguousName, "relative reference %q must be colon-qualified", ref)
		}
		joined := path.Join(ctx.CurrentModule, mod)
		return normalizeModule(joined, name)

	default:
		// Anything else containing a colon but no recognised prefix, e.g.
		// "foo/bar:baz" used directly, is treated as module-relative to
		// the project root for convenience of CLI seeds; but a bare
		// colon-less string is always ambiguous.
		if idx := strings.IndexByte(ref, ':'); idx != -1 {
			mod := ref[:idx]
			name := ref[idx+1:]
			if name == "" {
				return QualifiedName{}, NewError(AmbiguousName, "empty local name in reference %q", ref)
			}
			return normalizeModule(mod, name)
		}
		// With no colon, only a path ending in "/..." (or "..." alone) is
		// accepted, as a recursive wildcard; any other colon-less reference
		// is AmbiguousName. cmd/ybt turns a bare module path seed into
		// <module>:* itself.
		if strings.HasSuffix(ref, "/...") || ref == "..." {
			mod := strings.TrimSuffix(strings.TrimSuffix(ref, "..."), "/")
			return resolveAbsolute(mod + "/...")
		}
		return QualifiedName{}, NewError(AmbiguousName, "reference %q must be colon-qualified (e.g. %s:%s)", ref, ref, path.Base(ref))
	}
}

// ResolveBareModule resolves a bare module path (no colon) coming from a
// seed selector into its wildcard form <module>:*, per the Design Notes'
// Open Question: "a bare module path is treated as <module>:*".
func ResolveBareModule(modulePath string) QualifiedName {
	return QualifiedName{Module: normalizePath(modulePath), Local: "*"}
}

func splitModuleColon(ref string) (module, name string, ok bool) {
	idx := strings.IndexByte(ref, ':')
	if idx == -1 {
		return "", "", false
	}
	return ref[:idx], ref[idx+1:], true
}

func resolveAbsolute(rest string) (QualifiedName, error) {
	if strings.HasSuffix(rest, "/...") {
		mod := strings.TrimSuffix(rest, "/...")
		return normalizeModule(mod, "**")
	}
	if rest == "..." {
		return QualifiedName{Module: "", Local: "**"}, nil
	}
	idx := strings.IndexByte(rest, ':')
	if idx == -1 {
		return QualifiedName{}, NewError(AmbiguousName, "reference %q must be colon-qualified", "//"+rest)
	}
	return normalizeModule(rest[:idx], rest[idx+1:])
}

// normalizeModule POSIX-normalizes a module path and checks it doesn't
// escape the project root (no leading ".." components survive cleaning).
func normalizeModule(module, name string) (QualifiedName, error) {
	if name == "" {
		return QualifiedName{}, NewError(AmbiguousName, "empty local name for module %q", module)
	}
	norm := normalizePath(module)
	if norm == ".." || strings.HasPrefix(norm, "../") {
		return QualifiedName{}, NewError(EscapesSandbox, "reference to module %q escapes the project root", module)
	}
	return QualifiedName{Module: norm, Local: name}, nil
}

// normalizePath cleans a slash-separated relative path the way the spec
// requires: "." and "" both mean the root module.
func normalizePath(p string) string {
	if p == "" || p == "." {
		return ""
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return ""
	}
	return strings.TrimPrefix(cleaned, "/")
}
