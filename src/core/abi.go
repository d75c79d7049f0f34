package core

import "context"

// BuildContext is the narrow interface exposed to builder plug-ins (§6.1).
// It lives in core so that the BuilderRegistry can invoke build functions
// without creating an import cycle; the schedule package provides the
// concrete implementation (buildContext) and plug-ins only ever see this
// interface.
type BuildContext interface {
	// Conf returns the frozen project configuration.
	Conf() *Configuration
	// GetWorkspace returns a path inside this target's per-target
	// workspace directory, joining the given path parts.
	GetWorkspace(parts ...string) string
	// GetBinDir returns the binary output directory for a module.
	GetBinDir(module string) string
	// RunInBuildEnv runs cmd inside the given buildenv target's container,
	// or directly on the host if buildenv is the zero value.
	RunInBuildEnv(ctx context.Context, buildenv QualifiedName, cmd []string, env []string, workDir string) ([]byte, error)
	// WalkTargetGraph walks the graph starting at names, in stable order.
	WalkTargetGraph(names []QualifiedName) ([]QualifiedName, error)
	// WalkTargetDepsTopological returns target's transitive deps in
	// stable topological order.
	WalkTargetDepsTopological(target QualifiedName) ([]QualifiedName, error)
	// GenerateAllDeps returns the direct and transitive deps of target.
	GenerateAllDeps(target QualifiedName) ([]QualifiedName, error)
	// BuildTarget triggers (or waits for) the build of another target,
	// used by builders that need a dependency actually materialized
	// before they can proceed (e.g. a code generator consuming a tool).
	BuildTarget(ctx context.Context, target QualifiedName) error
}

// BuildFunc is the function a plug-in attaches via RegisterBuildFunc. It
// may add artifacts to spec and invoke ctx.RunInBuildEnv; it must not
// mutate spec.Deps or spec.Tags (those are frozen by the time build runs).
type BuildFunc func(ctx context.Context, bctx BuildContext, spec *TargetSpec) error

// ManipulateTargetHook is attached via RegisterManipulateTargetHook; it
// may rewrite props, append deps, or add tags on the freshly-extracted
// spec before it's registered into the graph.
type ManipulateTargetHook func(spec *TargetSpec) error
