package core

import (
	"fmt"
	"sync"

	"github.com/resonai/ybt-sub000/src/cli/logging"
)

var log = logging.NamedLogger("core")

// builderEntry bundles everything the registry knows about one builder
// name: its signature, build function, and manipulate_target hooks.
type builderEntry struct {
	sig   BuilderSignature
	build BuildFunc
	hooks []ManipulateTargetHook
}

// BuilderRegistry maps builder name to {signature, build function, hooks}
// (§4.3). It's populated once, before the first build-file evaluation,
// and then passed around by reference and treated as read-only -
// mirroring the Design Notes' guidance to avoid process-global plug-in
// state.
type BuilderRegistry struct {
	mu       sync.RWMutex
	builders map[string]*builderEntry
}

// NewBuilderRegistry returns an empty registry.
func NewBuilderRegistry() *BuilderRegistry {
	return &BuilderRegistry{builders: map[string]*builderEntry{}}
}

// RegisterBuilderSig declares the parameters and types for a builder. It
// rejects duplicate signature registrations and invalid signatures.
func (r *BuilderRegistry) RegisterBuilderSig(sig BuilderSignature) error {
	if err := sig.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, present := r.builders[sig.BuilderName]; present {
		return NewError(ParseError, "duplicate signature registration for builder %q", sig.BuilderName)
	}
	r.builders[sig.BuilderName] = &builderEntry{sig: sig}
	return nil
}

// RegisterBuildFunc attaches a build function to a previously-declared
// builder signature. Rejects duplicate build-func registrations.
func (r *BuilderRegistry) RegisterBuildFunc(name string, fn BuildFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, present := r.builders[name]
	if !present {
		return NewError(ParseError, "register_build_func for unknown builder %q (register its signature first)", name)
	}
	if entry.build != nil {
		return NewError(ParseError, "duplicate build function registration for builder %q", name)
	}
	entry.build = fn
	return nil
}

// RegisterManipulateTargetHook attaches a post-extraction rewrite hook.
// Multiple hooks may be registered for the same builder; they run in
// registration order.
func (r *BuilderRegistry) RegisterManipulateTargetHook(name string, fn ManipulateTargetHook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, present := r.builders[name]
	if !present {
		return NewError(ParseError, "register_manipulate_target_hook for unknown builder %q", name)
	}
	entry.hooks = append(entry.hooks, fn)
	return nil
}

// Signature returns the signature for a builder name, if registered.
func (r *BuilderRegistry) Signature(name string) (BuilderSignature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, present := r.builders[name]
	if !present {
		return BuilderSignature{}, false
	}
	return entry.sig, true
}

// BuildFunc returns the build function registered for a builder name.
func (r *BuilderRegistry) BuildFunc(name string) (BuildFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, present := r.builders[name]
	if !present || entry.build == nil {
		return nil, false
	}
	return entry.build, true
}

// Hooks returns the manipulate_target hooks registered for a builder name.
func (r *BuilderRegistry) Hooks(name string) []ManipulateTargetHook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, present := r.builders[name]
	if !present {
		return nil
	}
	return entry.hooks
}

// Names returns all registered builder names, used by `ybt list-builders`.
func (r *BuilderRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	return names
}

// String implements fmt.Stringer for debugging/printing registry contents.
func (r *BuilderRegistry) String() string {
	return fmt.Sprintf("BuilderRegistry{%d builders}", len(r.builders))
}
