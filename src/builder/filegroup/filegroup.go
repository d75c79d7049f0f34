// Package filegroup implements the reference `filegroup` builder
// plug-in against the ABI in core/abi.go (§6.1). A filegroup simply
// relabels its srcs under new destination paths so other targets can
// depend on them as a named group, without any compilation step.
//
// Grounded on the teacher's src/build/filegroup.go: the same "relink,
// don't recompile" relationship between a filegroup's srcs and outs.
// Unlike the teacher, actual linking is deferred to artifact.Store's
// own Materialize step (driven centrally by the scheduler right after
// the build function returns, before the cache entry is written), so the per-destination dedup the
// teacher's filegroupBuilder singleton exists for is handled once, in
// one place, rather than per builder; filegroup here only has to avoid
// two of its own srcs colliding on the same destination, which
// artifact.Store.Add already rejects.
package filegroup

import (
	"context"
	"path/filepath"

	"github.com/resonai/ybt-sub000/src/artifact"
	"github.com/resonai/ybt-sub000/src/core"
)

// BuilderName is the registered builder name build files invoke as
// `filegroup(name = ..., srcs = [...])`.
const BuilderName = "filegroup"

// Signature declares filegroup's three parameters: name, srcs, and an
// optional deps list so a filegroup can also just re-export another
// target's outputs without containing any source file of its own.
var Signature = core.BuilderSignature{
	BuilderName: BuilderName,
	Cachable:    true,
	Params: []core.ParamSpec{
		{Name: "name", Type: core.TypeTargetName},
		{Name: "srcs", Type: core.TypeFilePathList, Default: &core.PropValue{Type: core.TypeFilePathList}},
		{Name: "deps", Type: core.TypeTargetRefList, Default: &core.PropValue{Type: core.TypeTargetRefList}},
	},
}

// Register attaches filegroup's signature and build function to reg.
func Register(reg *core.BuilderRegistry) error {
	if err := reg.RegisterBuilderSig(Signature); err != nil {
		return err
	}
	return reg.RegisterBuildFunc(BuilderName, Build)
}

// Build declares each src as a generated-source artifact at a
// destination path under the target's own module, so downstream
// C++-style consumers pick it up per the propagation table (§4.7). It
// performs no I/O itself: src/dest are project-root-relative paths,
// and the scheduler materializes them via artifact.Store.Materialize
// right after Build returns, before writing the cache entry.
func Build(ctx context.Context, bctx core.BuildContext, spec *core.TargetSpec) error {
	srcs := spec.Props["srcs"].List
	store := artifact.NewStore()
	for _, src := range srcs {
		dest := filepath.Join(spec.Name.Module, filepath.Base(src))
		if err := store.Add(artifact.KindGeneratedSource, dest, src); err != nil {
			return err
		}
	}
	spec.Artifacts = store
	return nil
}
