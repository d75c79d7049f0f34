package schedule

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/resonai/ybt-sub000/src/core"
)

var unsafeWorkspaceChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// sanitizeTargetName turns a local target name into a filesystem-safe
// directory component, per §5's "<builder_name>/_<sanitized_target_name>"
// workspace partitioning rule.
func sanitizeTargetName(local string) string {
	return "_" + unsafeWorkspaceChars.ReplaceAllString(local, "_")
}

// buildContext is the concrete implementation of core.BuildContext
// handed to builder plug-ins (§6.1). It's deliberately narrow: plug-ins
// only ever see the core.BuildContext interface, never the Scheduler
// itself, so a plug-in cannot reach into scheduling internals. A fresh
// instance is created per build invocation so GetWorkspace can be
// scoped to the target currently being built.
type buildContext struct {
	sched  *Scheduler
	target core.QualifiedName
	builderName string
}

func newBuildContext(sched *Scheduler, target core.QualifiedName, builderName string) *buildContext {
	return &buildContext{sched: sched, target: target, builderName: builderName}
}

func (c *buildContext) Conf() *core.Configuration {
	return c.sched.Conf
}

// GetWorkspace returns a path inside the calling target's own
// per-target workspace directory, partitioned by builder name and a
// sanitized target name so no two targets can collide on one directory
// (§5: "No two targets may write to the same workspace directory").
func (c *buildContext) GetWorkspace(parts ...string) string {
	base := filepath.Join(c.sched.WorkspaceDir, c.builderName, sanitizeTargetName(c.target.Local))
	return filepath.Join(append([]string{base}, parts...)...)
}

func (c *buildContext) GetBinDir(module string) string {
	return filepath.Join(c.sched.WorkspaceDir, "bin", module)
}

// RunInBuildEnv runs cmd directly on the host when buildenv is the zero
// value; any other buildenv is rejected with an error, since this engine
// has no container execution (no docker-image builder ships here). The
// host path is a direct subprocess
// invocation, matching the teacher's own fallback of running rules
// directly when no sandboxing is configured.
func (c *buildContext) RunInBuildEnv(ctx context.Context, buildenv core.QualifiedName, cmdArgs []string, env []string, workDir string) ([]byte, error) {
	if buildenv != (core.QualifiedName{}) {
		return nil, fmt.Errorf("schedule: running inside buildenv %s is not supported by this engine", buildenv)
	}
	if len(cmdArgs) == 0 {
		return nil, fmt.Errorf("schedule: empty command")
	}
	cmd := exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
	cmd.Dir = workDir
	cmd.Env = env
	return cmd.CombinedOutput()
}

// WalkTargetGraph returns the stable-ordered closure of names: every
// name given plus its transitive deps, each exactly once.
func (c *buildContext) WalkTargetGraph(names []core.QualifiedName) ([]core.QualifiedName, error) {
	want := map[core.QualifiedName]bool{}
	for _, n := range names {
		want[n] = true
		for d := range c.sched.Graph.Descendants(n) {
			want[d] = true
		}
	}
	order, err := c.sched.Graph.StableOrder()
	if err != nil {
		return nil, err
	}
	var out []core.QualifiedName
	for _, n := range order {
		if want[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

// WalkTargetDepsTopological returns target's transitive deps (not
// including target itself) in stable topological order.
func (c *buildContext) WalkTargetDepsTopological(target core.QualifiedName) ([]core.QualifiedName, error) {
	deps := c.sched.Graph.Descendants(target)
	order, err := c.sched.Graph.StableOrder()
	if err != nil {
		return nil, err
	}
	var out []core.QualifiedName
	for _, n := range order {
		if deps[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

// GenerateAllDeps returns target's direct and transitive deps, sorted
// by qualified name for a deterministic result.
func (c *buildContext) GenerateAllDeps(target core.QualifiedName) ([]core.QualifiedName, error) {
	all := map[core.QualifiedName]bool{}
	for _, d := range c.sched.Graph.Successors(target) {
		all[d] = true
	}
	for d := range c.sched.Graph.Descendants(target) {
		all[d] = true
	}
	out := make([]core.QualifiedName, 0, len(all))
	for n := range all {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// BuildTarget triggers (or waits for) the build of target, used by
// generator-style builders that need a tool dependency materialized
// before they can run. The scheduler's topological build order already
// guarantees this for declared deps; this exists for the rarer case of
// a builder needing something not expressed as a normal dep.
func (c *buildContext) BuildTarget(ctx context.Context, target core.QualifiedName) error {
	return c.sched.buildOne(ctx, target)
}
