// Command ybt is the target graph engine's command-line entrypoint: it
// finds the project root, crawls build files from the given seed
// selectors, fingerprints the resulting graph, and either builds it
// (via the Scheduler) or reports on it (tree / list-builders / version).
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/resonai/ybt-sub000/src/builder/filegroup"
	"github.com/resonai/ybt-sub000/src/cache"
	"github.com/resonai/ybt-sub000/src/cli"
	"github.com/resonai/ybt-sub000/src/cli/logging"
	"github.com/resonai/ybt-sub000/src/core"
	"github.com/resonai/ybt-sub000/src/crawl"
	"github.com/resonai/ybt-sub000/src/fingerprint"
	"github.com/resonai/ybt-sub000/src/imagecache"
	"github.com/resonai/ybt-sub000/src/parse"
	"github.com/resonai/ybt-sub000/src/schedule"
)

var log = logging.NamedLogger("ybt")

// engineVersion is this engine's own release version. `ybt version`
// parses it through semver, so a malformed constant makes that command
// fail with an error rather than print a garbled version string.
const engineVersion = "0.1.0"

var opts struct {
	Usage string `usage:"ybt is a polyglot, container-aware build orchestrator.\n\nIt crawls YBuild files from a set of seed targets, builds a dependency graph, and executes it with cached, per-target builder plug-ins."`

	BuildFileName        string `long:"build-file-name" description:"Name of build files to look for." default:"YBuild"`
	DefaultTargetName    string `long:"default-target-name" description:"Target name used as the seed, in the current module, when no target is given."`
	BuildersWorkspaceDir string `long:"builders-workspace-dir" description:"Directory (relative to the project root) builders use as scratch space and cache storage."`
	NonInteractive       bool   `long:"non-interactive" description:"Accepted for compatibility; this engine's output is always non-interactive."`
	NoBuildCache         bool   `long:"no-build-cache" description:"Disable the local/global build cache."`
	NoTestCache          bool   `long:"no-test-cache" description:"Disable the test-result cache."`
	NoDockerCache        bool   `long:"no-docker-cache" description:"Disable the Image-Cache Classifier's docker daemon/registry probes."`
	ContinueAfterFail    bool   `long:"continue-after-fail" description:"Keep building targets that don't depend on a failed target, instead of aborting."`
	BuildBaseImages      bool   `long:"build-base-images" description:"Force the Image-Cache Classifier to treat nothing as pre-built, so every target is built from source instead of reused from a base image."`
	ForcePull            bool   `long:"force-pull" description:"Accepted for compatibility; the Image-Cache Classifier always re-probes every run, so there's no stale classification to force past."`
	Offline              bool   `long:"offline" description:"Don't contact the global cache or a docker registry; local-only."`
	Push                 bool   `long:"push" description:"Accepted for compatibility; the scheduler writes cache entries to the local cache only and uploads nothing to the global cache."`
	NoPolicies           bool   `long:"no-policies" description:"Accepted for compatibility; policy-checker implementations are out of this engine's scope."`
	SCMProvider          string `long:"scm-provider" choice:"none" choice:"git" description:"Accepted for compatibility; SCM providers are out of this engine's scope." default:"none"`
	LogLevel             string `long:"loglevel" choice:"debug" choice:"info" choice:"warning" choice:"error" choice:"critical" default:"warning" description:"Logging verbosity."`
	LogToStderr          bool   `long:"logtostderr" description:"Log to stderr (default)."`
	LogToStdout          bool   `long:"logtostdout" description:"Log to stdout instead of stderr."`

	Build struct {
		Args struct {
			Targets []string `positional-arg-name:"target" description:"Seed target selectors to build."`
		} `positional-args:"true"`
	} `command:"build" description:"Crawls and builds one or more targets."`

	Tree struct {
		Args struct {
			Targets []string `positional-arg-name:"target" description:"Seed target selectors to crawl."`
		} `positional-args:"true"`
	} `command:"tree" description:"Crawls targets and prints the resulting dependency graph without building."`

	Version struct {
	} `command:"version" description:"Prints the engine version."`

	ListBuilders struct {
	} `command:"list-builders" description:"Lists every registered builder plug-in."`
}

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	parser := cli.ParseFlagsFromArgsOrDie("ybt", &opts, args)

	level, err := cli.ParseLogLevel(opts.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	cli.InitLogging(level, opts.LogToStdout)

	command := parser.Active
	if command == nil {
		parser.WriteHelp(os.Stderr)
		return 2
	}

	root, err := core.FindProjectRoot(".")
	if err != nil {
		log.Error("%s", err)
		return 2
	}

	conf := core.DefaultConfiguration()
	if opts.BuildFileName != "" {
		conf.Parse.BuildFileName = opts.BuildFileName
	}
	if opts.DefaultTargetName != "" {
		conf.Parse.DefaultTargetName = opts.DefaultTargetName
	}
	if opts.BuildersWorkspaceDir != "" {
		conf.Build.BuildersWorkspaceDir = opts.BuildersWorkspaceDir
	}
	if err := core.ReadConfigFile(conf, filepath.Join(root, core.YConfigFileName)); err != nil {
		log.Error("%s", err)
		return 1
	}

	registry := core.NewBuilderRegistry()
	if err := filegroup.Register(registry); err != nil {
		log.Error("%s", err)
		return 1
	}

	switch command.Name {
	case "version":
		return cmdVersion()
	case "list-builders":
		return cmdListBuilders(registry)
	case "build":
		return cmdBuild(root, conf, registry, opts.Build.Args.Targets)
	case "tree":
		return cmdTree(root, conf, registry, opts.Tree.Args.Targets)
	default:
		parser.WriteHelp(os.Stderr)
		return 2
	}
}

func cmdVersion() int {
	v, err := semver.NewVersion(engineVersion)
	if err != nil {
		log.Error("invalid engine version constant %q: %s", engineVersion, err)
		return 1
	}
	fmt.Printf("ybt version %s\n", v.String())
	return 0
}

func cmdListBuilders(registry *core.BuilderRegistry) int {
	names := registry.Names()
	sort.Strings(names)
	for _, name := range names {
		sig, _ := registry.Signature(name)
		fmt.Printf("%s (cachable=%t)\n", name, sig.Cachable)
	}
	return 0
}

// crawlGraph builds the graph shared by `build` and `tree`: wires an
// Extractor/Evaluator/Crawler over registry, resolves seeds against the
// working-directory-relative module, and crawls. Seeds default to the
// cwd module's default target name when none are given, per §4.4's
// "Input: a list of seed selectors, or the default-target name."
func crawlGraph(root string, conf *core.Configuration, registry *core.BuilderRegistry, rawSeeds []string) (*core.Graph, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	relCwd, err := filepath.Rel(root, cwd)
	if err != nil {
		return nil, err
	}
	ctx := core.ResolveContext{CurrentModule: normalizeRel(relCwd)}

	var seeds []core.QualifiedName
	if len(rawSeeds) == 0 {
		seeds = append(seeds, core.QualifiedName{Module: ctx.CurrentModule, Local: conf.Parse.DefaultTargetName})
	}
	for _, raw := range rawSeeds {
		name, err := core.ResolveRef(raw, ctx)
		if err != nil && core.KindOf(err) == core.AmbiguousName && raw != "" && !strings.Contains(raw, ":") {
			// A bare module path seed selects every target in that module.
			mod := filepath.Join(ctx.CurrentModule, raw)
			if strings.HasPrefix(raw, "//") {
				mod = raw[2:]
			}
			name, err = core.ResolveRef("//"+normalizeRel(mod)+":*", ctx)
		}
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, name)
	}

	graph := core.NewGraph()
	extractor := core.NewExtractor(registry)
	evaluator := parse.NewEvaluator(extractor, graph)
	crawler := crawl.NewCrawler(root, conf.Parse.BuildFileName, evaluator, graph)
	if err := crawler.Crawl(seeds); err != nil {
		return nil, err
	}
	if err := graph.CheckComplete(); err != nil {
		return nil, err
	}
	return graph, nil
}

func normalizeRel(rel string) string {
	if rel == "." || rel == "" {
		return ""
	}
	return filepath.ToSlash(rel)
}

func cmdTree(root string, conf *core.Configuration, registry *core.BuilderRegistry, rawSeeds []string) int {
	graph, err := crawlGraph(root, conf, registry, rawSeeds)
	if err != nil {
		log.Error("%s", err)
		return 1
	}
	order, err := graph.StableOrder()
	if err != nil {
		log.Error("%s", err)
		return 1
	}
	for _, name := range order {
		spec := graph.Target(name)
		deps := make([]string, 0, len(spec.Deps))
		for _, d := range spec.SortedDeps() {
			deps = append(deps, d.String())
		}
		fmt.Printf("%s [%s] deps=%s\n", name, spec.BuilderName, strings.Join(deps, ", "))
	}
	return 0
}

func cmdBuild(root string, conf *core.Configuration, registry *core.BuilderRegistry, rawSeeds []string) int {
	graph, err := crawlGraph(root, conf, registry, rawSeeds)
	if err != nil {
		log.Error("%s", err)
		return exitCodeFor(err)
	}

	if _, err := fingerprint.NewFingerprinter(graph, root).FingerprintAll(); err != nil {
		log.Error("%s", err)
		return exitCodeFor(err)
	}

	workspaceDir := filepath.Join(root, conf.Build.BuildersWorkspaceDir)
	local, err := cache.NewLocalCache(filepath.Join(workspaceDir, ".cache"), conf.Cache.DirCacheHighWaterMarkMB, conf.Cache.DirCacheLowWaterMarkMB)
	if err != nil {
		log.Error("%s", err)
		return 1
	}
	twoTier := &cache.TwoTier{Local: local}
	if conf.Cache.HTTPURL != "" && !opts.Offline {
		twoTier.Global = cache.NewHTTPGlobalCache(conf.Cache.HTTPURL, conf.Cache.UploadOnly)
	}

	classifier := imagecache.NewClassifier(graph, opts.BuildBaseImages)
	if opts.NoDockerCache || opts.Offline {
		classifier = nil
	}

	sched := schedule.NewScheduler(graph, registry, conf, root, twoTier, classifier)
	sched.NoBuildCache = opts.NoBuildCache
	sched.NoTestCache = opts.NoTestCache
	sched.ContinueAfterFail = opts.ContinueAfterFail

	result, err := sched.Run(context.Background())
	reportResult(result)
	if err != nil {
		log.Error("%s", err)
		return exitCodeFor(err)
	}
	if len(result.Failed) > 0 {
		return 1
	}
	return 0
}

func reportResult(result *schedule.Result) {
	if result == nil {
		return
	}
	log.Notice("%d built, %d cache hits, %d pre-built, %d failed, %d skipped",
		len(result.Succeeded), len(result.CacheHits), len(result.PreBuilt), len(result.Failed), len(result.Skipped))
	for _, name := range result.Failed {
		log.Error("FAILED: %s", name)
	}
	for _, name := range result.Skipped {
		log.Warning("SKIPPED: %s", name)
	}
}

// exitCodeFor maps any build-time error to exit code 1 (fatal), per
// §6.2's exit code table; invocation errors (exit 2) are returned
// directly by their own call sites above, before a graph ever exists.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
