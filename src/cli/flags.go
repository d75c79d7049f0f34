// Package cli contains the flag-parsing and logging bootstrap shared by
// ybt's command-line entrypoint, grounded on please's src/cli/flags.go
// and src/cli/logging.go but trimmed to what a single-binary, non-daemon
// CLI needs.
package cli

import (
	"fmt"
	"os"
	"path"
	"reflect"
	"strings"

	flags "github.com/thought-machine/go-flags"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("cli")

// ParseFlags parses args against data (a struct tagged with go-flags
// struct tags) and returns the parser plus any error encountered. It
// does not exit on its own; callers decide how to react to --help et al.
func ParseFlags(appname string, data interface{}, args []string) (*flags.Parser, []string, error) {
	parser := flags.NewNamedParser(path.Base(args[0]), flags.HelpFlag|flags.PassDoubleDash)
	parser.AddGroup(appname+" options", "", data)
	extraArgs, err := parser.ParseArgs(args[1:])
	return parser, extraArgs, err
}

// ParseFlagsFromArgsOrDie parses args against data, writing usage and
// exiting with code 2 (invocation error, per §6.2's exit code table) on
// any parse failure or unconsumed argument.
func ParseFlagsFromArgsOrDie(appname string, data interface{}, args []string) *flags.Parser {
	parser, extraArgs, err := ParseFlags(appname, data, args)
	if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
		parser.WriteHelp(os.Stderr)
		os.Exit(0)
	}
	if err != nil {
		writeUsage(data)
		parser.WriteHelp(os.Stderr)
		fmt.Fprintf(os.Stderr, "\n%s\n", err)
		os.Exit(2)
	}
	if len(extraArgs) > 0 {
		// go-flags treats the subcommand itself and its positional args as
		// consumed; leftover extraArgs here means a genuinely unknown flag
		// slipped through PassDoubleDash.
		writeUsage(data)
		fmt.Fprintf(os.Stderr, "unknown argument(s): %s\n", strings.Join(extraArgs, " "))
		parser.WriteHelp(os.Stderr)
		os.Exit(2)
	}
	return parser
}

func writeUsage(opts interface{}) {
	if field := reflect.ValueOf(opts).Elem().FieldByName("Usage"); field.IsValid() && field.String() != "" {
		fmt.Fprintln(os.Stderr, strings.TrimSpace(field.String()))
		fmt.Fprintln(os.Stderr)
	}
}

// InitLogging installs a plain logging backend at the given level,
// writing to stderr, or to stdout when toStdout is set. Unlike please's InitLogging, there's no interactive
// progress-bar backend here (§6.2 has no --plain_output/--interactive
// distinction); --non-interactive is accepted for CLI compatibility but
// this CLI is always non-interactive.
func InitLogging(level logging.Level, toStdout bool) {
	out := os.Stderr
	if toStdout {
		out = os.Stdout
	}
	backend := logging.NewLogBackend(out, "", 0)
	formatter := logging.MustStringFormatter("%{time:15:04:05.000} %{level:7s}: %{message}")
	formatted := logging.NewBackendFormatter(backend, formatter)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)
}

// ParseLogLevel converts a --loglevel string into a logging.Level,
// matching the choices advertised in §6.2.
func ParseLogLevel(s string) (logging.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return logging.DEBUG, nil
	case "info":
		return logging.INFO, nil
	case "warning", "warn":
		return logging.WARNING, nil
	case "error":
		return logging.ERROR, nil
	case "critical":
		return logging.CRITICAL, nil
	default:
		return logging.WARNING, fmt.Errorf("unknown log level %q", s)
	}
}
