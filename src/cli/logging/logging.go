// Package logging contains the singleton logger used globally across ybt.
// It deliberately has little else since it's a dependency everywhere.
package logging

import (
	"gopkg.in/op/go-logging.v1"
)

// Log is the singleton logger instance.
var Log = logging.MustGetLogger("ybt")

// Level is a re-export of the underlying library type.
type Level = logging.Level

// Re-exports of the log levels accepted by --loglevel.
const (
	CRITICAL = logging.CRITICAL
	ERROR    = logging.ERROR
	WARNING  = logging.WARNING
	NOTICE   = logging.NOTICE
	INFO     = logging.INFO
	DEBUG    = logging.DEBUG
)

// NamedLogger returns a logger for a subsystem that wants its own name in
// log lines (e.g. "cache"), while still sharing the global backend
// configuration installed on Log.
func NamedLogger(name string) *logging.Logger {
	return logging.MustGetLogger(name)
}
