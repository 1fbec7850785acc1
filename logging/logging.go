// Package logging wraps charmbracelet/log with the entity-tagged logger
// every block (DVB, Encap, PhysLayer, SatCarrier) constructs once at
// startup and passes down to the components it owns (§9 "inject a log sink
// handle").
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the handle the entity process passes to its engine block
// handlers instead of a process-wide global (§9). The band planner, DAMA
// and Slotted-ALOHA constructors do not take a Logger.
type Logger = log.Logger

// New returns a Logger tagged with entity, writing to stderr at level.
func New(entity string, level log.Level) *Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Prefix:          entity,
	})
	l.SetLevel(level)
	return l
}

// Discard returns a Logger that drops everything, for tests.
func Discard() *Logger {
	return log.New(io.Discard)
}
