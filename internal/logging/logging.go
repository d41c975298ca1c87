package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"equiminer/internal/api"
	"equiminer/internal/bench"
	"equiminer/internal/journal"
	"equiminer/internal/miner"
	"equiminer/internal/rpc"
	"equiminer/pkg/equihash"
	"equiminer/pkg/solver/factory"
	"equiminer/pkg/solver/methods/wagner"
)

// logWriter implements an io.Writer that outputs to standard output, unless
// the console is muted, and to the log rotator once it is initialized.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	if !muted.Load() {
		os.Stdout.Write(p)
	}
	if r := logRotator.Load(); r != nil {
		r.Write(p)
	}
	if t := tap.Load(); t != nil {
		(*t).Write(p)
	}
	return len(p), nil
}

// Loggers per subsystem.  A single backend logger is created and all
// subsystem loggers created from it will write to the backend.
var (
	backendLog = btclog.NewBackend(logWriter{})

	logRotator atomic.Pointer[rotator.Rotator]
	muted      atomic.Bool
	tap        atomic.Pointer[io.Writer]

	minrLog = backendLog.Logger("MINR")
	solvLog = backendLog.Logger("SOLV")
	eqhsLog = backendLog.Logger("EQHS")
	jrnlLog = backendLog.Logger("JRNL")
	apisLog = backendLog.Logger("APIS")
	rpcsLog = backendLog.Logger("RPCS")
	bnchLog = backendLog.Logger("BNCH")
	eqmnLog = backendLog.Logger("EQMN")
)

// Initialize package-global logger variables.
func init() {
	miner.UseLogger(minrLog)
	factory.UseLogger(solvLog)
	wagner.UseLogger(solvLog)
	equihash.UseLogger(eqhsLog)
	journal.UseLogger(jrnlLog)
	api.UseLogger(apisLog)
	rpc.UseLogger(rpcsLog)
	bench.UseLogger(bnchLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	"MINR": minrLog,
	"SOLV": solvLog,
	"EQHS": eqhsLog,
	"JRNL": jrnlLog,
	"APIS": apisLog,
	"RPCS": rpcsLog,
	"BNCH": bnchLog,
	"EQMN": eqmnLog,
}

// Main returns the logger of the process entry point.
func Main() btclog.Logger {
	return eqmnLog
}

// InitLogRotator initializes the logging rotator to write logs to logFile and
// create roll files in the same directory.
func InitLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}
	if old := logRotator.Swap(r); old != nil {
		old.Close()
	}
	return nil
}

// Close flushes and closes the log rotator, if any.
func Close() {
	if r := logRotator.Swap(nil); r != nil {
		r.Close()
	}
}

// MuteConsole stops or resumes writing log lines to standard output. The
// terminal dashboard mutes the console while it owns the screen.
func MuteConsole(mute bool) {
	muted.Store(mute)
}

// SetTap copies every log line to w as well; nil removes the tap.
func SetTap(w io.Writer) {
	if w == nil {
		tap.Store(nil)
		return
	}
	tap.Store(&w)
}

// SetLogLevel sets the logging level for provided subsystem.  Invalid
// subsystems are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level.
func SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// SupportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// ValidLogLevel reports whether logLevel names a btclog level.
func ValidLogLevel(logLevel string) bool {
	_, ok := btclog.LevelFromString(logLevel)
	return ok
}
