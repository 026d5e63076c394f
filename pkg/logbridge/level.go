// Package logbridge relays the SSH engine's native log events into zap, mapping
// the engine's numeric verbosity onto severities that include TRACE.
package logbridge

import (
	"fmt"
	"strings"

	"github.com/bacalhau-project/sshkit/pkg/engine"
	"github.com/bacalhau-project/sshkit/pkg/logger"
	"go.uber.org/zap/zapcore"
)

// Level is the severity a caller configures on a session. LevelNotSet is the
// quietest: nothing is forwarded.
type Level int

const (
	LevelNotSet Level = iota
	LevelTrace
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
)

var levelNames = map[Level]string{
	LevelNotSet:  "NOTSET",
	LevelTrace:   "TRACE",
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
}

// Levels lists every level from quietest to most severe.
var Levels = []Level{LevelNotSet, LevelTrace, LevelDebug, LevelInfo, LevelWarning, LevelError}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel accepts the level names case-insensitively; "warn" and "none" are
// accepted as aliases.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NOTSET", "NONE", "":
		return LevelNotSet, nil
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARNING", "WARN":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	}
	return LevelNotSet, fmt.Errorf("unknown log level %q", s)
}

// ZapLevel returns the zap level records at l are written with. LevelNotSet has
// no zap equivalent.
func (l Level) ZapLevel() (zapcore.Level, bool) {
	switch l {
	case LevelTrace:
		return logger.TraceLevel, true
	case LevelDebug:
		return zapcore.DebugLevel, true
	case LevelInfo:
		return zapcore.InfoLevel, true
	case LevelWarning:
		return zapcore.WarnLevel, true
	case LevelError:
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// VerbosityFor is the native verbosity the engine runs at for l.
func VerbosityFor(l Level) engine.Verbosity {
	switch l {
	case LevelTrace:
		return engine.VerbosityTrace
	case LevelDebug:
		return engine.VerbosityDebug
	case LevelInfo:
		return engine.VerbosityInfo
	case LevelWarning, LevelError:
		return engine.VerbosityWarn
	default:
		return engine.VerbosityNone
	}
}

// LevelForPriority maps the priority of a native log event to a severity.
func LevelForPriority(priority engine.Verbosity) Level {
	switch {
	case priority >= engine.VerbosityTrace:
		return LevelTrace
	case priority == engine.VerbosityDebug:
		return LevelDebug
	case priority == engine.VerbosityInfo:
		return LevelInfo
	case priority == engine.VerbosityWarn:
		return LevelWarning
	default:
		return LevelError
	}
}
