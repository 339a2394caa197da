package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/rpimonitor/internal/errors"
	"github.com/rs/zerolog"
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

// ZeroLogger is the zerolog backed Logger.
type ZeroLogger struct {
	zl zerolog.Logger
}

// New returns a console logger writing to w at the given level
// (debug, info, warning, error). Unknown levels fall back to warning.
func New(w io.Writer, level string, isService bool) *ZeroLogger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    isService,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	return &ZeroLogger{
		zl: zerolog.New(output).Level(ParseLevel(level)).With().Timestamp().Logger(),
	}
}

// Nop returns a Logger that discards everything.
func Nop() *ZeroLogger {
	return &ZeroLogger{zl: zerolog.Nop()}
}

// ParseLevel maps a configured level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}

// Init returns the process logger writing to stderr.
func Init(level string, isService bool) *ZeroLogger {
	return New(os.Stderr, level, isService)
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

func (l *ZeroLogger) Debug() *LogEvent {
	return &LogEvent{l.zl.Debug()}
}

func (l *ZeroLogger) Info() *LogEvent {
	return &LogEvent{l.zl.Info()}
}

func (l *ZeroLogger) Warn() *LogEvent {
	return &LogEvent{l.zl.Warn()}
}

func (l *ZeroLogger) Error() *LogEvent {
	return &LogEvent{l.zl.Error()}
}

// ErrorWithCode logs an error message with a specific error code
func (l *ZeroLogger) ErrorWithCode(err errors.Error) *LogEvent {
	return withCode(l.zl.Error(), err)
}

// WarnWithCode logs a warning with a specific error code
func (l *ZeroLogger) WarnWithCode(err errors.Error) *LogEvent {
	return withCode(l.zl.Warn(), err)
}

func withCode(event *zerolog.Event, err errors.Error) *LogEvent {
	return &LogEvent{event.
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}
