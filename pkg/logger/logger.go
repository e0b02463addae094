// Package logger provides the logging facade the conversion engine reports
// through, with a zerolog-backed default implementation.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

// Logger accepts a message plus alternating key/value pairs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Build assembles a zerolog-backed Logger writing to a file path or a
// caller-supplied writer.
type Build struct {
	writer io.Writer
	path   string
}

func New() *Build {
	return &Build{}
}

func (build *Build) FromPath(path string) *Build {
	build.path = path
	return build
}

func (build *Build) FromBuffer(w io.Writer) *Build {
	build.writer = w
	return build
}

func (build *Build) Make() (*ZerologHandler, error) {
	handler := &ZerologHandler{writer: os.Stdout}
	if build.writer != nil {
		handler.writer = build.writer
	}
	if build.path != "" {
		file, err := os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		handler.LogFile = file
		handler.writer = zerolog.SyncWriter(file)
	}
	handler.Logger = zerolog.New(handler.writer).With().Timestamp().Logger()
	return handler, nil
}

// ZerologHandler adapts a zerolog.Logger to the Logger interface.
type ZerologHandler struct {
	writer  io.Writer
	LogFile *os.File
	Logger  zerolog.Logger
}

func (h *ZerologHandler) Error(msg string, args ...any) {
	h.Logger.Error().Fields(fieldsOf(args)).Msg(msg)
}

func (h *ZerologHandler) Warn(msg string, args ...any) {
	h.Logger.Warn().Fields(fieldsOf(args)).Msg(msg)
}

func (h *ZerologHandler) Info(msg string, args ...any) {
	h.Logger.Info().Fields(fieldsOf(args)).Msg(msg)
}

func (h *ZerologHandler) Debug(msg string, args ...any) {
	h.Logger.Debug().Fields(fieldsOf(args)).Msg(msg)
}

// fieldsOf pairs up alternating key/value arguments. Keys that are not
// strings are skipped; a trailing key keeps a nil value.
func fieldsOf(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	fields := make(map[string]any, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if i+1 < len(args) {
			fields[key] = args[i+1]
		} else {
			fields[key] = nil
		}
	}
	return fields
}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return &ZerologHandler{Logger: zerolog.Nop()}
}
