// Package slog adapts the standard library's log/slog to the logger facade,
// for applications that standardize on slog instead of zerolog.
package slog

import (
	stdslog "log/slog"

	"github.com/ghgh415263/relmap/pkg/logger"
)

// SlogHandler forwards facade calls, message plus alternating key/value
// pairs, to a slog.Logger.
type SlogHandler struct {
	logger *stdslog.Logger
}

var _ logger.Logger = (*SlogHandler)(nil)

// New wraps a slog handler.
func New(h stdslog.Handler) *SlogHandler {
	return &SlogHandler{logger: stdslog.New(h)}
}

// FromLogger adapts an already-configured slog.Logger.
func FromLogger(l *stdslog.Logger) *SlogHandler {
	return &SlogHandler{logger: l}
}

func (h *SlogHandler) Error(msg string, args ...any) {
	h.logger.Error(msg, args...)
}

func (h *SlogHandler) Warn(msg string, args ...any) {
	h.logger.Warn(msg, args...)
}

func (h *SlogHandler) Info(msg string, args ...any) {
	h.logger.Info(msg, args...)
}

func (h *SlogHandler) Debug(msg string, args ...any) {
	h.logger.Debug(msg, args...)
}
