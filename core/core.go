package core

import "github.com/hupe1980/toolflow/logging"

// scope binds correlation attributes (run id, tool call id) to a logger once
// so every entry written through RunContext or ToolContext carries them.
type scope struct {
	logger logging.Logger
}

func newScope(l logging.Logger, attrs ...any) *scope {
	return &scope{logger: logging.With(l, attrs...)}
}

// Logger returns the scoped logger. It is never nil.
func (s *scope) Logger() logging.Logger { return s.logger }

// LogDebug writes a debug entry with the scope attributes.
func (s *scope) LogDebug(msg string, args ...any) { s.logger.Debug(msg, args...) }

// LogInfo writes an info entry with the scope attributes.
func (s *scope) LogInfo(msg string, args ...any) { s.logger.Info(msg, args...) }

// LogWarn writes a warning with the scope attributes.
func (s *scope) LogWarn(msg string, args ...any) { s.logger.Warn(msg, args...) }

// LogError writes an error entry with the scope attributes.
func (s *scope) LogError(msg string, args ...any) { s.logger.Error(msg, args...) }
