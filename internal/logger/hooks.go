package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Redactor masks secrets inside a string.
type Redactor interface {
	Redact(text string) string
}

// RedactionHook masks stored secrets in log messages and string fields before
// an entry is formatted.
type RedactionHook struct {
	redactor Redactor
}

// NewRedactionHook creates a hook that redacts with r.
func NewRedactionHook(r Redactor) *RedactionHook {
	return &RedactionHook{redactor: r}
}

// Levels returns the log levels this hook is interested in
func (h *RedactionHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire is called when a log event occurs
func (h *RedactionHook) Fire(entry *logrus.Entry) error {
	if h.redactor == nil {
		return nil
	}

	entry.Message = h.redactor.Redact(entry.Message)

	// entry.Data may be shared with the parent entry, so replace it
	data := make(logrus.Fields, len(entry.Data))
	for key, value := range entry.Data {
		switch v := value.(type) {
		case string:
			data[key] = h.redactor.Redact(v)
		case error:
			data[key] = h.redactor.Redact(v.Error())
		case fmt.Stringer:
			data[key] = h.redactor.Redact(v.String())
		default:
			data[key] = value
		}
	}
	entry.Data = data
	return nil
}

// ContextualLogger wraps a logger with reference id and tool context
type ContextualLogger struct {
	*logrus.Logger
	refID string
	tool  string
}

// NewContextualLogger creates a new contextual logger
func NewContextualLogger(logger *logrus.Logger, refID, tool string) *ContextualLogger {
	return &ContextualLogger{
		Logger: logger,
		refID:  refID,
		tool:   tool,
	}
}

// WithRef adds a schema reference id to log entries
func (l *ContextualLogger) WithRef(refID string) *ContextualLogger {
	return &ContextualLogger{
		Logger: l.Logger,
		refID:  refID,
		tool:   l.tool,
	}
}

// WithTool adds the invoked tool name to log entries
func (l *ContextualLogger) WithTool(tool string) *ContextualLogger {
	return &ContextualLogger{
		Logger: l.Logger,
		refID:  l.refID,
		tool:   tool,
	}
}

// Entry returns an entry carrying the context fields.
func (l *ContextualLogger) Entry() *logrus.Entry {
	fields := logrus.Fields{}
	if l.refID != "" {
		fields["ref_id"] = l.refID
	}
	if l.tool != "" {
		fields["tool"] = l.tool
	}
	return l.Logger.WithFields(fields)
}

// Info logs at info level with context
func (l *ContextualLogger) Info(args ...interface{}) {
	l.Entry().Info(args...)
}

// Infof logs at info level with format and context
func (l *ContextualLogger) Infof(format string, args ...interface{}) {
	l.Entry().Infof(format, args...)
}

// Debug logs at debug level with context
func (l *ContextualLogger) Debug(args ...interface{}) {
	l.Entry().Debug(args...)
}

// Debugf logs at debug level with format and context
func (l *ContextualLogger) Debugf(format string, args ...interface{}) {
	l.Entry().Debugf(format, args...)
}

// Warn logs at warn level with context
func (l *ContextualLogger) Warn(args ...interface{}) {
	l.Entry().Warn(args...)
}

// Warnf logs at warn level with format and context
func (l *ContextualLogger) Warnf(format string, args ...interface{}) {
	l.Entry().Warnf(format, args...)
}

// Error logs at error level with context
func (l *ContextualLogger) Error(args ...interface{}) {
	l.Entry().Error(args...)
}

// Errorf logs at error level with format and context
func (l *ContextualLogger) Errorf(format string, args ...interface{}) {
	l.Entry().Errorf(format, args...)
}
