// Package telemetry wraps structured logging for the coordination core.
// Span names mirror the original design's "a2a.route",
// "orchestrator.assistant_workflow" and "orchestrator.analysis_workflow"
// so log output stays recognizable against prior tooling built around
// those names.
package telemetry

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger configured for the level string (one of
// logrus's ParseLevel values); an unrecognised level falls back to info.
func New(level string) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(os.Stdout)
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)
	return l
}

// Discard builds a logger with output suppressed, for tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// Span returns a logger entry scoped to a named operation, for the
// duration of one conversation-level call. log's existing fields (e.g.
// component) are preserved.
func Span(log *logrus.Entry, name, conversationID string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"span":            name,
		"conversation_id": conversationID,
	})
}
