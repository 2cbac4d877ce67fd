// Package telemetry provides logging and metrics for the redclaw backend.
package telemetry

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger creates a structured JSON logger.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SessionLogger returns a logger with session-scoped fields.
func SessionLogger(logger *slog.Logger, sessionID, agentType string) *slog.Logger {
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("agent_type", agentType),
	)
}
