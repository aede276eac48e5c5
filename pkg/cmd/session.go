package cmd

import (
	"log/slog"
	"time"

	"github.com/cascadehq/cascade/pkg/session"
	"github.com/cascadehq/cascade/pkg/session/httpkernel"
)

// NewSessionManager wires the HTTP kernel client into a bounded session
// manager.
func NewSessionManager(kernelURL string, logger *slog.Logger, maxSessions int, idleAfter time.Duration) *session.Manager {
	return session.NewManager(httpkernel.Factory(kernelURL, logger), logger, maxSessions, idleAfter)
}
