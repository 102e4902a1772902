package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

// RunNotifier pushes run-finished notifications to the session that
// started the run.
type RunNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewRunNotifier creates a notifier that pushes via MCP notifications.
func NewRunNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *RunNotifier {
	return &RunNotifier{mcpServer: mcpServer, sessions: sessions}
}

// Notify sends a run summary to the session associated with workflowID.
// Best-effort: returns nil if no session is registered.
func (n *RunNotifier) Notify(_ context.Context, workflowID string, payload map[string]any) error {
	sessionID, ok := n.sessions.SessionFor(workflowID)
	if !ok {
		return nil // caller not connected, best-effort
	}
	err := n.mcpServer.SendNotificationToSpecificClient(sessionID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		// Session expired between lookup and send. Not an error.
		n.sessions.Remove(sessionID)
		return nil
	}
	return err
}
