// Package mcp exposes the local training history to language-model clients
// over the Model Context Protocol.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("Atlas", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Atlas training history server. Query completed workout sessions, per-day activity, and training volume. Hidden and in-progress sessions are never returned."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetRecentSessions, Handler: h.getRecentSessions},
		server.ServerTool{Tool: toolGetSessionsOnDay, Handler: h.getSessionsOnDay},
		server.ServerTool{Tool: toolGetTrainingVolume, Handler: h.getTrainingVolume},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resRecentSessions, Handler: h.recentSessions},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

var resRecentSessions = mcp.NewResource(
	"atlas://recent_sessions",
	"Recent Sessions",
	mcp.WithResourceDescription("The most recently completed workout sessions with totals"),
	mcp.WithMIMEType("application/json"),
)
