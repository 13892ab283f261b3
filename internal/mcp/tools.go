package mcp

import (
	"context"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

// --- Tool definitions ---

var toolGetRecentSessions = mcp.NewTool("get_recent_sessions",
	mcp.WithDescription("Retrieve the most recently completed workout sessions, newest first. Each session includes its exercises, sets, and cached totals."),
	mcp.WithNumber("limit", mcp.Description("Maximum sessions to return. Defaults to 20.")),
)

var toolGetSessionsOnDay = mcp.NewTool("get_sessions_on_day",
	mcp.WithDescription("Retrieve completed workout sessions that started on a given local calendar day."),
	mcp.WithString("date", mcp.Required(), mcp.Description("Day to query (YYYY-MM-DD, local timezone)")),
)

var toolGetTrainingVolume = mcp.NewTool("get_training_volume",
	mcp.WithDescription("Aggregate set/rep/volume totals over sessions completed in a date range. Volume is in kilograms; bodyweight sets contribute sets and reps only."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
)

// --- Tool handlers ---

func (h *handlers) getRecentSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	sessions, err := h.ds.RecentSessions(ctx, limit)
	if err != nil {
		h.log.Error("mcp get_recent_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSessionsOnDay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dateStr, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError("date parameter is required"), nil
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	sessions, err := h.ds.SessionsOnDay(ctx, day)
	if err != nil {
		h.log.Error("mcp get_sessions_on_day", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTrainingVolume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now().AddDate(0, 0, -30)
	if s := req.GetString("start", ""); s != "" {
		t, err := parseFlexTime(s)
		if err != nil {
			return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
		}
		start = t
	}

	sessions, err := h.ds.EndedSessionsAfter(ctx, start, 500)
	if err != nil {
		h.log.Error("mcp get_training_volume", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	var totals models.Totals
	for _, sess := range sessions {
		totals.TotalSets += sess.TotalSets
		totals.TotalReps += sess.TotalReps
		totals.TotalVolumeKg += sess.TotalVolumeKg
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"since":           start.Format(time.RFC3339),
		"sessions":        len(sessions),
		"total_sets":      totals.TotalSets,
		"total_reps":      totals.TotalReps,
		"total_volume_kg": totals.TotalVolumeKg,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
