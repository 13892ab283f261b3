package mcp

import (
	"context"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/history"
	"github.com/bhagyeshsagole/atlas/internal/models"
)

// DataSource abstracts the history reads MCP tools need. *history.Store
// satisfies this interface.
type DataSource interface {
	RecentSessions(ctx context.Context, limit int) ([]models.Session, error)
	SessionsOnDay(ctx context.Context, day time.Time) ([]models.Session, error)
	EndedSessionsAfter(ctx context.Context, t time.Time, limit int) ([]models.Session, error)
}

// Compile-time check: *history.Store satisfies DataSource.
var _ DataSource = (*history.Store)(nil)
