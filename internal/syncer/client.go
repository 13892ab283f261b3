// Package syncer replicates completed sessions to the remote store.
// Replication is best-effort and idempotent: rows are keyed by
// (owner identity, session id) on the server, and a durable outbox in the
// local database survives restarts so undelivered syncs can resume.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/models"
	"github.com/google/uuid"
)

// Client sends session data to the Atlas sync service over HTTP. The bearer
// token carries the owner identity; the server rejects writes for any other
// identity.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates an HTTP client for the sync service.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// UpsertSummary replicates a session summary. Safe to repeat: the server
// updates in place on key conflict and never creates a duplicate row.
func (c *Client) UpsertSummary(ctx context.Context, summary models.SessionSummary) error {
	path := fmt.Sprintf("/api/v1/sessions/%s/summary", summary.SessionID)
	return c.put(ctx, path, summary)
}

// UpsertBundle replicates a session with its full exercise/set breakdown.
func (c *Client) UpsertBundle(ctx context.Context, bundle models.SessionBundle) error {
	path := fmt.Sprintf("/api/v1/sessions/%s/bundle", bundle.SessionID)
	return c.put(ctx, path, bundle)
}

// DeleteSession removes a session's remote rows (after a local hide).
func (c *Client) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/api/v1/sessions/%s", c.baseURL, sessionID), nil)
	if err != nil {
		return fmt.Errorf("creating delete request: %w", err)
	}
	return c.do(req)
}

func (c *Client) put(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling sync service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("sync service returned %d: %s", resp.StatusCode, body)
}
