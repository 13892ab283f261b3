package storage

import (
	"context"
	"fmt"
)

// Connection states. A bundle becomes visible to a viewer only once the
// owner has approved the relation.
const (
	ConnectionPending  = "pending"
	ConnectionApproved = "approved"
)

// RequestConnection records a pending connection from owner to viewer.
// Repeating the request is a no-op.
func (db *DB) RequestConnection(ctx context.Context, ownerID, viewerID string) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO connections (owner_id, viewer_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (owner_id, viewer_id) DO NOTHING`,
		ownerID, viewerID, ConnectionPending)
	if err != nil {
		return fmt.Errorf("requesting connection: %w", err)
	}
	return nil
}

// ApproveConnection flips a pending connection to approved. Returns false
// when no pending request exists.
func (db *DB) ApproveConnection(ctx context.Context, ownerID, viewerID string) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE connections SET status = $3
		 WHERE owner_id = $1 AND viewer_id = $2`,
		ownerID, viewerID, ConnectionApproved)
	if err != nil {
		return false, fmt.Errorf("approving connection: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IsApprovedConnection reports whether viewer may read owner's bundles.
func (db *DB) IsApprovedConnection(ctx context.Context, ownerID, viewerID string) (bool, error) {
	var count int
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM connections
		 WHERE owner_id = $1 AND viewer_id = $2 AND status = $3`,
		ownerID, viewerID, ConnectionApproved).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking connection: %w", err)
	}
	return count > 0, nil
}
