package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureWorkspace finds or creates the workspace for (platform, org id).
func (s *SQLiteStore) EnsureWorkspace(ctx context.Context, platform, nativeOrgID string) (*Workspace, error) {
	if nativeOrgID == "" {
		return nil, fmt.Errorf("workspace requires a native org id")
	}

	ws := &Workspace{Platform: platform, NativeOrgID: nativeOrgID}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM workspaces WHERE platform = ? AND native_org_id = ?`,
		platform, nativeOrgID,
	).Scan(&ws.ID, &ws.CreatedAt)
	if err == nil {
		return ws, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("looking up workspace: %w", err)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO workspaces (platform, native_org_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(platform, native_org_id) DO NOTHING`,
		platform, nativeOrgID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting workspace: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 1 {
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("getting workspace id: %w", err)
		}
		ws.ID = id
		ws.CreatedAt = now
		return ws, nil
	}

	// Lost a concurrent insert race; read the surviving row.
	err = s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM workspaces WHERE platform = ? AND native_org_id = ?`,
		platform, nativeOrgID,
	).Scan(&ws.ID, &ws.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("re-reading workspace: %w", err)
	}
	return ws, nil
}
