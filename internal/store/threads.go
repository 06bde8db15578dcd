package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureThread finds or creates a thread by (workspace, platform, source
// thread id). The source URL and parent resource id update on change.
func (s *SQLiteStore) EnsureThread(ctx context.Context, ws *Workspace, ch *Channel, platform, sourceThreadID string, attrs ThreadAttrs) (*Thread, error) {
	if sourceThreadID == "" {
		return nil, fmt.Errorf("thread requires a source thread id")
	}

	th := &Thread{
		WorkspaceID:    ws.ID,
		ChannelID:      ch.ID,
		Platform:       platform,
		SourceThreadID: sourceThreadID,
	}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, channel_id, COALESCE(source_parent_id, ''), source_url, status, created_at
		 FROM threads WHERE workspace_id = ? AND platform = ? AND source_thread_id = ?`,
		ws.ID, platform, sourceThreadID,
	).Scan(&th.ID, &th.ChannelID, &th.SourceParentID, &th.SourceURL, &th.Status, &th.CreatedAt)

	switch {
	case err == sql.ErrNoRows:
		now := time.Now().UTC()
		result, iErr := s.db.ExecContext(ctx,
			`INSERT INTO threads (workspace_id, channel_id, platform, source_thread_id, source_parent_id, source_url, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, 'open', ?)`,
			ws.ID, ch.ID, platform, sourceThreadID, attrs.SourceParentID, attrs.SourceURL, now,
		)
		if iErr != nil {
			return nil, fmt.Errorf("inserting thread: %w", iErr)
		}
		id, iErr := result.LastInsertId()
		if iErr != nil {
			return nil, fmt.Errorf("getting thread id: %w", iErr)
		}
		th.ID = id
		th.SourceParentID = attrs.SourceParentID
		th.SourceURL = attrs.SourceURL
		th.Status = "open"
		th.CreatedAt = now
		return th, nil

	case err != nil:
		return nil, fmt.Errorf("looking up thread: %w", err)
	}

	changed := false
	if attrs.SourceURL != "" && th.SourceURL != attrs.SourceURL {
		th.SourceURL = attrs.SourceURL
		changed = true
	}
	if attrs.SourceParentID != "" && th.SourceParentID != attrs.SourceParentID {
		th.SourceParentID = attrs.SourceParentID
		changed = true
	}
	if changed {
		_, err = s.db.ExecContext(ctx,
			`UPDATE threads SET source_url = ?, source_parent_id = ? WHERE id = ?`,
			th.SourceURL, th.SourceParentID, th.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating thread: %w", err)
		}
	}
	return th, nil
}
