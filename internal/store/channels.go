package store

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureChannel finds or creates a channel by (workspace, platform,
// external id) and merges the supplied attributes. Existing non-empty
// values are never overwritten with empty ones.
func (s *SQLiteStore) EnsureChannel(ctx context.Context, ws *Workspace, platform, externalID string, attrs ChannelAttrs) (*Channel, error) {
	if externalID == "" {
		return nil, fmt.Errorf("channel requires an external id")
	}

	ch := &Channel{WorkspaceID: ws.ID, Platform: platform, ExternalID: externalID}
	var rawMeta string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(parent_resource_id, ''), COALESCE(display_name, ''),
		        COALESCE(mailbox, ''), metadata
		 FROM channels WHERE workspace_id = ? AND platform = ? AND external_id = ?`,
		ws.ID, platform, externalID,
	).Scan(&ch.ID, &ch.ParentResourceID, &ch.DisplayName, &ch.Mailbox, &rawMeta)

	switch {
	case err == sql.ErrNoRows:
		meta, mErr := marshalMap(attrs.Metadata)
		if mErr != nil {
			return nil, mErr
		}
		result, iErr := s.db.ExecContext(ctx,
			`INSERT INTO channels (workspace_id, platform, external_id, parent_resource_id, display_name, mailbox, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ws.ID, platform, externalID, attrs.ParentResourceID, attrs.DisplayName, attrs.Mailbox, meta,
		)
		if iErr != nil {
			return nil, fmt.Errorf("inserting channel: %w", iErr)
		}
		id, iErr := result.LastInsertId()
		if iErr != nil {
			return nil, fmt.Errorf("getting channel id: %w", iErr)
		}
		ch.ID = id
		ch.ParentResourceID = attrs.ParentResourceID
		ch.DisplayName = attrs.DisplayName
		ch.Mailbox = attrs.Mailbox
		ch.Metadata = attrs.Metadata
		return ch, nil

	case err != nil:
		return nil, fmt.Errorf("looking up channel: %w", err)
	}

	existing, err := unmarshalMetadata(rawMeta)
	if err != nil {
		return nil, err
	}

	if attrs.ParentResourceID != "" {
		ch.ParentResourceID = attrs.ParentResourceID
	}
	if attrs.DisplayName != "" && ch.DisplayName == "" {
		ch.DisplayName = attrs.DisplayName
	}
	if attrs.Mailbox != "" {
		ch.Mailbox = attrs.Mailbox
	}
	ch.Metadata = mergeMetadata(existing, attrs.Metadata)

	meta, err := marshalMap(ch.Metadata)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE channels SET parent_resource_id = ?, display_name = ?, mailbox = ?, metadata = ? WHERE id = ?`,
		ch.ParentResourceID, ch.DisplayName, ch.Mailbox, meta, ch.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating channel: %w", err)
	}
	return ch, nil
}
