package store

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureUser finds or creates a user by (workspace, platform, native id).
// Display name and email update on change; metadata merges. An empty
// display name falls back to the native id so the row is always nameable.
func (s *SQLiteStore) EnsureUser(ctx context.Context, ws *Workspace, platform, nativeUserID, displayName string, attrs UserAttrs) (*User, error) {
	if nativeUserID == "" {
		return nil, nil
	}
	if displayName == "" {
		displayName = nativeUserID
	}

	u := &User{WorkspaceID: ws.ID, Platform: platform, NativeUserID: nativeUserID}
	var rawMeta string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, COALESCE(email, ''), seniority_weight, metadata
		 FROM users WHERE workspace_id = ? AND platform = ? AND native_user_id = ?`,
		ws.ID, platform, nativeUserID,
	).Scan(&u.ID, &u.DisplayName, &u.Email, &u.SeniorityWeight, &rawMeta)

	switch {
	case err == sql.ErrNoRows:
		meta, mErr := marshalMap(attrs.Metadata)
		if mErr != nil {
			return nil, mErr
		}
		result, iErr := s.db.ExecContext(ctx,
			`INSERT INTO users (workspace_id, platform, native_user_id, display_name, email, metadata)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			ws.ID, platform, nativeUserID, displayName, attrs.Email, meta,
		)
		if iErr != nil {
			return nil, fmt.Errorf("inserting user: %w", iErr)
		}
		id, iErr := result.LastInsertId()
		if iErr != nil {
			return nil, fmt.Errorf("getting user id: %w", iErr)
		}
		u.ID = id
		u.DisplayName = displayName
		u.Email = attrs.Email
		u.SeniorityWeight = 1.0
		u.Metadata = attrs.Metadata
		return u, nil

	case err != nil:
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	existing, err := unmarshalMetadata(rawMeta)
	if err != nil {
		return nil, err
	}

	changed := false
	if displayName != nativeUserID && u.DisplayName != displayName {
		u.DisplayName = displayName
		changed = true
	}
	if attrs.Email != "" && u.Email != attrs.Email {
		u.Email = attrs.Email
		changed = true
	}
	if len(attrs.Metadata) > 0 {
		u.Metadata = mergeMetadata(existing, attrs.Metadata)
		changed = true
	} else {
		u.Metadata = existing
	}

	if changed {
		meta, mErr := marshalMap(u.Metadata)
		if mErr != nil {
			return nil, mErr
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE users SET display_name = ?, email = ?, metadata = ? WHERE id = ?`,
			u.DisplayName, u.Email, meta, u.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating user: %w", err)
		}
	}
	return u, nil
}
