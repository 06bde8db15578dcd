package store

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertMessage writes a message by its (thread, source message id) natural
// key. A second ingestion of the same message updates the existing row with
// the new content; last writer wins, which keeps concurrent re-ingestion
// of one thread safe without cross-run locking. The canonical identifier is
// stamped into metadata before the write.
func (s *SQLiteStore) UpsertMessage(ctx context.Context, m *Message) error {
	if m.SourceMsgID == "" {
		return fmt.Errorf("message requires a source message id")
	}

	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	if _, ok := m.Metadata["canonical_id"]; !ok {
		m.Metadata["canonical_id"] = m.Platform + ":" + m.SourceMsgID
	}
	m.TextHash = HashText(m.Text)

	reactions, err := marshalMap(m.Reactions)
	if err != nil {
		return err
	}
	meta, err := marshalMap(m.Metadata)
	if err != nil {
		return err
	}

	var author any
	if m.AuthorUserID != nil {
		author = *m.AuthorUserID
	}

	var existingID int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM messages WHERE thread_id = ? AND source_msg_id = ?`,
		m.ThreadID, m.SourceMsgID,
	).Scan(&existingID)

	switch {
	case err == sql.ErrNoRows:
		result, iErr := s.db.ExecContext(ctx,
			`INSERT INTO messages (thread_id, platform, source_msg_id, parent_msg_id, author_user_id, text, text_hash, reactions, metadata, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ThreadID, m.Platform, m.SourceMsgID, m.ParentMsgID, author,
			m.Text, m.TextHash, reactions, meta, m.CreatedAt.UTC(),
		)
		if iErr != nil {
			return fmt.Errorf("inserting message: %w", iErr)
		}
		id, iErr := result.LastInsertId()
		if iErr != nil {
			return fmt.Errorf("getting message id: %w", iErr)
		}
		m.ID = id
		return nil

	case err != nil:
		return fmt.Errorf("looking up message: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE messages
		 SET parent_msg_id = ?, author_user_id = ?, text = ?, text_hash = ?, reactions = ?, metadata = ?, created_at = ?
		 WHERE id = ?`,
		m.ParentMsgID, author, m.Text, m.TextHash, reactions, meta, m.CreatedAt.UTC(), existingID,
	)
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	m.ID = existingID
	return nil
}

// ListThreadMessages returns a thread's messages in creation order.
func (s *SQLiteStore) ListThreadMessages(ctx context.Context, threadID int64) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, platform, source_msg_id, COALESCE(parent_msg_id, ''),
		        author_user_id, text, text_hash, reactions, metadata, created_at
		 FROM messages WHERE thread_id = ?
		 ORDER BY created_at ASC, id ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m := &Message{}
		var author sql.NullInt64
		var reactions, meta string
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Platform, &m.SourceMsgID, &m.ParentMsgID,
			&author, &m.Text, &m.TextHash, &reactions, &meta, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		if author.Valid {
			id := author.Int64
			m.AuthorUserID = &id
		}
		if m.Reactions, err = unmarshalReactions(reactions); err != nil {
			return nil, err
		}
		if m.Metadata, err = unmarshalMetadata(meta); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SaveMessageText persists the normalized text and metadata of an already
// stored message. Used by the preprocessor, which mutates in place.
func (s *SQLiteStore) SaveMessageText(ctx context.Context, m *Message) error {
	meta, err := marshalMap(m.Metadata)
	if err != nil {
		return err
	}
	m.TextHash = HashText(m.Text)
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET text = ?, text_hash = ?, metadata = ? WHERE id = ?`,
		m.Text, m.TextHash, meta, m.ID,
	)
	if err != nil {
		return fmt.Errorf("saving message text: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message %d not found", m.ID)
	}
	return nil
}
