package store

import "fmt"

// migrate creates all tables if they don't exist. Bootstrap is idempotent:
// every statement uses IF NOT EXISTS so re-opening an existing database is
// a no-op.
func (s *SQLiteStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS workspaces (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			platform      TEXT NOT NULL,
			native_org_id TEXT NOT NULL,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(platform, native_org_id)
		)`,

		`CREATE TABLE IF NOT EXISTS channels (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			workspace_id       INTEGER NOT NULL REFERENCES workspaces(id),
			platform           TEXT NOT NULL,
			external_id        TEXT NOT NULL,
			parent_resource_id TEXT,
			display_name       TEXT,
			mailbox            TEXT,
			metadata           TEXT NOT NULL DEFAULT '{}',
			UNIQUE(workspace_id, platform, external_id)
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			workspace_id     INTEGER NOT NULL REFERENCES workspaces(id),
			platform         TEXT NOT NULL,
			native_user_id   TEXT NOT NULL,
			display_name     TEXT NOT NULL,
			email            TEXT,
			seniority_weight REAL NOT NULL DEFAULT 1.0,
			metadata         TEXT NOT NULL DEFAULT '{}',
			UNIQUE(workspace_id, platform, native_user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS threads (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			workspace_id     INTEGER NOT NULL REFERENCES workspaces(id),
			channel_id       INTEGER NOT NULL REFERENCES channels(id),
			platform         TEXT NOT NULL,
			source_thread_id TEXT NOT NULL,
			source_parent_id TEXT,
			source_url       TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL DEFAULT 'open',
			created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(workspace_id, platform, source_thread_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id      INTEGER NOT NULL REFERENCES threads(id),
			platform       TEXT NOT NULL,
			source_msg_id  TEXT NOT NULL,
			parent_msg_id  TEXT,
			author_user_id INTEGER REFERENCES users(id),
			text           TEXT NOT NULL,
			text_hash      TEXT NOT NULL,
			reactions      TEXT NOT NULL DEFAULT '{}',
			metadata       TEXT NOT NULL DEFAULT '{}',
			created_at     DATETIME NOT NULL,
			UNIQUE(thread_id, source_msg_id)
		)`,

		`CREATE INDEX IF NOT EXISTS ix_messages_thread_created
			ON messages(thread_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS briefs (
			run_id        TEXT PRIMARY KEY,
			thread_id     INTEGER NOT NULL REFERENCES threads(id),
			platform      TEXT NOT NULL,
			version       TEXT NOT NULL,
			model_version TEXT,
			api_version   TEXT,
			json_blob     TEXT NOT NULL,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("bootstrap DDL: %w", err)
		}
	}
	return nil
}
