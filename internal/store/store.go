// Package store provides the SQLite canonical store for the condenser.
//
// All ingested conversation data lives in a single SQLite database:
// workspaces, channels, users, threads, messages, and persisted brief
// artifacts. Every entity is addressed by a stable natural key and written
// through find-or-create / merge-metadata operations; the pipeline never
// issues raw queries against the store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.condenser/condenser.db"

// Workspace is a tenant-scoped grouping keyed by (platform, native org id).
// Created on first sighting; never deleted by the pipeline.
type Workspace struct {
	ID          int64
	Platform    string
	NativeOrgID string
	CreatedAt   time.Time
}

// Channel is a conversation container (chat, channel, or mailbox) scoped to
// a workspace and keyed by (workspace, platform, external id).
type Channel struct {
	ID               int64
	WorkspaceID      int64
	Platform         string
	ExternalID       string
	ParentResourceID string
	DisplayName      string
	Mailbox          string
	Metadata         map[string]any
}

// User is a platform participant keyed by (workspace, platform, native id).
type User struct {
	ID              int64
	WorkspaceID     int64
	Platform        string
	NativeUserID    string
	DisplayName     string
	Email           string
	SeniorityWeight float64
	Metadata        map[string]any
}

// Thread is the root conversation object keyed by
// (workspace, platform, source thread id).
type Thread struct {
	ID             int64
	WorkspaceID    int64
	ChannelID      int64
	Platform       string
	SourceThreadID string
	SourceParentID string
	SourceURL      string
	Status         string
	CreatedAt      time.Time
}

// Message is an ordered event within a thread, keyed by
// (thread, source message id). Its metadata always carries the canonical
// cross-platform identifier under "canonical_id".
type Message struct {
	ID           int64
	ThreadID     int64
	Platform     string
	SourceMsgID  string
	ParentMsgID  string
	AuthorUserID *int64
	Text         string
	TextHash     string
	Reactions    map[string]int
	Metadata     map[string]any
	CreatedAt    time.Time
}

// CanonicalID returns the cross-platform identifier for the message,
// preferring the stored metadata value.
func (m *Message) CanonicalID() string {
	if m.Metadata != nil {
		if v, ok := m.Metadata["canonical_id"].(string); ok && v != "" {
			return v
		}
	}
	return m.Platform + ":" + m.SourceMsgID
}

// Brief is a persisted condense-run artifact: the final result as an opaque
// JSON blob keyed by run id.
type Brief struct {
	RunID        string
	ThreadID     int64
	Platform     string
	Version      string
	ModelVersion string
	APIVersion   string
	JSON         []byte
	CreatedAt    time.Time
}

// ChannelAttrs carries optional channel fields merged on re-sighting.
// Empty values never clobber existing data.
type ChannelAttrs struct {
	ParentResourceID string
	DisplayName      string
	Mailbox          string
	Metadata         map[string]any
}

// UserAttrs carries optional user fields; display name and email update on
// change, metadata merges.
type UserAttrs struct {
	Email    string
	Metadata map[string]any
}

// ThreadAttrs carries optional thread fields merged on re-sighting.
type ThreadAttrs struct {
	SourceParentID string
	SourceURL      string
}

// Store is the canonical-store capability consumed by the pipeline.
type Store interface {
	EnsureWorkspace(ctx context.Context, platform, nativeOrgID string) (*Workspace, error)
	EnsureChannel(ctx context.Context, ws *Workspace, platform, externalID string, attrs ChannelAttrs) (*Channel, error)
	EnsureUser(ctx context.Context, ws *Workspace, platform, nativeUserID, displayName string, attrs UserAttrs) (*User, error)
	EnsureThread(ctx context.Context, ws *Workspace, ch *Channel, platform, sourceThreadID string, attrs ThreadAttrs) (*Thread, error)

	UpsertMessage(ctx context.Context, m *Message) error
	ListThreadMessages(ctx context.Context, threadID int64) ([]*Message, error)
	SaveMessageText(ctx context.Context, m *Message) error

	SaveBrief(ctx context.Context, b *Brief) error
	GetBrief(ctx context.Context, runID string) (*Brief, error)

	Close() error
}

// SQLiteStore implements Store on modernc.org/sqlite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (and if necessary bootstraps) a SQLite-backed store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = expandPath(DefaultDBPath)
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
