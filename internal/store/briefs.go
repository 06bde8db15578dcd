package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SaveBrief stores a condense-run artifact, replacing any prior artifact
// with the same run id.
func (s *SQLiteStore) SaveBrief(ctx context.Context, b *Brief) error {
	if b.RunID == "" {
		return fmt.Errorf("brief requires a run id")
	}
	if b.Version == "" {
		b.Version = "1"
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO briefs (run_id, thread_id, platform, version, model_version, api_version, json_blob, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   thread_id = excluded.thread_id,
		   platform = excluded.platform,
		   version = excluded.version,
		   model_version = excluded.model_version,
		   api_version = excluded.api_version,
		   json_blob = excluded.json_blob`,
		b.RunID, b.ThreadID, b.Platform, b.Version, b.ModelVersion, b.APIVersion, string(b.JSON), now,
	)
	if err != nil {
		return fmt.Errorf("saving brief: %w", err)
	}
	b.CreatedAt = now
	return nil
}

// GetBrief retrieves a persisted brief by run id, or nil if absent.
func (s *SQLiteStore) GetBrief(ctx context.Context, runID string) (*Brief, error) {
	b := &Brief{RunID: runID}
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT thread_id, platform, version, COALESCE(model_version, ''), COALESCE(api_version, ''), json_blob, created_at
		 FROM briefs WHERE run_id = ?`, runID,
	).Scan(&b.ThreadID, &b.Platform, &b.Version, &b.ModelVersion, &b.APIVersion, &blob, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting brief %s: %w", runID, err)
	}
	b.JSON = []byte(blob)
	return b, nil
}
