// Package ingest normalizes platform threads into the canonical store.
//
// Each platform has its own strategy (Slack Web API, Microsoft Graph
// for Teams and Outlook), but all of them land on the same entity
// chain: workspace, channel, users, thread, messages. Re-ingesting a
// thread is idempotent; message rows update in place by natural key.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jimmc414/thread-condenser/internal/fetch"
	"github.com/jimmc414/thread-condenser/internal/platform"
	"github.com/jimmc414/thread-condenser/internal/store"
)

// Ingestor fetches and persists threads. Platform clients are optional
// at construction; a run targeting a platform whose client is missing
// fails before any fetch is attempted.
type Ingestor struct {
	store store.Store
	slack fetch.SlackFetcher
	graph fetch.GraphFetcher
	log   *zap.Logger
}

// New creates an ingestor. Nil clients are allowed and make the
// corresponding platform unavailable.
func New(st store.Store, slack fetch.SlackFetcher, graph fetch.GraphFetcher, log *zap.Logger) *Ingestor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor{store: st, slack: slack, graph: graph, log: log}
}

// IngestThread fetches the full conversation the reference points at
// and persists it, returning the canonical thread.
func (in *Ingestor) IngestThread(ctx context.Context, ref *platform.ThreadRef) (*store.Thread, error) {
	if ref == nil {
		return nil, fmt.Errorf("thread reference is nil")
	}

	switch ref.Platform {
	case platform.Slack:
		if in.slack == nil {
			return nil, fmt.Errorf("Slack client is required for Slack ingestion")
		}
		return in.ingestSlack(ctx, ref)
	case platform.MSTeams:
		if in.graph == nil {
			return nil, fmt.Errorf("Graph client is required for Microsoft Teams ingestion")
		}
		return in.ingestTeams(ctx, ref)
	case platform.Outlook:
		if in.graph == nil {
			return nil, fmt.Errorf("Graph client is required for Outlook ingestion")
		}
		return in.ingestOutlook(ctx, ref)
	}
	return nil, fmt.Errorf("unsupported platform %q", ref.Platform)
}
