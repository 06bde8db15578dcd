package condense

import (
	"context"
	"strings"

	"github.com/jimmc414/thread-condenser/internal/platform"
	"github.com/jimmc414/thread-condenser/internal/store"
)

var entityReplacer = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")

// normalizeText unescapes residual HTML entities, strips carriage
// returns for the HTML-sourced platforms, and trims whitespace.
// Idempotent on platform-produced text; double-escaped input unescapes
// one level per pass.
func normalizeText(plat, text string) string {
	text = entityReplacer.Replace(text)
	if plat == platform.MSTeams || plat == platform.Outlook {
		text = strings.ReplaceAll(text, "\r", "")
	}
	return strings.TrimSpace(text)
}

// Preprocess normalizes every message of a thread in place and persists
// the result: canonical text, plus canonical_id and source_msg_id
// stamped into metadata. Returns the messages in creation order.
func Preprocess(ctx context.Context, st store.Store, threadID int64) ([]*store.Message, error) {
	msgs, err := st.ListThreadMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	for _, msg := range msgs {
		msg.Text = normalizeText(msg.Platform, msg.Text)
		if msg.Metadata == nil {
			msg.Metadata = map[string]any{}
		}
		if _, ok := msg.Metadata["canonical_id"].(string); !ok {
			msg.Metadata["canonical_id"] = msg.Platform + ":" + msg.SourceMsgID
		}
		msg.Metadata["source_msg_id"] = msg.SourceMsgID
		if err := st.SaveMessageText(ctx, msg); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}
