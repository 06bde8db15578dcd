package condense

import (
	"github.com/jimmc414/thread-condenser/internal/store"
)

// AttachLinks re-links every supporting reference to its stored
// message: platform and native id are corrected from the store, and a
// deep link is attached from message metadata (Slack permalink, Teams
// webUrl, or Outlook webLink, in that order). References to unknown
// messages pass through untouched.
func AttachLinks(messages []*store.Message, result *CondenseResult) *CondenseResult {
	index := map[string]*store.Message{}
	for _, msg := range messages {
		index[msg.CanonicalID()] = msg
	}

	result.eachSupporting(func(ref *SupportRef) {
		canonical := ref.MsgID
		if canonical == "" {
			canonical = ref.Platform + ":" + ref.NativeID
		}
		msg, ok := index[canonical]
		if !ok {
			return
		}
		ref.Platform = msg.Platform
		ref.NativeID = msg.SourceMsgID
		ref.MsgID = msg.CanonicalID()
		ref.URL = messageLink(msg.Metadata)
	})
	return result
}

func messageLink(metadata map[string]any) string {
	for _, key := range []string{"permalink", "webUrl", "webLink"} {
		if v, ok := metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
