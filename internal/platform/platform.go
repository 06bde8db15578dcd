// Package platform translates platform-native notification payloads into
// thread references: the minimal identifier set needed to re-fetch an
// entire conversation later.
//
// Three platforms are supported: Slack threads, Microsoft Teams chat and
// channel conversations, and Outlook mail conversations. Teams and Outlook
// references are built from Microsoft Graph change notifications (an OData
// resource path plus a partial resourceData body); Slack references come
// from slash-command payloads which already carry every identifier.
package platform

// Platform identifiers used throughout the pipeline and the canonical store.
const (
	Slack   = "slack"
	MSTeams = "msteams"
	Outlook = "outlook"
)

// CanonicalMessageID returns the cross-platform message identifier
// "{platform}:{native_id}". This is the only key evidence references are
// allowed to resolve through.
func CanonicalMessageID(platform, nativeID string) string {
	return platform + ":" + nativeID
}
