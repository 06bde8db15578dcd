package platform

import (
	"strconv"
)

// ThreadRef is the minimal, platform-tagged identifier set sufficient to
// re-fetch an entire conversation. Builders return nil when the payload
// cannot be resolved to a fetchable thread; callers skip such notifications
// silently rather than producing a broken downstream fetch.
type ThreadRef struct {
	Platform string

	// Teams / Slack conversation identifiers.
	ConversationType string // "chat" or "channel" (msteams only)
	TeamID           string
	ChannelID        string
	ChatID           string

	// MessageID is the thread-root message the run should fetch.
	// EventMessageID is set only when the triggering event's own id differs
	// from the resolved root (reply events reference the root by replyToId
	// while the event payload's own id is the reply's id).
	MessageID      string
	EventMessageID string

	ThreadTS string // Slack thread root timestamp

	// Outlook identifiers.
	Mailbox string

	TenantID       string
	ConversationID string

	// Extra carries pass-through notification metadata. Identifier fields
	// redundant with the normalized fields above (id, conversationId,
	// tenantId) are stripped before it is populated.
	Extra map[string]string
}

// Builder constructs a thread reference from a change-notification resource
// path and its (frequently partial) resourceData body.
type Builder interface {
	Platform() string
	Build(resource string, resourceData map[string]any) *ThreadRef
}

// strippedKeys are resourceData fields that are redundant once normalized.
var strippedKeys = map[string]bool{
	"id":             true,
	"conversationId": true,
	"tenantId":       true,
	"tenant_id":      true,
}

// TeamsBuilder resolves Microsoft Teams chat and channel conversations.
type TeamsBuilder struct{}

func (TeamsBuilder) Platform() string { return MSTeams }

// Build disambiguates chat vs. channel conversations. A chat id (explicit
// field or parsed chats token) wins; otherwise a fully resolvable
// team id + channel id pair makes it a channel conversation; otherwise the
// conversation id serves as a last-resort chat id. Returns nil when no
// conversation container can be resolved.
func (b TeamsBuilder) Build(resource string, resourceData map[string]any) *ThreadRef {
	tokens := ParseResource(resource)

	ref := &ThreadRef{
		Platform:       MSTeams,
		TenantID:       firstString(resourceData, "tenantId", "tenant_id"),
		ConversationID: stringField(resourceData, "conversationId"),
		Extra:          passthrough(resourceData),
	}

	chatID := stringField(resourceData, "chatId")
	if chatID == "" {
		chatID = firstToken(tokens, "chats")
	}

	teamID, channelID := channelIdentifiers(resourceData, tokens)

	switch {
	case chatID != "":
		ref.ConversationType = "chat"
		ref.ChatID = chatID
	case teamID != "" && channelID != "":
		ref.ConversationType = "channel"
		ref.TeamID = teamID
		ref.ChannelID = channelID
	case ref.ConversationID != "":
		ref.ConversationType = "chat"
		ref.ChatID = ref.ConversationID
	default:
		return nil
	}

	eventID := stringField(resourceData, "id")
	messageID := stringField(resourceData, "replyToId")
	if messageID == "" {
		messageID = firstToken(tokens, "messages")
	}
	if messageID == "" {
		messageID = eventID
	}
	if messageID == "" {
		return nil
	}
	ref.MessageID = messageID
	if eventID != "" && eventID != messageID {
		ref.EventMessageID = eventID
	}
	return ref
}

// channelIdentifiers resolves team and channel ids from explicit fields, a
// nested channelIdentity object, or parsed resource tokens, in that order.
func channelIdentifiers(data map[string]any, tokens map[string][]string) (teamID, channelID string) {
	teamID = stringField(data, "teamId")
	channelID = stringField(data, "channelId")
	if identity, ok := data["channelIdentity"].(map[string]any); ok {
		if teamID == "" {
			teamID = stringField(identity, "teamId")
		}
		if channelID == "" {
			channelID = stringField(identity, "channelId")
		}
	}
	if teamID == "" {
		teamID = firstToken(tokens, "teams")
	}
	if channelID == "" {
		channelID = firstToken(tokens, "channels")
	}
	return teamID, channelID
}

// OutlookBuilder resolves mailbox conversations. Both a mailbox and a
// conversation id are required; a reference missing either cannot be
// re-fetched and is discarded.
type OutlookBuilder struct{}

func (OutlookBuilder) Platform() string { return Outlook }

func (b OutlookBuilder) Build(resource string, resourceData map[string]any) *ThreadRef {
	tokens := ParseResource(resource)

	mailbox := stringField(resourceData, "mailbox")
	if mailbox == "" {
		mailbox = firstToken(tokens, "users")
	}
	if mailbox == "" {
		mailbox = firstToken(tokens, "me")
	}
	conversationID := stringField(resourceData, "conversationId")
	if mailbox == "" || conversationID == "" {
		return nil
	}

	messageID := firstToken(tokens, "messages")
	if messageID == "" {
		messageID = stringField(resourceData, "id")
	}

	return &ThreadRef{
		Platform:       Outlook,
		Mailbox:        mailbox,
		MessageID:      messageID,
		ConversationID: conversationID,
		TenantID:       firstString(resourceData, "tenantId", "tenant_id"),
		Extra:          passthrough(resourceData),
	}
}

// NewSlackRef builds a Slack thread reference from slash-command fields.
func NewSlackRef(teamID, channelID, threadTS string) *ThreadRef {
	if teamID == "" || channelID == "" || threadTS == "" {
		return nil
	}
	return &ThreadRef{
		Platform:  Slack,
		TeamID:    teamID,
		ChannelID: channelID,
		ThreadTS:  threadTS,
	}
}

// RefFromMap reconstructs a thread reference from its wire form (API
// requests, queued jobs, MCP tool arguments). Returns nil when the map does
// not carry the identifiers the platform requires.
func RefFromMap(plat string, m map[string]any) *ThreadRef {
	switch plat {
	case Slack:
		return NewSlackRef(
			stringField(m, "team_id"),
			stringField(m, "channel_id"),
			firstString(m, "thread_ts", "message_id"),
		)
	case MSTeams:
		ref := &ThreadRef{
			Platform:         MSTeams,
			ConversationType: stringField(m, "conversation_type"),
			TeamID:           stringField(m, "team_id"),
			ChannelID:        stringField(m, "channel_id"),
			ChatID:           stringField(m, "chat_id"),
			MessageID:        stringField(m, "message_id"),
			EventMessageID:   stringField(m, "event_message_id"),
			TenantID:         stringField(m, "tenant_id"),
			ConversationID:   stringField(m, "conversation_id"),
		}
		if ref.ConversationType == "" {
			if ref.ChatID != "" {
				ref.ConversationType = "chat"
			} else {
				ref.ConversationType = "channel"
			}
		}
		if ref.MessageID == "" {
			return nil
		}
		if ref.ConversationType == "chat" && ref.ChatID == "" {
			return nil
		}
		if ref.ConversationType == "channel" && (ref.TeamID == "" || ref.ChannelID == "") {
			return nil
		}
		return ref
	case Outlook:
		ref := &ThreadRef{
			Platform:       Outlook,
			Mailbox:        stringField(m, "mailbox"),
			MessageID:      stringField(m, "message_id"),
			ConversationID: stringField(m, "conversation_id"),
			TenantID:       stringField(m, "tenant_id"),
		}
		if ref.Mailbox == "" || ref.ConversationID == "" {
			return nil
		}
		return ref
	}
	return nil
}

// Map renders the reference in its wire form. Only populated fields appear.
func (r *ThreadRef) Map() map[string]string {
	m := map[string]string{"platform": r.Platform}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put("conversation_type", r.ConversationType)
	put("team_id", r.TeamID)
	put("channel_id", r.ChannelID)
	put("chat_id", r.ChatID)
	put("message_id", r.MessageID)
	put("event_message_id", r.EventMessageID)
	put("thread_ts", r.ThreadTS)
	put("mailbox", r.Mailbox)
	put("tenant_id", r.TenantID)
	put("conversation_id", r.ConversationID)
	for k, v := range r.Extra {
		if _, taken := m[k]; !taken {
			m[k] = v
		}
	}
	return m
}

// passthrough copies scalar resourceData fields, dropping the identifier
// keys that were normalized into dedicated ThreadRef fields.
func passthrough(data map[string]any) map[string]string {
	extra := map[string]string{}
	for k, v := range data {
		if strippedKeys[k] {
			continue
		}
		if s, ok := scalarString(v); ok {
			extra[k] = s
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	s, _ := scalarString(data[key])
	return s
}

func firstString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := stringField(data, key); v != "" {
			return v
		}
	}
	return ""
}

func firstToken(tokens map[string][]string, name string) string {
	if vals := tokens[name]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}
