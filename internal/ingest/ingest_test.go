package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/jimmc414/thread-condenser/internal/fetch"
	"github.com/jimmc414/thread-condenser/internal/platform"
	"github.com/jimmc414/thread-condenser/internal/store"
)

type fakeSlack struct {
	replies  []fetch.SlackMessage
	profiles map[string]*fetch.SlackProfile
	calls    int
}

func (f *fakeSlack) ConversationsReplies(ctx context.Context, channelID, threadTS string) ([]fetch.SlackMessage, error) {
	f.calls++
	return f.replies, nil
}

func (f *fakeSlack) UserInfo(ctx context.Context, userID string) (*fetch.SlackProfile, error) {
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("user_not_found")
}

type fakeGraph struct {
	gets  map[string]map[string]any
	lists map[string][]map[string]any
}

func (f *fakeGraph) Get(ctx context.Context, u string) (map[string]any, error) {
	if v, ok := f.gets[u]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("404 for %s", u)
}

func (f *fakeGraph) List(ctx context.Context, u string, params url.Values) ([]map[string]any, error) {
	key := u
	if len(params) > 0 {
		key = u + "?" + params.Encode()
	}
	if v, ok := f.lists[key]; ok {
		return v, nil
	}
	if v, ok := f.lists[u]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("404 for %s", key)
}

func newIngestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIngestSlack(t *testing.T) {
	st := newIngestStore(t)
	slack := &fakeSlack{
		replies: []fetch.SlackMessage{
			{TS: "1726000000.000100", User: "U1", Text: "should we ship friday?",
				Reactions: []fetch.SlackReaction{{Name: "thumbsup", Count: 2}}},
			{TS: "1726000060.000200", User: "U2", Text: "yes, decided",
				ThreadTS: "1726000000.000100"},
			{TS: "1726000120.000300", User: "UGHOST", Text: "late reply",
				ThreadTS: "1726000000.000100"},
		},
		profiles: map[string]*fetch.SlackProfile{
			"U1": {DisplayName: "alice", Email: "alice@example.com"},
			"U2": {RealName: "Bob B"},
		},
	}

	in := New(st, slack, nil, nil)
	ref := platform.NewSlackRef("T1", "C1", "1726000000.000100")
	th, err := in.IngestThread(context.Background(), ref)
	if err != nil {
		t.Fatalf("IngestThread: %v", err)
	}
	if th.SourceURL != "https://app.slack.com/client/T1/C1/1726000000p000100" {
		t.Errorf("SourceURL = %q", th.SourceURL)
	}

	msgs, err := st.ListThreadMessages(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("ListThreadMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}

	root := msgs[0]
	if root.ParentMsgID != "" {
		t.Errorf("root parent = %q, want empty", root.ParentMsgID)
	}
	if root.Reactions["thumbsup"] != 2 {
		t.Errorf("root reactions = %v", root.Reactions)
	}
	if root.CanonicalID() != "slack:1726000000.000100" {
		t.Errorf("canonical id = %q", root.CanonicalID())
	}

	reply := msgs[1]
	if reply.ParentMsgID != "1726000000.000100" {
		t.Errorf("reply parent = %q, want thread root ts", reply.ParentMsgID)
	}
	if reply.Metadata["permalink"] != "https://app.slack.com/client/T1/C1/1726000060p000200" {
		t.Errorf("permalink = %v", reply.Metadata["permalink"])
	}
}

func TestIngestSlack_ProfileDegradesToNativeID(t *testing.T) {
	st := newIngestStore(t)
	slack := &fakeSlack{
		replies: []fetch.SlackMessage{
			{TS: "1.000", User: "UGHOST", Text: "hi"},
		},
		profiles: map[string]*fetch.SlackProfile{},
	}

	in := New(st, slack, nil, nil)
	th, err := in.IngestThread(context.Background(), platform.NewSlackRef("T1", "C1", "1.000"))
	if err != nil {
		t.Fatalf("IngestThread: %v", err)
	}

	msgs, _ := st.ListThreadMessages(context.Background(), th.ID)
	if msgs[0].AuthorUserID == nil {
		t.Fatal("author not persisted for degraded profile")
	}
}

func TestIngestSlack_Reingest(t *testing.T) {
	st := newIngestStore(t)
	slack := &fakeSlack{
		replies: []fetch.SlackMessage{
			{TS: "1.000", User: "U1", Text: "v1"},
		},
		profiles: map[string]*fetch.SlackProfile{"U1": {DisplayName: "alice"}},
	}

	in := New(st, slack, nil, nil)
	ref := platform.NewSlackRef("T1", "C1", "1.000")
	if _, err := in.IngestThread(context.Background(), ref); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	slack.replies[0].Text = "v2 edited"
	th, err := in.IngestThread(context.Background(), ref)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	msgs, _ := st.ListThreadMessages(context.Background(), th.ID)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages after re-ingest, want 1", len(msgs))
	}
	if msgs[0].Text != "v2 edited" {
		t.Errorf("Text = %q", msgs[0].Text)
	}
}

func TestIngestTeams_Channel(t *testing.T) {
	st := newIngestStore(t)
	base := fetch.GraphBaseURL + "/teams/team-1/channels/19:chan/messages"
	graph := &fakeGraph{
		gets: map[string]map[string]any{
			base + "/msg-1": {
				"id":     "msg-1",
				"webUrl": "https://teams.microsoft.com/l/message/19:chan/msg-1",
				"body":   map[string]any{"content": "<p>Shall we adopt plan <b>B</b>?</p>"},
				"from": map[string]any{"user": map[string]any{
					"id": "aad-1", "displayName": "Alice", "userPrincipalName": "alice@contoso.com"}},
				"createdDateTime": "2026-08-20T10:00:00Z",
				"reactions": []any{
					map[string]any{"reactionType": "like"},
					map[string]any{"reactionType": "like"},
				},
			},
		},
		lists: map[string][]map[string]any{
			base + "/msg-1/replies": {
				{
					"id":        "msg-2",
					"replyToId": "msg-1",
					"body":      map[string]any{"content": "Agreed &amp; approved"},
					"from": map[string]any{"user": map[string]any{
						"id": "aad-2", "displayName": "Bob"}},
					"createdDateTime": "2026-08-20T10:05:00Z",
				},
				{
					"id":   "msg-3",
					"body": map[string]any{"content": "noted"},
					"from": map[string]any{"application": map[string]any{
						"id": "bot-1", "displayName": "Notifier"}},
					"createdDateTime": "2026-08-20T10:06:00Z",
				},
			},
		},
	}

	in := New(st, nil, graph, nil)
	ref := &platform.ThreadRef{
		Platform:         platform.MSTeams,
		ConversationType: "channel",
		TeamID:           "team-1",
		ChannelID:        "19:chan",
		MessageID:        "msg-1",
		TenantID:         "tenant-1",
	}
	th, err := in.IngestThread(context.Background(), ref)
	if err != nil {
		t.Fatalf("IngestThread: %v", err)
	}
	if !strings.Contains(th.SourceURL, "teams.microsoft.com") {
		t.Errorf("SourceURL = %q", th.SourceURL)
	}

	msgs, _ := st.ListThreadMessages(context.Background(), th.ID)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Text != "Shall we adopt plan B?" {
		t.Errorf("root text = %q, html not flattened", msgs[0].Text)
	}
	if msgs[0].Reactions["like"] != 2 {
		t.Errorf("root reactions = %v", msgs[0].Reactions)
	}
	if msgs[1].Text != "Agreed & approved" {
		t.Errorf("reply text = %q, entity not unescaped", msgs[1].Text)
	}
	if msgs[1].ParentMsgID != "msg-1" {
		t.Errorf("reply parent = %q", msgs[1].ParentMsgID)
	}
	// Reply without replyToId hangs off the thread root.
	if msgs[2].ParentMsgID != "msg-1" {
		t.Errorf("bot reply parent = %q, want root", msgs[2].ParentMsgID)
	}
	if msgs[2].AuthorUserID == nil {
		t.Error("application author not persisted")
	}
}

func TestIngestOutlook_PreviousMessageParent(t *testing.T) {
	st := newIngestStore(t)
	listURL := fetch.GraphBaseURL + "/users/pm@contoso.com/messages"
	graph := &fakeGraph{
		lists: map[string][]map[string]any{
			listURL: {
				{
					"id":      "mail-1",
					"webLink": "https://outlook.office.com/mail/1",
					"body":    map[string]any{"content": "<p>Kicking off the decision thread</p>"},
					"from": map[string]any{"emailAddress": map[string]any{
						"address": "alice@contoso.com", "name": "Alice"}},
					"sentDateTime": "2026-08-21T09:00:00Z",
				},
				{
					"id":      "mail-2",
					"webLink": "https://outlook.office.com/mail/2",
					"body":    map[string]any{"content": "Replying without headers"},
					"from": map[string]any{"emailAddress": map[string]any{
						"address": "bob@contoso.com", "name": "Bob"}},
					"sentDateTime": "2026-08-21T09:30:00Z",
				},
			},
		},
	}

	in := New(st, nil, graph, nil)
	ref := &platform.ThreadRef{
		Platform:       platform.Outlook,
		Mailbox:        "pm@contoso.com",
		ConversationID: "conv-1",
	}
	th, err := in.IngestThread(context.Background(), ref)
	if err != nil {
		t.Fatalf("IngestThread: %v", err)
	}
	if th.SourceURL != "https://outlook.office.com/mail/1" {
		t.Errorf("SourceURL = %q", th.SourceURL)
	}

	msgs, _ := st.ListThreadMessages(context.Background(), th.ID)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ParentMsgID != "" {
		t.Errorf("first mail parent = %q, want empty", msgs[0].ParentMsgID)
	}
	if msgs[1].ParentMsgID != "mail-1" {
		t.Errorf("second mail parent = %q, want previous message", msgs[1].ParentMsgID)
	}
}

func TestIngest_MissingClientFailsBeforeFetch(t *testing.T) {
	st := newIngestStore(t)
	in := New(st, nil, nil, nil)

	if _, err := in.IngestThread(context.Background(), platform.NewSlackRef("T", "C", "1.0")); err == nil {
		t.Error("expected error for missing slack client")
	}
	if _, err := in.IngestThread(context.Background(), &platform.ThreadRef{
		Platform: platform.MSTeams, ConversationType: "chat", ChatID: "19:x", MessageID: "m",
	}); err == nil {
		t.Error("expected error for missing graph client")
	}
	if _, err := in.IngestThread(context.Background(), &platform.ThreadRef{
		Platform: platform.Outlook, Mailbox: "a@b.c", ConversationID: "conv",
	}); err == nil {
		t.Error("expected error for missing graph client (outlook)")
	}
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"<p>one</p><p>two</p>", "one\ntwo"},
		{"line<br/>break", "line\nbreak"},
		{"<div attr=\"x\">nested <b>bold</b></div>", "nested bold"},
		{"a &amp; b &lt;tag&gt;", "a & b <tag>"},
		{"  <p> padded </p> ", "padded"},
	}
	for _, tt := range tests {
		if got := htmlToText(tt.in); got != tt.want {
			t.Errorf("htmlToText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlackTime(t *testing.T) {
	got := slackTime("1726000000.000100")
	if got.Unix() != 1726000000 {
		t.Errorf("seconds = %d", got.Unix())
	}
	if slackTime("garbage").IsZero() {
		t.Error("malformed ts should fall back to now, not zero")
	}
}
