package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestSlackClient_RequiresToken(t *testing.T) {
	if _, err := NewSlackClient(""); err == nil {
		t.Error("expected error for missing token")
	}
}

func TestConversationsReplies_FollowsCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations.replies" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("ts"); got != "1726000000.000100" {
			t.Errorf("ts = %q", got)
		}
		cursor := r.URL.Query().Get("cursor")
		switch cursor {
		case "":
			fmt.Fprint(w, `{"ok":true,"messages":[{"ts":"1726000000.000100","user":"U1","text":"root"}],"has_more":true,"response_metadata":{"next_cursor":"c2"}}`)
		case "c2":
			fmt.Fprint(w, `{"ok":true,"messages":[{"ts":"1726000010.000200","user":"U2","text":"reply","thread_ts":"1726000000.000100"}],"has_more":false}`)
		default:
			t.Errorf("unexpected cursor %q", cursor)
		}
	}))
	defer server.Close()

	c, _ := NewSlackClient("xoxb-test")
	c.baseURL = server.URL

	msgs, err := c.ConversationsReplies(context.Background(), "C1", "1726000000.000100")
	if err != nil {
		t.Fatalf("ConversationsReplies: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[1].ThreadTS != "1726000000.000100" {
		t.Errorf("reply thread_ts = %q", msgs[1].ThreadTS)
	}
}

func TestConversationsReplies_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error":"channel_not_found"}`)
	}))
	defer server.Close()

	c, _ := NewSlackClient("xoxb-test")
	c.baseURL = server.URL

	if _, err := c.ConversationsReplies(context.Background(), "C1", "1"); err == nil {
		t.Error("expected error for ok=false response")
	}
}

func TestUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user"); got != "U42" {
			t.Errorf("user = %q", got)
		}
		fmt.Fprint(w, `{"ok":true,"user":{"profile":{"display_name":"dana","real_name":"Dana Q","email":"dana@example.com"}}}`)
	}))
	defer server.Close()

	c, _ := NewSlackClient("xoxb-test")
	c.baseURL = server.URL

	p, err := c.UserInfo(context.Background(), "U42")
	if err != nil {
		t.Fatalf("UserInfo: %v", err)
	}
	if p.Name() != "dana" || p.Email != "dana@example.com" {
		t.Errorf("profile = %+v", p)
	}
}

func TestSlackProfile_NameFallback(t *testing.T) {
	p := &SlackProfile{RealName: "Dana Q"}
	if got := p.Name(); got != "Dana Q" {
		t.Errorf("Name() = %q", got)
	}
}

func TestSlackPermalink(t *testing.T) {
	got := SlackPermalink("T1", "C1", "1726000000.000100")
	want := "https://app.slack.com/client/T1/C1/1726000000p000100"
	if got != want {
		t.Errorf("SlackPermalink = %q, want %q", got, want)
	}
}

func TestClientCredentials_RequiresAllValues(t *testing.T) {
	if _, err := NewClientCredentials("t", "c", ""); err == nil {
		t.Error("expected error for missing client secret")
	}
	if _, err := NewClientCredentials("", "c", "s"); err == nil {
		t.Error("expected error for missing tenant id")
	}
}

func TestClientCredentials_TokenCached(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	}))
	defer server.Close()

	cc, err := NewClientCredentials("tenant-1", "client-1", "secret")
	if err != nil {
		t.Fatalf("NewClientCredentials: %v", err)
	}
	cc.AuthorityURL = server.URL

	for i := 0; i < 3; i++ {
		tok, err := cc.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if tok != "tok-1" {
			t.Errorf("token = %q", tok)
		}
	}
	if calls != 1 {
		t.Errorf("token endpoint called %d times, want 1", calls)
	}
}

func TestGraphList_FollowsNextLink(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("Authorization = %q", auth)
		}
		switch r.URL.Path {
		case "/messages":
			if got := r.URL.Query().Get("$orderby"); got != "createdDateTime asc" {
				t.Errorf("$orderby = %q", got)
			}
			fmt.Fprintf(w, `{"value":[{"id":"m1"}],"@odata.nextLink":"%s/messages2"}`, server.URL)
		case "/messages2":
			fmt.Fprint(w, `{"value":[{"id":"m2"},{"id":"m3"}]}`)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	g := NewGraphClient(StaticTokenSource("tok"))
	params := url.Values{}
	params.Set("$orderby", "createdDateTime asc")

	items, err := g.List(context.Background(), server.URL+"/messages", params)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[2]["id"] != "m3" {
		t.Errorf("last item = %v", items[2])
	}
}

func TestGraphGet_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"NotFound"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	g := NewGraphClient(StaticTokenSource("tok"))
	if _, err := g.Get(context.Background(), server.URL+"/missing"); err == nil {
		t.Error("expected error for 404")
	}
}
