// Package fetch holds the thin platform API clients the ingestor reads
// from: the Slack Web API and Microsoft Graph. Both clients page
// through results fully before returning, so callers always see the
// whole thread.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SlackMessage is the subset of a Slack message payload the ingestor
// needs.
type SlackMessage struct {
	Type      string          `json:"type"`
	SubType   string          `json:"subtype"`
	User      string          `json:"user"`
	BotID     string          `json:"bot_id"`
	Text      string          `json:"text"`
	TS        string          `json:"ts"`
	ThreadTS  string          `json:"thread_ts"`
	Reactions []SlackReaction `json:"reactions"`
}

// SlackReaction is one emoji reaction with its count.
type SlackReaction struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SlackProfile is a resolved user profile from users.info.
type SlackProfile struct {
	DisplayName string
	RealName    string
	Email       string
}

// Name returns the profile's best display name, falling back through
// display name then real name.
func (p *SlackProfile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.RealName
}

// SlackFetcher is the Slack surface the ingestor depends on.
type SlackFetcher interface {
	ConversationsReplies(ctx context.Context, channelID, threadTS string) ([]SlackMessage, error)
	UserInfo(ctx context.Context, userID string) (*SlackProfile, error)
}

// SlackClient calls the Slack Web API with a bot token.
type SlackClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewSlackClient creates a Slack client. The token is required up
// front: a run must fail before any fetch when the credential for its
// platform is missing.
func NewSlackClient(token string) (*SlackClient, error) {
	if token == "" {
		return nil, fmt.Errorf("slack bot token is not configured")
	}
	return &SlackClient{
		token:   token,
		baseURL: "https://slack.com/api",
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type slackRepliesResponse struct {
	OK               bool           `json:"ok"`
	Error            string         `json:"error"`
	Messages         []SlackMessage `json:"messages"`
	HasMore          bool           `json:"has_more"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

// ConversationsReplies fetches every message in a thread, following
// pagination cursors until exhausted.
func (c *SlackClient) ConversationsReplies(ctx context.Context, channelID, threadTS string) ([]SlackMessage, error) {
	var messages []SlackMessage
	cursor := ""
	for {
		params := url.Values{}
		params.Set("channel", channelID)
		params.Set("ts", threadTS)
		params.Set("limit", "200")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		body, err := c.apiCall(ctx, "conversations.replies", params)
		if err != nil {
			return nil, err
		}

		var resp slackRepliesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parsing Slack replies: %w", err)
		}
		if !resp.OK {
			return nil, fmt.Errorf("Slack API error: %s", resp.Error)
		}

		messages = append(messages, resp.Messages...)
		if !resp.HasMore || resp.ResponseMetadata.NextCursor == "" {
			return messages, nil
		}
		cursor = resp.ResponseMetadata.NextCursor
	}
}

type slackUserResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	User  struct {
		Profile struct {
			DisplayName string `json:"display_name"`
			RealName    string `json:"real_name"`
			Email       string `json:"email"`
		} `json:"profile"`
	} `json:"user"`
}

// UserInfo resolves a user's profile via users.info.
func (c *SlackClient) UserInfo(ctx context.Context, userID string) (*SlackProfile, error) {
	params := url.Values{}
	params.Set("user", userID)

	body, err := c.apiCall(ctx, "users.info", params)
	if err != nil {
		return nil, err
	}

	var resp slackUserResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing Slack user info: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("Slack API error: %s", resp.Error)
	}
	return &SlackProfile{
		DisplayName: resp.User.Profile.DisplayName,
		RealName:    resp.User.Profile.RealName,
		Email:       resp.User.Profile.Email,
	}, nil
}

func (c *SlackClient) apiCall(ctx context.Context, method string, params url.Values) ([]byte, error) {
	apiURL := fmt.Sprintf("%s/%s?%s", c.baseURL, method, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Slack API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("Slack API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading Slack response: %w", err)
	}
	return body, nil
}

// SlackPermalink builds a client permalink for a message timestamp.
func SlackPermalink(teamID, channelID, ts string) string {
	return fmt.Sprintf("https://app.slack.com/client/%s/%s/%s",
		teamID, channelID, strings.ReplaceAll(ts, ".", "p"))
}
