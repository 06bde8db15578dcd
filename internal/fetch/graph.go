package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// GraphBaseURL is the Microsoft Graph v1.0 root.
const GraphBaseURL = "https://graph.microsoft.com/v1.0"

// GraphFetcher is the Graph surface the ingestor depends on.
type GraphFetcher interface {
	Get(ctx context.Context, url string) (map[string]any, error)
	List(ctx context.Context, url string, params url.Values) ([]map[string]any, error)
}

// TokenSource yields bearer tokens for Graph requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token. Used in tests and for
// pre-acquired tokens.
type StaticTokenSource string

func (s StaticTokenSource) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// ClientCredentials acquires app-only tokens from Azure AD using the
// client credentials grant, caching the token until shortly before
// expiry.
type ClientCredentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	AuthorityURL string

	http *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClientCredentials validates the Microsoft 365 credential set. All
// three values are required before any fetch is attempted.
func NewClientCredentials(tenantID, clientID, clientSecret string) (*ClientCredentials, error) {
	if tenantID == "" || clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("Microsoft Graph credentials are not configured")
	}
	return &ClientCredentials{
		TenantID:     tenantID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthorityURL: "https://login.microsoftonline.com",
		http:         &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	form.Set("scope", "https://graph.microsoft.com/.default")

	tokenURL := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.AuthorityURL, c.TenantID)
	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("acquiring Graph token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}

	c.token = payload.AccessToken
	c.expires = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

// GraphClient calls Microsoft Graph with bearer tokens from a
// TokenSource.
type GraphClient struct {
	tokens TokenSource
	http   *http.Client
}

// NewGraphClient creates a Graph client over the given token source.
func NewGraphClient(tokens TokenSource) *GraphClient {
	return &GraphClient{
		tokens: tokens,
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Get fetches a single Graph resource.
func (g *GraphClient) Get(ctx context.Context, rawURL string) (map[string]any, error) {
	return g.request(ctx, rawURL, nil)
}

// List fetches a Graph collection, following @odata.nextLink until the
// collection is exhausted. Query parameters apply to the first page
// only; next links carry their own.
func (g *GraphClient) List(ctx context.Context, rawURL string, params url.Values) ([]map[string]any, error) {
	var results []map[string]any
	nextURL := rawURL
	nextParams := params
	for nextURL != "" {
		page, err := g.request(ctx, nextURL, nextParams)
		if err != nil {
			return nil, err
		}

		values, _ := page["value"].([]any)
		for _, v := range values {
			if item, ok := v.(map[string]any); ok {
				results = append(results, item)
			}
		}

		nextURL, _ = page["@odata.nextLink"].(string)
		nextParams = nil
	}
	return results, nil
}

func (g *GraphClient) request(ctx context.Context, rawURL string, params url.Values) (map[string]any, error) {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL = rawURL + sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Graph request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading Graph response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("Graph returned status %d: %s", resp.StatusCode, body)
	}
	if len(body) == 0 {
		return map[string]any{}, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parsing Graph response: %w", err)
	}
	return payload, nil
}
