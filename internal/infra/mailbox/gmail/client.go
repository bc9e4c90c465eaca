package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/jaytaylor/html2text"

	"github.com/subwatch/subwatch/internal/domain/mailbox"
)

const defaultBaseURL = "https://gmail.googleapis.com/gmail/v1/users/me"

// Client talks to the Gmail REST API. Requests carry the current access
// token; a 401 triggers one coordinated refresh and a single retry.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     *tokenSource
}

type Credentials struct {
	ClientID      string
	ClientSecret  string
	RefreshToken  string
	TokenEndpoint string
}

func NewClient(creds Credentials) *Client {
	hc := &http.Client{Timeout: 30 * time.Second}
	return &Client{
		httpClient: hc,
		baseURL:    defaultBaseURL,
		tokens: newTokenSource(hc, creds.TokenEndpoint,
			creds.ClientID, creds.ClientSecret, creds.RefreshToken),
	}
}

// NewClientForTest points the client at a fake API and token endpoint.
func NewClientForTest(baseURL, tokenEndpoint string, creds Credentials) *Client {
	hc := &http.Client{Timeout: 5 * time.Second}
	return &Client{
		httpClient: hc,
		baseURL:    baseURL,
		tokens: newTokenSource(hc, tokenEndpoint,
			creds.ClientID, creds.ClientSecret, creds.RefreshToken),
	}
}

// Search returns message ids matching the query, capped at maxResults.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	u := fmt.Sprintf("%s/messages?q=%s&maxResults=%d",
		c.baseURL, url.QueryEscape(query), maxResults)

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var list struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(list.Messages))
	for _, m := range list.Messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// payload mirrors the Gmail message payload tree. Parts nest arbitrarily
// deep for multipart messages.
type payload struct {
	MimeType string `json:"mimeType"`
	Headers  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []payload `json:"parts"`
}

// Fetch retrieves one message and decodes its body, preferring the
// text/plain branch and falling back to HTML with tags stripped.
func (c *Client) Fetch(ctx context.Context, id string) (*mailbox.Message, error) {
	u := fmt.Sprintf("%s/messages/%s", c.baseURL, id)
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var msg struct {
		Payload payload `json:"payload"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}

	headers := map[string]string{}
	for _, h := range msg.Payload.Headers {
		headers[h.Name] = h.Value
	}
	date, _ := mail.ParseDate(headers["Date"])

	var plain, html string
	walkPayload(msg.Payload, &plain, &html)

	content := plain
	if content == "" {
		content = html
	}

	return &mailbox.Message{
		ID:      id,
		Subject: headers["Subject"],
		From:    headers["From"],
		Date:    date,
		Body:    strings.TrimSpace(content),
	}, nil
}

// get issues an authorized GET. On 401 it refreshes the access token
// (coordinated across workers) and retries exactly once.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, status, err := c.do(ctx, url, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		token, err = c.tokens.Refresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("credential refresh: %w", err)
		}
		body, status, err = c.do(ctx, url, token)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("gmail: %d %s", status, body)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, url, token string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return b, resp.StatusCode, nil
}

// walkPayload descends the part tree collecting the first text/plain and
// the first text/html body it finds.
func walkPayload(p payload, plain, html *string) {
	switch {
	case p.MimeType == "text/plain" && *plain == "":
		if s, err := decodeBase64URL(p.Body.Data); err == nil {
			*plain = s
		}
	case strings.HasPrefix(p.MimeType, "text/html") && *html == "":
		if raw, err := decodeBase64URL(p.Body.Data); err == nil {
			if t, err := html2text.FromString(raw, html2text.Options{OmitLinks: true, TextOnly: true}); err == nil {
				*html = t
			}
		}
	}
	for _, part := range p.Parts {
		if *plain != "" && *html != "" {
			return
		}
		walkPayload(part, plain, html)
	}
}

// decodeBase64URL tolerates both padded and unpadded url-safe base64, the
// two variants the API has been seen returning.
func decodeBase64URL(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	b, err := base64.StdEncoding.DecodeString(s)
	return string(b), err
}
