package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64url(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func newTokenServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testCreds() Credentials {
	return Credentials{ClientID: "cid", ClientSecret: "secret", RefreshToken: "refresh-1"}
}

func TestSearchReturnsMessageIDs(t *testing.T) {
	tokens := newTokenServer(t, nil)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.Equal(t, "from:netflix.com", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("maxResults"))
		fmt.Fprint(w, `{"messages":[{"id":"m1"},{"id":"m2"}]}`)
	}))
	defer api.Close()

	c := NewClientForTest(api.URL, tokens.URL, testCreds())
	ids, err := c.Search(context.Background(), "from:netflix.com", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)
}

func TestSearchEmptyResultIsNotAnError(t *testing.T) {
	tokens := newTokenServer(t, nil)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"resultSizeEstimate":0}`)
	}))
	defer api.Close()

	c := NewClientForTest(api.URL, tokens.URL, testCreds())
	ids, err := c.Search(context.Background(), "from:nowhere.example", 5)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFetchPrefersPlainTextPart(t *testing.T) {
	tokens := newTokenServer(t, nil)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages/m1"))
		json.NewEncoder(w).Encode(map[string]any{
			"payload": map[string]any{
				"mimeType": "multipart/alternative",
				"headers": []map[string]string{
					{"name": "Subject", "value": "Your Netflix payment receipt"},
					{"name": "From", "value": "Netflix <info@netflix.com>"},
					{"name": "Date", "value": "Fri, 30 May 2025 09:00:00 +0000"},
				},
				"parts": []map[string]any{
					{
						"mimeType": "text/html",
						"body":     map[string]string{"data": b64url("<p>HTML version</p>")},
					},
					{
						"mimeType": "text/plain",
						"body":     map[string]string{"data": b64url("Plain text version")},
					},
				},
			},
		})
	}))
	defer api.Close()

	c := NewClientForTest(api.URL, tokens.URL, testCreds())
	msg, err := c.Fetch(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "Your Netflix payment receipt", msg.Subject)
	assert.Equal(t, "Netflix <info@netflix.com>", msg.From)
	assert.Equal(t, 2025, msg.Date.Year())
	assert.Equal(t, "Plain text version", msg.Body)
}

func TestFetchFallsBackToStrippedHTML(t *testing.T) {
	tokens := newTokenServer(t, nil)
	html := `<html><body><h1>Receipt</h1><p>Your plan: <b>$9.99</b> per month</p></body></html>`
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"payload": map[string]any{
				"mimeType": "text/html",
				"headers": []map[string]string{
					{"name": "Subject", "value": "Receipt"},
					{"name": "From", "value": "billing@example.com"},
				},
				"body": map[string]string{"data": b64url(html)},
			},
		})
	}))
	defer api.Close()

	c := NewClientForTest(api.URL, tokens.URL, testCreds())
	msg, err := c.Fetch(context.Background(), "m1")
	require.NoError(t, err)
	assert.NotContains(t, msg.Body, "<")
	assert.Contains(t, msg.Body, "$9.99")
}

func TestFetchDescendsNestedParts(t *testing.T) {
	tokens := newTokenServer(t, nil)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"payload": map[string]any{
				"mimeType": "multipart/mixed",
				"parts": []map[string]any{
					{
						"mimeType": "multipart/alternative",
						"parts": []map[string]any{
							{
								"mimeType": "text/plain",
								"body":     map[string]string{"data": b64url("nested plain body")},
							},
						},
					},
				},
			},
		})
	}))
	defer api.Close()

	c := NewClientForTest(api.URL, tokens.URL, testCreds())
	msg, err := c.Fetch(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "nested plain body", msg.Body)
}

func TestGetRefreshesOnceAfterUnauthorized(t *testing.T) {
	var tokenHits atomic.Int64
	var apiHits atomic.Int64
	tokens := newTokenServer(t, &tokenHits)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiHits.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"messages":[{"id":"m1"}]}`)
	}))
	defer api.Close()

	c := NewClientForTest(api.URL, tokens.URL, testCreds())
	// Prime the cache so the first API call uses a token that the fake
	// API then rejects.
	_, err := c.tokens.Token(context.Background())
	require.NoError(t, err)

	ids, err := c.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, ids)
	assert.Equal(t, int64(2), apiHits.Load(), "one retry after the 401")
	assert.Equal(t, int64(2), tokenHits.Load(), "initial grant plus one refresh")
}

func TestGetDoesNotRetryTwice(t *testing.T) {
	tokens := newTokenServer(t, nil)
	var apiHits atomic.Int64
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiHits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer api.Close()

	c := NewClientForTest(api.URL, tokens.URL, testCreds())
	_, err := c.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Equal(t, int64(2), apiHits.Load())
}

func TestDecodeBase64URLVariants(t *testing.T) {
	padded := base64.URLEncoding.EncodeToString([]byte("hello"))
	unpadded := base64.RawURLEncoding.EncodeToString([]byte("hello"))

	for _, in := range []string{padded, unpadded} {
		out, err := decodeBase64URL(in)
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	}

	out, err := decodeBase64URL("")
	require.NoError(t, err)
	assert.Empty(t, out)

	// url-safe alphabet characters round-trip.
	in := base64.RawURLEncoding.EncodeToString([]byte{0xfb, 0xff, 0xfe})
	out, err = decodeBase64URL(in)
	require.NoError(t, err)
	assert.Equal(t, string([]byte{0xfb, 0xff, 0xfe}), out)
}
