package gmail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCachedAfterFirstGrant(t *testing.T) {
	var hits atomic.Int64
	srv := newTokenServer(t, &hits)

	ts := newTokenSource(srv.Client(), srv.URL, "cid", "secret", "refresh-1")

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)

	tok, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)
	assert.Equal(t, int64(1), hits.Load())
}

func TestConcurrentRefreshCoalesces(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// Hold the exchange open long enough for every caller to pile up
		// behind the in-flight request.
		time.Sleep(100 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "access-1"})
	}))
	defer srv.Close()

	ts := newTokenSource(srv.Client(), srv.URL, "cid", "secret", "refresh-1")

	const callers = 10
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer done.Done()
			start.Wait()
			tok, err := ts.Refresh(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "access-1", tok)
		}()
	}
	start.Done()
	done.Wait()

	assert.Equal(t, int64(1), hits.Load(), "all callers share one upstream exchange")
}

func TestRefreshErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	ts := newTokenSource(srv.Client(), srv.URL, "cid", "secret", "revoked")
	_, err := ts.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestRefreshRejectsEmptyAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"token_type": "Bearer"})
	}))
	defer srv.Close()

	ts := newTokenSource(srv.Client(), srv.URL, "cid", "secret", "refresh-1")
	_, err := ts.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty access_token")
}
