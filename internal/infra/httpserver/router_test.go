package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subwatch/subwatch/internal/application"
	appai "github.com/subwatch/subwatch/internal/application/ai"
	appscans "github.com/subwatch/subwatch/internal/application/scans"
	appsubs "github.com/subwatch/subwatch/internal/application/subscriptions"
	domainai "github.com/subwatch/subwatch/internal/domain/ai"
	"github.com/subwatch/subwatch/internal/domain/mailbox"
	"github.com/subwatch/subwatch/internal/domain/providers"
	domain "github.com/subwatch/subwatch/internal/domain/scans"
	"github.com/subwatch/subwatch/internal/domain/scanerrors"
	subsdomain "github.com/subwatch/subwatch/internal/domain/subscriptions"
	"github.com/subwatch/subwatch/internal/middleware"
)

//
// Minimal port stubs; the handler behavior under test does not exercise
// the pipeline itself.
//

type stubScanLogs struct{}

func (stubScanLogs) Begin(ctx context.Context, s *domain.ScanLog) (*domain.ScanLog, bool, error) {
	return s, true, nil
}
func (stubScanLogs) Get(ctx context.Context, userID string, id domain.ScanID) (*domain.ScanLog, error) {
	if id == "known" {
		return &domain.ScanLog{ID: id, UserID: userID, Status: domain.StatusCompleted}, nil
	}
	return nil, sql.ErrNoRows
}
func (stubScanLogs) Latest(ctx context.Context, userID string, limit int) ([]*domain.ScanLog, error) {
	return nil, nil
}
func (stubScanLogs) Finish(ctx context.Context, userID string, id domain.ScanID, status domain.Status, completedAt time.Time, emailsProcessed, subscriptionsFound int, errorMessage, reportURL string) error {
	return nil
}

type stubSubs struct{}

func (stubSubs) Upsert(ctx context.Context, s *subsdomain.Subscription) error { return nil }
func (stubSubs) UpsertAll(ctx context.Context, userID string, subs []*subsdomain.Subscription) error {
	return nil
}
func (stubSubs) Get(ctx context.Context, userID string, id subsdomain.SubscriptionID) (*subsdomain.Subscription, error) {
	return nil, sql.ErrNoRows
}
func (stubSubs) List(ctx context.Context, userID string) ([]*subsdomain.Subscription, error) {
	return nil, nil
}
func (stubSubs) Delete(ctx context.Context, userID string, id subsdomain.SubscriptionID) error {
	return nil
}
func (stubSubs) DeleteScanned(ctx context.Context, userID string) error { return nil }
func (stubSubs) Summary(ctx context.Context, userID string) (*subsdomain.Summary, error) {
	return &subsdomain.Summary{}, nil
}

type stubErrors struct{}

func (stubErrors) Save(ctx context.Context, e *scanerrors.ScanError) error { return nil }
func (stubErrors) ListByScan(ctx context.Context, userID, scanID string, limit int) ([]*scanerrors.ScanError, error) {
	return nil, nil
}

type stubMailbox struct{}

func (stubMailbox) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	return nil, nil
}
func (stubMailbox) Fetch(ctx context.Context, id string) (*mailbox.Message, error) {
	return nil, sql.ErrNoRows
}

type stubAI struct {
	enhanceErr error
}

func (stubAI) ExtractSubscription(ctx context.Context, text string) (domainai.Extraction, error) {
	return domainai.Extraction{}, nil
}
func (s stubAI) EnhanceSubscription(ctx context.Context, name string) (*domainai.Enhancement, error) {
	if s.enhanceErr != nil {
		return nil, s.enhanceErr
	}
	return &domainai.Enhancement{Name: name, Category: "entertainment"}, nil
}

func newTestHandler(ai domainai.Client) http.Handler {
	clock := application.SystemClock{}
	scansSvc := &appscans.Service{
		Logs:    stubScanLogs{},
		Subs:    stubSubs{},
		Errors:  stubErrors{},
		Mailbox: stubMailbox{},
		AI:      ai,
		Clock:   clock,
		Logger:  log.New(io.Discard),
		Opts:    appscans.Options{RequestDelay: time.Millisecond, BatchDelay: time.Millisecond},
	}
	subsSvc := &appsubs.Service{Repo: stubSubs{}, Clock: clock}
	aiSvc := appai.NewService(ai)

	mux := chi.NewRouter()
	mux.Use(middleware.BearerAuth(map[string]string{"user-1": "secret-token"}))
	mux.Mount("/", NewRouter(scansSvc, subsSvc, aiSvc, nil))
	return mux
}

func doRequest(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	h := newTestHandler(stubAI{})

	rec := doRequest(t, h, http.MethodPost, "/v1/scans", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/v1/scans", "wrong-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthSkipsAuth(t *testing.T) {
	h := newTestHandler(stubAI{})
	rec := doRequest(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTriggerScanResponseShape(t *testing.T) {
	h := newTestHandler(stubAI{})
	rec := doRequest(t, h, http.MethodPost, "/v1/scans", "secret-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		ScanID  string `json:"scanId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "email scan started", body.Message)
	assert.NotEmpty(t, body.ScanID)
}

func TestGetScanNotFound(t *testing.T) {
	h := newTestHandler(stubAI{})
	rec := doRequest(t, h, http.MethodGet, "/v1/scans/unknown", "secret-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetScanFound(t *testing.T) {
	h := newTestHandler(stubAI{})
	rec := doRequest(t, h, http.MethodGet, "/v1/scans/known", "secret-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var lg domain.ScanLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lg))
	assert.Equal(t, domain.StatusCompleted, lg.Status)
	assert.Equal(t, "user-1", lg.UserID)
}

func TestCreateSubscriptionValidation(t *testing.T) {
	h := newTestHandler(stubAI{})

	rec := doRequest(t, h, http.MethodPost, "/v1/subscriptions", "secret-token",
		`{"name":"","cost":5,"billing_frequency":"monthly"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/v1/subscriptions", "secret-token", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/v1/subscriptions", "secret-token",
		`{"name":"Gym","cost":29.99,"billing_frequency":"monthly","category":"health"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestEnhanceRequiresName(t *testing.T) {
	h := newTestHandler(stubAI{})
	rec := doRequest(t, h, http.MethodPost, "/v1/subscriptions/enhance", "secret-token", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnhanceQuotaExceededMapsTo429(t *testing.T) {
	h := newTestHandler(stubAI{enhanceErr: domainai.ErrQuotaExceeded})
	rec := doRequest(t, h, http.MethodPost, "/v1/subscriptions/enhance", "secret-token",
		`{"name":"Netflix"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestProvidersList(t *testing.T) {
	h := newTestHandler(stubAI{})
	rec := doRequest(t, h, http.MethodGet, "/v1/providers", "secret-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []providers.Provider
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, len(providers.All()))
}
