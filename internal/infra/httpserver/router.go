package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appai "github.com/subwatch/subwatch/internal/application/ai"
	appscans "github.com/subwatch/subwatch/internal/application/scans"
	appsubs "github.com/subwatch/subwatch/internal/application/subscriptions"
	domai "github.com/subwatch/subwatch/internal/domain/ai"
	"github.com/subwatch/subwatch/internal/domain/providers"
	domain "github.com/subwatch/subwatch/internal/domain/scans"
	subsdomain "github.com/subwatch/subwatch/internal/domain/subscriptions"
	"github.com/subwatch/subwatch/internal/middleware"
)

type Router struct {
	scansSvc *appscans.Service
	subsSvc  *appsubs.Service
	aiSvc    *appai.Service
}

func NewRouter(scansSvc *appscans.Service, subsSvc *appsubs.Service, aiSvc *appai.Service, checkers map[string]middleware.HealthChecker) http.Handler {
	r := &Router{scansSvc: scansSvc, subsSvc: subsSvc, aiSvc: aiSvc}
	mux := chi.NewRouter()

	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/scans", r.wrap(r.handleTriggerScan))
		rt.Get("/scans/latest", r.wrap(r.handleLatestScans))
		rt.Get("/scans/{id}", r.wrap(r.handleGetScan))
		rt.Get("/scans/{id}/errors", r.wrap(r.handleScanErrors))

		rt.Get("/subscriptions", r.wrap(r.handleListSubscriptions))
		rt.Post("/subscriptions", r.wrap(r.handleCreateSubscription))
		rt.Put("/subscriptions/{id}", r.wrap(r.handleUpdateSubscription))
		rt.Delete("/subscriptions/{id}", r.wrap(r.handleDeleteSubscription))
		rt.Get("/subscriptions/summary", r.wrap(r.handleSummary))
		rt.Post("/subscriptions/enhance", r.wrap(r.handleEnhance))

		rt.Get("/providers", r.wrap(r.handleProviders))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks handler errors that should map to 400.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var br badRequest
			switch {
			case errors.Is(err, sql.ErrNoRows):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domai.ErrQuotaExceeded):
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
			case errors.As(err, &br):
				http.Error(w, br.Error(), http.StatusBadRequest)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/scans
// Kicks off the background mailbox scan and returns immediately. When a
// scan is already running the response carries the existing scan id.
func (r *Router) handleTriggerScan(w http.ResponseWriter, req *http.Request) error {
	user := middleware.GetUserFromContext(req.Context())

	result, err := r.scansSvc.Trigger(req.Context(), user)
	if err != nil {
		return err
	}
	return writeJSON(w, result)
}

// GET /v1/scans/latest?limit=20
func (r *Router) handleLatestScans(w http.ResponseWriter, req *http.Request) error {
	user := middleware.GetUserFromContext(req.Context())
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.scansSvc.Latest(req.Context(), user, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, list)
}

// GET /v1/scans/{id}
func (r *Router) handleGetScan(w http.ResponseWriter, req *http.Request) error {
	user := middleware.GetUserFromContext(req.Context())
	id := chi.URLParam(req, "id")

	scan, err := r.scansSvc.Get(req.Context(), user, domain.ScanID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, scan)
}

// GET /v1/scans/{id}/errors?limit=20
func (r *Router) handleScanErrors(w http.ResponseWriter, req *http.Request) error {
	user := middleware.GetUserFromContext(req.Context())
	id := chi.URLParam(req, "id")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.scansSvc.ErrorsByScan(req.Context(), user, id, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, list)
}

type subscriptionBody struct {
	Name             string  `json:"name"`
	Cost             float64 `json:"cost"`
	BillingFrequency string  `json:"billing_frequency"`
	Category         string  `json:"category"`
	Status           string  `json:"status"`
}

func (b subscriptionBody) command() appsubs.CreateCommand {
	return appsubs.CreateCommand{
		Name:             b.Name,
		Cost:             b.Cost,
		BillingFrequency: b.BillingFrequency,
		Category:         b.Category,
		Status:           b.Status,
	}
}

// GET /v1/subscriptions
func (r *Router) handleListSubscriptions(w http.ResponseWriter, req *http.Request) error {
	user := middleware.GetUserFromContext(req.Context())

	list, err := r.subsSvc.List(req.Context(), user)
	if err != nil {
		return err
	}
	return writeJSON(w, list)
}

// POST /v1/subscriptions
func (r *Router) handleCreateSubscription(w http.ResponseWriter, req *http.Request) error {
	user := middleware.GetUserFromContext(req.Context())

	var body subscriptionBody
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest{err}
	}

	sub, err := r.subsSvc.Create(req.Context(), user, body.command())
	if err != nil {
		return badRequest{err}
	}
	w.WriteHeader(http.StatusCreated)
	return writeJSON(w, sub)
}

// PUT /v1/subscriptions/{id}
func (r *Router) handleUpdateSubscription(w http.ResponseWriter, req *http.Request) error {
	user := middleware.GetUserFromContext(req.Context())
	id := chi.URLParam(req, "id")

	var body subscriptionBody
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest{err}
	}

	sub, err := r.subsSvc.Update(req.Context(), user, subsdomain.SubscriptionID(id), body.command())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return badRequest{err}
	}
	return writeJSON(w, sub)
}

// DELETE /v1/subscriptions/{id}
func (r *Router) handleDeleteSubscription(w http.ResponseWriter, req *http.Request) error {
	user := middleware.GetUserFromContext(req.Context())
	id := chi.URLParam(req, "id")

	if err := r.subsSvc.Delete(req.Context(), user, subsdomain.SubscriptionID(id)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/subscriptions/summary
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	user := middleware.GetUserFromContext(req.Context())

	sum, err := r.subsSvc.Summary(req.Context(), user)
	if err != nil {
		return err
	}
	return writeJSON(w, sum)
}

// POST /v1/subscriptions/enhance
// Body: {"name": "<service>"}
func (r *Router) handleEnhance(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest{err}
	}
	if body.Name == "" {
		return badRequest{errors.New("name is required")}
	}

	enh, err := r.aiSvc.Enhance(req.Context(), body.Name)
	if err != nil {
		return err
	}
	return writeJSON(w, enh)
}

// GET /v1/providers
func (r *Router) handleProviders(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, providers.All())
}
