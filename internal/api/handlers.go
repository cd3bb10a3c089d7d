package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/frontdesk/internal/escalation"
	"github.com/kalambet/frontdesk/internal/knowledge"
	"github.com/kalambet/frontdesk/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Listing defaults; ?limit= is clamped to the max.
const (
	defaultListLimit = 50
	maxListLimit     = 200

	defaultResolvedLimit = 20
	maxResolvedLimit     = 100
)

// NotificationCounter reports how many notifications have been sent since
// startup. Optional; stats omit the count when nil.
type NotificationCounter interface {
	Sent() int64
}

type Deps struct {
	Store         *storage.Store
	Knowledge     *knowledge.Base
	Orchestrator  *escalation.Orchestrator
	Token         string
	Notifications NotificationCounter
}

func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/questions", handleQuestion(deps))
		r.Post("/requests/{id}/response", handleRespond(deps))
		r.Get("/requests", handleListRequests(deps))
		r.Get("/requests/pending", handleListPending(deps))
		r.Get("/requests/resolved", handleListResolved(deps))
		r.Get("/requests/{id}", handleGetRequest(deps))
		r.Get("/knowledge", handleListKnowledge(deps))
		r.Post("/knowledge/{id}/deactivate", handleDeactivateKnowledge(deps))
		r.Get("/stats", handleStats(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type questionRequest struct {
	Customer string `json:"customer"`
	Question string `json:"question"`
	Context  string `json:"context"`
}

func handleQuestion(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req questionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Customer == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "customer is required")
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		answer, err := deps.Orchestrator.HandleQuestion(req.Customer, req.Question, req.Context)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to handle question: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if answer.Escalated {
			w.WriteHeader(http.StatusAccepted)
		}
		json.NewEncoder(w).Encode(answer)
	}
}

type respondRequest struct {
	Response string `json:"response"`
}

func handleRespond(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		id := chi.URLParam(r, "id")

		var req respondRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Response == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "response is required")
			return
		}

		err := deps.Orchestrator.Resolve(id, req.Response)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "help request not found")
			return
		}
		if errors.Is(err, storage.ErrInvalidTransition) {
			httpError(w, http.StatusConflict, "conflict", "help request is no longer pending")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to resolve request: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "resolved"})
	}
}

type requestView struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Question           string `json:"question"`
	Context            string `json:"context,omitempty"`
	Status             string `json:"status"`
	SupervisorResponse string `json:"supervisor_response,omitempty"`
	CreatedAt          string `json:"created_at"`
	ResolvedAt         string `json:"resolved_at,omitempty"`
	TimeoutAt          string `json:"timeout_at"`
}

func viewRequest(r storage.HelpRequest) requestView {
	v := requestView{
		ID:                 r.ID,
		Customer:           r.CustomerRef,
		Question:           r.Question,
		Context:            r.Context,
		Status:             r.Status,
		SupervisorResponse: r.SupervisorResponse,
		CreatedAt:          r.CreatedAt.Format(time.RFC3339),
		TimeoutAt:          r.TimeoutAt.Format(time.RFC3339),
	}
	if !r.ResolvedAt.IsZero() {
		v.ResolvedAt = r.ResolvedAt.Format(time.RFC3339)
	}
	return v
}

func viewRequests(rs []storage.HelpRequest) []requestView {
	views := make([]requestView, len(rs))
	for i, r := range rs {
		views[i] = viewRequest(r)
	}
	return views
}

func handleListRequests(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", defaultListLimit, maxListLimit)

		requests, err := deps.Store.ListRequests(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list requests: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(viewRequests(requests))
	}
}

func handleListPending(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requests, err := deps.Store.ListPendingRequests()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list pending requests: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(viewRequests(requests))
	}
}

func handleListResolved(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", defaultResolvedLimit, maxResolvedLimit)

		requests, err := deps.Store.ListResolvedRequests(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list resolved requests: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(viewRequests(requests))
	}
}

func handleGetRequest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		req, err := deps.Store.GetHelpRequest(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "help request not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get request: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(viewRequest(req))
	}
}

type knowledgeView struct {
	ID              string `json:"id"`
	Question        string `json:"question"`
	Answer          string `json:"answer"`
	Context         string `json:"context,omitempty"`
	SourceRequestID string `json:"source_request_id,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func handleListKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", defaultListLimit, maxListLimit)

		entries, err := deps.Knowledge.ListActive(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list knowledge: %v", err)
			return
		}

		views := make([]knowledgeView, len(entries))
		for i, e := range entries {
			views[i] = knowledgeView{
				ID:              e.ID,
				Question:        e.Question,
				Answer:          e.Answer,
				Context:         e.Context,
				SourceRequestID: e.SourceRequestID,
				CreatedAt:       e.CreatedAt.Format(time.RFC3339),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(views)
	}
}

func handleDeactivateKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Knowledge.Deactivate(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "knowledge entry not found or already inactive")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to deactivate entry: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deactivated"})
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Store.RequestStats()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute stats: %v", err)
			return
		}

		resp := struct {
			storage.Stats
			NotificationsSent *int64 `json:"notifications_sent,omitempty"`
		}{Stats: stats}
		if deps.Notifications != nil {
			sent := deps.Notifications.Sent()
			resp.NotificationsSent = &sent
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
