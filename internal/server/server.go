// Package server exposes the HTTP API: condense requests, brief
// retrieval, and the Microsoft Graph change-notification webhook.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jimmc414/thread-condenser/internal/condense"
	"github.com/jimmc414/thread-condenser/internal/platform"
	"github.com/jimmc414/thread-condenser/internal/store"
)

// RunDispatcher starts condense runs. The HTTP layer only assigns run
// ids and hands references off; execution is the dispatcher's problem.
type RunDispatcher interface {
	Dispatch(ctx context.Context, ref *platform.ThreadRef, opts condense.Options) (runID string)
}

// Server routes the v1 API.
type Server struct {
	store      store.Store
	dispatcher RunDispatcher
	log        *zap.Logger
}

// New creates the API server.
func New(st store.Store, dispatcher RunDispatcher, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{store: st, dispatcher: dispatcher, log: log}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/condense", s.condense).Methods(http.MethodPost)
	v1.HandleFunc("/briefs/{run_id}", s.getBrief).Methods(http.MethodGet)
	v1.HandleFunc("/graph/notifications", s.graphValidation).Methods(http.MethodGet)
	v1.HandleFunc("/graph/notifications", s.graphNotifications).Methods(http.MethodPost)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}

type condenseRequest struct {
	Platform  string         `json:"platform"`
	ThreadRef map[string]any `json:"thread_ref"`
	Options   map[string]any `json:"options"`
}

func (s *Server) condense(w http.ResponseWriter, r *http.Request) {
	var req condenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ref := platform.RefFromMap(req.Platform, req.ThreadRef)
	if ref == nil {
		writeError(w, http.StatusBadRequest, "thread_ref does not identify a fetchable thread")
		return
	}

	opts := condense.Options{}
	if v, ok := req.Options["threshold"].(float64); ok {
		opts.Threshold = v
	}
	if v, ok := req.Options["segment_tokens"].(float64); ok {
		opts.SegmentTokens = int(v)
	}

	runID := s.dispatcher.Dispatch(r.Context(), ref, opts)
	s.log.Info("condense accepted",
		zap.String("run_id", runID),
		zap.String("platform", ref.Platform))
	writeJSON(w, http.StatusOK, map[string]string{"run_id": runID})
}

func (s *Server) getBrief(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]
	brief, err := s.store.GetBrief(r.Context(), runID)
	if err != nil {
		s.log.Error("brief lookup failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "brief lookup failed")
		return
	}
	if brief == nil {
		writeError(w, http.StatusNotFound, "brief not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(brief.JSON)
}

// graphValidation answers the subscription handshake: Graph sends a GET
// with a validationToken that must echo back as plain text.
func (s *Server) graphValidation(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("validationToken")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing validationToken")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(token))
}

type graphNotification struct {
	Value           []graphNotificationItem `json:"value"`
	ValidationToken string                  `json:"validationToken"`
}

type graphNotificationItem struct {
	Resource     string         `json:"resource"`
	ResourceData map[string]any `json:"resourceData"`
}

// graphNotifications handles change notifications. Message resources
// under /chats/ or /teams/ are Teams conversations; every other message
// resource is Outlook mail. Notifications that cannot be resolved to a
// fetchable thread are skipped silently, per Graph's delivery contract
// (a non-2xx would only trigger redelivery of the same payload).
func (s *Server) graphNotifications(w http.ResponseWriter, r *http.Request) {
	var payload graphNotification
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification body")
		return
	}
	if payload.ValidationToken != "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(payload.ValidationToken))
		return
	}

	for _, n := range payload.Value {
		if !strings.Contains(n.Resource, "/messages") {
			continue
		}

		var ref *platform.ThreadRef
		if isTeamsResource(n.Resource) {
			ref = platform.TeamsBuilder{}.Build(n.Resource, n.ResourceData)
		} else {
			ref = platform.OutlookBuilder{}.Build(n.Resource, n.ResourceData)
		}
		if ref == nil {
			s.log.Warn("unresolvable notification skipped",
				zap.String("resource", n.Resource))
			continue
		}

		runID := s.dispatcher.Dispatch(r.Context(), ref, condense.Options{})
		s.log.Info("notification dispatched",
			zap.String("run_id", runID),
			zap.String("platform", ref.Platform))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// isTeamsResource reports whether the resource path addresses a Teams
// conversation. Graph delivers both segment styles: chats('id')/... and
// /chats/id/....
func isTeamsResource(resource string) bool {
	for _, marker := range []string{"chats(", "/chats/", "teams(", "/teams/"} {
		if strings.Contains(resource, marker) {
			return true
		}
	}
	return strings.HasPrefix(resource, "chats/") || strings.HasPrefix(resource, "teams/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
