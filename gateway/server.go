// Package gateway is the edge's client-facing HTTP surface. Every request is
// classified and dispatched to its fetch strategy; non-GET writes fall
// through to the origin and are queued for later delivery when the origin is
// unreachable. A websocket endpoint carries control commands and pushes
// notifications to connected clients.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rudrakanya/Simhasth-X8/classify"
	"github.com/rudrakanya/Simhasth-X8/config"
	"github.com/rudrakanya/Simhasth-X8/errors"
	"github.com/rudrakanya/Simhasth-X8/notify"
	"github.com/rudrakanya/Simhasth-X8/queue"
	"github.com/rudrakanya/Simhasth-X8/service"
	"github.com/rudrakanya/Simhasth-X8/strategy"
)

// Edge endpoints live under a reserved prefix so they can never collide with
// proxied origin paths.
const (
	ControlPath = "/_edge/control"
	PushPath    = "/_edge/push"
)

// maxDeferredBody caps buffered write bodies so a single oversized request
// cannot exhaust the queue store.
const maxDeferredBody = 4 << 20

// Deps are the coordinator-owned components the gateway serves.
type Deps struct {
	Classifier  *classify.Classifier
	Router      *strategy.Router
	Fetcher     strategy.Fetcher
	Queue       *queue.Queue
	QueueConfig config.QueueConfig
	Controller  *service.Controller
	Notifier    *notify.Notifier
}

// FromCoordinator collects the gateway dependencies from a running
// coordinator.
func FromCoordinator(coord *service.Coordinator, queueCfg config.QueueConfig) Deps {
	return Deps{
		Classifier:  coord.Classifier(),
		Router:      coord.Router(),
		Fetcher:     coord.Fetcher(),
		Queue:       coord.Queue(),
		QueueConfig: queueCfg,
		Controller:  coord.Controller(),
		Notifier:    coord.Notifier(),
	}
}

// Server is the client-facing HTTP server.
type Server struct {
	addr   string
	deps   Deps
	hub    *Hub
	logger *slog.Logger
	server *http.Server
}

// NewServer builds the gateway. hub may be nil when no websocket surface is
// wanted.
func NewServer(cfg config.ServerConfig, deps Deps, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:   cfg.ListenAddr,
		deps:   deps,
		hub:    hub,
		logger: logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	if hub != nil {
		mux.HandleFunc(ControlPath, s.handleControl)
	}
	mux.HandleFunc(PushPath, s.handlePush)
	mux.HandleFunc("/", s.handleFetch)

	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the mux, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.logger.Info("gateway listening", "addr", s.addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway listener failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if s.hub != nil {
		s.hub.CloseAll()
	}
	return s.server.Shutdown(ctx)
}

// handleFetch classifies the request and serves it through the matching
// strategy. Bypass traffic (writes) goes straight to the origin and is
// deferred when that fails.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	class := s.deps.Classifier.Classify(r)
	if class == classify.ClassBypass {
		s.handleBypass(w, r)
		return
	}

	result, err := s.deps.Router.Serve(r.Context(), class, r)
	if err != nil || result == nil {
		s.logger.Warn("request failed with no fallback",
			"class", class.String(), "path", r.URL.Path, "error", err)
		writeOfflineError(w, http.StatusBadGateway)
		return
	}
	if err := result.Write(w); err != nil {
		s.logger.Debug("client went away mid-response", "path", r.URL.Path, "error", err)
	}
}

// handleBypass forwards a write to the origin. When the origin is
// unreachable and the endpoint belongs to a deferred category, the action is
// queued and the client gets 202 so it can reconcile later.
func (s *Server) handleBypass(w http.ResponseWriter, r *http.Request) {
	// Buffer the body: it is needed again for the queue if the fetch fails.
	var payload []byte
	if r.Body != nil && r.Body != http.NoBody {
		var err error
		payload, err = io.ReadAll(io.LimitReader(r.Body, maxDeferredBody))
		if err != nil {
			http.Error(w, "unreadable request body", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(payload))
	}

	result, err := s.deps.Fetcher.Do(r.Context(), r)
	if err == nil {
		if writeErr := result.Write(w); writeErr != nil {
			s.logger.Debug("client went away mid-response", "path", r.URL.Path, "error", writeErr)
		}
		return
	}

	category, deferred := queue.CategoryFor(r.URL.Path, s.deps.QueueConfig)
	if !deferred {
		s.logger.Warn("write failed and is not deferrable", "path", r.URL.Path, "error", err)
		writeOfflineError(w, http.StatusBadGateway)
		return
	}

	action := queue.NewPendingAction(category, r.Method, r.URL.Path, payload)
	if err := s.deps.Queue.Enqueue(r.Context(), action); err != nil {
		s.logger.Error("deferred enqueue failed", "path", r.URL.Path, "error", err)
		writeOfflineError(w, http.StatusServiceUnavailable)
		return
	}

	s.logger.Info("write deferred", "category", category, "path", r.URL.Path, "id", action.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"queued":   true,
		"id":       action.ID,
		"category": category,
	})
}

// handlePush accepts a push payload and hands it to the notifier.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxDeferredBody))
	if err != nil {
		http.Error(w, "unreadable push payload", http.StatusBadRequest)
		return
	}

	if err := s.deps.Notifier.HandlePush(payload); err != nil {
		s.logger.Warn("push delivery failed", "error", err)
		writeOfflineError(w, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleControl upgrades to a websocket carrying control commands.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, s.deps.Controller.Handle)
}

func writeOfflineError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   strategy.OfflineErrorCode,
		"message": "origin unreachable and no cached copy available",
	})
}
