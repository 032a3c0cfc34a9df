// Package web exposes the configuration and aggregation APIs over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"binscope/internal/aggregate"
	"binscope/internal/model"
	"binscope/internal/monitor"
	"binscope/internal/planner"
	"binscope/internal/provider"
	"binscope/internal/store"
)

// Server wires the engine's operations to HTTP routes.
type Server struct {
	router      *mux.Router
	monitor     *monitor.Monitor
	ruleStore   store.RuleStore
	stateStore  store.StateStore
	rotations   store.RotationStore
	executor    provider.Executor
	aggregation *AggregationService
	logger      *zap.Logger

	httpServer *http.Server
}

func NewServer(m *monitor.Monitor, ruleStore store.RuleStore, stateStore store.StateStore, rotations store.RotationStore, executor provider.Executor, aggregation *AggregationService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:      mux.NewRouter(),
		monitor:     m,
		ruleStore:   ruleStore,
		stateStore:  stateStore,
		rotations:   rotations,
		executor:    executor,
		aggregation: aggregation,
		logger:      logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/positions/{id}/monitor", s.handleEnroll).Methods("POST")
	api.HandleFunc("/positions/{id}/monitor", s.handleUnenroll).Methods("DELETE")
	api.HandleFunc("/positions/{id}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/positions/{id}/rules", s.handlePutRules).Methods("PUT")
	api.HandleFunc("/positions/{id}/rules", s.handleGetRules).Methods("GET")
	api.HandleFunc("/positions/{id}/rules", s.handleDeleteRules).Methods("DELETE")
	api.HandleFunc("/positions/{id}/actions", s.handleManualAction).Methods("POST")

	api.HandleFunc("/aggregate", s.handleAggregate).Methods("GET")
	api.HandleFunc("/pools/{id}/plan", s.handlePlan).Methods("POST")

	api.HandleFunc("/rotation/{wallet}", s.handlePutRotation).Methods("PUT")
	api.HandleFunc("/rotation/{wallet}", s.handleGetRotation).Methods("GET")
	api.HandleFunc("/rotation/{wallet}", s.handleDeleteRotation).Methods("DELETE")
	api.HandleFunc("/rotation/{wallet}/snapshots", s.handleListSnapshots).Methods("GET")

	s.router.Use(s.loggingMiddleware)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves requests until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	positionID := mux.Vars(r)["id"]
	state, err := s.monitor.Enroll(r.Context(), positionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, state)
}

func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	positionID := mux.Vars(r)["id"]
	if err := s.monitor.Unenroll(r.Context(), positionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	positionID := mux.Vars(r)["id"]
	state, err := s.stateStore.GetState(r.Context(), positionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handlePutRules(w http.ResponseWriter, r *http.Request) {
	positionID := mux.Vars(r)["id"]

	var rules model.AutomationRules
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		s.writeErrorMessage(w, http.StatusBadRequest, "invalid rules body")
		return
	}
	rules.PositionID = positionID

	if err := s.ruleStore.PutRules(r.Context(), rules); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleGetRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.ruleStore.GetRules(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleDeleteRules(w http.ResponseWriter, r *http.Request) {
	if err := s.ruleStore.DeleteRules(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleManualAction submits a one-off action for a position, bypassing the
// rule engine. Claiming fees without compounding is only reachable here.
func (s *Server) handleManualAction(w http.ResponseWriter, r *http.Request) {
	positionID := mux.Vars(r)["id"]

	var body struct {
		Action model.Action `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeErrorMessage(w, http.StatusBadRequest, "invalid action body")
		return
	}
	if !body.Action.Valid() || body.Action == model.ActionNone {
		s.writeErrorMessage(w, http.StatusBadRequest, "unknown action")
		return
	}

	receipt, err := s.executor.Execute(r.Context(), body.Action, positionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	mintX := r.URL.Query().Get("mintX")
	mintY := r.URL.Query().Get("mintY")
	if mintX == "" || mintY == "" {
		s.writeErrorMessage(w, http.StatusBadRequest, "mintX and mintY are required")
		return
	}

	buckets, err := s.aggregation.AggregatePair(r.Context(), mintX, mintY)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"buckets": buckets,
		"count":   len(buckets),
	})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	poolID := mux.Vars(r)["id"]

	var req model.RangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorMessage(w, http.StatusBadRequest, "invalid range body")
		return
	}

	allocations, err := s.aggregation.PlanRange(r.Context(), poolID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"allocations": allocations,
		"count":       len(allocations),
	})
}

func (s *Server) handlePutRotation(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["wallet"]

	var cfg model.RotationConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeErrorMessage(w, http.StatusBadRequest, "invalid rotation config body")
		return
	}
	cfg.WalletAddress = wallet

	if err := s.rotations.PutConfig(r.Context(), cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleGetRotation(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.rotations.GetConfig(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleDeleteRotation(w http.ResponseWriter, r *http.Request) {
	if err := s.rotations.DeleteConfig(r.Context(), mux.Vars(r)["wallet"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.rotations.ListSnapshots(r.Context(), mux.Vars(r)["wallet"], 20)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response failed", zap.Error(err))
	}
}

func (s *Server) writeErrorMessage(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, map[string]interface{}{
		"error":   true,
		"message": message,
	})
}

// writeError maps engine errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, store.ErrNotFound) || errors.Is(err, provider.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, aggregate.ErrMismatchedPair),
		errors.Is(err, planner.ErrInvalidRequest),
		errors.Is(err, planner.ErrNoBinsOnSide):
		status = http.StatusBadRequest
	case errors.Is(err, provider.ErrUnavailable):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.writeErrorMessage(w, status, err.Error())
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapper.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
