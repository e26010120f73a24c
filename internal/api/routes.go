package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vibe-control/vcc/internal/auth"
	"github.com/vibe-control/vcc/internal/command"
	"github.com/vibe-control/vcc/internal/dispatch"
	"github.com/vibe-control/vcc/internal/radio"
)

// legacyUsage is the usage line the original controller printed for
// anything it did not understand.
const legacyUsage = "GET /API/{strength}-{duration}{unit}"

// RegisterRoutes registers both route families on the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"

	// Health endpoint (no auth required).
	mux.HandleFunc(apiV1+"/health", s.handleHealth)

	if s.authMiddleware == nil {
		mux.HandleFunc("/", s.handleRoot)
		mux.HandleFunc("/API/", s.handleLegacyCommand)

		mux.HandleFunc(apiV1+"/status", s.handleStatus)
		mux.HandleFunc(apiV1+"/patterns", s.handlePatterns)
		mux.HandleFunc(apiV1+"/patterns/reload", s.handlePatternsReload)
		mux.HandleFunc(apiV1+"/patterns/play", s.handlePatternsPlay)
		mux.HandleFunc(apiV1+"/stop", s.handleStop)
		mux.HandleFunc(apiV1+"/events", s.handleEvents)
		return
	}

	authed := func(scope string, next http.HandlerFunc) http.HandlerFunc {
		return s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(scope)(next))
	}

	// The usage page stays open; submitting a command does not.
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/API/", authed(auth.ScopeControl, s.handleLegacyCommand))

	mux.HandleFunc(apiV1+"/status", authed(auth.ScopeRead, s.handleStatus))
	mux.HandleFunc(apiV1+"/patterns", authed(auth.ScopeRead, s.handlePatterns))
	mux.HandleFunc(apiV1+"/patterns/reload", authed(auth.ScopeControl, s.handlePatternsReload))
	mux.HandleFunc(apiV1+"/patterns/play", authed(auth.ScopeControl, s.handlePatternsPlay))
	mux.HandleFunc(apiV1+"/stop", authed(auth.ScopeControl, s.handleStop))
	mux.HandleFunc(apiV1+"/events", authed(auth.ScopeRead, s.handleEvents))
}

// handleRoot answers every unmatched path with the usage body, the way
// the original controller did.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeLegacy(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"usage":  legacyUsage,
	})
}

// handleLegacyCommand handles GET /API/{strength}-{duration}{unit}.
func (s *Server) handleLegacyCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeLegacy(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"status": "error",
			"error":  "only GET is supported",
			"usage":  legacyUsage,
		})
		return
	}

	token := strings.TrimPrefix(r.URL.Path, "/API/")
	cmd, err := command.Parse(token)
	if err != nil {
		writeLegacy(w, http.StatusBadRequest, map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
			"usage":  legacyUsage,
		})
		return
	}

	if err := s.engine.Submit(r.Context(), cmd, dispatch.SourceHTTP); err != nil {
		body := map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
		status := http.StatusInternalServerError
		if errors.Is(err, radio.ErrBusy) {
			status = http.StatusServiceUnavailable
			body["error"] = "busy, retry with backoff"
			if s.busyRetry > 0 {
				body["retryMs"] = s.busyRetry.Milliseconds()
				w.Header().Set("Retry-After", retryAfterSeconds(s.busyRetry))
			}
		}
		writeLegacy(w, status, body)
		return
	}

	writeLegacy(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"strength": cmd.Strength,
		"duration": cmd.DurationLabel(),
	})
}

// handleStatus handles GET /api/v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}
	if s.engine == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Dispatch engine not available", nil)
		return
	}
	WriteSuccess(w, s.engine.State())
}

// handlePatterns handles GET /api/v1/patterns.
func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}
	if s.catalog == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Pattern catalog not available", nil)
		return
	}

	patterns := s.catalog.Catalog()
	list := make([]map[string]interface{}, 0, len(patterns))
	for _, pat := range patterns {
		list = append(list, map[string]interface{}{
			"name":        pat.Name,
			"author":      pat.Author,
			"displayName": pat.DisplayName(),
			"steps":       len(pat.Sequence),
		})
	}
	WriteSuccess(w, map[string]interface{}{"patterns": list})
}

// handlePatternsReload handles POST /api/v1/patterns/reload.
func (s *Server) handlePatternsReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only POST method is allowed", nil)
		return
	}
	if s.catalog == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Pattern catalog not available", nil)
		return
	}

	loaded, failures := s.catalog.Reload()
	failed := make(map[string]string, len(failures))
	for name, err := range failures {
		failed[name] = err.Error()
	}
	WriteSuccess(w, map[string]interface{}{
		"loaded":   loaded,
		"failures": failed,
	})
}

// handlePatternsPlay handles POST /api/v1/patterns/play.
func (s *Server) handlePatternsPlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only POST method is allowed", nil)
		return
	}
	if s.catalog == nil || s.engine == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Service not available", nil)
		return
	}

	// Strict JSON body.
	var req struct {
		Name string `json:"name"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST",
			"Malformed JSON or unknown fields", nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST",
			"Trailing data after JSON object", nil)
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST",
			"Pattern name is required", nil)
		return
	}

	pat, err := s.catalog.Find(req.Name)
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	if err := s.engine.Play(r.Context(), pat); err != nil {
		WriteAPIError(w, err)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"pattern": pat.DisplayName(),
		"steps":   len(pat.Sequence),
	})
}

// handleStop handles POST /api/v1/stop.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only POST method is allowed", nil)
		return
	}
	if s.engine == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Dispatch engine not available", nil)
		return
	}

	if err := s.engine.Stop(r.Context(), dispatch.SourceHTTP); err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{"status": string(dispatch.StatusStopped)})
}

// handleEvents handles GET /api/v1/events (SSE).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}
	if s.statusHub == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Status service not available", nil)
		return
	}

	if err := s.statusHub.Subscribe(r.Context(), w, r); err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL",
			"Failed to subscribe to status stream", nil)
	}
}

// handleHealth handles GET /api/v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	uptime := 0.0
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Seconds()
	}

	subsystems := map[string]bool{
		"engine":   s.engine != nil,
		"status":   s.statusHub != nil,
		"patterns": s.catalog != nil,
	}

	overallStatus := "ok"
	for _, healthy := range subsystems {
		if !healthy {
			overallStatus = "degraded"
		}
	}

	health := map[string]interface{}{
		"status":     overallStatus,
		"uptimeSec":  uptime,
		"version":    "1.0.0",
		"subsystems": subsystems,
	}

	if overallStatus == "ok" {
		WriteSuccess(w, health)
		return
	}
	WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED",
		"One or more subsystems are unavailable", health)
}

// retryAfterSeconds formats a backoff for the Retry-After header,
// which only speaks whole seconds.
func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// writeLegacy writes a plain JSON body in the original controller's
// response shape.
func writeLegacy(w http.ResponseWriter, statusCode int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
