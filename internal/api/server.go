// Package api is the HTTP facade over the scenario engine and profile
// catalog: the surface the mobile test suites drive.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prism-p2p/network-simulator/catalog"
	"github.com/prism-p2p/network-simulator/core"
	"github.com/prism-p2p/network-simulator/internal/logging"
)

// Engine is the slice of the scenario engine the facade needs. The
// concrete *core.Engine satisfies it.
type Engine interface {
	ApplyProfile(ctx context.Context, name string) error
	StartScenario(ctx context.Context, name string) error
	CancelScenario() error
	Status() core.Status
}

// HTTPMetrics receives one observation per handled request.
type HTTPMetrics interface {
	ObserveHTTP(method, route string, code int, elapsed time.Duration)
}

// Server routes facade requests to the engine and catalog.
type Server struct {
	engine  Engine
	catalog *catalog.Catalog
	log     logging.Logger
	metrics HTTPMetrics
	mux     *http.ServeMux
}

// ServerOption customises Server construction.
type ServerOption func(*Server)

// WithLogger attaches a structured logger for request handling.
func WithLogger(l logging.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches an optional HTTP metrics sink.
func WithMetrics(m HTTPMetrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer builds the facade over engine and cat.
func NewServer(engine Engine, cat *catalog.Catalog, opts ...ServerOption) *Server {
	s := &Server{
		engine:  engine,
		catalog: cat,
		log:     logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.instrument("/status", s.handleStatus))
	mux.HandleFunc("POST /profile", s.instrument("/profile", s.handleSetProfile))
	mux.HandleFunc("POST /scenario", s.instrument("/scenario", s.handleStartScenario))
	mux.HandleFunc("DELETE /scenario", s.instrument("/scenario", s.handleCancelScenario))
	mux.HandleFunc("GET /profiles", s.instrument("/profiles", s.handleProfiles))
	mux.HandleFunc("GET /scenarios", s.instrument("/scenarios", s.handleScenarios))
	mux.HandleFunc("GET /healthz", s.instrument("/healthz", s.handleHealthz))
	s.mux = mux
	return s
}

// Handler returns the facade's root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ---- wire shapes ----

type profileView struct {
	Name              string  `json:"name"`
	BandwidthKbps     int     `json:"bandwidth_kbps"`
	LatencyMs         int     `json:"latency_ms"`
	PacketLossPercent float64 `json:"packet_loss_percent"`
}

type scenarioStatusView struct {
	Name                 string  `json:"name"`
	StepIndex            int     `json:"step_index"`
	StepCount            int     `json:"step_count"`
	StepProfile          string  `json:"step_profile"`
	StepRemainingSeconds float64 `json:"step_remaining_seconds"`
}

type statusResponse struct {
	CurrentProfile     string              `json:"current_profile"`
	Profile            profileView         `json:"profile"`
	ActiveScenario     *scenarioStatusView `json:"active_scenario"`
	LastError          string              `json:"last_error,omitempty"`
	AvailableProfiles  []string            `json:"available_profiles"`
	AvailableScenarios []string            `json:"available_scenarios"`
}

type scenarioStepView struct {
	Profile         string  `json:"profile"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type scenarioView struct {
	Name  string             `json:"name"`
	Steps []scenarioStepView `json:"steps"`
}

func viewOfProfile(p catalog.NetworkProfile) profileView {
	return profileView{
		Name:              p.Name,
		BandwidthKbps:     p.BandwidthKbps,
		LatencyMs:         p.LatencyMs,
		PacketLossPercent: p.PacketLossPercent,
	}
}

// ---- handlers ----

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Status()

	resp := statusResponse{
		CurrentProfile:     st.CurrentProfile.Name,
		Profile:            viewOfProfile(st.CurrentProfile),
		LastError:          st.LastError,
		AvailableProfiles:  s.catalog.ProfileNames(),
		AvailableScenarios: s.catalog.ScenarioNames(),
	}
	if st.Scenario != nil {
		resp.ActiveScenario = &scenarioStatusView{
			Name:                 st.Scenario.Name,
			StepIndex:            st.Scenario.StepIndex,
			StepCount:            st.Scenario.StepCount,
			StepProfile:          st.Scenario.StepProfile,
			StepRemainingSeconds: st.Scenario.StepRemaining.Seconds(),
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Profile string `json:"profile"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.Profile == "" {
		s.writeBadRequest(w, "missing \"profile\" field")
		return
	}

	if err := s.engine.ApplyProfile(r.Context(), body.Profile); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"profile": body.Profile,
	})
}

func (s *Server) handleStartScenario(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scenario string `json:"scenario"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.Scenario == "" {
		s.writeBadRequest(w, "missing \"scenario\" field")
		return
	}

	if err := s.engine.StartScenario(r.Context(), body.Scenario); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"scenario": body.Scenario,
	})
}

func (s *Server) handleCancelScenario(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.CancelScenario(); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := s.catalog.Profiles()
	out := make(map[string]profileView, len(profiles))
	for _, p := range profiles {
		out[p.Name] = viewOfProfile(p)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios := s.catalog.Scenarios()
	out := make([]scenarioView, 0, len(scenarios))
	for _, scn := range scenarios {
		view := scenarioView{Name: scn.Name}
		for _, step := range scn.Steps {
			view.Steps = append(view.Steps, scenarioStepView{
				Profile:         step.Profile,
				DurationSeconds: step.Duration.Seconds(),
			})
		}
		out = append(out, view)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---- helpers ----

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		s.writeBadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn(context.Background(), "response encode failed",
			logging.String("error", err.Error()))
	}
}

func (s *Server) writeBadRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorBody{
		Status:  "error",
		Error:   "bad_request",
		Message: msg,
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := toHTTPError(err)
	if log := logging.LoggerFromContext(r.Context()); log != nil && code >= http.StatusInternalServerError {
		log.Warn(r.Context(), "request failed",
			logging.String("kind", kind),
			logging.String("error", err.Error()))
	}
	s.writeJSON(w, code, errorBody{
		Status:  "error",
		Error:   kind,
		Message: err.Error(),
	})
}
