package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prism-p2p/network-simulator/catalog"
	"github.com/prism-p2p/network-simulator/core"
)

// fakeEngine scripts engine responses so handler behaviour can be
// tested without timing.
type fakeEngine struct {
	applyErr  error
	startErr  error
	cancelErr error
	status    core.Status

	appliedProfile  string
	startedScenario string
	cancelCalls     int
}

func (f *fakeEngine) ApplyProfile(_ context.Context, name string) error {
	f.appliedProfile = name
	return f.applyErr
}

func (f *fakeEngine) StartScenario(_ context.Context, name string) error {
	f.startedScenario = name
	return f.startErr
}

func (f *fakeEngine) CancelScenario() error {
	f.cancelCalls++
	return f.cancelErr
}

func (f *fakeEngine) Status() core.Status { return f.status }

func idleStatus() core.Status {
	return core.Status{
		CurrentProfile: catalog.NetworkProfile{Name: "wifi", BandwidthKbps: 100_000, LatencyMs: 5},
	}
}

func newTestServer(t *testing.T, engine *fakeEngine) *Server {
	t.Helper()
	return NewServer(engine, catalog.Builtin())
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestStatus_Idle(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{status: idleStatus()})

	rr := doJSON(t, srv, http.MethodGet, "/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rr.Code)
	}

	var resp struct {
		CurrentProfile     string          `json:"current_profile"`
		ActiveScenario     json.RawMessage `json:"active_scenario"`
		AvailableProfiles  []string        `json:"available_profiles"`
		AvailableScenarios []string        `json:"available_scenarios"`
	}
	decodeBody(t, rr, &resp)

	if resp.CurrentProfile != "wifi" {
		t.Errorf("current_profile = %q, want wifi", resp.CurrentProfile)
	}
	if string(resp.ActiveScenario) != "null" {
		t.Errorf("active_scenario = %s, want null while idle", resp.ActiveScenario)
	}
	if len(resp.AvailableProfiles) == 0 || len(resp.AvailableScenarios) == 0 {
		t.Errorf("catalog listings missing: %+v", resp)
	}
}

func TestStatus_RunningScenario(t *testing.T) {
	st := idleStatus()
	st.Scenario = &core.ScenarioStatus{
		Name:          "wifi_drop",
		StepIndex:     1,
		StepCount:     3,
		StepProfile:   "offline",
		StepRemaining: 2500 * 1e6, // 2.5s in nanoseconds
	}
	srv := newTestServer(t, &fakeEngine{status: st})

	rr := doJSON(t, srv, http.MethodGet, "/status", "")
	var resp struct {
		ActiveScenario *struct {
			Name                 string  `json:"name"`
			StepIndex            int     `json:"step_index"`
			StepRemainingSeconds float64 `json:"step_remaining_seconds"`
		} `json:"active_scenario"`
	}
	decodeBody(t, rr, &resp)

	if resp.ActiveScenario == nil {
		t.Fatalf("active_scenario missing")
	}
	if resp.ActiveScenario.Name != "wifi_drop" || resp.ActiveScenario.StepIndex != 1 {
		t.Errorf("active_scenario = %+v", resp.ActiveScenario)
	}
	if resp.ActiveScenario.StepRemainingSeconds != 2.5 {
		t.Errorf("step_remaining_seconds = %v, want 2.5", resp.ActiveScenario.StepRemainingSeconds)
	}
}

func TestSetProfile_Success(t *testing.T) {
	engine := &fakeEngine{status: idleStatus()}
	srv := newTestServer(t, engine)

	rr := doJSON(t, srv, http.MethodPost, "/profile", `{"profile": "4g"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if engine.appliedProfile != "4g" {
		t.Errorf("engine applied %q, want 4g", engine.appliedProfile)
	}
}

func TestSetProfile_BadBodies(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{status: idleStatus()})

	for _, body := range []string{``, `not json`, `{}`} {
		rr := doJSON(t, srv, http.MethodPost, "/profile", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: status code = %d, want 400", body, rr.Code)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{"unknown profile", catalog.ErrUnknownProfile, http.StatusNotFound, "unknown_profile"},
		{"unknown scenario", catalog.ErrUnknownScenario, http.StatusNotFound, "unknown_scenario"},
		{"scenario in progress", core.ErrScenarioInProgress, http.StatusConflict, "scenario_in_progress"},
		{"no active scenario", core.ErrNoActiveScenario, http.StatusConflict, "no_active_scenario"},
		{"shaping failed", &core.ShapingError{Op: "apply", Profile: "offline", Err: errors.New("boom")}, http.StatusBadGateway, "shaping_failed"},
		{"wrapped sentinel", errors.New("wrapped: " + catalog.ErrUnknownProfile.Error()), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, kind := toHTTPError(tc.err)
			if code != tc.wantCode || kind != tc.wantKind {
				t.Errorf("toHTTPError(%v) = (%d, %q), want (%d, %q)", tc.err, code, kind, tc.wantCode, tc.wantKind)
			}
		})
	}
}

func TestStartScenario_Conflict(t *testing.T) {
	engine := &fakeEngine{status: idleStatus(), startErr: core.ErrScenarioInProgress}
	srv := newTestServer(t, engine)

	rr := doJSON(t, srv, http.MethodPost, "/scenario", `{"scenario": "wifi_drop"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status code = %d, want 409", rr.Code)
	}

	var resp errorBody
	decodeBody(t, rr, &resp)
	if resp.Error != "scenario_in_progress" {
		t.Errorf("error kind = %q, want scenario_in_progress", resp.Error)
	}
}

func TestStartScenario_ShapingFailure(t *testing.T) {
	engine := &fakeEngine{
		status:   idleStatus(),
		startErr: &core.ShapingError{Op: "apply", Profile: "wifi", Err: errors.New("tc: permission denied")},
	}
	srv := newTestServer(t, engine)

	rr := doJSON(t, srv, http.MethodPost, "/scenario", `{"scenario": "wifi_drop"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status code = %d, want 502", rr.Code)
	}
}

func TestCancelScenario(t *testing.T) {
	engine := &fakeEngine{status: idleStatus()}
	srv := newTestServer(t, engine)

	rr := doJSON(t, srv, http.MethodDelete, "/scenario", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rr.Code)
	}
	if engine.cancelCalls != 1 {
		t.Errorf("cancel calls = %d, want 1", engine.cancelCalls)
	}

	engine.cancelErr = core.ErrNoActiveScenario
	rr = doJSON(t, srv, http.MethodDelete, "/scenario", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("idle cancel status code = %d, want 409", rr.Code)
	}
}

func TestListings(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{status: idleStatus()})

	rr := doJSON(t, srv, http.MethodGet, "/profiles", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("/profiles status = %d, want 200", rr.Code)
	}
	var profiles map[string]struct {
		BandwidthKbps int `json:"bandwidth_kbps"`
	}
	decodeBody(t, rr, &profiles)
	if _, ok := profiles["wifi"]; !ok {
		t.Errorf("/profiles missing wifi: %v", profiles)
	}

	rr = doJSON(t, srv, http.MethodGet, "/scenarios", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("/scenarios status = %d, want 200", rr.Code)
	}
	var scenarios []struct {
		Name  string `json:"name"`
		Steps []struct {
			Profile         string  `json:"profile"`
			DurationSeconds float64 `json:"duration_seconds"`
		} `json:"steps"`
	}
	decodeBody(t, rr, &scenarios)
	if len(scenarios) == 0 || len(scenarios[0].Steps) == 0 {
		t.Errorf("/scenarios listing empty: %v", scenarios)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{status: idleStatus()})

	// Generated when absent.
	rr := doJSON(t, srv, http.MethodGet, "/healthz", "")
	if rr.Header().Get(requestIDHeader) == "" {
		t.Errorf("no %s header generated", requestIDHeader)
	}

	// Echoed when supplied.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "test-id-42")
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if got := rr.Header().Get(requestIDHeader); got != "test-id-42" {
		t.Errorf("request id = %q, want test-id-42", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{status: idleStatus()})

	rr := doJSON(t, srv, http.MethodGet, "/profile", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /profile status = %d, want 405", rr.Code)
	}
}
