package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// LoadError wraps any failure to produce a usable catalog from a
// definition source. Callers that want to fall back to Builtin() can
// detect it with errors.As.
type LoadError struct {
	Source string // path or description of the source, may be empty
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("catalog load failed: %v", e.Err)
	}
	return fmt.Sprintf("catalog load failed (%s): %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// internal JSON shapes - kept unexported so the wire format can evolve
// without touching the exported value types.
type catalogJSON struct {
	Profiles  map[string]profileJSON `json:"network_profiles"`
	Scenarios []scenarioJSON         `json:"transition_scenarios"`
}

type profileJSON struct {
	BandwidthKbps     *int     `json:"bandwidth_kbps"`
	LatencyMs         *int     `json:"latency_ms"`
	PacketLossPercent *float64 `json:"packet_loss_percent"`
}

type scenarioJSON struct {
	Name  string     `json:"name"`
	Steps []stepJSON `json:"steps"`
}

type stepJSON struct {
	Profile         string  `json:"profile"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Load reads a JSON catalog definition from r and validates it as a
// whole: every profile needs bandwidth and latency, names must be
// unique, every scenario step must reference a known profile and carry
// a positive duration. Any violation fails the entire load with a
// *LoadError; there is no partial catalog.
func Load(r io.Reader) (*Catalog, error) {
	var payload catalogJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, &LoadError{Err: fmt.Errorf("decode failed: %w", err)}
	}
	return fromPayload(&payload, "")
}

// LoadFile opens path and delegates to Load, annotating errors with the
// file path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	defer f.Close()

	var payload catalogJSON
	dec := json.NewDecoder(f)
	if err := dec.Decode(&payload); err != nil {
		return nil, &LoadError{Source: path, Err: fmt.Errorf("decode failed: %w", err)}
	}
	return fromPayload(&payload, path)
}

func fromPayload(payload *catalogJSON, source string) (*Catalog, error) {
	fail := func(format string, args ...any) (*Catalog, error) {
		return nil, &LoadError{Source: source, Err: fmt.Errorf(format, args...)}
	}

	if len(payload.Profiles) == 0 {
		return fail("no network_profiles defined")
	}

	profiles := make(map[string]NetworkProfile, len(payload.Profiles))
	for name, jp := range payload.Profiles {
		if name == "" {
			return fail("profile with empty name")
		}
		if jp.BandwidthKbps == nil {
			return fail("profile %q: missing bandwidth_kbps", name)
		}
		if jp.LatencyMs == nil {
			return fail("profile %q: missing latency_ms", name)
		}
		if *jp.BandwidthKbps < 0 {
			return fail("profile %q: negative bandwidth_kbps", name)
		}
		if *jp.LatencyMs < 0 {
			return fail("profile %q: negative latency_ms", name)
		}
		loss := 0.0
		if jp.PacketLossPercent != nil {
			loss = *jp.PacketLossPercent
		}
		if loss < 0 || loss > 100 {
			return fail("profile %q: packet_loss_percent %v out of range 0-100", name, loss)
		}
		profiles[name] = NetworkProfile{
			Name:              name,
			BandwidthKbps:     *jp.BandwidthKbps,
			LatencyMs:         *jp.LatencyMs,
			PacketLossPercent: loss,
		}
	}

	scenarios := make(map[string]TransitionScenario, len(payload.Scenarios))
	for _, js := range payload.Scenarios {
		if js.Name == "" {
			return fail("scenario with empty name")
		}
		if _, dup := scenarios[js.Name]; dup {
			return fail("duplicate scenario name %q", js.Name)
		}
		if len(js.Steps) == 0 {
			return fail("scenario %q: no steps", js.Name)
		}
		steps := make([]ScenarioStep, 0, len(js.Steps))
		for i, jstep := range js.Steps {
			if _, ok := profiles[jstep.Profile]; !ok {
				return fail("scenario %q step %d: references unknown profile %q", js.Name, i, jstep.Profile)
			}
			if jstep.DurationSeconds <= 0 {
				return fail("scenario %q step %d: duration_seconds must be positive", js.Name, i)
			}
			steps = append(steps, ScenarioStep{
				Profile:  jstep.Profile,
				Duration: time.Duration(jstep.DurationSeconds * float64(time.Second)),
			})
		}
		scenarios[js.Name] = TransitionScenario{Name: js.Name, Steps: steps}
	}

	return &Catalog{profiles: profiles, scenarios: scenarios}, nil
}
