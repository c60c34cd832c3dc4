// Package catalog holds the immutable set of network impairment
// profiles and transition scenarios the simulator knows about.
//
// A Catalog is loaded once at process start and is read-only from then
// on; changing definitions means restarting the process. This keeps the
// engine free of catalog-reload races.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrUnknownProfile indicates a profile name not present in the catalog.
	ErrUnknownProfile = errors.New("unknown network profile")
	// ErrUnknownScenario indicates a scenario name not present in the catalog.
	ErrUnknownScenario = errors.New("unknown transition scenario")
)

// NetworkProfile describes one named network condition.
//
// BandwidthKbps of 0 means no throughput at all (the "offline" case),
// not "unlimited". PacketLossPercent is optional in config files and
// defaults to 0.
type NetworkProfile struct {
	Name              string  `json:"name"`
	BandwidthKbps     int     `json:"bandwidth_kbps"`
	LatencyMs         int     `json:"latency_ms"`
	PacketLossPercent float64 `json:"packet_loss_percent,omitempty"`
}

// Offline reports whether this profile models a fully unreachable path.
func (p NetworkProfile) Offline() bool {
	return p.BandwidthKbps == 0 || p.PacketLossPercent >= 100
}

// ScenarioStep is one timed entry of a transition scenario: hold the
// named profile for Duration.
type ScenarioStep struct {
	Profile  string
	Duration time.Duration
}

// TransitionScenario is an ordered, non-empty sequence of steps that
// simulates a network transition (e.g. Wi-Fi dropping to 4G and back).
type TransitionScenario struct {
	Name  string
	Steps []ScenarioStep
}

// TotalDuration returns the sum of all step durations.
func (s TransitionScenario) TotalDuration() time.Duration {
	var total time.Duration
	for _, step := range s.Steps {
		total += step.Duration
	}
	return total
}

// Catalog is the read-only registry of profiles and scenarios.
type Catalog struct {
	profiles  map[string]NetworkProfile
	scenarios map[string]TransitionScenario
}

// Profile returns the profile with the given name, or ErrUnknownProfile.
func (c *Catalog) Profile(name string) (NetworkProfile, error) {
	p, ok := c.profiles[name]
	if !ok {
		return NetworkProfile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// Scenario returns the scenario with the given name, or ErrUnknownScenario.
func (c *Catalog) Scenario(name string) (TransitionScenario, error) {
	s, ok := c.scenarios[name]
	if !ok {
		return TransitionScenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return s, nil
}

// HasProfile reports whether the named profile exists.
func (c *Catalog) HasProfile(name string) bool {
	_, ok := c.profiles[name]
	return ok
}

// ProfileNames returns all profile names, sorted for stable output.
func (c *Catalog) ProfileNames() []string {
	names := make([]string, 0, len(c.profiles))
	for name := range c.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScenarioNames returns all scenario names, sorted for stable output.
func (c *Catalog) ScenarioNames() []string {
	names := make([]string, 0, len(c.scenarios))
	for name := range c.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profiles returns a snapshot slice of all profiles, sorted by name.
func (c *Catalog) Profiles() []NetworkProfile {
	out := make([]NetworkProfile, 0, len(c.profiles))
	for _, name := range c.ProfileNames() {
		out = append(out, c.profiles[name])
	}
	return out
}

// Scenarios returns a snapshot slice of all scenarios, sorted by name.
func (c *Catalog) Scenarios() []TransitionScenario {
	out := make([]TransitionScenario, 0, len(c.scenarios))
	for _, name := range c.ScenarioNames() {
		out = append(out, c.scenarios[name])
	}
	return out
}
