package catalog

import "time"

// Builtin returns the minimal catalog the simulator falls back to when
// the configured definition file cannot be loaded. It mirrors the
// conditions mobile test suites rely on most: the unimpaired wifi
// baseline, the two cellular tiers, and a fully offline path.
//
// The fallback keeps the simulator usable for manual testing after a
// bad deploy of the profile file; callers are expected to log the
// fallback so it never happens silently.
func Builtin() *Catalog {
	profiles := map[string]NetworkProfile{
		"wifi":    {Name: "wifi", BandwidthKbps: 100_000, LatencyMs: 5},
		"4g":      {Name: "4g", BandwidthKbps: 25_000, LatencyMs: 50},
		"3g":      {Name: "3g", BandwidthKbps: 8_000, LatencyMs: 150},
		"offline": {Name: "offline", BandwidthKbps: 0, LatencyMs: 0, PacketLossPercent: 100},
	}

	// One canonical transition so scenario runs still work on the
	// fallback catalog: wifi drops out and comes back.
	scenarios := map[string]TransitionScenario{
		"wifi_drop": {
			Name: "wifi_drop",
			Steps: []ScenarioStep{
				{Profile: "wifi", Duration: 5 * time.Second},
				{Profile: "offline", Duration: 5 * time.Second},
				{Profile: "wifi", Duration: 5 * time.Second},
			},
		},
	}

	return &Catalog{profiles: profiles, scenarios: scenarios}
}

// BaselineProfile is the profile every engine starts on unless
// configured otherwise. It must exist in Builtin().
const BaselineProfile = "wifi"
