package catalog

import (
	"errors"
	"sort"
	"testing"
)

func TestCatalog_UnknownLookups(t *testing.T) {
	cat := Builtin()

	if _, err := cat.Profile("5g"); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("Profile(5g) error = %v, want ErrUnknownProfile", err)
	}
	if _, err := cat.Scenario("train_tunnel"); !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("Scenario(train_tunnel) error = %v, want ErrUnknownScenario", err)
	}
}

func TestBuiltin_IsUsable(t *testing.T) {
	cat := Builtin()

	// The fallback must always contain the baseline the engine starts on.
	if !cat.HasProfile(BaselineProfile) {
		t.Fatalf("builtin catalog missing baseline %q", BaselineProfile)
	}

	for _, name := range []string{"wifi", "4g", "3g", "offline"} {
		if _, err := cat.Profile(name); err != nil {
			t.Errorf("builtin profile %q: %v", name, err)
		}
	}

	offline, _ := cat.Profile("offline")
	if !offline.Offline() {
		t.Errorf("builtin offline profile not offline: %+v", offline)
	}
	wifi, _ := cat.Profile("wifi")
	if wifi.Offline() {
		t.Errorf("builtin wifi profile reported offline: %+v", wifi)
	}

	// Scenario steps must reference builtin profiles only.
	for _, scn := range cat.Scenarios() {
		for _, step := range scn.Steps {
			if !cat.HasProfile(step.Profile) {
				t.Errorf("scenario %q step references missing profile %q", scn.Name, step.Profile)
			}
			if step.Duration <= 0 {
				t.Errorf("scenario %q has non-positive step duration", scn.Name)
			}
		}
	}
}

func TestCatalog_NamesSorted(t *testing.T) {
	cat := Builtin()

	profiles := cat.ProfileNames()
	if !sort.StringsAreSorted(profiles) {
		t.Errorf("ProfileNames not sorted: %v", profiles)
	}
	scenarios := cat.ScenarioNames()
	if !sort.StringsAreSorted(scenarios) {
		t.Errorf("ScenarioNames not sorted: %v", scenarios)
	}

	if len(cat.Profiles()) != len(profiles) {
		t.Errorf("Profiles() length %d != names length %d", len(cat.Profiles()), len(profiles))
	}
}
