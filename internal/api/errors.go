package api

import (
	"errors"
	"net/http"

	"github.com/prism-p2p/network-simulator/catalog"
	"github.com/prism-p2p/network-simulator/core"
)

// errorBody is the JSON error envelope. Kind lets scripted callers
// branch without parsing prose; message is for humans.
type errorBody struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// toHTTPError maps engine and catalog errors onto HTTP semantics so
// callers can tell bad input (404/400), a conflicting operation (409),
// and an environment failure (502) apart.
func toHTTPError(err error) (int, string) {
	var shaping *core.ShapingError
	switch {
	case errors.Is(err, catalog.ErrUnknownProfile):
		return http.StatusNotFound, "unknown_profile"
	case errors.Is(err, catalog.ErrUnknownScenario):
		return http.StatusNotFound, "unknown_scenario"
	case errors.Is(err, core.ErrScenarioInProgress):
		return http.StatusConflict, "scenario_in_progress"
	case errors.Is(err, core.ErrNoActiveScenario):
		return http.StatusConflict, "no_active_scenario"
	case errors.As(err, &shaping):
		return http.StatusBadGateway, "shaping_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
