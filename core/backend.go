package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/prism-p2p/network-simulator/catalog"
)

// ShapingBackend is the subsystem that actually constrains a network
// path to match a profile. The engine is its sole caller; nothing else
// in the process may touch the path's impairment configuration while an
// engine exists.
//
// Apply replaces whatever impairment is currently active with the one
// described by profile. It must be idempotent: applying the same profile
// twice re-asserts it and nothing more. Clear removes all impairment.
//
// Both calls are synchronous and may take non-trivial wall-clock time;
// real implementations touch kernel queuing configuration.
type ShapingBackend interface {
	Apply(ctx context.Context, profile catalog.NetworkProfile) error
	Clear(ctx context.Context) error
}

// ShapingError reports that the backend could not configure the path.
// It is the "environment could not comply" half of the error taxonomy,
// as opposed to bad input or a conflicting operation.
type ShapingError struct {
	Op      string // "apply" or "clear"
	Profile string // profile name for apply, empty for clear
	Err     error
}

func (e *ShapingError) Error() string {
	if e.Profile == "" {
		return fmt.Sprintf("shaping %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("shaping %s failed for profile %q: %v", e.Op, e.Profile, e.Err)
}

func (e *ShapingError) Unwrap() error { return e.Err }

// wrapShaping normalises a backend failure into a *ShapingError, unless
// it already is one.
func wrapShaping(op, profile string, err error) error {
	if err == nil {
		return nil
	}
	var se *ShapingError
	if errors.As(err, &se) {
		return err
	}
	return &ShapingError{Op: op, Profile: profile, Err: err}
}
