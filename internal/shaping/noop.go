package shaping

import (
	"context"
	"sync"

	"github.com/prism-p2p/network-simulator/catalog"
)

// Noop is a ShapingBackend that records the requested profile without
// touching any interface. It backs dry-run mode, where the engine and
// its HTTP surface can be exercised on machines without tc privileges.
type Noop struct {
	mu      sync.Mutex
	current *catalog.NetworkProfile
}

// NewNoop returns an unconstrained in-memory backend.
func NewNoop() *Noop { return &Noop{} }

func (n *Noop) Apply(_ context.Context, profile catalog.NetworkProfile) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	p := profile
	n.current = &p
	return nil
}

func (n *Noop) Clear(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = nil
	return nil
}

// Current returns the profile last applied, or false when cleared.
func (n *Noop) Current() (catalog.NetworkProfile, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return catalog.NetworkProfile{}, false
	}
	return *n.current, true
}
