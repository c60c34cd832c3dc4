// Package shaping provides ShapingBackend implementations. The tc
// backend drives the kernel's traffic control (htb + netem) the same
// way the mobile test rigs do; the noop backend records profiles in
// memory for dry runs.
package shaping

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/prism-p2p/network-simulator/catalog"
	"github.com/prism-p2p/network-simulator/internal/logging"
)

// CommandRunner executes one shaping command. It exists so tests can
// intercept the exact tc invocations without a privileged environment.
type CommandRunner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, bytes.TrimSpace(out))
	}
	return nil
}

// TCBackend shapes a single network interface with tc qdiscs. Apply
// tears down whatever root qdisc exists and rebuilds it from the
// profile, which is what makes it idempotent.
type TCBackend struct {
	iface string
	run   CommandRunner
	log   logging.Logger
}

// TCOption customises TCBackend construction.
type TCOption func(*TCBackend)

// WithCommandRunner substitutes the command execution seam.
func WithCommandRunner(run CommandRunner) TCOption {
	return func(b *TCBackend) {
		if run != nil {
			b.run = run
		}
	}
}

// WithLogger attaches a structured logger for issued commands.
func WithLogger(l logging.Logger) TCOption {
	return func(b *TCBackend) {
		if l != nil {
			b.log = l
		}
	}
}

// NewTCBackend shapes iface (e.g. "eth0") through the tc binary.
func NewTCBackend(iface string, opts ...TCOption) *TCBackend {
	b := &TCBackend{
		iface: iface,
		run:   execRunner,
		log:   logging.Noop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Apply replaces the interface's impairment with the given profile.
// Offline profiles (zero bandwidth or total loss) become a blanket
// netem loss rule; everything else is an htb rate class with a netem
// delay, plus partial loss when the profile carries any.
func (b *TCBackend) Apply(ctx context.Context, profile catalog.NetworkProfile) error {
	// Best-effort teardown first; a missing root qdisc is not an error.
	b.deleteRoot(ctx)

	if profile.Offline() {
		return b.run(ctx, "tc", "qdisc", "add", "dev", b.iface, "root", "netem", "loss", "100%")
	}

	if err := b.run(ctx, "tc", "qdisc", "add", "dev", b.iface,
		"root", "handle", "1:", "htb", "default", "30"); err != nil {
		return err
	}
	if err := b.run(ctx, "tc", "class", "add", "dev", b.iface,
		"parent", "1:", "classid", "1:1", "htb",
		"rate", fmt.Sprintf("%dkbit", profile.BandwidthKbps)); err != nil {
		return err
	}

	netem := []string{"qdisc", "add", "dev", b.iface,
		"parent", "1:1", "handle", "10:",
		"netem", "delay", fmt.Sprintf("%dms", profile.LatencyMs)}
	if profile.PacketLossPercent > 0 {
		netem = append(netem, "loss", fmt.Sprintf("%g%%", profile.PacketLossPercent))
	}
	if err := b.run(ctx, "tc", netem...); err != nil {
		return err
	}

	b.log.Debug(ctx, "tc rules installed",
		logging.String("iface", b.iface),
		logging.String("profile", profile.Name))
	return nil
}

// Clear removes all impairment from the interface. An interface that
// already has no root qdisc counts as cleared.
func (b *TCBackend) Clear(ctx context.Context) error {
	err := b.run(ctx, "tc", "qdisc", "del", "dev", b.iface, "root")
	if err == nil || qdiscAlreadyAbsent(err) {
		return nil
	}
	return err
}

// deleteRoot is the pre-apply teardown; failures are expected on a
// pristine interface and only logged at debug.
func (b *TCBackend) deleteRoot(ctx context.Context) {
	if err := b.run(ctx, "tc", "qdisc", "del", "dev", b.iface, "root"); err != nil {
		b.log.Debug(ctx, "no existing qdisc to delete",
			logging.String("iface", b.iface),
			logging.String("error", err.Error()))
	}
}

// qdiscAlreadyAbsent matches the RTNETLINK noise tc emits when asked to
// delete a qdisc that does not exist.
func qdiscAlreadyAbsent(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "No such file or directory") ||
		strings.Contains(msg, "Cannot delete qdisc with handle of zero")
}
