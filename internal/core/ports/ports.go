package ports

import (
	"context"
	"time"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
)

// CapabilityProber returns capability snapshots for every wireless interface
// on the system. Invoked once per attack-planning cycle.
type CapabilityProber interface {
	Probe(ctx context.Context) ([]domain.InterfaceCapability, error)
}

// InterfaceConfigurator exposes the imperative interface configuration
// operations. Every operation may fail and must return an error that
// identifies the interface and carries the underlying tool's output.
type InterfaceConfigurator interface {
	Up(ctx context.Context, iface string) error
	Down(ctx context.Context, iface string) error
	SetMode(ctx context.Context, iface string, mode domain.OperatingMode) error
	SetChannel(ctx context.Context, iface string, channel int) error
	Mode(ctx context.Context, iface string) (domain.OperatingMode, error)
	Channel(ctx context.Context, iface string) (int, error)
}

// CaptureBackend is the uniform contract over the modern (hcxdumptool) and
// legacy (airodump-ng) capture tools. The backend process is the only writer
// of the capture file; callers only query it.
type CaptureBackend interface {
	// Kind identifies the backend (modern/legacy).
	Kind() domain.BackendKind

	// Start launches the capture bound to an interface, channel and target.
	Start(ctx context.Context, iface string, channel int, targetBSSID string) error

	// IsRunning reports whether the capture process is alive.
	IsRunning() bool

	// HasData reports whether any frames were captured yet.
	HasData() bool

	// HasHandshake reports whether a complete handshake for the given BSSID
	// exists in the capture.
	HasHandshake(bssid string) (bool, error)

	// Clients returns station addresses observed associated to the target.
	Clients() []string

	// CaptureFile returns the path of the capture file, or "" before Start.
	CaptureFile() string

	// Stop terminates the capture process. Safe to call when never started.
	Stop() error
}

// DeauthInjector sends deauthentication bursts from a given interface.
// An empty client address means broadcast.
type DeauthInjector interface {
	Deauth(ctx context.Context, iface, bssid, client string, frames int, timeout time.Duration) error
}
