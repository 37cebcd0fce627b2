package domain

import (
	"fmt"
	"strings"
)

// OperatingMode represents the 802.11 operating mode reported for an interface.
type OperatingMode string

const (
	ModeManaged OperatingMode = "managed"
	ModeMonitor OperatingMode = "monitor"
	ModeAP      OperatingMode = "AP"
	ModeUnknown OperatingMode = "unknown"
)

// InterfaceCapability is an immutable snapshot of one physical adapter taken
// by the capability probe. It is descriptive only: nothing in the engine
// mutates an instance after the probe builds it.
type InterfaceCapability struct {
	// Identity
	Name    string `json:"name"`
	Phy     string `json:"phy"`
	Driver  string `json:"driver"`
	Chipset string `json:"chipset"`
	MAC     string `json:"mac"`

	// Capability flags
	SupportsAPMode      bool `json:"supports_ap_mode"`
	SupportsMonitorMode bool `json:"supports_monitor_mode"`
	SupportsInjection   bool `json:"supports_injection"`

	// Live state at probe time
	CurrentMode OperatingMode `json:"current_mode"`
	IsUp        bool          `json:"is_up"`
	IsConnected bool          `json:"is_connected"`

	// Optional details (zero = not reported)
	Channel   int     `json:"channel,omitempty"`
	Frequency float64 `json:"frequency,omitempty"`
	TxPower   int     `json:"tx_power,omitempty"`
}

// CanBeAP reports whether the interface can host a rogue access point.
func (i InterfaceCapability) CanBeAP() bool {
	return i.SupportsAPMode && i.SupportsInjection
}

// CanBeMonitor reports whether the interface can monitor and inject frames.
func (i InterfaceCapability) CanBeMonitor() bool {
	return i.SupportsMonitorMode && i.SupportsInjection
}

// SuitableForCapture reports whether the interface can capture handshakes.
// Capture only needs monitor mode; injection is not required to listen.
func (i InterfaceCapability) SuitableForCapture() bool {
	return i.SupportsMonitorMode
}

// SuitableForDeauth reports whether the interface can send deauth frames.
func (i InterfaceCapability) SuitableForDeauth() bool {
	return i.CanBeMonitor()
}

// CapabilitySummary returns a human-readable capability list.
func (i InterfaceCapability) CapabilitySummary() string {
	var caps []string
	if i.SupportsMonitorMode {
		caps = append(caps, "Monitor")
	}
	if i.SupportsAPMode {
		caps = append(caps, "AP")
	}
	if i.SupportsInjection {
		caps = append(caps, "Injection")
	}
	if len(caps) == 0 {
		return "Limited capabilities"
	}
	return strings.Join(caps, ", ")
}

// StatusSummary returns a human-readable state line.
func (i InterfaceCapability) StatusSummary() string {
	parts := []string{fmt.Sprintf("Mode: %s", i.CurrentMode)}
	if i.IsUp {
		parts = append(parts, "Up")
	} else {
		parts = append(parts, "Down")
	}
	if i.CurrentMode == ModeManaged && i.IsConnected {
		parts = append(parts, "Connected")
	}
	if i.Channel > 0 {
		parts = append(parts, fmt.Sprintf("Ch %d", i.Channel))
	}
	return strings.Join(parts, ", ")
}

func (i InterfaceCapability) String() string {
	return fmt.Sprintf("%s (%s) - %s", i.Name, i.Chipset, i.CapabilitySummary())
}
