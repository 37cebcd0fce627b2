// Package driver configures wireless interfaces through iw and ip.
package driver

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
)

// Configurator implements interface configuration on top of the iw and ip
// command line tools. All operations are strictly sequential per interface;
// callers must not configure the same interface from two goroutines.
type Configurator struct{}

func NewConfigurator() *Configurator {
	return &Configurator{}
}

func (c *Configurator) Up(ctx context.Context, iface string) error {
	return runCmd(ctx, "ip", "link", "set", iface, "up")
}

func (c *Configurator) Down(ctx context.Context, iface string) error {
	return runCmd(ctx, "ip", "link", "set", iface, "down")
}

func (c *Configurator) SetMode(ctx context.Context, iface string, mode domain.OperatingMode) error {
	var iwType string
	switch mode {
	case domain.ModeMonitor:
		iwType = "monitor"
	case domain.ModeManaged:
		iwType = "managed"
	case domain.ModeAP:
		iwType = "__ap"
	default:
		return fmt.Errorf("unsupported mode %q for %s", mode, iface)
	}
	return runCmd(ctx, "iw", iface, "set", "type", iwType)
}

func (c *Configurator) SetChannel(ctx context.Context, iface string, channel int) error {
	if !domain.IsValidChannel(channel) {
		return fmt.Errorf("invalid channel %d for %s", channel, iface)
	}
	return runCmd(ctx, "iw", iface, "set", "channel", strconv.Itoa(channel))
}

// Mode reads the live operating mode from iw dev <iface> info.
func (c *Configurator) Mode(ctx context.Context, iface string) (domain.OperatingMode, error) {
	out, err := exec.CommandContext(ctx, "iw", "dev", iface, "info").Output()
	if err != nil {
		return domain.ModeUnknown, fmt.Errorf("reading mode of %s: %w", iface, err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "type ") {
			continue
		}
		switch strings.TrimPrefix(line, "type ") {
		case "monitor":
			return domain.ModeMonitor, nil
		case "managed", "station":
			return domain.ModeManaged, nil
		case "AP", "__ap":
			return domain.ModeAP, nil
		default:
			return domain.ModeUnknown, nil
		}
	}
	return domain.ModeUnknown, nil
}

// Channel reads the live channel from iw dev <iface> info.
func (c *Configurator) Channel(ctx context.Context, iface string) (int, error) {
	out, err := exec.CommandContext(ctx, "iw", "dev", iface, "info").Output()
	if err != nil {
		return 0, fmt.Errorf("reading channel of %s: %w", iface, err)
	}
	// Example: channel 6 (2437 MHz), width: 20 MHz, center1: 2437 MHz
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "channel ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		ch, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, fmt.Errorf("parsing channel of %s from %q: %w", iface, line, err)
		}
		return ch, nil
	}
	return 0, fmt.Errorf("no channel reported for %s", iface)
}

// KillConflictingProcesses stops NetworkManager and wpa_supplicant, which
// otherwise fight monitor mode for control of the interface.
func KillConflictingProcesses(ctx context.Context) error {
	for _, args := range [][]string{
		{"systemctl", "stop", "NetworkManager"},
		{"systemctl", "stop", "wpa_supplicant"},
	} {
		if err := runCmd(ctx, args[0], args[1:]...); err != nil {
			return err
		}
	}
	return nil
}

// RestoreNetworkServices restarts the services stopped by
// KillConflictingProcesses. All restarts are attempted even if one fails.
func RestoreNetworkServices(ctx context.Context) error {
	var lastErr error
	for _, args := range [][]string{
		{"systemctl", "start", "wpa_supplicant"},
		{"systemctl", "start", "NetworkManager"},
	} {
		if err := runCmd(ctx, args[0], args[1:]...); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func runCmd(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %v (%s)", name, strings.Join(args, " "), err,
			strings.TrimSpace(string(output)))
	}
	return nil
}
