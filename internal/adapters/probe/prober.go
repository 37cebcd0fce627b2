// Package probe builds interface capability snapshots from iw and sysfs.
package probe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
)

// commandRunner executes an external tool and returns its stdout. Replaced
// in tests with canned output.
type commandRunner func(ctx context.Context, name string, args ...string) (string, error)

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// Prober implements capability probing by parsing iw output and sysfs
// attributes. One Probe call issues one iw dev plus one iw phy info per
// discovered phy.
type Prober struct {
	run    commandRunner
	sysfs  string
	logger func(message, level string)
}

func NewProber() *Prober {
	return &Prober{run: execRunner, sysfs: "/sys/class/net"}
}

// SetLogger configures an optional logging callback.
func (p *Prober) SetLogger(logger func(message, level string)) {
	p.logger = logger
}

func (p *Prober) log(message, level string) {
	if p.logger != nil {
		p.logger(message, level)
	}
}

// Probe returns a capability snapshot for every wireless interface.
func (p *Prober) Probe(ctx context.Context) ([]domain.InterfaceCapability, error) {
	out, err := p.run(ctx, "iw", "dev")
	if err != nil {
		return nil, fmt.Errorf("listing wireless interfaces: %w", err)
	}

	interfaces := parseIwDev(out)
	if len(interfaces) == 0 {
		return nil, fmt.Errorf("%w: iw dev reported no wireless interfaces", domain.ErrNoCapableInterfaces)
	}

	phyModes := map[string]phyCapabilities{}
	for i := range interfaces {
		iface := &interfaces[i]

		caps, ok := phyModes[iface.Phy]
		if !ok {
			info, err := p.run(ctx, "iw", "phy", iface.Phy, "info")
			if err != nil {
				p.log(fmt.Sprintf("Could not read %s capabilities: %v", iface.Phy, err), "warning")
			} else {
				caps = parsePhyInfo(info)
			}
			phyModes[iface.Phy] = caps
		}
		iface.SupportsAPMode = caps.ap
		iface.SupportsMonitorMode = caps.monitor
		// Frame injection rides on monitor mode: every monitor-capable
		// driver handled here injects through a raw 802.11 socket.
		iface.SupportsInjection = caps.monitor

		p.fillSysfs(iface)
		p.fillLinkState(ctx, iface)

		p.log(fmt.Sprintf("Probed %s: %s", iface.Name, iface.CapabilitySummary()), "info")
	}

	return interfaces, nil
}

type phyCapabilities struct {
	ap      bool
	monitor bool
}

// parseIwDev extracts interface name, phy, mode and channel from iw dev.
func parseIwDev(out string) []domain.InterfaceCapability {
	var interfaces []domain.InterfaceCapability
	currentPhy := ""

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "phy#"):
			currentPhy = strings.Replace(line, "#", "", 1)
		case strings.HasPrefix(line, "Interface "):
			interfaces = append(interfaces, domain.InterfaceCapability{
				Name: strings.TrimPrefix(line, "Interface "),
				Phy:  currentPhy,
			})
		case strings.HasPrefix(line, "type ") && len(interfaces) > 0:
			interfaces[len(interfaces)-1].CurrentMode = parseMode(strings.TrimPrefix(line, "type "))
		case strings.HasPrefix(line, "channel ") && len(interfaces) > 0:
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				if ch, err := strconv.Atoi(fields[1]); err == nil {
					interfaces[len(interfaces)-1].Channel = ch
				}
			}
		case strings.HasPrefix(line, "txpower ") && len(interfaces) > 0:
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				if dbm, err := strconv.ParseFloat(fields[1], 64); err == nil {
					interfaces[len(interfaces)-1].TxPower = int(dbm)
				}
			}
		case strings.HasPrefix(line, "addr ") && len(interfaces) > 0:
			interfaces[len(interfaces)-1].MAC = strings.TrimPrefix(line, "addr ")
		}
	}
	return interfaces
}

func parseMode(iwType string) domain.OperatingMode {
	switch iwType {
	case "monitor":
		return domain.ModeMonitor
	case "managed", "station":
		return domain.ModeManaged
	case "AP", "__ap":
		return domain.ModeAP
	default:
		return domain.ModeUnknown
	}
}

var reSupportedMode = regexp.MustCompile(`^\* (\S+)$`)

// parsePhyInfo extracts AP and monitor support from the "Supported interface
// modes" section of iw phy info.
func parsePhyInfo(out string) phyCapabilities {
	var caps phyCapabilities
	inModes := false

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "Supported interface modes:") {
			inModes = true
			continue
		}
		if !inModes {
			continue
		}
		m := reSupportedMode.FindStringSubmatch(line)
		if m == nil {
			// First non-bullet line ends the section.
			break
		}
		switch m[1] {
		case "AP":
			caps.ap = true
		case "monitor":
			caps.monitor = true
		}
	}
	return caps
}

// fillSysfs reads driver name, chipset IDs, MAC and admin state from
// /sys/class/net.
func (p *Prober) fillSysfs(iface *domain.InterfaceCapability) {
	base := filepath.Join(p.sysfs, iface.Name)

	if link, err := os.Readlink(filepath.Join(base, "device", "driver")); err == nil {
		iface.Driver = filepath.Base(link)
	}
	iface.Chipset = readChipset(base)
	if iface.MAC == "" {
		if addr, err := os.ReadFile(filepath.Join(base, "address")); err == nil {
			iface.MAC = strings.TrimSpace(string(addr))
		}
	}
	if flags, err := os.ReadFile(filepath.Join(base, "flags")); err == nil {
		if v, err := strconv.ParseInt(strings.TrimSpace(string(flags)), 0, 64); err == nil {
			iface.IsUp = v&1 != 0 // IFF_UP
		}
	}
}

// readChipset renders the PCI/USB vendor:device pair of the adapter, e.g.
// "168c:003e". USB adapters expose idVendor/idProduct instead of
// vendor/device.
func readChipset(base string) string {
	read := func(name string) string {
		b, err := os.ReadFile(filepath.Join(base, "device", name))
		if err != nil {
			return ""
		}
		return strings.TrimPrefix(strings.TrimSpace(string(b)), "0x")
	}

	vendor, device := read("vendor"), read("device")
	if vendor == "" {
		vendor, device = read("idVendor"), read("idProduct")
	}
	if vendor == "" || device == "" {
		return ""
	}
	return vendor + ":" + device
}

// fillLinkState marks interfaces currently associated to a network.
// Deauthing an interface out of its own uplink is rarely what the operator
// wants, so assignment penalizes connected interfaces.
func (p *Prober) fillLinkState(ctx context.Context, iface *domain.InterfaceCapability) {
	out, err := p.run(ctx, "iw", "dev", iface.Name, "link")
	if err != nil {
		return
	}
	iface.IsConnected = strings.HasPrefix(strings.TrimSpace(out), "Connected to")
}
