package services

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Dnsmasq hands out addresses to associated victims and resolves every name
// to the gateway, funneling all HTTP traffic into the captive portal.
type Dnsmasq struct {
	path      string
	confDir   string
	iface     string
	gatewayIP string
	dhcpStart string
	dhcpEnd   string

	daemon
	confFile string
}

func NewDnsmasq(path, confDir, iface, gatewayIP, dhcpStart, dhcpEnd string) *Dnsmasq {
	if path == "" {
		path = "dnsmasq"
	}
	return &Dnsmasq{
		path:      path,
		confDir:   confDir,
		iface:     iface,
		gatewayIP: gatewayIP,
		dhcpStart: dhcpStart,
		dhcpEnd:   dhcpEnd,
	}
}

func (d *Dnsmasq) Name() string { return "dnsmasq" }

// SetTarget binds the responder to the AP interface. ESSID and channel are
// irrelevant at the DHCP layer.
func (d *Dnsmasq) SetTarget(iface, essid string, channel int) {
	d.iface = iface
}

func (d *Dnsmasq) Start() error {
	if d.running() {
		return fmt.Errorf("dnsmasq already running on %s", d.iface)
	}
	if err := os.MkdirAll(d.confDir, 0o755); err != nil {
		return fmt.Errorf("creating dnsmasq config directory: %w", err)
	}

	conf := fmt.Sprintf(`interface=%s
bind-interfaces
dhcp-range=%s,%s,12h
dhcp-option=3,%s
dhcp-option=6,%s
address=/#/%s
no-resolv
`, d.iface, d.dhcpStart, d.dhcpEnd, d.gatewayIP, d.gatewayIP, d.gatewayIP)

	d.confFile = filepath.Join(d.confDir, "dnsmasq.conf")
	if err := os.WriteFile(d.confFile, []byte(conf), 0o644); err != nil {
		return fmt.Errorf("writing dnsmasq config: %w", err)
	}

	if err := d.start(exec.Command(d.path, "-C", d.confFile, "-k")); err != nil {
		return fmt.Errorf("starting dnsmasq: %w", err)
	}
	return nil
}

func (d *Dnsmasq) Stop() error {
	err := d.stop()
	if d.confFile != "" {
		os.Remove(d.confFile)
		d.confFile = ""
	}
	return err
}

func (d *Dnsmasq) IsRunning() bool { return d.running() }
