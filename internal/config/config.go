package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration. It is constructed once at
// process start and passed by reference into every controller and strategy;
// no component reads ambient global state.
type Config struct {
	// Interfaces to consider. Empty means "probe everything".
	Interfaces []string
	// PrimaryInterface / SecondaryInterface pin the assignment when set.
	PrimaryInterface   string
	SecondaryInterface string
	// DualInterface: nil = auto, otherwise forced on/off.
	DualInterface *bool

	// Attack timing.
	AttackTimeout  time.Duration
	DeauthInterval time.Duration
	DeauthFrames   int
	NoDeauth       bool

	// Capture backend selection.
	UseModernCapture  bool
	HcxDumpToolPath   string
	MinimumHcxVersion string
	// Grace period before the runtime modern->legacy fallback.
	CaptureGracePeriod time.Duration

	// External tool paths.
	AirodumpPath string
	AireplayPath string
	HostapdPath  string
	DnsmasqPath  string
	// UseAireplay switches deauth injection from the native pcap path to
	// shelling out to aireplay-ng.
	UseAireplay bool

	// Rogue AP network.
	GatewayIP  string
	DHCPStart  string
	DHCPEnd    string
	PortalPort int

	// Persistence and output.
	DBPath       string
	HandshakeDir string
	ReportDir    string

	// Servers.
	Addr string

	Debug bool
}

// Load parses command line flags and environment variables to populate Config.
// Flags take precedence over environment variables.
func Load() *Config {
	cfg := &Config{}

	// Defaults and Environment Variables
	ifaceStr := getEnv("DUALSTRIKE_INTERFACE", "")
	cfg.Addr = getEnv("DUALSTRIKE_ADDR", ":8080")
	cfg.DBPath = getEnv("DUALSTRIKE_DB", getDefaultPath("dualstrike.db"))
	cfg.HandshakeDir = getEnv("DUALSTRIKE_HS_DIR", getDefaultPath("hs"))
	cfg.ReportDir = getEnv("DUALSTRIKE_REPORT_DIR", getDefaultPath("reports"))
	cfg.MinimumHcxVersion = getEnv("DUALSTRIKE_HCX_MIN_VERSION", "6.0.0")

	var dualFlag string

	// Command Line Flags (Override Env)
	flag.StringVar(&ifaceStr, "i", ifaceStr, "Wireless interface(s) to use (comma separated, empty = all)")
	flag.StringVar(&cfg.PrimaryInterface, "primary", "", "Force primary interface for dual mode")
	flag.StringVar(&cfg.SecondaryInterface, "secondary", "", "Force secondary interface for dual mode")
	flag.StringVar(&dualFlag, "dual", "auto", "Dual interface mode: auto, on, off")
	flag.DurationVar(&cfg.AttackTimeout, "timeout", 8*time.Minute, "Per-attack timeout")
	flag.DurationVar(&cfg.DeauthInterval, "deauth-interval", 10*time.Second, "Interval between deauth rounds")
	flag.IntVar(&cfg.DeauthFrames, "deauth-frames", 64, "Frames per deauth burst")
	flag.BoolVar(&cfg.NoDeauth, "no-deauth", getEnvBool("DUALSTRIKE_NO_DEAUTH", false), "Never send deauthentication frames")
	flag.BoolVar(&cfg.UseModernCapture, "hcxdumptool", true, "Prefer hcxdumptool for handshake capture")
	flag.StringVar(&cfg.HcxDumpToolPath, "hcxdumptool-path", "hcxdumptool", "Path to hcxdumptool binary")
	flag.DurationVar(&cfg.CaptureGracePeriod, "capture-grace", 60*time.Second, "Grace period before falling back to the legacy capture tool")
	flag.StringVar(&cfg.AirodumpPath, "airodump-path", "airodump-ng", "Path to airodump-ng binary")
	flag.StringVar(&cfg.AireplayPath, "aireplay-path", "aireplay-ng", "Path to aireplay-ng binary")
	flag.BoolVar(&cfg.UseAireplay, "aireplay", false, "Inject deauth frames via aireplay-ng instead of the native injector")
	flag.StringVar(&cfg.HostapdPath, "hostapd-path", "hostapd", "Path to hostapd binary")
	flag.StringVar(&cfg.DnsmasqPath, "dnsmasq-path", "dnsmasq", "Path to dnsmasq binary")
	flag.StringVar(&cfg.GatewayIP, "gateway", "192.168.100.1", "Rogue AP gateway address")
	flag.StringVar(&cfg.DHCPStart, "dhcp-start", "192.168.100.10", "Rogue AP DHCP range start")
	flag.StringVar(&cfg.DHCPEnd, "dhcp-end", "192.168.100.100", "Rogue AP DHCP range end")
	flag.IntVar(&cfg.PortalPort, "portal-port", 80, "Captive portal port")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Status HTTP server address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite database")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable verbose debug logging")

	flag.Parse()

	cfg.Interfaces = parseInterfaces(ifaceStr)

	switch strings.ToLower(dualFlag) {
	case "on", "true", "1":
		v := true
		cfg.DualInterface = &v
	case "off", "false", "0":
		v := false
		cfg.DualInterface = &v
	}

	return cfg
}

func parseInterfaces(s string) []string {
	var ifaces []string
	if s == "" {
		return ifaces
	}
	parts := strings.Split(s, ",")
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			ifaces = append(ifaces, trimmed)
		}
	}
	return ifaces
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getDefaultPath returns a path inside ~/.dualstrike, creating the directory
// if needed.
func getDefaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return name
	}

	dir := filepath.Join(home, ".dualstrike")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: Could not create .dualstrike directory, using current dir: %v", err)
		return name
	}

	return filepath.Join(dir, name)
}
