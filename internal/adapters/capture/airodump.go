package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
)

// Airodump is the legacy capture backend. It writes pcap plus a CSV of
// observed stations; handshake completeness goes through aircrack-ng.
type Airodump struct {
	path      string
	checker   string
	outputDir string

	mu     sync.Mutex
	proc   *process
	prefix string
	target string
}

// NewAirodump builds the legacy backend. path is the airodump-ng binary.
func NewAirodump(path, outputDir string) *Airodump {
	if path == "" {
		path = "airodump-ng"
	}
	return &Airodump{
		path:      path,
		checker:   "aircrack-ng",
		outputDir: outputDir,
	}
}

func (a *Airodump) Kind() domain.BackendKind { return domain.BackendLegacy }

func (a *Airodump) Start(ctx context.Context, iface string, channel int, targetBSSID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.proc.running() {
		return fmt.Errorf("airodump-ng already running on %s", iface)
	}
	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return fmt.Errorf("creating capture directory: %w", err)
	}

	stamp := time.Now().Format("20060102-150405")
	a.prefix = filepath.Join(a.outputDir, fmt.Sprintf("hs-%s-%s",
		strings.ReplaceAll(targetBSSID, ":", ""), stamp))
	a.target = targetBSSID

	cmd := exec.CommandContext(ctx, a.path,
		"--bssid", targetBSSID,
		"--channel", strconv.Itoa(channel),
		"--write", a.prefix,
		"--output-format", "pcap,csv",
		"--write-interval", "1",
		"-a",
		iface,
	)
	proc, err := startProcess(cmd)
	if err != nil {
		return fmt.Errorf("starting airodump-ng: %w", err)
	}
	a.proc = proc
	return nil
}

func (a *Airodump) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.proc.running()
}

// pcap global header is 24 bytes.
func (a *Airodump) HasData() bool {
	file := a.CaptureFile()
	return file != "" && fileHasData(file, 24)
}

// HasHandshake runs aircrack-ng over the capture and looks for a handshake
// count on the target BSSID's line.
func (a *Airodump) HasHandshake(bssid string) (bool, error) {
	file := a.CaptureFile()
	if file == "" || !fileHasData(file, 24) {
		return false, nil
	}

	// aircrack-ng exits nonzero without a wordlist; its listing output is
	// still what we need.
	out, _ := exec.Command(a.checker, file).CombinedOutput()
	return aircrackReportsHandshake(string(out), bssid), nil
}

var reHandshakeCount = regexp.MustCompile(`WPA \(([0-9]+) handshake`)

// aircrackReportsHandshake scans aircrack-ng's network listing for the
// target BSSID with a nonzero handshake count.
func aircrackReportsHandshake(out, bssid string) bool {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(strings.ToUpper(line), strings.ToUpper(bssid)) {
			continue
		}
		m := reHandshakeCount.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return true
		}
	}
	return false
}

// Clients parses the airodump CSV station section for stations associated
// to the target BSSID.
func (a *Airodump) Clients() []string {
	a.mu.Lock()
	prefix := a.prefix
	target := a.target
	a.mu.Unlock()
	if prefix == "" {
		return nil
	}

	data, err := os.ReadFile(prefix + "-01.csv")
	if err != nil {
		return nil
	}
	return parseStations(string(data), target)
}

// parseStations extracts station MACs associated to bssid from airodump CSV
// output. The CSV has two sections: APs, then a "Station MAC" header
// followed by station rows whose sixth column is the associated BSSID.
func parseStations(csv, bssid string) []string {
	var clients []string
	inStations := false

	for _, line := range strings.Split(csv, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Station MAC") {
			inStations = true
			continue
		}
		if !inStations || line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 6 {
			continue
		}
		station := strings.TrimSpace(fields[0])
		associated := strings.TrimSpace(fields[5])
		if !domain.IsValidMAC(station) {
			continue
		}
		if strings.EqualFold(associated, bssid) {
			clients = append(clients, strings.ToUpper(station))
		}
	}
	return clients
}

func (a *Airodump) CaptureFile() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.prefix == "" {
		return ""
	}
	return a.prefix + "-01.cap"
}

func (a *Airodump) Stop() error {
	a.mu.Lock()
	proc := a.proc
	a.mu.Unlock()
	return proc.stop()
}
