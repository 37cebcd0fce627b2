package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
)

// HcxDumpTool is the modern capture backend. It writes pcapng and captures
// both full handshakes and PMKIDs; completeness checks go through
// hcxpcapngtool on the written file.
type HcxDumpTool struct {
	path       string
	outputDir  string
	converter  string
	mu         sync.Mutex
	proc       *process
	file       string
	target     string
	filterFile string
}

// NewHcxDumpTool builds the modern backend. path is the hcxdumptool binary,
// outputDir receives capture files.
func NewHcxDumpTool(path, outputDir string) *HcxDumpTool {
	if path == "" {
		path = "hcxdumptool"
	}
	return &HcxDumpTool{
		path:      path,
		outputDir: outputDir,
		converter: "hcxpcapngtool",
	}
}

func (h *HcxDumpTool) Kind() domain.BackendKind { return domain.BackendModern }

func (h *HcxDumpTool) Start(ctx context.Context, iface string, channel int, targetBSSID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.proc.running() {
		return fmt.Errorf("hcxdumptool already running on %s", iface)
	}
	if err := os.MkdirAll(h.outputDir, 0o755); err != nil {
		return fmt.Errorf("creating capture directory: %w", err)
	}

	stamp := time.Now().Format("20060102-150405")
	h.file = filepath.Join(h.outputDir, fmt.Sprintf("hs-%s-%s.pcapng",
		strings.ReplaceAll(targetBSSID, ":", ""), stamp))
	h.target = targetBSSID

	// Target filter: one BSSID without separators per line.
	filter := filepath.Join(h.outputDir, fmt.Sprintf("filter-%s.txt", stamp))
	bare := strings.ToLower(strings.ReplaceAll(targetBSSID, ":", ""))
	if err := os.WriteFile(filter, []byte(bare+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing BSSID filter: %w", err)
	}
	h.filterFile = filter

	cmd := exec.CommandContext(ctx, h.path,
		"-i", iface,
		"-o", h.file,
		"-c", fmt.Sprintf("%d", channel),
		"--filterlist_ap="+filter,
		"--filtermode=2",
		"--enable_status=3",
	)
	proc, err := startProcess(cmd)
	if err != nil {
		return fmt.Errorf("starting hcxdumptool: %w", err)
	}
	h.proc = proc
	return nil
}

func (h *HcxDumpTool) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.proc.running()
}

// pcapng section header block is 28 bytes minimum.
func (h *HcxDumpTool) HasData() bool {
	h.mu.Lock()
	file := h.file
	h.mu.Unlock()
	return file != "" && fileHasData(file, 28)
}

// HasHandshake converts the capture and checks for EAPOL pairs or a PMKID
// belonging to the target.
func (h *HcxDumpTool) HasHandshake(bssid string) (bool, error) {
	h.mu.Lock()
	file := h.file
	h.mu.Unlock()
	if file == "" || !fileHasData(file, 28) {
		return false, nil
	}

	out, err := exec.Command(h.converter, "-o", os.DevNull, file).CombinedOutput()
	if err != nil {
		return false, fmt.Errorf("converting capture: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return parseHcxSummary(string(out)), nil
}

var (
	reEapolPairs = regexp.MustCompile(`EAPOL pairs \(best\)\.+:\s*([1-9][0-9]*)`)
	rePMKID      = regexp.MustCompile(`PMKID \(best\)\.+:\s*([1-9][0-9]*)`)
)

// parseHcxSummary reads the hcxpcapngtool summary for usable material.
func parseHcxSummary(out string) bool {
	return reEapolPairs.MatchString(out) || rePMKID.MatchString(out)
}

// Clients returns nothing: hcxdumptool does not expose an observed-station
// list while running. The controller relies on broadcast deauth in that
// case.
func (h *HcxDumpTool) Clients() []string { return nil }

func (h *HcxDumpTool) CaptureFile() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.file
}

func (h *HcxDumpTool) Stop() error {
	h.mu.Lock()
	proc := h.proc
	filter := h.filterFile
	h.mu.Unlock()

	if filter != "" {
		os.Remove(filter)
	}
	return proc.stop()
}

// ToolInfo probes the hcxdumptool installation for the backend selector.
type ToolInfo struct {
	path string
}

func NewToolInfo(path string) *ToolInfo {
	if path == "" {
		path = "hcxdumptool"
	}
	return &ToolInfo{path: path}
}

func (t *ToolInfo) Exists() bool {
	_, err := exec.LookPath(t.path)
	return err == nil
}

var reVersion = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

func (t *ToolInfo) Version() (string, error) {
	out, err := exec.Command(t.path, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("querying hcxdumptool version: %w", err)
	}
	m := reVersion.FindStringSubmatch(string(out))
	if m == nil {
		return "", fmt.Errorf("unrecognized version output %q", strings.TrimSpace(string(out)))
	}
	return m[1], nil
}
