package injection

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Aireplay shells out to aireplay-ng for deauth bursts. Used where the
// native injector cannot open a raw handle (no libpcap, restrictive
// drivers).
type Aireplay struct {
	path string
}

func NewAireplay(path string) *Aireplay {
	if path == "" {
		path = "aireplay-ng"
	}
	return &Aireplay{path: path}
}

func (a *Aireplay) Deauth(ctx context.Context, iface, bssid, client string, frames int, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := []string{
		"--deauth", strconv.Itoa(frames),
		"-a", bssid,
	}
	if client != "" {
		args = append(args, "-c", client)
	}
	args = append(args, "--ignore-negative-one", iface)

	cmd := exec.CommandContext(ctx, a.path, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("aireplay-ng on %s: %w (%s)", iface, err,
			strings.TrimSpace(string(out)))
	}
	return nil
}
