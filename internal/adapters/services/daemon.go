// Package services manages the external processes behind a rogue AP: the
// AP daemon, the DHCP/DNS responder and the captive portal.
package services

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// daemon supervises one long-running external process. Stop tolerates the
// process never having been started.
type daemon struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	waited chan struct{}
}

func (d *daemon) start(cmd *exec.Cmd) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := cmd.Start(); err != nil {
		return err
	}
	waited := make(chan struct{})
	go func() {
		cmd.Wait()
		close(waited)
	}()
	d.cmd = cmd
	d.waited = waited
	return nil
}

func (d *daemon) running() bool {
	d.mu.Lock()
	waited := d.waited
	d.mu.Unlock()

	if waited == nil {
		return false
	}
	select {
	case <-waited:
		return false
	default:
		return true
	}
}

func (d *daemon) stop() error {
	d.mu.Lock()
	cmd := d.cmd
	waited := d.waited
	d.cmd = nil
	d.waited = nil
	d.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	select {
	case <-waited:
		return nil
	default:
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && err != os.ErrProcessDone {
		return cmd.Process.Kill()
	}
	select {
	case <-waited:
		return nil
	case <-time.After(3 * time.Second):
		return cmd.Process.Kill()
	}
}
