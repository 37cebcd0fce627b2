// Package capture wraps the external handshake capture tools behind a
// uniform backend contract.
package capture

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// process supervises one spawned capture tool.
type process struct {
	mu  sync.Mutex
	cmd *exec.Cmd
	// closed when Wait returns
	waited chan struct{}
}

func startProcess(cmd *exec.Cmd) (*process, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &process{cmd: cmd, waited: make(chan struct{})}
	go func() {
		cmd.Wait()
		close(p.waited)
	}()
	return p, nil
}

func (p *process) running() bool {
	if p == nil {
		return false
	}
	select {
	case <-p.waited:
		return false
	default:
		return true
	}
}

// stop interrupts the tool, giving it a moment to flush its capture file
// before a hard kill.
func (p *process) stop() error {
	if p == nil || !p.running() {
		return nil
	}

	p.mu.Lock()
	proc := p.cmd.Process
	p.mu.Unlock()
	if proc == nil {
		return nil
	}

	if err := proc.Signal(syscall.SIGINT); err != nil && err != os.ErrProcessDone {
		return proc.Kill()
	}
	select {
	case <-p.waited:
		return nil
	case <-time.After(3 * time.Second):
		return proc.Kill()
	}
}

// fileHasData reports whether a capture file exists and holds more than a
// bare header.
func fileHasData(path string, headerSize int64) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > headerSize
}
