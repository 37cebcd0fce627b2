// Package cleanup tears down attack resources in reverse registration order.
package cleanup

import (
	"context"
	"log"
	"sync"
)

// Stoppable is anything the manager can shut down.
type Stoppable interface {
	Stop(ctx context.Context) error
}

// StopFunc adapts a plain function to Stoppable.
type StopFunc func(ctx context.Context) error

func (f StopFunc) Stop(ctx context.Context) error { return f(ctx) }

type entry struct {
	name string
	stop Stoppable
}

// Manager collects resources that must be released when an attack ends.
// StopAll runs at most once no matter how many paths reach it: normal
// completion, operator interrupt and failure handling all funnel through
// the same manager.
type Manager struct {
	mu      sync.Mutex
	entries []entry
	stopped bool
	logger  func(message, level string)
}

func NewManager() *Manager {
	return &Manager{}
}

// SetLogger configures an optional logging callback.
func (m *Manager) SetLogger(logger func(message, level string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// Register adds a resource. Nil resources are ignored so callers can
// register unconditionally before knowing whether the resource started.
func (m *Manager) Register(name string, s Stoppable) {
	if s == nil {
		return
	}

	m.mu.Lock()
	stopped := m.stopped
	if !stopped {
		m.entries = append(m.entries, entry{name: name, stop: s})
	}
	m.mu.Unlock()

	if stopped {
		// Late registration after teardown: stop it immediately rather
		// than leaking it.
		if err := s.Stop(context.Background()); err != nil {
			m.log("Cleanup of late-registered "+name+" failed: "+err.Error(), "warning")
		}
	}
}

// RegisterFunc registers a plain function.
func (m *Manager) RegisterFunc(name string, f func(ctx context.Context) error) {
	if f == nil {
		return
	}
	m.Register(name, StopFunc(f))
}

// StopAll stops every registered resource in reverse order. Errors are
// logged and swallowed: teardown continues past failures and never
// propagates them to the caller.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	entries := m.entries
	m.entries = nil
	m.mu.Unlock()

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := e.stop.Stop(ctx); err != nil {
			m.log("Cleanup of "+e.name+" failed: "+err.Error(), "warning")
		}
	}
}

// Stopped reports whether teardown already ran.
func (m *Manager) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *Manager) log(message, level string) {
	m.mu.Lock()
	logger := m.logger
	m.mu.Unlock()

	if logger != nil {
		logger(message, level)
		return
	}
	log.Printf("[CLEANUP] %s", message)
}
