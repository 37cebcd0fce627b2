// Package backend decides which capture tool a handshake attempt should use.
package backend

import (
	"fmt"
	"log"
	"sync"

	goversion "github.com/hashicorp/go-version"
	"github.com/lcr-sec/dualstrike/internal/core/domain"
)

// ToolProbe inspects the modern capture tool's installation. The selector
// calls Exists and Version at most once each per selection.
type ToolProbe interface {
	Exists() bool
	Version() (string, error)
}

// Fallback reasons shown to the operator before the legacy path begins.
const (
	ReasonDisabled            = "disabled by configuration"
	ReasonNotInstalled        = "tool not installed"
	ReasonVersionInsufficient = "version insufficient"
)

// Decision is the outcome of backend selection. Reason is empty when the
// modern backend was selected.
type Decision struct {
	Kind   domain.BackendKind
	Reason string
	Detail string
}

// Selector picks the modern or legacy capture backend once per attack
// attempt. The decision is cached: repeated calls with an unchanged
// environment return the same choice and probe the tool exactly once.
type Selector struct {
	probe      ToolProbe
	enabled    bool
	minVersion string

	once     sync.Once
	decision Decision
}

// NewSelector builds a Selector. enabled mirrors the configuration flag for
// the modern tool; minVersion is the minimum accepted tool version.
func NewSelector(probe ToolProbe, enabled bool, minVersion string) *Selector {
	return &Selector{
		probe:      probe,
		enabled:    enabled,
		minVersion: minVersion,
	}
}

// Select returns the backend decision, computing it on first call.
func (s *Selector) Select() Decision {
	s.once.Do(func() {
		s.decision = s.decide()
		if s.decision.Kind == domain.BackendLegacy && s.decision.Reason != "" {
			log.Printf("[BACKEND] Using legacy capture tool: %s (%s)", s.decision.Reason, s.decision.Detail)
		}
	})
	return s.decision
}

func (s *Selector) decide() Decision {
	if !s.enabled {
		return Decision{
			Kind:   domain.BackendLegacy,
			Reason: ReasonDisabled,
			Detail: "modern capture tool not configured for use",
		}
	}

	if !s.probe.Exists() {
		return Decision{
			Kind:   domain.BackendLegacy,
			Reason: ReasonNotInstalled,
			Detail: "modern capture tool binary not found in PATH",
		}
	}

	current, err := s.probe.Version()
	if err != nil {
		return Decision{
			Kind:   domain.BackendLegacy,
			Reason: ReasonVersionInsufficient,
			Detail: fmt.Sprintf("could not determine tool version: %v", err),
		}
	}

	cur, err := goversion.NewVersion(current)
	if err != nil {
		return Decision{
			Kind:   domain.BackendLegacy,
			Reason: ReasonVersionInsufficient,
			Detail: fmt.Sprintf("unparseable tool version %q", current),
		}
	}
	min, err := goversion.NewVersion(s.minVersion)
	if err == nil && cur.LessThan(min) {
		return Decision{
			Kind:   domain.BackendLegacy,
			Reason: ReasonVersionInsufficient,
			Detail: fmt.Sprintf("found %s, need >= %s", current, s.minVersion),
		}
	}

	return Decision{Kind: domain.BackendModern}
}
