package ports

import (
	"github.com/lcr-sec/dualstrike/internal/core/domain"
)

// ManagedService is an opaque lifecycle-managed external process (rogue-AP
// daemon, DHCP/DNS responder, captive-portal server). Stop must tolerate the
// process never having been started.
type ManagedService interface {
	Name() string
	Start() error
	Stop() error
	IsRunning() bool
}

// SessionStore persists attack sessions and captured material.
type SessionStore interface {
	SaveSession(s domain.AttackSession) error
	SaveHandshake(h domain.CapturedHandshake) error
	SaveCredential(c domain.CapturedCredential) error

	// FindHandshake returns a previously stored handshake for the target,
	// if one exists.
	FindHandshake(bssid string) (domain.CapturedHandshake, bool, error)

	ListSessions() ([]domain.AttackSession, error)
	ListCredentials() ([]domain.CapturedCredential, error)
}
