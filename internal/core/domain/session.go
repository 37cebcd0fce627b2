package domain

import (
	"errors"
	"sync"
	"time"
)

// BackendKind identifies which capture backend an attack session is using.
type BackendKind string

const (
	BackendModern BackendKind = "modern" // full-spectrum capture tool (hcxdumptool)
	BackendLegacy BackendKind = "legacy" // airodump-ng
	BackendNone   BackendKind = ""
)

// SessionOutcome is the terminal state of one attack attempt.
type SessionOutcome string

const (
	OutcomePending            SessionOutcome = "pending"
	OutcomeRunning            SessionOutcome = "running"
	OutcomeHandshakeCaptured  SessionOutcome = "handshake_captured"
	OutcomeCredentialCaptured SessionOutcome = "credential_captured"
	OutcomeExhausted          SessionOutcome = "exhausted"
	OutcomeStopped            SessionOutcome = "stopped"
	OutcomeFailed             SessionOutcome = "failed"
)

// AttackSession is the mutable state of one attack against one target. It is
// owned by the controller running the attack: the controller mutates it
// through the locked methods below, and other components receive copies from
// Snapshot. Reading exported fields directly is safe only once the session is
// finished or from the owning controller's goroutine.
type AttackSession struct {
	ID          string         `json:"id"`
	Kind        AttackKind     `json:"kind"`
	TargetBSSID string         `json:"target_bssid"`
	TargetESSID string         `json:"target_essid"`
	Channel     int            `json:"channel"`
	Assignment  RoleAssignment `json:"assignment"`

	CaptureInterface string      `json:"capture_interface,omitempty"`
	DeauthInterface  string      `json:"deauth_interface,omitempty"`
	Backend          BackendKind `json:"backend,omitempty"`

	// Observed associated clients, refreshed from the capture backend.
	Clients []string `json:"clients,omitempty"`

	// Running totals.
	DeauthBursts         int `json:"deauth_bursts"`
	IncompleteHandshakes int `json:"incomplete_handshakes"`

	Outcome      SessionOutcome `json:"outcome"`
	ErrorMessage string         `json:"error_message,omitempty"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      *time.Time     `json:"end_time,omitempty"`

	// Held as a pointer so value copies (store records, snapshots) stay
	// plain data. Nil on such copies; the locked methods tolerate that.
	mu *sync.Mutex
}

// NewAttackSession initializes a pending session for the given target.
func NewAttackSession(id string, kind AttackKind, bssid, essid string, channel int, assignment RoleAssignment) (*AttackSession, error) {
	if !IsValidMAC(bssid) {
		return nil, errors.New("invalid target BSSID")
	}
	if channel <= 0 {
		return nil, errors.New("target channel is unknown")
	}
	return &AttackSession{
		ID:          id,
		Kind:        kind,
		TargetBSSID: bssid,
		TargetESSID: essid,
		Channel:     channel,
		Assignment:  assignment,
		Outcome:     OutcomePending,
		mu:          &sync.Mutex{},
	}, nil
}

func (s *AttackSession) lock() {
	if s.mu != nil {
		s.mu.Lock()
	}
}

func (s *AttackSession) unlock() {
	if s.mu != nil {
		s.mu.Unlock()
	}
}

// Start marks the session running.
func (s *AttackSession) Start() {
	s.lock()
	defer s.unlock()
	s.Outcome = OutcomeRunning
	s.StartTime = time.Now()
	s.EndTime = nil
	s.ErrorMessage = ""
}

// Finish records a terminal outcome. Finishing an already-finished session
// is a no-op so cleanup paths can call it unconditionally.
func (s *AttackSession) Finish(outcome SessionOutcome) {
	s.lock()
	defer s.unlock()
	if terminal(s.Outcome) {
		return
	}
	now := time.Now()
	s.Outcome = outcome
	s.EndTime = &now
}

// Fail records a terminal failure with the underlying error text.
func (s *AttackSession) Fail(msg string) {
	s.lock()
	defer s.unlock()
	if terminal(s.Outcome) {
		return
	}
	now := time.Now()
	s.Outcome = OutcomeFailed
	s.ErrorMessage = msg
	s.EndTime = &now
}

func terminal(o SessionOutcome) bool {
	return o != OutcomePending && o != OutcomeRunning
}

// IsFinished reports whether a terminal outcome has been recorded.
func (s *AttackSession) IsFinished() bool {
	s.lock()
	defer s.unlock()
	return terminal(s.Outcome)
}

// SetInterfaces records which interface captures and which one deauths.
func (s *AttackSession) SetInterfaces(capture, deauth string) {
	s.lock()
	defer s.unlock()
	s.CaptureInterface = capture
	s.DeauthInterface = deauth
}

// SetDeauthInterface records (or clears) the deauth interface alone.
func (s *AttackSession) SetDeauthInterface(deauth string) {
	s.lock()
	defer s.unlock()
	s.DeauthInterface = deauth
}

// SetBackend records which capture backend currently owns the capture.
func (s *AttackSession) SetBackend(kind BackendKind) {
	s.lock()
	defer s.unlock()
	s.Backend = kind
}

// CurrentBackend returns the capture backend recorded on the session.
func (s *AttackSession) CurrentBackend() BackendKind {
	s.lock()
	defer s.unlock()
	return s.Backend
}

// AddDeauthBursts adds n to the running deauth-burst total.
func (s *AttackSession) AddDeauthBursts(n int) {
	s.lock()
	defer s.unlock()
	s.DeauthBursts += n
}

// RecordIncompleteHandshake counts a deauth round that ended with capture
// data on disk but still no complete handshake.
func (s *AttackSession) RecordIncompleteHandshake() {
	s.lock()
	defer s.unlock()
	s.IncompleteHandshakes++
}

// ObserveClient records a newly seen associated client. Returns true the
// first time an address is observed.
func (s *AttackSession) ObserveClient(mac string) bool {
	s.lock()
	defer s.unlock()
	for _, c := range s.Clients {
		if c == mac {
			return false
		}
	}
	s.Clients = append(s.Clients, mac)
	return true
}

// ClientSnapshot returns a copy of the observed-client list. Snapshots are
// what gets handed to the deauth scheduler; workers never see the live slice.
func (s *AttackSession) ClientSnapshot() []string {
	s.lock()
	defer s.unlock()
	out := make([]string, len(s.Clients))
	copy(out, s.Clients)
	return out
}

// Snapshot returns a detached copy safe to serve and serialize while the
// owning controller keeps mutating the live session.
func (s *AttackSession) Snapshot() *AttackSession {
	s.lock()
	defer s.unlock()
	cp := *s
	cp.mu = nil
	cp.Clients = append([]string(nil), s.Clients...)
	if s.EndTime != nil {
		end := *s.EndTime
		cp.EndTime = &end
	}
	return &cp
}

// Duration returns wall-clock time the session has been active.
func (s *AttackSession) Duration() time.Duration {
	s.lock()
	defer s.unlock()
	if s.StartTime.IsZero() {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}
