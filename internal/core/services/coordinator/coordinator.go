// Package coordinator plans and runs attack attempts against targets.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
	"github.com/lcr-sec/dualstrike/internal/core/ports"
	"github.com/lcr-sec/dualstrike/internal/core/services/assignment"
	"github.com/lcr-sec/dualstrike/internal/core/services/handshake"
	"github.com/lcr-sec/dualstrike/internal/core/services/rogueap"
)

// Target identifies one network to attack.
type Target struct {
	BSSID   string `json:"bssid"`
	ESSID   string `json:"essid"`
	Channel int    `json:"channel"`
}

// Coordinator owns the attack-planning cycle: probe capabilities once,
// assign interface roles, dispatch to the controller for the attack kind,
// and persist the outcome. One attempt runs at a time; failures abort the
// attempt, never the process.
type Coordinator struct {
	prober        ports.CapabilityProber
	strategy      *assignment.Strategy
	handshakeCtrl *handshake.Controller
	rogueCtrl     *rogueap.Controller
	store         ports.SessionStore

	mu       sync.Mutex
	active   *domain.AttackSession
	cancel   context.CancelFunc
	done     chan struct{}
	sessions []*domain.AttackSession
	logger   func(message, level string)
}

func NewCoordinator(
	prober ports.CapabilityProber,
	strategy *assignment.Strategy,
	store ports.SessionStore,
) *Coordinator {
	return &Coordinator{
		prober:   prober,
		strategy: strategy,
		store:    store,
	}
}

// SetHandshakeController sets the handshake capture controller.
func (c *Coordinator) SetHandshakeController(ctrl *handshake.Controller) {
	c.handshakeCtrl = ctrl
}

// SetRogueAPController sets the rogue-AP controller.
func (c *Coordinator) SetRogueAPController(ctrl *rogueap.Controller) {
	c.rogueCtrl = ctrl
}

// SetLogger configures an optional logging callback.
func (c *Coordinator) SetLogger(logger func(message, level string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

func (c *Coordinator) log(message, level string) {
	c.mu.Lock()
	logger := c.logger
	c.mu.Unlock()

	if logger != nil {
		logger(message, level)
		return
	}
	log.Printf("[COORDINATOR] %s", message)
}

// StartHandshakeAttack plans and launches a handshake capture attempt.
// Returns the session ID; the attempt runs until completion or StopAttack.
func (c *Coordinator) StartHandshakeAttack(ctx context.Context, target Target) (string, error) {
	if c.handshakeCtrl == nil {
		return "", fmt.Errorf("handshake controller not initialized")
	}
	return c.start(ctx, domain.AttackHandshake, target)
}

// StartRogueAPAttack plans and launches a rogue-AP attempt.
func (c *Coordinator) StartRogueAPAttack(ctx context.Context, target Target) (string, error) {
	if c.rogueCtrl == nil {
		return "", fmt.Errorf("rogue-AP controller not initialized")
	}
	return c.start(ctx, domain.AttackRogueAP, target)
}

func (c *Coordinator) start(ctx context.Context, kind domain.AttackKind, target Target) (string, error) {
	ctx, span := otel.Tracer("coordinator").Start(ctx, "StartAttack")
	defer span.End()
	span.SetAttributes(
		attribute.String("attack.kind", string(kind)),
		attribute.String("target.bssid", target.BSSID),
	)

	// One planning cycle: probe capabilities exactly once, then assign.
	capabilities, err := c.prober.Probe(ctx)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("probing interface capabilities: %w", err)
	}

	assign, err := c.strategy.Assign(kind, capabilities)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	session, err := domain.NewAttackSession(uuid.New().String(), kind,
		target.BSSID, target.ESSID, target.Channel, assign)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.active != nil && !c.active.IsFinished() {
		c.mu.Unlock()
		return "", fmt.Errorf("attack %s still running against %s", c.active.ID, c.active.TargetBSSID)
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.active = session
	c.cancel = cancel
	c.done = done
	c.sessions = append(c.sessions, session)
	c.mu.Unlock()

	c.log(fmt.Sprintf("Starting %s attack %s against %s (%s)",
		kind, session.ID, target.BSSID, assign.Summary()), "info")

	go func() {
		defer close(done)
		defer cancel()
		c.runAttempt(runCtx, session, capabilities)
	}()

	return session.ID, nil
}

// runAttempt executes one attempt to completion and persists the result.
// Controller errors end the attempt only; remaining targets are unaffected.
func (c *Coordinator) runAttempt(ctx context.Context, session *domain.AttackSession, capabilities []domain.InterfaceCapability) {
	var err error
	switch session.Kind {
	case domain.AttackRogueAP:
		err = c.rogueCtrl.Run(ctx, session, capabilities)
	default:
		err = c.handshakeCtrl.Run(ctx, session)
	}
	if err != nil {
		c.log(fmt.Sprintf("Attack %s against %s aborted: %v",
			session.ID, session.TargetBSSID, err), "error")
	}

	if session.Kind == domain.AttackRogueAP && session.Outcome == domain.OutcomeCredentialCaptured {
		c.persistCredential(session)
	}
	c.persistSession(session)
}

func (c *Coordinator) persistSession(session *domain.AttackSession) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveSession(*session.Snapshot()); err != nil {
		c.log("Persisting session "+session.ID+": "+err.Error(), "warning")
	}
}

func (c *Coordinator) persistCredential(session *domain.AttackSession) {
	if c.store == nil {
		return
	}
	cred, ok := c.rogueCtrl.CapturedCredential()
	if !ok {
		return
	}
	cred.ID = uuid.New().String()
	cred.CapturedAt = time.Now()
	if err := c.store.SaveCredential(cred); err != nil {
		c.log("Persisting credential for "+session.TargetBSSID+": "+err.Error(), "warning")
	}
}

// ActiveSession returns a snapshot of the currently running session, if any.
// Callers never see the live session the controller is mutating.
func (c *Coordinator) ActiveSession() (*domain.AttackSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.IsFinished() {
		return nil, false
	}
	return c.active.Snapshot(), true
}

// GetSession returns a snapshot of a session by ID.
func (c *Coordinator) GetSession(id string) (*domain.AttackSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sessions {
		if s.ID == id {
			return s.Snapshot(), true
		}
	}
	return nil, false
}

// ListSessions returns snapshots of every session started this process,
// newest last.
func (c *Coordinator) ListSessions() []*domain.AttackSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.AttackSession, len(c.sessions))
	for i, s := range c.sessions {
		out[i] = s.Snapshot()
	}
	return out
}

// StopAttack cancels the running attempt and waits for its cleanup to
// finish.
func (c *Coordinator) StopAttack(id string) error {
	c.mu.Lock()
	if c.active == nil || c.active.ID != id {
		c.mu.Unlock()
		return fmt.Errorf("no running attack with ID %s", id)
	}
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	<-done
	return nil
}

// StopAll cancels any running attempt and waits for it.
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
