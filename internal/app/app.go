// Package app bootstraps the engine: storage, adapters, attack services and
// the API server, wired together from one Config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lcr-sec/dualstrike/internal/adapters/capture"
	"github.com/lcr-sec/dualstrike/internal/adapters/driver"
	"github.com/lcr-sec/dualstrike/internal/adapters/injection"
	"github.com/lcr-sec/dualstrike/internal/adapters/probe"
	"github.com/lcr-sec/dualstrike/internal/adapters/reporting"
	"github.com/lcr-sec/dualstrike/internal/adapters/services"
	"github.com/lcr-sec/dualstrike/internal/adapters/storage"
	"github.com/lcr-sec/dualstrike/internal/adapters/web"
	"github.com/lcr-sec/dualstrike/internal/config"
	"github.com/lcr-sec/dualstrike/internal/core/domain"
	"github.com/lcr-sec/dualstrike/internal/core/ports"
	"github.com/lcr-sec/dualstrike/internal/core/services/assignment"
	"github.com/lcr-sec/dualstrike/internal/core/services/backend"
	"github.com/lcr-sec/dualstrike/internal/core/services/channelsync"
	"github.com/lcr-sec/dualstrike/internal/core/services/coordinator"
	"github.com/lcr-sec/dualstrike/internal/core/services/credential"
	"github.com/lcr-sec/dualstrike/internal/core/services/deauth"
	"github.com/lcr-sec/dualstrike/internal/core/services/handshake"
	"github.com/lcr-sec/dualstrike/internal/core/services/rogueap"
	"github.com/lcr-sec/dualstrike/internal/telemetry"
	"github.com/lcr-sec/dualstrike/internal/ui"
)

// Per-unit deauth injection deadline. Bursts that take longer than this are
// aborted so one stuck interface cannot stall the attack loop.
const injectTimeout = 5 * time.Second

// Application holds the wired components. It acts as the facade for the
// whole engine: the command binary builds one and calls Run.
type Application struct {
	Config      *config.Config
	Store       *storage.SQLiteAdapter
	Coordinator *coordinator.Coordinator
	WebServer   *web.Server
	Console     *ui.Console

	injector interface{ Close() }
}

// New builds the full component graph. Nothing touches the network or the
// wireless interfaces yet; that happens when attacks start.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config:  cfg,
		Console: ui.NewConsole(),
	}
	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

func (app *Application) bootstrap() error {
	telemetry.InitMetrics()
	cfg := app.Config

	store, err := app.initStorage()
	if err != nil {
		return err
	}
	app.Store = store

	configurator := driver.NewConfigurator()

	prober := app.initProber()

	scheduler := deauth.NewScheduler(app.initInjector(), cfg.DeauthFrames, injectTimeout, cfg.NoDeauth)
	scheduler.SetLogger(app.Console.Log)

	channels := channelsync.New(configurator)
	channels.SetLogger(app.Console.Log)

	handshakeCtrl := handshake.NewController(
		handshake.Config{
			AttackTimeout:  cfg.AttackTimeout,
			DeauthInterval: cfg.DeauthInterval,
			GracePeriod:    cfg.CaptureGracePeriod,
		},
		configurator,
		backend.NewSelector(capture.NewToolInfo(cfg.HcxDumpToolPath), cfg.UseModernCapture, cfg.MinimumHcxVersion),
		capture.NewHcxDumpTool(cfg.HcxDumpToolPath, cfg.HandshakeDir),
		capture.NewAirodump(cfg.AirodumpPath, cfg.HandshakeDir),
		channels,
		scheduler,
		store,
	)
	handshakeCtrl.SetLogger(app.Console.Log)

	rogueCtrl, err := app.initRogueAP(configurator, scheduler)
	if err != nil {
		return err
	}

	strategy := assignment.NewStrategy()
	strategy.SetLogger(app.Console.Log)

	co := coordinator.NewCoordinator(prober, strategy, store)
	co.SetHandshakeController(handshakeCtrl)
	co.SetRogueAPController(rogueCtrl)
	co.SetLogger(app.Console.Log)
	app.Coordinator = co

	server := web.NewServer(cfg.Addr, co, prober, store)
	server.SetReporter(reporting.NewPDFReporter(store))
	server.SetReportDir(cfg.ReportDir)
	app.WebServer = server

	return nil
}

func (app *Application) initStorage() (*storage.SQLiteAdapter, error) {
	for _, dir := range []string{filepath.Dir(app.Config.DBPath), app.Config.HandshakeDir, app.Config.ReportDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	store, err := storage.NewSQLiteAdapter(app.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	return store, nil
}

func (app *Application) initProber() ports.CapabilityProber {
	prober := probe.NewProber()
	prober.SetLogger(app.Console.Log)

	if len(app.Config.Interfaces) == 0 &&
		app.Config.PrimaryInterface == "" && app.Config.DualInterface == nil {
		return prober
	}
	return &filteringProber{inner: prober, cfg: app.Config}
}

func (app *Application) initInjector() ports.DeauthInjector {
	if app.Config.UseAireplay {
		return injection.NewAireplay(app.Config.AireplayPath)
	}
	native := injection.NewNativeInjector()
	app.injector = native
	return native
}

func (app *Application) initRogueAP(configurator ports.InterfaceConfigurator, scheduler *deauth.Scheduler) (*rogueap.Controller, error) {
	cfg := app.Config
	confDir := filepath.Join(filepath.Dir(cfg.DBPath), "conf")

	// Target interface, ESSID and channel are injected per attack through
	// the controller's TargetAware hook.
	hostapd := services.NewHostapd(cfg.HostapdPath, confDir, "", "", 1)
	dnsmasq := services.NewDnsmasq(cfg.DnsmasqPath, confDir, "", cfg.GatewayIP, cfg.DHCPStart, cfg.DHCPEnd)
	portal := services.NewPortal(fmt.Sprintf("%s:%d", cfg.GatewayIP, cfg.PortalPort), "")

	ctrl := rogueap.NewController(
		rogueap.Config{
			AttackTimeout:  cfg.AttackTimeout,
			DeauthInterval: cfg.DeauthInterval,
		},
		configurator,
		scheduler,
		hostapd, dnsmasq, portal,
		portal,
		credential.NewValidator(),
	)
	ctrl.SetLogger(app.Console.Log)
	return ctrl, nil
}

// Run starts the API server and blocks until ctx is cancelled, then tears
// everything down in reverse order.
func (app *Application) Run(ctx context.Context) error {
	if err := driver.KillConflictingProcesses(ctx); err != nil {
		slog.Warn("Could not stop conflicting network services", "error", err)
	}

	if err := app.WebServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	app.Console.Banner("1.0.0", app.Config.Addr)

	<-ctx.Done()
	return app.Shutdown()
}

// Shutdown stops running attacks, the API server and the store.
func (app *Application) Shutdown() error {
	app.Coordinator.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.WebServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("API server shutdown", "error", err)
	}

	if app.injector != nil {
		app.injector.Close()
	}
	if err := driver.RestoreNetworkServices(shutdownCtx); err != nil {
		slog.Warn("Could not restore network services", "error", err)
	}
	return app.Store.Close()
}

// filteringProber narrows the probe snapshot to the operator's interface
// selection. Pinning restricts the candidate set; role scoring still decides
// which pinned interface takes which role.
type filteringProber struct {
	inner ports.CapabilityProber
	cfg   *config.Config
}

func (p *filteringProber) Probe(ctx context.Context) ([]domain.InterfaceCapability, error) {
	capabilities, err := p.inner.Probe(ctx)
	if err != nil {
		return nil, err
	}

	allowed := p.allowedSet()
	if len(allowed) > 0 {
		var kept []domain.InterfaceCapability
		for _, c := range capabilities {
			if allowed[c.Name] {
				kept = append(kept, c)
			}
		}
		capabilities = kept
	}

	if p.cfg.DualInterface != nil && !*p.cfg.DualInterface && len(capabilities) > 1 {
		keep := capabilities[0]
		for _, c := range capabilities {
			if c.Name == p.cfg.PrimaryInterface {
				keep = c
				break
			}
		}
		capabilities = []domain.InterfaceCapability{keep}
	}

	if len(capabilities) == 0 {
		return nil, fmt.Errorf("%w: interface selection matched nothing", domain.ErrNoCapableInterfaces)
	}
	return capabilities, nil
}

func (p *filteringProber) allowedSet() map[string]bool {
	allowed := make(map[string]bool)
	for _, name := range p.cfg.Interfaces {
		allowed[name] = true
	}
	if p.cfg.PrimaryInterface != "" {
		allowed[p.cfg.PrimaryInterface] = true
		// A pinned primary without an interface list means "use exactly
		// the pinned pair".
		if len(p.cfg.Interfaces) == 0 {
			if p.cfg.SecondaryInterface != "" {
				allowed[p.cfg.SecondaryInterface] = true
			}
		}
	}
	return allowed
}
