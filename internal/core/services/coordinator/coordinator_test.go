package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
	"github.com/lcr-sec/dualstrike/internal/core/services/assignment"
	"github.com/lcr-sec/dualstrike/internal/core/services/backend"
	"github.com/lcr-sec/dualstrike/internal/core/services/channelsync"
	"github.com/lcr-sec/dualstrike/internal/core/services/deauth"
	"github.com/lcr-sec/dualstrike/internal/core/services/handshake"
)

type fakeProber struct {
	mu           sync.Mutex
	capabilities []domain.InterfaceCapability
	err          error
	calls        int
}

func (f *fakeProber) Probe(ctx context.Context) ([]domain.InterfaceCapability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.capabilities, f.err
}

type memoryStore struct {
	mu          sync.Mutex
	sessions    []domain.AttackSession
	handshakes  map[string]domain.CapturedHandshake
	credentials []domain.CapturedCredential
}

func newMemoryStore() *memoryStore {
	return &memoryStore{handshakes: map[string]domain.CapturedHandshake{}}
}

func (m *memoryStore) SaveSession(s domain.AttackSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *memoryStore) SaveHandshake(h domain.CapturedHandshake) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handshakes[h.BSSID] = h
	return nil
}

func (m *memoryStore) SaveCredential(c domain.CapturedCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials = append(m.credentials, c)
	return nil
}

func (m *memoryStore) FindHandshake(bssid string) (domain.CapturedHandshake, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handshakes[bssid]
	return h, ok, nil
}

func (m *memoryStore) ListSessions() ([]domain.AttackSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AttackSession(nil), m.sessions...), nil
}

func (m *memoryStore) ListCredentials() ([]domain.CapturedCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CapturedCredential(nil), m.credentials...), nil
}

type noopConfigurator struct{}

func (noopConfigurator) Up(ctx context.Context, iface string) error   { return nil }
func (noopConfigurator) Down(ctx context.Context, iface string) error { return nil }
func (noopConfigurator) SetMode(ctx context.Context, iface string, mode domain.OperatingMode) error {
	return nil
}
func (noopConfigurator) SetChannel(ctx context.Context, iface string, channel int) error { return nil }
func (noopConfigurator) Mode(ctx context.Context, iface string) (domain.OperatingMode, error) {
	return domain.ModeMonitor, nil
}
func (noopConfigurator) Channel(ctx context.Context, iface string) (int, error) { return 6, nil }

type scriptedBackend struct {
	mu          sync.Mutex
	kind        domain.BackendKind
	handshakeAt int
	polls       int
	stops       int
}

func (s *scriptedBackend) Kind() domain.BackendKind { return s.kind }

func (s *scriptedBackend) Start(ctx context.Context, iface string, channel int, bssid string) error {
	return nil
}

func (s *scriptedBackend) IsRunning() bool { return true }
func (s *scriptedBackend) HasData() bool   { return true }

func (s *scriptedBackend) HasHandshake(bssid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	return s.handshakeAt > 0 && s.polls >= s.handshakeAt, nil
}

func (s *scriptedBackend) Clients() []string   { return nil }
func (s *scriptedBackend) CaptureFile() string { return "/tmp/capture.pcapng" }

func (s *scriptedBackend) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

type silentInjector struct{}

func (silentInjector) Deauth(ctx context.Context, iface, bssid, client string, frames int, timeout time.Duration) error {
	return nil
}

type modernProbe struct{}

func (modernProbe) Exists() bool             { return true }
func (modernProbe) Version() (string, error) { return "6.3.0", nil }

func dualCapabilities() []domain.InterfaceCapability {
	return []domain.InterfaceCapability{
		{Name: "wlan0", Driver: "ath9k", SupportsAPMode: true, SupportsMonitorMode: true, SupportsInjection: true},
		{Name: "wlan1", Driver: "ath9k", SupportsMonitorMode: true, SupportsInjection: true},
	}
}

func newTestCoordinator(t *testing.T, prober *fakeProber, store *memoryStore, captureAt int) *Coordinator {
	t.Helper()

	cfg := handshake.Config{
		AttackTimeout:  300 * time.Millisecond,
		DeauthInterval: 50 * time.Millisecond,
		StepInterval:   5 * time.Millisecond,
		GracePeriod:    time.Second,
	}
	sel := backend.NewSelector(modernProbe{}, true, "6.0.0")
	sched := deauth.NewScheduler(silentInjector{}, 4, 100*time.Millisecond, false)
	ctrl := handshake.NewController(cfg, noopConfigurator{}, sel,
		&scriptedBackend{kind: domain.BackendModern, handshakeAt: captureAt},
		&scriptedBackend{kind: domain.BackendLegacy},
		channelsync.New(noopConfigurator{}), sched, store)
	ctrl.SetLogger(func(message, level string) {})

	strategy := assignment.NewStrategy()
	strategy.SetLogger(func(message, level string) {})

	co := NewCoordinator(prober, strategy, store)
	co.SetHandshakeController(ctrl)
	co.SetLogger(func(message, level string) {})
	return co
}

func waitFinished(t *testing.T, co *Coordinator, id string) *domain.AttackSession {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := co.GetSession(id); ok && s.IsFinished() {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session never finished")
	return nil
}

func TestStartHandshakeAttackRunsToCompletion(t *testing.T) {
	prober := &fakeProber{capabilities: dualCapabilities()}
	store := newMemoryStore()
	co := newTestCoordinator(t, prober, store, 3)

	id, err := co.StartHandshakeAttack(context.Background(), Target{
		BSSID: "AA:BB:CC:DD:EE:FF", ESSID: "corpnet", Channel: 6,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	session := waitFinished(t, co, id)
	assert.Equal(t, domain.OutcomeHandshakeCaptured, session.Outcome)
	assert.Equal(t, 1, prober.calls)

	// Outcome and handshake both persisted.
	co.StopAll()
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.sessions, 1)
	assert.Equal(t, id, store.sessions[0].ID)
	assert.Contains(t, store.handshakes, "AA:BB:CC:DD:EE:FF")
}

func TestStartRejectsConcurrentAttack(t *testing.T) {
	prober := &fakeProber{capabilities: dualCapabilities()}
	co := newTestCoordinator(t, prober, newMemoryStore(), 30)

	id, err := co.StartHandshakeAttack(context.Background(), Target{
		BSSID: "AA:BB:CC:DD:EE:FF", ESSID: "corpnet", Channel: 6,
	})
	require.NoError(t, err)

	_, err = co.StartHandshakeAttack(context.Background(), Target{
		BSSID: "AA:BB:CC:DD:EE:00", ESSID: "othernet", Channel: 11,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), id)

	co.StopAll()
}

func TestStartFailsWhenProbeFails(t *testing.T) {
	prober := &fakeProber{err: errors.New("iw not found")}
	co := newTestCoordinator(t, prober, newMemoryStore(), 1)

	_, err := co.StartHandshakeAttack(context.Background(), Target{
		BSSID: "AA:BB:CC:DD:EE:FF", Channel: 6,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probing")
}

func TestStartFailsWhenNoCapableInterfaces(t *testing.T) {
	prober := &fakeProber{capabilities: []domain.InterfaceCapability{
		{Name: "eth0"},
	}}
	co := newTestCoordinator(t, prober, newMemoryStore(), 1)

	_, err := co.StartHandshakeAttack(context.Background(), Target{
		BSSID: "AA:BB:CC:DD:EE:FF", Channel: 6,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCapabilityMissing)
}

func TestStopAttackCancelsRun(t *testing.T) {
	prober := &fakeProber{capabilities: dualCapabilities()}
	co := newTestCoordinator(t, prober, newMemoryStore(), 0) // never captures

	id, err := co.StartHandshakeAttack(context.Background(), Target{
		BSSID: "AA:BB:CC:DD:EE:FF", ESSID: "corpnet", Channel: 6,
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, co.StopAttack(id))

	session, ok := co.GetSession(id)
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeStopped, session.Outcome)

	_, active := co.ActiveSession()
	assert.False(t, active)
}

func TestSessionReadersGetSnapshots(t *testing.T) {
	prober := &fakeProber{capabilities: dualCapabilities()}
	co := newTestCoordinator(t, prober, newMemoryStore(), 0) // runs until stopped

	id, err := co.StartHandshakeAttack(context.Background(), Target{
		BSSID: "AA:BB:CC:DD:EE:FF", ESSID: "corpnet", Channel: 6,
	})
	require.NoError(t, err)

	// The controller goroutine keeps mutating the live session; readers must
	// receive detached copies, never the object being written to.
	first, ok := co.GetSession(id)
	require.True(t, ok)
	second, ok := co.GetSession(id)
	require.True(t, ok)
	assert.NotSame(t, first, second)

	active, ok := co.ActiveSession()
	require.True(t, ok)
	assert.NotSame(t, first, active)

	// Scribbling on a snapshot leaves the coordinator's view untouched.
	first.TargetESSID = "scribbled"
	third, ok := co.GetSession(id)
	require.True(t, ok)
	assert.Equal(t, "corpnet", third.TargetESSID)

	sessions := co.ListSessions()
	require.Len(t, sessions, 1)
	assert.NotSame(t, first, sessions[0])

	require.NoError(t, co.StopAttack(id))
}

func TestStopAttackUnknownID(t *testing.T) {
	co := newTestCoordinator(t, &fakeProber{}, newMemoryStore(), 1)
	assert.Error(t, co.StopAttack("nope"))
}

func TestListSessions(t *testing.T) {
	prober := &fakeProber{capabilities: dualCapabilities()}
	co := newTestCoordinator(t, prober, newMemoryStore(), 1)

	id, err := co.StartHandshakeAttack(context.Background(), Target{
		BSSID: "AA:BB:CC:DD:EE:FF", ESSID: "corpnet", Channel: 6,
	})
	require.NoError(t, err)
	waitFinished(t, co, id)

	sessions := co.ListSessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].ID)
}
