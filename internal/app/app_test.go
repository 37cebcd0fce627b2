package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcr-sec/dualstrike/internal/config"
	"github.com/lcr-sec/dualstrike/internal/core/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		AttackTimeout:      time.Minute,
		DeauthInterval:     10 * time.Second,
		DeauthFrames:       64,
		UseModernCapture:   true,
		MinimumHcxVersion:  "6.0.0",
		CaptureGracePeriod: time.Minute,
		GatewayIP:          "192.168.100.1",
		DHCPStart:          "192.168.100.10",
		DHCPEnd:            "192.168.100.100",
		PortalPort:         8085,
		DBPath:             filepath.Join(dir, "dualstrike.db"),
		HandshakeDir:       filepath.Join(dir, "hs"),
		ReportDir:          filepath.Join(dir, "reports"),
		Addr:               "127.0.0.1:0",
	}
}

func TestNewWiresComponents(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(cfg)
	require.NoError(t, err)
	defer app.Store.Close()

	assert.NotNil(t, app.Coordinator)
	assert.NotNil(t, app.WebServer)
	assert.NotNil(t, app.Store)
	assert.NotNil(t, app.Console)
	assert.DirExists(t, cfg.HandshakeDir)
	assert.DirExists(t, cfg.ReportDir)
}

type cannedProber struct {
	capabilities []domain.InterfaceCapability
}

func (p cannedProber) Probe(ctx context.Context) ([]domain.InterfaceCapability, error) {
	return p.capabilities, nil
}

func TestFilteringProberAllowList(t *testing.T) {
	inner := cannedProber{capabilities: []domain.InterfaceCapability{
		{Name: "wlan0"}, {Name: "wlan1"}, {Name: "wlan2"},
	}}
	p := &filteringProber{inner: inner, cfg: &config.Config{
		Interfaces: []string{"wlan1", "wlan2"},
	}}

	got, err := p.Probe(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "wlan1", got[0].Name)
	assert.Equal(t, "wlan2", got[1].Name)
}

func TestFilteringProberPinnedPair(t *testing.T) {
	inner := cannedProber{capabilities: []domain.InterfaceCapability{
		{Name: "wlan0"}, {Name: "wlan1"}, {Name: "wlan2"},
	}}
	p := &filteringProber{inner: inner, cfg: &config.Config{
		PrimaryInterface:   "wlan2",
		SecondaryInterface: "wlan0",
	}}

	got, err := p.Probe(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestFilteringProberForcedSingle(t *testing.T) {
	off := false
	inner := cannedProber{capabilities: []domain.InterfaceCapability{
		{Name: "wlan0"}, {Name: "wlan1"},
	}}
	p := &filteringProber{inner: inner, cfg: &config.Config{
		PrimaryInterface: "wlan1",
		DualInterface:    &off,
	}}

	got, err := p.Probe(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "wlan1", got[0].Name)
}

func TestFilteringProberNoMatch(t *testing.T) {
	inner := cannedProber{capabilities: []domain.InterfaceCapability{
		{Name: "wlan0"},
	}}
	p := &filteringProber{inner: inner, cfg: &config.Config{
		Interfaces: []string{"wlan9"},
	}}

	_, err := p.Probe(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoCapableInterfaces)
}
