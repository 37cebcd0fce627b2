package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidMAC(t *testing.T) {
	tests := []struct {
		mac  string
		want bool
	}{
		{"AA:BB:CC:DD:EE:FF", true},
		{"aa:bb:cc:dd:ee:ff", true},
		{"AA-BB-CC-DD-EE-FF", true},
		{"AA:BB:CC:DD:EE", false},
		{"AA:BB:CC:DD:EE:GG", false},
		{"", false},
		{"not a mac", false},
	}
	for _, tt := range tests {
		t.Run(tt.mac, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidMAC(tt.mac))
		})
	}
}

func TestIsValidChannel(t *testing.T) {
	assert.True(t, IsValidChannel(1))
	assert.True(t, IsValidChannel(11))
	assert.True(t, IsValidChannel(165))
	assert.False(t, IsValidChannel(0))
	assert.False(t, IsValidChannel(-3))
	assert.False(t, IsValidChannel(166))
}

func TestIsValidInterface(t *testing.T) {
	assert.True(t, IsValidInterface("wlan0"))
	assert.True(t, IsValidInterface("wlp2s0mon"))
	assert.False(t, IsValidInterface(""))
	assert.False(t, IsValidInterface("wlan0; rm -rf /"))
	assert.False(t, IsValidInterface("anamethatislongerthanifnamsiz"))
}

func TestCapabilityHelpers(t *testing.T) {
	full := InterfaceCapability{
		SupportsAPMode:      true,
		SupportsMonitorMode: true,
		SupportsInjection:   true,
	}
	assert.True(t, full.CanBeAP())
	assert.True(t, full.CanBeMonitor())
	assert.True(t, full.SuitableForCapture())
	assert.True(t, full.SuitableForDeauth())

	listenOnly := InterfaceCapability{SupportsMonitorMode: true}
	assert.True(t, listenOnly.SuitableForCapture())
	assert.False(t, listenOnly.SuitableForDeauth())
	assert.False(t, listenOnly.CanBeAP())

	assert.Equal(t, "Limited capabilities", InterfaceCapability{}.CapabilitySummary())
	assert.Equal(t, "Monitor, AP, Injection", full.CapabilitySummary())
}

func TestRoleAssignmentInterfaces(t *testing.T) {
	dual := RoleAssignment{
		Kind:          AttackHandshake,
		Primary:       "wlan0",
		PrimaryRole:   "Capture",
		Secondary:     "wlan1",
		SecondaryRole: "Deauth",
	}
	assert.True(t, dual.IsDual())
	assert.Equal(t, []string{"wlan0", "wlan1"}, dual.Interfaces())
	assert.Equal(t, []string{"wlan1"}, dual.DeauthInterfaces())
	assert.Equal(t, "wlan0 (Capture) + wlan1 (Deauth)", dual.Summary())

	single := RoleAssignment{
		Kind:        AttackHandshake,
		Primary:     "wlan0",
		PrimaryRole: "Capture + Deauth",
	}
	assert.False(t, single.IsDual())
	assert.Equal(t, []string{"wlan0"}, single.Interfaces())
	assert.Equal(t, []string{"wlan0"}, single.DeauthInterfaces())
}

func TestNewAttackSessionValidation(t *testing.T) {
	assignment := RoleAssignment{Primary: "wlan0", PrimaryRole: "Capture + Deauth"}

	_, err := NewAttackSession("s1", AttackHandshake, "garbage", "net", 6, assignment)
	assert.Error(t, err)

	_, err = NewAttackSession("s1", AttackHandshake, "AA:BB:CC:DD:EE:FF", "net", 0, assignment)
	assert.Error(t, err)

	s, err := NewAttackSession("s1", AttackHandshake, "AA:BB:CC:DD:EE:FF", "net", 6, assignment)
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, s.Outcome)
	assert.False(t, s.IsFinished())
}

func TestSessionLifecycle(t *testing.T) {
	s, err := NewAttackSession("s1", AttackHandshake, "AA:BB:CC:DD:EE:FF", "net", 6,
		RoleAssignment{Primary: "wlan0", PrimaryRole: "Capture + Deauth"})
	require.NoError(t, err)

	s.Start()
	assert.Equal(t, OutcomeRunning, s.Outcome)
	assert.False(t, s.IsFinished())

	s.Finish(OutcomeHandshakeCaptured)
	assert.True(t, s.IsFinished())
	require.NotNil(t, s.EndTime)

	// Terminal outcomes stick; later cleanup calls are no-ops.
	s.Finish(OutcomeStopped)
	assert.Equal(t, OutcomeHandshakeCaptured, s.Outcome)
	s.Fail("late failure")
	assert.Equal(t, OutcomeHandshakeCaptured, s.Outcome)
	assert.Empty(t, s.ErrorMessage)
}

func TestSessionSnapshotDetached(t *testing.T) {
	s, err := NewAttackSession("s1", AttackHandshake, "AA:BB:CC:DD:EE:FF", "net", 6,
		RoleAssignment{Primary: "wlan0", PrimaryRole: "Capture + Deauth"})
	require.NoError(t, err)

	s.Start()
	s.SetBackend(BackendModern)
	s.ObserveClient("11:22:33:44:55:66")
	s.AddDeauthBursts(2)
	s.RecordIncompleteHandshake()

	snap := s.Snapshot()
	require.NotSame(t, s, snap)
	assert.Equal(t, BackendModern, snap.Backend)
	assert.Equal(t, []string{"11:22:33:44:55:66"}, snap.Clients)
	assert.Equal(t, 2, snap.DeauthBursts)
	assert.Equal(t, 1, snap.IncompleteHandshakes)

	// Later mutations of the live session never bleed into the copy.
	s.ObserveClient("aa:bb:cc:dd:ee:00")
	s.SetBackend(BackendLegacy)
	s.Finish(OutcomeHandshakeCaptured)
	assert.Equal(t, []string{"11:22:33:44:55:66"}, snap.Clients)
	assert.Equal(t, BackendModern, snap.Backend)
	assert.Equal(t, OutcomeRunning, snap.Outcome)
	assert.Nil(t, snap.EndTime)
}

func TestSessionFail(t *testing.T) {
	s, err := NewAttackSession("s1", AttackRogueAP, "AA:BB:CC:DD:EE:FF", "net", 6,
		RoleAssignment{Primary: "wlan0", PrimaryRole: "Rogue AP"})
	require.NoError(t, err)

	s.Start()
	s.Fail("hostapd exited")

	assert.Equal(t, OutcomeFailed, s.Outcome)
	assert.Equal(t, "hostapd exited", s.ErrorMessage)
	assert.True(t, s.IsFinished())
}
