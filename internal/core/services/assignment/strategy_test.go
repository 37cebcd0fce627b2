package assignment

import (
	"testing"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iface(name, driver string, ap, monitor, injection, up bool) domain.InterfaceCapability {
	return domain.InterfaceCapability{
		Name:                name,
		Phy:                 "phy-" + name,
		Driver:              driver,
		Chipset:             "Test Chipset",
		MAC:                 "aa:bb:cc:dd:ee:ff",
		SupportsAPMode:      ap,
		SupportsMonitorMode: monitor,
		SupportsInjection:   injection,
		CurrentMode:         domain.ModeManaged,
		IsUp:                up,
	}
}

func TestAssign_RogueAP_DualAssignment(t *testing.T) {
	// wlan0 is AP-capable and up; wlan1 is monitor-only and down. The AP
	// pool contains only wlan0, so wlan0 must become primary despite wlan1's
	// "down" bonus.
	wlan0 := iface("wlan0", "ath9k", true, false, true, true)
	wlan1 := iface("wlan1", "ath9k", false, true, true, false)

	s := NewStrategy()
	a, err := s.Assign(domain.AttackRogueAP, []domain.InterfaceCapability{wlan0, wlan1})
	require.NoError(t, err)

	assert.True(t, a.IsDual())
	assert.Equal(t, "wlan0", a.Primary)
	assert.Equal(t, RoleRogueAP, a.PrimaryRole)
	assert.Equal(t, "wlan1", a.Secondary)
	assert.Equal(t, RoleDeauth, a.SecondaryRole)
}

func TestAssign_Handshake_DualAssignment(t *testing.T) {
	capture := iface("wlan0", "ath9k", false, true, true, false)
	deauth := iface("wlan1", "rt2800usb", false, true, true, true)

	s := NewStrategy()
	a, err := s.Assign(domain.AttackHandshake, []domain.InterfaceCapability{capture, deauth})
	require.NoError(t, err)

	assert.True(t, a.IsDual())
	assert.Equal(t, "wlan0", a.Primary, "down interface should win the capture role")
	assert.Equal(t, "wlan1", a.Secondary)
}

func TestAssign_SingleInterfaceFallback(t *testing.T) {
	tests := []struct {
		name     string
		kind     domain.AttackKind
		ifaces   []domain.InterfaceCapability
		wantRole string
	}{
		{
			name:     "handshake with one interface",
			kind:     domain.AttackHandshake,
			ifaces:   []domain.InterfaceCapability{iface("wlan0", "ath9k", false, true, true, true)},
			wantRole: RoleCaptureCombined,
		},
		{
			name: "rogue-ap with one interface",
			kind: domain.AttackRogueAP,
			ifaces: []domain.InterfaceCapability{
				iface("wlan0", "ath9k", true, true, true, true),
			},
			wantRole: RoleRogueAPCombined,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStrategy()
			a, err := s.Assign(tt.kind, tt.ifaces)
			require.NoError(t, err)
			assert.False(t, a.IsDual())
			assert.Equal(t, "wlan0", a.Primary)
			assert.Equal(t, tt.wantRole, a.PrimaryRole)
		})
	}
}

func TestAssign_NoCapableInterfaces(t *testing.T) {
	s := NewStrategy()

	_, err := s.Assign(domain.AttackHandshake, nil)
	assert.ErrorIs(t, err, domain.ErrNoCapableInterfaces)

	// An interface with no monitor support cannot fill the capture role.
	managed := iface("eth0", "e1000e", false, false, false, true)
	_, err = s.Assign(domain.AttackHandshake, []domain.InterfaceCapability{managed})
	assert.ErrorIs(t, err, domain.ErrCapabilityMissing)

	// Monitor-only interfaces cannot fill the rogue-AP role.
	monitor := iface("wlan0", "ath9k", false, true, true, true)
	_, err = s.Assign(domain.AttackRogueAP, []domain.InterfaceCapability{monitor})
	assert.ErrorIs(t, err, domain.ErrCapabilityMissing)
}

func TestAssign_ValidationFailureYieldsSingle(t *testing.T) {
	s := NewStrategy()
	s.problematicCombinations = [][2]string{{"ath9k", "brcmfmac"}}

	primary := iface("wlan0", "ath9k", false, true, true, false)
	secondary := iface("wlan1", "brcmfmac", false, true, true, true)

	a, err := s.Assign(domain.AttackHandshake, []domain.InterfaceCapability{primary, secondary})
	require.NoError(t, err, "validation failure must degrade, not fail")
	assert.False(t, a.IsDual())
	assert.Equal(t, "wlan0", a.Primary)
	assert.Equal(t, RoleCaptureCombined, a.PrimaryRole)
}

func TestAssign_Deterministic(t *testing.T) {
	ifaces := []domain.InterfaceCapability{
		iface("wlan0", "rt2800usb", false, true, true, true),
		iface("wlan1", "ath9k", false, true, true, true),
		iface("wlan2", "rtl8812au", false, true, true, false),
	}

	s := NewStrategy()
	first, err := s.Assign(domain.AttackHandshake, ifaces)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := s.Assign(domain.AttackHandshake, ifaces)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScoring_DownOutranksUp(t *testing.T) {
	up := iface("wlan0", "ath9k", false, true, true, true)
	down := iface("wlan1", "ath9k", false, true, true, false)

	upScore, _ := scoreInterface(up, NewStrategy().preferredMonitorDrivers)
	downScore, _ := scoreInterface(down, NewStrategy().preferredMonitorDrivers)
	assert.Greater(t, downScore, upScore)

	s := NewStrategy()
	a, err := s.Assign(domain.AttackHandshake, []domain.InterfaceCapability{up, down})
	require.NoError(t, err)
	assert.Equal(t, "wlan1", a.Primary)
}

func TestScoring_DriverPreferenceOrder(t *testing.T) {
	s := NewStrategy()

	early := iface("wlan0", "ath9k", false, true, false, true)
	late := iface("wlan1", "rtl8812au", false, true, false, true)
	unknown := iface("wlan2", "mt76x2u", false, true, false, true)

	earlyScore, _ := scoreInterface(early, s.preferredMonitorDrivers)
	lateScore, _ := scoreInterface(late, s.preferredMonitorDrivers)
	unknownScore, _ := scoreInterface(unknown, s.preferredMonitorDrivers)

	assert.Greater(t, earlyScore, lateScore)
	assert.Greater(t, lateScore, unknownScore)
}

func TestScoring_TieBreaksByInputOrder(t *testing.T) {
	a := iface("wlan0", "ath9k", false, true, true, true)
	b := iface("wlan1", "ath9k", false, true, true, true)

	s := NewStrategy()
	got, err := s.Assign(domain.AttackHandshake, []domain.InterfaceCapability{a, b})
	require.NoError(t, err)
	assert.Equal(t, "wlan0", got.Primary, "first candidate of the maximum score wins")
}

func TestValidatePair(t *testing.T) {
	s := NewStrategy()

	ap := iface("wlan0", "ath9k", true, false, true, true)
	mon := iface("wlan1", "ath9k", false, true, true, true)

	ok, reason := s.ValidatePair(ap, mon)
	assert.True(t, ok)
	assert.Empty(t, reason)

	// Identical names are rejected.
	ok, reason = s.ValidatePair(ap, ap)
	assert.False(t, ok)
	assert.Contains(t, reason, "same")

	// Secondary without monitor support is rejected.
	noMon := iface("wlan2", "ath9k", true, false, true, true)
	ok, reason = s.ValidatePair(ap, noMon)
	assert.False(t, ok)
	assert.Contains(t, reason, "monitor mode")

	// Primary with neither AP nor monitor support is rejected.
	dud := iface("wlan3", "ath9k", false, false, true, true)
	ok, _ = s.ValidatePair(dud, mon)
	assert.False(t, ok)

	// Same phy is allowed (warn only).
	virtA := iface("wlan4", "ath9k", true, true, true, true)
	virtB := iface("wlan5", "ath9k", false, true, true, true)
	virtB.Phy = virtA.Phy
	ok, _ = s.ValidatePair(virtA, virtB)
	assert.True(t, ok)
}
