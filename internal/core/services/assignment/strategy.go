// Package assignment maps probed interface capabilities onto attack roles.
package assignment

import (
	"fmt"
	"log"
	"strings"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
)

// Role labels reused across attack kinds.
const (
	RoleRogueAP         = "Rogue AP"
	RoleDeauth          = "Deauth"
	RoleCapture         = "Handshake Capture"
	RolePIN             = "PIN Attack"
	RoleMonitoring      = "Monitoring"
	RoleRogueAPCombined = "Rogue AP + Deauth (mode switching)"
	RoleCaptureCombined = "Capture + Deauth"
)

// Strategy selects and validates interface-to-role assignments. The
// preference tables are fixed at construction; Assign is a pure function of
// its inputs and the tables, so repeated calls are deterministic.
type Strategy struct {
	preferredAPDrivers      []string
	preferredMonitorDrivers []string
	problematicCombinations [][2]string

	logger func(message, level string)
}

// NewStrategy returns a Strategy with the default driver preference tables.
func NewStrategy() *Strategy {
	return &Strategy{
		preferredAPDrivers: []string{
			"ath9k", "ath9k_htc", "ath10k",
			"rt2800usb", "rt2800pci",
			"rtl8812au", "rtl8814au", "rtl8821au",
		},
		preferredMonitorDrivers: []string{
			"ath9k", "ath9k_htc", "ath10k",
			"rt2800usb", "rt2800pci",
			"carl9170", "rtl8812au", "rtl8814au",
		},
		// Driver pairs known to misbehave when driven together.
		problematicCombinations: [][2]string{},
	}
}

// SetLogger attaches an output for assignment decisions.
func (s *Strategy) SetLogger(logger func(message, level string)) {
	s.logger = logger
}

func (s *Strategy) log(message, level string) {
	log.Printf("[ASSIGN] %s", message)
	if s.logger != nil {
		s.logger(message, level)
	}
}

// rolePool is a candidate pool plus the driver table used to score it.
type rolePool struct {
	role       string
	candidates []domain.InterfaceCapability
	drivers    []string
}

// Assign produces a RoleAssignment for the given attack kind, preferring a
// dual-interface assignment and falling back to a single interface carrying
// combined duty. It fails only when no interface can fill the primary role.
func (s *Strategy) Assign(kind domain.AttackKind, interfaces []domain.InterfaceCapability) (domain.RoleAssignment, error) {
	if len(interfaces) == 0 {
		return domain.RoleAssignment{}, fmt.Errorf("%w: no interfaces available for %s", domain.ErrNoCapableInterfaces, kind)
	}

	for _, iface := range interfaces {
		s.log(fmt.Sprintf("Considering %s: %s", iface.Name, iface.CapabilitySummary()), "info")
	}

	primary, secondary, combined, err := s.pools(kind, interfaces)
	if err != nil {
		return domain.RoleAssignment{}, err
	}

	s.log(fmt.Sprintf("Filtered: %d %s-capable, %d %s-capable",
		len(primary.candidates), strings.ToLower(primary.role),
		len(secondary.candidates), strings.ToLower(secondary.role)), "info")

	best := s.selectBest(primary.candidates, primary.drivers)

	// Dual assignment needs a secondary candidate other than the primary.
	var secondaries []domain.InterfaceCapability
	for _, iface := range secondary.candidates {
		if iface.Name != best.Name {
			secondaries = append(secondaries, iface)
		}
	}

	if len(secondaries) > 0 {
		second := s.selectBest(secondaries, secondary.drivers)
		if ok, reason := s.ValidatePair(best, second); ok {
			a := domain.RoleAssignment{
				Kind:          kind,
				Primary:       best.Name,
				PrimaryRole:   primary.role,
				Secondary:     second.Name,
				SecondaryRole: secondary.role,
			}
			s.log(fmt.Sprintf("Dual interface assignment: %s", a.Summary()), "success")
			return a, nil
		} else {
			s.log(fmt.Sprintf("Dual interface validation failed: %s", reason), "warning")
			s.log("Falling back to single interface mode", "warning")
		}
	} else {
		s.log("Insufficient interfaces for dual mode, using single interface", "info")
	}

	a := domain.RoleAssignment{
		Kind:        kind,
		Primary:     best.Name,
		PrimaryRole: combined,
	}
	s.log(fmt.Sprintf("Single interface assignment: %s", a.Summary()), "info")
	return a, nil
}

// pools filters interfaces into the primary- and secondary-role candidate
// pools appropriate to the attack kind. For handshake capture the pools may
// overlap.
func (s *Strategy) pools(kind domain.AttackKind, interfaces []domain.InterfaceCapability) (primary, secondary rolePool, combinedRole string, err error) {
	switch kind {
	case domain.AttackRogueAP:
		primary = rolePool{role: RoleRogueAP, drivers: s.preferredAPDrivers}
		secondary = rolePool{role: RoleDeauth, drivers: s.preferredMonitorDrivers}
		combinedRole = RoleRogueAPCombined
		for _, iface := range interfaces {
			if iface.CanBeAP() {
				primary.candidates = append(primary.candidates, iface)
			}
			if iface.CanBeMonitor() {
				secondary.candidates = append(secondary.candidates, iface)
			}
		}
		if len(primary.candidates) == 0 {
			return primary, secondary, "", fmt.Errorf("%w: no interface supports AP mode with injection for %s", domain.ErrCapabilityMissing, kind)
		}

	case domain.AttackHandshake:
		primary = rolePool{role: RoleCapture, drivers: s.preferredMonitorDrivers}
		secondary = rolePool{role: RoleDeauth, drivers: s.preferredMonitorDrivers}
		combinedRole = RoleCaptureCombined
		for _, iface := range interfaces {
			if iface.SuitableForCapture() {
				primary.candidates = append(primary.candidates, iface)
			}
			if iface.SuitableForDeauth() {
				secondary.candidates = append(secondary.candidates, iface)
			}
		}
		if len(primary.candidates) == 0 {
			return primary, secondary, "", fmt.Errorf("%w: no interface supports monitor mode for %s", domain.ErrCapabilityMissing, kind)
		}

	case domain.AttackPIN:
		primary = rolePool{role: RolePIN, drivers: s.preferredMonitorDrivers}
		secondary = rolePool{role: RoleMonitoring, drivers: s.preferredMonitorDrivers}
		combinedRole = RolePIN
		for _, iface := range interfaces {
			if iface.SupportsMonitorMode {
				primary.candidates = append(primary.candidates, iface)
				secondary.candidates = append(secondary.candidates, iface)
			}
		}
		if len(primary.candidates) == 0 {
			return primary, secondary, "", fmt.Errorf("%w: no interface supports monitor mode for %s", domain.ErrCapabilityMissing, kind)
		}

	default:
		return primary, secondary, "", fmt.Errorf("%w: unknown attack kind %q", domain.ErrAssignmentFailed, kind)
	}

	return primary, secondary, combinedRole, nil
}

// selectBest scores every candidate and returns the winner. Ties go to the
// earliest candidate in input order.
func (s *Strategy) selectBest(candidates []domain.InterfaceCapability, drivers []string) domain.InterfaceCapability {
	best := candidates[0]
	bestScore := -1

	for _, iface := range candidates {
		score, reasons := scoreInterface(iface, drivers)
		s.log(fmt.Sprintf("  %s: score=%d (%s)", iface.Name, score, reasons), "info")
		if score > bestScore {
			best = iface
			bestScore = score
		}
	}

	return best
}

// scoreInterface implements the fixed scoring function: down interfaces are
// cheaper to reconfigure, known-good drivers rank by table position,
// injection support and being unassociated add smaller bonuses.
func scoreInterface(iface domain.InterfaceCapability, drivers []string) (int, string) {
	score := 0
	var reasons []string

	if !iface.IsUp {
		score += 100
		reasons = append(reasons, "down")
	}
	for idx, d := range drivers {
		if iface.Driver == d {
			score += 50 - idx
			reasons = append(reasons, fmt.Sprintf("preferred driver (%s)", d))
			break
		}
	}
	if iface.SupportsInjection {
		score += 25
		reasons = append(reasons, "injection")
	}
	if !iface.IsConnected {
		score += 10
		reasons = append(reasons, "not connected")
	}

	if len(reasons) == 0 {
		return score, "default"
	}
	return score, strings.Join(reasons, ", ")
}

// ValidatePair checks whether a chosen primary/secondary pair can operate
// together. A false result carries the reason; callers fall back to
// single-interface mode rather than failing the attack.
func (s *Strategy) ValidatePair(primary, secondary domain.InterfaceCapability) (bool, string) {
	if primary.Name == secondary.Name {
		return false, fmt.Sprintf("primary and secondary interfaces are the same (%s)", primary.Name)
	}

	// Same physical device is only a warning: some chipsets expose
	// independent virtual interfaces per phy.
	if primary.Phy != "" && primary.Phy == secondary.Phy {
		s.log(fmt.Sprintf("Both interfaces on same physical device (%s), this may cause conflicts", primary.Phy), "warning")
	}

	if !primary.SupportsAPMode && !primary.SupportsMonitorMode {
		return false, fmt.Sprintf("primary interface %s lacks required capabilities", primary.Name)
	}

	if !secondary.SupportsMonitorMode {
		return false, fmt.Sprintf("secondary interface %s lacks monitor mode support", secondary.Name)
	}

	for _, combo := range s.problematicCombinations {
		if combo[0] == primary.Driver && combo[1] == secondary.Driver {
			return false, fmt.Sprintf("problematic driver combination: %s + %s", primary.Driver, secondary.Driver)
		}
	}

	return true, ""
}
