package domain

import (
	"errors"
	"fmt"
	"strings"
)

// AttackKind identifies which attack an assignment was produced for.
type AttackKind string

const (
	// AttackRogueAP runs a fraudulent access point plus deauthentication.
	AttackRogueAP AttackKind = "rogue-ap"
	// AttackHandshake captures a WPA handshake while deauthenticating.
	AttackHandshake AttackKind = "handshake"
	// AttackPIN drives a PIN-based exchange from a monitor interface.
	AttackPIN AttackKind = "pin"
)

// Error taxonomy for assignment and interface configuration. Callers match
// with errors.Is and convert into a local decision (skip interface, fall
// back to single-interface mode, abort the attempt); none of these may
// terminate the run against remaining targets.
var (
	ErrNoCapableInterfaces    = errors.New("no capable interfaces")
	ErrInterfaceNotFound      = errors.New("interface not found")
	ErrCapabilityMissing      = errors.New("interface capability missing")
	ErrAssignmentFailed       = errors.New("interface assignment failed")
	ErrConfigurationFailed    = errors.New("interface configuration failed")
	ErrInterfaceStateMismatch = errors.New("interface state mismatch")
)

// RoleAssignment maps one or two interfaces onto named roles for a single
// attack attempt. It is created by the assignment strategy, owned by the
// controller running the attack, and discarded when the attempt ends.
type RoleAssignment struct {
	Kind          AttackKind `json:"attack_kind"`
	Primary       string     `json:"primary"`
	PrimaryRole   string     `json:"primary_role"`
	Secondary     string     `json:"secondary,omitempty"`
	SecondaryRole string     `json:"secondary_role,omitempty"`
}

// IsDual reports whether two interfaces were assigned.
func (a RoleAssignment) IsDual() bool {
	return a.Secondary != ""
}

// Interfaces returns the assigned interface names, primary first.
func (a RoleAssignment) Interfaces() []string {
	if a.IsDual() {
		return []string{a.Primary, a.Secondary}
	}
	return []string{a.Primary}
}

// DeauthInterfaces returns the assigned interfaces whose role includes
// deauthentication duty. Role labels are fixed constants, so a substring
// check on "Deauth" is a convention, not free-form dispatch.
func (a RoleAssignment) DeauthInterfaces() []string {
	var out []string
	if strings.Contains(a.PrimaryRole, "Deauth") {
		out = append(out, a.Primary)
	}
	if a.Secondary != "" && strings.Contains(a.SecondaryRole, "Deauth") {
		out = append(out, a.Secondary)
	}
	return out
}

// Summary returns a human-readable description of the assignment.
func (a RoleAssignment) Summary() string {
	if a.IsDual() {
		return fmt.Sprintf("%s (%s) + %s (%s)", a.Primary, a.PrimaryRole, a.Secondary, a.SecondaryRole)
	}
	return fmt.Sprintf("%s (%s)", a.Primary, a.PrimaryRole)
}

func (a RoleAssignment) String() string {
	return fmt.Sprintf("%s: %s", a.Kind, a.Summary())
}
