// Package credential validates captive-portal passphrase submissions.
package credential

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// WPA2 constraints on pre-shared keys.
const (
	minPassphraseLen = 8
	maxPassphraseLen = 63

	pmkIterations = 4096
	pmkKeyLen     = 32
)

// DerivePMK computes the WPA2 pairwise master key for a passphrase and
// network name.
func DerivePMK(passphrase, essid string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(essid), pmkIterations, pmkKeyLen, sha1.New)
}

// Validator checks submitted passphrases. When a reference PMK is known
// (recovered from a previously captured handshake or PMKID), submissions
// are verified against it; otherwise only WPA2 syntax rules apply.
type Validator struct {
	referencePMK []byte
}

// NewValidator builds a syntax-only validator.
func NewValidator() *Validator {
	return &Validator{}
}

// NewValidatorWithPMK builds a validator that verifies submissions against
// a known PMK, given as a hex string.
func NewValidatorWithPMK(pmkHex string) (*Validator, error) {
	pmk, err := hex.DecodeString(pmkHex)
	if err != nil {
		return nil, fmt.Errorf("invalid reference PMK: %w", err)
	}
	if len(pmk) != pmkKeyLen {
		return nil, fmt.Errorf("reference PMK must be %d bytes, got %d", pmkKeyLen, len(pmk))
	}
	return &Validator{referencePMK: pmk}, nil
}

// Validate reports whether the passphrase is plausible for the network.
// The bssid parameter is accepted for interface compatibility; PMK
// derivation only involves the ESSID.
func (v *Validator) Validate(essid, bssid, passphrase string) (bool, error) {
	if len(passphrase) < minPassphraseLen || len(passphrase) > maxPassphraseLen {
		return false, nil
	}
	for i := 0; i < len(passphrase); i++ {
		if passphrase[i] < 0x20 || passphrase[i] > 0x7e {
			return false, nil
		}
	}

	if v.referencePMK == nil {
		return true, nil
	}
	if essid == "" {
		return false, fmt.Errorf("cannot derive PMK without an ESSID")
	}

	derived := DerivePMK(passphrase, essid)
	return subtle.ConstantTimeCompare(derived, v.referencePMK) == 1, nil
}
