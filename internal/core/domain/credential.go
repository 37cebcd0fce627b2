package domain

import (
	"time"
)

// CapturedHandshake records a handshake capture written by a backend.
type CapturedHandshake struct {
	ID         string      `json:"id"`
	BSSID      string      `json:"bssid"`
	ESSID      string      `json:"essid"`
	FilePath   string      `json:"file_path"`
	Backend    BackendKind `json:"backend"`
	CapturedAt time.Time   `json:"captured_at"`
}

// CapturedCredential records a passphrase submitted to the captive portal
// during a rogue-AP attack.
type CapturedCredential struct {
	ID         string    `json:"id"`
	BSSID      string    `json:"bssid"`
	ESSID      string    `json:"essid"`
	Passphrase string    `json:"passphrase"`
	ClientIP   string    `json:"client_ip,omitempty"`
	Validated  bool      `json:"validated"`
	CapturedAt time.Time `json:"captured_at"`
}
