package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DeauthBursts counts deauth bursts sent, per interface.
	DeauthBursts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dualstrike",
			Name:      "deauth_bursts_total",
			Help:      "Total number of deauthentication bursts sent",
		},
		[]string{"interface"},
	)

	// DeauthErrors counts failed deauth bursts, per interface.
	DeauthErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dualstrike",
			Name:      "deauth_errors_total",
			Help:      "Total number of failed deauthentication bursts",
		},
		[]string{"interface"},
	)

	// HandshakesCaptured counts complete handshakes captured, per backend.
	HandshakesCaptured = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dualstrike",
			Name:      "handshakes_captured_total",
			Help:      "Total number of complete handshakes captured",
		},
		[]string{"backend"},
	)

	// BackendFallbacks counts modern-to-legacy capture fallbacks with the
	// reason they occurred.
	BackendFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dualstrike",
			Name:      "capture_backend_fallbacks_total",
			Help:      "Total number of capture backend fallbacks",
		},
		[]string{"reason"},
	)

	// CredentialsCaptured counts credentials harvested by the rogue AP.
	CredentialsCaptured = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dualstrike",
			Name:      "credentials_captured_total",
			Help:      "Total number of captive portal credentials captured",
		},
	)

	// ActiveAttacks tracks currently running attack sessions.
	ActiveAttacks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dualstrike",
			Name:      "active_attacks",
			Help:      "Number of attack sessions currently running",
		},
	)

	registerOnce sync.Once
)

// InitMetrics registers all collectors exactly once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			DeauthBursts,
			DeauthErrors,
			HandshakesCaptured,
			BackendFallbacks,
			CredentialsCaptured,
			ActiveAttacks,
		)
	})
}
