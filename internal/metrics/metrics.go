// Package metrics exposes Prometheus counters for security-relevant
// events. Reuse detection and counter regression indicate likely
// compromise rather than ordinary user error, so they get their own
// series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshReuseDetected counts presentations of already-rotated or
	// revoked refresh tokens.
	RefreshReuseDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_refresh_reuse_detected_total",
		Help: "Refresh token reuse detections (cascade revocations).",
	})

	// CounterRegression counts WebAuthn authentications aborted because
	// the signature counter did not advance.
	CounterRegression = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_webauthn_counter_regression_total",
		Help: "WebAuthn signature counter regressions (candidate cloned authenticators).",
	})

	// LoginAttempts counts primary authentication attempts by outcome.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_login_attempts_total",
		Help: "Primary authentication attempts by outcome.",
	}, []string{"outcome"})

	// TokenRotations counts successful refresh token rotations.
	TokenRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_token_rotations_total",
		Help: "Successful refresh token rotations.",
	})
)
