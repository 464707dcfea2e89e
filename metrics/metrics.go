// Package metrics exposes Prometheus counters for the authentication core.
// Labels carry outcome codes only, never identities or secret material.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Verifications counts signature-verification outcomes, labeled by
	// error code ("ok" on success).
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_auth_verifications_total",
		Help: "Signed payload verification attempts by outcome.",
	}, []string{"outcome"})

	// Rotations counts key-rotation outcomes.
	Rotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_key_rotations_total",
		Help: "Key rotation attempts by outcome.",
	}, []string{"outcome"})

	// WebhookDeliveries counts inbound webhook deliveries by disposition.
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_webhook_deliveries_total",
		Help: "Inbound webhook deliveries by disposition.",
	}, []string{"outcome"})
)
