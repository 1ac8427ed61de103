package consent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	consentsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obconnect_consents_created_total",
		Help: "Consents created, by bank profile",
	}, []string{"profile"})

	consentTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "obconnect_consent_transitions_total",
		Help: "Consent state transitions applied",
	}, []string{"from", "to"})
)
