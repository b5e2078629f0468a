package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DocumentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "dokstore", Name: "documents_created_total", Help: "Number of documents created (chain roots and successors)."},
	)
	Replacements = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dokstore", Name: "document_replacements_total", Help: "Number of replace attempts by outcome."},
		[]string{"result"},
	)
	PreviewsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dokstore", Name: "previews_generated_total", Help: "Number of preview generation runs by outcome."},
		[]string{"result"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dokstore", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dokstore", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(DocumentsCreated)
	reg.MustRegister(Replacements)
	reg.MustRegister(PreviewsGenerated)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
