package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheCorrupt = "corrupt"
	CacheError   = "error"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "currency_rates_cache_lookups_total",
			Help: "Bulk rate cache lookups per provider and result",
		},
		[]string{"provider", "result"},
	)

	ProviderFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "currency_provider_fetches_total",
			Help: "Upstream rate fetches per provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderFetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "currency_provider_fetch_duration_seconds",
			Help:    "Upstream rate fetch duration per provider",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "currency_conversions_total",
			Help: "Conversions per outcome",
		},
		[]string{"outcome"},
	)
)

func ObserveCacheLookup(provider, result string) {
	CacheLookupsTotal.WithLabelValues(provider, result).Inc()
}

func ObserveFetch(provider string, seconds float64, err error) {
	ProviderFetchDurationSeconds.WithLabelValues(provider).Observe(seconds)

	if err != nil {
		ProviderFetchesTotal.WithLabelValues(provider, OutcomeFailure).Inc()
		return
	}

	ProviderFetchesTotal.WithLabelValues(provider, OutcomeSuccess).Inc()
}

func ObserveConversion(err error) {
	if err != nil {
		ConversionsTotal.WithLabelValues(OutcomeFailure).Inc()
		return
	}

	ConversionsTotal.WithLabelValues(OutcomeSuccess).Inc()
}
