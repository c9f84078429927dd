package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	retrievalLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ragpipe_retrieval_latency_ms",
		Help:    "Latency of vector index queries in milliseconds",
		Buckets: []float64{10, 25, 50, 75, 100, 150, 200, 300, 500, 800, 1200},
	}, []string{"backend"})

	retrievalResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ragpipe_retrieval_results",
		Help:    "Number of candidates returned by a vector index query",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	}, []string{"backend"})

	cacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ragpipe_cache_total",
		Help: "Response and embedding cache lookups by result",
	}, []string{"cache", "result"})

	degradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ragpipe_degraded_answers_total",
		Help: "Degraded answers by reason",
	}, []string{"reason"})

	promptTokens = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ragpipe_prompt_tokens",
		Help:    "Estimated prompt token count submitted to the rate limiter",
		Buckets: []float64{250, 500, 1000, 2000, 4000, 8000, 12000, 16000, 20000, 24000},
	})

	rateLimitWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ragpipe_rate_limit_wait_ms",
		Help:    "Time spent waiting for rate-limiter capacity in milliseconds",
		Buckets: []float64{0, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})

	escalationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ragpipe_agent_escalations_total",
		Help: "Multi-agent decomposition escalations by outcome",
	}, []string{"outcome"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(
			retrievalLatency, retrievalResults, cacheTotal,
			degradedTotal, promptTokens, rateLimitWait, escalationTotal,
		)
	})
}

// ObserveRetrieval records latency and result size for a vector index query.
func ObserveRetrieval(backend string, start time.Time, results int) {
	ensureRegistered()
	retrievalLatency.WithLabelValues(backend).Observe(float64(time.Since(start).Milliseconds()))
	retrievalResults.WithLabelValues(backend).Observe(float64(results))
}

// IncCache counts a cache lookup. cache is "response" or "embedding";
// result is "hit" or "miss".
func IncCache(cache, result string) {
	ensureRegistered()
	cacheTotal.WithLabelValues(cache, result).Inc()
}

// IncDegraded counts a degraded answer by reason.
func IncDegraded(reason string) {
	ensureRegistered()
	degradedTotal.WithLabelValues(reason).Inc()
}

// ObservePromptTokens records the estimated prompt size of a generation.
func ObservePromptTokens(tokens int) {
	ensureRegistered()
	promptTokens.Observe(float64(tokens))
}

// ObserveRateLimitWait records time spent acquiring rate-limiter capacity.
func ObserveRateLimitWait(start time.Time) {
	ensureRegistered()
	rateLimitWait.Observe(float64(time.Since(start).Milliseconds()))
}

// IncEscalation counts a decomposition escalation outcome
// ("success", "failure", "fallback").
func IncEscalation(outcome string) {
	ensureRegistered()
	escalationTotal.WithLabelValues(outcome).Inc()
}
