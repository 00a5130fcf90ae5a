package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    providerReqs = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "surveyai",
            Name:      "provider_requests_total",
            Help:      "Total provider requests by provider, model and result",
        },
        []string{"provider", "model", "result"},
    )

    providerLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "surveyai",
            Name:      "provider_request_duration_seconds",
            Help:      "Duration of provider requests by provider and model",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"provider", "model"},
    )

    batchesProcessed = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "surveyai",
            Name:      "batches_processed_total",
            Help:      "Total summarization batches processed by result (success, error)",
        },
        []string{"result"},
    )

    jobsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "surveyai",
            Name:      "jobs_total",
            Help:      "Jobs reaching a terminal status, by kind and status",
        },
        []string{"kind", "status"},
    )

    breakerEvents = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "surveyai",
            Name:      "breaker_events_total",
            Help:      "Circuit breaker events by provider, model and action",
        },
        []string{"provider", "model", "action"},
    )

    queueDepth = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "surveyai",
            Name:      "queue_depth",
            Help:      "Pending submissions in the analysis stream",
        },
    )

    progressSubscribers = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "surveyai",
            Name:      "progress_subscribers",
            Help:      "Currently connected progress subscribers",
        },
    )

    contentRefusals = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "surveyai",
            Name:      "content_refusals_total",
            Help:      "Completions refused by the provider, by provider and model",
        },
        []string{"provider", "model"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(providerReqs, providerLatency, batchesProcessed, jobsTotal, breakerEvents, queueDepth, progressSubscribers, contentRefusals)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveProvider(provider, model, result string, dur time.Duration) {
    providerReqs.WithLabelValues(provider, model, result).Inc()
    providerLatency.WithLabelValues(provider, model).Observe(dur.Seconds())
}

func IncBatch(result string) { batchesProcessed.WithLabelValues(result).Inc() }

func IncJob(kind, status string) { jobsTotal.WithLabelValues(kind, status).Inc() }

func BreakerOpened(provider, model string) { breakerEvents.WithLabelValues(provider, model, "opened").Inc() }
func BreakerClosed(provider, model string) { breakerEvents.WithLabelValues(provider, model, "closed").Inc() }

func SetQueueDepth(v int64) { queueDepth.Set(float64(v)) }

func AddSubscribers(delta int) { progressSubscribers.Add(float64(delta)) }

// IncRefusal tracks content refusal events by provider and model
func IncRefusal(provider, model string) {
    contentRefusals.WithLabelValues(provider, model).Inc()
}
