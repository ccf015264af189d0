package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Outcome string

const (
	Success                  Outcome       = "success"
	Error                    Outcome       = "error"
	MetricRequestTimeout     time.Duration = 5 * time.Second
	MetricRequestIdleTimeout time.Duration = 10 * time.Second
)

func (o Outcome) String() string {
	return string(o)
}

var (
	once                         sync.Once
	metricsRouter                *chi.Mux
	operationDurationHistogram   *prometheus.HistogramVec
	batchSizeHistogram           prometheus.Histogram
	batchItemFailureCounter      prometheus.Counter
	reentrancyRejectedCounter    prometheus.Counter
	eventPublishErrorCounter     *prometheus.CounterVec
	expiredCommitmentsGauge      prometheus.Gauge
	storedComplianceScoreGauge   *prometheus.GaugeVec
	dbLatency                    *prometheus.HistogramVec
	httpRequestDurationHistogram *prometheus.HistogramVec
)

// Init initializes the metrics package.
func Init(metricsPort int) {
	once.Do(func() {
		initMetricsRouter(metricsPort)
		registerMetrics()
	})
}

// initMetricsRouter initializes the metrics router.
func initMetricsRouter(metricsPort int) {
	metricsRouter = chi.NewRouter()
	metricsRouter.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	metricsAddr := fmt.Sprintf(":%d", metricsPort)
	server := &http.Server{
		Addr:         metricsAddr,
		Handler:      metricsRouter,
		ReadTimeout:  MetricRequestTimeout,
		WriteTimeout: MetricRequestTimeout,
		IdleTimeout:  MetricRequestIdleTimeout,
	}

	go func() {
		log.Info().Msgf("Starting metrics server on %s", metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msgf("Error starting metrics server on %s", metricsAddr)
		}
	}()
}

// registerMetrics initializes and registers the Prometheus metrics.
func registerMetrics() {
	defaultHistogramBucketsSeconds := []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5}

	operationDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "operation_duration_seconds",
			Help:    "Histogram of domain operation durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"component", "method", "outcome"},
	)

	batchSizeHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batch_transfer_size",
			Help:    "Histogram of batch transfer sizes.",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		},
	)

	batchItemFailureCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "batch_item_failures_total",
			Help: "Total number of per-item failures in best-effort batches.",
		},
	)

	reentrancyRejectedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reentrancy_rejected_total",
			Help: "Total number of calls rejected by the reentrancy guard.",
		},
	)

	eventPublishErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_errors_total",
			Help: "Total number of failed event publishes by topic.",
		},
		[]string{"topic"},
	)

	expiredCommitmentsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "expired_commitments",
			Help: "Number of expired commitments picked up by the last expiry checker pass.",
		},
	)

	storedComplianceScoreGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stored_compliance_score",
			Help: "Last stored compliance score per commitment.",
		},
		[]string{"commitment_id"},
	)

	dbLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_latency_seconds",
			Help:    "Histogram of database call durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"method", "status"},
	)

	httpRequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of API request durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"method", "path", "status"},
	)

	prometheus.MustRegister(
		operationDurationHistogram,
		batchSizeHistogram,
		batchItemFailureCounter,
		reentrancyRejectedCounter,
		eventPublishErrorCounter,
		expiredCommitmentsGauge,
		storedComplianceScoreGauge,
		dbLatency,
		httpRequestDurationHistogram,
	)
}

func RecordOperationDuration(component, method string, outcome Outcome, duration time.Duration) {
	if operationDurationHistogram == nil {
		return
	}
	operationDurationHistogram.WithLabelValues(component, method, outcome.String()).Observe(duration.Seconds())
}

func RecordBatchSize(size int) {
	if batchSizeHistogram == nil {
		return
	}
	batchSizeHistogram.Observe(float64(size))
}

func RecordBatchItemFailure() {
	if batchItemFailureCounter == nil {
		return
	}
	batchItemFailureCounter.Inc()
}

func RecordReentrancyRejected() {
	if reentrancyRejectedCounter == nil {
		return
	}
	reentrancyRejectedCounter.Inc()
}

func RecordEventPublishError(topic string) {
	if eventPublishErrorCounter == nil {
		return
	}
	eventPublishErrorCounter.WithLabelValues(topic).Inc()
}

func RecordExpiredCommitments(count int) {
	if expiredCommitmentsGauge == nil {
		return
	}
	expiredCommitmentsGauge.Set(float64(count))
}

func RecordStoredComplianceScore(commitmentID string, score int64) {
	if storedComplianceScoreGauge == nil {
		return
	}
	storedComplianceScoreGauge.WithLabelValues(commitmentID).Set(float64(score))
}

func ObserveDbLatency(method string, outcome Outcome, duration time.Duration) {
	if dbLatency == nil {
		return
	}
	dbLatency.WithLabelValues(method, outcome.String()).Observe(duration.Seconds())
}

func ObserveHttpRequest(method, path string, status int, duration time.Duration) {
	if httpRequestDurationHistogram == nil {
		return
	}
	httpRequestDurationHistogram.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Observe(duration.Seconds())
}
