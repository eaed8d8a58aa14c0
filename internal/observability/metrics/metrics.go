package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "billing_"

	resultSuccess = "success"
	resultError   = "error"
)

// Exported result labels for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)

var (
	registerOnce sync.Once

	batchesCreated *prometheus.CounterVec

	batchRunTotal   *prometheus.CounterVec
	batchRunLatency *prometheus.HistogramVec

	transactionsSubmitted *prometheus.CounterVec

	engineRequests       *prometheus.CounterVec
	engineRequestLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers billing metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		batchesCreated = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batches_created_total",
				Help: "Total batches created by type and initial status",
			},
			[]string{"batch_type", "status"},
		)

		batchRunTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_runs_total",
				Help: "Total batch pipeline runs by result",
			},
			[]string{"result"},
		)
		batchRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "batch_run_duration_seconds",
				Help:    "Batch pipeline duration in seconds",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 1800},
			},
			[]string{"result"},
		)

		transactionsSubmitted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transactions_submitted_total",
				Help: "Total transactions accepted by the charging engine by charge type",
			},
			[]string{"charge_type"},
		)

		engineRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "engine_requests_total",
				Help: "Total charging engine requests by operation and result",
			},
			[]string{"op", "result"},
		)
		engineRequestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "engine_request_latency_seconds",
				Help:    "Charging engine request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total bill run export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Bill run export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			batchesCreated,
			batchRunTotal,
			batchRunLatency,
			transactionsSubmitted,
			engineRequests,
			engineRequestLatency,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncBatchesCreated counts a created batch.
func IncBatchesCreated(batchType, status string) {
	if batchesCreated != nil {
		batchesCreated.WithLabelValues(batchType, status).Inc()
	}
}

// ObserveBatchRun records a batch pipeline run.
func ObserveBatchRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if batchRunTotal != nil {
		batchRunTotal.WithLabelValues(result).Inc()
	}
	if batchRunLatency != nil {
		batchRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncTransactionsSubmitted counts an accepted charge line.
func IncTransactionsSubmitted(chargeType string) {
	if transactionsSubmitted != nil {
		transactionsSubmitted.WithLabelValues(chargeType).Inc()
	}
}

// ObserveEngineRequest records one charging engine call.
func ObserveEngineRequest(op, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if engineRequests != nil {
		engineRequests.WithLabelValues(op, result).Inc()
	}
	if engineRequestLatency != nil {
		engineRequestLatency.WithLabelValues(op).Observe(duration.Seconds())
	}
}

// ObserveExport records a bill run export.
func ObserveExport(format, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "live_batches",
			Help: "Batches currently in a live status",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM billing_batches WHERE status IN ('processing','ready','review')")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "errored_batches",
			Help: "Batches stuck in status error",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM billing_batches WHERE status = 'error'")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
