package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for report card counters.
const (
	MetricResultSuccess = "success"
	MetricResultFailure = "failure"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the report card pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	reportCardsGenerated *prometheus.CounterVec
	reportCardPDFs       *prometheus.CounterVec
	pdfRenderDuration    *prometheus.HistogramVec
	batchItems           *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	reportCardsGenerated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_cards_generated_total",
		Help: "Report card documents assembled",
	}, []string{"result"})

	reportCardPDFs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_card_pdf_total",
		Help: "Report card PDF generations by renderer and result",
	}, []string{"renderer", "result"})

	pdfRenderDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "report_card_pdf_render_seconds",
		Help:    "Time spent rendering a report card PDF",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"renderer"})

	batchItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_card_batch_items_total",
		Help: "Items processed by bulk PDF generation",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		dbQueryDuration,
		reportCardsGenerated, reportCardPDFs, pdfRenderDuration, batchItems,
		goroutines,
	)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:             registry,
		handler:              handler,
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		cacheLatency:         cacheLatency,
		cacheWrite:           cacheWrite,
		cacheHitRatio:        cacheHitRatio,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
		dbQueryDuration:      dbQueryDuration,
		reportCardsGenerated: reportCardsGenerated,
		reportCardPDFs:       reportCardPDFs,
		pdfRenderDuration:    pdfRenderDuration,
		batchItems:           batchItems,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordReportCardGenerated counts assembled report cards.
func (m *MetricsService) RecordReportCardGenerated(success bool) {
	if m == nil {
		return
	}
	m.reportCardsGenerated.WithLabelValues(resultLabel(success)).Inc()
}

// ObservePDFRender records one PDF generation attempt for the given renderer.
func (m *MetricsService) ObservePDFRender(renderer string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.pdfRenderDuration.WithLabelValues(renderer).Observe(duration.Seconds())
	m.reportCardPDFs.WithLabelValues(renderer, resultLabel(success)).Inc()
}

// RecordBatchItems adds the outcome of a bulk run.
func (m *MetricsService) RecordBatchItems(succeeded, failed int) {
	if m == nil {
		return
	}
	m.batchItems.WithLabelValues(MetricResultSuccess).Add(float64(succeeded))
	m.batchItems.WithLabelValues(MetricResultFailure).Add(float64(failed))
}

func resultLabel(success bool) string {
	if success {
		return MetricResultSuccess
	}
	return MetricResultFailure
}
