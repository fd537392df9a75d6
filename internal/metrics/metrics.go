package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopwise_pipeline_runs_total",
			Help: "Total number of comparison runs by final outcome",
		},
		[]string{"outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopwise_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopwise_search_requests_total",
			Help: "Total number of search provider calls by result",
		},
		[]string{"result"},
	)

	SearchHits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shopwise_search_hits",
			Help:    "Number of hits returned per search",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
		},
	)

	ScrapeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopwise_scrape_requests_total",
			Help: "Total number of product page fetches",
		},
		[]string{"domain", "status", "detected", "detection_src"},
	)

	ScrapeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopwise_scrape_duration_seconds",
			Help:    "Duration of product page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	ScrapeBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopwise_scrape_bytes_total",
			Help: "Total bytes downloaded across all product page fetches",
		},
		[]string{"domain"},
	)

	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopwise_product_records_total",
			Help: "Product records produced by the scraper by status",
		},
		[]string{"status"},
	)

	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopwise_llm_calls_total",
			Help: "Total number of LLM calls by purpose and result",
		},
		[]string{"purpose", "result"},
	)

	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopwise_extractions_total",
			Help: "Structured extraction outcomes",
		},
		[]string{"kind"},
	)
)

// ScrapeSample is one fetch as seen by the metrics layer.
type ScrapeSample struct {
	Domain       string
	StatusCode   int
	Failed       bool
	DetectionSrc string
	Bytes        int
	Duration     time.Duration
}

// RecordScrape updates the fetch metrics for one product page.
func RecordScrape(s ScrapeSample) {
	statusStr := strconv.Itoa(s.StatusCode)
	if s.Failed && s.StatusCode == 0 {
		statusStr = "error"
	}
	detectedStr := strconv.FormatBool(s.DetectionSrc != "")

	ScrapeRequestsTotal.WithLabelValues(s.Domain, statusStr, detectedStr, s.DetectionSrc).Inc()
	ScrapeDuration.WithLabelValues(s.Domain).Observe(s.Duration.Seconds())
	ScrapeBytesTotal.WithLabelValues(s.Domain).Add(float64(s.Bytes))
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordSearch counts one provider call and the number of hits it kept.
func RecordSearch(err error, hits int) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	SearchRequestsTotal.WithLabelValues(result).Inc()
	SearchHits.Observe(float64(hits))
}

// RecordLLM counts one generator call for purpose ("planner" or "synthesis").
func RecordLLM(purpose string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	LLMCallsTotal.WithLabelValues(purpose, result).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Start begins listening on addr and exposes /metrics.
func Start(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
