package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/lcabon/resq/core/metrics"
	"github.com/lcabon/resq/infra/logger"
)

// PromSink records pipeline observations in Prometheus metrics.
type PromSink struct {
	runs      *prometheus.CounterVec
	stepTime  *prometheus.HistogramVec
	matches   *prometheus.CounterVec
	runTime   *prometheus.HistogramVec
	unmatched *prometheus.CounterVec
}

// NewPromSink registers mission metrics on the default Prometheus
// registerer. The HTTP server is started separately via StartPromServer.
func NewPromSink() (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mission_runs_total",
		Help: "Total number of mission pipeline runs",
	}, []string{"mission", "status", "failed_step"})
	runTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mission_run_duration_seconds",
		Help:    "Wall time of a full pipeline run",
		Buckets: prometheus.DefBuckets,
	}, []string{"mission", "status"})
	stepTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mission_step_duration_seconds",
		Help:    "Wall time of individual pipeline steps",
		Buckets: prometheus.DefBuckets,
	}, []string{"mission", "step", "failed"})
	matches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_matches_total",
		Help: "Total number of scored task to resource pairs",
	}, []string{"assigned"})
	unmatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_unmatched_tasks_total",
		Help: "Total number of tasks left without a resource",
	}, []string{"mission"})

	if err := registerCounterVec(reg, &runs); err != nil {
		return nil, err
	}
	if err := registerHistogramVec(reg, &runTime); err != nil {
		return nil, err
	}
	if err := registerHistogramVec(reg, &stepTime); err != nil {
		return nil, err
	}
	if err := registerCounterVec(reg, &matches); err != nil {
		return nil, err
	}
	if err := registerCounterVec(reg, &unmatched); err != nil {
		return nil, err
	}

	return &PromSink{
		runs:      runs,
		runTime:   runTime,
		stepTime:  stepTime,
		matches:   matches,
		unmatched: unmatched,
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, cv **prometheus.CounterVec) error {
	if err := reg.Register(*cv); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return err
		}
		*cv = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return nil
}

func registerHistogramVec(reg prometheus.Registerer, hv **prometheus.HistogramVec) error {
	if err := reg.Register(*hv); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return err
		}
		*hv = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return nil
}

// RecordRunResult counts the run outcome and observes its duration.
func (s *PromSink) RecordRunResult(res coremetrics.RunResult) error {
	s.runs.WithLabelValues(res.Mission, res.Status, res.FailedStep).Inc()
	s.runTime.WithLabelValues(res.Mission, res.Status).Observe(res.Duration.Seconds())
	if res.Unmatched > 0 {
		s.unmatched.WithLabelValues(res.Mission).Add(float64(res.Unmatched))
	}
	return nil
}

// RecordStepLatency observes per-step wall time. Skipped steps are not
// observed; a replay would distort the histogram.
func (s *PromSink) RecordStepLatency(recs []coremetrics.StepLatency) error {
	for _, r := range recs {
		if r.Skipped {
			continue
		}
		s.stepTime.WithLabelValues(r.Mission, r.Step, strconv.FormatBool(r.Failed)).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordMatches counts scored pairs by assignment outcome.
func (s *PromSink) RecordMatches(obs []coremetrics.MatchObservation) error {
	for _, o := range obs {
		s.matches.WithLabelValues(strconv.FormatBool(o.Assigned)).Inc()
	}
	return nil
}

// StartPromServer exposes /metrics on the given port. The returned
// server is already listening; the caller owns shutdown.
func StartPromServer(port string) *http.Server {
	log := logger.New("prom-server")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server: %v", err)
		}
	}()
	return srv
}
