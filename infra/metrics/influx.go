package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/lcabon/resq/core/metrics"
	"github.com/lcabon/resq/infra/logger"
)

// InfluxSink writes pipeline observations to an InfluxDB instance using
// the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink when the health check fails, so a down database never blocks
// mission dispatch.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRunResult writes the terminal run observation.
func (s *InfluxSink) RecordRunResult(res coremetrics.RunResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("mission_run").
		AddTag("run_id", res.RunID).
		AddTag("mission", res.Mission).
		AddTag("status", res.Status).
		AddField("matched", res.Matched).
		AddField("unmatched", res.Unmatched).
		AddField("duration_ms", res.Duration.Milliseconds()).
		SetTime(time.Now())
	if res.FailedStep != "" {
		p.AddTag("failed_step", res.FailedStep)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStepLatency writes one point per executed step.
func (s *InfluxSink) RecordStepLatency(recs []coremetrics.StepLatency) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("mission_step").
			AddTag("run_id", r.RunID).
			AddTag("mission", r.Mission).
			AddTag("step", r.Step).
			AddTag("skipped", strconv.FormatBool(r.Skipped)).
			AddTag("failed", strconv.FormatBool(r.Failed)).
			AddField("latency_ms", r.Latency.Milliseconds()).
			SetTime(time.Now())
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordMatches writes one point per scored pair.
func (s *InfluxSink) RecordMatches(obs []coremetrics.MatchObservation) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, o := range obs {
		t := o.Time
		if t.IsZero() {
			t = time.Now()
		}
		p := write.NewPointWithMeasurement("dispatch_match").
			AddTag("run_id", o.RunID).
			AddTag("task_id", o.TaskID).
			AddTag("resource_id", o.ResourceID).
			AddTag("assigned", strconv.FormatBool(o.Assigned)).
			AddField("composite", o.Composite).
			SetTime(t)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
