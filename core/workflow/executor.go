package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lcabon/resq/core/events"
	"github.com/lcabon/resq/core/logger"
	"github.com/lcabon/resq/core/metrics"
	"github.com/lcabon/resq/internal/eventbus"
)

// Durability selects the persistence-vs-latency trade-off for a run.
type Durability string

const (
	// DurabilitySync persists a checkpoint and awaits confirmation before
	// the next step runs.
	DurabilitySync Durability = "sync"
	// DurabilityAsync persists in the background without blocking the next
	// step. Writes for one run stay ordered by step sequence.
	DurabilityAsync Durability = "async"
	// DurabilityExitOnly persists a single checkpoint at run completion.
	DurabilityExitOnly Durability = "exit-only"
)

// Valid reports whether d is a known durability tier.
func (d Durability) Valid() bool {
	switch d {
	case DurabilitySync, DurabilityAsync, DurabilityExitOnly:
		return true
	}
	return false
}

// Pipeline is a fixed, ordered list of steps executed against one record.
type Pipeline struct {
	Name       string
	Mission    MissionKind
	Durability Durability
	Steps      []Step
}

// Executor walks a pipeline's steps strictly sequentially against one
// record, enforcing the entry-error short-circuit and per-step idempotency,
// and checkpointing per the pipeline's durability tier. One executor serves
// many concurrent runs; each run owns a disjoint checkpoint key space.
type Executor struct {
	store Store
	log   logger.Logger
	sink  metrics.Sink
	bus   eventbus.EventBus
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics attaches a metrics sink.
func WithMetrics(s metrics.Sink) Option {
	return func(e *Executor) { e.sink = s }
}

// WithEventBus attaches a bus for run/step progress events.
func WithEventBus(b eventbus.EventBus) Option {
	return func(e *Executor) { e.bus = b }
}

// NewExecutor creates an Executor. The store may be nil for purely
// in-memory (non-durable) execution in tests.
func NewExecutor(store Store, log logger.Logger, opts ...Option) *Executor {
	e := &Executor{store: store, log: log, sink: metrics.NopSink{}}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run executes the pipeline against rec. Step errors land in the record as
// status "error"; the returned error reports executor-level failures only
// (nil record, invalid durability, failed synchronous checkpoint).
func (e *Executor) Run(ctx context.Context, rec *Record, p Pipeline) (*Record, error) {
	return e.run(ctx, rec, p, false)
}

// Resume reloads the latest checkpoint for runID and replays the pipeline.
// Steps whose output fields already survived the crash skip themselves.
func (e *Executor) Resume(ctx context.Context, runID string, p Pipeline) (*Record, error) {
	if e.store == nil {
		return nil, errors.New("resume requires a checkpoint store")
	}
	rec, seq, err := e.store.Load(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint for %s: %w", runID, err)
	}
	e.log.Infof("resuming run %s from checkpoint %d", runID, seq)
	if rec.Status == StatusOK {
		return rec, nil
	}
	return e.run(ctx, rec, p, true)
}

func (e *Executor) run(ctx context.Context, rec *Record, p Pipeline, resumed bool) (*Record, error) {
	if rec == nil {
		return nil, errors.New("nil record")
	}
	if !p.Durability.Valid() {
		return nil, fmt.Errorf("unknown durability tier %q", p.Durability)
	}
	start := time.Now()
	e.publish(events.RunStartedEvent{RunID: rec.RunID, Mission: string(rec.Mission), Resumed: resumed})

	var writer *asyncWriter
	if p.Durability == DurabilityAsync && e.store != nil {
		writer = newAsyncWriter(e.store, e.log, len(p.Steps)+1)
		defer writer.close()
	}

	var latencies []metrics.StepLatency
	for _, st := range p.Steps {
		if rec.Failed() {
			// Fail-fast short-circuit: no external calls once the run is in
			// the error state.
			break
		}
		stepStart := time.Now()
		if st.Done(rec) {
			e.log.Debugf("run %s: step %s already complete, skipping", rec.RunID, st.Name())
			latencies = append(latencies, metrics.StepLatency{
				RunID: rec.RunID, Mission: string(rec.Mission), Step: st.Name(), Skipped: true,
			})
			e.publish(events.StepEvent{RunID: rec.RunID, Step: st.Name(), Skipped: true})
			continue
		}

		patch, err := st.Run(ctx, rec)
		if err != nil {
			e.log.Errorf("run %s: step %s failed: %v", rec.RunID, st.Name(), err)
			patch = ErrorPatch(st.Name(), err.Error())
		}
		patch.Apply(rec)
		rec.StepSeq++
		rec.UpdatedAt = time.Now().UTC()

		if err := e.checkpoint(ctx, rec, p.Durability, writer); err != nil {
			return rec, err
		}

		took := time.Since(stepStart)
		latencies = append(latencies, metrics.StepLatency{
			RunID: rec.RunID, Mission: string(rec.Mission), Step: st.Name(),
			Failed: rec.Failed(), Latency: took,
		})
		e.publish(events.StepEvent{RunID: rec.RunID, Step: st.Name(), Failed: rec.Failed(), Latency: took})
	}

	if !rec.Failed() {
		rec.Status = StatusOK
	}
	rec.StepSeq++
	rec.UpdatedAt = time.Now().UTC()
	if err := e.finalize(ctx, rec, p.Durability, writer); err != nil {
		return rec, err
	}

	if err := e.sink.RecordStepLatency(latencies); err != nil {
		e.log.Warnf("record step latency: %v", err)
	}
	if obs := matchObservations(rec); len(obs) > 0 {
		if err := e.sink.RecordMatches(obs); err != nil {
			e.log.Warnf("record match observations: %v", err)
		}
	}
	matched, unmatched := len(rec.FinalAssignments()), len(rec.AllUnmatched())
	if err := e.sink.RecordRunResult(metrics.RunResult{
		RunID: rec.RunID, Mission: string(rec.Mission), Status: string(rec.Status),
		FailedStep: rec.FailedStep, Matched: matched, Unmatched: unmatched,
		Duration: time.Since(start),
	}); err != nil {
		e.log.Warnf("record run result: %v", err)
	}
	e.publish(events.RunFinishedEvent{
		RunID: rec.RunID, Mission: string(rec.Mission), Status: string(rec.Status),
		FailedStep: rec.FailedStep, Duration: time.Since(start),
	})
	return rec, nil
}

// checkpoint persists the record after one step, per durability tier.
func (e *Executor) checkpoint(ctx context.Context, rec *Record, d Durability, writer *asyncWriter) error {
	if e.store == nil {
		return nil
	}
	switch d {
	case DurabilitySync:
		if err := e.store.Save(ctx, rec.RunID, rec.StepSeq, rec); err != nil {
			return fmt.Errorf("checkpoint run %s seq %d: %w", rec.RunID, rec.StepSeq, err)
		}
	case DurabilityAsync:
		writer.enqueue(rec)
	case DurabilityExitOnly:
		// Single save at completion only.
	}
	return nil
}

// finalize writes the terminal snapshot. Every tier persists the terminal
// state so Load observes the run's outcome.
func (e *Executor) finalize(ctx context.Context, rec *Record, d Durability, writer *asyncWriter) error {
	if e.store == nil {
		return nil
	}
	if d == DurabilityAsync {
		writer.enqueue(rec)
		return nil
	}
	if err := e.store.Save(ctx, rec.RunID, rec.StepSeq, rec); err != nil {
		return fmt.Errorf("final checkpoint run %s: %w", rec.RunID, err)
	}
	return nil
}

// matchObservations flattens the record's dispatch outcome into per-pair
// audit points, one per assignment and one per unmatched task.
func matchObservations(rec *Record) []metrics.MatchObservation {
	if rec.Matches == nil {
		return nil
	}
	now := time.Now().UTC()
	var obs []metrics.MatchObservation
	for _, a := range rec.FinalAssignments() {
		obs = append(obs, metrics.MatchObservation{
			RunID:      rec.RunID,
			TaskID:     a.Task.ID,
			ResourceID: a.Resource.ID,
			Composite:  a.Score.Composite,
			Assigned:   true,
			Time:       now,
		})
	}
	for _, u := range rec.AllUnmatched() {
		obs = append(obs, metrics.MatchObservation{
			RunID:    rec.RunID,
			TaskID:   u.Task.ID,
			Assigned: false,
			Time:     now,
		})
	}
	return obs
}

func (e *Executor) publish(ev eventbus.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// asyncWriter serializes background checkpoint writes for one run. Snapshots
// are cloned before queueing so the executor can keep mutating the live
// record.
type asyncWriter struct {
	ch   chan *Record
	done chan struct{}
	log  logger.Logger
}

func newAsyncWriter(store Store, log logger.Logger, buffer int) *asyncWriter {
	w := &asyncWriter{ch: make(chan *Record, buffer), done: make(chan struct{}), log: log}
	go func() {
		defer close(w.done)
		for snap := range w.ch {
			// Background saves use a fresh context: the run may already be
			// finished when the write lands.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := store.Save(ctx, snap.RunID, snap.StepSeq, snap); err != nil {
				log.Errorf("async checkpoint run %s seq %d: %v", snap.RunID, snap.StepSeq, err)
			}
			cancel()
		}
	}()
	return w
}

func (w *asyncWriter) enqueue(rec *Record) {
	snap, err := rec.Clone()
	if err != nil {
		w.log.Errorf("snapshot run %s: %v", rec.RunID, err)
		return
	}
	w.ch <- snap
}

// close drains pending writes before returning.
func (w *asyncWriter) close() {
	close(w.ch)
	<-w.done
}
