package metrics

import "testing"

type recordSink struct {
	count int
}

func (r *recordSink) RecordRunResult(RunResult) error {
	r.count++
	return nil
}

func (r *recordSink) RecordStepLatency([]StepLatency) error {
	r.count++
	return nil
}

func (r *recordSink) RecordMatches([]MatchObservation) error {
	r.count++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordRunResult(RunResult{}); err != nil {
		t.Fatalf("record result: %v", err)
	}
	if err := m.RecordStepLatency(nil); err != nil {
		t.Fatalf("record latency: %v", err)
	}
	if err := m.RecordMatches(nil); err != nil {
		t.Fatalf("record matches: %v", err)
	}
	if s1.count != 3 || s2.count != 3 {
		t.Fatal("observations not forwarded to all sinks")
	}
}

func TestNewSinkEmpty(t *testing.T) {
	s, err := NewSink(nil)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if _, ok := s.(NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}
}
