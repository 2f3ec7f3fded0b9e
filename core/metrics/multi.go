package metrics

// MultiSink fans observations out to multiple sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRunResult forwards the result to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordRunResult(res RunResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordRunResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordStepLatency forwards step timings.
func (m *MultiSink) RecordStepLatency(recs []StepLatency) error {
	for _, s := range m.Sinks {
		if err := s.RecordStepLatency(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordMatches forwards match observations.
func (m *MultiSink) RecordMatches(obs []MatchObservation) error {
	for _, s := range m.Sinks {
		if err := s.RecordMatches(obs); err != nil {
			return err
		}
	}
	return nil
}
