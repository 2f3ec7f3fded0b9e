package workflow

import "context"

// Step is one named unit of work in a pipeline. Run must not mutate the
// record; it returns only the fields it computed. Done is the idempotency
// check: when the step's owned output is already present the executor skips
// Run entirely, which is what makes replaying from a checkpoint safe.
type Step interface {
	Name() string
	Done(r *Record) bool
	Run(ctx context.Context, r *Record) (Patch, error)
}

type funcStep struct {
	name string
	done func(*Record) bool
	run  func(context.Context, *Record) (Patch, error)
}

func (s funcStep) Name() string { return s.name }

func (s funcStep) Done(r *Record) bool {
	if s.done == nil {
		return false
	}
	return s.done(r)
}

func (s funcStep) Run(ctx context.Context, r *Record) (Patch, error) {
	return s.run(ctx, r)
}

// NewStep builds a Step from plain functions. done may be nil for steps that
// are cheap enough to always re-run.
func NewStep(name string, done func(*Record) bool, run func(context.Context, *Record) (Patch, error)) Step {
	return funcStep{name: name, done: done, run: run}
}
