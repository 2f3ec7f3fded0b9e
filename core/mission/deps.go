package mission

import (
	"context"
	"time"

	"github.com/lcabon/resq/core/command"
	"github.com/lcabon/resq/core/directory"
	"github.com/lcabon/resq/core/dispatch"
	"github.com/lcabon/resq/core/evidence"
	"github.com/lcabon/resq/core/logger"
	"github.com/lcabon/resq/core/model"
	"github.com/lcabon/resq/core/planner"
	"github.com/lcabon/resq/core/routing"
	"github.com/lcabon/resq/core/workflow"
)

// TaskWriter is the persistence collaborator for dispatched work.
type TaskWriter interface {
	CreateTask(ctx context.Context, task model.Task, assignedTo string) (string, error)
	CreateRoutePlan(ctx context.Context, a model.Assignment) (string, error)
}

// Synthesizer turns a finished record into operator-facing text. The
// generation backend is a black box.
type Synthesizer interface {
	Summarize(ctx context.Context, rec *workflow.Record) (string, error)
}

// Deps bundles the collaborators the pipelines are built from.
type Deps struct {
	Directory  directory.Directory
	Planner    *planner.Planner
	Matcher    dispatch.Matcher
	Refiner    *routing.Refiner
	Fuser      *evidence.Fuser
	Tasks      TaskWriter
	Synth      Synthesizer
	Commander  command.Commander
	AckTimeout time.Duration
	Log        logger.Logger
}
