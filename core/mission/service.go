package mission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lcabon/resq/core/workflow"
)

// Service composes the mission pipelines and runs them on a shared
// executor. Each mission kind carries the durability tier its latency
// profile tolerates: rescue runs checkpoint synchronously, situation
// reports in the background, scout flights only at exit.
type Service struct {
	deps      Deps
	exec      *workflow.Executor
	store     workflow.Store
	pipelines map[workflow.MissionKind]workflow.Pipeline
}

func NewService(exec *workflow.Executor, store workflow.Store, deps Deps) *Service {
	if deps.AckTimeout <= 0 {
		deps.AckTimeout = 10 * time.Second
	}
	s := &Service{deps: deps, exec: exec, store: store}
	s.pipelines = map[workflow.MissionKind]workflow.Pipeline{
		workflow.MissionRescue: {
			Name:       "rescue",
			Mission:    workflow.MissionRescue,
			Durability: workflow.DurabilitySync,
			Steps: []workflow.Step{
				planStep(deps),
				matchStep(deps),
				routeStep(deps),
				evidenceStep(deps),
				persistStep(deps),
				summaryStep(deps),
			},
		},
		workflow.MissionScout: {
			Name:       "scout",
			Mission:    workflow.MissionScout,
			Durability: workflow.DurabilityExitOnly,
			Steps: []workflow.Step{
				scoutPlanStep(),
				matchStep(deps),
				commandStep(deps),
				summaryStep(deps),
			},
		},
		workflow.MissionSitrep: {
			Name:       "situation_report",
			Mission:    workflow.MissionSitrep,
			Durability: workflow.DurabilityAsync,
			Steps: []workflow.Step{
				evidenceStep(deps),
				summaryStep(deps),
			},
		},
	}
	return s
}

// Start validates the request, seeds a fresh record and runs the
// pipeline for the requested mission kind. Input errors return before
// any record exists.
func (s *Service) Start(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid mission request: %w", err)
	}
	p, ok := s.pipelines[req.Mission]
	if !ok {
		return Result{}, fmt.Errorf("no pipeline for mission %q", req.Mission)
	}

	rec := workflow.NewRecord(uuid.NewString(), req.UserID, req.Mission)
	rec.HazardType = req.HazardType
	rec.Severity = req.Severity
	rec.Target = req.Target
	rec.Request = req.Text

	s.deps.Log.Infof("starting %s mission %s for user %s", req.Mission, rec.RunID, req.UserID)
	rec, err := s.exec.Run(ctx, rec, p)
	if err != nil {
		return Result{}, err
	}
	return ResultFrom(rec), nil
}

// Resume reloads a checkpointed run and replays its pipeline. Completed
// steps skip themselves.
func (s *Service) Resume(ctx context.Context, runID string) (Result, error) {
	if s.store == nil {
		return Result{}, fmt.Errorf("resume requires a checkpoint store")
	}
	rec, _, err := s.store.Load(ctx, runID)
	if err != nil {
		return Result{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	p, ok := s.pipelines[rec.Mission]
	if !ok {
		return Result{}, fmt.Errorf("run %s has unknown mission %q", runID, rec.Mission)
	}
	rec, err = s.exec.Resume(ctx, runID, p)
	if err != nil {
		return Result{}, err
	}
	return ResultFrom(rec), nil
}
