package mission

import (
	"context"
	"errors"
	"fmt"

	"github.com/lcabon/resq/core/directory"
	"github.com/lcabon/resq/core/model"
	"github.com/lcabon/resq/core/routing"
	"github.com/lcabon/resq/core/workflow"
)

// planStep derives the task graph for the hazard, ordered by phase and
// dependencies.
func planStep(d Deps) workflow.Step {
	return workflow.NewStep("plan_tasks",
		func(rec *workflow.Record) bool { return rec.Plan != nil },
		func(_ context.Context, rec *workflow.Record) (workflow.Patch, error) {
			plan, err := d.Planner.Plan(rec.HazardType, rec.Severity, rec.Target)
			if err != nil {
				return workflow.Patch{}, err
			}
			return workflow.Patch{Plan: plan}, nil
		})
}

// scoutPlanStep builds the single reconnaissance task a scout mission
// dispatches, skipping the template library.
func scoutPlanStep() workflow.Step {
	return workflow.NewStep("plan_recon",
		func(rec *workflow.Record) bool { return rec.Plan != nil },
		func(_ context.Context, rec *workflow.Record) (workflow.Patch, error) {
			task := model.Task{
				ID:           "recon-" + rec.RunID,
				Name:         "area reconnaissance",
				Phase:        model.PhaseReconnaissance,
				Capabilities: []string{"aerial-imaging"},
				Location:     rec.Target,
			}
			return workflow.Patch{Plan: &model.HazardPlan{
				HazardType: rec.HazardType,
				Severity:   rec.Severity,
				Tasks:      []model.Task{task},
			}}, nil
		})
}

// matchStep ranks the available fleet against the plan's tasks.
func matchStep(d Deps) workflow.Step {
	return workflow.NewStep("match_resources",
		func(rec *workflow.Record) bool { return rec.Matches != nil },
		func(ctx context.Context, rec *workflow.Record) (workflow.Patch, error) {
			cands, err := d.Directory.ListAvailable(ctx, directory.Filter{})
			if err != nil {
				return workflow.Patch{}, fmt.Errorf("list resources: %w", err)
			}
			if len(cands) == 0 {
				return workflow.Patch{}, fmt.Errorf("no resources available for dispatch")
			}
			assigned, unmatched := d.Matcher.Assign(rec.Plan.Tasks, cands)
			d.Log.Infof("run %s: matched %d tasks, %d unmatched", rec.RunID, len(assigned), len(unmatched))
			return workflow.Patch{Matches: &workflow.DispatchOutcome{
				Assignments: assigned,
				Unmatched:   unmatched,
			}}, nil
		})
}

// routeStep attaches travel estimates and re-sorts the assignments.
// Pairs the router cannot serve degrade instead of failing the run.
func routeStep(d Deps) workflow.Step {
	return workflow.NewStep("refine_routes",
		func(rec *workflow.Record) bool { return rec.Routes != nil },
		func(ctx context.Context, rec *workflow.Record) (workflow.Patch, error) {
			if len(rec.Matches.Assignments) == 0 {
				return workflow.Patch{Routes: &workflow.RouteOutcome{}}, nil
			}
			res, err := d.Refiner.Refine(ctx, rec.Matches.Assignments)
			if errors.Is(err, routing.ErrNoReachableResource) {
				// Keep the per-pair lack reasons so the operator sees which
				// resources failed to route even though the run is failing.
				p := workflow.ErrorPatch("refine_routes", err.Error())
				p.Routes = &workflow.RouteOutcome{Degraded: res.Degraded}
				return p, nil
			}
			if err != nil {
				return workflow.Patch{}, err
			}
			return workflow.Patch{Routes: &workflow.RouteOutcome{
				Assignments: res.Matched,
				Degraded:    res.Degraded,
			}}, nil
		})
}

// evidenceStep fuses standards and case history into equipment
// recommendations.
func evidenceStep(d Deps) workflow.Step {
	return workflow.NewStep("fuse_evidence",
		func(rec *workflow.Record) bool { return rec.Evidence != nil },
		func(ctx context.Context, rec *workflow.Record) (workflow.Patch, error) {
			recs, err := d.Fuser.Recommend(ctx, []string{rec.HazardType})
			if err != nil {
				return workflow.Patch{}, err
			}
			return workflow.Patch{Evidence: &workflow.EvidenceOutcome{Recommendations: recs}}, nil
		})
}

// persistStep writes the final assignments through the persistence
// collaborator, one task and one route plan per pair.
func persistStep(d Deps) workflow.Step {
	return workflow.NewStep("persist_dispatch",
		func(rec *workflow.Record) bool { return rec.Persisted != nil },
		func(ctx context.Context, rec *workflow.Record) (workflow.Patch, error) {
			out := &workflow.PersistOutcome{}
			for _, a := range rec.FinalAssignments() {
				taskID, err := d.Tasks.CreateTask(ctx, a.Task, a.Resource.ID)
				if err != nil {
					return workflow.Patch{}, fmt.Errorf("create task %s: %w", a.Task.ID, err)
				}
				out.TaskIDs = append(out.TaskIDs, taskID)
				if a.RouteID == "" {
					continue
				}
				routeID, err := d.Tasks.CreateRoutePlan(ctx, a)
				if err != nil {
					return workflow.Patch{}, fmt.Errorf("create route plan for task %s: %w", a.Task.ID, err)
				}
				out.RouteIDs = append(out.RouteIDs, routeID)
			}
			return workflow.Patch{Persisted: out}, nil
		})
}

// commandStep pushes the assigned task to each matched device and waits
// for acknowledgment.
func commandStep(d Deps) workflow.Step {
	return workflow.NewStep("command_devices",
		func(rec *workflow.Record) bool { return rec.Commands != nil },
		func(ctx context.Context, rec *workflow.Record) (workflow.Patch, error) {
			out := &workflow.CommandOutcome{Acked: true}
			for _, a := range rec.FinalAssignments() {
				task := a.Task
				cmdID, err := d.Commander.SendCommand(ctx, a.Resource.ID, "execute_task", &task)
				if err != nil {
					return workflow.Patch{}, fmt.Errorf("command resource %s: %w", a.Resource.ID, err)
				}
				out.CommandIDs = append(out.CommandIDs, cmdID)
				if err := d.Commander.WaitForAck(ctx, cmdID, d.AckTimeout); err != nil {
					return workflow.Patch{}, fmt.Errorf("resource %s: %w", a.Resource.ID, err)
				}
			}
			return workflow.Patch{Commands: out}, nil
		})
}

// summaryStep renders the operator-facing response text.
func summaryStep(d Deps) workflow.Step {
	return workflow.NewStep("synthesize_summary",
		func(rec *workflow.Record) bool { return rec.Summary != "" },
		func(ctx context.Context, rec *workflow.Record) (workflow.Patch, error) {
			text, err := d.Synth.Summarize(ctx, rec)
			if err != nil {
				return workflow.Patch{}, err
			}
			return workflow.Patch{Summary: &text}, nil
		})
}
