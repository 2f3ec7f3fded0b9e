package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lcabon/resq/core/logger"
	"github.com/lcabon/resq/core/model"
)

// ErrNoReachableResource is returned when routing failed for every matched
// pair; an empty matched list makes the rest of the pipeline meaningless.
var ErrNoReachableResource = errors.New("no reachable resource")

// Config defines refiner parameters.
type Config struct {
	// DefaultMode is the transport mode used when a resource kind has no
	// specific mapping.
	DefaultMode string `json:"default_mode"`
	// ModeByKind maps a resource kind to its transport mode.
	ModeByKind map[string]string `json:"mode_by_kind"`
	// TimeoutSeconds bounds each routing call.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.DefaultMode == "" {
		c.DefaultMode = "driving"
	}
	if c.ModeByKind == nil {
		c.ModeByKind = map[string]string{
			string(model.ResourceDrone):  "air",
			string(model.ResourceVessel): "water",
		}
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
}

// Result is the refiner's per-run output: pairs with a travel estimate and
// pairs degraded because routing could not serve them.
type Result struct {
	Matched  []model.Assignment
	Degraded []model.UnmatchedTask
}

// Refiner replaces straight-line distance scoring with real travel
// estimates once an initial match list exists.
type Refiner struct {
	planner Planner
	cfg     Config
	log     logger.Logger
}

// NewRefiner builds a refiner around the routing collaborator.
func NewRefiner(planner Planner, cfg Config, log logger.Logger) *Refiner {
	cfg.SetDefaults()
	return &Refiner{planner: planner, cfg: cfg, log: log}
}

type pairResult struct {
	idx  int
	plan TravelPlan
	err  error
}

// Refine requests a travel plan for every matched pair concurrently. A
// failing pair is degraded to unmatched with a lack reason; only the case
// where no pair succeeds is fatal. The surviving pairs are re-sorted by
// (full capability first, ETA ascending).
func (r *Refiner) Refine(ctx context.Context, assignments []model.Assignment) (Result, error) {
	if len(assignments) == 0 {
		return Result{}, nil
	}

	results := make([]pairResult, len(assignments))
	var wg sync.WaitGroup
	for i := range assignments {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.plan(ctx, i, assignments[i])
		}(i)
	}
	wg.Wait()

	var out Result
	for _, res := range results {
		a := assignments[res.idx]
		if res.err != nil {
			r.log.Warnf("routing failed for task %s resource %s: %v", a.Task.ID, a.Resource.ID, res.err)
			out.Degraded = append(out.Degraded, model.UnmatchedTask{
				Task:       a.Task,
				LackReason: fmt.Sprintf("routing failed for resource %s: %v", a.Resource.ID, res.err),
			})
			continue
		}
		eta := res.plan.ETAMinutes()
		km := res.plan.DistanceMeters / 1000
		a.ETAMinutes = &eta
		a.RouteKm = &km
		a.RouteID = res.plan.RouteID
		out.Matched = append(out.Matched, a)
	}

	if len(out.Matched) == 0 {
		return out, ErrNoReachableResource
	}

	sort.SliceStable(out.Matched, func(i, j int) bool {
		fi := out.Matched[i].Score.CapabilityMatch == model.CapabilityFull
		fj := out.Matched[j].Score.CapabilityMatch == model.CapabilityFull
		if fi != fj {
			return fi
		}
		return *out.Matched[i].ETAMinutes < *out.Matched[j].ETAMinutes
	})
	return out, nil
}

// plan routes one pair with a bounded timeout.
func (r *Refiner) plan(ctx context.Context, idx int, a model.Assignment) pairResult {
	if a.Resource.Location == nil || a.Task.Location == nil {
		return pairResult{idx: idx, err: errors.New("origin or destination location unknown")}
	}
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.TimeoutSeconds)*time.Second)
	defer cancel()
	plan, err := r.planner.Plan(callCtx, *a.Resource.Location, *a.Task.Location, r.mode(a.Resource.Kind))
	if err != nil {
		return pairResult{idx: idx, err: err}
	}
	if plan.RouteID == "" {
		plan.RouteID = uuid.NewString()
	}
	return pairResult{idx: idx, plan: plan}
}

func (r *Refiner) mode(kind model.ResourceKind) string {
	if m, ok := r.cfg.ModeByKind[string(kind)]; ok {
		return m
	}
	return r.cfg.DefaultMode
}
