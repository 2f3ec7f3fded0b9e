package routing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/lcabon/resq/core/model"
	"github.com/lcabon/resq/infra/logger"
)

// fakePlanner serves canned plans keyed by origin latitude and records the
// modes it was asked for.
type fakePlanner struct {
	mu    sync.Mutex
	plans map[float64]TravelPlan
	fails map[float64]error
	modes []string
}

func (f *fakePlanner) Plan(_ context.Context, origin, _ model.Location, mode string) (TravelPlan, error) {
	f.mu.Lock()
	f.modes = append(f.modes, mode)
	f.mu.Unlock()
	if err, ok := f.fails[origin.Lat]; ok {
		return TravelPlan{}, err
	}
	return f.plans[origin.Lat], nil
}

func assignment(taskID, resID string, resLat float64, match model.CapabilityMatch, kind model.ResourceKind) model.Assignment {
	return model.Assignment{
		Task: model.Task{
			ID: taskID, Phase: model.PhaseRescue,
			Location: &model.Location{Lon: 2.35, Lat: 48.85},
		},
		Resource: model.ResourceCandidate{
			ID: resID, Kind: kind, Available: true,
			Location: &model.Location{Lon: 2.30, Lat: resLat},
		},
		Score: model.MatchScore{TaskID: taskID, ResourceID: resID, CapabilityMatch: match},
	}
}

func TestRefineAttachesETAAndSorts(t *testing.T) {
	planner := &fakePlanner{plans: map[float64]TravelPlan{
		48.0: {RouteID: "r-slow", DistanceMeters: 9000, DurationSeconds: 1200},
		49.0: {RouteID: "r-fast", DistanceMeters: 3000, DurationSeconds: 300},
	}}
	r := NewRefiner(planner, Config{}, logger.NopLogger{})
	res, err := r.Refine(context.Background(), []model.Assignment{
		assignment("t1", "slow", 48.0, model.CapabilityFull, model.ResourceTeam),
		assignment("t2", "fast", 49.0, model.CapabilityFull, model.ResourceTeam),
	})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if len(res.Matched) != 2 || len(res.Degraded) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Matched[0].Resource.ID != "fast" {
		t.Fatalf("expected fastest ETA first, got %s", res.Matched[0].Resource.ID)
	}
	if *res.Matched[0].ETAMinutes != 5 {
		t.Fatalf("eta minutes wrong: %v", *res.Matched[0].ETAMinutes)
	}
	if *res.Matched[0].RouteKm != 3 {
		t.Fatalf("route km wrong: %v", *res.Matched[0].RouteKm)
	}
	if res.Matched[0].RouteID != "r-fast" {
		t.Fatalf("route id missing: %q", res.Matched[0].RouteID)
	}
}

func TestRefineFullCapabilityOutranksFasterPartial(t *testing.T) {
	planner := &fakePlanner{plans: map[float64]TravelPlan{
		48.0: {DurationSeconds: 1200},
		49.0: {DurationSeconds: 60},
	}}
	r := NewRefiner(planner, Config{}, logger.NopLogger{})
	res, err := r.Refine(context.Background(), []model.Assignment{
		assignment("t1", "full-slow", 48.0, model.CapabilityFull, model.ResourceTeam),
		assignment("t2", "partial-fast", 49.0, model.CapabilityPartial, model.ResourceTeam),
	})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if res.Matched[0].Resource.ID != "full-slow" {
		t.Fatalf("full capability must rank first, got %s", res.Matched[0].Resource.ID)
	}
}

// Scenario: routing fails for the top pair, succeeds for the second. The
// failed pair degrades with a routing lack reason, the run keeps going.
func TestRefineDegradesFailedPair(t *testing.T) {
	planner := &fakePlanner{
		plans: map[float64]TravelPlan{49.0: {DurationSeconds: 300}},
		fails: map[float64]error{48.0: &TransportError{Op: "plan", Err: errors.New("connection refused")}},
	}
	r := NewRefiner(planner, Config{}, logger.NopLogger{})
	res, err := r.Refine(context.Background(), []model.Assignment{
		assignment("t1", "unreachable", 48.0, model.CapabilityFull, model.ResourceTeam),
		assignment("t2", "reachable", 49.0, model.CapabilityFull, model.ResourceTeam),
	})
	if err != nil {
		t.Fatalf("refine must not abort on a single failure: %v", err)
	}
	if len(res.Matched) != 1 || res.Matched[0].Resource.ID != "reachable" {
		t.Fatalf("expected the reachable pair to survive: %+v", res.Matched)
	}
	if len(res.Degraded) != 1 {
		t.Fatalf("expected 1 degraded pair, got %d", len(res.Degraded))
	}
	if !strings.Contains(res.Degraded[0].LackReason, "routing failed") {
		t.Fatalf("lack reason should describe the routing error: %q", res.Degraded[0].LackReason)
	}
}

func TestRefineAllFailedIsFatal(t *testing.T) {
	planner := &fakePlanner{fails: map[float64]error{
		48.0: errors.New("down"),
	}}
	r := NewRefiner(planner, Config{}, logger.NopLogger{})
	_, err := r.Refine(context.Background(), []model.Assignment{
		assignment("t1", "a", 48.0, model.CapabilityFull, model.ResourceTeam),
	})
	if !errors.Is(err, ErrNoReachableResource) {
		t.Fatalf("expected ErrNoReachableResource, got %v", err)
	}
}

func TestRefineMissingLocationDegrades(t *testing.T) {
	planner := &fakePlanner{plans: map[float64]TravelPlan{49.0: {DurationSeconds: 60}}}
	r := NewRefiner(planner, Config{}, logger.NopLogger{})
	noLoc := assignment("t1", "blind", 48.0, model.CapabilityFull, model.ResourceTeam)
	noLoc.Resource.Location = nil
	res, err := r.Refine(context.Background(), []model.Assignment{
		noLoc,
		assignment("t2", "ok", 49.0, model.CapabilityFull, model.ResourceTeam),
	})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if len(res.Degraded) != 1 || res.Degraded[0].Task.ID != "t1" {
		t.Fatalf("pair without location should degrade: %+v", res.Degraded)
	}
}

func TestRefineModeByKind(t *testing.T) {
	planner := &fakePlanner{plans: map[float64]TravelPlan{48.0: {DurationSeconds: 60}}}
	r := NewRefiner(planner, Config{}, logger.NopLogger{})
	_, err := r.Refine(context.Background(), []model.Assignment{
		assignment("t1", "uav", 48.0, model.CapabilityFull, model.ResourceDrone),
	})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if len(planner.modes) != 1 || planner.modes[0] != "air" {
		t.Fatalf("drone should route in air mode, got %v", planner.modes)
	}
}

func TestRefineEmptyInput(t *testing.T) {
	r := NewRefiner(&fakePlanner{}, Config{}, logger.NopLogger{})
	res, err := r.Refine(context.Background(), nil)
	if err != nil || len(res.Matched) != 0 {
		t.Fatalf("empty input should be a no-op: %v %+v", err, res)
	}
}

func TestRefineGeneratesRouteID(t *testing.T) {
	planner := &fakePlanner{plans: map[float64]TravelPlan{48.0: {DurationSeconds: 60}}}
	r := NewRefiner(planner, Config{}, logger.NopLogger{})
	res, err := r.Refine(context.Background(), []model.Assignment{
		assignment("t1", "a", 48.0, model.CapabilityFull, model.ResourceTeam),
	})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if res.Matched[0].RouteID == "" {
		t.Fatal("refiner should mint a route id when the planner has none")
	}
}
