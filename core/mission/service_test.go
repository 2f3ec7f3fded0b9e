package mission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcabon/resq/core/directory"
	"github.com/lcabon/resq/core/dispatch"
	"github.com/lcabon/resq/core/evidence"
	"github.com/lcabon/resq/core/model"
	"github.com/lcabon/resq/core/planner"
	"github.com/lcabon/resq/core/routing"
	"github.com/lcabon/resq/core/workflow"
	"github.com/lcabon/resq/infra/checkpoint"
	infralogger "github.com/lcabon/resq/infra/logger"
)

type fakeDirectory struct {
	resources []model.ResourceCandidate
	err       error
}

func (f *fakeDirectory) ListAvailable(_ context.Context, filter directory.Filter) ([]model.ResourceCandidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.ResourceCandidate
	for _, r := range f.resources {
		if r.Available && filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDirectory) CapabilitiesOf(_ context.Context, id string) ([]string, error) {
	for _, r := range f.resources {
		if r.ID == id {
			return r.Capabilities, nil
		}
	}
	return nil, directory.ErrUnknownResource
}

type fakeTravelPlanner struct{}

func (fakeTravelPlanner) Plan(_ context.Context, origin, dest model.Location, _ string) (routing.TravelPlan, error) {
	km := origin.DistanceKm(dest)
	return routing.TravelPlan{
		RouteID:         "route-fixed",
		DistanceMeters:  km * 1000,
		DurationSeconds: km * 72,
	}, nil
}

type failingTravelPlanner struct{ err error }

func (f failingTravelPlanner) Plan(context.Context, model.Location, model.Location, string) (routing.TravelPlan, error) {
	return routing.TravelPlan{}, f.err
}

type fakeTaskWriter struct {
	tasks  []string
	routes []string
	err    error
}

func (f *fakeTaskWriter) CreateTask(_ context.Context, task model.Task, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	id := "db-" + task.ID
	f.tasks = append(f.tasks, id)
	return id, nil
}

func (f *fakeTaskWriter) CreateRoutePlan(_ context.Context, a model.Assignment) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	id := "rp-" + a.Task.ID
	f.routes = append(f.routes, id)
	return id, nil
}

type fakeSynth struct{ err error }

func (f fakeSynth) Summarize(_ context.Context, rec *workflow.Record) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("%s mission: %d assigned", rec.Mission, len(rec.FinalAssignments())), nil
}

type fakeCommander struct {
	sent    []string
	ackFail bool
}

func (f *fakeCommander) SendCommand(_ context.Context, resourceID, _ string, _ *model.Task) (string, error) {
	id := "cmd-" + resourceID
	f.sent = append(f.sent, id)
	return id, nil
}

func (f *fakeCommander) WaitForAck(_ context.Context, commandID string, _ time.Duration) error {
	if f.ackFail {
		return fmt.Errorf("command %s: ack timeout", commandID)
	}
	return nil
}

type fakeStandards struct{ items []model.StandardItem }

func (f fakeStandards) StandardsFor(_ context.Context, _ []string) (evidence.StandardResult, error) {
	return evidence.StandardResult{Query: "standards query", Items: f.items}, nil
}

type emptyCases struct{}

func (emptyCases) Search(_ context.Context, _, _ string, _ int) ([]evidence.CaseDocument, error) {
	return nil, nil
}

type emptyExtractor struct{}

func (emptyExtractor) Extract(_ context.Context, _ []evidence.CaseDocument) ([]model.CaseMention, error) {
	return nil, nil
}

func floodFleet() []model.ResourceCandidate {
	lyon := model.Location{Lon: 4.83, Lat: 45.76}
	return []model.ResourceCandidate{
		{ID: "drone-1", Kind: model.ResourceDrone, Capabilities: []string{"aerial-imaging"}, Location: &lyon, Available: true},
		{ID: "vessel-1", Kind: model.ResourceVessel, Capabilities: []string{"water-survey", "water-rescue", "victim-search"}, Location: &lyon, Available: true},
		{ID: "team-1", Kind: model.ResourceTeam, Capabilities: []string{"water-rescue", "first-aid", "victim-search", "evacuation", "logistics", "broadcast"}, Location: &lyon, Available: true},
		{ID: "team-2", Kind: model.ResourceTeam, Capabilities: []string{"first-aid", "victim-search", "evacuation", "broadcast", "logistics"}, Location: &lyon, Available: true},
	}
}

func testDeps(t *testing.T, dir directory.Directory, writer *fakeTaskWriter, cmd *fakeCommander) Deps {
	t.Helper()
	pl, err := planner.NewPlanner(planner.DefaultLibrary())
	require.NoError(t, err)
	fuser := evidence.NewFuser(
		fakeStandards{items: []model.StandardItem{
			{Equipment: "life-vest", Quantity: 15},
			{Equipment: "inflatable-boat", Quantity: 4},
			{Equipment: "water-pump", Quantity: 6},
		}},
		emptyCases{}, emptyExtractor{}, evidence.Config{}, infralogger.NopLogger{})
	return Deps{
		Directory:  dir,
		Planner:    pl,
		Matcher:    dispatch.NewMatcher(),
		Refiner:    routing.NewRefiner(fakeTravelPlanner{}, routing.Config{}, infralogger.NopLogger{}),
		Fuser:      fuser,
		Tasks:      writer,
		Synth:      fakeSynth{},
		Commander:  cmd,
		AckTimeout: time.Second,
		Log:        infralogger.NopLogger{},
	}
}

func newTestService(t *testing.T, deps Deps) (*Service, workflow.Store) {
	t.Helper()
	store := checkpoint.NewMemoryStore()
	exec := workflow.NewExecutor(store, infralogger.NopLogger{})
	return NewService(exec, store, deps), store
}

func floodRequest() Request {
	return Request{
		UserID:     "operator-1",
		Mission:    workflow.MissionRescue,
		HazardType: "flood",
		Severity:   4,
		Target:     &model.Location{Lon: 4.85, Lat: 45.75},
		Text:       "river flooding near the old port",
	}
}

func TestRescueMissionEndToEnd(t *testing.T) {
	writer := &fakeTaskWriter{}
	svc, store := newTestService(t, testDeps(t, &fakeDirectory{resources: floodFleet()}, writer, &fakeCommander{}))

	res, err := svc.Start(context.Background(), floodRequest())
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusOK, res.Status)
	assert.NotEmpty(t, res.MatchedResources)
	assert.NotEmpty(t, res.ResponseSummary)
	require.NotNil(t, res.Plan)
	assert.NotEmpty(t, res.Plan.Tasks)
	assert.NotEmpty(t, res.Recommendations)
	assert.Len(t, writer.tasks, len(res.MatchedResources))

	// Every assignment carries a travel estimate after refinement.
	for _, a := range res.MatchedResources {
		require.NotNil(t, a.ETAMinutes)
		assert.NotEmpty(t, a.RouteID)
	}

	// The terminal snapshot is durably stored.
	rec, _, err := store.Load(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusOK, rec.Status)
}

func TestRescueMissionInputErrorsNeverEnterTheStore(t *testing.T) {
	writer := &fakeTaskWriter{}
	svc, _ := newTestService(t, testDeps(t, &fakeDirectory{resources: floodFleet()}, writer, &fakeCommander{}))

	tests := []struct {
		name string
		mut  func(*Request)
	}{
		{"missing hazard", func(r *Request) { r.HazardType = "" }},
		{"severity too low", func(r *Request) { r.Severity = 0 }},
		{"severity too high", func(r *Request) { r.Severity = 6 }},
		{"missing target", func(r *Request) { r.Target = nil }},
		{"bad longitude", func(r *Request) { r.Target = &model.Location{Lon: 200, Lat: 0} }},
		{"unknown mission", func(r *Request) { r.Mission = "patrol" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := floodRequest()
			tt.mut(&req)
			_, err := svc.Start(context.Background(), req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid mission request")
		})
	}
	assert.Empty(t, writer.tasks)
}

func TestRescueMissionNoResourcesFailsRun(t *testing.T) {
	writer := &fakeTaskWriter{}
	svc, _ := newTestService(t, testDeps(t, &fakeDirectory{}, writer, &fakeCommander{}))

	res, err := svc.Start(context.Background(), floodRequest())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusError, res.Status)
	assert.Equal(t, "match_resources", res.FailedStep)
	assert.Contains(t, res.Error, "no resources available")
	// Fail-fast: nothing was persisted after the failing step.
	assert.Empty(t, writer.tasks)
}

func TestRescueMissionRoutingDownKeepsLackReasons(t *testing.T) {
	writer := &fakeTaskWriter{}
	deps := testDeps(t, &fakeDirectory{resources: floodFleet()}, writer, &fakeCommander{})
	deps.Refiner = routing.NewRefiner(
		failingTravelPlanner{err: errors.New("connection refused")},
		routing.Config{}, infralogger.NopLogger{})
	svc, _ := newTestService(t, deps)

	res, err := svc.Start(context.Background(), floodRequest())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusError, res.Status)
	assert.Equal(t, "refine_routes", res.FailedStep)
	assert.Contains(t, res.Error, "no reachable resource")
	assert.Empty(t, res.MatchedResources)

	// Every matched pair surfaces as unmatched with a reason naming the
	// resource that failed to route.
	require.NotEmpty(t, res.UnmatchedResources)
	degraded := 0
	for _, u := range res.UnmatchedResources {
		if !strings.Contains(u.LackReason, "routing failed for resource") {
			continue
		}
		assert.Contains(t, u.LackReason, "connection refused")
		degraded++
	}
	assert.NotZero(t, degraded, "degraded pairs must keep their lack reasons")
	assert.Empty(t, writer.tasks)
}

func TestRescueMissionPersistFailureFailsRun(t *testing.T) {
	writer := &fakeTaskWriter{err: errors.New("db down")}
	svc, _ := newTestService(t, testDeps(t, &fakeDirectory{resources: floodFleet()}, writer, &fakeCommander{}))

	res, err := svc.Start(context.Background(), floodRequest())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusError, res.Status)
	assert.Equal(t, "persist_dispatch", res.FailedStep)
	assert.Empty(t, res.ResponseSummary)
}

func TestScoutMissionCommandsDevice(t *testing.T) {
	cmd := &fakeCommander{}
	svc, _ := newTestService(t, testDeps(t, &fakeDirectory{resources: floodFleet()}, &fakeTaskWriter{}, cmd))

	res, err := svc.Start(context.Background(), Request{
		UserID:  "operator-1",
		Mission: workflow.MissionScout,
		Target:  &model.Location{Lon: 4.85, Lat: 45.75},
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusOK, res.Status)
	require.Len(t, res.MatchedResources, 1)
	assert.Equal(t, "drone-1", res.MatchedResources[0].Resource.ID)
	assert.Equal(t, []string{"cmd-drone-1"}, cmd.sent)
	assert.NotEmpty(t, res.ResponseSummary)
}

func TestScoutMissionAckTimeoutFailsRun(t *testing.T) {
	cmd := &fakeCommander{ackFail: true}
	svc, _ := newTestService(t, testDeps(t, &fakeDirectory{resources: floodFleet()}, &fakeTaskWriter{}, cmd))

	res, err := svc.Start(context.Background(), Request{
		Mission: workflow.MissionScout,
		Target:  &model.Location{Lon: 4.85, Lat: 45.75},
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusError, res.Status)
	assert.Equal(t, "command_devices", res.FailedStep)
}

func TestSitrepMissionSkipsAssignment(t *testing.T) {
	svc, _ := newTestService(t, testDeps(t, &fakeDirectory{}, &fakeTaskWriter{}, &fakeCommander{}))

	res, err := svc.Start(context.Background(), Request{
		UserID:     "operator-1",
		Mission:    workflow.MissionSitrep,
		HazardType: "flood",
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusOK, res.Status)
	assert.Empty(t, res.MatchedResources)
	assert.NotEmpty(t, res.Recommendations)
	assert.NotEmpty(t, res.ResponseSummary)
}

func TestResumeSkipsCompletedSteps(t *testing.T) {
	writer := &fakeTaskWriter{}
	deps := testDeps(t, &fakeDirectory{resources: floodFleet()}, writer, &fakeCommander{})
	svc, store := newTestService(t, deps)

	res, err := svc.Start(context.Background(), floodRequest())
	require.NoError(t, err)
	created := len(writer.tasks)

	// Simulate a crash after persistence: rewind the terminal status and
	// summary, then resume. The completed steps must not repeat their
	// external calls.
	rec, seq, err := store.Load(context.Background(), res.RunID)
	require.NoError(t, err)
	rec.Status = ""
	rec.Summary = ""
	require.NoError(t, store.Save(context.Background(), res.RunID, seq+1, rec))

	resumed, err := svc.Resume(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusOK, resumed.Status)
	assert.NotEmpty(t, resumed.ResponseSummary)
	assert.Len(t, writer.tasks, created, "persisted steps must not re-run on resume")
}

func TestResumeUnknownRun(t *testing.T) {
	svc, _ := newTestService(t, testDeps(t, &fakeDirectory{}, &fakeTaskWriter{}, &fakeCommander{}))
	_, err := svc.Resume(context.Background(), "no-such-run")
	require.ErrorIs(t, err, workflow.ErrNotFound)
}
