package dispatch

import (
	"strings"
	"testing"

	"github.com/lcabon/resq/core/model"
)

// Scenario: the same candidate is the best match for two tasks with scores
// above the reuse threshold, so it serves both.
func TestAssignReusesNearPerfectResource(t *testing.T) {
	m := Matcher{Weights: Weights{Capability: 1}, ScoreCutoff: 0.1, ReuseThreshold: 0.85}
	tasks := []model.Task{
		{ID: "t1", Phase: model.PhaseRescue, Capabilities: []string{"water_rescue"}},
		{ID: "t2", Phase: model.PhaseRescue, Capabilities: []string{"water_rescue"}},
	}
	cands := []model.ResourceCandidate{
		{ID: "boat", Capabilities: []string{"water_rescue"}, Available: true},
	}
	assignments, unmatched := m.Assign(tasks, cands)
	if len(unmatched) != 0 {
		t.Fatalf("unexpected unmatched: %+v", unmatched)
	}
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assignments))
	}
	for _, a := range assignments {
		if a.Resource.ID != "boat" {
			t.Fatalf("both tasks should share the boat, got %s", a.Resource.ID)
		}
	}
}

func TestAssignBlocksReuseBelowThreshold(t *testing.T) {
	// Coverage 1 on a 0.6 capability weight gives composite 0.6, below the
	// 0.85 reuse threshold.
	m := Matcher{Weights: DefaultWeights(), ScoreCutoff: 0.1, ReuseThreshold: 0.85}
	tasks := []model.Task{
		{ID: "t1", Phase: model.PhaseRescue, Capabilities: []string{"water_rescue"}},
		{ID: "t2", Phase: model.PhaseRescue, Capabilities: []string{"water_rescue"}},
	}
	cands := []model.ResourceCandidate{
		{ID: "boat", Capabilities: []string{"water_rescue"}, Available: true},
	}
	assignments, unmatched := m.Assign(tasks, cands)
	if len(assignments) != 1 || assignments[0].Task.ID != "t1" {
		t.Fatalf("only the first task should be assigned: %+v", assignments)
	}
	if len(unmatched) != 1 || unmatched[0].Task.ID != "t2" {
		t.Fatalf("second task should be unmatched: %+v", unmatched)
	}
	if !strings.Contains(unmatched[0].LackReason, "reuse threshold") {
		t.Fatalf("lack reason should mention the reuse threshold: %q", unmatched[0].LackReason)
	}
}

func TestAssignFallsBackToSecondBest(t *testing.T) {
	m := Matcher{Weights: DefaultWeights(), ScoreCutoff: 0.1, ReuseThreshold: 0.85}
	tasks := []model.Task{
		{ID: "t1", Phase: model.PhaseRescue, Capabilities: []string{"water_rescue"}},
		{ID: "t2", Phase: model.PhaseRescue, Capabilities: []string{"water_rescue"}},
	}
	cands := []model.ResourceCandidate{
		{ID: "boat-a", Capabilities: []string{"water_rescue"}, Available: true},
		{ID: "boat-b", Capabilities: []string{"water_rescue"}, Available: true},
	}
	assignments, unmatched := m.Assign(tasks, cands)
	if len(unmatched) != 0 {
		t.Fatalf("unexpected unmatched: %+v", unmatched)
	}
	if assignments[0].Resource.ID != "boat-a" || assignments[1].Resource.ID != "boat-b" {
		t.Fatalf("expected distinct boats, got %s and %s",
			assignments[0].Resource.ID, assignments[1].Resource.ID)
	}
}

func TestAssignReportsCapabilityGap(t *testing.T) {
	m := NewMatcher()
	tasks := []model.Task{
		{ID: "t1", Phase: model.PhaseRescue, Capabilities: []string{"heavy_lift"}},
	}
	cands := []model.ResourceCandidate{
		{ID: "drone", Capabilities: []string{"aerial_recon"}, Available: true},
	}
	assignments, unmatched := m.Assign(tasks, cands)
	if len(assignments) != 0 {
		t.Fatalf("unexpected assignment: %+v", assignments)
	}
	if len(unmatched) != 1 {
		t.Fatalf("expected 1 unmatched task, got %d", len(unmatched))
	}
	if !strings.Contains(unmatched[0].LackReason, "heavy_lift") {
		t.Fatalf("lack reason should name the missing capability: %q", unmatched[0].LackReason)
	}
	if len(unmatched[0].Lacking) != 1 || unmatched[0].Lacking[0] != "heavy_lift" {
		t.Fatalf("lacking list wrong: %v", unmatched[0].Lacking)
	}
}

func TestAssignNoResources(t *testing.T) {
	m := NewMatcher()
	tasks := []model.Task{{ID: "t1", Phase: model.PhaseRescue}}
	_, unmatched := m.Assign(tasks, nil)
	if len(unmatched) != 1 || unmatched[0].LackReason != "no available resources" {
		t.Fatalf("unexpected unmatched: %+v", unmatched)
	}
}

func TestAssignDoesNotAbortOnGap(t *testing.T) {
	m := NewMatcher()
	tasks := []model.Task{
		{ID: "t1", Phase: model.PhaseReconnaissance, Capabilities: []string{"impossible"}},
		{ID: "t2", Phase: model.PhaseRescue, Capabilities: []string{"medical"}},
	}
	cands := []model.ResourceCandidate{
		{ID: "medic", Capabilities: []string{"medical"}, Available: true},
	}
	assignments, unmatched := m.Assign(tasks, cands)
	if len(assignments) != 1 || assignments[0].Task.ID != "t2" {
		t.Fatalf("later task should still be assigned: %+v", assignments)
	}
	if len(unmatched) != 1 || unmatched[0].Task.ID != "t1" {
		t.Fatalf("first task should surface as a gap: %+v", unmatched)
	}
}
