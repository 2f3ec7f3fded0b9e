package planner

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"

	"github.com/lcabon/resq/core/model"
)

// DuplicateTaskError reports two templates declaring the same task id. It is
// an input error, detected before graph construction.
type DuplicateTaskError struct {
	ID string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("duplicate task id %s", e.ID)
}

// CycleError reports a dependency cycle, naming every task that was never
// emitted.
type CycleError struct {
	TaskIDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle among tasks %s", strings.Join(e.TaskIDs, ", "))
}

// Planner expands a hazard type and severity into an ordered,
// dependency-respecting task list from the declared templates.
type Planner struct {
	lib Library
}

// NewPlanner builds a planner over the library.
func NewPlanner(lib Library) (*Planner, error) {
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	return &Planner{lib: lib}, nil
}

// Plan selects the applicable templates and orders them by dependency, with
// ready tasks emitted in phase order (reconnaissance before rescue before
// alert before logistics) and by id among equals.
func (p *Planner) Plan(hazardType string, severity int, at *model.Location) (*model.HazardPlan, error) {
	var selected []Template
	for _, t := range p.lib.Templates {
		if t.appliesTo(hazardType, severity) {
			selected = append(selected, t)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no task templates for hazard %q severity %d", hazardType, severity)
	}

	byID := make(map[string]Template, len(selected))
	for _, t := range selected {
		if _, ok := byID[t.ID]; ok {
			return nil, &DuplicateTaskError{ID: t.ID}
		}
		byID[t.ID] = t
	}

	// Build the dependency graph. Dependencies on templates filtered out by
	// hazard or severity are dropped rather than blocking the plan.
	indegree := make(map[string]int, len(selected))
	dependents := make(map[string][]string)
	for _, t := range selected {
		indegree[t.ID] = 0
	}
	for _, t := range selected {
		for _, dep := range t.DependsOn {
			if _, ok := byID[dep]; !ok {
				continue
			}
			indegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	ready := &taskHeap{}
	heap.Init(ready)
	for id, deg := range indegree {
		if deg == 0 {
			heap.Push(ready, heapKey{rank: byID[id].Phase.Rank(), id: id})
		}
	}

	tasks := make([]model.Task, 0, len(selected))
	for ready.Len() > 0 {
		key := heap.Pop(ready).(heapKey)
		task := byID[key.id].task(severity)
		task.Location = at
		tasks = append(tasks, task)
		for _, dep := range dependents[key.id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				heap.Push(ready, heapKey{rank: byID[dep].Phase.Rank(), id: dep})
			}
		}
	}

	if len(tasks) < len(selected) {
		emitted := make(map[string]bool, len(tasks))
		for _, t := range tasks {
			emitted[t.ID] = true
		}
		var stuck []string
		for id := range byID {
			if !emitted[id] {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, &CycleError{TaskIDs: stuck}
	}

	return &model.HazardPlan{
		HazardType: hazardType,
		Severity:   severity,
		Tasks:      tasks,
		Risks:      p.lib.Risks[hazardType],
		References: p.lib.References[hazardType],
	}, nil
}

type heapKey struct {
	rank int
	id   string
}

type taskHeap []heapKey

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].rank != h[j].rank {
		return h[i].rank < h[j].rank
	}
	return h[i].id < h[j].id
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(heapKey)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
