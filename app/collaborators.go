package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lcabon/resq/core/evidence"
	"github.com/lcabon/resq/core/mission"
	"github.com/lcabon/resq/core/model"
	"github.com/lcabon/resq/core/workflow"
)

// Collaborators are the external services the pipelines call out to.
// Nil fields fall back to the local defaults below, so the binary runs
// standalone; deployments inject their real backends.
type Collaborators struct {
	Standards evidence.StandardSource
	Cases     evidence.CaseSource
	Extractor evidence.Extractor
	Tasks     mission.TaskWriter
	Synth     mission.Synthesizer
}

func (c *Collaborators) setDefaults() {
	if c.Standards == nil {
		c.Standards = builtinStandards{}
	}
	if c.Cases == nil {
		c.Cases = emptyCaseSource{}
	}
	if c.Extractor == nil {
		c.Extractor = emptyExtractor{}
	}
	if c.Tasks == nil {
		c.Tasks = &memoryTaskWriter{}
	}
	if c.Synth == nil {
		c.Synth = templateSynthesizer{}
	}
}

// builtinStandards serves a small built-in equipment table per hazard,
// enough to operate without a knowledge-graph backend.
type builtinStandards struct{}

var standardTable = map[string][]model.StandardItem{
	"flood": {
		{Equipment: "life-vest", Quantity: 20, Urgency: 2},
		{Equipment: "inflatable-boat", Quantity: 4, Urgency: 2},
		{Equipment: "water-pump", Quantity: 6, Urgency: 1},
		{Equipment: "sandbag", Quantity: 500, Urgency: 1},
	},
	"earthquake": {
		{Equipment: "hydraulic-cutter", Quantity: 3, Urgency: 2},
		{Equipment: "thermal-camera", Quantity: 5, Urgency: 2},
		{Equipment: "medical-kit", Quantity: 30, Urgency: 2},
		{Equipment: "tent", Quantity: 50, Urgency: 1},
	},
}

func (builtinStandards) StandardsFor(_ context.Context, hazardTypes []string) (evidence.StandardResult, error) {
	var items []model.StandardItem
	for _, h := range hazardTypes {
		items = append(items, standardTable[strings.ToLower(h)]...)
	}
	return evidence.StandardResult{
		Query: fmt.Sprintf("builtin standards for %s", strings.Join(hazardTypes, ",")),
		Items: items,
	}, nil
}

type emptyCaseSource struct{}

func (emptyCaseSource) Search(context.Context, string, string, int) ([]evidence.CaseDocument, error) {
	return nil, nil
}

type emptyExtractor struct{}

func (emptyExtractor) Extract(context.Context, []evidence.CaseDocument) ([]model.CaseMention, error) {
	return nil, nil
}

// memoryTaskWriter mints ids locally. It stands in for the task store
// until one is injected.
type memoryTaskWriter struct{}

func (memoryTaskWriter) CreateTask(_ context.Context, _ model.Task, _ string) (string, error) {
	return uuid.NewString(), nil
}

func (memoryTaskWriter) CreateRoutePlan(_ context.Context, _ model.Assignment) (string, error) {
	return uuid.NewString(), nil
}

// templateSynthesizer renders a plain-text summary from the record
// without calling a generation backend.
type templateSynthesizer struct{}

func (templateSynthesizer) Summarize(_ context.Context, rec *workflow.Record) (string, error) {
	var b strings.Builder
	switch rec.Mission {
	case workflow.MissionSitrep:
		fmt.Fprintf(&b, "Situation report for %s.", rec.HazardType)
	case workflow.MissionScout:
		b.WriteString("Scout mission dispatched.")
	default:
		fmt.Fprintf(&b, "Rescue mission for %s (severity %d).", rec.HazardType, rec.Severity)
	}
	assigned := rec.FinalAssignments()
	if len(assigned) > 0 {
		names := make([]string, len(assigned))
		for i, a := range assigned {
			names[i] = fmt.Sprintf("%s->%s", a.Task.ID, a.Resource.ID)
		}
		fmt.Fprintf(&b, " Assigned: %s.", strings.Join(names, ", "))
	}
	if un := rec.AllUnmatched(); len(un) > 0 {
		fmt.Fprintf(&b, " %d task(s) unassigned.", len(un))
	}
	if rec.Evidence != nil && len(rec.Evidence.Recommendations) > 0 {
		fmt.Fprintf(&b, " %d equipment recommendation(s).", len(rec.Evidence.Recommendations))
	}
	return b.String(), nil
}
