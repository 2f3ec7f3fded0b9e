package planner

import (
	"fmt"
	"time"

	"github.com/lcabon/resq/core/model"
)

// Template declares one plannable task. Templates are grouped by mission
// phase and expanded per hazard type and severity.
type Template struct {
	ID           string      `json:"id"`
	Name         string      `json:"name,omitempty"`
	Phase        model.Phase `json:"phase"`
	Capabilities []string    `json:"capabilities"`
	Equipment    []string    `json:"equipment,omitempty"`
	// DurationMinutes is the base task duration; severity scales it.
	DurationMinutes int      `json:"duration_minutes,omitempty"`
	DependsOn       []string `json:"depends_on,omitempty"`
	// Hazards restricts the template to specific hazard types. Empty
	// applies to all.
	Hazards []string `json:"hazards,omitempty"`
	// MinSeverity suppresses the template below this severity.
	MinSeverity int `json:"min_severity,omitempty"`
}

func (t Template) appliesTo(hazardType string, severity int) bool {
	if severity < t.MinSeverity {
		return false
	}
	if len(t.Hazards) == 0 {
		return true
	}
	for _, h := range t.Hazards {
		if h == hazardType {
			return true
		}
	}
	return false
}

func (t Template) task(severity int) model.Task {
	dur := time.Duration(t.DurationMinutes) * time.Minute
	if severity > 3 {
		// High severity stretches work estimates.
		dur += dur / 2
	}
	return model.Task{
		ID:           t.ID,
		Name:         t.Name,
		Phase:        t.Phase,
		Capabilities: t.Capabilities,
		Equipment:    t.Equipment,
		Duration:     dur,
		DependsOn:    t.DependsOn,
	}
}

// Library is the declared template set plus hazard-specific risk rules and
// reference cases.
type Library struct {
	Templates  []Template                       `json:"templates"`
	Risks      map[string][]model.RiskRule      `json:"risks,omitempty"`
	References map[string][]model.ReferenceCase `json:"references,omitempty"`
}

// Validate checks templates have ids and known phases.
func (l Library) Validate() error {
	for _, t := range l.Templates {
		if t.ID == "" {
			return fmt.Errorf("template with empty id")
		}
		if !t.Phase.Valid() {
			return fmt.Errorf("template %s: unknown phase %q", t.ID, t.Phase)
		}
	}
	return nil
}

// DefaultLibrary returns the built-in template set covering the common
// hazard types.
func DefaultLibrary() Library {
	return Library{
		Templates: []Template{
			{ID: "aerial-survey", Name: "Aerial survey of the affected area", Phase: model.PhaseReconnaissance,
				Capabilities: []string{"aerial_recon"}, DurationMinutes: 20},
			{ID: "water-survey", Name: "Waterline survey", Phase: model.PhaseReconnaissance,
				Capabilities: []string{"water_recon", "sonar"}, Hazards: []string{"flood"}, DurationMinutes: 30},
			{ID: "structure-check", Name: "Structural integrity check", Phase: model.PhaseReconnaissance,
				Capabilities: []string{"ground_recon"}, Hazards: []string{"earthquake"}, DurationMinutes: 40},
			{ID: "victim-search", Name: "Victim search", Phase: model.PhaseRescue,
				Capabilities: []string{"search"}, Equipment: []string{"thermal_camera"},
				DependsOn: []string{"aerial-survey"}, DurationMinutes: 60},
			{ID: "water-rescue", Name: "Water rescue", Phase: model.PhaseRescue,
				Capabilities: []string{"water_rescue"}, Equipment: []string{"lifeboat", "life_vest"},
				Hazards: []string{"flood"}, DependsOn: []string{"water-survey"}, DurationMinutes: 90},
			{ID: "medical-response", Name: "On-site medical response", Phase: model.PhaseRescue,
				Capabilities: []string{"medical"}, Equipment: []string{"first_aid_kit"},
				DependsOn: []string{"victim-search"}, DurationMinutes: 120},
			{ID: "evacuation-alert", Name: "Evacuation alert broadcast", Phase: model.PhaseAlert,
				Capabilities: []string{"broadcast"}, DependsOn: []string{"aerial-survey"}, DurationMinutes: 15},
			{ID: "supply-drop", Name: "Relief supply drop", Phase: model.PhaseLogistics,
				Capabilities: []string{"transport"}, Equipment: []string{"relief_kit"},
				DependsOn: []string{"victim-search"}, MinSeverity: 3, DurationMinutes: 45},
		},
		Risks: map[string][]model.RiskRule{
			"flood": {
				{Name: "current", Description: "strong currents near drainage channels", Severity: 3},
				{Name: "contamination", Description: "contaminated standing water", Severity: 2},
			},
			"earthquake": {
				{Name: "aftershock", Description: "aftershocks within 48h", Severity: 4},
			},
		},
	}
}
