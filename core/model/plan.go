package model

// RiskRule is an operator-facing caution attached to a hazard plan.
type RiskRule struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Severity    int    `json:"severity,omitempty"`
}

// ReferenceCase points to a historical incident consulted while planning.
type ReferenceCase struct {
	SourceID string `json:"source_id"`
	Title    string `json:"title,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// HazardPlan is the ordered, dependency-respecting task list for one hazard
// type and severity. It is immutable once produced for a run.
type HazardPlan struct {
	HazardType string          `json:"hazard_type"`
	Severity   int             `json:"severity"`
	Tasks      []Task          `json:"tasks"`
	Risks      []RiskRule      `json:"risks,omitempty"`
	References []ReferenceCase `json:"references,omitempty"`
}

// TaskByID returns the plan task with the given id, or nil.
func (p *HazardPlan) TaskByID(id string) *Task {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return &p.Tasks[i]
		}
	}
	return nil
}
