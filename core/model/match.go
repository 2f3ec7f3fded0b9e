package model

// CapabilityMatch summarizes how completely a candidate covers a task's
// required capabilities.
type CapabilityMatch string

const (
	CapabilityFull    CapabilityMatch = "full"
	CapabilityPartial CapabilityMatch = "partial"
	CapabilityNone    CapabilityMatch = "none"
)

// MatchScore is the derived score for one (task, candidate) pair. It is
// recomputed per run and only persisted as part of the execution record.
type MatchScore struct {
	TaskID     string `json:"task_id"`
	ResourceID string `json:"resource_id"`

	CapabilityCoverage float64         `json:"capability_coverage"`
	CapabilityMatch    CapabilityMatch `json:"capability_match"`
	EquipmentScore     float64         `json:"equipment_score"`
	// DistanceKm is nil when either side has no location; it is never
	// assumed zero.
	DistanceKm *float64 `json:"distance_km,omitempty"`
	Composite  float64  `json:"composite"`

	LackingCapabilities []string `json:"lacking_capabilities,omitempty"`
}

// Assignment binds a task to the candidate that won the match, optionally
// refined with a real travel estimate.
type Assignment struct {
	Task     Task              `json:"task"`
	Resource ResourceCandidate `json:"resource"`
	Score    MatchScore        `json:"score"`

	// Route fields are populated by the route refiner.
	ETAMinutes *float64 `json:"eta_minutes,omitempty"`
	RouteID    string   `json:"route_id,omitempty"`
	RouteKm    *float64 `json:"route_km,omitempty"`
}

// UnmatchedTask records a task that could not be assigned, with a reason an
// operator can act on.
type UnmatchedTask struct {
	Task       Task     `json:"task"`
	LackReason string   `json:"lack_reason"`
	Lacking    []string `json:"lacking,omitempty"`
}
