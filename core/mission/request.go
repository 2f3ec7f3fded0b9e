package mission

import (
	"fmt"

	"github.com/lcabon/resq/core/model"
	"github.com/lcabon/resq/core/workflow"
)

// Request is an inbound mission request. It is validated before a run
// record exists, so malformed input never enters the checkpoint store.
type Request struct {
	UserID     string               `json:"user_id"`
	Mission    workflow.MissionKind `json:"mission"`
	HazardType string               `json:"hazard_type,omitempty"`
	Severity   int                  `json:"severity,omitempty"`
	Target     *model.Location      `json:"target,omitempty"`
	Text       string               `json:"text,omitempty"`
}

// Validate rejects malformed requests per mission kind.
func (r Request) Validate() error {
	switch r.Mission {
	case workflow.MissionRescue:
		if r.HazardType == "" {
			return fmt.Errorf("rescue mission requires a hazard type")
		}
		if r.Severity < 1 || r.Severity > 5 {
			return fmt.Errorf("severity %d out of range [1,5]", r.Severity)
		}
		if r.Target == nil {
			return fmt.Errorf("rescue mission requires a target location")
		}
	case workflow.MissionScout:
		if r.Target == nil {
			return fmt.Errorf("scout mission requires a target location")
		}
	case workflow.MissionSitrep:
		if r.HazardType == "" {
			return fmt.Errorf("situation report requires a hazard type")
		}
	default:
		return fmt.Errorf("unknown mission kind %q", r.Mission)
	}
	if r.Target != nil {
		if err := r.Target.Validate(); err != nil {
			return err
		}
	}
	return nil
}
