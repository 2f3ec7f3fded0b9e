package routing

import (
	"context"
	"fmt"

	"github.com/lcabon/resq/core/model"
)

// TravelPlan is one routed leg returned by the routing collaborator.
type TravelPlan struct {
	RouteID         string  `json:"route_id,omitempty"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	CacheHit        bool    `json:"cache_hit"`
}

// ETAMinutes converts the leg duration to minutes.
func (p TravelPlan) ETAMinutes() float64 { return p.DurationSeconds / 60 }

// Planner produces travel plans between two coordinates for a transport
// mode. Implementations live in infra; they must honor the context deadline
// and return a *TransportError on network or HTTP failure.
type Planner interface {
	Plan(ctx context.Context, origin, destination model.Location, mode string) (TravelPlan, error)
}

// TransportError marks a collaborator call that failed at the transport
// level (network, timeout, non-2xx). The refiner degrades such pairs
// instead of aborting the run.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("routing %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
