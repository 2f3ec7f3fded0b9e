package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Phase orders tasks within a hazard plan. Reconnaissance always precedes
// rescue, rescue precedes alerting and logistics runs last.
type Phase string

const (
	PhaseReconnaissance Phase = "reconnaissance"
	PhaseRescue         Phase = "rescue"
	PhaseAlert          Phase = "alert"
	PhaseLogistics      Phase = "logistics"
)

// Rank returns the ordering weight of the phase. Unknown phases sort last.
func (p Phase) Rank() int {
	switch p {
	case PhaseReconnaissance:
		return 0
	case PhaseRescue:
		return 1
	case PhaseAlert:
		return 2
	case PhaseLogistics:
		return 3
	default:
		return 4
	}
}

// Valid reports whether the phase is one of the four known phases.
func (p Phase) Valid() bool { return p.Rank() < 4 }

const earthRadiusKm = 6371.0

// Location is a WGS84 coordinate pair.
type Location struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// DistanceKm returns the great-circle distance to other in kilometers using
// the haversine formula.
func (l Location) DistanceKm(other Location) float64 {
	lat1 := l.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - l.Lat) * math.Pi / 180
	dLon := (other.Lon - l.Lon) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// Validate checks the coordinates are on the globe.
func (l Location) Validate() error {
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", l.Lat)
	}
	if l.Lon < -180 || l.Lon > 180 {
		return fmt.Errorf("longitude %v out of range", l.Lon)
	}
	return nil
}

// Task is one unit of dispatchable work produced by the hazard planner.
type Task struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Phase        Phase         `json:"phase"`
	Capabilities []string      `json:"capabilities"`
	Equipment    []string      `json:"equipment,omitempty"`
	Location     *Location     `json:"location,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	DependsOn    []string      `json:"depends_on,omitempty"`
}

// Validate checks the task is dispatchable.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if !t.Phase.Valid() {
		return fmt.Errorf("task %s: unknown phase %q", t.ID, t.Phase)
	}
	for _, c := range t.Capabilities {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("task %s: empty capability name", t.ID)
		}
	}
	if t.Location != nil {
		if err := t.Location.Validate(); err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
	}
	return nil
}

// NormalizeCapability lowercases a capability name for case-insensitive
// matching.
func NormalizeCapability(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
