package model

import "fmt"

// ResourceKind distinguishes the dispatchable units known to the directory.
type ResourceKind string

const (
	ResourceTeam   ResourceKind = "team"
	ResourceDrone  ResourceKind = "drone"
	ResourceRobot  ResourceKind = "robot_dog"
	ResourceVessel ResourceKind = "vessel"
)

// ResourceCandidate is a team or device eligible for dispatch. It is a
// read-only view owned by the resource directory; the matcher never mutates
// it.
type ResourceCandidate struct {
	ID           string       `json:"id"`
	Name         string       `json:"name,omitempty"`
	Kind         ResourceKind `json:"kind,omitempty"`
	Capabilities []string     `json:"capabilities"`
	Equipment    []string     `json:"equipment,omitempty"`
	Location     *Location    `json:"location,omitempty"`
	Available    bool         `json:"available"`

	// Metadata carries transport-specific details such as the MQTT command
	// topic of a device.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks the candidate can be offered to the matcher.
func (r ResourceCandidate) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("resource id is required")
	}
	if r.Location != nil {
		if err := r.Location.Validate(); err != nil {
			return fmt.Errorf("resource %s: %w", r.ID, err)
		}
	}
	return nil
}

// HasCapability reports whether the candidate declares the capability,
// case-insensitively.
func (r ResourceCandidate) HasCapability(name string) bool {
	want := NormalizeCapability(name)
	for _, c := range r.Capabilities {
		if NormalizeCapability(c) == want {
			return true
		}
	}
	return false
}
