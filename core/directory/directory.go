package directory

import (
	"context"
	"fmt"

	"github.com/lcabon/resq/core/model"
)

// Filter narrows a listing. Zero value matches every available resource.
type Filter struct {
	Kinds        []model.ResourceKind
	Capabilities []string
}

// Matches reports whether a candidate satisfies the filter.
func (f Filter) Matches(c model.ResourceCandidate) bool {
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if c.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, cap := range f.Capabilities {
		if !c.HasCapability(cap) {
			return false
		}
	}
	return true
}

// Directory exposes the fleet of deployable resources.
type Directory interface {
	// ListAvailable returns the resources currently marked available,
	// filtered, in a stable order.
	ListAvailable(ctx context.Context, f Filter) ([]model.ResourceCandidate, error)
	// CapabilitiesOf returns the capability set of one resource.
	CapabilitiesOf(ctx context.Context, id string) ([]string, error)
}

// ErrUnknownResource is wrapped by CapabilitiesOf for ids the directory
// has never seen.
var ErrUnknownResource = fmt.Errorf("unknown resource")
