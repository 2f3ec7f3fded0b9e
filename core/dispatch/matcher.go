package dispatch

import (
	"sort"

	"github.com/lcabon/resq/core/model"
)

// Matcher scores and ranks resource candidates against a task's
// requirements. It never mutates candidates; all derived values live in the
// returned MatchScore.
type Matcher struct {
	Weights        Weights
	ScoreCutoff    float64
	ReuseThreshold float64
}

// NewMatcher returns a matcher with the default policy.
func NewMatcher() Matcher {
	cfg := Config{}
	cfg.SetDefaults()
	return Matcher{Weights: cfg.Weights, ScoreCutoff: cfg.ScoreCutoff, ReuseThreshold: cfg.ReuseThreshold}
}

// NewMatcherFromConfig builds a matcher from validated configuration.
func NewMatcherFromConfig(cfg Config) (Matcher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Matcher{}, err
	}
	return Matcher{Weights: cfg.Weights, ScoreCutoff: cfg.ScoreCutoff, ReuseThreshold: cfg.ReuseThreshold}, nil
}

// Score computes the match score for one (task, candidate) pair.
func (m Matcher) Score(task model.Task, cand model.ResourceCandidate) model.MatchScore {
	score := model.MatchScore{TaskID: task.ID, ResourceID: cand.ID}

	// Capability coverage. An empty requirement set is fully covered by
	// every candidate.
	if len(task.Capabilities) == 0 {
		score.CapabilityCoverage = 1
	} else {
		matched := 0
		for _, req := range task.Capabilities {
			if cand.HasCapability(req) {
				matched++
			} else {
				score.LackingCapabilities = append(score.LackingCapabilities, model.NormalizeCapability(req))
			}
		}
		score.CapabilityCoverage = float64(matched) / float64(len(task.Capabilities))
	}
	switch {
	case score.CapabilityCoverage == 1:
		score.CapabilityMatch = model.CapabilityFull
	case score.CapabilityCoverage == 0:
		score.CapabilityMatch = model.CapabilityNone
	default:
		score.CapabilityMatch = model.CapabilityPartial
	}

	// Equipment score. No required equipment means the factor contributes
	// nothing.
	if len(task.Equipment) > 0 {
		have := make(map[string]bool, len(cand.Equipment))
		for _, e := range cand.Equipment {
			have[model.NormalizeCapability(e)] = true
		}
		matched := 0
		for _, req := range task.Equipment {
			if have[model.NormalizeCapability(req)] {
				matched++
			}
		}
		score.EquipmentScore = float64(matched) / float64(len(task.Equipment))
	}

	// Distance score. A missing location on either side reports no distance
	// rather than assuming zero.
	distScore := 0.0
	if task.Location != nil && cand.Location != nil {
		km := cand.Location.DistanceKm(*task.Location)
		score.DistanceKm = &km
		distScore = 1 / (1 + km)
	}

	score.Composite = score.CapabilityCoverage*m.Weights.Capability +
		score.EquipmentScore*m.Weights.Equipment +
		distScore*m.Weights.Distance
	return score
}

// Rank scores every available candidate and returns the scores ordered best
// first. Ties on composite score prefer the smaller distance; remaining ties
// keep directory iteration order.
func (m Matcher) Rank(task model.Task, cands []model.ResourceCandidate) []model.MatchScore {
	scores := make([]model.MatchScore, 0, len(cands))
	for _, c := range cands {
		if !c.Available {
			continue
		}
		scores = append(scores, m.Score(task, c))
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Composite != scores[j].Composite {
			return scores[i].Composite > scores[j].Composite
		}
		return lessDistance(scores[i].DistanceKm, scores[j].DistanceKm)
	})
	return scores
}

// lessDistance orders known distances ascending; an unknown distance sorts
// after any known one.
func lessDistance(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}
