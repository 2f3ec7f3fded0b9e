package dispatch

import (
	"fmt"
	"strings"

	"github.com/lcabon/resq/core/model"
)

// Assign walks the plan's tasks in order and picks the best eligible
// candidate for each. A resource assigned to an earlier task is excluded
// from later ones unless the new composite score meets the reuse threshold.
// Tasks with no eligible candidate are reported as unmatched and never abort
// the assignment; the gap surfaces for the operator instead.
func (m Matcher) Assign(tasks []model.Task, cands []model.ResourceCandidate) ([]model.Assignment, []model.UnmatchedTask) {
	byID := make(map[string]model.ResourceCandidate, len(cands))
	for _, c := range cands {
		byID[c.ID] = c
	}
	used := make(map[string]bool)

	var (
		assignments []model.Assignment
		unmatched   []model.UnmatchedTask
	)
	for _, task := range tasks {
		ranked := m.Rank(task, cands)
		picked := false
		busy := false
		for _, sc := range ranked {
			if sc.Composite < m.ScoreCutoff {
				// Ranked descending: nothing further is eligible.
				break
			}
			if used[sc.ResourceID] && sc.Composite < m.ReuseThreshold {
				busy = true
				continue
			}
			assignments = append(assignments, model.Assignment{
				Task:     task,
				Resource: byID[sc.ResourceID],
				Score:    sc,
			})
			used[sc.ResourceID] = true
			picked = true
			break
		}
		if !picked {
			unmatched = append(unmatched, model.UnmatchedTask{
				Task:       task,
				LackReason: m.lackReason(task, ranked, busy),
				Lacking:    commonLacking(ranked),
			})
		}
	}
	return assignments, unmatched
}

func (m Matcher) lackReason(task model.Task, ranked []model.MatchScore, busy bool) string {
	if len(ranked) == 0 {
		return "no available resources"
	}
	if busy {
		return fmt.Sprintf("eligible resources already assigned and below reuse threshold %.2f", m.ReuseThreshold)
	}
	if len(task.Capabilities) > 0 {
		if lack := commonLacking(ranked); len(lack) > 0 {
			return fmt.Sprintf("no available resource provides %s", strings.Join(lack, ", "))
		}
	}
	return fmt.Sprintf("no candidate reached score cutoff %.2f", m.ScoreCutoff)
}

// commonLacking returns the capabilities missing from every ranked
// candidate.
func commonLacking(ranked []model.MatchScore) []string {
	if len(ranked) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, sc := range ranked {
		for _, c := range sc.LackingCapabilities {
			counts[c]++
		}
	}
	var out []string
	for _, c := range ranked[0].LackingCapabilities {
		if counts[c] == len(ranked) {
			out = append(out, c)
		}
	}
	return out
}
