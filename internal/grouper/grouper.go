package grouper

import (
	"sort"

	"textdedup/internal/domain"
)

// Result holds one decision per document in traversal order and the
// resolved multi-member groups ordered by their kept member.
type Result struct {
	Decisions []domain.Decision
	Groups    []domain.ResolvedGroup
}

// Dropped returns the set of dropped document identities.
func (r Result) Dropped() map[string]string {
	out := make(map[string]string)
	for _, d := range r.Decisions {
		if d.Verdict == domain.Drop {
			out[d.RelPath] = d.KeptAs
		}
	}
	return out
}

// Resolve keeps, in every group with more than one member, the member that
// comes first in order and drops the rest. Every other document in order is
// kept as unique. Group members missing from order are ignored.
func Resolve(groups []domain.Group, order []string) Result {
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}

	decided := make(map[string]domain.Decision, len(order))
	var resolved []domain.ResolvedGroup
	for _, g := range groups {
		members := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			if _, ok := rank[m]; !ok {
				continue
			}
			if _, done := decided[m]; done {
				continue
			}
			members = append(members, m)
		}
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool { return rank[members[i]] < rank[members[j]] })
		kept := members[0]
		decided[kept] = domain.Decision{RelPath: kept, Verdict: domain.Keep, Reason: domain.ReasonRepresentative}
		for _, m := range members[1:] {
			decided[m] = domain.Decision{RelPath: m, Verdict: domain.Drop, Reason: domain.ReasonDuplicate, KeptAs: kept}
		}
		resolved = append(resolved, domain.ResolvedGroup{Members: members, Kept: kept})
	}
	sort.SliceStable(resolved, func(i, j int) bool { return rank[resolved[i].Kept] < rank[resolved[j].Kept] })

	res := Result{Decisions: make([]domain.Decision, 0, len(order)), Groups: resolved}
	for _, id := range order {
		d, ok := decided[id]
		if !ok {
			d = domain.Decision{RelPath: id, Verdict: domain.Keep, Reason: domain.ReasonUnique}
		}
		res.Decisions = append(res.Decisions, d)
	}
	return res
}
