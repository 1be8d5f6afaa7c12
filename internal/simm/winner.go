package simm

import (
	"math"
	"sort"
)

// DefaultRegulationPriority is the tie-break order applied when several
// regulations demand margins within tolerance of each other.
func DefaultRegulationPriority() []string {
	return []string{
		"ESA", "USPR", "CFTC", "SEC", "SEC-unseg",
		"FINMA", "KFSC", "HKMA", "JFSA", "MAS", "OSFI", "RBI",
	}
}

// winningRegulation picks the regulation with the highest portfolio
// margin. Margins within relative tolerance of the maximum tie, and
// ties resolve by priority order; regulations missing from the
// priority list rank last, alphabetically.
func winningRegulation(margins map[string]float64, priority []string) string {
	best := math.Inf(-1)
	for _, im := range margins {
		if im > best {
			best = im
		}
	}

	candidates := make([]string, 0, len(margins))
	for reg, im := range margins {
		if closeEnough(im, best) {
			candidates = append(candidates, reg)
		}
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	rank := make(map[string]int, len(priority))
	for i, reg := range priority {
		rank[reg] = i
	}
	sort.Slice(candidates, func(i, j int) bool {
		ri, ok := rank[candidates[i]]
		if !ok {
			ri = len(priority)
		}
		rj, ok := rank[candidates[j]]
		if !ok {
			rj = len(priority)
		}
		if ri != rj {
			return ri < rj
		}
		return candidates[i] < candidates[j]
	})
	return candidates[0]
}
