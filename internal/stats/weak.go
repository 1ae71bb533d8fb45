package stats

import (
	"sort"

	"github.com/verte-zerg/tuimath/internal/model"
)

// SelectWeakStrategies returns the attempted strategies with the lowest
// accuracy, weakest first. top <= 0 returns all of them.
func SelectWeakStrategies(perf map[model.StrategyID]model.StrategyPerformance, top int) []model.StrategyID {
	candidates := make([]model.StrategyID, 0, len(perf))
	for id, p := range perf {
		if p.TotalAttempts > 0 {
			candidates = append(candidates, id)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ai := perf[candidates[i]].Accuracy()
		aj := perf[candidates[j]].Accuracy()
		if ai == aj {
			return candidates[i] < candidates[j]
		}
		return ai < aj
	})
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	return candidates[:top]
}

func sortRowsByAccuracy(rows []StrategyRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		ai, aj := rows[i].Accuracy(), rows[j].Accuracy()
		if ai == aj {
			return rows[i].ID < rows[j].ID
		}
		return ai < aj
	})
}
