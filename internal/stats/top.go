package stats

import (
	"sort"

	"github.com/verte-zerg/tuimath/internal/model"
)

// MostPracticed returns the n strategies with the most attempts.
func MostPracticed(perf map[model.StrategyID]model.StrategyPerformance, n int) []model.StrategyID {
	if n <= 0 || len(perf) == 0 {
		return nil
	}
	ids := make([]model.StrategyID, 0, len(perf))
	for id := range perf {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := perf[ids[i]].TotalAttempts, perf[ids[j]].TotalAttempts
		if ti == tj {
			return ids[i] < ids[j]
		}
		return ti > tj
	})
	if n > len(ids) {
		n = len(ids)
	}
	return ids[:n]
}
