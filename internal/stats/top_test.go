package stats

import (
	"testing"

	"github.com/verte-zerg/tuimath/internal/model"
)

func TestMostPracticed(t *testing.T) {
	perf := map[model.StrategyID]model.StrategyPerformance{
		"sub_basic":   {Correct: 3, Incorrect: 1, TotalAttempts: 4},
		"add_basic":   {Correct: 2, Incorrect: 2, TotalAttempts: 4},
		"mul_by_five": {Correct: 1, TotalAttempts: 1},
	}
	top := MostPracticed(perf, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 strategies, got %d", len(top))
	}
	if top[0] != "add_basic" || top[1] != "sub_basic" {
		t.Fatalf("unexpected order: %v", top)
	}
}

func TestSelectWeakStrategies(t *testing.T) {
	perf := map[model.StrategyID]model.StrategyPerformance{
		"add_basic":    {Correct: 9, Incorrect: 1, TotalAttempts: 10},
		"div_halving":  {Correct: 1, Incorrect: 3, TotalAttempts: 4},
		"mul_by_nine":  {Correct: 1, Incorrect: 3, TotalAttempts: 4},
		"sub_count_up": {},
	}
	weak := SelectWeakStrategies(perf, 2)
	if len(weak) != 2 || weak[0] != "div_halving" || weak[1] != "mul_by_nine" {
		t.Fatalf("unexpected weak strategies: %v", weak)
	}
	if all := SelectWeakStrategies(perf, 0); len(all) != 3 {
		t.Fatalf("unattempted strategies must be skipped, got %v", all)
	}
}
