// Package generator builds practice problem sequences.
package generator

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/tuimath/internal/model"
	"github.com/verte-zerg/tuimath/internal/strategy"
)

// DefaultWeakFactor is the extra weight a strategy with zero accuracy receives.
const DefaultWeakFactor = 2.0

// Generator produces randomized problem sets.
type Generator struct {
	rnd   *rand.Rand
	newID func() string
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic Generator.
func NewWithSeed(seed int64) *Generator {
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		newID: func() string { return uuid.New().String() },
	}
}

// Request describes the problem set to build.
type Request struct {
	Preferences model.Preferences
	Performance map[model.StrategyID]model.StrategyPerformance
	// Focus restricts every problem to one strategy and its operation.
	Focus      *model.StrategyID
	WeakFactor float64
}

// Generate builds Preferences.SessionLength uncompleted problems.
func (g *Generator) Generate(req Request) []model.Problem {
	count := req.Preferences.SessionLength
	maxNumber := req.Preferences.MaxNumber
	ops := req.Preferences.Operations.Enabled()
	if len(ops) == 0 {
		ops = []model.Operation{model.OpAddition}
	}

	var focus *strategy.Strategy
	if req.Focus != nil {
		if s, ok := strategy.Lookup(*req.Focus); ok {
			focus = &s
		}
	}

	problems := make([]model.Problem, 0, count)
	for i := 0; i < count; i++ {
		var chosen strategy.Strategy
		switch {
		case focus != nil && focus.Applicable(maxNumber):
			chosen = *focus
		case focus != nil:
			chosen = g.PickStrategy(strategy.Applicable(focus.Operation, maxNumber), req.Performance, req.WeakFactor)
		default:
			op := ops[g.rnd.Intn(len(ops))]
			chosen = g.PickStrategy(strategy.Applicable(op, maxNumber), req.Performance, req.WeakFactor)
		}
		problems = append(problems, g.build(chosen, maxNumber))
	}
	return problems
}

// PickStrategy selects one candidate with a bias toward low historical accuracy.
// An empty candidate list yields the addition fallback.
func (g *Generator) PickStrategy(candidates []strategy.Strategy, perf map[model.StrategyID]model.StrategyPerformance, factor float64) strategy.Strategy {
	if len(candidates) == 0 {
		return strategy.Basic(model.OpAddition)
	}
	weights := Weights(candidates, perf, factor)
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := g.rnd.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// unattemptedAccuracy places untried strategies between mastered and failed
// ones. A profile with no attempts still selects uniformly.
const unattemptedAccuracy = 0.5

// Weights returns 1 + factor*(1-accuracy) per candidate.
func Weights(candidates []strategy.Strategy, perf map[model.StrategyID]model.StrategyPerformance, factor float64) []float64 {
	if factor < 0 {
		factor = 0
	}
	weights := make([]float64, len(candidates))
	for i, s := range candidates {
		acc := unattemptedAccuracy
		if p := perf[s.ID]; p.TotalAttempts > 0 {
			acc = p.Accuracy()
		}
		weights[i] = 1.0 + factor*(1.0-acc)
	}
	return weights
}

func (g *Generator) build(s strategy.Strategy, maxNumber int) model.Problem {
	operands, ok := s.Generate(g.rnd, maxNumber)
	if !ok {
		s = strategy.Basic(s.Operation)
		operands, ok = s.Generate(g.rnd, maxNumber)
		if !ok {
			s = strategy.Basic(model.OpAddition)
			operands = [2]int{1, 1}
		}
	}
	return model.Problem{
		ID:               g.newID(),
		Type:             s.Operation,
		Operands:         operands,
		CorrectAnswer:    strategy.Answer(s.Operation, operands[0], operands[1]),
		IntendedStrategy: s.ID,
	}
}
