// Package strategy catalogs the mental-calculation strategies problems are built around.
package strategy

import (
	"math/rand"

	"github.com/verte-zerg/tuimath/internal/model"
)

// Strategy identifiers.
const (
	AddBasic        model.StrategyID = "add_basic"
	AddBridgeTen    model.StrategyID = "add_bridge_ten"
	AddNearDoubles  model.StrategyID = "add_near_doubles"
	AddCompensation model.StrategyID = "add_compensation"
	SubBasic        model.StrategyID = "sub_basic"
	SubBridgeTen    model.StrategyID = "sub_bridge_ten"
	SubCountUp      model.StrategyID = "sub_count_up"
	SubCompensation model.StrategyID = "sub_compensation"
	MulBasic        model.StrategyID = "mul_basic"
	MulDoubling     model.StrategyID = "mul_doubling"
	MulByFive       model.StrategyID = "mul_by_five"
	MulByNine       model.StrategyID = "mul_by_nine"
	DivBasic        model.StrategyID = "div_basic"
	DivHalving      model.StrategyID = "div_halving"
	DivByFive       model.StrategyID = "div_by_five"
)

// maxTable caps factors, divisors and quotients for multiplication and division.
const maxTable = 12

const maxAttempts = 256

// Strategy describes one technique and how to build operands that elicit it.
type Strategy struct {
	ID        model.StrategyID
	Operation model.Operation
	Name      string
	Hint      string

	// minMax is the smallest maxNumber that admits a matching operand pair.
	minMax int
	sample func(rnd *rand.Rand, maxNumber int) (int, int)
	match  func(a, b int) bool
}

var catalog = []Strategy{
	define(AddBasic, model.OpAddition, "Addition without carry",
		"Add tens, then ones.",
		2, sampleAny, func(a, b int) bool { return ones(a)+ones(b) < 10 }),
	define(AddBridgeTen, model.OpAddition, "Bridging through 10",
		"Fill up to the next ten, then add the rest.",
		6, sampleAny, func(a, b int) bool { return ones(a)+ones(b) > 10 }),
	define(AddNearDoubles, model.OpAddition, "Near doubles",
		"Double one number, then adjust by one.",
		2, sampleNear, func(a, b int) bool { return abs(a-b) <= 1 }),
	define(AddCompensation, model.OpAddition, "Round and compensate",
		"Round the 8 or 9 up to a ten, add, then take back the difference.",
		18, sampleRoundable, func(a, b int) bool { return roundable(a) || roundable(b) }),
	define(SubBasic, model.OpSubtraction, "Subtraction without borrow",
		"Subtract tens, then ones.",
		2, sampleOrdered, func(a, b int) bool { return a > b && ones(a) >= ones(b) }),
	define(SubBridgeTen, model.OpSubtraction, "Bridging back through 10",
		"Subtract down to the ten, then subtract the rest.",
		11, sampleOrdered, func(a, b int) bool { return a > b && ones(a) < ones(b) }),
	define(SubCountUp, model.OpSubtraction, "Counting up",
		"Count up from the smaller number to the larger.",
		10, sampleClose, func(a, b int) bool { return a-b > 0 && a-b <= 10 && a/10 != b/10 }),
	define(SubCompensation, model.OpSubtraction, "Subtract a round number",
		"Subtract the next ten, then add back the difference.",
		19, sampleRoundSubtrahend, func(a, b int) bool { return a > b && roundable(b) }),
	define(MulBasic, model.OpMultiplication, "Times tables",
		"Recall the fact or build it from a known one.",
		2, sampleFactors, func(a, b int) bool { return true }),
	define(MulDoubling, model.OpMultiplication, "Doubling",
		"Double repeatedly: ×2 once, ×4 twice, ×8 three times.",
		2, sampleWithFactor(2, 4, 8), hasFactor(2, 4, 8)),
	define(MulByFive, model.OpMultiplication, "Times five",
		"Multiply by ten and halve.",
		5, sampleWithFactor(5), hasFactor(5)),
	define(MulByNine, model.OpMultiplication, "Times nine",
		"Multiply by ten and subtract the number once.",
		9, sampleWithFactor(9), hasFactor(9)),
	define(DivBasic, model.OpDivision, "Division facts",
		"Think of the matching multiplication fact.",
		4, sampleDivision(), func(a, b int) bool { return b > 1 && a%b == 0 }),
	define(DivHalving, model.OpDivision, "Halving",
		"Halve once for ÷2, twice for ÷4.",
		4, sampleDivision(2, 4), func(a, b int) bool { return (b == 2 || b == 4) && a%b == 0 }),
	define(DivByFive, model.OpDivision, "Dividing by five",
		"Double the number and divide by ten.",
		10, sampleDivision(5), func(a, b int) bool { return b == 5 && a%b == 0 }),
}

func define(id model.StrategyID, op model.Operation, name, hint string, minMax int, sample func(*rand.Rand, int) (int, int), match func(a, b int) bool) Strategy {
	return Strategy{ID: id, Operation: op, Name: name, Hint: hint, minMax: minMax, sample: sample, match: match}
}

// All returns every strategy in catalog order.
func All() []Strategy {
	out := make([]Strategy, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a strategy by id.
func Lookup(id model.StrategyID) (Strategy, bool) {
	for _, s := range catalog {
		if s.ID == id {
			return s, true
		}
	}
	return Strategy{}, false
}

// ForOperation returns the strategies of one operation in catalog order.
func ForOperation(op model.Operation) []Strategy {
	var out []Strategy
	for _, s := range catalog {
		if s.Operation == op {
			out = append(out, s)
		}
	}
	return out
}

// Applicable returns the strategies of op that can produce problems within maxNumber.
func Applicable(op model.Operation, maxNumber int) []Strategy {
	var out []Strategy
	for _, s := range ForOperation(op) {
		if s.Applicable(maxNumber) {
			out = append(out, s)
		}
	}
	return out
}

// Basic returns the fallback strategy of an operation.
func Basic(op model.Operation) Strategy {
	var id model.StrategyID
	switch op {
	case model.OpSubtraction:
		id = SubBasic
	case model.OpMultiplication:
		id = MulBasic
	case model.OpDivision:
		id = DivBasic
	default:
		id = AddBasic
	}
	s, _ := Lookup(id)
	return s
}

// Applicable reports whether the strategy fits the operand limit.
func (s Strategy) Applicable(maxNumber int) bool {
	return maxNumber >= s.minMax
}

// Matches reports whether the operand pair exercises the strategy and lies within maxNumber.
func (s Strategy) Matches(a, b, maxNumber int) bool {
	if !inDomain(s.Operation, a, b, maxNumber) {
		return false
	}
	return s.match(a, b)
}

// Generate draws an operand pair for the strategy. It returns false when no
// matching pair was found within the attempt budget.
func (s Strategy) Generate(rnd *rand.Rand, maxNumber int) ([2]int, bool) {
	if !s.Applicable(maxNumber) {
		return [2]int{}, false
	}
	for i := 0; i < maxAttempts; i++ {
		a, b := s.sample(rnd, maxNumber)
		if s.Matches(a, b, maxNumber) {
			return [2]int{a, b}, true
		}
	}
	return [2]int{}, false
}

// Answer computes the result of a op b.
func Answer(op model.Operation, a, b int) int {
	switch op {
	case model.OpSubtraction:
		return a - b
	case model.OpMultiplication:
		return a * b
	case model.OpDivision:
		if b == 0 {
			return 0
		}
		return a / b
	default:
		return a + b
	}
}

// TableLimit returns the factor limit for multiplication and division.
func TableLimit(maxNumber int) int {
	if maxNumber > maxTable {
		return maxTable
	}
	return maxNumber
}

func inDomain(op model.Operation, a, b, maxNumber int) bool {
	switch op {
	case model.OpAddition:
		return between(a, 1, maxNumber) && between(b, 1, maxNumber)
	case model.OpSubtraction:
		return between(a, 1, maxNumber) && between(b, 1, maxNumber) && a >= b
	case model.OpMultiplication:
		t := TableLimit(maxNumber)
		return between(a, 2, t) && between(b, 2, t)
	case model.OpDivision:
		t := TableLimit(maxNumber)
		return between(b, 2, t) && a <= maxNumber && a%b == 0 && between(a/b, 2, t)
	}
	return false
}

func sampleAny(rnd *rand.Rand, maxNumber int) (int, int) {
	return randRange(rnd, 1, maxNumber), randRange(rnd, 1, maxNumber)
}

func sampleNear(rnd *rand.Rand, maxNumber int) (int, int) {
	a := randRange(rnd, 1, maxNumber)
	b := a + randRange(rnd, -1, 1)
	return a, b
}

func sampleRoundable(rnd *rand.Rand, maxNumber int) (int, int) {
	x := roundableUpTo(rnd, maxNumber)
	y := randRange(rnd, 1, maxNumber)
	if rnd.Intn(2) == 0 {
		return x, y
	}
	return y, x
}

func sampleOrdered(rnd *rand.Rand, maxNumber int) (int, int) {
	a := randRange(rnd, 2, maxNumber)
	return a, randRange(rnd, 1, a-1)
}

func sampleClose(rnd *rand.Rand, maxNumber int) (int, int) {
	a := randRange(rnd, 10, maxNumber)
	d := randRange(rnd, 1, min(10, a-1))
	return a, a - d
}

func sampleRoundSubtrahend(rnd *rand.Rand, maxNumber int) (int, int) {
	b := roundableUpTo(rnd, maxNumber-1)
	return randRange(rnd, b+1, maxNumber), b
}

func sampleFactors(rnd *rand.Rand, maxNumber int) (int, int) {
	t := TableLimit(maxNumber)
	return randRange(rnd, 2, t), randRange(rnd, 2, t)
}

func sampleWithFactor(factors ...int) func(*rand.Rand, int) (int, int) {
	return func(rnd *rand.Rand, maxNumber int) (int, int) {
		t := TableLimit(maxNumber)
		f := pickUpTo(rnd, factors, t)
		other := randRange(rnd, 2, t)
		if rnd.Intn(2) == 0 {
			return f, other
		}
		return other, f
	}
}

func sampleDivision(divisors ...int) func(*rand.Rand, int) (int, int) {
	return func(rnd *rand.Rand, maxNumber int) (int, int) {
		t := TableLimit(maxNumber)
		d := randRange(rnd, 2, min(t, maxNumber/2))
		if len(divisors) > 0 {
			d = pickUpTo(rnd, divisors, min(t, maxNumber/2))
		}
		q := randRange(rnd, 2, min(t, maxNumber/d))
		return d * q, d
	}
}

func hasFactor(factors ...int) func(a, b int) bool {
	return func(a, b int) bool {
		for _, f := range factors {
			if a == f || b == f {
				return true
			}
		}
		return false
	}
}

// roundableUpTo draws a number >= 18 ending in 8 or 9 that does not exceed limit.
func roundableUpTo(rnd *rand.Rand, limit int) int {
	if limit < 18 {
		return 18
	}
	tens := randRange(rnd, 1, (limit-8)/10)
	x := tens*10 + 8 + rnd.Intn(2)
	if x > limit {
		x--
	}
	return x
}

func roundable(n int) bool {
	return n >= 18 && (ones(n) == 8 || ones(n) == 9)
}

func pickUpTo(rnd *rand.Rand, values []int, limit int) int {
	var allowed []int
	for _, v := range values {
		if v <= limit {
			allowed = append(allowed, v)
		}
	}
	if len(allowed) == 0 {
		return values[0]
	}
	return allowed[rnd.Intn(len(allowed))]
}

func randRange(rnd *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rnd.Intn(hi-lo+1)
}

func between(v, lo, hi int) bool {
	return v >= lo && v <= hi
}

func ones(n int) int {
	return abs(n) % 10
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
