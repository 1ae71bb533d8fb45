// Package stats contains statistics calculations and reporting.
package stats

import (
	"math"
	"strings"

	"github.com/verte-zerg/tuimath/internal/model"
)

// Personal best keys stored in Statistics.PersonalBests.
const (
	BestAccuracy         = "bestAccuracy"
	FastestAverageTimeMs = "fastestAverageTimeMs"
	MostCorrectInSession = "mostCorrectInSession"
	LongestStreak        = "longestStreak"
)

const sparkChars = " .:-=+*#%@"

// Totals summarizes the answered problems of a session.
type Totals struct {
	Answered  int
	Correct   int
	Wrong     int
	AverageMs float64
	SumMs     float64
}

// SessionTotals counts answered problems and averages their response time.
func SessionTotals(problems []model.Problem) Totals {
	var t Totals
	for _, p := range problems {
		if !p.Completed() {
			continue
		}
		t.Answered++
		if p.Correct() {
			t.Correct++
		} else {
			t.Wrong++
		}
		t.SumMs += float64(p.ResponseTime().Milliseconds())
	}
	if t.Answered > 0 {
		t.AverageMs = t.SumMs / float64(t.Answered)
	}
	return t
}

// AllCorrect reports whether every problem of the session was answered correctly.
func AllCorrect(problems []model.Problem) bool {
	if len(problems) == 0 {
		return false
	}
	for _, p := range problems {
		if !p.Completed() || !p.Correct() {
			return false
		}
	}
	return true
}

// SessionMetrics computes accuracy and problems per minute for a session.
func SessionMetrics(correct, incorrect int, durationMs int64) (accuracy, perMinute float64) {
	answered := correct + incorrect
	if answered > 0 {
		accuracy = float64(correct) / float64(answered)
	}
	if durationMs > 0 {
		perMinute = float64(answered) / (float64(durationMs) / 60000.0)
	}
	return accuracy, perMinute
}

// ApplySession folds a finished session into the user's statistics. Averages
// are updated as running means so the cost does not grow with history.
// historyLimit > 0 keeps only the newest entries of ProblemHistory. A session
// without answered problems leaves the statistics unchanged.
func ApplySession(st model.Statistics, s model.Session, historyLimit int) model.Statistics {
	totals := SessionTotals(s.Problems)
	if totals.Answered == 0 {
		return st
	}
	out := st.Clone()
	if out.PersonalBests == nil {
		out.PersonalBests = map[string]float64{}
	}
	if out.StrategyPerformance == nil {
		out.StrategyPerformance = map[model.StrategyID]model.StrategyPerformance{}
	}

	prev := float64(out.TotalProblemsAttempted)
	next := prev + float64(totals.Answered)
	out.AverageAccuracy = (out.AverageAccuracy*prev + float64(totals.Correct)) / next
	out.AverageResponseTime = (out.AverageResponseTime*prev + totals.SumMs) / next
	out.TotalProblemsAttempted += totals.Answered
	out.TotalCorrectAnswers += totals.Correct
	out.TotalSessionsCompleted++

	if AllCorrect(s.Problems) {
		out.StreakCurrent++
	} else {
		out.StreakCurrent = 0
	}
	if out.StreakCurrent > out.StreakBest {
		out.StreakBest = out.StreakCurrent
	}

	for _, p := range s.Problems {
		if !p.Completed() {
			continue
		}
		perf := out.StrategyPerformance[p.IntendedStrategy]
		perf.TotalAttempts++
		if p.Correct() {
			perf.Correct++
		} else {
			perf.Incorrect++
		}
		out.StrategyPerformance[p.IntendedStrategy] = perf
		out.ProblemHistory = append(out.ProblemHistory, p.Clone())
	}
	if historyLimit > 0 && len(out.ProblemHistory) > historyLimit {
		out.ProblemHistory = append([]model.Problem(nil), out.ProblemHistory[len(out.ProblemHistory)-historyLimit:]...)
	}

	accuracy := float64(totals.Correct) / float64(totals.Answered)
	raiseBest(out.PersonalBests, BestAccuracy, accuracy)
	raiseBest(out.PersonalBests, MostCorrectInSession, float64(totals.Correct))
	raiseBest(out.PersonalBests, LongestStreak, float64(out.StreakBest))
	if totals.AverageMs > 0 {
		if cur, ok := out.PersonalBests[FastestAverageTimeMs]; !ok || totals.AverageMs < cur {
			out.PersonalBests[FastestAverageTimeMs] = totals.AverageMs
		}
	}
	return out
}

func raiseBest(bests map[string]float64, key string, v float64) {
	if cur, ok := bests[key]; !ok || v > cur {
		bests[key] = v
	}
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// Resample stretches or averages values to exactly width points.
func Resample(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	out := make([]float64, width)
	if len(values) >= width {
		for i := 0; i < width; i++ {
			start := i * len(values) / width
			end := (i + 1) * len(values) / width
			if end <= start {
				end = start + 1
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
		return out
	}
	for i := range out {
		out[i] = values[i*len(values)/width]
	}
	return out
}
