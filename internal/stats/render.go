package stats

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/term"

	"github.com/verte-zerg/tuimath/internal/model"
	"github.com/verte-zerg/tuimath/internal/strategy"
)

const (
	terminalWidthBackup = 80
	curveLabelWidth     = 12
	minCurveWidth       = 10
)

// RenderReport prints the summary, per-strategy table and learning curves.
func RenderReport(w io.Writer, r Report, window int) error {
	if err := RenderSummary(w, r); err != nil {
		return err
	}
	if err := RenderStrategyTable(w, r.Strategies); err != nil {
		return err
	}
	return RenderCurves(w, r.Sessions, window, CurveWidthFor(terminalWidth()))
}

// RenderSummary prints lifetime totals and recent session averages.
func RenderSummary(w io.Writer, r Report) error {
	st := r.User.Statistics
	lines := []string{
		fmt.Sprintf("Summary for %s", r.User.Name),
		fmt.Sprintf("Sessions completed: %d", st.TotalSessionsCompleted),
		fmt.Sprintf("Problems attempted: %d", st.TotalProblemsAttempted),
		fmt.Sprintf("Accuracy: %.2f%%", st.AverageAccuracy*100),
		fmt.Sprintf("Avg response: %.0f ms", st.AverageResponseTime),
		fmt.Sprintf("Streak: %d (best %d)", st.StreakCurrent, st.StreakBest),
	}
	if len(r.Sessions) > 0 {
		var acc, rate float64
		for _, s := range r.Sessions {
			a, pm := SessionMetrics(s.Correct, s.Incorrect, s.DurationMs)
			acc += a
			rate += pm
		}
		n := float64(len(r.Sessions))
		lines = append(lines,
			fmt.Sprintf("Last %d sessions: %.2f%% accuracy, %.1f problems/min", len(r.Sessions), acc/n*100, rate/n))
	}
	if v, ok := st.PersonalBests[FastestAverageTimeMs]; ok {
		lines = append(lines, fmt.Sprintf("Fastest session average: %.0f ms", v))
	}
	if v, ok := st.PersonalBests[MostCorrectInSession]; ok {
		lines = append(lines, fmt.Sprintf("Most correct in a session: %.0f", v))
	}
	if len(r.Weak) > 0 {
		lines = append(lines, fmt.Sprintf("Weakest: %v", r.Weak))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderStrategyTable prints per-strategy performance, weakest first.
func RenderStrategyTable(w io.Writer, rows []StrategyRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No strategy stats yet.")
		return err
	}
	sorted := make([]StrategyRow, len(rows))
	copy(sorted, rows)
	sortRowsByAccuracy(sorted)

	if _, err := fmt.Fprintln(w, "Per-Strategy"); err != nil {
		return err
	}
	headers := []string{"Strategy", "Op", "Accuracy", "Correct", "Incorrect"}
	tableRows := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		tableRows = append(tableRows, []string{
			r.Name,
			r.Operation.Symbol(),
			fmt.Sprintf("%.2f%%", r.Accuracy()*100),
			strconv.Itoa(r.Correct),
			strconv.Itoa(r.Incorrect),
		})
	}
	for _, line := range formatTable(headers, tableRows, map[int]bool{2: true, 3: true, 4: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderCatalog lists every strategy with the user's accuracy, or "-" when
// it was never attempted. Strategies above maxNumber are marked.
func RenderCatalog(w io.Writer, perf map[model.StrategyID]model.StrategyPerformance, maxNumber int) error {
	headers := []string{"ID", "Op", "Name", "Accuracy", "Attempts"}
	all := strategy.All()
	tableRows := make([][]string, 0, len(all))
	for _, s := range all {
		p := perf[s.ID]
		acc := "-"
		if p.TotalAttempts > 0 {
			acc = fmt.Sprintf("%.2f%%", p.Accuracy()*100)
		}
		name := s.Name
		if !s.Applicable(maxNumber) {
			name += " (needs larger max)"
		}
		tableRows = append(tableRows, []string{
			string(s.ID),
			s.Operation.Symbol(),
			name,
			acc,
			strconv.Itoa(p.TotalAttempts),
		})
	}
	for _, line := range formatTable(headers, tableRows, map[int]bool{3: true, 4: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCurves prints accuracy and response-time sparklines over sessions.
func RenderCurves(w io.Writer, sessions []model.SessionAggregate, window, width int) error {
	if len(sessions) == 0 {
		return nil
	}
	accs := make([]float64, len(sessions))
	times := make([]float64, len(sessions))
	for i, s := range sessions {
		acc, _ := SessionMetrics(s.Correct, s.Incorrect, s.DurationMs)
		accs[i] = acc * 100
		times[i] = s.AverageMs
	}
	accs = MovingAverage(accs, window)
	times = MovingAverage(times, window)
	if width > 0 && len(sessions) > width {
		accs = Resample(accs, width)
		times = Resample(times, width)
	}
	if _, err := fmt.Fprintln(w, "Learning Curves"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%-*s%s\n", curveLabelWidth, "Accuracy", Sparkline(accs)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%-*s%s\n", curveLabelWidth, "Time (ms)", Sparkline(times)); err != nil {
		return err
	}
	return nil
}

// CurveWidthFor computes a sparkline width that fits the total width.
func CurveWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minCurveWidth
	}
	width := totalWidth - curveLabelWidth
	if width < minCurveWidth {
		width = minCurveWidth
	}
	return width
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}
