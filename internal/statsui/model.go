// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/tuimath/internal/model"
	"github.com/verte-zerg/tuimath/internal/stats"
	"github.com/verte-zerg/tuimath/internal/store"
	"github.com/verte-zerg/tuimath/internal/strategy"
)

const (
	tabOverview = iota
	tabStrategies
	tabSessions
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea stats UI.
type Model struct {
	store *store.Manager
	cfg   model.StatsConfig

	report stats.Report
	errMsg string

	tabs      []string
	activeTab int
	overview  viewport.Model
	tables    map[int]*table.Model

	width  int
	height int

	changes     chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	unsubscribe func()
}

// dataChangedMsg reports a successful store write.
type dataChangedMsg struct{}

// NewModel constructs a stats UI model. The report is rebuilt after every
// store write until Close.
func NewModel(st *store.Manager, cfg model.StatsConfig) *Model {
	if cfg.CurveWindow <= 0 {
		cfg.CurveWindow = 1
	}
	strategies := newTable(strategyColumns())
	sessions := newTable(sessionColumns())
	m := &Model{
		store:    st,
		cfg:      cfg,
		tabs:     []string{"Overview", "Strategies", "Sessions"},
		overview: viewport.New(0, 0),
		tables:   map[int]*table.Model{tabStrategies: &strategies, tabSessions: &sessions},
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	m.unsubscribe = st.Subscribe(func(model.AppData) {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	m.refreshReport()
	return m
}

// Close stops following store writes.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		m.unsubscribe()
		close(m.done)
	})
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.listenChanges()
}

func (m *Model) listenChanges() tea.Cmd {
	changes, done := m.changes, m.done
	return func() tea.Msg {
		select {
		case <-changes:
			return dataChangedMsg{}
		case <-done:
			return nil
		}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dataChangedMsg:
		m.refreshReport()
		return m, m.listenChanges()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderOverview()
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.Close()
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l", "tab":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=":
			m.cfg.CurveWindow = stepCurveWindow(m.cfg.CurveWindow, 1)
			m.renderOverview()
			return m, nil
		case "-":
			m.cfg.CurveWindow = stepCurveWindow(m.cfg.CurveWindow, -1)
			m.renderOverview()
			return m, nil
		case "r":
			m.refreshReport()
			return m, nil
		}
		if t, ok := m.tables[m.activeTab]; ok {
			var cmd tea.Cmd
			*t, cmd = t.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.overview, cmd = m.overview.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitBlock(m.renderHeader(), m.width, headerHeight)
	body := fitBlock(m.renderBody(), m.width, bodyHeight)
	footer := fitBlock(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := max(1, lipgloss.Height(activeNavStyle.Render("X")))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	for _, t := range m.tables {
		t.SetWidth(m.width)
		t.SetHeight(max(1, bodyHeight-1))
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	m.activeTab = (m.activeTab + delta + count) % count
	for id, t := range m.tables {
		if id == m.activeTab {
			t.Focus()
		} else {
			t.Blur()
		}
	}
}

func (m *Model) renderHeader() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	tabs := lipgloss.JoinHorizontal(lipgloss.Top, parts...)

	name := m.report.User.Name
	if name == "" {
		name = "-"
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	summary := fmt.Sprintf("User: %s  last=%s  window=%d", name, last, m.cfg.CurveWindow)
	return tabs + "\n" + headerStyle.Render(ellipsize(summary, m.width))
}

func (m *Model) renderFooter() string {
	help := headerStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  Window: -/=  Reload: r  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func (m *Model) renderBody() string {
	t, ok := m.tables[m.activeTab]
	if !ok {
		return m.overview.View()
	}
	if len(t.Rows()) == 0 {
		if m.activeTab == tabStrategies {
			return "No strategy stats yet."
		}
		return "No sessions found."
	}
	return tableMutedStyle.Render(t.View())
}

func (m *Model) refreshReport() {
	report, err := stats.BuildReport(m.store, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		m.report = stats.Report{}
		m.overview.SetContent("Failed to load stats.")
		return
	}
	m.errMsg = ""
	m.report = report
	m.tables[tabStrategies].SetRows(strategyRows(report.Strategies))
	m.tables[tabSessions].SetRows(sessionRows(report.Sessions))
	m.renderOverview()
}

func (m *Model) renderOverview() {
	if m.errMsg != "" {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(renderOverview(m.report, m.cfg.CurveWindow, width))
}

func renderOverview(r stats.Report, window, width int) string {
	st := r.User.Statistics
	cards := []string{
		metricCard("Sessions", strconv.Itoa(st.TotalSessionsCompleted)),
		metricCard("Problems", strconv.Itoa(st.TotalProblemsAttempted)),
		metricCard("Accuracy", fmt.Sprintf("%.1f%%", st.AverageAccuracy*100)),
		metricCard("Avg Time", fmt.Sprintf("%.1fs", st.AverageResponseTime/1000)),
		metricCard("Streak", fmt.Sprintf("%d / %d", st.StreakCurrent, st.StreakBest)),
		metricCard("Most Practiced", mostPracticedName(st.StrategyPerformance)),
	}
	var summary string
	if width < 80 {
		summary = strings.Join(cards, "\n")
	} else {
		row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
		row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4], cards[5])
		summary = lipgloss.JoinVertical(lipgloss.Left, row1, row2)
	}
	if len(r.Sessions) == 0 {
		return summary + "\n\nNo sessions found."
	}
	var buf bytes.Buffer
	if err := stats.RenderCurves(&buf, r.Sessions, window, stats.CurveWidthFor(width)); err != nil {
		return summary + "\n\n" + fmt.Sprintf("Failed to render curves: %v", err)
	}
	return strings.TrimRight(summary+"\n\n"+buf.String(), "\n")
}

func mostPracticedName(perf map[model.StrategyID]model.StrategyPerformance) string {
	top := stats.MostPracticed(perf, 1)
	if len(top) == 0 || perf[top[0]].TotalAttempts == 0 {
		return "-"
	}
	if s, ok := strategy.Lookup(top[0]); ok {
		return s.Name
	}
	return string(top[0])
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func newTable(cols []table.Column) table.Model {
	t := table.New(table.WithColumns(cols), table.WithHeight(1))
	t.SetStyles(tableStyles())
	return t
}

func strategyColumns() []table.Column {
	return []table.Column{
		{Title: "Strategy", Width: 28},
		{Title: "Op", Width: 3},
		{Title: "Accuracy", Width: 9},
		{Title: "Correct", Width: 8},
		{Title: "Incorrect", Width: 9},
		{Title: "Total", Width: 6},
	}
}

func strategyRows(rows []stats.StrategyRow) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, table.Row{
			r.Name,
			r.Operation.Symbol(),
			fmt.Sprintf("%.2f%%", r.Accuracy()*100),
			strconv.Itoa(r.Correct),
			strconv.Itoa(r.Incorrect),
			strconv.Itoa(r.TotalAttempts),
		})
	}
	return out
}

func sessionColumns() []table.Column {
	return []table.Column{
		{Title: "Ended", Width: 16},
		{Title: "Type", Width: 8},
		{Title: "Correct", Width: 8},
		{Title: "Wrong", Width: 6},
		{Title: "Avg (s)", Width: 8},
	}
}

// sessionRows lists sessions newest first.
func sessionRows(sessions []model.SessionAggregate) []table.Row {
	out := make([]table.Row, 0, len(sessions))
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		out = append(out, table.Row{
			s.EndedAt.Local().Format("2006-01-02 15:04"),
			string(s.Type),
			strconv.Itoa(s.Correct),
			strconv.Itoa(s.Incorrect),
			fmt.Sprintf("%.1f", s.AverageMs/1000),
		})
	}
	return out
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}
