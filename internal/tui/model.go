// Package tui provides the Bubble Tea practice interface.
package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/tuimath/internal/model"
	"github.com/verte-zerg/tuimath/internal/session"
	statsPkg "github.com/verte-zerg/tuimath/internal/stats"
	"github.com/verte-zerg/tuimath/internal/store"
	"github.com/verte-zerg/tuimath/internal/strategy"
)

const maxInputDigits = 7

type startedMsg struct {
	err error
}

// snapshotMsg carries a machine transition into the update loop.
type snapshotMsg session.Snapshot

// dataChangedMsg reports a successful store write.
type dataChangedMsg struct{}

type feedback struct {
	prompt  string
	correct bool
	answer  int
}

// Model implements the Bubble Tea practice UI.
type Model struct {
	machine *session.Machine
	store   *store.Manager
	userID  string
	logger  *slog.Logger

	width  int
	height int

	snap     session.Snapshot
	input    []rune
	last     *feedback
	showHint bool
	errText  string

	lastAcc float64
	hasLast bool
	allAcc  float64
	allMs   float64

	snapshots chan session.Snapshot
	changes   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	unsubs    []func()
}

var (
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	inputStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	correctStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	incorrectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cursorStyle    = pendingStyle.Underline(true)
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a practice model for userID. The session starts when
// the program runs, from whatever intent the machine holds. The model
// follows machine transitions and store writes until Close.
func NewModel(machine *session.Machine, st *store.Manager, userID string, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Model{
		machine:   machine,
		store:     st,
		userID:    userID,
		logger:    logger,
		snap:      machine.Snapshot(),
		snapshots: make(chan session.Snapshot, 1),
		changes:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	m.unsubs = append(m.unsubs,
		machine.Subscribe(func(s session.Snapshot) { offerSnapshot(m.snapshots, s) }),
		st.Subscribe(func(model.AppData) {
			select {
			case m.changes <- struct{}{}:
			default:
			}
		}),
	)
	m.loadFooterStats()
	return m
}

// Close detaches the model from the machine and the store.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		for _, unsubscribe := range m.unsubs {
			unsubscribe()
		}
		close(m.done)
	})
}

// offerSnapshot queues s, replacing a snapshot the model has not read yet.
func offerSnapshot(ch chan session.Snapshot, s session.Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Init implements tea.Model. A pending practice intent starts a session.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.listenSnapshots(), m.listenChanges()}
	if m.snap.State == session.StateIntentPending {
		cmds = append(cmds, m.startCmd())
	}
	return tea.Batch(cmds...)
}

func (m *Model) startCmd() tea.Cmd {
	machine, userID := m.machine, m.userID
	return func() tea.Msg {
		_, err := machine.StartSession(userID)
		return startedMsg{err: err}
	}
}

func (m *Model) listenSnapshots() tea.Cmd {
	snapshots, done := m.snapshots, m.done
	return func() tea.Msg {
		select {
		case s := <-snapshots:
			return snapshotMsg(s)
		case <-done:
			return nil
		}
	}
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

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.machine.ClearSession()
	m.Close()
	return m, tea.Quit
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case startedMsg:
		if msg.err != nil {
			m.errText = fmt.Sprintf("could not start session: %v", msg.err)
			m.logger.Error("start session", "error", msg.err)
		}
		return m, nil
	case snapshotMsg:
		m.snap = session.Snapshot(msg)
		return m, m.listenSnapshots()
	case dataChangedMsg:
		m.loadFooterStats()
		return m, m.listenChanges()
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m.quit()
		}
		switch m.snap.State {
		case session.StateActive:
			return m.updateActive(msg)
		case session.StateCompleted:
			return m.updateCompleted(msg)
		default:
			if msg.Type == tea.KeyEsc || msg.String() == "q" {
				return m.quit()
			}
		}
	}
	return m, nil
}

func (m *Model) updateActive(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyBackspace, tea.KeyDelete:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyEnter:
		m.submit()
	case tea.KeyEsc:
		if _, err := m.machine.EndSession(); err != nil {
			m.setErr("end session", err)
		}
	case tea.KeyTab:
		m.showHint = !m.showHint
	case tea.KeyRunes:
		m.handleRunes(msg.Runes)
	}
	return m, nil
}

func (m *Model) updateCompleted(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r", "enter":
		if err := m.machine.StartSameTypeSession(); err != nil {
			m.setErr("restart", err)
			return m, nil
		}
		m.last = nil
		return m, m.startCmd()
	case "q", "esc":
		return m.quit()
	}
	return m, nil
}

func (m *Model) handleRunes(runes []rune) {
	for _, r := range runes {
		switch {
		case r >= '0' && r <= '9':
			if len(m.input) < maxInputDigits {
				m.input = append(m.input, r)
			}
		case r == '-' && len(m.input) == 0:
			m.input = append(m.input, r)
		}
	}
}

func (m *Model) submit() {
	answer, err := strconv.Atoi(string(m.input))
	if err != nil {
		return
	}
	p, err := m.machine.SubmitAnswer(answer)
	if err != nil {
		m.setErr("save answer", err)
		return
	}
	m.input = nil
	m.errText = ""
	m.last = &feedback{prompt: p.Prompt(), correct: p.Correct(), answer: p.CorrectAnswer}
}

func (m *Model) setErr(action string, err error) {
	m.logger.Error(action, "error", err)
	if errors.Is(err, store.ErrQuotaExceeded) {
		m.errText = "storage is full; your progress was not saved"
		return
	}
	m.errText = fmt.Sprintf("%s: %v", action, err)
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	switch m.snap.State {
	case session.StateActive:
		content = m.renderProblem()
	case session.StateCompleted:
		content = m.renderSummary()
	default:
		content = pendingStyle.Render("Preparing session…")
	}
	if m.errText != "" {
		content += "\n\n" + incorrectStyle.Render(m.errText)
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	footer := m.renderFooter()
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderProblem() string {
	p, ok := m.machine.CurrentProblem()
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString(promptStyle.Render(p.Prompt() + " = "))
	b.WriteString(inputStyle.Render(string(m.input)))
	b.WriteString(cursorStyle.Render(" "))
	if m.last != nil {
		b.WriteString("\n\n")
		b.WriteString(renderFeedback(*m.last))
	}
	if m.showHint {
		if s, ok := strategy.Lookup(p.IntendedStrategy); ok {
			b.WriteString("\n\n")
			b.WriteString(pendingStyle.Render(s.Name + ": " + s.Hint))
		}
	}
	return b.String()
}

func renderFeedback(f feedback) string {
	if f.correct {
		return correctStyle.Render(fmt.Sprintf("✓ %s = %d", f.prompt, f.answer))
	}
	return incorrectStyle.Render(fmt.Sprintf("✗ %s = %d", f.prompt, f.answer))
}

func (m *Model) renderSummary() string {
	if m.snap.Session == nil {
		return ""
	}
	s := *m.snap.Session
	acc, _ := statsPkg.SessionMetrics(s.TotalCorrect, s.TotalWrong, 0)
	lines := []string{
		promptStyle.Render("Session complete"),
		"",
		fmt.Sprintf("Correct   %d", s.TotalCorrect),
		fmt.Sprintf("Wrong     %d", s.TotalWrong),
		fmt.Sprintf("Accuracy  %.1f%%", acc*100),
		fmt.Sprintf("Avg time  %.1fs", s.AverageTime/1000),
	}
	if s.Type == model.SessionFocused && s.FocusedStrategyID != nil {
		if st, ok := strategy.Lookup(*s.FocusedStrategyID); ok {
			lines = append(lines, "Focus     "+st.Name)
		}
	}
	if u, ok := m.store.GetUserByID(m.userID); ok {
		lines = append(lines, fmt.Sprintf("Streak    %d (best %d)", u.Statistics.StreakCurrent, u.Statistics.StreakBest))
	}
	lines = append(lines, "", footerStyle.Render("r again · q quit"))
	return strings.Join(lines, "\n")
}

func (m *Model) loadFooterStats() {
	u, ok := m.store.GetUserByID(m.userID)
	if !ok {
		return
	}
	m.allAcc = u.Statistics.AverageAccuracy
	m.allMs = u.Statistics.AverageResponseTime
	sessions := m.store.ListSessions(m.userID)
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		if !s.Completed || s.AnsweredCount() == 0 {
			continue
		}
		m.lastAcc, _ = statsPkg.SessionMetrics(s.TotalCorrect, s.TotalWrong, 0)
		m.hasLast = true
		return
	}
}

func (m *Model) renderFooter() string {
	var segments []string
	if s := m.snap.Session; s != nil && m.snap.State == session.StateActive && len(s.Problems) > 0 {
		segments = append(segments, fmt.Sprintf("Problem %d/%d", s.AnsweredCount()+1, len(s.Problems)))
	}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %.1f%%", m.lastAcc*100))
	}
	segments = append(segments, fmt.Sprintf("All-time %.1f%% · %.1fs", m.allAcc*100, m.allMs/1000))
	if m.snap.State == session.StateActive {
		segments = append(segments, "tab hint · esc end")
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}
