package statsui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/tuimath/internal/model"
	"github.com/verte-zerg/tuimath/internal/store"
)

func seededStore(t *testing.T) *store.Manager {
	t.Helper()
	st := store.New(store.NewMemoryBackend(0))
	u, err := st.CreateUser(model.CreateUserInput{Name: "Charts"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	start := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	done := start.Add(2 * time.Second)
	ok := true
	answer := 5
	s, err := st.CreateSession(model.CreateSessionInput{
		UserID:    u.ID,
		StartTime: start,
		Problems: []model.Problem{{
			ID: "p", Type: model.OpAddition, Operands: [2]int{2, 3}, CorrectAnswer: 5, IntendedStrategy: "add_basic",
			UserAnswer: &answer, IsCorrect: &ok, AttemptedAt: &start, CompletedAt: &done,
		}},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	completed := true
	correct := 1
	if _, err := st.UpdateSession(s.ID, model.SessionPatch{Completed: &completed, EndTime: &done, TotalCorrect: &correct}); err != nil {
		t.Fatalf("complete session: %v", err)
	}
	if _, err := st.UpdateUser(u.ID, model.UserPatch{Statistics: &model.StatisticsPatch{
		StrategyPerformance: map[model.StrategyID]model.StrategyPerformance{"add_basic": {Correct: 1, TotalAttempts: 1}},
	}}); err != nil {
		t.Fatalf("update user: %v", err)
	}
	return st
}

func TestModelRendersTabs(t *testing.T) {
	m := NewModel(seededStore(t), model.StatsConfig{})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	view := m.View()
	if !strings.Contains(view, "Overview") || !strings.Contains(view, "User: Charts") {
		t.Fatalf("unexpected overview:\n%s", view)
	}
	if got := len(strings.Split(view, "\n")); got != 30 {
		t.Fatalf("expected 30 lines, got %d", got)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.activeTab != tabStrategies {
		t.Fatalf("expected strategies tab, got %d", m.activeTab)
	}
	if view := m.View(); !strings.Contains(view, "Addition without carry") {
		t.Fatalf("expected strategy row:\n%s", view)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if rows := m.tables[tabSessions].Rows(); len(rows) != 1 || rows[0][1] != "general" {
		t.Fatalf("unexpected session rows: %v", rows)
	}
}

func TestModelWithoutUserShowsError(t *testing.T) {
	m := NewModel(store.New(store.NewMemoryBackend(0)), model.StatsConfig{})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	if !strings.Contains(m.View(), "not found") {
		t.Fatalf("expected error in view:\n%s", m.View())
	}
}

func TestCurveWindowSteps(t *testing.T) {
	cases := []struct {
		in, next, prev int
	}{
		{1, 3, 1},
		{3, 5, 1},
		{4, 5, 3},
		{20, 20, 10},
		{25, 20, 20},
	}
	for _, c := range cases {
		if got := stepCurveWindow(c.in, 1); got != c.next {
			t.Fatalf("next(%d): expected %d, got %d", c.in, c.next, got)
		}
		if got := stepCurveWindow(c.in, -1); got != c.prev {
			t.Fatalf("prev(%d): expected %d, got %d", c.in, c.prev, got)
		}
	}
}

func TestFitBlock(t *testing.T) {
	out := fitBlock("a\nb\nc", 3, 2)
	if out != "a  \nb  " {
		t.Fatalf("unexpected fit: %q", out)
	}
	if got := fitBlock("a", 2, 2); got != "a \n  " {
		t.Fatalf("unexpected fill: %q", got)
	}
	if got := ellipsize("abcdefgh", 6); got != "abcde…" {
		t.Fatalf("unexpected truncate: %q", got)
	}
}

func drainChanges(m *Model) {
	for {
		select {
		case <-m.changes:
			m.Update(dataChangedMsg{})
		default:
			return
		}
	}
}

func TestModelRefreshesOnStoreWrite(t *testing.T) {
	st := seededStore(t)
	m := NewModel(st, model.StatsConfig{})
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	u := m.report.User
	sessions := 4
	if _, err := st.UpdateUser(u.ID, model.UserPatch{Statistics: &model.StatisticsPatch{TotalSessionsCompleted: &sessions}}); err != nil {
		t.Fatalf("update user: %v", err)
	}
	if m.report.User.Statistics.TotalSessionsCompleted == sessions {
		t.Fatalf("report refreshed before the change was delivered")
	}
	drainChanges(m)
	if got := m.report.User.Statistics.TotalSessionsCompleted; got != sessions {
		t.Fatalf("expected %d sessions after refresh, got %d", sessions, got)
	}

	m.Close()
	more := 5
	if _, err := st.UpdateUser(u.ID, model.UserPatch{Statistics: &model.StatisticsPatch{TotalSessionsCompleted: &more}}); err != nil {
		t.Fatalf("update user: %v", err)
	}
	select {
	case <-m.changes:
		t.Fatalf("change delivered after close")
	default:
	}
	if msg := m.listenChanges()(); msg != nil {
		t.Fatalf("expected nil msg after close, got %T", msg)
	}
}

func TestOverviewShowsMostPracticed(t *testing.T) {
	m := NewModel(seededStore(t), model.StatsConfig{})
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	view := m.View()
	if !strings.Contains(view, "Most Practiced") || !strings.Contains(view, "Addition without carry") {
		t.Fatalf("expected most practiced card:\n%s", view)
	}

	empty := map[model.StrategyID]model.StrategyPerformance{"add_basic": {}}
	if got := mostPracticedName(empty); got != "-" {
		t.Fatalf("expected placeholder for unattempted strategies, got %q", got)
	}
}
