package tui

import (
	"strconv"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/tuimath/internal/generator"
	"github.com/verte-zerg/tuimath/internal/model"
	"github.com/verte-zerg/tuimath/internal/session"
	"github.com/verte-zerg/tuimath/internal/store"
)

func TestRenderFooterFormats(t *testing.T) {
	m := &Model{
		snap: session.Snapshot{
			State: session.StateActive,
			Session: &model.Session{Problems: []model.Problem{
				{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"},
			}},
		},
		hasLast: true,
		lastAcc: 0.978,
		allAcc:  0.969,
		allMs:   2400,
	}
	out := m.renderFooter()
	if out == "" {
		t.Fatalf("expected footer output")
	}
	if !containsAll(out, []string{"Problem 1/4", "Last 97.8%", "All-time 96.9%", "2.4s"}) {
		t.Fatalf("footer missing expected segments: %s", out)
	}
}

func newPracticeModel(t *testing.T, length int) (*Model, *session.Machine, *store.Manager, string) {
	t.Helper()
	st := store.New(store.NewMemoryBackend(0))
	u, err := st.CreateUser(model.CreateUserInput{Name: "Viewer", Preferences: &model.PreferencesPatch{SessionLength: &length}})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	machine := session.New(st, session.WithGenerator(generator.NewWithSeed(3)))
	machine.SetPracticeIntent(true)
	m := NewModel(machine, st, u.ID, nil)
	t.Cleanup(m.Close)
	if m.snap.State != session.StateIntentPending {
		t.Fatalf("expected pending intent, got %s", m.snap.State)
	}
	if m.Init() == nil {
		t.Fatalf("expected init commands")
	}
	m.Update(m.startCmd()())
	pump(m)
	return m, machine, st, u.ID
}

// pump delivers queued subscription messages the way the program loop would.
func pump(m *Model) {
	for {
		select {
		case s := <-m.snapshots:
			m.Update(snapshotMsg(s))
		case <-m.changes:
			m.Update(dataChangedMsg{})
		default:
			return
		}
	}
}

func typeAnswer(m *Model, answer int) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(strconv.Itoa(answer))})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	pump(m)
}

func TestPracticeFlow(t *testing.T) {
	m, machine, st, userID := newPracticeModel(t, 2)
	if m.snap.State != session.StateActive {
		t.Fatalf("expected active session, got %s (%s)", m.snap.State, m.errText)
	}

	p, _ := machine.CurrentProblem()
	typeAnswer(m, p.CorrectAnswer)
	if m.last == nil || !m.last.correct {
		t.Fatalf("expected correct feedback, got %+v", m.last)
	}
	p, _ = machine.CurrentProblem()
	typeAnswer(m, p.CorrectAnswer+1)

	if m.snap.State != session.StateCompleted {
		t.Fatalf("expected completed session, got %s", m.snap.State)
	}
	if view := m.View(); !strings.Contains(view, "Session complete") {
		t.Fatalf("expected summary view, got %q", view)
	}
	u, _ := st.GetUserByID(userID)
	if u.Statistics.TotalSessionsCompleted != 1 {
		t.Fatalf("expected statistics update, got %+v", u.Statistics)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd == nil {
		t.Fatalf("expected restart command")
	}
	m.Update(cmd())
	pump(m)
	if m.snap.State != session.StateActive {
		t.Fatalf("expected new active session, got %s", m.snap.State)
	}
	if got := len(st.ListSessions(userID)); got != 2 {
		t.Fatalf("expected 2 sessions, got %d", got)
	}
}

func TestInputAcceptsDigitsAndLeadingMinus(t *testing.T) {
	m, _, _, _ := newPracticeModel(t, 3)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-1a2-")})
	if string(m.input) != "-12" {
		t.Fatalf("unexpected input %q", string(m.input))
	}
	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	if string(m.input) != "-1" {
		t.Fatalf("unexpected input after backspace %q", string(m.input))
	}
}

func TestQuitClearsSession(t *testing.T) {
	m, machine, _, _ := newPracticeModel(t, 3)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	snap := machine.Snapshot()
	if snap.State != session.StateIdle || snap.PracticeIntent {
		t.Fatalf("expected idle machine, got %+v", snap)
	}
}

func TestModelFollowsExternalChanges(t *testing.T) {
	m, machine, _, _ := newPracticeModel(t, 3)
	if m.hasLast {
		t.Fatalf("expected no previous session in footer")
	}

	p, _ := machine.CurrentProblem()
	if _, err := machine.SubmitAnswer(p.CorrectAnswer); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := machine.EndSession(); err != nil {
		t.Fatalf("end session: %v", err)
	}
	if m.snap.State != session.StateActive {
		t.Fatalf("model must not change before its messages are delivered")
	}

	pump(m)
	if m.snap.State != session.StateCompleted {
		t.Fatalf("expected completed snapshot, got %s", m.snap.State)
	}
	if !m.hasLast || m.lastAcc != 1 {
		t.Fatalf("expected footer refreshed from store, got hasLast=%v lastAcc=%f", m.hasLast, m.lastAcc)
	}

	m.Close()
	machine.ClearSession()
	select {
	case s := <-m.snapshots:
		t.Fatalf("closed model received snapshot %+v", s)
	default:
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
