package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/tuimath/internal/generator"
	"github.com/verte-zerg/tuimath/internal/model"
	"github.com/verte-zerg/tuimath/internal/store"
	"github.com/verte-zerg/tuimath/internal/strategy"
)

type fixture struct {
	backend *store.MemoryBackend
	store   *store.Manager
	machine *Machine
	user    model.User
}

func newFixture(t *testing.T, length int) fixture {
	t.Helper()
	clock := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clock = clock.Add(1500 * time.Millisecond)
		return clock
	}
	backend := store.NewMemoryBackend(0)
	st, err := store.Open(backend, store.WithClock(now))
	require.NoError(t, err)
	user, err := st.CreateUser(model.CreateUserInput{
		Name:        "Tester",
		Preferences: &model.PreferencesPatch{SessionLength: &length},
	})
	require.NoError(t, err)
	m := New(st, WithClock(now), WithGenerator(generator.NewWithSeed(7)))
	return fixture{backend: backend, store: st, machine: m, user: user}
}

func (f fixture) start(t *testing.T) model.Session {
	t.Helper()
	f.machine.SetPracticeIntent(true)
	s, err := f.machine.StartSession(f.user.ID)
	require.NoError(t, err)
	return s
}

func (f fixture) answer(t *testing.T, correct bool) model.Problem {
	t.Helper()
	p, ok := f.machine.CurrentProblem()
	require.True(t, ok)
	ans := p.CorrectAnswer
	if !correct {
		ans++
	}
	got, err := f.machine.SubmitAnswer(ans)
	require.NoError(t, err)
	return got
}

func TestIntentTransitions(t *testing.T) {
	f := newFixture(t, 3)
	assert.Equal(t, StateIdle, f.machine.Snapshot().State)

	f.machine.SetPracticeIntent(true)
	assert.Equal(t, StateIntentPending, f.machine.Snapshot().State)
	f.machine.SetPracticeIntent(false)
	assert.Equal(t, StateIdle, f.machine.Snapshot().State)

	_, err := f.machine.StartSession(f.user.ID)
	require.ErrorIs(t, err, ErrNoIntent)
	require.ErrorIs(t, f.machine.SetFocusedStrategy("made_up"), store.ErrValidation)
	require.ErrorIs(t, f.machine.SetSessionTypeIntent("sprint"), store.ErrValidation)
}

func TestStartSessionUnknownUser(t *testing.T) {
	f := newFixture(t, 3)
	f.machine.SetPracticeIntent(true)
	_, err := f.machine.StartSession("ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, StateIntentPending, f.machine.Snapshot().State)
}

func TestStartSessionPersistsAndConsumesIntent(t *testing.T) {
	f := newFixture(t, 5)
	s := f.start(t)

	assert.Len(t, s.Problems, 5)
	assert.Equal(t, 5, s.SessionLength)
	assert.Equal(t, model.SessionGeneral, s.Type)
	snap := f.machine.Snapshot()
	assert.Equal(t, StateActive, snap.State)
	assert.False(t, snap.PracticeIntent)

	stored, ok := f.store.GetSessionByID(s.ID)
	require.True(t, ok)
	assert.Equal(t, s, stored)

	p, ok := f.machine.CurrentProblem()
	require.True(t, ok)
	assert.NotNil(t, p.AttemptedAt)
}

func TestCompletionBatch(t *testing.T) {
	f := newFixture(t, 3)
	f.start(t)
	first := f.answer(t, true)
	second := f.answer(t, true)
	third := f.answer(t, false)

	snap := f.machine.Snapshot()
	require.Equal(t, StateCompleted, snap.State)
	require.NotNil(t, snap.Session)
	s := *snap.Session
	assert.True(t, s.Completed)
	assert.NotNil(t, s.EndTime)
	assert.Equal(t, 2, s.TotalCorrect)
	assert.Equal(t, 1, s.TotalWrong)
	assert.InDelta(t, 1500, s.AverageTime, 1e-9)

	stored, ok := f.store.GetSessionByID(s.ID)
	require.True(t, ok)
	assert.Equal(t, s, stored)

	user, ok := f.store.GetUserByID(f.user.ID)
	require.True(t, ok)
	st := user.Statistics
	assert.Equal(t, 3, st.TotalProblemsAttempted)
	assert.Equal(t, 2, st.TotalCorrectAnswers)
	assert.Equal(t, 1, st.TotalSessionsCompleted)
	assert.Equal(t, 0, st.StreakCurrent)
	assert.Len(t, st.ProblemHistory, 3)
	assert.InDelta(t, 2.0/3.0, st.AverageAccuracy, 1e-9)

	want := map[model.StrategyID]model.StrategyPerformance{}
	for _, p := range []model.Problem{first, second, third} {
		perf := want[p.IntendedStrategy]
		perf.TotalAttempts++
		if p.Correct() {
			perf.Correct++
		} else {
			perf.Incorrect++
		}
		want[p.IntendedStrategy] = perf
	}
	assert.Equal(t, want, st.StrategyPerformance)

	_, err := f.machine.SubmitAnswer(1)
	require.ErrorIs(t, err, ErrNotActive)
}

func TestAllCorrectSessionExtendsStreak(t *testing.T) {
	f := newFixture(t, 2)
	f.start(t)
	f.answer(t, true)
	f.answer(t, true)
	user, _ := f.store.GetUserByID(f.user.ID)
	assert.Equal(t, 1, user.Statistics.StreakCurrent)
	assert.Equal(t, 1, user.Statistics.StreakBest)
}

func TestEndSessionEarly(t *testing.T) {
	f := newFixture(t, 4)
	f.start(t)
	f.answer(t, true)

	s, err := f.machine.EndSession()
	require.NoError(t, err)
	assert.True(t, s.Completed)
	assert.Equal(t, 1, s.TotalCorrect)
	user, _ := f.store.GetUserByID(f.user.ID)
	assert.Equal(t, 1, user.Statistics.TotalProblemsAttempted)
	assert.Equal(t, 0, user.Statistics.StreakCurrent, "unanswered problems break the streak")

	_, err = f.machine.EndSession()
	require.ErrorIs(t, err, ErrNotActive)
}

func TestEndSessionWithoutAnswersLeavesStatistics(t *testing.T) {
	f := newFixture(t, 2)
	f.start(t)
	s, err := f.machine.EndSession()
	require.NoError(t, err)
	assert.True(t, s.Completed)
	user, _ := f.store.GetUserByID(f.user.ID)
	assert.Equal(t, f.user.Statistics, user.Statistics)
}

func TestFailedWriteRollsBackWithoutNotify(t *testing.T) {
	f := newFixture(t, 3)
	f.start(t)
	before, ok := f.machine.CurrentProblem()
	require.True(t, ok)

	notified := 0
	unsubscribe := f.machine.Subscribe(func(Snapshot) { notified++ })
	defer unsubscribe()

	f.backend.Quota = 1
	_, err := f.machine.SubmitAnswer(before.CorrectAnswer)
	require.ErrorIs(t, err, store.ErrQuotaExceeded)
	assert.Equal(t, 0, notified)

	after, ok := f.machine.CurrentProblem()
	require.True(t, ok)
	assert.Equal(t, before, after)

	f.backend.Quota = 0
	_, err = f.machine.SubmitAnswer(before.CorrectAnswer)
	require.NoError(t, err)
	assert.Equal(t, 1, notified)
}

func TestFocusedSession(t *testing.T) {
	f := newFixture(t, 6)
	require.NoError(t, f.machine.SetSessionTypeIntent(model.SessionFocused))
	require.NoError(t, f.machine.SetFocusedStrategy(strategy.MulByNine))
	s := f.start(t)

	assert.Equal(t, model.SessionFocused, s.Type)
	require.NotNil(t, s.FocusedStrategyID)
	assert.Equal(t, strategy.MulByNine, *s.FocusedStrategyID)
	nine, _ := strategy.Lookup(strategy.MulByNine)
	for _, p := range s.Problems {
		assert.Equal(t, strategy.MulByNine, p.IntendedStrategy)
		assert.True(t, nine.Matches(p.Operands[0], p.Operands[1], f.user.Preferences.MaxNumber), "operands %v", p.Operands)
	}
}

func TestFocusedIntentWithoutStrategyDowngrades(t *testing.T) {
	f := newFixture(t, 3)
	require.NoError(t, f.machine.SetSessionTypeIntent(model.SessionFocused))
	s := f.start(t)
	assert.Equal(t, model.SessionGeneral, s.Type)
	assert.Nil(t, s.FocusedStrategyID)
}

func TestClearSessionResetsIntents(t *testing.T) {
	f := newFixture(t, 3)
	require.NoError(t, f.machine.SetSessionTypeIntent(model.SessionFocused))
	require.NoError(t, f.machine.SetFocusedStrategy(strategy.AddBridgeTen))
	f.start(t)

	f.machine.ClearSession()
	snap := f.machine.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.PracticeIntent)
	assert.Nil(t, snap.FocusedStrategyID)
	assert.Nil(t, snap.Session)
	_, ok := f.machine.CurrentProblem()
	assert.False(t, ok)
}

func TestStartSameTypeSession(t *testing.T) {
	f := newFixture(t, 2)
	require.ErrorIs(t, f.machine.StartSameTypeSession(), ErrNoPreviousSession)

	require.NoError(t, f.machine.SetSessionTypeIntent(model.SessionFocused))
	require.NoError(t, f.machine.SetFocusedStrategy(strategy.DivHalving))
	f.start(t)
	require.ErrorIs(t, f.machine.StartSameTypeSession(), ErrSessionInProgress)
	f.answer(t, true)
	f.answer(t, true)

	require.NoError(t, f.machine.StartSameTypeSession())
	snap := f.machine.Snapshot()
	assert.Equal(t, StateIntentPending, snap.State)
	assert.True(t, snap.PracticeIntent)
	assert.Equal(t, model.SessionFocused, snap.SessionTypeIntent)
	require.NotNil(t, snap.FocusedStrategyID)
	assert.Equal(t, strategy.DivHalving, *snap.FocusedStrategyID)

	s, err := f.machine.StartSession(f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionFocused, s.Type)
}

func TestRememberLastSession(t *testing.T) {
	f := newFixture(t, 2)
	focus := strategy.SubCountUp
	f.machine.RememberLastSession(model.Session{Type: model.SessionFocused, FocusedStrategyID: &focus})
	require.NoError(t, f.machine.StartSameTypeSession())
	snap := f.machine.Snapshot()
	require.NotNil(t, snap.FocusedStrategyID)
	assert.Equal(t, focus, *snap.FocusedStrategyID)
}

func TestSubscribersSeeTransitions(t *testing.T) {
	f := newFixture(t, 1)
	var states []State
	unsubscribe := f.machine.Subscribe(func(s Snapshot) { states = append(states, s.State) })
	f.start(t)
	f.answer(t, true)
	unsubscribe()
	f.machine.ClearSession()
	assert.Equal(t, []State{StateIntentPending, StateActive, StateCompleted}, states)
}

// runWithin fails the test when fn does not return in time.
func runWithin(t *testing.T, d time.Duration, fn func() error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(d):
		t.Fatalf("machine call did not return within %s", d)
	}
}

func TestStoreSubscriberCanReadMachine(t *testing.T) {
	f := newFixture(t, 2)
	var seen []State
	unsubscribe := f.store.Subscribe(func(model.AppData) {
		seen = append(seen, f.machine.Snapshot().State)
	})
	defer unsubscribe()

	runWithin(t, 2*time.Second, func() error {
		f.machine.SetPracticeIntent(true)
		if _, err := f.machine.StartSession(f.user.ID); err != nil {
			return err
		}
		p, _ := f.machine.CurrentProblem()
		if _, err := f.machine.SubmitAnswer(p.CorrectAnswer); err != nil {
			return err
		}
		_, err := f.machine.EndSession()
		return err
	})

	// Store listeners run during the write, before the machine commits.
	assert.Equal(t, []State{StateIntentPending, StateActive, StateActive}, seen)
	assert.Equal(t, StateCompleted, f.machine.Snapshot().State)
}

func TestMachineSubscriberCanCallBack(t *testing.T) {
	f := newFixture(t, 1)
	unsubscribe := f.machine.Subscribe(func(s Snapshot) {
		if s.State == StateCompleted {
			f.machine.ClearSession()
		}
	})
	defer unsubscribe()

	runWithin(t, 2*time.Second, func() error {
		f.machine.SetPracticeIntent(true)
		if _, err := f.machine.StartSession(f.user.ID); err != nil {
			return err
		}
		p, _ := f.machine.CurrentProblem()
		_, err := f.machine.SubmitAnswer(p.CorrectAnswer)
		return err
	})

	assert.Equal(t, StateIdle, f.machine.Snapshot().State)
	assert.Equal(t, 1, f.store.ListSessions(f.user.ID)[0].TotalCorrect)
}
