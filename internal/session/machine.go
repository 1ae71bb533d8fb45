// Package session drives a practice session from intent to completion.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/verte-zerg/tuimath/internal/generator"
	"github.com/verte-zerg/tuimath/internal/model"
	"github.com/verte-zerg/tuimath/internal/stats"
	"github.com/verte-zerg/tuimath/internal/store"
	"github.com/verte-zerg/tuimath/internal/strategy"
)

// State is a stage of the practice flow.
type State string

const (
	StateIdle          State = "idle"
	StateIntentPending State = "intent_pending"
	StateActive        State = "active"
	StateCompleted     State = "completed"
)

var (
	// ErrNoIntent is returned by StartSession without a pending practice intent.
	ErrNoIntent = errors.New("no practice intent")
	// ErrNotActive is returned when an operation needs an active session.
	ErrNotActive = errors.New("no active session")
	// ErrNoPreviousSession is returned by StartSameTypeSession before any session ran.
	ErrNoPreviousSession = errors.New("no previous session")
	// ErrSessionInProgress is returned when a new session is requested while one is active.
	ErrSessionInProgress = errors.New("session in progress")
)

// Snapshot is a copy of the machine state handed to readers and subscribers.
type Snapshot struct {
	State             State
	PracticeIntent    bool
	SessionTypeIntent model.SessionType
	FocusedStrategyID *model.StrategyID
	LastSessionType   *model.SessionType
	Session           *model.Session
}

// Machine owns the in-memory practice flow and writes every durable change
// through the store. A failed write leaves the machine as it was and no
// subscriber is notified.
type Machine struct {
	store        *store.Manager
	gen          *generator.Generator
	logger       *slog.Logger
	now          func() time.Time
	weakFactor   float64
	historyLimit int

	// op serializes mutators for their whole duration. mu guards the fields
	// below and is released around store calls, so store subscribers may
	// read the machine.
	op             sync.Mutex
	mu             sync.Mutex
	state          State
	practiceIntent bool
	typeIntent     model.SessionType
	focused        *model.StrategyID
	lastType       *model.SessionType
	lastFocus      *model.StrategyID
	active         *model.Session
	listeners      map[int]func(Snapshot)
	nextID         int
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithGenerator sets the problem generator.
func WithGenerator(gen *generator.Generator) Option {
	return func(m *Machine) {
		if gen != nil {
			m.gen = gen
		}
	}
}

// WithWeakFactor sets how strongly weak strategies are favored.
func WithWeakFactor(f float64) Option {
	return func(m *Machine) {
		if f >= 0 {
			m.weakFactor = f
		}
	}
}

// WithHistoryLimit caps each user's problem history. 0 keeps everything.
func WithHistoryLimit(n int) Option {
	return func(m *Machine) {
		if n >= 0 {
			m.historyLimit = n
		}
	}
}

// New returns an idle Machine backed by st.
func New(st *store.Manager, opts ...Option) *Machine {
	m := &Machine{
		store:      st,
		gen:        generator.New(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        func() time.Time { return time.Now().UTC() },
		weakFactor: generator.DefaultWeakFactor,
		state:      StateIdle,
		typeIntent: model.SessionGeneral,
		listeners:  map[int]func(Snapshot){},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers fn to run after every successful transition.
func (m *Machine) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:             m.state,
		PracticeIntent:    m.practiceIntent,
		SessionTypeIntent: m.typeIntent,
		FocusedStrategyID: copyID(m.focused),
	}
	if m.lastType != nil {
		t := *m.lastType
		snap.LastSessionType = &t
	}
	if m.active != nil {
		s := m.active.Clone()
		snap.Session = &s
	}
	return snap
}

// begin serializes a mutator and locks the state.
func (m *Machine) begin() {
	m.op.Lock()
	m.mu.Lock()
}

// abort releases both locks without notifying.
func (m *Machine) abort() {
	m.mu.Unlock()
	m.op.Unlock()
}

// commit releases both locks and hands a snapshot of the committed state to
// every subscriber. Subscribers run unlocked and may call back into the
// machine.
func (m *Machine) commit() {
	snap := m.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()
	m.op.Unlock()
	for _, l := range listeners {
		l(snap)
	}
}

// SetPracticeIntent records the decision to practice. Setting it moves an
// idle machine to IntentPending; clearing it moves it back.
func (m *Machine) SetPracticeIntent(v bool) {
	m.begin()
	m.practiceIntent = v
	switch {
	case v && m.state == StateIdle:
		m.state = StateIntentPending
	case !v && m.state == StateIntentPending:
		m.state = StateIdle
	}
	m.commit()
}

// SetSessionTypeIntent selects general or focused practice.
func (m *Machine) SetSessionTypeIntent(t model.SessionType) error {
	if t != model.SessionGeneral && t != model.SessionFocused {
		return fmt.Errorf("%w: unknown session type %q", store.ErrValidation, t)
	}
	m.begin()
	m.typeIntent = t
	m.commit()
	return nil
}

// SetFocusedStrategy selects the strategy a focused session drills.
func (m *Machine) SetFocusedStrategy(id model.StrategyID) error {
	if _, ok := strategy.Lookup(id); !ok {
		return fmt.Errorf("%w: unknown strategy %q", store.ErrValidation, id)
	}
	m.begin()
	m.focused = &id
	m.commit()
	return nil
}

// ClearFocusedStrategy drops the focused strategy intent.
func (m *Machine) ClearFocusedStrategy() {
	m.begin()
	m.focused = nil
	m.commit()
}

// RememberLastSession seeds the last session type from a stored session so
// StartSameTypeSession works across runs.
func (m *Machine) RememberLastSession(s model.Session) {
	m.begin()
	t := s.Type
	if t == "" {
		t = model.SessionGeneral
	}
	m.lastType = &t
	m.lastFocus = nil
	if t == model.SessionFocused {
		m.lastFocus = copyID(s.FocusedStrategyID)
	}
	m.commit()
}

// StartSession generates and persists a session for userID from the pending
// intent.
func (m *Machine) StartSession(userID string) (model.Session, error) {
	m.begin()
	if m.state != StateIntentPending {
		m.abort()
		return model.Session{}, ErrNoIntent
	}
	kind := m.typeIntent
	focus := copyID(m.focused)
	now := m.now()
	m.mu.Unlock()

	user, ok := m.store.GetUserByID(userID)
	if !ok {
		m.op.Unlock()
		return model.Session{}, fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
	}
	if kind == model.SessionFocused && focus == nil {
		m.logger.Warn("focused session without strategy, starting general session", "user_id", userID)
		kind = model.SessionGeneral
	}
	if kind == model.SessionGeneral {
		focus = nil
		if len(user.Preferences.Operations.Enabled()) == 0 {
			m.logger.Info("no operations enabled, practicing addition", "user_id", userID)
		}
	}

	problems := m.gen.Generate(generator.Request{
		Preferences: user.Preferences,
		Performance: user.Statistics.StrategyPerformance,
		Focus:       focus,
		WeakFactor:  m.weakFactor,
	})
	if len(problems) > 0 {
		problems[0].AttemptedAt = &now
	}
	created, err := m.store.CreateSession(model.CreateSessionInput{
		UserID:            userID,
		Type:              kind,
		FocusedStrategyID: focus,
		Problems:          problems,
		StartTime:         now,
	})
	if err != nil {
		m.op.Unlock()
		return model.Session{}, err
	}

	m.mu.Lock()
	m.active = &created
	m.state = StateActive
	m.practiceIntent = false
	m.lastType = &kind
	m.lastFocus = copyID(focus)
	m.logger.Info("session started",
		"session_id", created.ID,
		"user_id", userID,
		"type", kind,
		"problems", len(created.Problems))
	m.commit()
	return created.Clone(), nil
}

// CurrentProblem returns the first unanswered problem of the active session.
func (m *Machine) CurrentProblem() (model.Problem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive || m.active == nil {
		return model.Problem{}, false
	}
	if i := firstOpen(m.active.Problems); i >= 0 {
		return m.active.Problems[i].Clone(), true
	}
	return model.Problem{}, false
}

// SubmitAnswer records an answer to the current problem. Answering the last
// problem completes the session.
func (m *Machine) SubmitAnswer(answer int) (model.Problem, error) {
	m.begin()
	if m.state != StateActive || m.active == nil {
		m.abort()
		return model.Problem{}, ErrNotActive
	}
	next := m.active.Clone()
	i := firstOpen(next.Problems)
	if i < 0 {
		m.abort()
		return model.Problem{}, ErrNotActive
	}
	now := m.now()
	m.mu.Unlock()

	p := &next.Problems[i]
	correct := answer == p.CorrectAnswer
	p.UserAnswer = &answer
	p.IsCorrect = &correct
	if p.AttemptedAt == nil {
		at := now
		p.AttemptedAt = &at
	}
	p.CompletedAt = &now
	answered := p.Clone()

	if i+1 == len(next.Problems) {
		done, err := m.complete(next)
		if err != nil {
			m.op.Unlock()
			return model.Problem{}, err
		}
		m.mu.Lock()
		m.active = &done
		m.state = StateCompleted
		m.commit()
		return answered, nil
	}

	at := now
	next.Problems[i+1].AttemptedAt = &at
	totals := stats.SessionTotals(next.Problems)
	saved, err := m.store.UpdateSession(next.ID, model.SessionPatch{
		Problems:     &next.Problems,
		TotalCorrect: &totals.Correct,
		TotalWrong:   &totals.Wrong,
		AverageTime:  &totals.AverageMs,
	})
	if err != nil {
		m.op.Unlock()
		return model.Problem{}, err
	}
	m.mu.Lock()
	m.active = &saved
	m.commit()
	return answered, nil
}

// EndSession completes the active session early.
func (m *Machine) EndSession() (model.Session, error) {
	m.begin()
	if m.state != StateActive || m.active == nil {
		m.abort()
		return model.Session{}, ErrNotActive
	}
	current := m.active.Clone()
	m.mu.Unlock()

	done, err := m.complete(current)
	if err != nil {
		m.op.Unlock()
		return model.Session{}, err
	}
	m.mu.Lock()
	m.active = &done
	m.state = StateCompleted
	m.commit()
	return done.Clone(), nil
}

// complete writes the finished session and the user's statistics in one
// document write. It runs without mu held and returns the stored session.
func (m *Machine) complete(s model.Session) (model.Session, error) {
	now := m.now()
	totals := stats.SessionTotals(s.Problems)
	s.Completed = true
	s.EndTime = &now
	s.TotalCorrect = totals.Correct
	s.TotalWrong = totals.Wrong
	s.AverageTime = totals.AverageMs

	_, err := m.store.Transact(func(d *model.AppData) error {
		si := -1
		for i := range d.Sessions {
			if d.Sessions[i].ID == s.ID {
				si = i
				break
			}
		}
		if si < 0 {
			return fmt.Errorf("session %s: %w", s.ID, store.ErrNotFound)
		}
		if d.Sessions[si].Completed {
			return fmt.Errorf("session %s: %w", s.ID, store.ErrSessionCompleted)
		}
		ui := -1
		for i := range d.Users {
			if d.Users[i].ID == s.UserID {
				ui = i
				break
			}
		}
		if ui < 0 {
			return fmt.Errorf("user %s: %w", s.UserID, store.ErrNotFound)
		}
		if err := model.ValidateSession(s); err != nil {
			return err
		}
		d.Sessions[si] = s.Clone()
		if totals.Answered > 0 {
			u := d.Users[ui]
			u.Statistics = stats.ApplySession(u.Statistics, s, m.historyLimit)
			u.LastActiveAt = now
			d.Users[ui] = u
		}
		return nil
	})
	if err != nil {
		return model.Session{}, err
	}
	m.logger.Info("session completed",
		"session_id", s.ID,
		"user_id", s.UserID,
		"correct", totals.Correct,
		"wrong", totals.Wrong,
		"avg_ms", totals.AverageMs)
	return s, nil
}

// ClearSession drops intents and the in-memory session and returns to Idle.
// The last session type is kept for StartSameTypeSession.
func (m *Machine) ClearSession() {
	m.begin()
	if m.state == StateActive && m.active != nil {
		m.logger.Debug("abandoning active session", "session_id", m.active.ID)
	}
	m.practiceIntent = false
	m.typeIntent = model.SessionGeneral
	m.focused = nil
	m.active = nil
	m.state = StateIdle
	m.commit()
}

// StartSameTypeSession re-enters IntentPending with the type, and for
// focused sessions the strategy, of the last session.
func (m *Machine) StartSameTypeSession() error {
	m.begin()
	if m.lastType == nil {
		m.abort()
		return ErrNoPreviousSession
	}
	if m.state == StateActive {
		m.abort()
		return ErrSessionInProgress
	}
	m.typeIntent = *m.lastType
	m.focused = nil
	if m.typeIntent == model.SessionFocused {
		m.focused = copyID(m.lastFocus)
	}
	m.practiceIntent = true
	m.active = nil
	m.state = StateIntentPending
	m.commit()
	return nil
}

func firstOpen(problems []model.Problem) int {
	for i, p := range problems {
		if !p.Completed() {
			return i
		}
	}
	return -1
}

func copyID(id *model.StrategyID) *model.StrategyID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
