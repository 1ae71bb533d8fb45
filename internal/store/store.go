// Package store persists the application document and exposes CRUD over it.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/tuimath/internal/model"
)

// Manager is the sole reader and writer of the persisted document. Every
// mutation clones the cached document, applies the change, serializes the
// whole document, writes it, and only then swaps the cache and notifies
// subscribers. A failed write leaves both the cache and the stored document
// as they were.
type Manager struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	mu        sync.Mutex
	doc       model.AppData
	listeners map[int]func(model.AppData)
	nextID    int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for recovery warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// New returns a Manager holding the default document. Call Initialize to load
// the persisted one.
func New(backend Backend, opts ...Option) *Manager {
	m := &Manager{
		backend:   backend,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
		doc:       model.DefaultAppData(),
		listeners: map[int]func(model.AppData){},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open constructs a Manager and loads the persisted document.
func Open(backend Backend, opts ...Option) (*Manager, error) {
	m := New(backend, opts...)
	if _, err := m.Initialize(); err != nil {
		return nil, err
	}
	return m, nil
}

// Initialize reads the persisted document. A missing, unparsable, or
// shape-invalid document yields the default empty document, which is not
// written back. Only backend read failures are returned.
func (m *Manager) Initialize() (model.AppData, error) {
	raw, ok, err := m.backend.Read()
	if err != nil {
		return model.AppData{}, fmt.Errorf("read document: %w", err)
	}
	doc := model.DefaultAppData()
	if ok {
		decoded, derr := Decode([]byte(raw))
		if derr != nil {
			m.logger.Warn("persisted document is corrupted, starting from defaults",
				"error", derr,
				"bytes", len(raw))
		} else {
			doc = decoded
		}
	}
	m.mu.Lock()
	m.doc = doc
	m.mu.Unlock()
	return doc.Clone(), nil
}

// Data returns a copy of the cached document.
func (m *Manager) Data() model.AppData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone()
}

// Subscribe registers fn to run after every successful write. The returned
// function removes the subscription.
func (m *Manager) Subscribe(fn func(model.AppData)) func() {
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

// Transact applies fn to a copy of the document and persists the result as
// one write. fn must not call back into the Manager.
func (m *Manager) Transact(fn func(*model.AppData) error) (model.AppData, error) {
	m.mu.Lock()
	next := m.doc.Clone()
	if err := fn(&next); err != nil {
		m.mu.Unlock()
		return model.AppData{}, err
	}
	if err := m.persist(next); err != nil {
		m.mu.Unlock()
		return model.AppData{}, err
	}
	m.doc = next
	listeners := make([]func(model.AppData), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(next.Clone())
	}
	return next.Clone(), nil
}

func (m *Manager) persist(doc model.AppData) error {
	if err := model.ValidateAppData(doc); err != nil {
		return err
	}
	raw, err := Encode(doc)
	if err != nil {
		return err
	}
	if err := m.backend.Write(string(raw)); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// CreateUser validates input, builds a user with default preferences merged
// with the supplied overrides, and persists it. The first user becomes current.
func (m *Manager) CreateUser(input model.CreateUserInput) (model.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := model.Validate(input); err != nil {
		return model.User{}, err
	}
	prefs := model.DefaultPreferences()
	applyPreferencesPatch(&prefs, input.Preferences)
	if err := model.Validate(prefs); err != nil {
		return model.User{}, err
	}
	now := m.now()
	user := model.User{
		ID:           m.newID(),
		Name:         input.Name,
		Preferences:  prefs,
		Statistics:   model.DefaultStatistics(),
		CreatedAt:    now,
		LastActiveAt: now,
	}
	_, err := m.Transact(func(d *model.AppData) error {
		d.Users = append(d.Users, user)
		if d.CurrentUserID == nil {
			id := user.ID
			d.CurrentUserID = &id
		}
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	m.logger.Info("user created", "user_id", user.ID)
	return user.Clone(), nil
}

// GetUserByID looks a user up by id.
func (m *Manager) GetUserByID(id string) (model.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := userIndex(m.doc, id); i >= 0 {
		return m.doc.Users[i].Clone(), true
	}
	return model.User{}, false
}

// FindUserByName returns the first user whose name matches case-insensitively.
func (m *Manager) FindUserByName(name string) (model.User, bool) {
	name = strings.TrimSpace(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.doc.Users {
		if strings.EqualFold(u.Name, name) {
			return u.Clone(), true
		}
	}
	return model.User{}, false
}

// ListUsers returns all users in creation order.
func (m *Manager) ListUsers() []model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, len(m.doc.Users))
	for i, u := range m.doc.Users {
		out[i] = u.Clone()
	}
	return out
}

// CurrentUser returns the active user, if any.
func (m *Manager) CurrentUser() (model.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc.CurrentUserID == nil {
		return model.User{}, false
	}
	if i := userIndex(m.doc, *m.doc.CurrentUserID); i >= 0 {
		return m.doc.Users[i].Clone(), true
	}
	return model.User{}, false
}

// SetCurrentUser marks id as the active user. An empty id clears it.
func (m *Manager) SetCurrentUser(id string) error {
	_, err := m.Transact(func(d *model.AppData) error {
		if id == "" {
			d.CurrentUserID = nil
			return nil
		}
		if userIndex(*d, id) < 0 {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		d.CurrentUserID = &id
		return nil
	})
	return err
}

// UpdateUser merges patch into the user. Nested preferences and statistics
// are merged field by field; lastActiveAt is refreshed.
func (m *Manager) UpdateUser(id string, patch model.UserPatch) (model.User, error) {
	var updated model.User
	_, err := m.Transact(func(d *model.AppData) error {
		i := userIndex(*d, id)
		if i < 0 {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		u := d.Users[i]
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return fmt.Errorf("%w: name must not be empty", ErrValidation)
			}
			u.Name = name
		}
		applyPreferencesPatch(&u.Preferences, patch.Preferences)
		if err := model.Validate(u.Preferences); err != nil {
			return err
		}
		applyStatisticsPatch(&u.Statistics, patch.Statistics)
		if err := model.Validate(u.Statistics); err != nil {
			return err
		}
		u.LastActiveAt = m.now()
		d.Users[i] = u
		updated = u
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	return updated.Clone(), nil
}

// DeleteUser removes the user and every session that belongs to it.
func (m *Manager) DeleteUser(id string) error {
	removed := 0
	_, err := m.Transact(func(d *model.AppData) error {
		i := userIndex(*d, id)
		if i < 0 {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		d.Users = append(d.Users[:i], d.Users[i+1:]...)
		kept := d.Sessions[:0]
		for _, s := range d.Sessions {
			if s.UserID == id {
				removed++
				continue
			}
			kept = append(kept, s)
		}
		d.Sessions = kept
		if d.CurrentUserID != nil && *d.CurrentUserID == id {
			d.CurrentUserID = nil
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.Info("user deleted", "user_id", id, "sessions_removed", removed)
	return nil
}

// CreateSession persists a new session for an existing user.
func (m *Manager) CreateSession(input model.CreateSessionInput) (model.Session, error) {
	if err := model.Validate(input); err != nil {
		return model.Session{}, err
	}
	start := input.StartTime
	if start.IsZero() {
		start = m.now()
	}
	kind := input.Type
	if kind == "" {
		kind = model.SessionGeneral
	}
	problems := input.Problems
	if problems == nil {
		problems = []model.Problem{}
	}
	session := model.Session{
		ID:                m.newID(),
		UserID:            input.UserID,
		Type:              kind,
		FocusedStrategyID: input.FocusedStrategyID,
		StartTime:         start,
		Problems:          problems,
		SessionLength:     len(problems),
	}
	session = session.Clone()
	_, err := m.Transact(func(d *model.AppData) error {
		if userIndex(*d, input.UserID) < 0 {
			return fmt.Errorf("user %s: %w", input.UserID, ErrNotFound)
		}
		d.Sessions = append(d.Sessions, session)
		return nil
	})
	if err != nil {
		return model.Session{}, err
	}
	return session.Clone(), nil
}

// GetSessionByID looks a session up by id.
func (m *Manager) GetSessionByID(id string) (model.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := sessionIndex(m.doc, id); i >= 0 {
		return m.doc.Sessions[i].Clone(), true
	}
	return model.Session{}, false
}

// ListSessions returns the sessions of a user ordered by start time. An
// empty userID lists every session.
func (m *Manager) ListSessions(userID string) []model.Session {
	m.mu.Lock()
	var out []model.Session
	for _, s := range m.doc.Sessions {
		if userID == "" || s.UserID == userID {
			out = append(out, s.Clone())
		}
	}
	m.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// UpdateSession merges patch into the session. Completed sessions accept no
// problem changes and cannot be reopened; answered problems are immutable.
func (m *Manager) UpdateSession(id string, patch model.SessionPatch) (model.Session, error) {
	var updated model.Session
	_, err := m.Transact(func(d *model.AppData) error {
		i := sessionIndex(*d, id)
		if i < 0 {
			return fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		s, err := applySessionPatch(d.Sessions[i], patch)
		if err != nil {
			return err
		}
		d.Sessions[i] = s
		updated = s
		return nil
	})
	if err != nil {
		return model.Session{}, err
	}
	return updated.Clone(), nil
}

// Export serializes the cached document as indented JSON.
func (m *Manager) Export() ([]byte, error) {
	doc := m.Data()
	normalize(&doc)
	return json.MarshalIndent(doc, "", "  ")
}

// Import replaces the whole document with raw. Unlike Initialize, an invalid
// document is reported instead of being replaced by defaults.
func (m *Manager) Import(raw []byte) error {
	doc, err := Decode(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	_, err = m.Transact(func(d *model.AppData) error {
		*d = doc
		return nil
	})
	return err
}

// Encode serializes the document. Missing arrays are written as empty arrays.
func Encode(doc model.AppData) ([]byte, error) {
	normalize(&doc)
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return raw, nil
}

// Decode parses and shape-checks a serialized document.
func Decode(raw []byte) (model.AppData, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.AppData{}, fmt.Errorf("%w: %v", errCorruptedData, err)
	}
	for _, key := range []string{"users", "sessions"} {
		v, ok := fields[key]
		if !ok {
			return model.AppData{}, fmt.Errorf("%w: missing %q", errCorruptedData, key)
		}
		if t := bytes.TrimSpace(v); len(t) == 0 || t[0] != '[' {
			return model.AppData{}, fmt.Errorf("%w: %q is not an array", errCorruptedData, key)
		}
	}
	var doc model.AppData
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.AppData{}, fmt.Errorf("%w: %v", errCorruptedData, err)
	}
	if err := model.ValidateAppData(doc); err != nil {
		return model.AppData{}, fmt.Errorf("%w: %v", errCorruptedData, err)
	}
	return doc, nil
}

func normalize(doc *model.AppData) {
	if doc.Users == nil {
		doc.Users = []model.User{}
	}
	if doc.Sessions == nil {
		doc.Sessions = []model.Session{}
	}
}

func userIndex(d model.AppData, id string) int {
	for i, u := range d.Users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func sessionIndex(d model.AppData, id string) int {
	for i, s := range d.Sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}
