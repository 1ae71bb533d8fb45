// Package model defines shared data structures.
package model

import (
	"strconv"
	"time"
)

// Operation is one of the four arithmetic operations.
type Operation string

const (
	OpAddition       Operation = "addition"
	OpSubtraction    Operation = "subtraction"
	OpMultiplication Operation = "multiplication"
	OpDivision       Operation = "division"
)

// AllOperations returns the operations in display order.
func AllOperations() []Operation {
	return []Operation{OpAddition, OpSubtraction, OpMultiplication, OpDivision}
}

// Symbol returns the operator sign used when rendering a problem.
func (o Operation) Symbol() string {
	switch o {
	case OpAddition:
		return "+"
	case OpSubtraction:
		return "−"
	case OpMultiplication:
		return "×"
	case OpDivision:
		return "÷"
	default:
		return "?"
	}
}

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	switch o {
	case OpAddition, OpSubtraction, OpMultiplication, OpDivision:
		return true
	}
	return false
}

// StrategyID names a mental-calculation technique a problem is designed to elicit.
type StrategyID string

// SessionType distinguishes general practice from focused remediation.
type SessionType string

const (
	SessionGeneral SessionType = "general"
	SessionFocused SessionType = "focused"
)

// AppData is the single persisted document.
type AppData struct {
	Users         []User    `json:"users" yaml:"users"`
	Sessions      []Session `json:"sessions" yaml:"sessions"`
	CurrentUserID *string   `json:"currentUserId" yaml:"currentUserId"`
}

// DefaultAppData returns the empty document.
func DefaultAppData() AppData {
	return AppData{
		Users:    []User{},
		Sessions: []Session{},
	}
}

// OperationToggles lists which operations are enabled for practice.
type OperationToggles struct {
	Addition       bool `json:"addition" yaml:"addition"`
	Subtraction    bool `json:"subtraction" yaml:"subtraction"`
	Multiplication bool `json:"multiplication" yaml:"multiplication"`
	Division       bool `json:"division" yaml:"division"`
}

// Enabled returns the enabled operations in display order.
func (t OperationToggles) Enabled() []Operation {
	var ops []Operation
	if t.Addition {
		ops = append(ops, OpAddition)
	}
	if t.Subtraction {
		ops = append(ops, OpSubtraction)
	}
	if t.Multiplication {
		ops = append(ops, OpMultiplication)
	}
	if t.Division {
		ops = append(ops, OpDivision)
	}
	return ops
}

// Preferences holds per-user practice settings.
type Preferences struct {
	Operations     OperationToggles `json:"operations" yaml:"operations"`
	SessionLength  int              `json:"sessionLength" yaml:"sessionLength" validate:"min=1,max=100"`
	MaxNumber      int              `json:"maxNumber" yaml:"maxNumber" validate:"min=2,max=1000"`
	SoundEnabled   bool             `json:"soundEnabled" yaml:"soundEnabled"`
	HapticsEnabled bool             `json:"hapticsEnabled" yaml:"hapticsEnabled"`
}

// DefaultPreferences returns the preferences given to new users.
func DefaultPreferences() Preferences {
	return Preferences{
		Operations: OperationToggles{
			Addition:       true,
			Subtraction:    true,
			Multiplication: true,
			Division:       true,
		},
		SessionLength:  10,
		MaxNumber:      20,
		SoundEnabled:   true,
		HapticsEnabled: true,
	}
}

// StrategyPerformance counts attempts for one strategy.
type StrategyPerformance struct {
	Correct       int `json:"correct" yaml:"correct" validate:"min=0,ltefield=TotalAttempts"`
	Incorrect     int `json:"incorrect" yaml:"incorrect" validate:"min=0,ltefield=TotalAttempts"`
	TotalAttempts int `json:"totalAttempts" yaml:"totalAttempts" validate:"min=0"`
}

// Accuracy returns correct/total, or 1.0 when the strategy was never attempted.
func (p StrategyPerformance) Accuracy() float64 {
	if p.TotalAttempts == 0 {
		return 1.0
	}
	return float64(p.Correct) / float64(p.TotalAttempts)
}

// Statistics aggregates a user's practice history.
type Statistics struct {
	TotalProblemsAttempted int                                `json:"totalProblemsAttempted" yaml:"totalProblemsAttempted" validate:"min=0"`
	TotalCorrectAnswers    int                                `json:"totalCorrectAnswers" yaml:"totalCorrectAnswers" validate:"min=0,ltefield=TotalProblemsAttempted"`
	AverageAccuracy        float64                            `json:"averageAccuracy" yaml:"averageAccuracy" validate:"min=0"`
	AverageResponseTime    float64                            `json:"averageResponseTime" yaml:"averageResponseTime" validate:"min=0"`
	TotalSessionsCompleted int                                `json:"totalSessionsCompleted" yaml:"totalSessionsCompleted" validate:"min=0"`
	StreakCurrent          int                                `json:"streakCurrent" yaml:"streakCurrent" validate:"min=0"`
	StreakBest             int                                `json:"streakBest" yaml:"streakBest" validate:"min=0"`
	PersonalBests          map[string]float64                 `json:"personalBests" yaml:"personalBests"`
	StrategyPerformance    map[StrategyID]StrategyPerformance `json:"strategyPerformance" yaml:"strategyPerformance" validate:"dive"`
	ProblemHistory         []Problem                          `json:"problemHistory" yaml:"problemHistory"`
}

// DefaultStatistics returns zeroed statistics with allocated maps.
func DefaultStatistics() Statistics {
	return Statistics{
		PersonalBests:       map[string]float64{},
		StrategyPerformance: map[StrategyID]StrategyPerformance{},
		ProblemHistory:      []Problem{},
	}
}

// User is a local profile.
type User struct {
	ID           string      `json:"id" yaml:"id"`
	Name         string      `json:"name" yaml:"name"`
	Preferences  Preferences `json:"preferences" yaml:"preferences"`
	Statistics   Statistics  `json:"statistics" yaml:"statistics"`
	CreatedAt    time.Time   `json:"createdAt" yaml:"createdAt"`
	LastActiveAt time.Time   `json:"lastActiveAt" yaml:"lastActiveAt"`
}

// Problem is a single arithmetic question inside a session.
type Problem struct {
	ID               string     `json:"id" yaml:"id"`
	Type             Operation  `json:"type" yaml:"type"`
	Operands         [2]int     `json:"operands" yaml:"operands"`
	CorrectAnswer    int        `json:"correctAnswer" yaml:"correctAnswer"`
	IntendedStrategy StrategyID `json:"intendedStrategy" yaml:"intendedStrategy"`
	UserAnswer       *int       `json:"userAnswer,omitempty" yaml:"userAnswer,omitempty"`
	IsCorrect        *bool      `json:"isCorrect,omitempty" yaml:"isCorrect,omitempty"`
	AttemptedAt      *time.Time `json:"attemptedAt,omitempty" yaml:"attemptedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
}

// Completed reports whether an answer has been recorded.
func (p Problem) Completed() bool {
	return p.CompletedAt != nil
}

// Correct reports whether the recorded answer was correct.
func (p Problem) Correct() bool {
	return p.IsCorrect != nil && *p.IsCorrect
}

// ResponseTime returns the time between presentation and answer, or zero.
func (p Problem) ResponseTime() time.Duration {
	if p.AttemptedAt == nil || p.CompletedAt == nil {
		return 0
	}
	d := p.CompletedAt.Sub(*p.AttemptedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Prompt renders the problem as "a op b".
func (p Problem) Prompt() string {
	return strconv.Itoa(p.Operands[0]) + " " + p.Type.Symbol() + " " + strconv.Itoa(p.Operands[1])
}

// Session is one practice run.
type Session struct {
	ID                string      `json:"id" yaml:"id"`
	UserID            string      `json:"userId" yaml:"userId"`
	Type              SessionType `json:"type" yaml:"type"`
	FocusedStrategyID *StrategyID `json:"focusedStrategyId,omitempty" yaml:"focusedStrategyId,omitempty"`
	StartTime         time.Time   `json:"startTime" yaml:"startTime"`
	EndTime           *time.Time  `json:"endTime,omitempty" yaml:"endTime,omitempty"`
	Problems          []Problem   `json:"problems" yaml:"problems"`
	Completed         bool        `json:"completed" yaml:"completed"`
	TotalCorrect      int         `json:"totalCorrect" yaml:"totalCorrect"`
	TotalWrong        int         `json:"totalWrong" yaml:"totalWrong"`
	AverageTime       float64     `json:"averageTime" yaml:"averageTime"`
	SessionLength     int         `json:"sessionLength" yaml:"sessionLength"`
}

// AnsweredCount returns the number of problems with a completion timestamp.
func (s Session) AnsweredCount() int {
	n := 0
	for _, p := range s.Problems {
		if p.Completed() {
			n++
		}
	}
	return n
}

// CreateUserInput carries caller-supplied fields for a new user.
type CreateUserInput struct {
	Name        string            `validate:"required,max=64"`
	Preferences *PreferencesPatch `validate:"omitempty"`
}

// PreferencesPatch updates preference fields key-wise.
type PreferencesPatch struct {
	Operations     *OperationTogglesPatch
	SessionLength  *int
	MaxNumber      *int
	SoundEnabled   *bool
	HapticsEnabled *bool
}

// OperationTogglesPatch updates individual operation toggles.
type OperationTogglesPatch struct {
	Addition       *bool
	Subtraction    *bool
	Multiplication *bool
	Division       *bool
}

// StatisticsPatch updates statistics fields key-wise. Map entries are merged per key.
type StatisticsPatch struct {
	TotalProblemsAttempted *int
	TotalCorrectAnswers    *int
	AverageAccuracy        *float64
	AverageResponseTime    *float64
	TotalSessionsCompleted *int
	StreakCurrent          *int
	StreakBest             *int
	PersonalBests          map[string]float64
	StrategyPerformance    map[StrategyID]StrategyPerformance
	ProblemHistory         *[]Problem
}

// UserPatch is a partial update for a user.
type UserPatch struct {
	Name        *string
	Preferences *PreferencesPatch
	Statistics  *StatisticsPatch
}

// CreateSessionInput carries fields for a new session.
type CreateSessionInput struct {
	UserID            string `validate:"required"`
	Type              SessionType
	FocusedStrategyID *StrategyID
	Problems          []Problem
	StartTime         time.Time
}

// SessionPatch is a partial update for a session.
type SessionPatch struct {
	Problems     *[]Problem
	Completed    *bool
	EndTime      *time.Time
	TotalCorrect *int
	TotalWrong   *int
	AverageTime  *float64
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	UserID      string
	Since       *time.Time
	Last        int
	CurveWindow int
}

// SessionAggregate summarizes a completed session for reporting.
type SessionAggregate struct {
	SessionID  string
	Type       SessionType
	EndedAt    time.Time
	Correct    int
	Incorrect  int
	AverageMs  float64
	DurationMs int64
}
