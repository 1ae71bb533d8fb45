package store

import (
	"fmt"

	"github.com/verte-zerg/tuimath/internal/model"
)

func applyPreferencesPatch(p *model.Preferences, patch *model.PreferencesPatch) {
	if patch == nil {
		return
	}
	if ops := patch.Operations; ops != nil {
		setBool(&p.Operations.Addition, ops.Addition)
		setBool(&p.Operations.Subtraction, ops.Subtraction)
		setBool(&p.Operations.Multiplication, ops.Multiplication)
		setBool(&p.Operations.Division, ops.Division)
	}
	setInt(&p.SessionLength, patch.SessionLength)
	setInt(&p.MaxNumber, patch.MaxNumber)
	setBool(&p.SoundEnabled, patch.SoundEnabled)
	setBool(&p.HapticsEnabled, patch.HapticsEnabled)
}

func applyStatisticsPatch(s *model.Statistics, patch *model.StatisticsPatch) {
	if patch == nil {
		return
	}
	setInt(&s.TotalProblemsAttempted, patch.TotalProblemsAttempted)
	setInt(&s.TotalCorrectAnswers, patch.TotalCorrectAnswers)
	setFloat(&s.AverageAccuracy, patch.AverageAccuracy)
	setFloat(&s.AverageResponseTime, patch.AverageResponseTime)
	setInt(&s.TotalSessionsCompleted, patch.TotalSessionsCompleted)
	setInt(&s.StreakCurrent, patch.StreakCurrent)
	setInt(&s.StreakBest, patch.StreakBest)
	if len(patch.PersonalBests) > 0 {
		if s.PersonalBests == nil {
			s.PersonalBests = map[string]float64{}
		}
		for k, v := range patch.PersonalBests {
			s.PersonalBests[k] = v
		}
	}
	if len(patch.StrategyPerformance) > 0 {
		if s.StrategyPerformance == nil {
			s.StrategyPerformance = map[model.StrategyID]model.StrategyPerformance{}
		}
		for k, v := range patch.StrategyPerformance {
			s.StrategyPerformance[k] = v
		}
	}
	if patch.ProblemHistory != nil {
		s.ProblemHistory = append([]model.Problem(nil), (*patch.ProblemHistory)...)
	}
}

func applySessionPatch(s model.Session, patch model.SessionPatch) (model.Session, error) {
	if s.Completed {
		if patch.Problems != nil {
			return s, fmt.Errorf("session %s: %w", s.ID, ErrSessionCompleted)
		}
		if patch.Completed != nil && !*patch.Completed {
			return s, fmt.Errorf("session %s: %w", s.ID, ErrSessionCompleted)
		}
	}
	if patch.Problems != nil {
		next := *patch.Problems
		if err := checkAnsweredUnchanged(s.Problems, next); err != nil {
			return s, fmt.Errorf("session %s: %w", s.ID, err)
		}
		s.Problems = make([]model.Problem, len(next))
		for i, p := range next {
			s.Problems[i] = p.Clone()
		}
	}
	if patch.Completed != nil {
		s.Completed = *patch.Completed
	}
	if patch.EndTime != nil {
		t := *patch.EndTime
		s.EndTime = &t
	}
	setInt(&s.TotalCorrect, patch.TotalCorrect)
	setInt(&s.TotalWrong, patch.TotalWrong)
	setFloat(&s.AverageTime, patch.AverageTime)
	if err := model.ValidateSession(s); err != nil {
		return s, err
	}
	return s, nil
}

// checkAnsweredUnchanged rejects a problem list that drops or rewrites an
// answered problem.
func checkAnsweredUnchanged(prev, next []model.Problem) error {
	for i, p := range prev {
		if !p.Completed() {
			continue
		}
		if i >= len(next) || !sameAnswer(p, next[i]) {
			return fmt.Errorf("problem %s: %w", p.ID, ErrProblemImmutable)
		}
	}
	return nil
}

func sameAnswer(a, b model.Problem) bool {
	if a.ID != b.ID || !b.Completed() || !a.CompletedAt.Equal(*b.CompletedAt) {
		return false
	}
	if (a.UserAnswer == nil) != (b.UserAnswer == nil) || (a.UserAnswer != nil && *a.UserAnswer != *b.UserAnswer) {
		return false
	}
	return a.Correct() == b.Correct()
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
