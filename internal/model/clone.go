package model

import "time"

// Clone returns a deep copy of the document. Nil slices and maps stay nil.
func (d AppData) Clone() AppData {
	out := AppData{}
	if d.Users != nil {
		out.Users = make([]User, len(d.Users))
		for i, u := range d.Users {
			out.Users[i] = u.Clone()
		}
	}
	if d.Sessions != nil {
		out.Sessions = make([]Session, len(d.Sessions))
		for i, s := range d.Sessions {
			out.Sessions[i] = s.Clone()
		}
	}
	if d.CurrentUserID != nil {
		id := *d.CurrentUserID
		out.CurrentUserID = &id
	}
	return out
}

// Clone returns a deep copy of the user.
func (u User) Clone() User {
	out := u
	out.Statistics = u.Statistics.Clone()
	return out
}

// Clone returns a deep copy of the statistics.
func (s Statistics) Clone() Statistics {
	out := s
	if s.PersonalBests != nil {
		out.PersonalBests = make(map[string]float64, len(s.PersonalBests))
		for k, v := range s.PersonalBests {
			out.PersonalBests[k] = v
		}
	}
	if s.StrategyPerformance != nil {
		out.StrategyPerformance = make(map[StrategyID]StrategyPerformance, len(s.StrategyPerformance))
		for k, v := range s.StrategyPerformance {
			out.StrategyPerformance[k] = v
		}
	}
	out.ProblemHistory = cloneProblems(s.ProblemHistory)
	return out
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	out := s
	if s.FocusedStrategyID != nil {
		id := *s.FocusedStrategyID
		out.FocusedStrategyID = &id
	}
	out.EndTime = cloneTime(s.EndTime)
	out.Problems = cloneProblems(s.Problems)
	return out
}

// Clone returns a deep copy of the problem.
func (p Problem) Clone() Problem {
	out := p
	if p.UserAnswer != nil {
		v := *p.UserAnswer
		out.UserAnswer = &v
	}
	if p.IsCorrect != nil {
		v := *p.IsCorrect
		out.IsCorrect = &v
	}
	out.AttemptedAt = cloneTime(p.AttemptedAt)
	out.CompletedAt = cloneTime(p.CompletedAt)
	return out
}

func cloneProblems(in []Problem) []Problem {
	if in == nil {
		return nil
	}
	out := make([]Problem, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
