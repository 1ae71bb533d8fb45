package stats

import (
	"fmt"

	"github.com/verte-zerg/tuimath/internal/model"
	"github.com/verte-zerg/tuimath/internal/store"
	"github.com/verte-zerg/tuimath/internal/strategy"
)

// StrategyRow is one line of the per-strategy table.
type StrategyRow struct {
	ID        model.StrategyID
	Name      string
	Operation model.Operation
	model.StrategyPerformance
}

// Report contains precomputed data for stats rendering.
type Report struct {
	User       model.User
	Sessions   []model.SessionAggregate
	Strategies []StrategyRow
	Weak       []model.StrategyID
}

// BuildReport loads the user's completed sessions and strategy performance.
// An empty cfg.UserID selects the current user.
func BuildReport(st *store.Manager, cfg model.StatsConfig) (Report, error) {
	var (
		user model.User
		ok   bool
	)
	if cfg.UserID != "" {
		user, ok = st.GetUserByID(cfg.UserID)
	} else {
		user, ok = st.CurrentUser()
	}
	if !ok {
		return Report{}, fmt.Errorf("stats user: %w", store.ErrNotFound)
	}

	var sessions []model.SessionAggregate
	for _, s := range st.ListSessions(user.ID) {
		if !s.Completed || s.AnsweredCount() == 0 {
			continue
		}
		agg := Aggregate(s)
		if cfg.Since != nil && agg.EndedAt.Before(*cfg.Since) {
			continue
		}
		sessions = append(sessions, agg)
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}

	return Report{
		User:       user,
		Sessions:   sessions,
		Strategies: strategyRows(user.Statistics.StrategyPerformance),
		Weak:       SelectWeakStrategies(user.Statistics.StrategyPerformance, 3),
	}, nil
}

// Aggregate summarizes a session for reporting.
func Aggregate(s model.Session) model.SessionAggregate {
	totals := SessionTotals(s.Problems)
	ended := s.StartTime
	if s.EndTime != nil {
		ended = *s.EndTime
	}
	return model.SessionAggregate{
		SessionID:  s.ID,
		Type:       s.Type,
		EndedAt:    ended,
		Correct:    totals.Correct,
		Incorrect:  totals.Wrong,
		AverageMs:  totals.AverageMs,
		DurationMs: ended.Sub(s.StartTime).Milliseconds(),
	}
}

// strategyRows lists attempted strategies in catalog order.
func strategyRows(perf map[model.StrategyID]model.StrategyPerformance) []StrategyRow {
	var rows []StrategyRow
	for _, s := range strategy.All() {
		p, ok := perf[s.ID]
		if !ok || p.TotalAttempts == 0 {
			continue
		}
		rows = append(rows, StrategyRow{ID: s.ID, Name: s.Name, Operation: s.Operation, StrategyPerformance: p})
	}
	return rows
}
