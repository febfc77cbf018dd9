package usecase

import (
	"regexp"
	"strings"
	"time"

	"github.com/vitos/trade_journal/internal/domain"
	"github.com/vitos/trade_journal/internal/pkg/id"
	"go.uber.org/zap"
)

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// GoalService owns goal mutations and progress evaluation. Goals upsert by
// (type, period): setting a target for an existing pair overwrites it.
type GoalService struct {
	store  domain.Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewGoalService(store domain.Store, logger *zap.Logger) *GoalService {
	return &GoalService{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  id.New,
	}
}

func (s *GoalService) ListGoals() []domain.Goal {
	goals, _ := s.store.LoadGoals()
	return goals
}

func (s *GoalService) UpsertGoal(goalType domain.GoalType, period string, target float64, userID string) ([]domain.Goal, bool) {
	goals := s.ListGoals()
	if !domain.KnownGoalType(goalType) || !periodPattern.MatchString(period) {
		return goals, false
	}

	now := s.now()
	for i := range goals {
		if goals[i].Type == goalType && goals[i].Period == period {
			goals[i].Target = target
			goals[i].UpdatedAt = now
			s.persist(goals)
			return goals, true
		}
	}

	goals = append(goals, domain.Goal{
		ID:        s.newID(),
		Type:      goalType,
		Period:    period,
		Target:    target,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	s.persist(goals)
	return goals, true
}

func (s *GoalService) DeleteGoal(goalID string) ([]domain.Goal, bool) {
	goals := s.ListGoals()
	for i := range goals {
		if goals[i].ID == goalID {
			goals = append(goals[:i], goals[i+1:]...)
			s.persist(goals)
			return goals, true
		}
	}
	return goals, false
}

func (s *GoalService) persist(goals []domain.Goal) {
	if err := s.store.SaveGoals(goals); err != nil {
		s.logger.Error("Failed to persist goals", zap.Error(err))
	}
}

// EvaluateGoals derives progress for each goal from the trades of its period.
// The realized basis uses closed trades only; the with-unrealized basis folds
// open trades in at their total P&L.
func EvaluateGoals(goals []domain.Goal, trades []domain.Trade) []domain.GoalProgress {
	progress := make([]domain.GoalProgress, 0, len(goals))
	for _, g := range goals {
		var inPeriod, closed []domain.Trade
		for _, t := range trades {
			if !strings.HasPrefix(t.Date, g.Period) {
				continue
			}
			inPeriod = append(inPeriod, t)
			if t.Status == domain.StatusClosed {
				closed = append(closed, t)
			}
		}

		current := goalValue(g.Type, closed, false)
		withUnrealized := goalValue(g.Type, inPeriod, true)

		progress = append(progress, domain.GoalProgress{
			Goal:                  g,
			Current:               current,
			CurrentWithUnrealized: withUnrealized,
			Percent:               progressPercent(current, g.Target),
			PercentWithUnrealized: progressPercent(withUnrealized, g.Target),
			Status:                goalStatus(current, g.Target),
			StatusWithUnrealized:  goalStatus(withUnrealized, g.Target),
		})
	}
	return progress
}

func goalValue(goalType domain.GoalType, trades []domain.Trade, withUnrealized bool) float64 {
	pnl := func(t domain.Trade) float64 {
		if withUnrealized {
			return t.TotalPnl
		}
		return t.RealizedPnl
	}

	switch goalType {
	case domain.GoalMonthlyPnl:
		var sum float64
		for _, t := range trades {
			sum += pnl(t)
		}
		return domain.Round2(sum)
	case domain.GoalMonthlyTradeCount:
		return float64(len(trades))
	case domain.GoalMonthlyWinRate:
		if len(trades) == 0 {
			return 0
		}
		wins := 0
		for _, t := range trades {
			if pnl(t) > 0 {
				wins++
			}
		}
		return domain.Round2(float64(wins) / float64(len(trades)) * 100)
	}
	return 0
}

func progressPercent(current, target float64) float64 {
	if target == 0 {
		return 0
	}
	pct := current / target * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return domain.Round2(pct)
}

// A zero target is a degenerate "no goal set meaningfully" case and always
// reads on_track.
func goalStatus(current, target float64) domain.GoalStatus {
	if target == 0 {
		return domain.GoalOnTrack
	}
	if current >= target {
		return domain.GoalAchieved
	}
	if current >= 0.7*target {
		return domain.GoalOnTrack
	}
	return domain.GoalAtRisk
}
