package domain

import "time"

type GoalType string

const (
	GoalMonthlyPnl        GoalType = "monthly_pnl"
	GoalMonthlyWinRate    GoalType = "monthly_win_rate"
	GoalMonthlyTradeCount GoalType = "monthly_trade_count"
)

// KnownGoalType reports whether t is one of the supported goal types.
func KnownGoalType(t GoalType) bool {
	switch t {
	case GoalMonthlyPnl, GoalMonthlyWinRate, GoalMonthlyTradeCount:
		return true
	}
	return false
}

// Goal is a target for one calendar period. At most one goal per
// (type, period) is meaningful; the service upserts on that key.
type Goal struct {
	ID        string    `json:"id"`
	Type      GoalType  `json:"type"`
	Period    string    `json:"period"` // YYYY-MM
	Target    float64   `json:"target"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type GoalStatus string

const (
	GoalAchieved GoalStatus = "achieved"
	GoalOnTrack  GoalStatus = "on_track"
	GoalAtRisk   GoalStatus = "at_risk"
)

// GoalProgress is the evaluated state of one goal against the trades of its
// period. It is ephemeral and never persisted. The two bases differ in
// whether open trades contribute their unrealized P&L.
type GoalProgress struct {
	Goal                  Goal       `json:"goal"`
	Current               float64    `json:"current"`
	CurrentWithUnrealized float64    `json:"currentWithUnrealized"`
	Percent               float64    `json:"percent"`
	PercentWithUnrealized float64    `json:"percentWithUnrealized"`
	Status                GoalStatus `json:"status"`
	StatusWithUnrealized  GoalStatus `json:"statusWithUnrealized"`
}
