package domain

import "time"

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// CurrentTradeSchema is the version tag written on every persisted trade.
// Version 1 records carried a single embedded exit instead of a leg list.
const CurrentTradeSchema = 2

// ExitLeg is one partial (or full) closing fill against an open trade.
type ExitLeg struct {
	ID       string  `json:"id"`
	Date     string  `json:"date"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Fee      float64 `json:"fee,omitempty"`
	Note     string  `json:"note,omitempty"`
}

// Trade is one opened position plus its exit history. Derived fields are
// recomputed by ComputeMetrics after every mutation and never edited directly.
type Trade struct {
	ID            string    `json:"id"`
	SchemaVersion int       `json:"schemaVersion"`
	Date          string    `json:"date"` // YYYY-MM-DD
	Symbol        string    `json:"symbol"`
	Direction     Direction `json:"direction"`
	EntryPrice    float64   `json:"entryPrice"`
	Quantity      float64   `json:"quantity"` // original size, not remaining
	MarkPrice     *float64  `json:"markPrice,omitempty"`
	Setup         string    `json:"setup,omitempty"`
	Emotion       string    `json:"emotion,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	ExitLegs      []ExitLeg `json:"exitLegs"`
	UserID        string    `json:"userId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	// Derived.
	RemainingQuantity float64 `json:"remainingQuantity"`
	RealizedPnl       float64 `json:"realizedPnl"`
	UnrealizedPnl     float64 `json:"unrealizedPnl"`
	TotalPnl          float64 `json:"totalPnl"`
	RealizedPct       float64 `json:"realizedPct"`
	TotalPct          float64 `json:"totalPct"`
	Status            Status  `json:"status"`
}

// ExitedQuantity sums all exit leg quantities.
func (t *Trade) ExitedQuantity() float64 {
	var q float64
	for _, leg := range t.ExitLegs {
		q += leg.Quantity
	}
	return q
}

// Clone returns a deep copy so callers can mutate without aliasing the
// persisted slice.
func (t Trade) Clone() Trade {
	c := t
	if t.MarkPrice != nil {
		p := *t.MarkPrice
		c.MarkPrice = &p
	}
	c.ExitLegs = make([]ExitLeg, len(t.ExitLegs))
	copy(c.ExitLegs, t.ExitLegs)
	return c
}
