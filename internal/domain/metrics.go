package domain

import "math"

// QuantityEpsilon absorbs floating rounding when comparing quantities.
const QuantityEpsilon = 1e-6

// Round2 rounds a monetary value to 2 decimal places. The signed epsilon keeps
// values like 19.9999999 from rounding down after the float multiply.
func Round2(v float64) float64 {
	scaled := v * 100
	return math.Round(scaled+math.Copysign(1e-9, scaled)) / 100
}

// LegPnl is the profit of one closing fill. Long profits when the exit is
// above the entry, short when it is below. Fees always subtract.
func LegPnl(direction Direction, entryPrice, exitPrice, quantity, fee float64) float64 {
	var gross float64
	if direction == DirectionShort {
		gross = (entryPrice - exitPrice) * quantity
	} else {
		gross = (exitPrice - entryPrice) * quantity
	}
	return Round2(gross - fee)
}

// DeriveStatus reports a trade closed once its remaining quantity is within
// epsilon of zero.
func DeriveStatus(t *Trade) Status {
	if t.Quantity-t.ExitedQuantity() <= QuantityEpsilon {
		return StatusClosed
	}
	return StatusOpen
}

// ComputeMetrics recomputes every derived field on t. It is the single source
// of truth for P&L and status and must run after every structural change to a
// trade. Realized P&L is fixed by each leg's own price and fee; the mark only
// ever affects the unrealized part. A trade that closes loses its mark price.
func ComputeMetrics(t *Trade) {
	var realized float64
	for _, leg := range t.ExitLegs {
		realized += LegPnl(t.Direction, t.EntryPrice, leg.Price, leg.Quantity, leg.Fee)
	}
	t.RealizedPnl = Round2(realized)

	t.RemainingQuantity = math.Max(0, t.Quantity-t.ExitedQuantity())
	t.Status = DeriveStatus(t)
	if t.Status == StatusClosed {
		t.MarkPrice = nil
	}

	if t.MarkPrice != nil {
		t.UnrealizedPnl = LegPnl(t.Direction, t.EntryPrice, *t.MarkPrice, t.RemainingQuantity, 0)
	} else {
		t.UnrealizedPnl = 0
	}
	t.TotalPnl = Round2(t.RealizedPnl + t.UnrealizedPnl)

	notional := t.EntryPrice * t.Quantity
	if notional == 0 {
		t.RealizedPct = 0
		t.TotalPct = 0
		return
	}
	t.RealizedPct = Round2(t.RealizedPnl / notional * 100)
	t.TotalPct = Round2(t.TotalPnl / notional * 100)
}
