package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vitos/trade_journal/internal/domain"
	"github.com/vitos/trade_journal/internal/pkg/id"
)

// Persisted records are decoded one at a time so a single corrupt entry drops
// that entry, never the whole collection. Trade shapes are versioned: version
// 1 predates the exit-leg list and carried a single embedded exit, which is
// migrated into one synthesized leg on read.

type tradeDecoder func(raw json.RawMessage) (domain.Trade, error)

var tradeDecoders = map[int]tradeDecoder{
	1: decodeTradeV1,
	2: decodeTradeV2,
}

func detectTradeSchema(raw json.RawMessage) int {
	var probe struct {
		SchemaVersion int              `json:"schemaVersion"`
		ExitLegs      *json.RawMessage `json:"exitLegs"`
		ExitPrice     *float64         `json:"exitPrice"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return domain.CurrentTradeSchema
	}
	if probe.SchemaVersion != 0 {
		return probe.SchemaVersion
	}
	if probe.ExitLegs == nil && probe.ExitPrice != nil {
		return 1
	}
	return domain.CurrentTradeSchema
}

// DecodeTrades parses a persisted JSON array of trades, dropping records that
// fail structural validation and migrating legacy shapes. Unparseable input
// yields an empty collection.
func DecodeTrades(data []byte) []domain.Trade {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil
	}
	trades := make([]domain.Trade, 0, len(raws))
	for _, raw := range raws {
		decode, ok := tradeDecoders[detectTradeSchema(raw)]
		if !ok {
			continue
		}
		t, err := decode(raw)
		if err != nil {
			continue
		}
		domain.ComputeMetrics(&t)
		trades = append(trades, t)
	}
	return trades
}

func decodeTradeV2(raw json.RawMessage) (domain.Trade, error) {
	var t domain.Trade
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, err
	}
	t.SchemaVersion = domain.CurrentTradeSchema
	return t, validateTrade(&t)
}

// v1 records embedded at most one exit directly on the trade.
func decodeTradeV1(raw json.RawMessage) (domain.Trade, error) {
	var legacy struct {
		domain.Trade
		ExitPrice    *float64 `json:"exitPrice"`
		ExitQuantity float64  `json:"exitQuantity"`
		ExitDate     string   `json:"exitDate"`
		ExitFee      float64  `json:"exitFee"`
	}
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return domain.Trade{}, err
	}
	t := legacy.Trade
	t.SchemaVersion = domain.CurrentTradeSchema
	t.ExitLegs = nil
	if legacy.ExitPrice != nil && legacy.ExitQuantity > 0 {
		exitDate := legacy.ExitDate
		if exitDate == "" {
			exitDate = t.Date
		}
		t.ExitLegs = []domain.ExitLeg{{
			ID:       id.New(),
			Date:     exitDate,
			Quantity: legacy.ExitQuantity,
			Price:    *legacy.ExitPrice,
			Fee:      legacy.ExitFee,
		}}
	}
	return t, validateTrade(&t)
}

func validateTrade(t *domain.Trade) error {
	if t.ID == "" {
		return fmt.Errorf("trade missing id")
	}
	if t.Direction != domain.DirectionLong && t.Direction != domain.DirectionShort {
		return fmt.Errorf("trade %s: unrecognized direction %q", t.ID, t.Direction)
	}
	if t.EntryPrice <= 0 || t.Quantity <= 0 {
		return fmt.Errorf("trade %s: non-positive entry or quantity", t.ID)
	}
	t.Symbol = strings.ToUpper(t.Symbol)
	return nil
}

// DecodeGoals parses a persisted JSON array of goals, dropping invalid
// records. Unparseable input yields an empty collection.
func DecodeGoals(data []byte) []domain.Goal {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil
	}
	goals := make([]domain.Goal, 0, len(raws))
	for _, raw := range raws {
		var g domain.Goal
		if err := json.Unmarshal(raw, &g); err != nil {
			continue
		}
		if g.ID == "" || !domain.KnownGoalType(g.Type) || g.Period == "" {
			continue
		}
		goals = append(goals, g)
	}
	return goals
}
