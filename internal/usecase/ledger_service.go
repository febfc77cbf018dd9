package usecase

import (
	"math"
	"strings"
	"time"

	"github.com/vitos/trade_journal/internal/domain"
	"github.com/vitos/trade_journal/internal/pkg/id"
	"go.uber.org/zap"
)

// LedgerService owns every trade mutation. Each operation is read-modify-write
// against the whole persisted collection: load, apply one change, recompute
// metrics, persist back. Rejected input returns the collection unchanged with
// changed=false; validation has no error channel.
type LedgerService struct {
	store  domain.Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewLedgerService(store domain.Store, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  id.New,
	}
}

// ExitLegInput is one closing fill supplied by the caller.
type ExitLegInput struct {
	Date     string
	Quantity float64
	Price    float64
	Fee      float64
	Note     string
}

// CreateTradeInput is the payload for opening a new position. InitialExit is
// optional and lets an already partially-closed trade be entered in one step.
type CreateTradeInput struct {
	Date        string
	Symbol      string
	Direction   domain.Direction
	EntryPrice  float64
	Quantity    float64
	MarkPrice   *float64
	Setup       string
	Emotion     string
	Notes       string
	UserID      string
	InitialExit *ExitLegInput
}

// TradeUpdate carries the editable fields; nil means leave unchanged.
type TradeUpdate struct {
	Date       *string
	Symbol     *string
	Direction  *domain.Direction
	EntryPrice *float64
	Quantity   *float64
	Setup      *string
	Emotion    *string
	Notes      *string
}

func (s *LedgerService) ListTrades() []domain.Trade {
	trades, _ := s.store.LoadTrades()
	return trades
}

func (s *LedgerService) CreateOpenTrade(input CreateTradeInput) ([]domain.Trade, bool) {
	trades := s.ListTrades()

	if input.EntryPrice <= 0 || input.Quantity <= 0 {
		return trades, false
	}
	if input.Direction != domain.DirectionLong && input.Direction != domain.DirectionShort {
		return trades, false
	}
	if input.MarkPrice != nil && *input.MarkPrice <= 0 {
		return trades, false
	}
	if leg := input.InitialExit; leg != nil {
		if leg.Quantity <= 0 || leg.Price <= 0 || leg.Fee < 0 {
			return trades, false
		}
		if leg.Quantity > input.Quantity+domain.QuantityEpsilon {
			return trades, false
		}
	}

	now := s.now()
	trade := domain.Trade{
		ID:            s.newID(),
		SchemaVersion: domain.CurrentTradeSchema,
		Date:          input.Date,
		Symbol:        strings.ToUpper(input.Symbol),
		Direction:     input.Direction,
		EntryPrice:    input.EntryPrice,
		Quantity:      input.Quantity,
		MarkPrice:     input.MarkPrice,
		Setup:         input.Setup,
		Emotion:       input.Emotion,
		Notes:         input.Notes,
		UserID:        input.UserID,
		ExitLegs:      []domain.ExitLeg{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if leg := input.InitialExit; leg != nil {
		trade.ExitLegs = append(trade.ExitLegs, domain.ExitLeg{
			ID:       s.newID(),
			Date:     leg.Date,
			Quantity: leg.Quantity,
			Price:    leg.Price,
			Fee:      leg.Fee,
			Note:     leg.Note,
		})
	}
	domain.ComputeMetrics(&trade)

	trades = append(trades, trade)
	s.persist(trades)
	return trades, true
}

func (s *LedgerService) UpdateTrade(tradeID string, update TradeUpdate) ([]domain.Trade, bool) {
	trades := s.ListTrades()
	i := indexOf(trades, tradeID)
	if i < 0 {
		return trades, false
	}

	trade := trades[i].Clone()
	if update.EntryPrice != nil {
		if *update.EntryPrice <= 0 {
			return trades, false
		}
		trade.EntryPrice = *update.EntryPrice
	}
	if update.Quantity != nil {
		// The original size can never shrink below what has already been
		// exited.
		if *update.Quantity <= 0 || *update.Quantity < trade.ExitedQuantity()-domain.QuantityEpsilon {
			return trades, false
		}
		trade.Quantity = *update.Quantity
	}
	if update.Direction != nil {
		if *update.Direction != domain.DirectionLong && *update.Direction != domain.DirectionShort {
			return trades, false
		}
		trade.Direction = *update.Direction
	}
	if update.Date != nil {
		trade.Date = *update.Date
	}
	if update.Symbol != nil {
		trade.Symbol = strings.ToUpper(*update.Symbol)
	}
	if update.Setup != nil {
		trade.Setup = *update.Setup
	}
	if update.Emotion != nil {
		trade.Emotion = *update.Emotion
	}
	if update.Notes != nil {
		trade.Notes = *update.Notes
	}

	domain.ComputeMetrics(&trade)
	trade.UpdatedAt = s.now()
	trades[i] = trade
	s.persist(trades)
	return trades, true
}

func (s *LedgerService) AddExitLeg(tradeID string, leg ExitLegInput) ([]domain.Trade, bool) {
	trades := s.ListTrades()
	i := indexOf(trades, tradeID)
	if i < 0 {
		return trades, false
	}

	trade := trades[i].Clone()
	if leg.Quantity <= 0 || leg.Price <= 0 || leg.Fee < 0 {
		return trades, false
	}
	if leg.Quantity > trade.RemainingQuantity+domain.QuantityEpsilon {
		return trades, false
	}

	// Legs are appended in arrival order, never reordered or merged.
	trade.ExitLegs = append(trade.ExitLegs, domain.ExitLeg{
		ID:       s.newID(),
		Date:     leg.Date,
		Quantity: leg.Quantity,
		Price:    leg.Price,
		Fee:      leg.Fee,
		Note:     leg.Note,
	})
	domain.ComputeMetrics(&trade)
	trade.UpdatedAt = s.now()
	trades[i] = trade
	s.persist(trades)
	return trades, true
}

// UpdateMarkPrice sets or clears the mark on one open trade. An unchanged
// price or a closed trade is skipped outright, not rejected, so UpdatedAt is
// not bumped spuriously.
func (s *LedgerService) UpdateMarkPrice(tradeID string, price *float64) ([]domain.Trade, bool) {
	trades := s.ListTrades()
	i := indexOf(trades, tradeID)
	if i < 0 {
		return trades, false
	}
	if trades[i].Status == domain.StatusClosed {
		return trades, false
	}
	if price != nil && *price <= 0 {
		return trades, false
	}
	if sameMark(trades[i].MarkPrice, price) {
		return trades, false
	}

	trade := trades[i].Clone()
	trade.MarkPrice = price
	domain.ComputeMetrics(&trade)
	trade.UpdatedAt = s.now()
	trades[i] = trade
	s.persist(trades)
	return trades, true
}

// ApplyMarksBySymbol marks every open trade whose symbol appears in prices,
// skipping unchanged ones. The changed flag lets callers avoid a redundant
// sync push when a refresh produced no movement.
func (s *LedgerService) ApplyMarksBySymbol(prices map[string]float64) ([]domain.Trade, bool) {
	trades := s.ListTrades()
	changed := false
	now := s.now()

	for i := range trades {
		if trades[i].Status != domain.StatusOpen {
			continue
		}
		price, ok := prices[strings.ToUpper(trades[i].Symbol)]
		if !ok || price <= 0 {
			continue
		}
		if trades[i].MarkPrice != nil && math.Abs(*trades[i].MarkPrice-price) <= domain.QuantityEpsilon {
			continue
		}
		trade := trades[i].Clone()
		p := price
		trade.MarkPrice = &p
		domain.ComputeMetrics(&trade)
		trade.UpdatedAt = now
		trades[i] = trade
		changed = true
	}

	if changed {
		s.persist(trades)
	}
	return trades, changed
}

func (s *LedgerService) DeleteTrade(tradeID string) ([]domain.Trade, bool) {
	trades := s.ListTrades()
	i := indexOf(trades, tradeID)
	if i < 0 {
		return trades, false
	}
	trades = append(trades[:i], trades[i+1:]...)
	s.persist(trades)
	return trades, true
}

// OpenSymbols returns the distinct symbols of open trades, in first-seen
// order. This feeds mark refresh.
func (s *LedgerService) OpenSymbols() []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, t := range s.ListTrades() {
		if t.Status != domain.StatusOpen {
			continue
		}
		sym := strings.ToUpper(t.Symbol)
		if !seen[sym] {
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	}
	return symbols
}

func (s *LedgerService) persist(trades []domain.Trade) {
	if err := s.store.SaveTrades(trades); err != nil {
		s.logger.Error("Failed to persist trades", zap.Error(err))
	}
}

func indexOf(trades []domain.Trade, tradeID string) int {
	for i := range trades {
		if trades[i].ID == tradeID {
			return i
		}
	}
	return -1
}

func sameMark(current, next *float64) bool {
	if current == nil || next == nil {
		return current == nil && next == nil
	}
	return math.Abs(*current-*next) <= domain.QuantityEpsilon
}
