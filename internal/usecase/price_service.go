package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/vitos/trade_journal/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultCacheTTL    = 5 * time.Minute
	DefaultCourtesyGap = 250 * time.Millisecond
	MaxSuggestions     = 8

	// Bare tickers are ambiguous between the two markets the provider
	// supports; candidates are tried in this suffix order so the same raw
	// input always resolves the same way.
	DefaultPrimarySuffix   = ".KS"
	DefaultSecondarySuffix = ".KQ"
)

type cacheEntry struct {
	price     float64
	resolved  string
	fetchedAt time.Time
}

// PriceConfig tunes the resolver. Zero values fall back to the defaults
// above.
type PriceConfig struct {
	TTL             time.Duration
	CourtesyGap     time.Duration
	PrimarySuffix   string
	SecondarySuffix string
	Source          string
}

// PriceService resolves tickers to tradable quotes and caches them. Entries
// expire lazily: a lookup past TTL is simply a miss, there is no background
// eviction.
type PriceService struct {
	provider domain.QuoteProvider
	ledger   *LedgerService
	logger   *zap.Logger

	ttl             time.Duration
	courtesyGap     time.Duration
	primarySuffix   string
	secondarySuffix string
	source          string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	mu         sync.Mutex
	cache      map[string]cacheEntry
	refreshing bool
}

func NewPriceService(provider domain.QuoteProvider, ledger *LedgerService, cfg PriceConfig, logger *zap.Logger) *PriceService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.CourtesyGap <= 0 {
		cfg.CourtesyGap = DefaultCourtesyGap
	}
	if cfg.PrimarySuffix == "" {
		cfg.PrimarySuffix = DefaultPrimarySuffix
	}
	if cfg.SecondarySuffix == "" {
		cfg.SecondarySuffix = DefaultSecondarySuffix
	}
	if cfg.Source == "" {
		cfg.Source = "eodhd"
	}
	return &PriceService{
		provider:        provider,
		ledger:          ledger,
		logger:          logger,
		ttl:             cfg.TTL,
		courtesyGap:     cfg.CourtesyGap,
		primarySuffix:   cfg.PrimarySuffix,
		secondarySuffix: cfg.SecondarySuffix,
		source:          cfg.Source,
		now:             time.Now,
		sleep:           sleepCtx,
		cache:           make(map[string]cacheEntry),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *PriceService) Source() string { return s.source }

// Candidates returns the resolution order for a raw ticker. A symbol that
// already carries an explicit market suffix is tried literally and nothing
// else; otherwise primary market, secondary market, then the bare symbol.
func (s *PriceService) Candidates(raw string, literal bool) []string {
	sym := strings.ToUpper(strings.TrimSpace(raw))
	if literal || strings.Contains(sym, ".") {
		return []string{sym}
	}
	return []string{sym + s.primarySuffix, sym + s.secondarySuffix, sym}
}

// Resolve returns the first candidate quote that is a positive finite number,
// together with the candidate string that produced it.
func (s *PriceService) Resolve(ctx context.Context, raw string, literal bool) (float64, string, error) {
	sym := strings.ToUpper(strings.TrimSpace(raw))
	if sym == "" {
		return 0, "", fmt.Errorf("empty symbol")
	}

	s.mu.Lock()
	entry, ok := s.cache[sym]
	fresh := ok && s.now().Sub(entry.fetchedAt) < s.ttl
	s.mu.Unlock()
	if fresh {
		return entry.price, entry.resolved, nil
	}

	for _, candidate := range s.Candidates(sym, literal) {
		price, err := s.provider.Quote(ctx, candidate)
		if err != nil {
			continue
		}
		if !usablePrice(price) {
			continue
		}
		s.remember(sym, candidate, price)
		return price, candidate, nil
	}
	return 0, "", fmt.Errorf("no quote found for %s", sym)
}

// GetMany fetches prices for several symbols at once. Cached entries within
// TTL are served directly; the rest go through one provider batch call, and
// if that fails at the transport or status level the service degrades to
// sequential single-symbol resolution separated by a courtesy gap. Symbols
// that cannot be resolved by any means end up in failed; GetMany itself never
// fails.
func (s *PriceService) GetMany(ctx context.Context, symbols []string) (map[string]float64, []string) {
	prices := make(map[string]float64)
	var failed []string

	var misses []string
	seen := make(map[string]bool)
	for _, raw := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true

		s.mu.Lock()
		entry, ok := s.cache[sym]
		fresh := ok && s.now().Sub(entry.fetchedAt) < s.ttl
		s.mu.Unlock()
		if fresh {
			prices[sym] = entry.price
			continue
		}
		misses = append(misses, sym)
	}
	if len(misses) == 0 {
		return prices, failed
	}

	var remaining []string
	batch, err := s.provider.BatchQuotes(ctx, s.firstCandidates(misses))
	if err != nil {
		s.logger.Warn("Batch quote failed, falling back to sequential fetch", zap.Error(err))
		remaining = misses
	} else {
		for _, sym := range misses {
			first := s.Candidates(sym, false)[0]
			if price, ok := batch[first]; ok && usablePrice(price) {
				s.remember(sym, first, price)
				prices[sym] = price
				continue
			}
			remaining = append(remaining, sym)
		}
	}

	for i, sym := range remaining {
		if i > 0 {
			s.sleep(ctx, s.courtesyGap)
		}
		price, _, err := s.Resolve(ctx, sym, false)
		if err != nil {
			failed = append(failed, sym)
			continue
		}
		prices[sym] = price
	}
	return prices, failed
}

// RefreshMarks prices every open position and applies the marks through the
// ledger. A refresh arriving while another is in flight is ignored, not
// queued; the guard is released only when this run completes.
func (s *PriceService) RefreshMarks(ctx context.Context) bool {
	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		return false
	}
	s.refreshing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()

	symbols := s.ledger.OpenSymbols()
	if len(symbols) == 0 {
		return false
	}

	prices, failed := s.GetMany(ctx, symbols)
	if len(failed) > 0 {
		s.logger.Warn("Some symbols could not be priced", zap.Strings("symbols", failed))
	}
	if len(prices) == 0 {
		return false
	}

	_, changed := s.ledger.ApplyMarksBySymbol(prices)
	return changed
}

func (s *PriceService) Search(ctx context.Context, query string) ([]domain.SymbolMatch, error) {
	return s.provider.Search(ctx, query, MaxSuggestions)
}

func (s *PriceService) firstCandidates(symbols []string) []string {
	out := make([]string, len(symbols))
	for i, sym := range symbols {
		out[i] = s.Candidates(sym, false)[0]
	}
	return out
}

func (s *PriceService) remember(sym, resolved string, price float64) {
	s.mu.Lock()
	s.cache[sym] = cacheEntry{price: price, resolved: resolved, fetchedAt: s.now()}
	s.mu.Unlock()
}

func usablePrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
