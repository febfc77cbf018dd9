package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/trade_journal/internal/domain"
	"go.uber.org/zap"
)

type fakeProvider struct {
	quotes     map[string]float64 // resolved candidate -> price
	batchErr   error
	quoteCalls []string
	batchCalls [][]string
	matches    []domain.SymbolMatch
}

func (f *fakeProvider) Quote(ctx context.Context, symbol string) (float64, error) {
	f.quoteCalls = append(f.quoteCalls, symbol)
	if price, ok := f.quotes[symbol]; ok {
		return price, nil
	}
	return 0, fmt.Errorf("no quote for %s", symbol)
}

func (f *fakeProvider) BatchQuotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	f.batchCalls = append(f.batchCalls, symbols)
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make(map[string]float64)
	for _, sym := range symbols {
		if price, ok := f.quotes[sym]; ok {
			out[sym] = price
		}
	}
	return out, nil
}

func (f *fakeProvider) Search(ctx context.Context, query string, limit int) ([]domain.SymbolMatch, error) {
	if len(f.matches) > limit {
		return f.matches[:limit], nil
	}
	return f.matches, nil
}

type priceFixture struct {
	provider *fakeProvider
	service  *PriceService
	ledger   *LedgerService
	clock    *time.Time
	sleeps   int
}

func newPriceFixture(quotes map[string]float64) *priceFixture {
	f := &priceFixture{
		provider: &fakeProvider{quotes: quotes},
	}
	store := &memStore{}
	f.ledger = newTestLedger(store)
	f.service = NewPriceService(f.provider, f.ledger, PriceConfig{}, zap.NewNop())

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.clock = &start
	f.service.now = func() time.Time { return *f.clock }
	f.service.sleep = func(ctx context.Context, d time.Duration) { f.sleeps++ }
	return f
}

func TestResolveCandidateOrder(t *testing.T) {
	f := newPriceFixture(map[string]float64{"ABC.KQ": 42.5})

	price, resolved, err := f.service.Resolve(context.Background(), "abc", false)
	require.NoError(t, err)
	assert.Equal(t, 42.5, price)
	assert.Equal(t, "ABC.KQ", resolved)
	assert.Equal(t, []string{"ABC.KS", "ABC.KQ"}, f.provider.quoteCalls,
		"primary suffix first, stop at first hit")
}

func TestResolveExplicitSuffixTriedLiterally(t *testing.T) {
	f := newPriceFixture(map[string]float64{"ABC.US": 10})

	_, resolved, err := f.service.Resolve(context.Background(), "ABC.US", false)
	require.NoError(t, err)
	assert.Equal(t, "ABC.US", resolved)
	assert.Equal(t, []string{"ABC.US"}, f.provider.quoteCalls)
}

func TestResolveRawSkipsSuffixes(t *testing.T) {
	f := newPriceFixture(map[string]float64{"ABC": 7})

	_, resolved, err := f.service.Resolve(context.Background(), "abc", true)
	require.NoError(t, err)
	assert.Equal(t, "ABC", resolved)
	assert.Equal(t, []string{"ABC"}, f.provider.quoteCalls)
}

func TestResolveFallsThroughToBareSymbol(t *testing.T) {
	f := newPriceFixture(map[string]float64{"ABC": 7})

	_, resolved, err := f.service.Resolve(context.Background(), "ABC", false)
	require.NoError(t, err)
	assert.Equal(t, "ABC", resolved)
	assert.Equal(t, []string{"ABC.KS", "ABC.KQ", "ABC"}, f.provider.quoteCalls)
}

func TestResolveUnresolvable(t *testing.T) {
	f := newPriceFixture(map[string]float64{})

	_, _, err := f.service.Resolve(context.Background(), "NOPE", false)
	assert.Error(t, err)
}

func TestCacheWithinTTL(t *testing.T) {
	f := newPriceFixture(map[string]float64{"ABC.KS": 10})
	ctx := context.Background()

	_, _, err := f.service.Resolve(ctx, "ABC", false)
	require.NoError(t, err)
	calls := len(f.provider.quoteCalls)

	// Within TTL: served from cache, no new request.
	*f.clock = f.clock.Add(DefaultCacheTTL - time.Second)
	price, resolved, err := f.service.Resolve(ctx, "ABC", false)
	require.NoError(t, err)
	assert.Equal(t, 10.0, price)
	assert.Equal(t, "ABC.KS", resolved)
	assert.Equal(t, calls, len(f.provider.quoteCalls))

	// Past TTL: lazy eviction, a new request goes out.
	*f.clock = f.clock.Add(2 * time.Second)
	f.provider.quotes["ABC.KS"] = 11
	price, _, err = f.service.Resolve(ctx, "ABC", false)
	require.NoError(t, err)
	assert.Equal(t, 11.0, price)
	assert.Greater(t, len(f.provider.quoteCalls), calls)
}

func TestGetManyUsesBatch(t *testing.T) {
	f := newPriceFixture(map[string]float64{"AAA.KS": 1, "BBB.KS": 2})

	prices, failed := f.service.GetMany(context.Background(), []string{"aaa", "BBB", "AAA"})
	assert.Empty(t, failed)
	assert.Equal(t, map[string]float64{"AAA": 1, "BBB": 2}, prices)
	require.Len(t, f.provider.batchCalls, 1)
	assert.Equal(t, []string{"AAA.KS", "BBB.KS"}, f.provider.batchCalls[0], "input de-duplicated")
	assert.Empty(t, f.provider.quoteCalls)
}

func TestGetManyBatchMissFallsBackPerSymbol(t *testing.T) {
	// BBB only resolves under the secondary suffix, which the batch call
	// never tries.
	f := newPriceFixture(map[string]float64{"AAA.KS": 1, "BBB.KQ": 2})

	prices, failed := f.service.GetMany(context.Background(), []string{"AAA", "BBB"})
	assert.Empty(t, failed)
	assert.Equal(t, map[string]float64{"AAA": 1, "BBB": 2}, prices)
	assert.Equal(t, []string{"BBB.KS", "BBB.KQ"}, f.provider.quoteCalls)
}

func TestGetManyDegradesToSequentialOnBatchFailure(t *testing.T) {
	f := newPriceFixture(map[string]float64{"AAA.KS": 1, "BBB.KS": 2})
	f.provider.batchErr = errors.New("status 500")

	prices, failed := f.service.GetMany(context.Background(), []string{"AAA", "BBB", "CCC"})
	assert.Equal(t, map[string]float64{"AAA": 1, "BBB": 2}, prices)
	assert.Equal(t, []string{"CCC"}, failed)
	assert.Equal(t, 2, f.sleeps, "courtesy gap between sequential calls")
}

func TestGetManyServesCachedEntries(t *testing.T) {
	f := newPriceFixture(map[string]float64{"AAA.KS": 1})
	ctx := context.Background()

	f.service.GetMany(ctx, []string{"AAA"})
	batchCalls := len(f.provider.batchCalls)

	prices, failed := f.service.GetMany(ctx, []string{"AAA"})
	assert.Empty(t, failed)
	assert.Equal(t, map[string]float64{"AAA": 1}, prices)
	assert.Equal(t, batchCalls, len(f.provider.batchCalls), "fresh cache issues no provider call")
}

func TestRefreshMarksAppliesPrices(t *testing.T) {
	f := newPriceFixture(map[string]float64{"AAPL.KS": 110})
	f.ledger.CreateOpenTrade(CreateTradeInput{
		Date: "2025-03-01", Symbol: "AAPL", Direction: domain.DirectionLong,
		EntryPrice: 100, Quantity: 10,
	})

	changed := f.service.RefreshMarks(context.Background())
	assert.True(t, changed)

	trades := f.ledger.ListTrades()
	require.NotNil(t, trades[0].MarkPrice)
	assert.Equal(t, 110.0, *trades[0].MarkPrice)

	// Same price again: marks unchanged.
	changed = f.service.RefreshMarks(context.Background())
	assert.False(t, changed)
}

func TestRefreshMarksIgnoredWhileInFlight(t *testing.T) {
	f := newPriceFixture(map[string]float64{"AAPL.KS": 110})
	f.ledger.CreateOpenTrade(CreateTradeInput{
		Date: "2025-03-01", Symbol: "AAPL", Direction: domain.DirectionLong,
		EntryPrice: 100, Quantity: 10,
	})

	f.service.refreshing = true
	assert.False(t, f.service.RefreshMarks(context.Background()))
	assert.Empty(t, f.provider.batchCalls, "overlapping refresh must not touch the provider")
}

func TestRefreshMarksNoOpenTrades(t *testing.T) {
	f := newPriceFixture(map[string]float64{})
	assert.False(t, f.service.RefreshMarks(context.Background()))
	assert.Empty(t, f.provider.batchCalls)
}
