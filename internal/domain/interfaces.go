package domain

import "context"

// Store is the local persisted store: two independent collections, each a
// JSON array. Loads report absence or corruption as ok=false rather than an
// error; a missing collection is a normal branch, not a failure.
type Store interface {
	LoadTrades() ([]Trade, bool)
	SaveTrades(trades []Trade) error
	LoadGoals() ([]Goal, bool)
	SaveGoals(goals []Goal) error
}

// SnapshotStore is the remote per-user store used by reconciliation.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, userID string) (*Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, userID string, snap *Snapshot) error
}

// SymbolMatch is one free-text search suggestion from the quote provider.
type SymbolMatch struct {
	Symbol         string `json:"symbol"`
	ResolvedSymbol string `json:"resolvedSymbol"`
	Name           string `json:"name"`
	Exchange       string `json:"exchange"`
}

// QuoteProvider is the external market-price source.
type QuoteProvider interface {
	Quote(ctx context.Context, symbol string) (float64, error)
	BatchQuotes(ctx context.Context, symbols []string) (map[string]float64, error)
	Search(ctx context.Context, query string, limit int) ([]SymbolMatch, error)
}
