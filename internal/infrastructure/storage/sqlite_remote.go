package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/trade_journal/internal/domain"
)

// SQLiteRemoteStore is the cloud-side snapshot store: one row per user
// identity holding the full trades and goals arrays as JSON text plus a
// last-write timestamp. A user can only ever address their own row.
type SQLiteRemoteStore struct {
	db *sql.DB
}

func NewSQLiteRemoteStore(dbPath string) (*SQLiteRemoteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteRemoteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteRemoteStore) initSchema() error {
	query := `CREATE TABLE IF NOT EXISTS snapshots (
		user_id TEXT PRIMARY KEY,
		trades TEXT NOT NULL,
		goals TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to exec query %s: %w", query, err)
	}
	return nil
}

func (s *SQLiteRemoteStore) LoadSnapshot(ctx context.Context, userID string) (*domain.Snapshot, bool, error) {
	query := `SELECT trades, goals, updated_at FROM snapshots WHERE user_id = ?`
	row := s.db.QueryRowContext(ctx, query, userID)

	var tradesJSON, goalsJSON string
	var updatedAt time.Time
	err := row.Scan(&tradesJSON, &goalsJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	// Tolerant per-record decode, same as the local store: one corrupt
	// record must not invalidate the rest of the snapshot.
	snap := &domain.Snapshot{
		Trades:    DecodeTrades([]byte(tradesJSON)),
		Goals:     DecodeGoals([]byte(goalsJSON)),
		UpdatedAt: updatedAt,
	}
	return snap, true, nil
}

func (s *SQLiteRemoteStore) SaveSnapshot(ctx context.Context, userID string, snap *domain.Snapshot) error {
	trades := snap.Trades
	if trades == nil {
		trades = []domain.Trade{}
	}
	goals := snap.Goals
	if goals == nil {
		goals = []domain.Goal{}
	}
	tradesJSON, err := json.Marshal(trades)
	if err != nil {
		return err
	}
	goalsJSON, err := json.Marshal(goals)
	if err != nil {
		return err
	}

	query := `INSERT INTO snapshots (user_id, trades, goals, updated_at)
			  VALUES (?, ?, ?, ?)
			  ON CONFLICT(user_id) DO UPDATE SET
			  trades=excluded.trades,
			  goals=excluded.goals,
			  updated_at=excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query, userID, string(tradesJSON), string(goalsJSON), snap.UpdatedAt)
	return err
}

func (s *SQLiteRemoteStore) Close() error {
	return s.db.Close()
}
