package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/vitos/trade_journal/internal/domain"
	"go.uber.org/zap"
)

const DefaultSyncDebounce = 3 * time.Second

// MergeTrades reconciles two independently-mutated trade collections: union
// by id, and when both sides hold the same id the record with the later
// UpdatedAt wins in its entirety. There is no field-level merge; the losing
// edit is discarded.
func MergeTrades(local, remote []domain.Trade) []domain.Trade {
	return mergeByUpdated(local, remote,
		func(t domain.Trade) string { return t.ID },
		func(t domain.Trade) time.Time { return t.UpdatedAt })
}

// MergeGoals is the goal analogue of MergeTrades.
func MergeGoals(local, remote []domain.Goal) []domain.Goal {
	return mergeByUpdated(local, remote,
		func(g domain.Goal) string { return g.ID },
		func(g domain.Goal) time.Time { return g.UpdatedAt })
}

func mergeByUpdated[T any](local, remote []T, id func(T) string, updatedAt func(T) time.Time) []T {
	index := make(map[string]int, len(local))
	merged := make([]T, 0, len(local)+len(remote))
	for _, rec := range local {
		index[id(rec)] = len(merged)
		merged = append(merged, rec)
	}
	for _, rec := range remote {
		i, ok := index[id(rec)]
		if !ok {
			index[id(rec)] = len(merged)
			merged = append(merged, rec)
			continue
		}
		if updatedAt(rec).After(updatedAt(merged[i])) {
			merged[i] = rec
		}
	}
	return merged
}

// SyncService reconciles the local store with the remote per-user snapshot.
// A full pull-merge-push runs when an identity arrives; afterwards local
// changes are pushed after a quiet period so rapid edits coalesce into one
// remote write.
type SyncService struct {
	local  domain.Store
	remote domain.SnapshotStore
	logger *zap.Logger

	debounce time.Duration
	now      func() time.Time

	mu         sync.Mutex
	userID     string
	timer      *time.Timer
	lastSynced string // fingerprint of the last state pushed or pulled
}

func NewSyncService(local domain.Store, remote domain.SnapshotStore, debounce time.Duration, logger *zap.Logger) *SyncService {
	if debounce <= 0 {
		debounce = DefaultSyncDebounce
	}
	return &SyncService{
		local:    local,
		remote:   remote,
		logger:   logger,
		debounce: debounce,
		now:      time.Now,
	}
}

// HandleSignIn pulls the user's remote snapshot, merges it with whatever is
// local, adopts the merge on both sides, and remembers the identity for
// subsequent debounced pushes.
func (s *SyncService) HandleSignIn(ctx context.Context, userID string) error {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()

	localTrades, _ := s.local.LoadTrades()
	localGoals, _ := s.local.LoadGoals()

	remoteSnap, found, err := s.remote.LoadSnapshot(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load remote snapshot", zap.String("user", userID), zap.Error(err))
		return err
	}

	mergedTrades := localTrades
	mergedGoals := localGoals
	if found {
		mergedTrades = MergeTrades(localTrades, remoteSnap.Trades)
		mergedGoals = MergeGoals(localGoals, remoteSnap.Goals)
	}

	if err := s.local.SaveTrades(mergedTrades); err != nil {
		return err
	}
	if err := s.local.SaveGoals(mergedGoals); err != nil {
		return err
	}

	snap := &domain.Snapshot{Trades: mergedTrades, Goals: mergedGoals, UpdatedAt: s.now()}
	if err := s.remote.SaveSnapshot(ctx, userID, snap); err != nil {
		s.logger.Error("Failed to push merged snapshot", zap.String("user", userID), zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.lastSynced = fingerprint(mergedTrades, mergedGoals)
	s.mu.Unlock()

	s.logger.Info("Reconciled with remote store",
		zap.String("user", userID),
		zap.Int("trades", len(mergedTrades)),
		zap.Int("goals", len(mergedGoals)))
	return nil
}

// HandleSignOut drops the identity and any pending push. Local data stays.
func (s *SyncService) HandleSignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.lastSynced = ""
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// NotifyChange schedules a debounced push. Repeated calls inside the quiet
// period restart the timer so only the last one fires. State identical to the
// last-synced snapshot is not pushed at all.
func (s *SyncService) NotifyChange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return
	}

	trades, _ := s.local.LoadTrades()
	goals, _ := s.local.LoadGoals()
	if fingerprint(trades, goals) == s.lastSynced {
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		if err := s.Push(context.Background()); err != nil {
			s.logger.Error("Debounced push failed", zap.Error(err))
		}
	})
}

// Push writes the current local state to the remote row.
func (s *SyncService) Push(ctx context.Context) error {
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()
	if userID == "" {
		return nil
	}

	trades, _ := s.local.LoadTrades()
	goals, _ := s.local.LoadGoals()
	snap := &domain.Snapshot{Trades: trades, Goals: goals, UpdatedAt: s.now()}
	if err := s.remote.SaveSnapshot(ctx, userID, snap); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastSynced = fingerprint(trades, goals)
	s.mu.Unlock()
	return nil
}

func fingerprint(trades []domain.Trade, goals []domain.Goal) string {
	t, _ := json.Marshal(trades)
	g, _ := json.Marshal(goals)
	return string(t) + "|" + string(g)
}
