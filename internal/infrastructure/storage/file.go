package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vitos/trade_journal/internal/domain"
	"go.uber.org/zap"
)

const (
	tradesFile = "trades.json"
	goalsFile  = "goals.json"
)

// FileStore keeps the two local collections as JSON array files in one
// directory. Writes rewrite the whole collection through a temp file and
// rename so a crash mid-write cannot leave a truncated file behind.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) LoadTrades() ([]domain.Trade, bool) {
	data, ok := s.read(tradesFile)
	if !ok {
		return nil, false
	}
	return DecodeTrades(data), true
}

func (s *FileStore) SaveTrades(trades []domain.Trade) error {
	if trades == nil {
		trades = []domain.Trade{}
	}
	return s.write(tradesFile, trades)
}

func (s *FileStore) LoadGoals() ([]domain.Goal, bool) {
	data, ok := s.read(goalsFile)
	if !ok {
		return nil, false
	}
	return DecodeGoals(data), true
}

func (s *FileStore) SaveGoals(goals []domain.Goal) error {
	if goals == nil {
		goals = []domain.Goal{}
	}
	return s.write(goalsFile, goals)
}

func (s *FileStore) read(name string) ([]byte, bool) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read collection", zap.String("file", name), zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

func (s *FileStore) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return os.Rename(tmp, path)
}
