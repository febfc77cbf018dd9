package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/trade_journal/internal/infrastructure/logger"
	"github.com/vitos/trade_journal/internal/infrastructure/provider"
	"github.com/vitos/trade_journal/internal/infrastructure/storage"
	"github.com/vitos/trade_journal/internal/usecase"
	"github.com/vitos/trade_journal/internal/web"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Provider struct {
		BaseURL         string `yaml:"base_url"`
		APIToken        string `yaml:"api_token"`
		PrimarySuffix   string `yaml:"primary_suffix"`
		SecondarySuffix string `yaml:"secondary_suffix"`
	} `yaml:"provider"`
	Pricing struct {
		CacheTTLMs     int `yaml:"cache_ttl_ms"`
		CourtesyGapMs  int `yaml:"courtesy_gap_ms"`
		RefreshEveryMs int `yaml:"refresh_every_ms"`
	} `yaml:"pricing"`
	Storage struct {
		Dir          string `yaml:"dir"`
		RemoteDBPath string `yaml:"remote_db_path"`
	} `yaml:"storage"`
	Sync struct {
		UserID     string `yaml:"user_id"`
		DebounceMs int    `yaml:"debounce_ms"`
	} `yaml:"sync"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dir := cfg.Storage.Dir
	if dir == "" {
		dir = "data"
	}
	store, err := storage.NewFileStore(dir, log)
	if err != nil {
		log.Fatal("Failed to init local store", zap.Error(err))
	}

	remotePath := cfg.Storage.RemoteDBPath
	if remotePath == "" {
		remotePath = "journal.db"
	}
	remote, err := storage.NewSQLiteRemoteStore(remotePath)
	if err != nil {
		log.Fatal("Failed to init remote store", zap.Error(err))
	}
	defer remote.Close()

	quotes := provider.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIToken)

	ledger := usecase.NewLedgerService(store, log)
	prices := usecase.NewPriceService(quotes, ledger, usecase.PriceConfig{
		TTL:             time.Duration(cfg.Pricing.CacheTTLMs) * time.Millisecond,
		CourtesyGap:     time.Duration(cfg.Pricing.CourtesyGapMs) * time.Millisecond,
		PrimarySuffix:   cfg.Provider.PrimarySuffix,
		SecondarySuffix: cfg.Provider.SecondarySuffix,
	}, log)
	syncer := usecase.NewSyncService(store, remote,
		time.Duration(cfg.Sync.DebounceMs)*time.Millisecond, log)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Identity arrival triggers the initial pull-merge-push.
	if cfg.Sync.UserID != "" {
		if err := syncer.HandleSignIn(context.Background(), cfg.Sync.UserID); err != nil {
			log.Error("Initial reconciliation failed", zap.Error(err))
		}
	}

	// Periodic mark refresh; a run that changed marks schedules a sync push.
	refreshEvery := time.Duration(cfg.Pricing.RefreshEveryMs) * time.Millisecond
	if refreshEvery <= 0 {
		refreshEvery = time.Minute
	}
	go func() {
		ticker := time.NewTicker(refreshEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if prices.RefreshMarks(context.Background()) {
					syncer.NotifyChange()
				}
			case <-stop:
				return
			}
		}
	}()

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := web.NewServer(port, prices, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-stop

	log.Info("Shutting down...")
	if err := syncer.Push(context.Background()); err != nil {
		log.Error("Final push failed", zap.Error(err))
	}
	server.Shutdown(context.Background())
}
