package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "github.com/boltdb/bolt"
	"github.com/rs/zerolog/log"

	"github.com/dispatchly/dispatch-api/internal/config"
	"github.com/dispatchly/dispatch-api/internal/domain/audit"
	"github.com/dispatchly/dispatch-api/internal/domain/catalog"
	"github.com/dispatchly/dispatch-api/internal/domain/deposit"
	"github.com/dispatchly/dispatch-api/internal/domain/order"
	"github.com/dispatchly/dispatch-api/internal/pkg/database"
	"github.com/dispatchly/dispatch-api/internal/pkg/storage"
)

// backend is the set of collaborators behind one STORE_DRIVER.
type backend struct {
	store    deposit.Store
	orders   deposit.OrderService
	catalogs deposit.CatalogSource

	// inlineAudit archives commits in-process when no archiver worker runs.
	inlineAudit deposit.CommitNotifier

	ping  func(ctx context.Context) error
	close func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return openPostgres(ctx, cfg)
	case config.StoreDriverBolt:
		return openBolt(ctx, cfg)
	case config.StoreDriverMemory:
		return openMemory(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*backend, error) {
	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{})
	if err != nil {
		return nil, err
	}

	return &backend{
		store:    deposit.NewPostgresStore(db),
		orders:   order.NewService(order.NewPostgresRepository(db)),
		catalogs: catalog.NewRepository(db),
		ping: func(ctx context.Context) error {
			return database.PingPostgres(ctx, db)
		},
		close: func() { database.ClosePostgres(db) },
	}, nil
}

func openBolt(ctx context.Context, cfg *config.Config) (*backend, error) {
	db, err := database.OpenBolt(cfg.BoltPath)
	if err != nil {
		return nil, err
	}

	store, err := deposit.NewBoltStore(db)
	if err != nil {
		database.CloseBolt(db)
		return nil, err
	}
	orders, err := order.NewBoltRepository(db)
	if err != nil {
		database.CloseBolt(db)
		return nil, err
	}

	seed, err := loadSeed(cfg.SeedFile)
	if err != nil {
		database.CloseBolt(db)
		return nil, err
	}
	for _, o := range seed.Orders {
		if err := orders.AddOrder(o); err != nil {
			database.CloseBolt(db)
			return nil, fmt.Errorf("seed order %s: %w", o.ID, err)
		}
	}
	for _, l := range seed.Lines {
		if err := store.AddLine(l.CustomerID, l.DepositLine); err != nil {
			database.CloseBolt(db)
			return nil, fmt.Errorf("seed line %s: %w", l.Key(), err)
		}
	}

	archive, err := openArchive(ctx, cfg, filepath.Join(filepath.Dir(cfg.BoltPath), "audit"))
	if err != nil {
		database.CloseBolt(db)
		return nil, err
	}

	return &backend{
		store:       store,
		orders:      order.NewService(orders),
		catalogs:    catalog.NewStatic(seed.Catalog),
		inlineAudit: audit.NewInlineNotifier(audit.NewArchiver(archive)),
		ping: func(ctx context.Context) error {
			return db.View(func(*bolt.Tx) error { return nil })
		},
		close: func() { database.CloseBolt(db) },
	}, nil
}

func openMemory(ctx context.Context, cfg *config.Config) (*backend, error) {
	seed, err := loadSeed(cfg.SeedFile)
	if err != nil {
		return nil, err
	}

	store := deposit.NewMemoryStore()
	for _, l := range seed.Lines {
		store.AddLine(l.CustomerID, l.DepositLine)
	}
	orders := order.NewMemoryRepository()
	for _, o := range seed.Orders {
		orders.AddOrder(o)
	}

	archive, err := openArchive(ctx, cfg, filepath.Join(os.TempDir(), "dispatch-audit"))
	if err != nil {
		return nil, err
	}

	return &backend{
		store:       store,
		orders:      order.NewService(orders),
		catalogs:    catalog.NewStatic(seed.Catalog),
		inlineAudit: audit.NewInlineNotifier(audit.NewArchiver(archive)),
		ping:        func(ctx context.Context) error { return nil },
		close:       func() {},
	}, nil
}

// openArchive returns the S3 bucket when configured, otherwise a local directory.
func openArchive(ctx context.Context, cfg *config.Config, localDir string) (storage.Storage, error) {
	if cfg.AuditEnabled() {
		return storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:  cfg.AuditS3Endpoint,
			Region:    cfg.AuditS3Region,
			Bucket:    cfg.AuditS3Bucket,
			AccessKey: cfg.AuditS3AccessKey,
			SecretKey: cfg.AuditS3SecretKey,
		})
	}
	log.Info().Str("dir", localDir).Msg("Audit archive bucket not configured, archiving locally")
	return storage.NewLocalStorage(localDir)
}

// seedData is the fixture format for the bolt and memory drivers.
type seedData struct {
	Orders  []order.Order               `json:"orders"`
	Lines   []seedLine                  `json:"lines"`
	Catalog []deposit.DeductionItemType `json:"catalog"`
}

type seedLine struct {
	CustomerID string `json:"customer_id"`
	deposit.DepositLine
}

func loadSeed(path string) (*seedData, error) {
	seed := &seedData{}
	if path == "" {
		return seed, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	if err := json.Unmarshal(data, seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, l := range seed.Lines {
		if l.CustomerID == "" || l.OrderID == "" || l.ItemID == "" {
			return nil, fmt.Errorf("seed line %d: customer_id, order_id and item_id are required", i)
		}
	}

	log.Info().
		Int("orders", len(seed.Orders)).
		Int("lines", len(seed.Lines)).
		Int("catalog", len(seed.Catalog)).
		Str("path", path).
		Msg("Loaded seed data")
	return seed, nil
}
