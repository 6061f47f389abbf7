package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/karigpt-broker/internal/cache"
	"github.com/tbourn/karigpt-broker/internal/config"
	"github.com/tbourn/karigpt-broker/internal/http/handlers"
	"github.com/tbourn/karigpt-broker/internal/repo"
	"github.com/tbourn/karigpt-broker/internal/services"
	"github.com/tbourn/karigpt-broker/internal/supabase"
)

// Stores bundles the persistence collaborators chosen by configuration.
type Stores struct {
	// Records is the request-record store that every gate rule reads.
	Records services.RecordStore
	// Stats is nil when the driver cannot fingerprint the table cheaply.
	Stats handlers.StatsReader
	// Receipts always live in the local SQLite database.
	Receipts repo.Receipts
	Memo     services.Memo

	db     *gorm.DB
	closer func() error
}

// OpenStores opens the local SQLite database (request table and ingress
// receipts), the Supabase store when selected, and the optional memo.
func OpenStores(ctx context.Context, cfg config.Config) (*Stores, error) {
	db, err := repo.OpenSQLite(cfg.Store.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", cfg.Store.SQLitePath, err)
	}
	s := &Stores{db: db, Receipts: repo.Receipts{DB: db}}
	if err := repo.AutoMigrate(db, cfg.Store.Table); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	switch cfg.Store.Driver {
	case config.StoreSupabase:
		remote, err := supabase.New(supabase.Config{
			URL:    cfg.Store.SupabaseURL,
			APIKey: cfg.Store.SupabaseKey,
			Table:  cfg.Store.Table,
		})
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Records = remote
	default:
		local := repo.NewStore(db, cfg.Store.Table)
		s.Records = local
		s.Stats = local
	}

	switch cfg.Cache.Driver {
	case "memory":
		s.Memo = cache.NewMemory(cfg.Cache.TTL)
	case "redis":
		r := cache.DialRedis(cfg.Cache.RedisAddr, cfg.Cache.RedisPass, cfg.Cache.RedisDB, cfg.Cache.TTL)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := r.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("redis unreachable, memo lookups will miss")
		}
		cancel()
		s.Memo = r
		s.closer = r.Close
	}

	log.Info().
		Str("store", cfg.Store.Driver).
		Str("table", cfg.Store.Table).
		Str("cache", cfg.Cache.Driver).
		Msg("stores ready")
	return s, nil
}

// Close releases the memo connection and the SQLite pool.
func (s *Stores) Close() error {
	var first error
	if s.closer != nil {
		first = s.closer()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
