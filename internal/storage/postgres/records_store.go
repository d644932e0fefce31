// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordsStoreConfig controls the Postgres connection pool used for business rows.
type RecordsStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordsStore mirrors accepted business rows into Postgres alongside the
// CSV output.
type RecordsStore struct {
	pool  execCloser
	table string
}

// NewRecordsStore creates a Postgres-backed RecordsStore using the provided config.
func NewRecordsStore(ctx context.Context, cfg RecordsStoreConfig) (*RecordsStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "roofing_businesses"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordsStore{
		pool:  pool,
		table: table,
	}, nil
}

// NewRecordsStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordsStoreWithPool(pool execCloser, table string) (*RecordsStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "roofing_businesses"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordsStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RecordsStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StoreRecord inserts one business row into Postgres.
func (s *RecordsStore) StoreRecord(ctx context.Context, record crawler.BusinessRecord, runID string, scrapedAt time.Time) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("records store is not configured")
	}
	if record.BusinessName == "" {
		return fmt.Errorf("business name is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	scraped_at,
	business_name,
	street_address,
	city,
	state,
	postal_code,
	phone,
	email,
	website,
	entity_type,
	business_started,
	incorporated_date,
	principal_contact,
	business_categories,
	source_url
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)`, s.table)

	args := []any{
		runID,
		scrapedAt,
		record.BusinessName,
		record.StreetAddress,
		record.City,
		record.State,
		record.PostalCode,
		record.Phone,
		record.Email,
		record.Website,
		record.EntityType,
		record.BusinessStarted,
		record.IncorporatedDate,
		record.PrincipalContact,
		record.BusinessCategories,
		record.SourceURL,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert business: %w", err)
	}
	return nil
}
