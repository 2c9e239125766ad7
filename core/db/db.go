package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DBTX is what stores query through: the pool, or an open transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32
	// Zero keeps the pgxpool defaults.
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DB owns the pgx pool shared by every store.
type DB struct {
	pool *pgxpool.Pool
}

// New opens the pool and fails fast if Postgres is unreachable.
func New(ctx context.Context, cfg Config) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database dsn: %w", err)
	}

	poolCfg.MaxConns = orDefault(cfg.MaxConns, 10)
	poolCfg.MinConns = orDefault(cfg.MinConns, 2)
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{pool: pool}, nil
}

func orDefault(v, fallback int32) int32 {
	if v > 0 {
		return v
	}
	return fallback
}

func (db *DB) Close() { db.pool.Close() }

func (db *DB) Ping(ctx context.Context) error { return db.pool.Ping(ctx) }

// Conn returns the pool for queries that need no transaction.
func (db *DB) Conn() DBTX { return db.pool }

// WithTx runs fn in a read-committed transaction. It commits when fn returns
// nil and rolls back otherwise; fn's error is returned unwrapped.
func (db *DB) WithTx(ctx context.Context, fn func(tx DBTX) error) error {
	return pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

// PoolCollector exports pool saturation as wardline_db_pool_* gauges.
func (db *DB) PoolCollector() prometheus.Collector {
	return &poolCollector{pool: db.pool}
}

var (
	poolAcquiredDesc = prometheus.NewDesc("wardline_db_pool_acquired_conns",
		"Connections currently checked out of the pool", nil, nil)
	poolIdleDesc = prometheus.NewDesc("wardline_db_pool_idle_conns",
		"Idle connections held by the pool", nil, nil)
	poolMaxDesc = prometheus.NewDesc("wardline_db_pool_max_conns",
		"Configured pool ceiling", nil, nil)
	poolWaitDesc = prometheus.NewDesc("wardline_db_pool_empty_acquire_total",
		"Acquires that had to wait for a free connection", nil, nil)
)

type poolCollector struct {
	pool *pgxpool.Pool
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- poolAcquiredDesc
	ch <- poolIdleDesc
	ch <- poolMaxDesc
	ch <- poolWaitDesc
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(poolAcquiredDesc, prometheus.GaugeValue, float64(s.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(poolIdleDesc, prometheus.GaugeValue, float64(s.IdleConns()))
	ch <- prometheus.MustNewConstMetric(poolMaxDesc, prometheus.GaugeValue, float64(s.MaxConns()))
	ch <- prometheus.MustNewConstMetric(poolWaitDesc, prometheus.CounterValue, float64(s.EmptyAcquireCount()))
}
