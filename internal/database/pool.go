package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/gruzilkin/urmom-bot-sub000/internal/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config sizes the connection pool. Zero values fall back to defaults
// suited to the bot's workload: a handful of short queries per inbound
// message plus the nightly summarization scans.
type Config struct {
	MaxIdleConns        int
	MaxOpenConns        int
	ConnMaxLifetime     time.Duration
	HealthCheckInterval time.Duration
}

const (
	defaultMaxIdleConns    = 5
	defaultMaxOpenConns    = 25
	defaultConnMaxLifetime = time.Hour
	defaultProbeInterval   = time.Minute
	probeTimeout           = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = defaultMaxIdleConns
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = defaultMaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = defaultProbeInterval
	}
	return c
}

// TransactionFunc is the closure WithTransaction runs inside one database
// transaction.
type TransactionFunc func(tx *gorm.DB) error

// Pool wraps a *gorm.DB with sized connection limits, a background liveness
// probe that feeds the db connection gauges, and the transaction helper the
// store's multi-statement joke write commits through.
type Pool struct {
	db      *gorm.DB
	sqlDB   *sql.DB
	metrics *metrics.Collector
	logger  *zap.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPool applies cfg's limits to db's underlying sql.DB and starts the
// liveness probe. metricsCollector may be nil, which leaves the connection
// gauges unset.
func NewPool(db *gorm.DB, cfg Config, metricsCollector *metrics.Collector, logger *zap.Logger) (*Pool, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}

	cfg = cfg.withDefaults()
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	p := &Pool{
		db:      db,
		sqlDB:   sqlDB,
		metrics: metricsCollector,
		logger:  logger.With(zap.String("component", "db_pool")),
		stop:    make(chan struct{}),
	}
	go p.probeLoop(cfg.HealthCheckInterval)

	p.logger.Info("database pool ready",
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Int("max_open_conns", cfg.MaxOpenConns))
	return p, nil
}

// DB returns the shared GORM handle.
func (p *Pool) DB() *gorm.DB { return p.db }

// Ping reports whether the database currently answers.
func (p *Pool) Ping(ctx context.Context) error {
	return p.sqlDB.PingContext(ctx)
}

// WithTransaction runs fn inside a single transaction. The only caller with
// more than one statement is the joke write (two message upserts + the joke
// relation), which must commit atomically.
func (p *Pool) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	return p.db.WithContext(ctx).Transaction(fn)
}

// Close stops the probe and closes the underlying connections. Safe to call
// more than once.
func (p *Pool) Close() error {
	var err error
	p.stopOnce.Do(func() {
		close(p.stop)
		p.logger.Info("closing database pool")
		err = p.sqlDB.Close()
	})
	return err
}

// probeLoop pings the database on a fixed interval and publishes the
// open/idle connection gauges. A failed ping is logged and retried on the
// next tick; the pool itself stays usable so transient outages self-heal.
func (p *Pool) probeLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			p.logger.Error("database probe failed", zap.Error(err))
			continue
		}

		stats := p.sqlDB.Stats()
		if p.metrics != nil {
			p.metrics.RecordDBConnections("main", stats.OpenConnections, stats.Idle)
		}
	}
}
