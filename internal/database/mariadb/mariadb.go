package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/fusion-batch/internal/config"
	"github.com/kozaktomas/fusion-batch/internal/database"
)

func init() {
	database.RegisterBackend(Open, "mysql", "mariadb")
}

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string, maxOpen, maxIdle int) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// DSN converts a mysql:// or mariadb:// URL into a go-sql-driver DSN with
// parseTime enabled. A driver DSN after the scheme (user@tcp(host)/db) is
// accepted as is.
func DSN(rawURL string) (string, error) {
	_, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return "", fmt.Errorf("database URL %q has no scheme", rawURL)
	}

	if strings.Contains(rest, "(") {
		cfg, err := mysql.ParseDSN(rest)
		if err != nil {
			return "", fmt.Errorf("parsing MariaDB DSN: %w", err)
		}
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	}

	u, err := url.Parse("mysql://" + rest)
	if err != nil {
		return "", fmt.Errorf("parsing MariaDB URL: %w", err)
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	params := u.Query()
	if len(params) > 0 {
		cfg.Params = make(map[string]string, len(params))
		for k := range params {
			cfg.Params[k] = params.Get(k)
		}
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// Open connects to MariaDB, creates the history tables and returns the store.
func Open(cfg *config.DatabaseConfig) (database.Store, error) {
	dsn, err := DSN(cfg.URL)
	if err != nil {
		return nil, err
	}
	pool, err := NewPool(dsn, cfg.MaxOpenConns, cfg.MaxIdleConns)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := pool.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return NewRunRepository(pool), nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          VARCHAR(36) PRIMARY KEY,
		kind        VARCHAR(32) NOT NULL,
		preset      VARCHAR(255) NOT NULL,
		policy      VARCHAR(32) NOT NULL,
		status      VARCHAR(32) NOT NULL,
		total       INT NOT NULL DEFAULT 0,
		succeeded   INT NOT NULL DEFAULT 0,
		failed      INT NOT NULL DEFAULT 0,
		skipped     INT NOT NULL DEFAULT 0,
		started_at  DATETIME(3) NOT NULL,
		finished_at DATETIME(3) NULL,
		INDEX runs_started_at_idx (started_at)
	) DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS run_jobs (
		id          BIGINT AUTO_INCREMENT PRIMARY KEY,
		run_id      VARCHAR(36) NOT NULL,
		job_name    VARCHAR(512) NOT NULL,
		source      TEXT NOT NULL,
		target      TEXT NOT NULL,
		output      TEXT NOT NULL,
		status      VARCHAR(32) NOT NULL,
		error       TEXT NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at  DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		INDEX run_jobs_run_id_idx (run_id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	) DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the history tables when missing. MariaDB cannot run
// DDL inside a transaction, so there is no migration bookkeeping here.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create history schema: %w", err)
		}
	}
	return nil
}
