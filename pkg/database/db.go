package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/aryan0dhankhar/estatebooks/pkg/config"
)

// ErrNoTenant is returned when a tenant-scoped transaction is opened without a tenant id
var ErrNoTenant = errors.New("tenant id required for tenant-scoped transaction")

// ConnectionPool manages database connections
type ConnectionPool struct {
	db         *sql.DB
	rlsSetting string
	logger     *slog.Logger
}

// NewConnectionPool opens and pings a PostgreSQL pool
func NewConnectionPool(ctx context.Context, opts config.DatabaseOptions, rlsSetting string, logger *slog.Logger) (*ConnectionPool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("postgres", opts.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(25)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctxTest, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctxTest); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connected successfully",
		slog.String("host", opts.Host),
		slog.String("database", opts.Name),
	)

	return NewFromDB(db, rlsSetting, logger), nil
}

// NewFromDB wraps an already opened *sql.DB (tests use sqlmock here)
func NewFromDB(db *sql.DB, rlsSetting string, logger *slog.Logger) *ConnectionPool {
	if logger == nil {
		logger = slog.Default()
	}
	if rlsSetting == "" {
		rlsSetting = "app.current_tenant"
	}
	return &ConnectionPool{db: db, rlsSetting: rlsSetting, logger: logger}
}

// GetDB returns the underlying sql.DB connection
func (cp *ConnectionPool) GetDB() *sql.DB {
	return cp.db
}

// Close closes the database connection
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Health checks the database health
func (cp *ConnectionPool) Health(ctx context.Context) error {
	ctxTest, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return cp.db.PingContext(ctxTest)
}

// InTenantTx runs fn inside a transaction whose RLS session variable is set to
// tenantID. The setting is transaction-local, so pooled connections never leak
// one tenant's scope into another request.
func (cp *ConnectionPool) InTenantTx(ctx context.Context, tenantID string, fn func(tx *sql.Tx) error) error {
	if tenantID == "" {
		return ErrNoTenant
	}

	tx, err := cp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "SELECT set_config($1, $2, true)", cp.rlsSetting, tenantID); err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			return errors.Join(fmt.Errorf("failed to set rls tenant context: %w", err), rErr)
		}
		return fmt.Errorf("failed to set rls tenant context: %w", err)
	}

	if err := fn(tx); err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			return errors.Join(err, rErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
