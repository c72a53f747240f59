// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/jaupesca/remarketing-gateway/internal/model"
	"github.com/jaupesca/remarketing-gateway/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewFromDB wraps an already-open database handle without running migrations.
func NewFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CountConfigs(ctx context.Context) (int, error) {
	return queryCountConfigs(ctx, s.db)
}

func (s *PostgresStore) GetConfigPage(ctx context.Context, page int) (*model.ConfigRow, error) {
	return queryGetConfigPage(ctx, s.db, page)
}

func (s *PostgresStore) CreateConfig(ctx context.Context, fields model.ConfigFields) (*model.ConfigRow, error) {
	return queryCreateConfig(ctx, s.db, fields)
}

func (s *PostgresStore) UpdateConfig(ctx context.Context, id int64, fields model.ConfigFields) (*model.ConfigRow, error) {
	return queryUpdateConfig(ctx, s.db, id, fields)
}

func (s *PostgresStore) DeleteConfig(ctx context.Context, id int64) error {
	return queryDeleteConfig(ctx, s.db, id)
}

func (s *PostgresStore) BulkUpdateChannel(ctx context.Context, ids []int64, ch model.Channel, msgs []model.MessageBlock) (int, error) {
	return queryBulkUpdateChannel(ctx, s.db, ids, ch, msgs)
}

func (s *PostgresStore) ListInstances(ctx context.Context) ([]*model.Instance, error) {
	return queryListInstances(ctx, s.db)
}

func (s *PostgresStore) ListAllConfigs(ctx context.Context) ([]*model.ConfigRow, error) {
	return queryListAllConfigs(ctx, s.db)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CountConfigs(ctx context.Context) (int, error) {
	return queryCountConfigs(ctx, s.tx)
}

func (s *txStore) GetConfigPage(ctx context.Context, page int) (*model.ConfigRow, error) {
	return queryGetConfigPage(ctx, s.tx, page)
}

func (s *txStore) CreateConfig(ctx context.Context, fields model.ConfigFields) (*model.ConfigRow, error) {
	return queryCreateConfig(ctx, s.tx, fields)
}

func (s *txStore) UpdateConfig(ctx context.Context, id int64, fields model.ConfigFields) (*model.ConfigRow, error) {
	return queryUpdateConfig(ctx, s.tx, id, fields)
}

func (s *txStore) DeleteConfig(ctx context.Context, id int64) error {
	return queryDeleteConfig(ctx, s.tx, id)
}

func (s *txStore) BulkUpdateChannel(ctx context.Context, ids []int64, ch model.Channel, msgs []model.MessageBlock) (int, error) {
	return queryBulkUpdateChannel(ctx, s.tx, ids, ch, msgs)
}

func (s *txStore) ListInstances(ctx context.Context) ([]*model.Instance, error) {
	return queryListInstances(ctx, s.tx)
}

func (s *txStore) ListAllConfigs(ctx context.Context) ([]*model.ConfigRow, error) {
	return queryListAllConfigs(ctx, s.tx)
}

// RunInTransaction on a txStore runs fn within the existing transaction.
func (s *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for txStore; the transaction is managed by RunInTransaction.
func (s *txStore) Close() error {
	return nil
}
