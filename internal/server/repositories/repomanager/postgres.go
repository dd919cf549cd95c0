package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/openplaud/plaudsync/internal/dbx"
	"github.com/openplaud/plaudsync/internal/server/migrations"
	"github.com/openplaud/plaudsync/internal/server/repositories/connections"
	"github.com/openplaud/plaudsync/internal/server/repositories/prefs"
	"github.com/openplaud/plaudsync/internal/server/repositories/recordings"
	"github.com/openplaud/plaudsync/internal/server/repositories/transcriptions"
)

type PostgresManager struct {
	db *sql.DB
}

// NewPostgresManager opens the database, verifies connectivity and runs
// pending migrations.
func NewPostgresManager(ctx context.Context, dsn string) (*PostgresManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresManager{db: db}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (m *PostgresManager) Recordings(db dbx.DBTX) recordings.Repository {
	return recordings.NewPostgresRepository(db)
}

func (m *PostgresManager) Transcriptions(db dbx.DBTX) transcriptions.Repository {
	return transcriptions.NewPostgresRepository(db)
}

func (m *PostgresManager) Connections(db dbx.DBTX) connections.Repository {
	return connections.NewPostgresRepository(db)
}

func (m *PostgresManager) Prefs(db dbx.DBTX) prefs.Repository {
	return prefs.NewPostgresRepository(db)
}

func (m *PostgresManager) DB() *sql.DB {
	return m.db
}

func (m *PostgresManager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *PostgresManager) Close() error {
	return m.db.Close()
}
