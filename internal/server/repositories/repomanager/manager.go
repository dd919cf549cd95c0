// Package repomanager wires the concrete repositories to a shared
// database handle and owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/openplaud/plaudsync/internal/dbx"
	"github.com/openplaud/plaudsync/internal/server/repositories/connections"
	"github.com/openplaud/plaudsync/internal/server/repositories/prefs"
	"github.com/openplaud/plaudsync/internal/server/repositories/recordings"
	"github.com/openplaud/plaudsync/internal/server/repositories/transcriptions"
)

// Manager hands out repositories bound to an arbitrary handle, so the
// same accessor works on the pooled *sql.DB and inside a dbx.WithTx
// transaction.
type Manager interface {
	Recordings(db dbx.DBTX) recordings.Repository
	Transcriptions(db dbx.DBTX) transcriptions.Repository
	Connections(db dbx.DBTX) connections.Repository
	Prefs(db dbx.DBTX) prefs.Repository

	// DB exposes the pooled handle for dbx.WithTx and health checks.
	DB() *sql.DB
	Ping(ctx context.Context) error
	Close() error
}
