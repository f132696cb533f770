// Package storelite provides a SQLite-backed implementation of every
// interface in package store, intended for development and single-process
// client-side deployment per the specification's resource-model notes on a
// lightweight persistence option. Grounded on the teacher's
// store/db/sqlite idiom (plain database/sql, one receiver file per
// aggregate), but built on the pure-Go modernc.org/sqlite driver rather
// than the teacher's CGO-based mattn/go-sqlite3, since this router has no
// vector-search extension to load.
package storelite

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"
)

// DB wraps a *sql.DB and implements every store interface the router core
// depends on, one receiver file per aggregate, mirroring storepg.DB.
type DB struct {
	db *sql.DB
}

// Open connects to dsn (a file path, or ":memory:" for an ephemeral
// instance) and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", dsn)
	}
	// SQLite allows only one writer at a time; WAL journal mode lets readers
	// proceed concurrently with a writer instead of blocking on it.
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, p); err != nil {
			return nil, errors.Wrapf(err, "failed to set pragma: %s", p)
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to ping db")
	}
	d := &DB{db: sqlDB}
	if err := d.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error { return d.db.Close() }

const schemaDDL = `
CREATE TABLE IF NOT EXISTS catalog (
	tenant              TEXT NOT NULL,
	service_id          TEXT NOT NULL,
	professional_id     INTEGER NOT NULL,
	name                TEXT NOT NULL,
	normalized_name     TEXT NOT NULL,
	category            TEXT NOT NULL,
	normalized_category TEXT NOT NULL,
	duration_minutes    INTEGER NOT NULL,
	price               REAL,
	visible_to_client   INTEGER NOT NULL,
	active              INTEGER NOT NULL,
	last_synced_at      DATETIME NOT NULL,
	PRIMARY KEY (tenant, service_id, professional_id)
);
CREATE INDEX IF NOT EXISTS idx_catalog_normalized_name ON catalog (tenant, normalized_name);
CREATE INDEX IF NOT EXISTS idx_catalog_normalized_category ON catalog (tenant, normalized_category);

CREATE TABLE IF NOT EXISTS sync_watermarks (
	tenant           TEXT PRIMARY KEY,
	last_update_seen DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_locks (
	tenant     TEXT PRIMARY KEY,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	tenant        TEXT NOT NULL,
	phone         TEXT NOT NULL,
	context_blob  TEXT NOT NULL,
	updated_at    DATETIME NOT NULL,
	expires_at    DATETIME NOT NULL,
	PRIMARY KEY (tenant, phone)
);

CREATE TABLE IF NOT EXISTS message_buffers (
	phone      TEXT PRIMARY KEY,
	fragments  TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS handoff_flags (
	tenant     TEXT NOT NULL,
	phone      TEXT NOT NULL,
	active     INTEGER NOT NULL,
	expires_at DATETIME NOT NULL,
	PRIMARY KEY (tenant, phone)
);

CREATE TABLE IF NOT EXISTS upsell_events (
	id                 TEXT PRIMARY KEY,
	tenant             TEXT NOT NULL,
	conversation_id    TEXT NOT NULL,
	phone              TEXT NOT NULL,
	event              TEXT NOT NULL,
	addon_id           TEXT,
	addon_price        REAL,
	variant_copy       TEXT,
	variant_position   TEXT,
	appointment_id     TEXT,
	primary_service_id TEXT,
	processing_ms      INTEGER,
	error_message      TEXT,
	created_at         DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_upsell_events_conversation ON upsell_events (conversation_id);

CREATE TABLE IF NOT EXISTS upsell_conversation_state (
	conversation_id TEXT PRIMARY KEY,
	appointment_id  TEXT,
	has_shown       INTEGER NOT NULL,
	last_event      TEXT NOT NULL,
	last_event_at   DATETIME NOT NULL,
	last_addon_id   TEXT,
	last_variant_copy     TEXT,
	last_variant_position TEXT
);

CREATE TABLE IF NOT EXISTS upsell_jobs (
	id                 TEXT PRIMARY KEY,
	tenant             TEXT NOT NULL,
	conversation_id    TEXT NOT NULL,
	phone              TEXT NOT NULL,
	appointment_id     TEXT NOT NULL,
	primary_service_id TEXT NOT NULL,
	scheduled_for      DATETIME NOT NULL,
	variant_copy       TEXT NOT NULL,
	variant_position   TEXT NOT NULL,
	attempts           INTEGER NOT NULL,
	max_attempts       INTEGER NOT NULL,
	status             TEXT NOT NULL,
	last_error         TEXT
);
CREATE INDEX IF NOT EXISTS idx_upsell_jobs_due ON upsell_jobs (status, scheduled_for);

CREATE TABLE IF NOT EXISTS appointments_audit (
	idempotency_key       TEXT PRIMARY KEY,
	tenant                TEXT NOT NULL,
	phone                 TEXT NOT NULL,
	service_id            TEXT NOT NULL,
	professional_id       INTEGER NOT NULL,
	start_iso             TEXT NOT NULL,
	request_payload       TEXT,
	response_payload      TEXT,
	provider_appointment  TEXT,
	status                TEXT NOT NULL,
	created_at            DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS rate_counters (
	key          TEXT PRIMARY KEY,
	window_ts    DATETIME NOT NULL,
	count        INTEGER NOT NULL,
	banned_until DATETIME
);

CREATE TABLE IF NOT EXISTS message_dedup (
	message_id TEXT PRIMARY KEY,
	expires_at DATETIME NOT NULL
);
`

func (d *DB) ensureSchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schemaDDL); err != nil {
		return errors.Wrap(err, "failed to ensure storelite schema")
	}
	return nil
}
