// Package storepg provides a Postgres-backed implementation of every
// interface in package store, grounded on the teacher's store/db/postgres
// idiom (plain database/sql, lib/pq for the driver, ON CONFLICT upserts,
// pkg/errors wrapping). DDL ownership is external per the specification's
// Non-goals — NewDB issues development-convenience CREATE TABLE IF NOT
// EXISTS statements only, never a migration framework.
package storepg

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// DB wraps a *sql.DB and implements every store interface the router core
// depends on, the way the teacher's postgres.DB wraps its connection once
// and grows one receiver file per aggregate.
type DB struct {
	db *sql.DB
}

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", dsn)
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

// Close releases the underlying connection pool.
func (d *DB) Close() error { return d.db.Close() }

const schemaDDL = `
CREATE TABLE IF NOT EXISTS catalog (
	tenant              TEXT NOT NULL,
	service_id          TEXT NOT NULL,
	professional_id     BIGINT NOT NULL,
	name                TEXT NOT NULL,
	normalized_name     TEXT NOT NULL,
	category            TEXT NOT NULL,
	normalized_category TEXT NOT NULL,
	duration_minutes    INT NOT NULL,
	price               DOUBLE PRECISION,
	visible_to_client   BOOLEAN NOT NULL,
	active              BOOLEAN NOT NULL,
	last_synced_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant, service_id, professional_id)
);
CREATE INDEX IF NOT EXISTS idx_catalog_normalized_name ON catalog (tenant, normalized_name);
CREATE INDEX IF NOT EXISTS idx_catalog_normalized_category ON catalog (tenant, normalized_category);

CREATE TABLE IF NOT EXISTS sync_watermarks (
	tenant           TEXT PRIMARY KEY,
	last_update_seen TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_locks (
	tenant     TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	tenant        TEXT NOT NULL,
	phone         TEXT NOT NULL,
	context_blob  JSONB NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	expires_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant, phone)
);

CREATE TABLE IF NOT EXISTS message_buffers (
	phone      TEXT PRIMARY KEY,
	fragments  JSONB NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS handoff_flags (
	tenant     TEXT NOT NULL,
	phone      TEXT NOT NULL,
	active     BOOLEAN NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant, phone)
);

CREATE TABLE IF NOT EXISTS upsell_events (
	id                 TEXT PRIMARY KEY,
	tenant             TEXT NOT NULL,
	conversation_id    TEXT NOT NULL,
	phone              TEXT NOT NULL,
	event              TEXT NOT NULL,
	addon_id           TEXT,
	addon_price        DOUBLE PRECISION,
	variant_copy       TEXT,
	variant_position   TEXT,
	appointment_id     TEXT,
	primary_service_id TEXT,
	processing_ms      BIGINT,
	error_message      TEXT,
	created_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_upsell_events_conversation ON upsell_events (conversation_id);

CREATE TABLE IF NOT EXISTS upsell_conversation_state (
	conversation_id TEXT PRIMARY KEY,
	appointment_id  TEXT,
	has_shown       BOOLEAN NOT NULL,
	last_event      TEXT NOT NULL,
	last_event_at   TIMESTAMPTZ NOT NULL,
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
	scheduled_for      TIMESTAMPTZ NOT NULL,
	variant_copy       TEXT NOT NULL,
	variant_position   TEXT NOT NULL,
	attempts           INT NOT NULL,
	max_attempts       INT NOT NULL,
	status             TEXT NOT NULL,
	last_error         TEXT
);
CREATE INDEX IF NOT EXISTS idx_upsell_jobs_due ON upsell_jobs (status, scheduled_for);

CREATE TABLE IF NOT EXISTS appointments_audit (
	idempotency_key       TEXT PRIMARY KEY,
	tenant                TEXT NOT NULL,
	phone                 TEXT NOT NULL,
	service_id            TEXT NOT NULL,
	professional_id       BIGINT NOT NULL,
	start_iso             TEXT NOT NULL,
	request_payload       TEXT,
	response_payload      TEXT,
	provider_appointment  TEXT,
	status                TEXT NOT NULL,
	created_at            TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS rate_counters (
	key         TEXT PRIMARY KEY,
	window_ts   TIMESTAMPTZ NOT NULL,
	count       INT NOT NULL,
	banned_until TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS message_dedup (
	message_id TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL
);
`

func (d *DB) ensureSchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schemaDDL); err != nil {
		return errors.Wrap(err, "failed to ensure storepg schema")
	}
	return nil
}
