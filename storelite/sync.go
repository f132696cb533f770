package storelite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/jonatasporto/trinks-router/domain"
)

// SyncWatermarkStore is a SQLite-backed store.SyncWatermarkStore.
type SyncWatermarkStore struct{ db *DB }

func (d *DB) SyncWatermarks() *SyncWatermarkStore { return &SyncWatermarkStore{db: d} }

func (s *SyncWatermarkStore) Get(ctx context.Context, tenant domain.Tenant) (*domain.SyncWatermark, error) {
	var at time.Time
	err := s.db.db.QueryRowContext(ctx, `SELECT last_update_seen FROM sync_watermarks WHERE tenant=?`, tenant).Scan(&at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read sync watermark")
	}
	return &domain.SyncWatermark{Tenant: tenant, LastUpdateSeen: at}, nil
}

func (s *SyncWatermarkStore) Set(ctx context.Context, tenant domain.Tenant, at time.Time) error {
	const q = `
		INSERT INTO sync_watermarks (tenant, last_update_seen) VALUES (?, ?)
		ON CONFLICT (tenant) DO UPDATE SET last_update_seen = excluded.last_update_seen
		WHERE excluded.last_update_seen > sync_watermarks.last_update_seen
	`
	_, err := s.db.db.ExecContext(ctx, q, tenant, at)
	return errors.Wrap(err, "failed to set sync watermark")
}

// SyncLockStore is a SQLite-backed store.SyncLockStore, realized as a row
// with an expiry. SQLite serializes writers at the connection/file level,
// so the lock row itself (not a row-level SELECT ... FOR UPDATE, which
// SQLite has no equivalent of) is what makes acquisition atomic within a
// transaction.
type SyncLockStore struct{ db *DB }

func (d *DB) SyncLocks() *SyncLockStore { return &SyncLockStore{db: d} }

func (s *SyncLockStore) Acquire(ctx context.Context, tenant domain.Tenant, ttl time.Duration) (bool, error) {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to begin sync lock tx")
	}
	defer tx.Rollback()

	var expiresAt time.Time
	err = tx.QueryRowContext(ctx, `SELECT expires_at FROM sync_locks WHERE tenant=?`, tenant).Scan(&expiresAt)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `INSERT INTO sync_locks (tenant, expires_at) VALUES (?, ?)`,
			tenant, time.Now().Add(ttl)); err != nil {
			return false, errors.Wrap(err, "failed to insert sync lock")
		}
	case err != nil:
		return false, errors.Wrap(err, "failed to read sync lock")
	case time.Now().Before(expiresAt):
		return false, nil
	default:
		if _, err := tx.ExecContext(ctx, `UPDATE sync_locks SET expires_at=? WHERE tenant=?`,
			time.Now().Add(ttl), tenant); err != nil {
			return false, errors.Wrap(err, "failed to refresh sync lock")
		}
	}
	return true, errors.Wrap(tx.Commit(), "failed to commit sync lock acquisition")
}

func (s *SyncLockStore) Release(ctx context.Context, tenant domain.Tenant) error {
	_, err := s.db.db.ExecContext(ctx, `DELETE FROM sync_locks WHERE tenant=?`, tenant)
	return errors.Wrap(err, "failed to release sync lock")
}
