package storelite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/jonatasporto/trinks-router/domain"
)

// HandoffStore is a SQLite-backed store.HandoffStore.
type HandoffStore struct{ db *DB }

func (d *DB) Handoffs() *HandoffStore { return &HandoffStore{db: d} }

func (s *HandoffStore) Get(ctx context.Context, tenant domain.Tenant, phone domain.Phone) (*domain.HandoffFlag, error) {
	const q = `SELECT active, expires_at FROM handoff_flags WHERE tenant=? AND phone=?`
	var active bool
	var expiresAt time.Time
	err := s.db.db.QueryRowContext(ctx, q, tenant, phone).Scan(&active, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read handoff flag")
	}
	if active && time.Now().After(expiresAt) {
		return nil, nil
	}
	return &domain.HandoffFlag{Tenant: tenant, Phone: phone, Active: active, ExpiresAt: expiresAt}, nil
}

func (s *HandoffStore) Set(ctx context.Context, flag domain.HandoffFlag) error {
	const q = `
		INSERT INTO handoff_flags (tenant, phone, active, expires_at) VALUES (?,?,?,?)
		ON CONFLICT (tenant, phone) DO UPDATE SET active = excluded.active, expires_at = excluded.expires_at
	`
	_, err := s.db.db.ExecContext(ctx, q, flag.Tenant, flag.Phone, flag.Active, flag.ExpiresAt)
	return errors.Wrap(err, "failed to set handoff flag")
}

func (s *HandoffStore) Clear(ctx context.Context, tenant domain.Tenant, phone domain.Phone) error {
	_, err := s.db.db.ExecContext(ctx, `DELETE FROM handoff_flags WHERE tenant=? AND phone=?`, tenant, phone)
	return errors.Wrap(err, "failed to clear handoff flag")
}
