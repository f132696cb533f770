package storepg

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/jonatasporto/trinks-router/domain"
)

// ConversationStore is a Postgres-backed store.ConversationStore. The
// context is stored as a single JSONB blob, matching the abstract
// "conversations(tenant, phone) -> context blob" layout of the
// specification's persisted state section.
type ConversationStore struct{ db *DB }

func (d *DB) Conversations() *ConversationStore { return &ConversationStore{db: d} }

func (s *ConversationStore) Get(ctx context.Context, tenant domain.Tenant, phone domain.Phone) (*domain.ConversationContext, error) {
	const q = `SELECT context_blob, expires_at FROM conversations WHERE tenant=$1 AND phone=$2`
	var blob []byte
	var expiresAt time.Time
	err := s.db.db.QueryRowContext(ctx, q, tenant, phone).Scan(&blob, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read conversation context")
	}
	if time.Now().After(expiresAt) {
		return nil, nil
	}
	var cc domain.ConversationContext
	if err := json.Unmarshal(blob, &cc); err != nil {
		// Corrupt blob: the caller (Conversation Controller) falls back to a
		// fresh context one level up, per the specification's "no exceptions
		// as control flow" design note; we report nil, not the parse error.
		return nil, nil
	}
	return &cc, nil
}

func (s *ConversationStore) Put(ctx context.Context, ctxVal domain.ConversationContext, ttl time.Duration) error {
	blob, err := json.Marshal(ctxVal)
	if err != nil {
		return errors.Wrap(err, "failed to marshal conversation context")
	}
	const q = `
		INSERT INTO conversations (tenant, phone, context_blob, updated_at, expires_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (tenant, phone) DO UPDATE SET
			context_blob = EXCLUDED.context_blob,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
	`
	now := time.Now()
	_, err = s.db.db.ExecContext(ctx, q, ctxVal.Tenant, ctxVal.Phone, blob, now, now.Add(ttl))
	return errors.Wrap(err, "failed to persist conversation context")
}

func (s *ConversationStore) Delete(ctx context.Context, tenant domain.Tenant, phone domain.Phone) error {
	_, err := s.db.db.ExecContext(ctx, `DELETE FROM conversations WHERE tenant=$1 AND phone=$2`, tenant, phone)
	return errors.Wrap(err, "failed to delete conversation context")
}

func (s *ConversationStore) List(ctx context.Context, tenant domain.Tenant) ([]domain.ConversationContext, error) {
	const q = `SELECT context_blob FROM conversations WHERE tenant=$1 AND expires_at > NOW()`
	rows, err := s.db.db.QueryContext(ctx, q, tenant)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversation contexts")
	}
	defer rows.Close()

	var out []domain.ConversationContext
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation row")
		}
		var cc domain.ConversationContext
		if err := json.Unmarshal(blob, &cc); err != nil {
			continue
		}
		out = append(out, cc)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate conversation rows")
}
