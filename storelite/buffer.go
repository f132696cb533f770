package storelite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/jonatasporto/trinks-router/domain"
)

// BufferStore is a SQLite-backed store.BufferStore, used only to survive a
// process restart mid-window; the hot path runs in-process (see package
// buffer).
type BufferStore struct{ db *DB }

func (d *DB) MessageBuffers() *BufferStore { return &BufferStore{db: d} }

func (s *BufferStore) Get(ctx context.Context, phone domain.Phone) (*domain.MessageBufferState, error) {
	const q = `SELECT fragments, started_at, expires_at FROM message_buffers WHERE phone=?`
	var fragJSON []byte
	var startedAt, expiresAt time.Time
	err := s.db.db.QueryRowContext(ctx, q, phone).Scan(&fragJSON, &startedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read message buffer")
	}
	if time.Now().After(expiresAt) {
		return nil, nil
	}
	var fragments []string
	if err := json.Unmarshal(fragJSON, &fragments); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal buffer fragments")
	}
	return &domain.MessageBufferState{Phone: phone, Fragments: fragments, StartedAt: startedAt}, nil
}

func (s *BufferStore) Put(ctx context.Context, state domain.MessageBufferState, ttl time.Duration) error {
	fragJSON, err := json.Marshal(state.Fragments)
	if err != nil {
		return errors.Wrap(err, "failed to marshal buffer fragments")
	}
	const q = `
		INSERT INTO message_buffers (phone, fragments, started_at, expires_at)
		VALUES (?,?,?,?)
		ON CONFLICT (phone) DO UPDATE SET
			fragments = excluded.fragments,
			started_at = excluded.started_at,
			expires_at = excluded.expires_at
	`
	_, err = s.db.db.ExecContext(ctx, q, state.Phone, fragJSON, state.StartedAt, time.Now().Add(ttl))
	return errors.Wrap(err, "failed to persist message buffer")
}

func (s *BufferStore) Delete(ctx context.Context, phone domain.Phone) error {
	_, err := s.db.db.ExecContext(ctx, `DELETE FROM message_buffers WHERE phone=?`, phone)
	return errors.Wrap(err, "failed to delete message buffer")
}
