package storepg

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// DedupStore is a Postgres-backed store.MessageDedupStore implementing the
// short-TTL provider-message-id dedup set with a single atomic upsert.
type DedupStore struct{ db *DB }

func (d *DB) MessageDedup() *DedupStore { return &DedupStore{db: d} }

func (s *DedupStore) SeenBefore(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	const q = `
		INSERT INTO message_dedup (message_id, expires_at) VALUES ($1, $2)
		ON CONFLICT (message_id) DO NOTHING
	`
	res, err := s.db.db.ExecContext(ctx, q, messageID, time.Now().Add(ttl))
	if err != nil {
		return false, errors.Wrap(err, "failed to insert dedup row")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read dedup insert result")
	}
	return affected == 0, nil
}
