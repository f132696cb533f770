package storepg

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// RateCounterStore is a Postgres-backed store.RateCounterStore.
type RateCounterStore struct{ db *DB }

func (d *DB) RateCounters() *RateCounterStore { return &RateCounterStore{db: d} }

func (s *RateCounterStore) Increment(ctx context.Context, key string, window time.Time, ttl time.Duration) (int, error) {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin rate counter tx")
	}
	defer tx.Rollback()

	var count int
	var storedWindow time.Time
	err = tx.QueryRowContext(ctx, `SELECT count, window_ts FROM rate_counters WHERE key=$1 FOR UPDATE`, key).
		Scan(&count, &storedWindow)
	switch {
	case err == sql.ErrNoRows:
		count = 1
		if _, err := tx.ExecContext(ctx, `INSERT INTO rate_counters (key, window_ts, count) VALUES ($1,$2,$3)`,
			key, window, count); err != nil {
			return 0, errors.Wrap(err, "failed to insert rate counter")
		}
	case err != nil:
		return 0, errors.Wrap(err, "failed to read rate counter")
	case !storedWindow.Equal(window):
		count = 1
		if _, err := tx.ExecContext(ctx, `UPDATE rate_counters SET window_ts=$2, count=$3 WHERE key=$1`,
			key, window, count); err != nil {
			return 0, errors.Wrap(err, "failed to reset rate counter window")
		}
	default:
		count++
		if _, err := tx.ExecContext(ctx, `UPDATE rate_counters SET count=$2 WHERE key=$1`, key, count); err != nil {
			return 0, errors.Wrap(err, "failed to increment rate counter")
		}
	}
	return count, errors.Wrap(tx.Commit(), "failed to commit rate counter increment")
}

func (s *RateCounterStore) IsBanned(ctx context.Context, key string) (bool, error) {
	var until sql.NullTime
	err := s.db.db.QueryRowContext(ctx, `SELECT banned_until FROM rate_counters WHERE key=$1`, key).Scan(&until)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to read ban state")
	}
	return until.Valid && time.Now().Before(until.Time), nil
}

func (s *RateCounterStore) Ban(ctx context.Context, key string, until time.Time) error {
	const q = `
		INSERT INTO rate_counters (key, window_ts, count, banned_until) VALUES ($1, NOW(), 0, $2)
		ON CONFLICT (key) DO UPDATE SET banned_until = EXCLUDED.banned_until
	`
	_, err := s.db.db.ExecContext(ctx, q, key, until)
	return errors.Wrap(err, "failed to set ban")
}
