package storepg

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/jonatasporto/trinks-router/domain"
)

// CatalogStore is a Postgres-backed store.CatalogStore.
type CatalogStore struct{ db *DB }

// Catalog returns the CatalogStore view of this connection.
func (d *DB) Catalog() *CatalogStore { return &CatalogStore{db: d} }

func (s *CatalogStore) Upsert(ctx context.Context, tenant domain.Tenant, items []domain.CatalogItem) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin catalog upsert tx")
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO catalog (tenant, service_id, professional_id, name, normalized_name,
			category, normalized_category, duration_minutes, price, visible_to_client, active, last_synced_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (tenant, service_id, professional_id) DO UPDATE SET
			name = EXCLUDED.name,
			normalized_name = EXCLUDED.normalized_name,
			category = EXCLUDED.category,
			normalized_category = EXCLUDED.normalized_category,
			duration_minutes = EXCLUDED.duration_minutes,
			price = EXCLUDED.price,
			visible_to_client = EXCLUDED.visible_to_client,
			active = EXCLUDED.active,
			last_synced_at = EXCLUDED.last_synced_at
	`
	for _, it := range items {
		if _, err := tx.ExecContext(ctx, q, tenant, it.ServiceID, it.ProfessionalID, it.Name, it.NormalizedName,
			it.Category, it.NormalizedCategory, it.DurationMinutes, it.Price, it.VisibleToClient, it.Active, time.Now()); err != nil {
			return errors.Wrap(err, "failed to upsert catalog item")
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit catalog upsert")
}

func (s *CatalogStore) SearchSuggestions(ctx context.Context, tenant domain.Tenant, normalizedTerm string, limit int) ([]domain.CatalogSuggestion, error) {
	const q = `
		SELECT service_id, MIN(name), MIN(category), MIN(normalized_category), MIN(duration_minutes), MIN(price)
		FROM catalog
		WHERE tenant = $1 AND active AND visible_to_client AND normalized_name LIKE '%' || $2 || '%'
		GROUP BY service_id
		ORDER BY MIN(price) ASC NULLS LAST, MIN(name) ASC
		LIMIT $3
	`
	rows, err := s.db.db.QueryContext(ctx, q, tenant, normalizedTerm, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search catalog suggestions")
	}
	defer rows.Close()
	return scanSuggestions(rows)
}

func (s *CatalogStore) ExistsForBooking(ctx context.Context, tenant domain.Tenant, serviceID string, professionalID *int64) (bool, error) {
	var q string
	var row *sql.Row
	if professionalID != nil {
		q = `SELECT EXISTS(SELECT 1 FROM catalog WHERE tenant=$1 AND service_id=$2 AND professional_id=$3)`
		row = s.db.db.QueryRowContext(ctx, q, tenant, serviceID, *professionalID)
	} else {
		q = `SELECT EXISTS(SELECT 1 FROM catalog WHERE tenant=$1 AND service_id=$2)`
		row = s.db.db.QueryRowContext(ctx, q, tenant, serviceID)
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, errors.Wrap(err, "failed to check catalog existence")
	}
	return exists, nil
}

func (s *CatalogStore) TopNByCategory30d(ctx context.Context, tenant domain.Tenant, normalizedCategory string, n int) ([]domain.CatalogSuggestion, error) {
	const q = `
		SELECT c.service_id, MIN(c.name), MIN(c.category), MIN(c.normalized_category), MIN(c.duration_minutes), MIN(c.price),
			COALESCE((SELECT COUNT(*) FROM appointments_audit a
				WHERE a.tenant = c.tenant AND a.service_id = c.service_id
				AND a.status = 'success' AND a.created_at >= NOW() - INTERVAL '30 days'), 0) AS bookings
		FROM catalog c
		WHERE c.tenant = $1 AND c.active AND c.visible_to_client AND c.normalized_category = $2
		GROUP BY c.service_id, c.tenant
		ORDER BY bookings DESC, MIN(c.name) ASC
		LIMIT $3
	`
	rows, err := s.db.db.QueryContext(ctx, q, tenant, normalizedCategory, n)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query top services by category")
	}
	defer rows.Close()

	var out []domain.CatalogSuggestion
	for rows.Next() {
		var sug domain.CatalogSuggestion
		var price sql.NullFloat64
		var bookings int
		if err := rows.Scan(&sug.ServiceID, &sug.Name, &sug.Category, &sug.NormalizedCategory, &sug.Duration, &price, &bookings); err != nil {
			return nil, errors.Wrap(err, "failed to scan top services row")
		}
		if price.Valid {
			v := price.Float64
			sug.Price = &v
		}
		out = append(out, sug)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate top services rows")
}

func (s *CatalogStore) IsCategoryGeneric(ctx context.Context, tenant domain.Tenant, normalizedTerm string) (bool, error) {
	const q = `
		SELECT COUNT(DISTINCT service_id) FROM catalog
		WHERE tenant=$1 AND active AND visible_to_client AND normalized_category=$2
	`
	var distinct int
	if err := s.db.db.QueryRowContext(ctx, q, tenant, normalizedTerm).Scan(&distinct); err != nil {
		return false, errors.Wrap(err, "failed to count distinct category services")
	}
	return distinct >= 2, nil
}

func (s *CatalogStore) RecordBookingSuccess(ctx context.Context, tenant domain.Tenant, serviceID string, at time.Time) error {
	// Booking success is recorded by the caller writing to appointments_audit
	// directly (see storepg/appointment.go); TopNByCategory30d reads that
	// table rather than a separate counter, so this is a documented noop.
	return nil
}

func (s *CatalogStore) CountAll(ctx context.Context, tenant domain.Tenant) (int, error) {
	var n int
	if err := s.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog WHERE tenant=$1`, tenant).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count catalog rows")
	}
	return n, nil
}

func (s *CatalogStore) RecommendedAddon(ctx context.Context, tenant domain.Tenant, primaryServiceID string) (*domain.CatalogSuggestion, error) {
	const q = `
		SELECT b.service_id, MIN(b.name), MIN(b.category), MIN(b.normalized_category), MIN(b.duration_minutes), MIN(b.price)
		FROM catalog b
		JOIN catalog p ON p.tenant = b.tenant AND p.normalized_category = b.normalized_category
		WHERE b.tenant = $1 AND p.service_id = $2 AND b.service_id <> $2
			AND b.active AND b.visible_to_client
		GROUP BY b.service_id
		ORDER BY MIN(b.price) ASC NULLS LAST
		LIMIT 1
	`
	row := s.db.db.QueryRowContext(ctx, q, tenant, primaryServiceID)
	var sug domain.CatalogSuggestion
	var price sql.NullFloat64
	if err := row.Scan(&sug.ServiceID, &sug.Name, &sug.Category, &sug.NormalizedCategory, &sug.Duration, &price); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to query recommended addon")
	}
	if price.Valid {
		v := price.Float64
		sug.Price = &v
	}
	return &sug, nil
}

func scanSuggestions(rows *sql.Rows) ([]domain.CatalogSuggestion, error) {
	var out []domain.CatalogSuggestion
	for rows.Next() {
		var sug domain.CatalogSuggestion
		var price sql.NullFloat64
		if err := rows.Scan(&sug.ServiceID, &sug.Name, &sug.Category, &sug.NormalizedCategory, &sug.Duration, &price); err != nil {
			return nil, errors.Wrap(err, "failed to scan catalog suggestion row")
		}
		if price.Valid {
			v := price.Float64
			sug.Price = &v
		}
		out = append(out, sug)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate catalog suggestion rows")
}
