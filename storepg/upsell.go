package storepg

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/jonatasporto/trinks-router/domain"
	"github.com/jonatasporto/trinks-router/store"
)

// UpsellStore is a Postgres-backed store.UpsellStore.
type UpsellStore struct{ db *DB }

func (d *DB) Upsells() *UpsellStore { return &UpsellStore{db: d} }

func (s *UpsellStore) AppendEvent(ctx context.Context, event domain.UpsellEvent) error {
	const q = `
		INSERT INTO upsell_events (id, tenant, conversation_id, phone, event, addon_id, addon_price,
			variant_copy, variant_position, appointment_id, primary_service_id, processing_ms,
			error_message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`
	var copyPtr, posPtr *string
	if event.VariantCopy != nil {
		v := string(*event.VariantCopy)
		copyPtr = &v
	}
	if event.VariantPosition != nil {
		v := string(*event.VariantPosition)
		posPtr = &v
	}
	_, err := s.db.db.ExecContext(ctx, q, event.ID, event.Tenant, event.ConversationID, event.Phone,
		event.Event, nullString(event.AddonID), event.AddonPrice, copyPtr, posPtr,
		nullString(event.AppointmentID), nullString(event.PrimaryServiceID), event.ProcessingMS,
		nullString(event.ErrorMessage), event.CreatedAt)
	return errors.Wrap(err, "failed to append upsell event")
}

func (s *UpsellStore) GetConversationState(ctx context.Context, conversationID string) (*domain.UpsellConversationState, error) {
	const q = `
		SELECT appointment_id, has_shown, last_event, last_event_at, last_addon_id, last_variant_copy, last_variant_position
		FROM upsell_conversation_state WHERE conversation_id=$1
	`
	var st domain.UpsellConversationState
	var appointmentID, lastAddon, copyStr, posStr sql.NullString
	err := s.db.db.QueryRowContext(ctx, q, conversationID).Scan(
		&appointmentID, &st.HasShown, &st.LastEvent, &st.LastEventAt, &lastAddon, &copyStr, &posStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read upsell conversation state")
	}
	st.ConversationID = conversationID
	st.AppointmentID = appointmentID.String
	st.LastAddonID = lastAddon.String
	if copyStr.Valid && posStr.Valid {
		st.LastVariant = &domain.Variant{Copy: domain.VariantCopy(copyStr.String), Position: domain.VariantPosition(posStr.String)}
	}
	return &st, nil
}

func (s *UpsellStore) PutConversationState(ctx context.Context, state domain.UpsellConversationState) error {
	var copyPtr, posPtr *string
	if state.LastVariant != nil {
		c, p := string(state.LastVariant.Copy), string(state.LastVariant.Position)
		copyPtr, posPtr = &c, &p
	}
	const q = `
		INSERT INTO upsell_conversation_state (conversation_id, appointment_id, has_shown, last_event, last_event_at,
			last_addon_id, last_variant_copy, last_variant_position)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (conversation_id) DO UPDATE SET
			appointment_id = EXCLUDED.appointment_id,
			has_shown = EXCLUDED.has_shown,
			last_event = EXCLUDED.last_event,
			last_event_at = EXCLUDED.last_event_at,
			last_addon_id = EXCLUDED.last_addon_id,
			last_variant_copy = EXCLUDED.last_variant_copy,
			last_variant_position = EXCLUDED.last_variant_position
	`
	_, err := s.db.db.ExecContext(ctx, q, state.ConversationID, nullString(state.AppointmentID), state.HasShown, state.LastEvent,
		state.LastEventAt, nullString(state.LastAddonID), copyPtr, posPtr)
	return errors.Wrap(err, "failed to persist upsell conversation state")
}

func (s *UpsellStore) CreateJob(ctx context.Context, job domain.ScheduledUpsellJob) error {
	const q = `
		INSERT INTO upsell_jobs (id, tenant, conversation_id, phone, appointment_id, primary_service_id,
			scheduled_for, variant_copy, variant_position, attempts, max_attempts, status, last_error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.db.ExecContext(ctx, q, job.ID, job.Tenant, job.ConversationID, job.Phone,
		job.AppointmentID, job.PrimaryServiceID, job.ScheduledFor, job.Variant.Copy, job.Variant.Position,
		job.Attempts, job.MaxAttempts, job.Status, nullString(job.LastError))
	return errors.Wrap(err, "failed to create upsell job")
}

func (s *UpsellStore) DuePendingJobs(ctx context.Context, asOf time.Time, limit int) ([]domain.ScheduledUpsellJob, error) {
	const q = `
		SELECT id, tenant, conversation_id, phone, appointment_id, primary_service_id, scheduled_for,
			variant_copy, variant_position, attempts, max_attempts, status, last_error
		FROM upsell_jobs WHERE status='pending' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC LIMIT $2
	`
	rows, err := s.db.db.QueryContext(ctx, q, asOf, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query due upsell jobs")
	}
	defer rows.Close()

	var out []domain.ScheduledUpsellJob
	for rows.Next() {
		var j domain.ScheduledUpsellJob
		var lastError sql.NullString
		if err := rows.Scan(&j.ID, &j.Tenant, &j.ConversationID, &j.Phone, &j.AppointmentID,
			&j.PrimaryServiceID, &j.ScheduledFor, &j.Variant.Copy, &j.Variant.Position,
			&j.Attempts, &j.MaxAttempts, &j.Status, &lastError); err != nil {
			return nil, errors.Wrap(err, "failed to scan upsell job row")
		}
		j.LastError = lastError.String
		out = append(out, j)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate upsell job rows")
}

func (s *UpsellStore) UpdateJob(ctx context.Context, job domain.ScheduledUpsellJob) error {
	const q = `
		UPDATE upsell_jobs SET scheduled_for=$2, attempts=$3, status=$4, last_error=$5
		WHERE id=$1
	`
	_, err := s.db.db.ExecContext(ctx, q, job.ID, job.ScheduledFor, job.Attempts, job.Status, nullString(job.LastError))
	return errors.Wrap(err, "failed to update upsell job")
}

func (s *UpsellStore) Metrics(ctx context.Context) (store.UpsellMetrics, error) {
	const q = `
		SELECT
			COUNT(*) FILTER (WHERE event='shown'),
			COUNT(*) FILTER (WHERE event='accepted'),
			COUNT(*) FILTER (WHERE event='declined'),
			COUNT(*) FILTER (WHERE event='scheduled'),
			COUNT(*) FILTER (WHERE event='error')
		FROM upsell_events
	`
	var m store.UpsellMetrics
	err := s.db.db.QueryRowContext(ctx, q).Scan(&m.ShownTotal, &m.AcceptedTotal, &m.DeclinedTotal,
		&m.ScheduledTotal, &m.ErrorTotal)
	return m, errors.Wrap(err, "failed to read upsell metrics")
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
