package storelite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jonatasporto/trinks-router/domain"
)

// AppointmentAuditStore is a SQLite-backed store.AppointmentAuditStore.
type AppointmentAuditStore struct{ db *DB }

func (d *DB) AppointmentsAudit() *AppointmentAuditStore { return &AppointmentAuditStore{db: d} }

func (s *AppointmentAuditStore) FindByIdempotencyKey(ctx context.Context, key string) (*domain.AppointmentAttempt, error) {
	const q = `
		SELECT tenant, phone, service_id, professional_id, start_iso, request_payload,
			response_payload, provider_appointment, status, created_at
		FROM appointments_audit WHERE idempotency_key=?
	`
	var a domain.AppointmentAttempt
	var request, response, providerAppt sql.NullString
	err := s.db.db.QueryRowContext(ctx, q, key).Scan(
		&a.Tenant, &a.Phone, &a.ServiceID, &a.ProfessionalID, &a.StartISO,
		&request, &response, &providerAppt, &a.Status, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read appointment audit row")
	}
	a.IdempotencyKey = key
	a.RequestPayload = request.String
	a.ResponsePayload = response.String
	a.ProviderAppointment = providerAppt.String
	return &a, nil
}

func (s *AppointmentAuditStore) Insert(ctx context.Context, attempt domain.AppointmentAttempt) error {
	const q = `
		INSERT INTO appointments_audit (idempotency_key, tenant, phone, service_id, professional_id,
			start_iso, request_payload, response_payload, provider_appointment, status, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	_, err := s.db.db.ExecContext(ctx, q, attempt.IdempotencyKey, attempt.Tenant, attempt.Phone,
		attempt.ServiceID, attempt.ProfessionalID, attempt.StartISO, attempt.RequestPayload,
		attempt.ResponsePayload, attempt.ProviderAppointment, attempt.Status, attempt.CreatedAt)
	// A conflict here is the InvariantViolation case, treated as success per
	// the specification's error-handling design — the duplicate is the
	// intended no-op, so ON CONFLICT DO NOTHING already satisfies it.
	return errors.Wrap(err, "failed to insert appointment audit row")
}

func (s *AppointmentAuditStore) Update(ctx context.Context, attempt domain.AppointmentAttempt) error {
	const q = `
		UPDATE appointments_audit SET response_payload=?, provider_appointment=?, status=?
		WHERE idempotency_key=?
	`
	_, err := s.db.db.ExecContext(ctx, q, attempt.ResponsePayload,
		attempt.ProviderAppointment, attempt.Status, attempt.IdempotencyKey)
	return errors.Wrap(err, "failed to update appointment audit row")
}
