package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "obconnect/pkg/domain"
)

// PostgresStore persists audit events in PostgreSQL. Append-only; events are
// never updated or deleted.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (occurred_at, consent_id, profile_id, action, outcome, detail)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.Timestamp, event.ConsentID.String(), event.ProfileID,
		event.Action, event.Outcome, event.Detail)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByConsent(ctx context.Context, consentID id.ConsentID) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, consent_id, profile_id, action, outcome, detail
		FROM audit_events WHERE consent_id = $1
		ORDER BY occurred_at, id`, consentID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var event Event
		var rawID string
		if err := rows.Scan(&event.Timestamp, &rawID, &event.ProfileID,
			&event.Action, &event.Outcome, &event.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		parsed, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse consent id: %w", err)
		}
		event.ConsentID = id.ConsentID(parsed)
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return out, nil
}

// Schema is the DDL for the audit_events table. Applied by deployment
// tooling; exposed here so integration tests can create the table.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          BIGSERIAL PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL,
	consent_id  UUID NOT NULL,
	profile_id  TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT ''
)`
