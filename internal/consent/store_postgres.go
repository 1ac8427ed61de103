package consent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"obconnect/internal/bankprofile"
	id "obconnect/pkg/domain"
	dErrors "obconnect/pkg/domain-errors"
)

// PostgresStore persists consents in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, consent *Consent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consents (id, profile_id, registration_id, external_id, state, created_at, updated_at, last_modified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at,
			last_modified_by = EXCLUDED.last_modified_by`,
		consent.ID.String(), string(consent.ProfileID), consent.RegistrationID.String(),
		consent.ExternalID, string(consent.State),
		consent.CreatedAt, consent.UpdatedAt, consent.LastModifiedBy)
	if err != nil {
		return fmt.Errorf("save consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, consentID id.ConsentID) (*Consent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, profile_id, registration_id, external_id, state, created_at, updated_at, last_modified_by
		FROM consents WHERE id = $1`, consentID.String())

	var consent Consent
	var rawID, rawRegID, profileID, state string
	err := row.Scan(&rawID, &profileID, &rawRegID, &consent.ExternalID, &state,
		&consent.CreatedAt, &consent.UpdatedAt, &consent.LastModifiedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "consent "+consentID.String()+" not found")
		}
		return nil, fmt.Errorf("find consent: %w", err)
	}

	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse consent id: %w", err)
	}
	parsedReg, err := uuid.Parse(rawRegID)
	if err != nil {
		return nil, fmt.Errorf("parse registration id: %w", err)
	}
	consent.ID = id.ConsentID(parsed)
	consent.RegistrationID = id.RegistrationID(parsedReg)
	consent.ProfileID = bankprofile.ProfileID(profileID)
	consent.State = State(state)
	return &consent, nil
}

func (s *PostgresStore) Delete(ctx context.Context, consentID id.ConsentID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM consents WHERE id = $1`, consentID.String())
	if err != nil {
		return fmt.Errorf("delete consent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete consent: %w", err)
	}
	if affected == 0 {
		return dErrors.New(dErrors.CodeNotFound, "consent "+consentID.String()+" not found")
	}
	return nil
}

// Schema is the DDL for the consents table. Applied by deployment tooling;
// exposed here so integration tests can create the table.
const Schema = `
CREATE TABLE IF NOT EXISTS consents (
	id               UUID PRIMARY KEY,
	profile_id       TEXT NOT NULL,
	registration_id  UUID NOT NULL,
	external_id      TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	last_modified_by TEXT NOT NULL DEFAULT ''
)`
