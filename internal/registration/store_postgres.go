package registration

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

// PostgresStore persists registrations in PostgreSQL. One row per
// registration group, upserted when the bank rotates credentials.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByGroup(ctx context.Context, group bankprofile.RegistrationGroup) (*Registration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, profile_id, reg_group, scope, client_id, client_secret, external_id, created_at, updated_at
		FROM registrations WHERE reg_group = $1`, string(group))

	var reg Registration
	var rawID, profileID, regGroup, scope string
	err := row.Scan(&rawID, &profileID, &regGroup, &scope,
		&reg.ClientID, &reg.ClientSecret, &reg.ExternalID, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no registration for group "+string(group))
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}

	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse registration id: %w", err)
	}
	reg.ID = id.RegistrationID(parsed)
	reg.ProfileID = bankprofile.ProfileID(profileID)
	reg.Group = bankprofile.RegistrationGroup(regGroup)
	reg.Scope = bankprofile.RegistrationScope(scope)
	return &reg, nil
}

func (s *PostgresStore) Save(ctx context.Context, reg *Registration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registrations (id, profile_id, reg_group, scope, client_id, client_secret, external_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (reg_group) DO UPDATE SET
			client_id = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			external_id = EXCLUDED.external_id,
			updated_at = EXCLUDED.updated_at`,
		reg.ID.String(), string(reg.ProfileID), string(reg.Group), string(reg.Scope),
		reg.ClientID, reg.ClientSecret, reg.ExternalID, reg.CreatedAt, reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save registration: %w", err)
	}
	return nil
}

// Schema is the DDL for the registrations table. Applied by deployment
// tooling; exposed here so integration tests can create the table.
const Schema = `
CREATE TABLE IF NOT EXISTS registrations (
	id            UUID PRIMARY KEY,
	profile_id    TEXT NOT NULL,
	reg_group     TEXT NOT NULL UNIQUE,
	scope         TEXT NOT NULL,
	client_id     TEXT NOT NULL,
	client_secret TEXT NOT NULL,
	external_id   TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
)`
