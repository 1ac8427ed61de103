//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"obconnect/internal/audit"
	id "obconnect/pkg/domain"
	"obconnect/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *audit.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	_, err := s.postgres.DB.Exec(audit.Schema)
	s.Require().NoError(err)
	s.store = audit.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *PostgresStoreSuite) TestAppendAndList() {
	ctx := context.Background()
	consentID := id.NewConsentID()
	base := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: base,
		ConsentID: consentID,
		ProfileID: "barclays-sandbox",
		Action:    audit.ActionConsentCreated,
		Outcome:   audit.OutcomeSuccess,
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: base.Add(time.Second),
		ConsentID: consentID,
		ProfileID: "barclays-sandbox",
		Action:    audit.ActionConsentAuthorized,
		Outcome:   audit.OutcomeSuccess,
		Detail:    "authorization callback",
	}))

	events, err := s.store.ListByConsent(ctx, consentID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.ActionConsentCreated, events[0].Action)
	s.Equal(audit.ActionConsentAuthorized, events[1].Action)
	s.Equal("authorization callback", events[1].Detail)
	s.Equal(consentID, events[1].ConsentID)
}

func (s *PostgresStoreSuite) TestListScopedToConsent() {
	ctx := context.Background()
	mine := id.NewConsentID()
	other := id.NewConsentID()
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: now, ConsentID: mine,
		Action: audit.ActionConsentCreated, Outcome: audit.OutcomeSuccess,
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: now, ConsentID: other,
		Action: audit.ActionConsentCreated, Outcome: audit.OutcomeSuccess,
	}))

	events, err := s.store.ListByConsent(ctx, mine)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(mine, events[0].ConsentID)
}

// Registration events carry no consent and land under the zero UUID.
func (s *PostgresStoreSuite) TestRegistrationEventsListUnderZeroID() {
	ctx := context.Background()

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		ProfileID: "monzo-sandbox",
		Action:    audit.ActionClientRegistration,
		Outcome:   audit.OutcomeFailure,
		Detail:    "software statement invalid",
	}))

	events, err := s.store.ListByConsent(ctx, id.ConsentID{})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionClientRegistration, events[0].Action)
	s.True(events[0].ConsentID.IsNil())
}
