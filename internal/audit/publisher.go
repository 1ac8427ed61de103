package audit

import (
	"context"
	"log/slog"
	"time"

	id "obconnect/pkg/domain"
)

// Sink forwards events to an external system, e.g. a Kafka topic.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. The store append is the source
// of truth and its failure is returned; sink delivery is best-effort and only
// logged, so a broker outage never blocks a consent operation.
type Publisher struct {
	store  Store
	sink   Sink
	logger *slog.Logger
}

func NewPublisher(store Store, sink Sink, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, sink: sink, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, base); err != nil {
		return err
	}
	if p.sink != nil {
		if err := p.sink.Publish(ctx, base); err != nil {
			p.logger.WarnContext(ctx, "audit sink publish failed",
				"action", base.Action,
				"consent_id", base.ConsentID,
				"error", err,
			)
		}
	}
	return nil
}

func (p *Publisher) List(ctx context.Context, consentID id.ConsentID) ([]Event, error) {
	return p.store.ListByConsent(ctx, consentID)
}
