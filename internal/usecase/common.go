package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/phenrril/ordercore/internal/domain"
)

var tracer = otel.Tracer("github.com/phenrril/ordercore/internal/usecase")

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on the span and ends it. Use with a named error return.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Clock returns the current time; nil means time.Now in UTC.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}

// publish sends a lifecycle event once the transaction that produced it has
// committed. Delivery failures are logged, never returned.
func publish(ctx context.Context, pub domain.EventPublisher, evs ...domain.Event) {
	if pub == nil {
		return
	}
	for _, ev := range evs {
		if err := pub.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("event", string(ev.Type)).Str("order_id", ev.OrderID.String()).Msg("event publish failed")
		}
	}
}

const maxConflictRetries = 3

// retryOnConflict reruns fn while it fails with domain.ErrConflict, which the
// stores return for unique-index races and serialization failures.
func retryOnConflict(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = fn(); !errors.Is(err, domain.ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("retrying after conflict")
	}
	return err
}

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }
