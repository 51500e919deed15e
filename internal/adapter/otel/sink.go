package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/castmatch/campflow/internal/domain"
)

// TracingSink wraps a domain.NotificationSink with OpenTelemetry tracing.
type TracingSink struct {
	next   domain.NotificationSink
	tracer trace.Tracer
}

// Compile-time check: TracingSink implements domain.NotificationSink.
var _ domain.NotificationSink = (*TracingSink)(nil)

// NewTracingSink creates a tracing decorator around the given sink.
func NewTracingSink(next domain.NotificationSink) *TracingSink {
	return &TracingSink{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingSink) Publish(ctx context.Context, n domain.Notification) error {
	ctx, span := s.tracer.Start(ctx, "NotificationSink.Publish",
		trace.WithAttributes(
			attribute.String("notification.kind", string(n.Kind)),
			attribute.String("campaign.id", n.CampaignID),
			attribute.String("notification.to", string(n.To)),
		),
	)
	defer span.End()

	err := s.next.Publish(ctx, n)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
