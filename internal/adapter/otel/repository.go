package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/castmatch/campflow/internal/domain"
)

const tracerName = "github.com/castmatch/campflow/internal/adapter/otel"

// TracingRepository wraps a domain.CampaignRepository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingRepository struct {
	next   domain.CampaignRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.CampaignRepository.
var _ domain.CampaignRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.CampaignRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) Create(ctx context.Context, campaign domain.Campaign) error {
	ctx, span := r.tracer.Start(ctx, "CampaignRepository.Create",
		trace.WithAttributes(
			attribute.String("campaign.id", campaign.ID),
			attribute.String("campaign.platform", string(campaign.Platform)),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, campaign)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TracingRepository) GetByID(ctx context.Context, id string) (domain.Campaign, error) {
	ctx, span := r.tracer.Start(ctx, "CampaignRepository.GetByID",
		trace.WithAttributes(attribute.String("campaign.id", id)),
	)
	defer span.End()

	campaign, err := r.next.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return campaign, err
}

func (r *TracingRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Campaign, error) {
	ctx, span := r.tracer.Start(ctx, "CampaignRepository.List",
		trace.WithAttributes(
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	if filter.Phase != nil {
		span.SetAttributes(attribute.String("filter.phase", string(*filter.Phase)))
	}
	if filter.ParticipantID != "" {
		span.SetAttributes(attribute.String("filter.participant_id", filter.ParticipantID))
	}

	campaigns, err := r.next.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(campaigns)))
	}
	return campaigns, err
}

func (r *TracingRepository) Commit(ctx context.Context, campaign domain.Campaign, expectedVersion int64) (domain.Campaign, error) {
	ctx, span := r.tracer.Start(ctx, "CampaignRepository.Commit",
		trace.WithAttributes(
			attribute.String("campaign.id", campaign.ID),
			attribute.String("campaign.phase", string(campaign.Phase)),
			attribute.Int64("campaign.expected_version", expectedVersion),
		),
	)
	defer span.End()

	committed, err := r.next.Commit(ctx, campaign, expectedVersion)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return committed, err
}
