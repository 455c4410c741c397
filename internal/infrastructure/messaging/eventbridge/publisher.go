// Package eventbridge publishes usage events to AWS EventBridge for
// downstream consumers (analytics, embedding refresh workers).
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"promptvault-backend/internal/domain"
)

const (
	source          = "promptvault.engine"
	usageDetailType = "fragment.usage.tracked"
)

// Publisher implements repository.UsageEventPublisher on EventBridge.
type Publisher struct {
	client       *eventbridge.Client
	eventBusName string
	logger       *zap.Logger
}

// NewPublisher creates an EventBridge publisher.
func NewPublisher(client *eventbridge.Client, eventBusName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
}

// PublishUsage sends one usage event to the bus.
func (p *Publisher) PublishUsage(ctx context.Context, event domain.UsageEvent) error {
	return p.PublishUsageBatch(ctx, []domain.UsageEvent{event})
}

// PublishUsageBatch sends usage events to the bus in chunks of 10, the
// PutEvents entry limit.
func (p *Publisher) PublishUsageBatch(ctx context.Context, events []domain.UsageEvent) error {
	const batchSize = 10

	for i := 0; i < len(events); i += batchSize {
		end := i + batchSize
		if end > len(events) {
			end = len(events)
		}
		if err := p.publishBatch(ctx, events[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishBatch(ctx context.Context, events []domain.UsageEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(events))
	for _, event := range events {
		detail, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("failed to marshal usage event",
				zap.String("fragment_id", event.FragmentID),
				zap.Error(err),
			)
			continue
		}

		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(source),
			DetailType:   aws.String(usageDetailType),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.Timestamp),
		})
	}
	if len(entries) == 0 {
		return nil
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to publish usage events: %w", err)
	}
	if out.FailedEntryCount > 0 {
		for _, entry := range out.Entries {
			if entry.ErrorCode != nil {
				p.logger.Warn("usage event rejected by event bus",
					zap.String("error_code", aws.ToString(entry.ErrorCode)),
					zap.String("error_message", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d usage events failed to publish", out.FailedEntryCount)
	}
	return nil
}
