package subscriber

import (
	"context"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	"GoldPulse/pkg/logger"
)

// Events mirrors signal lifecycle transitions onto the event stream for
// downstream consumers. Publish failures are logged and swallowed; the
// stream is best effort and must not hold up the pipeline.
type Events struct {
	publisher repository.Publisher
	log       *logger.Logger
}

func NewEvents(publisher repository.Publisher, log *logger.Logger) *Events {
	return &Events{publisher: publisher, log: log}
}

func (e *Events) Name() string { return "events" }

func (e *Events) OnSignalPublished(ctx context.Context, s *models.Signal) error {
	if err := e.publisher.Publish(ctx, s); err != nil {
		e.log.Warn("event publish failed", logger.String("signal_id", s.ID), logger.Error(err))
	}
	return nil
}

func (e *Events) OnSignalClosed(ctx context.Context, s *models.Signal) error {
	if err := e.publisher.Publish(ctx, s); err != nil {
		e.log.Warn("close event publish failed", logger.String("signal_id", s.ID), logger.Error(err))
	}
	return nil
}
