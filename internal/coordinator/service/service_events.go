package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/lastmile/coordinator/internal/events/bus"
)

// publish sends data on subject. Publishing failures are logged, never
// surfaced: the simulation state is authoritative, the bus is a mirror.
func (s *Service) publish(ctx context.Context, subject string, data any) {
	if s.eventBus == nil {
		return
	}
	event := bus.NewEvent(subject, eventSource, data)
	if err := s.eventBus.Publish(ctx, subject, event); err != nil {
		s.logger.Error("failed to publish coordinator event",
			zap.String("event_type", subject),
			zap.Error(err))
	}
}
