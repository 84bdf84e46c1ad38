package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/lastmile/coordinator/internal/events"
)

// JustNow is the only value the churn tick ever writes.
const JustNow = "Just now"

// ChurnOnce marks each driver as freshly updated with the configured
// probability and returns the ids it touched.
func (s *Service) ChurnOnce(ctx context.Context) []string {
	s.mu.Lock()
	var touched []string
	for i := range s.drivers {
		if s.rng.Float64() < s.cfg.ChurnProbability {
			s.drivers[i].LastUpdate = JustNow
			touched = append(touched, s.drivers[i].ID)
		}
	}
	s.mu.Unlock()

	for _, id := range touched {
		s.publish(ctx, events.DriverUpdated, map[string]any{"driver_id": id, "last_update": JustNow})
	}
	return touched
}

// Run drives the churn tick until ctx ends, then stops background workflows.
func (s *Service) Run(ctx context.Context) error {
	defer s.Close()

	if s.cfg.ChurnInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := s.clock.NewTicker(s.cfg.ChurnInterval)
	defer ticker.Stop()

	s.logger.Info("churn tick started", zap.Duration("interval", s.cfg.ChurnInterval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if touched := s.ChurnOnce(ctx); len(touched) > 0 {
				s.logger.Debug("drivers refreshed", zap.Strings("driver_ids", touched))
			}
		}
	}
}
