package cache

import (
	"context"
	"time"
)

// restartSweep stops the running sweep, if any, and starts a new one when
// period > 0 and the store is still open.
func (s *Store) restartSweep(period time.Duration) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	if s.sweepCancel != nil {
		s.sweepCancel()
		<-s.sweepDone
		s.sweepCancel = nil
		s.sweepDone = nil
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if period <= 0 || closed {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.sweepCancel = cancel
	s.sweepDone = done

	go s.sweepLoop(ctx, period, done)
}

// sweepLoop runs Cleanup on every tick until ctx is cancelled.
func (s *Store) sweepLoop(ctx context.Context, period time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	s.logger.Debug().Dur("period", period).Msg("Cache sweep started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("Cache sweep stopped")
			return
		case <-ticker.C:
			if removed := s.Cleanup(); removed > 0 {
				s.logger.Debug().Int("evicted", removed).Msg("Cache sweep evicted entries")
			}
		}
	}
}
