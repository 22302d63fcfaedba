package token

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// RunSweeper periodically removes expired token references and blacklist
// entries until ctx is cancelled. Failures are logged and the next tick
// retries; nothing is surfaced to callers.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if errSweep := s.SweepExpired(ctx); errSweep != nil {
				log.WithError(errSweep).Warn("token sweep failed")
			}
		}
	}
}
