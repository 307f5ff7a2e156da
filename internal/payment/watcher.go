package payment

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Watcher periodically sweeps pending payment requests past their expiry.
type Watcher struct {
	Service  *Service
	Interval time.Duration
	Logger   zerolog.Logger
}

// Run blocks until ctx is cancelled, sweeping at the configured interval.
func (w Watcher) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Logger.Info().Dur("interval", interval).Msg("payment watcher started")
	for {
		select {
		case <-ctx.Done():
			w.Logger.Info().Msg("payment watcher stopped")
			return
		case <-ticker.C:
			if _, err := w.Service.ExpireOverdue(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				w.Logger.Error().Err(err).Msg("payment expiry sweep failed")
			}
		}
	}
}
