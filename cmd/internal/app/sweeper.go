package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/auth/session"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/metrics"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/correlation"
)

// sweeper periodically closes expired correlation sessions and deletes token
// pairs that expired more than grace ago.
type sweeper struct {
	log      *slog.Logger
	sessions *correlation.Manager
	ledger   *session.Ledger
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
}

func (s *sweeper) run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *sweeper) sweepOnce(ctx context.Context) {
	now := s.now().UTC()

	swept, err := s.sessions.SweepExpired(ctx, now)
	if err != nil {
		s.log.Warn("sweep.correlation.fail", "err", err)
	} else if swept > 0 {
		metrics.SweptCorrelationSessions.Add(float64(swept))
		s.log.Info("sweep.correlation", "completed", swept)
	}

	purged, err := s.ledger.Purge(ctx, now, s.grace)
	if err != nil {
		s.log.Warn("sweep.pairs.fail", "err", err)
	} else if purged > 0 {
		metrics.PurgedTokenPairs.Add(float64(purged))
		s.log.Info("sweep.pairs", "deleted", purged)
	}
}
