package escalation

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically runs the reminder and timeout passes against the
// pending request backlog.
type Sweeper struct {
	orch     *Orchestrator
	interval time.Duration
	lead     time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. If interval is <= 0 it defaults to 30s;
// if lead is <= 0 it defaults to 5 minutes.
func NewSweeper(orch *Orchestrator, interval, lead time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if lead <= 0 {
		lead = 5 * time.Minute
	}
	return &Sweeper{
		orch:     orch,
		interval: interval,
		lead:     lead,
		logger:   slog.Default(),
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx, time.Now().UTC()); err != nil {
				s.logger.Error("sweep iteration failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single reminder pass followed by a timeout pass,
// evaluated against now.
func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) error {
	if _, err := s.orch.SendReminders(now, s.lead); err != nil {
		return err
	}
	_, err := s.orch.SweepTimeouts(ctx, now)
	return err
}
