package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"

	"arrears/internal/dto"
)

type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (*dto.SweepResult, error)
}

// Sweeper drives overdue detection on a fixed interval. This loop and the
// on-demand sweep endpoint are the only writers of OVERDUE; reads never
// recompute it.
type Sweeper struct {
	useCase  OverdueSweeper
	logger   *zap.Logger
	interval time.Duration
}

func New(useCase OverdueSweeper, logger *zap.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		useCase:  useCase,
		logger:   logger,
		interval: interval,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("overdue sweeper started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			s.logger.Info("overdue sweeper stopped")
			return
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	result, err := s.useCase.SweepOverdue(ctx)
	if err != nil {
		s.logger.Error("overdue sweep failed", zap.Error(err))
		return
	}

	if len(result.MarkedIDs) > 0 {
		s.logger.Info("overdue sweep marked orders", zap.Int("count", len(result.MarkedIDs)), zap.Time("asOf", result.AsOf))
	}
}
