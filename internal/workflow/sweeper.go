package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"geolink-go/internal/dto"
	"geolink-go/internal/model"
)

// strandedAfter is how long a non-terminal run may go without a checkpoint
// before the sweep picks it back up.
const strandedAfter = 30 * time.Minute

// Sweeper periodically evaluates every distinct destination of every link.
// Evaluation is best-effort background work: a failed run is logged and the
// sweep moves on.
type Sweeper struct {
	db           *gorm.DB
	orchestrator *Orchestrator
	logger       *zap.Logger
}

func NewSweeper(db *gorm.DB, orchestrator *Orchestrator, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		db:           db,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Sweep triggers one run per distinct destination URL of each link, then
// resumes runs stranded by a crash.
func (s *Sweeper) Sweep(ctx context.Context) error {
	s.logger.Info("Evaluation sweep started")

	var links []model.Link
	if err := s.db.WithContext(ctx).Find(&links).Error; err != nil {
		s.logger.Error("Failed to list links for evaluation sweep", zap.Error(err))
		return err
	}

	triggered := 0
	for i := range links {
		link := links[i]
		seen := make(map[string]struct{}, len(link.Destinations))
		for _, destination := range link.Destinations {
			if _, dup := seen[destination]; dup {
				continue
			}
			seen[destination] = struct{}{}

			trigger := dto.EvaluationTrigger{
				LinkID:         link.LinkID,
				DestinationURL: destination,
				AccountID:      link.AccountID,
			}

			run, err := s.orchestrator.Start(ctx, trigger)
			if err != nil {
				s.logger.Warn("Failed to start evaluation run",
					zap.String("link_id", link.LinkID),
					zap.String("destination_url", destination),
					zap.Error(err))
				continue
			}
			triggered++

			if err := s.orchestrator.Execute(ctx, run); err != nil {
				s.logger.Warn("Evaluation run did not complete",
					zap.String("run_id", run.RunID),
					zap.Error(err))
			}
		}
	}

	s.orchestrator.ResumeStranded(ctx, strandedAfter)

	s.logger.Info("Evaluation sweep finished",
		zap.Int("links", len(links)),
		zap.Int("runs_triggered", triggered))
	return nil
}
