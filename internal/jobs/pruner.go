package jobs

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/interfaces"
)

// Pruner evicts finished jobs older than the retention period on a cron schedule
type Pruner struct {
	registry  interfaces.JobRegistry
	retention time.Duration
	cron      *cron.Cron
	logger    arbor.ILogger
	now       func() time.Time
}

func NewPruner(registry interfaces.JobRegistry, retention time.Duration, logger arbor.ILogger) *Pruner {
	return &Pruner{
		registry:  registry,
		retention: retention,
		cron:      cron.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// Start schedules the sweep. With zero retention jobs are kept forever and
// nothing is scheduled.
func (p *Pruner) Start(schedule string) error {
	if p.retention <= 0 {
		p.logger.Debug().Msg("Job retention disabled, finished jobs are kept in memory")
		return nil
	}

	if schedule == "" {
		schedule = "@every 1m"
	}

	if _, err := p.cron.AddFunc(schedule, func() { p.PruneNow() }); err != nil {
		return err
	}

	p.cron.Start()
	p.logger.Info().
		Str("schedule", schedule).
		Dur("retention", p.retention).
		Msg("Job pruner started")

	return nil
}

func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

// PruneNow removes finished jobs older than the retention period and returns the count
func (p *Pruner) PruneNow() int {
	if p.retention <= 0 {
		return 0
	}

	removed := p.registry.PruneFinishedBefore(p.now().Add(-p.retention))
	if removed > 0 {
		p.logger.Info().Int("removed", removed).Msg("Pruned finished jobs")
	}
	return removed
}
