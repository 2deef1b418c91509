package scheduler

import (
	"context"
	"time"

	"github.com/findora/tool-radar/internal/config"
	"github.com/findora/tool-radar/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	pendingJobsSpec  = "0 */15 * * * *"
	refreshSpec      = "0 0 3 * * SUN"
	sessionSweepSpec = "0 */10 * * * *"
	pendingJobsBatch = 20
	jobTimeout       = 2 * time.Hour
)

// Monitor runs a mention monitoring pass
type Monitor interface {
	RunMonitoring(ctx context.Context) (*models.Report, error)
}

// Enricher processes queued analysis jobs and re-verifies the catalog
type Enricher interface {
	ProcessPending(ctx context.Context, limit int) (int, error)
	RefreshAll(ctx context.Context) (int, error)
}

// Sweeper drops idle sessions and reports how many were removed
type Sweeper interface {
	Sweep() int
}

// Service handles scheduling of background tasks
type Service struct {
	config   *config.Config
	monitor  Monitor
	enricher Enricher
	sweepers []Sweeper
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, monitor Monitor, enricher Enricher, sweepers ...Sweeper) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		config:   cfg,
		monitor:  monitor,
		enricher: enricher,
		sweepers: sweepers,
		cron:     cron.New(cron.WithSeconds()),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// monitoringSpec is the cron expression for the configured report schedule
func monitoringSpec(schedule string) string {
	if schedule == "weekly" {
		// Monday at 9 AM UTC
		return "0 0 9 * * MON"
	}
	// Daily at 9 AM UTC
	return "0 0 9 * * *"
}

// Start registers the scheduled tasks and starts the cron runner
func (s *Service) Start() error {
	if s.monitor != nil {
		if _, err := s.cron.AddFunc(monitoringSpec(s.config.ReportSchedule), s.runMonitoring); err != nil {
			return err
		}
	}

	if s.enricher != nil {
		if _, err := s.cron.AddFunc(pendingJobsSpec, s.processPending); err != nil {
			return err
		}
		if s.config.EnableRefresh {
			if _, err := s.cron.AddFunc(refreshSpec, s.refreshAll); err != nil {
				return err
			}
		}
	}

	if len(s.sweepers) > 0 {
		if _, err := s.cron.AddFunc(sessionSweepSpec, s.sweepSessions); err != nil {
			return err
		}
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s monitoring schedule and %d tasks", s.config.ReportSchedule, len(s.cron.Entries()))
	return nil
}

// Stop stops the scheduler and cancels running tasks
func (s *Service) Stop() {
	s.cancel()
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}

// Entries returns the number of registered tasks
func (s *Service) Entries() int {
	return len(s.cron.Entries())
}

func (s *Service) runMonitoring() {
	logrus.Info("Starting scheduled monitoring run")
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	if _, err := s.monitor.RunMonitoring(ctx); err != nil {
		logrus.Errorf("Scheduled monitoring run failed: %v", err)
	}
}

func (s *Service) processPending() {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	if _, err := s.enricher.ProcessPending(ctx, pendingJobsBatch); err != nil {
		logrus.Errorf("Processing analysis jobs failed: %v", err)
	}
}

func (s *Service) refreshAll() {
	logrus.Info("Starting scheduled pricing and trust re-verification")
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	n, err := s.enricher.RefreshAll(ctx)
	if err != nil {
		logrus.Errorf("Scheduled re-verification failed after %d tools: %v", n, err)
	}
}

func (s *Service) sweepSessions() {
	removed := 0
	for _, sw := range s.sweepers {
		removed += sw.Sweep()
	}
	if removed > 0 {
		logrus.Debugf("Swept %d idle sessions", removed)
	}
}
