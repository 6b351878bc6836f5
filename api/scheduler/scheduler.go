package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/smart-grievance/grievance-api/databases"
	"github.com/smart-grievance/grievance-api/lifecycle"
)

// Scheduler runs the periodic escalation sweep that promotes overdue
// grievances. A mongo-backed lock keeps the sweep single-flight when
// several instances of the service are running.
type Scheduler struct {
	cron       *cron.Cron
	Engine     *lifecycle.Engine
	LockDB     databases.SchedulerLockDatabase
	instanceID string
	sweepSpec  string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(engine *lifecycle.Engine, lockDB databases.SchedulerLockDatabase, sweepSpec string) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Engine:     engine,
		LockDB:     lockDB,
		instanceID: instanceID,
		sweepSpec:  sweepSpec,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	_, err := s.cron.AddFunc(s.sweepSpec, s.runEscalationSweep)
	if err != nil {
		zap.S().Errorw("failed to register escalation sweep job", "error", err)
	}

	s.cron.Start()
	zap.S().Infow("Escalation scheduler started", "spec", s.sweepSpec)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Escalation scheduler stopped")
}

// runEscalationSweep escalates every eligible grievance whose deadline has passed
func (s *Scheduler) runEscalationSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Try to acquire distributed lock (10 minute TTL)
	acquired, err := s.LockDB.TryAcquireLock(ctx, "escalation_sweep", s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for escalation sweep", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Escalation sweep already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "escalation_sweep", s.instanceID)

	zap.S().Infow("Running escalation sweep", "instance", s.instanceID)

	escalated, err := s.Engine.SweepOverdue(ctx)
	if err != nil {
		zap.S().Errorw("escalation sweep failed", "error", err)
		return
	}

	zap.S().Infow("Escalation sweep complete", "escalated", escalated)
}
