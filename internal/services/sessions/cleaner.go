package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/interfaces"
)

// DefaultSchedule runs the cleanup every 30 minutes
const DefaultSchedule = "*/30 * * * *"

// Cleaner removes sessions that have not been updated within the retention window
type Cleaner struct {
	storage   interfaces.SessionStorage
	retention time.Duration
	cron      *cron.Cron
	logger    arbor.ILogger

	mu      sync.Mutex
	running bool
	now     func() time.Time
}

// NewCleaner creates a session cleaner
func NewCleaner(storage interfaces.SessionStorage, retention time.Duration, logger arbor.ILogger) *Cleaner {
	return &Cleaner{
		storage:   storage,
		retention: retention,
		cron:      cron.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// Start schedules the cleanup with the given cron expression
func (c *Cleaner) Start(schedule string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("session cleaner already running")
	}
	if c.retention <= 0 {
		c.logger.Info().Msg("Session retention disabled, cleaner not started")
		return nil
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if _, err := c.cron.AddFunc(schedule, c.runScheduled); err != nil {
		return fmt.Errorf("failed to add cleanup job: %w", err)
	}

	c.cron.Start()
	c.running = true

	c.logger.Info().
		Str("schedule", schedule).
		Str("retention", c.retention.String()).
		Msg("Session cleaner started")
	return nil
}

// Stop halts the schedule and waits for a running cleanup to finish
func (c *Cleaner) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	<-c.cron.Stop().Done()
	c.running = false
	c.logger.Info().Msg("Session cleaner stopped")
}

func (c *Cleaner) runScheduled() {
	if _, err := c.Cleanup(context.Background()); err != nil {
		c.logger.Warn().Err(err).Msg("Session cleanup failed")
	}
}

// Cleanup deletes sessions last updated before now minus the retention
func (c *Cleaner) Cleanup(ctx context.Context) (int, error) {
	cutoff := c.now().Add(-c.retention)
	deleted, err := c.storage.DeleteSessionsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		c.logger.Info().
			Int("deleted", deleted).
			Str("cutoff", cutoff.Format(time.RFC3339)).
			Msg("Expired sessions removed")
	}
	return deleted, nil
}
