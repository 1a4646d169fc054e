package upload

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper runs the periodic expiry sweep (§4.6 "Expiry sweep") on a cron
// schedule: first it clears sessions whose sessionExp index entry has
// passed, then it sweeps the blob store's temp tree for directories
// orphaned by a crash mid-upload.
type Sweeper struct {
	engine *Engine
	cron   *cron.Cron
}

// NewSweeper builds an unscheduled Sweeper over engine. intervalSeconds is
// not used here; the schedule's interval is the one passed to Start.
func NewSweeper(engine *Engine, intervalSeconds int) *Sweeper {
	c := cron.New()
	return &Sweeper{engine: engine, cron: c}
}

// Start schedules the sweep and begins running it in the background.
func (s *Sweeper) Start(intervalSeconds int) error {
	spec := fmt.Sprintf("@every %ds", intervalSeconds)
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.engine.Sweep(); err != nil {
			s.engine.log.Error("expiry sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the background schedule and waits for any in-flight run to
// finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep runs one pass of the expiry sweep immediately; it is also what the
// cron schedule invokes and what the admin cleanup endpoint triggers
// on-demand.
func (e *Engine) Sweep() error {
	expired, err := e.meta.CleanupExpiredSessions()
	if err != nil {
		return err
	}
	for _, id := range expired {
		if err := e.blobs.DeleteSessionDir(id); err != nil {
			e.log.Warn("failed to remove expired session directory", zap.String("session_id", id), zap.Error(err))
		}
	}

	orphaned, err := e.blobs.CleanupExpired(e.cfg.Upload.UploadSessionTimeout())
	if err != nil {
		return err
	}
	if len(orphaned) > 0 {
		e.log.Info("removed orphaned upload temp directories", zap.Int("count", len(orphaned)))
	}
	return nil
}
