package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bnema/captioner/internal/infrastructure/logger"
	"github.com/bnema/captioner/internal/port"
)

// cronParser accepts 5-field expressions, an optional seconds field and
// descriptors such as @hourly.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type SweeperConfig struct {
	Schedule   string
	IdleWindow time.Duration
	Retention  time.Duration
	WorkDir    string
}

type SweepReport struct {
	Idle   []string
	Purged []string
}

// Sweeper periodically reports idle sessions and removes the work files of
// sessions that finished longer ago than the retention period. It never
// changes session state.
type Sweeper struct {
	store port.SessionStore
	cfg   SweeperConfig
	cron  *cron.Cron
	now   func() time.Time
}

func NewSweeper(store port.SessionStore, cfg SweeperConfig) (*Sweeper, error) {
	s := &Sweeper{
		store: store,
		cfg:   cfg,
		cron:  cron.New(cron.WithParser(cronParser)),
		now:   func() time.Time { return time.Now().UTC() },
	}
	_, err := s.cron.AddFunc(cfg.Schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			logger.Error.Printf("sweep failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	logger.Info.Printf("sweeper scheduled (%s)", s.cfg.Schedule)
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := s.now()

	if s.cfg.IdleWindow > 0 {
		idle, err := s.store.ListIdleSessions(ctx, now.Add(-s.cfg.IdleWindow))
		if err != nil {
			return report, fmt.Errorf("list idle sessions: %w", err)
		}
		for _, sess := range idle {
			logger.Warn.Printf("session %s idle in %s since %s", sess.ID, sess.State, sess.UpdatedAt.Format(time.RFC3339))
			report.Idle = append(report.Idle, sess.ID)
		}
	}

	if s.cfg.Retention > 0 && s.cfg.WorkDir != "" {
		finished, err := s.store.ListFinishedSessions(ctx, now.Add(-s.cfg.Retention))
		if err != nil {
			return report, fmt.Errorf("list finished sessions: %w", err)
		}
		for _, sess := range finished {
			dir := filepath.Join(s.cfg.WorkDir, sess.ID)
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				continue
			}
			if err := os.RemoveAll(dir); err != nil {
				logger.Error.Printf("session %s: failed to purge work files: %v", sess.ID, err)
				continue
			}
			report.Purged = append(report.Purged, sess.ID)
		}
	}

	if len(report.Idle) > 0 || len(report.Purged) > 0 {
		logger.Info.Printf("sweep: %d idle, %d purged", len(report.Idle), len(report.Purged))
	}
	return report, nil
}
