// Package sweeper runs the periodic housekeeping of the booking engine:
// closing sessions whose end has passed and expiring memberships.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lojf/gymclass/internal/services"
)

// Jobs is the part of the service the sweeper drives.
type Jobs interface {
	CloseElapsedSessions(ctx context.Context) (services.CloseResult, error)
	ExpireMemberships(ctx context.Context) (int64, error)
}

type Sweeper struct {
	jobs    Jobs
	cron    *cron.Cron
	timeout time.Duration
}

// New schedules one sweep per tick of spec (standard 5-field cron syntax,
// evaluated in loc). A sweep that is still running when the next tick fires
// is skipped rather than stacked.
func New(jobs Jobs, spec string, loc *time.Location) (*Sweeper, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Sweeper{
		jobs:    jobs,
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		timeout: 4 * time.Minute,
	}
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("sweeper schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	log.Printf("[sweeper] started")
	s.cron.Start()
}

// Stop prevents new sweeps and waits for a running one, up to ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Printf("[sweeper] stop: %v", ctx.Err())
	}
}

// RunOnce performs one sweep. A failing step is logged and does not keep
// the other from running.
func (s *Sweeper) RunOnce(ctx context.Context) {
	res, err := s.jobs.CloseElapsedSessions(ctx)
	if err != nil {
		log.Printf("[sweeper] close sessions: %v", err)
	} else if res.Sessions > 0 {
		log.Printf("[sweeper] closed %d sessions (completed=%d no_show=%d unpaid=%d)",
			res.Sessions, res.Completed, res.NoShow, res.Unpaid)
	}

	n, err := s.jobs.ExpireMemberships(ctx)
	if err != nil {
		log.Printf("[sweeper] expire memberships: %v", err)
	} else if n > 0 {
		log.Printf("[sweeper] expired %d memberships", n)
	}
}
