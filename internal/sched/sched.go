// Package sched drives the bot's periodic jobs with a timezone-aware cron.
package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"flightbot/pkg/logx"
)

type Config struct {
	Timezone string // IANA TZ; jobs fire relative to this zone
}

type jobDef struct {
	name    string
	spec    string
	timeout time.Duration
	run     func(ctx context.Context) error

	// running guards against overlapping executions: a tick that fires while
	// the previous one is still in flight is skipped, keeping passes serialized.
	running sync.Mutex
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	c      *cron.Cron
	defs   []*jobDef
	runCtx context.Context
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	loc := s.loadLocationLocked()
	s.loc = loc
	s.runCtx = ctx
	s.c = cron.New(cron.WithLocation(loc))

	// Re-register jobs added before Start.
	for _, d := range s.defs {
		_ = s.addLocked(d)
	}

	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", loc.String()), logx.Int("jobs", len(s.defs)))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop cancelled", logx.Err(ctx.Err()))
	}
}

// AddInterval registers a recurring job. May be called before or after Start.
func (s *Service) AddInterval(name string, every time.Duration, timeout time.Duration, run func(ctx context.Context) error) error {
	if every <= 0 {
		return errors.New("interval must be > 0")
	}
	d := &jobDef{
		name:    name,
		spec:    fmt.Sprintf("@every %s", every.String()),
		timeout: timeout,
		run:     run,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs = append(s.defs, d)
	if s.c == nil {
		return nil
	}
	return s.addLocked(d)
}

func (s *Service) addLocked(d *jobDef) error {
	_, err := s.c.AddFunc(d.spec, func() {
		s.execOne(d)
	})
	return err
}

func (s *Service) execOne(d *jobDef) {
	if !d.running.TryLock() {
		s.log.Warn("previous run still in flight; tick skipped", logx.String("job", d.name))
		return
	}
	defer d.running.Unlock()

	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	var cancel context.CancelFunc
	if d.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := d.run(ctx); err != nil {
		s.log.Warn("job failed", logx.String("job", d.name), logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Debug("job ok", logx.String("job", d.name), logx.Duration("took", time.Since(start)))
}

// Location exposes the zone jobs fire in (the airport timezone).
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc != nil {
		return s.loc
	}
	return s.loadLocationLocked()
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := s.cfg.Timezone
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to UTC", logx.String("tz", tz), logx.Err(err))
		return time.UTC
	}
	return loc
}
