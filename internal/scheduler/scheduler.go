// Package scheduler runs the bot's periodic jobs: dues mail polling on a ticker
// and the evening unfed-station ping on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPingSpec fires the unfed-station ping at 8pm local time.
const DefaultPingSpec = "0 20 * * *"

// Poller checks an external source once.
type Poller interface {
	Poll(ctx context.Context)
}

// Pinger posts the unfed-station reminder.
type Pinger interface {
	PingUnfed(ctx context.Context) error
}

// Scheduler runs periodic jobs until its context is cancelled.
type Scheduler struct {
	dues   Poller
	pinger Pinger
	loc    *time.Location
	log    *slog.Logger
	tick   time.Duration
	spec   string
}

// New creates a Scheduler. dues may be nil when no mail drop is configured.
func New(dues Poller, pinger Pinger, loc *time.Location, log *slog.Logger) *Scheduler {
	return &Scheduler{
		dues:   dues,
		pinger: pinger,
		loc:    loc,
		log:    log,
		tick:   3 * time.Minute,
		spec:   DefaultPingSpec,
	}
}

// SetTickInterval overrides the default 3-minute dues poll interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetPingSpec overrides the cron expression of the unfed-station ping.
func (s *Scheduler) SetPingSpec(spec string) {
	s.spec = spec
}

// Run starts the jobs, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New()
	spec := fmt.Sprintf("CRON_TZ=%s %s", s.loc.String(), s.spec)
	if _, err := c.AddFunc(spec, func() { s.ping(ctx) }); err != nil {
		return fmt.Errorf("schedule ping %q: %w", spec, err)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()
	s.log.Info("scheduler started", "ping", spec, "dues_tick", s.tick, "dues", s.dues != nil)

	if s.dues == nil {
		<-ctx.Done()
		return nil
	}

	s.dues.Poll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.dues.Poll(ctx)
		}
	}
}

func (s *Scheduler) ping(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.pinger.PingUnfed(ctx); err != nil {
		s.log.Error("unfed ping", "error", err)
	}
}
