package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"GoldPulse/internal/domain/repository"
	"GoldPulse/internal/pipeline"
	"GoldPulse/internal/risk"
	"GoldPulse/pkg/logger"
)

// Scheduler owns the recurring maintenance jobs: the daily risk reset at
// the configured UTC hour and the optional status heartbeat.
type Scheduler struct {
	cron      *gocron.Scheduler
	gate      *risk.Gate
	notifier  repository.Notifier
	log       *logger.Logger
	resetHour int
	heartbeat time.Duration
	stats     func() pipeline.Stats
}

// SchedulerOption configures the scheduler.
type SchedulerOption func(*Scheduler)

// WithHeartbeat enables a periodic status message through the notifier.
func WithHeartbeat(every time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.heartbeat = every }
}

// WithStats adds pipeline counters and uptime to the heartbeat message.
func WithStats(fn func() pipeline.Stats) SchedulerOption {
	return func(s *Scheduler) { s.stats = fn }
}

// NewScheduler creates the job scheduler. resetHour is the UTC hour at
// which the daily loss counter resets.
func NewScheduler(gate *risk.Gate, notifier repository.Notifier, resetHour int, log *logger.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		cron:      gocron.NewScheduler(time.UTC),
		gate:      gate,
		notifier:  notifier,
		log:       log,
		resetHour: resetHour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the jobs and runs the scheduler asynchronously.
func (s *Scheduler) Start() error {
	at := fmt.Sprintf("%02d:00", s.resetHour)
	if _, err := s.cron.Every(1).Day().At(at).Do(s.dailyReset); err != nil {
		return fmt.Errorf("schedule daily reset: %w", err)
	}

	if s.heartbeat > 0 {
		if _, err := s.cron.Every(s.heartbeat).Do(s.sendHeartbeat); err != nil {
			return fmt.Errorf("schedule heartbeat: %w", err)
		}
	}

	s.cron.StartAsync()
	s.log.Info("scheduler started", logger.String("daily_reset_at", at+" UTC"))
	return nil
}

// Stop halts the scheduler, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) dailyReset() {
	s.gate.ResetDaily()
	s.log.Info("daily risk counters reset")
}

func (s *Scheduler) sendHeartbeat() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sum := s.gate.Summary()
	text := fmt.Sprintf("Heartbeat: equity %.2f, daily pnl %+.2f, open %d/%d",
		sum.Equity, sum.DailyPnL, sum.OpenPositions, sum.MaxPositions)
	if sum.TradingHalted {
		text += " (trading halted: " + sum.HaltReason + ")"
	}
	if s.stats != nil {
		st := s.stats()
		text += fmt.Sprintf("\nPipeline: %d published / %d generated (%d dup, %d rejected), up %s",
			st.Published, st.Generated, st.Duplicates, st.Rejected, st.Uptime.Round(time.Second))
	}
	if err := s.notifier.NotifyText(ctx, text); err != nil {
		s.log.Warn("heartbeat delivery failed", logger.Error(err))
	}
}
