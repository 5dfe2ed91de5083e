package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type ReminderSender interface {
	SendDueReminders(ctx context.Context, now time.Time, window time.Duration) (int, error)
}

type Scheduler struct {
	cron      *cron.Cron
	reminders ReminderSender
	schedule  string
	window    time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewScheduler takes a six-field cron expression (seconds first).
func NewScheduler(reminders ReminderSender, schedule string, window time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		reminders: reminders,
		schedule:  schedule,
		window:    window,
		now:       time.Now,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if s.reminders == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.sendReminders); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits up to timeout for a running job to finish.
func (s *Scheduler) Stop(timeout time.Duration) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(timeout):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) sendReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sent, err := s.reminders.SendDueReminders(ctx, s.now().UTC(), s.window)
	if err != nil {
		s.log.Error().Err(err).Msg("due reminders failed")
		return
	}
	s.log.Info().Int("sent", sent).Msg("due reminders queued")
}
