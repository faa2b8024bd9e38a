package component

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/chcemvediet/portal/src/application/service"
	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
)

// Scheduler runs the periodic lifecycle passes: reminders about undecided
// mail, reminders about approaching applicant deadlines and missed
// obligee deadlines, and closing of long-quiet inforequests. Every pass
// is idempotent, so overlapping or repeated runs are harmless.
type Scheduler struct {
	Logger              zerolog.Logger
	Engine              *config.Engine
	InforequestService  service.InforequestService
	MessageService      service.MessageService
	NotificationService service.NotificationService
	Metrics             *config.Metrics

	Interval time.Duration
}

func (self *Scheduler) Start(ctx context.Context) error {
	self.Logger.Info().Dur("interval", self.Interval).Msg("Starting")

	ticker := time.NewTicker(self.Interval)
	defer ticker.Stop()
	for {
		if err := self.RunOnce(); err != nil {
			self.Logger.Err(err).Msg("Scheduler run failed")
		}
		select {
		case <-ctx.Done():
			self.Logger.Debug().Msg("context was cancelled")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce executes all passes and returns the first error of each pass,
// without aborting the remaining passes.
func (self *Scheduler) RunOnce() error {
	var firstErr error
	for _, pass := range []struct {
		name string
		run  func() error
	}{
		{"undecided-reminders", self.undecidedReminders},
		{"deadline-reminders", self.deadlineReminders},
		{"close-quiet", self.closeQuiet},
	} {
		started := time.Now()
		if err := pass.run(); err != nil {
			self.Logger.Err(err).Str("pass", pass.name).Msg("Pass failed")
			if firstErr == nil {
				firstErr = err
			}
		}
		if self.Metrics != nil {
			self.Metrics.SchedulerPasses.WithLabelValues(pass.name).Observe(time.Since(started).Seconds())
		}
	}
	return firstErr
}

// reminderDue reports whether the last reminder is at least period
// working days old. A nil last reminder is due immediately.
func (self *Scheduler) reminderDue(last *time.Time, period int, today time.Time) (bool, error) {
	if last == nil {
		return true, nil
	}
	elapsed, err := self.Engine.Calendar.Between(*last, today)
	if err != nil {
		return false, err
	}
	return elapsed >= period, nil
}

// undecidedReminders nudges applicants whose inforequests have inbound
// mail waiting for a decision. The reminder repeats every
// ReminderPeriodUndecided working days until all mail is decided; fresh
// mail clears the timestamp, so it also reminds right away.
func (self *Scheduler) undecidedReminders() error {
	inforequests, err := self.InforequestService.GetOpenWithUndecided()
	if err != nil {
		return err
	}

	today := self.Engine.Calendar.Today()
	for i := range inforequests {
		inforequest := &inforequests[i]

		links, err := self.InforequestService.UndecidedLinks(inforequest.ID)
		if err != nil {
			return err
		}
		if len(links) == 0 {
			continue
		}

		due, err := self.reminderDue(inforequest.LastUndecidedEmailReminder, self.Engine.ReminderPeriodUndecided, today)
		if err != nil {
			return err
		}
		if !due {
			continue
		}

		if err := self.NotificationService.RemindUndecided(inforequest, len(links)); err != nil {
			return err
		}
		if err := self.InforequestService.MarkUndecidedReminded(inforequest.ID, time.Now()); err != nil {
			return err
		}
		if self.Metrics != nil {
			self.Metrics.RemindersSent.WithLabelValues("undecided").Inc()
		}
		self.Logger.Info().Int64("inforequest", inforequest.ID).Int("undecided", len(links)).Msg("Sent undecided reminder")
	}
	return nil
}

// deadlineReminders walks every open branch and reminds the applicant
// about their own deadline shortly before it runs out, and about the
// obligee's deadline while it stays missed. Reminders repeat every
// ReminderPeriodDeadline working days, keyed on the action that started
// the deadline.
func (self *Scheduler) deadlineReminders() error {
	inforequests, err := self.InforequestService.GetOpen()
	if err != nil {
		return err
	}

	today := self.Engine.Calendar.Today()
	for i := range inforequests {
		detail, err := self.InforequestService.Detail(inforequests[i].ID)
		if err != nil {
			return err
		}
		for _, branch := range detail.Branches {
			if err := self.remindApplicantDeadline(detail.Inforequest, branch.State, today); err != nil {
				return err
			}
			if err := self.remindObligeeDeadline(detail.Inforequest, branch.State, today); err != nil {
				return err
			}
		}
	}
	return nil
}

func (self *Scheduler) remindApplicantDeadline(inforequest *domain.Inforequest, state *domain.BranchState, today time.Time) error {
	deadline := state.ApplicantDeadline
	if deadline == nil {
		return nil
	}
	remaining, err := deadline.RemainingAt(self.Engine.Calendar, today)
	if err != nil {
		return err
	}
	if remaining < 0 || remaining > self.Engine.ApplicantReminderLead {
		return nil
	}
	due, err := self.reminderDue(deadline.Action.LastDeadlineReminder, self.Engine.ReminderPeriodDeadline, today)
	if err != nil {
		return err
	}
	if !due {
		return nil
	}

	if err := self.NotificationService.RemindApplicantDeadline(inforequest, deadline, remaining); err != nil {
		return err
	}
	if err := self.InforequestService.MarkDeadlineReminded(deadline.Action.ID, time.Now()); err != nil {
		return err
	}
	if self.Metrics != nil {
		self.Metrics.RemindersSent.WithLabelValues("applicant-deadline").Inc()
	}
	self.Logger.Info().
		Int64("inforequest", inforequest.ID).
		Int64("branch", state.Branch.ID).
		Int("remaining", remaining).
		Msg("Sent applicant deadline reminder")
	return nil
}

func (self *Scheduler) remindObligeeDeadline(inforequest *domain.Inforequest, state *domain.BranchState, today time.Time) error {
	deadline := state.ObligeeDeadline
	if deadline == nil {
		return nil
	}
	remaining, err := deadline.RemainingAt(self.Engine.Calendar, today)
	if err != nil {
		return err
	}
	if remaining >= 0 {
		return nil
	}
	due, err := self.reminderDue(deadline.Action.LastDeadlineReminder, self.Engine.ReminderPeriodDeadline, today)
	if err != nil {
		return err
	}
	if !due {
		return nil
	}

	if err := self.NotificationService.RemindObligeeDeadline(inforequest, deadline); err != nil {
		return err
	}
	if err := self.InforequestService.MarkDeadlineReminded(deadline.Action.ID, time.Now()); err != nil {
		return err
	}
	if self.Metrics != nil {
		self.Metrics.RemindersSent.WithLabelValues("obligee-deadline").Inc()
	}
	self.Logger.Info().
		Int64("inforequest", inforequest.ID).
		Int64("branch", state.Branch.ID).
		Msg("Sent obligee deadline reminder")
	return nil
}

// closeQuiet closes inforequests with no activity for the quiet period,
// appending expiration actions where a deadline ran out.
func (self *Scheduler) closeQuiet() error {
	inforequests, err := self.InforequestService.GetOpen()
	if err != nil {
		return err
	}

	today := self.Engine.Calendar.Today()
	for i := range inforequests {
		inforequest := &inforequests[i]

		lastActivity, err := self.lastActivity(inforequest)
		if err != nil {
			return err
		}
		if lastActivity.IsZero() {
			continue
		}
		quiet, err := self.Engine.Calendar.Between(lastActivity, today)
		if err != nil {
			return err
		}
		if quiet < self.Engine.CloseQuietPeriod {
			continue
		}

		if err := self.InforequestService.CloseQuiet(inforequest.ID); err != nil {
			return err
		}
		self.Logger.Info().Int64("inforequest", inforequest.ID).Int("quiet", quiet).Msg("Closed quiet inforequest")
	}
	return nil
}

// lastActivity is the newest action date across all branches, or newer
// undecided mail if any.
func (self *Scheduler) lastActivity(inforequest *domain.Inforequest) (time.Time, error) {
	detail, err := self.InforequestService.Detail(inforequest.ID)
	if err != nil {
		return time.Time{}, err
	}

	last := time.Time{}
	for _, branch := range detail.Branches {
		if action := branch.State.LastAction(); action != nil && action.EffectiveDate.After(last) {
			last = action.EffectiveDate
		}
	}

	links, err := self.InforequestService.UndecidedLinks(inforequest.ID)
	if err != nil {
		return time.Time{}, err
	}
	for _, link := range links {
		message, err := self.MessageService.GetById(link.EmailID)
		if err != nil {
			return time.Time{}, err
		}
		if message.CreatedAt.After(last) {
			last = message.CreatedAt
		}
	}
	return last, nil
}
