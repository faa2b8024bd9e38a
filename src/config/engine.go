package config

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/workdays"
)

// Engine holds the lifecycle engine tunables. Scalars come from the
// environment with statutory defaults; the holiday table defaults to the
// Slovak one and may be extended with one-off dates.
type Engine struct {
	// MailDomain is the domain the per-inforequest return addresses are
	// minted under.
	MailDomain string

	DeadlineDays  map[domain.ActionType]int
	MaxExtensions int

	// Reminder periods and the close quiet period are working-day counts.
	ReminderPeriodUndecided int
	ReminderPeriodDeadline  int
	ApplicantReminderLead   int
	CloseQuietPeriod        int

	Calendar *workdays.Calendar
}

const (
	defaultMailDomain              = "mail.chcemvediet.sk"
	defaultMaxExtensions           = 1
	defaultReminderPeriodUndecided = 5
	defaultReminderPeriodDeadline  = 3
	defaultApplicantReminderLead   = 2
	defaultCloseQuietPeriod        = 100
	defaultTimezone                = "Europe/Bratislava"
)

func NewEngine() (*Engine, error) {
	engine := &Engine{
		MailDomain:              defaultMailDomain,
		DeadlineDays:            domain.DefaultDeadlineDays(),
		MaxExtensions:           defaultMaxExtensions,
		ReminderPeriodUndecided: defaultReminderPeriodUndecided,
		ReminderPeriodDeadline:  defaultReminderPeriodDeadline,
		ApplicantReminderLead:   defaultApplicantReminderLead,
		CloseQuietPeriod:        defaultCloseQuietPeriod,
	}

	if v := GetenvStr("MAIL_DOMAIN"); v != "" {
		engine.MailDomain = v
	}

	if v := GetenvStr("DEADLINE_DAYS_BY_TYPE"); v != "" {
		overrides := map[string]int{}
		if err := json.Unmarshal([]byte(v), &overrides); err != nil {
			return nil, errors.WithMessage(err, "parsing DEADLINE_DAYS_BY_TYPE")
		}
		for name, days := range overrides {
			var typ domain.ActionType
			if err := typ.FromString(name); err != nil {
				return nil, errors.WithMessage(err, "parsing DEADLINE_DAYS_BY_TYPE")
			}
			engine.DeadlineDays[typ] = days
		}
	}

	for _, scalar := range []struct {
		key string
		dst *int
	}{
		{"MAX_EXTENSIONS", &engine.MaxExtensions},
		{"REMINDER_PERIOD_UNDECIDED", &engine.ReminderPeriodUndecided},
		{"REMINDER_PERIOD_DEADLINE", &engine.ReminderPeriodDeadline},
		{"APPLICANT_REMINDER_LEAD", &engine.ApplicantReminderLead},
		{"CLOSE_QUIET_PERIOD", &engine.CloseQuietPeriod},
	} {
		if v, err := GetenvInt(scalar.key); err != nil {
			return nil, errors.WithMessagef(err, "parsing %s", scalar.key)
		} else if v != nil {
			*scalar.dst = *v
		}
	}

	timezone := defaultTimezone
	if v := GetenvStr("TIMEZONE"); v != "" {
		timezone = v
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading timezone %q", timezone)
	}

	holidays, err := holidayTable()
	if err != nil {
		return nil, err
	}

	engine.Calendar = workdays.NewCalendar(location, holidays)
	return engine, nil
}

// holidayTable returns the Slovak table extended with any one-off dates from
// the HOLIDAYS environment variable (JSON list of YYYY-MM-DD).
func holidayTable() (workdays.HolidaySet, error) {
	extra := GetenvStr("HOLIDAYS")
	if extra == "" {
		return workdays.SlovakHolidays(), nil
	}

	var dates []string
	if err := json.Unmarshal([]byte(extra), &dates); err != nil {
		return workdays.HolidaySet{}, errors.WithMessage(err, "parsing HOLIDAYS")
	}

	oneOffs := make([]workdays.Holiday, 0, len(dates))
	for _, date := range dates {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return workdays.HolidaySet{}, errors.WithMessagef(err, "parsing holiday %q", date)
		}
		oneOffs = append(oneOffs, workdays.OneOffHoliday{Date: parsed})
	}
	return workdays.SlovakHolidays().With(oneOffs...), nil
}

// Rules returns the subset of tunables the state machine derivation needs.
func (self *Engine) Rules() domain.Rules {
	return domain.Rules{
		Calendar:      self.Calendar,
		DeadlineDays:  self.DeadlineDays,
		MaxExtensions: self.MaxExtensions,
	}
}
