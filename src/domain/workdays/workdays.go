// Package workdays implements working-day arithmetic over a pluggable holiday
// table. Weekends are always non-working. All computations are done on civil
// dates in the calendar's timezone so DST shifts cannot produce off-by-one
// results.
package workdays

import (
	"time"

	"github.com/pkg/errors"
)

// ErrOutOfRange is returned for dates more than 50 years away from now. The
// holiday tables are only maintained for that window.
var ErrOutOfRange = errors.New("date out of supported range")

const rangeYears = 50

type Calendar struct {
	location *time.Location
	holidays HolidaySet

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

func NewCalendar(location *time.Location, holidays HolidaySet) *Calendar {
	if location == nil {
		location = time.UTC
	}
	return &Calendar{
		location: location,
		holidays: holidays,
		now:      time.Now,
	}
}

// Location returns the timezone the calendar does its arithmetic in.
func (self *Calendar) Location() *time.Location {
	return self.location
}

// Now returns the current instant in the calendar's timezone.
func (self *Calendar) Now() time.Time {
	return self.now().In(self.location)
}

// WithNow returns a copy of the calendar reading the given clock.
func (self *Calendar) WithNow(now func() time.Time) *Calendar {
	return &Calendar{location: self.location, holidays: self.holidays, now: now}
}

// Today returns the current civil date in the calendar's timezone.
func (self *Calendar) Today() time.Time {
	return self.truncate(self.now().In(self.location))
}

func (self *Calendar) truncate(t time.Time) time.Time {
	year, month, day := t.In(self.location).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, self.location)
}

func (self *Calendar) checkRange(t time.Time) error {
	if abs := t.Year() - self.now().Year(); abs > rangeYears || abs < -rangeYears {
		return errors.WithMessagef(ErrOutOfRange, "%s", t.Format("2006-01-02"))
	}
	return nil
}

// IsWorking reports whether the given date is a working day.
func (self *Calendar) IsWorking(date time.Time) (bool, error) {
	date = self.truncate(date)
	if err := self.checkRange(date); err != nil {
		return false, err
	}
	if isWeekend(date) {
		return false, nil
	}
	return !self.holidays.Contains(date), nil
}

// Advance returns the date n working days after the given date. n may be
// negative to go back in time. The base date itself is never counted, so the
// result is always a working day for n != 0.
func (self *Calendar) Advance(date time.Time, n int) (time.Time, error) {
	date = self.truncate(date)
	if err := self.checkRange(date); err != nil {
		return time.Time{}, err
	}

	step := 1
	if n < 0 {
		step = -1
		n = -n
	}
	for n > 0 {
		date = date.AddDate(0, 0, step)
		if err := self.checkRange(date); err != nil {
			return time.Time{}, err
		}
		if working, err := self.IsWorking(date); err != nil {
			return time.Time{}, err
		} else if working {
			n -= 1
		}
	}
	return date, nil
}

// Between returns the number of working days in the interval (after, before],
// excluding "after" and including "before". If "after" is the day something
// was submitted and "before" is today, then today is the last full day of a
// d-day deadline iff Between(after, today) == d, and the deadline is missed
// iff Between(after, today) > d.
//
// The following invariants hold:
//
//	Between(a, a) == 0
//	Between(a, b) == -Between(b, a)
//	Between(a, b) == Between(a, x) + Between(x, b)
//	Between(a, a+1) == 1 iff a+1 is a working day, 0 otherwise
func (self *Calendar) Between(after, before time.Time) (int, error) {
	after = self.truncate(after)
	before = self.truncate(before)
	if err := self.checkRange(after); err != nil {
		return 0, err
	}
	if err := self.checkRange(before); err != nil {
		return 0, err
	}

	if after.Equal(before) {
		return 0, nil
	}
	if after.After(before) {
		n, err := self.Between(before, after)
		return -n, err
	}

	days := int(before.Sub(after).Hours() / 24)
	// Sub counts absolute time; a DST transition inside the interval makes
	// the quotient one day short or long of the civil difference.
	for !after.AddDate(0, 0, days).Equal(before) {
		if after.AddDate(0, 0, days).Before(before) {
			days += 1
		} else {
			days -= 1
		}
	}

	res := (days / 7) * 5 // full weeks
	for d := 0; d < days%7; d += 1 {
		if !isWeekend(before.AddDate(0, 0, -d)) {
			res += 1
		}
	}
	for _, holiday := range self.holidays.Between(after, before) {
		if !isWeekend(holiday) {
			res -= 1
		}
	}
	return res, nil
}

func isWeekend(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}
