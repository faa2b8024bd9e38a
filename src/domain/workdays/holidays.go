package workdays

import "time"

// Holiday is one rule of a holiday table.
type Holiday interface {
	// ForYear returns the civil dates (any timezone, midnight) the holiday
	// falls on in the given year, or nothing if the rule is not in force.
	ForYear(year int) []time.Time
}

// FixedHoliday recurs on the same month and day every year. FirstYear and
// LastYear bound the years the rule is in force; zero means unbounded.
type FixedHoliday struct {
	Month     time.Month
	Day       int
	FirstYear int
	LastYear  int
}

func (self FixedHoliday) ForYear(year int) []time.Time {
	if self.FirstYear != 0 && year < self.FirstYear {
		return nil
	}
	if self.LastYear != 0 && year > self.LastYear {
		return nil
	}
	return []time.Time{time.Date(year, self.Month, self.Day, 0, 0, 0, 0, time.UTC)}
}

// EasterHoliday falls a fixed number of days after Easter Sunday; negative
// offsets fall before it.
type EasterHoliday struct {
	Days      int
	FirstYear int
	LastYear  int
}

func (self EasterHoliday) ForYear(year int) []time.Time {
	if self.FirstYear != 0 && year < self.FirstYear {
		return nil
	}
	if self.LastYear != 0 && year > self.LastYear {
		return nil
	}
	return []time.Time{easterSunday(year).AddDate(0, 0, self.Days)}
}

// OneOffHoliday is a single concrete date.
type OneOffHoliday struct {
	Date time.Time
}

func (self OneOffHoliday) ForYear(year int) []time.Time {
	if self.Date.Year() != year {
		return nil
	}
	return []time.Time{time.Date(year, self.Date.Month(), self.Date.Day(), 0, 0, 0, 0, time.UTC)}
}

// HolidaySet is a holiday table assembled from rules.
type HolidaySet struct {
	holidays []Holiday
}

func NewHolidaySet(holidays ...Holiday) HolidaySet {
	return HolidaySet{holidays: holidays}
}

// With returns a copy of the set extended with more rules.
func (self HolidaySet) With(extra ...Holiday) HolidaySet {
	holidays := make([]Holiday, 0, len(self.holidays)+len(extra))
	holidays = append(holidays, self.holidays...)
	holidays = append(holidays, extra...)
	return HolidaySet{holidays: holidays}
}

// Contains reports whether the given civil date is a holiday.
func (self HolidaySet) Contains(date time.Time) bool {
	for _, holiday := range self.holidays {
		for _, d := range holiday.ForYear(date.Year()) {
			if d.Month() == date.Month() && d.Day() == date.Day() {
				return true
			}
		}
	}
	return false
}

// Between returns the unique holidays in the interval (after, before].
func (self HolidaySet) Between(after, before time.Time) []time.Time {
	seen := map[string]struct{}{}
	var res []time.Time
	for year := after.Year(); year <= before.Year(); year += 1 {
		for _, holiday := range self.holidays {
			for _, d := range holiday.ForYear(year) {
				d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, after.Location())
				if !d.After(after) || d.After(before) {
					continue
				}
				key := d.Format("2006-01-02")
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				res = append(res, d)
			}
		}
	}
	return res
}

// easterSunday computes the Gregorian Easter date using the anonymous
// algorithm (Meeus/Jones/Butcher).
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// SlovakHolidays is the holiday table of the Slovak Republic since 1994.
// Source: 241/1993 Z.z., 201/1996 Z.z., 442/2001 Z.z.
func SlovakHolidays() HolidaySet {
	return NewHolidaySet(
		FixedHoliday{Day: 1, Month: time.January, FirstYear: 1994},   // Deň vzniku Slovenskej republiky
		FixedHoliday{Day: 6, Month: time.January, FirstYear: 1994},   // Zjavenie Pána
		EasterHoliday{Days: -2, FirstYear: 1994},                     // Veľkonočný piatok
		EasterHoliday{Days: +1, FirstYear: 1994},                     // Veľkonočný pondelok
		FixedHoliday{Day: 1, Month: time.May, FirstYear: 1994},       // Sviatok práce
		FixedHoliday{Day: 8, Month: time.May, FirstYear: 1997},       // Deň víťazstva nad fašizmom
		FixedHoliday{Day: 5, Month: time.July, FirstYear: 1994},      // Sviatok svätého Cyrila a Metoda
		FixedHoliday{Day: 29, Month: time.August, FirstYear: 1994},   // Výročie SNP
		FixedHoliday{Day: 1, Month: time.September, FirstYear: 1994}, // Deň Ústavy
		FixedHoliday{Day: 15, Month: time.September, FirstYear: 1994},
		FixedHoliday{Day: 1, Month: time.November, FirstYear: 1994},  // Sviatok všetkých svätých
		FixedHoliday{Day: 17, Month: time.November, FirstYear: 2001}, // Deň boja za slobodu a demokraciu
		FixedHoliday{Day: 24, Month: time.December, FirstYear: 1994},
		FixedHoliday{Day: 25, Month: time.December, FirstYear: 1994},
		FixedHoliday{Day: 26, Month: time.December, FirstYear: 1994},
	)
}
