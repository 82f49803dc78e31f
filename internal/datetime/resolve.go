// Package datetime turns partially specified dates into concrete timestamps
// with plain calendar arithmetic. Nothing here performs I/O.
package datetime

import (
	"regexp"
	"strings"
	"time"

	"assistant/internal/fault"
)

// DefaultDurationMinutes is used when the caller does not supply a duration.
const DefaultDurationMinutes = 30

// nearFutureDays bounds how far from "now" a candidate date may drift before
// it is re-anchored onto the same weekday within the coming week.
const nearFutureDays = 7

// Components holds the date/time fields that were actually stated. A nil
// field is defaulted from the reference time.
type Components struct {
	Year   *int `json:"year,omitempty"`
	Month  *int `json:"month,omitempty"`
	Day    *int `json:"day,omitempty"`
	Hour   *int `json:"hour,omitempty"`
	Minute *int `json:"minute,omitempty"`
}

// Empty reports whether no field is set.
func (c Components) Empty() bool {
	return c.Year == nil && c.Month == nil && c.Day == nil && c.Hour == nil && c.Minute == nil
}

// HasDate reports whether any of year/month/day is set.
func (c Components) HasDate() bool {
	return c.Year != nil || c.Month != nil || c.Day != nil
}

// FromTime returns components with every field set from t.
func FromTime(t time.Time) Components {
	y, mo, d := t.Date()
	h, mi := t.Hour(), t.Minute()
	m := int(mo)
	return Components{Year: &y, Month: &m, Day: &d, Hour: &h, Minute: &mi}
}

// WithDateFrom fills missing year/month/day from t, leaving time fields alone.
func (c Components) WithDateFrom(t time.Time) Components {
	y, mo, d := t.Date()
	m := int(mo)
	if c.Year == nil {
		c.Year = &y
	}
	if c.Month == nil {
		c.Month = &m
	}
	if c.Day == nil {
		c.Day = &d
	}
	return c
}

// WithClockFrom fills missing hour/minute from t, leaving date fields alone.
func (c Components) WithClockFrom(t time.Time) Components {
	h, mi := t.Hour(), t.Minute()
	if c.Hour == nil {
		c.Hour = &h
	}
	if c.Minute == nil {
		c.Minute = &mi
	}
	return c
}

// Int is a helper for building Components literals.
func Int(v int) *int { return &v }

// Result is a resolved time window.
type Result struct {
	Start time.Time
	End   time.Time
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var wordRe = regexp.MustCompile(`[a-z]+`)

// Resolve computes start and end for an expression such as "friday at 3pm"
// whose numeric parts were already extracted into comp. The location of now
// is used for the result. durationMinutes <= 0 means DefaultDurationMinutes.
//
// Date selection order: a named weekday wins, then "today"/"tomorrow", then
// near-future normalization of the stated (or defaulted) date.
func Resolve(now time.Time, expression string, comp Components, durationMinutes int) (Result, error) {
	const op = "datetime.resolve"

	if now.IsZero() {
		return Result{}, fault.New(fault.UnresolvableTime, op, "reference time is not set")
	}
	expr := strings.ToLower(strings.TrimSpace(expression))
	if expr == "" && comp.Empty() {
		return Result{}, fault.New(fault.UnresolvableTime, op, "no date or time was given")
	}
	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}

	start, err := candidate(now, comp)
	if err != nil {
		return Result{}, err
	}

	words := wordRe.FindAllString(expr, -1)
	if wd, ok := namedWeekday(words); ok {
		start = onDate(start, now.AddDate(0, 0, DaysAhead(now.Weekday(), wd)))
	} else if hasWord(words, "tomorrow") {
		start = onDate(start, now.AddDate(0, 0, 1))
	} else if hasWord(words, "today") || hasWord(words, "tonight") {
		start = onDate(start, now)
	} else {
		start = normalizeNearFuture(now, start)
	}

	return Result{
		Start: start,
		End:   start.Add(time.Duration(durationMinutes) * time.Minute),
	}, nil
}

// DaysAhead returns how many days after from the next target weekday falls.
// The result is always in 1..7: a matching weekday means next week.
func DaysAhead(from, target time.Weekday) int {
	days := int(target) - int(from)
	if days <= 0 {
		days += 7
	}
	return days
}

// ParseWeekday finds the first weekday name in s.
func ParseWeekday(s string) (time.Weekday, bool) {
	return namedWeekday(wordRe.FindAllString(strings.ToLower(s), -1))
}

func namedWeekday(words []string) (time.Weekday, bool) {
	for _, w := range words {
		if wd, ok := weekdayNames[w]; ok {
			return wd, true
		}
	}
	return 0, false
}

func hasWord(words []string, want string) bool {
	for _, w := range words {
		if w == want {
			return true
		}
	}
	return false
}

// candidate builds the start timestamp from comp, defaulting missing fields
// from now. Out-of-range values fail rather than roll over.
func candidate(now time.Time, comp Components) (time.Time, error) {
	const op = "datetime.resolve"

	year := pick(comp.Year, now.Year())
	month := pick(comp.Month, int(now.Month()))
	day := pick(comp.Day, now.Day())
	hour := pick(comp.Hour, now.Hour())
	minute := pick(comp.Minute, now.Minute())

	switch {
	case year < 1 || year > 9999:
		return time.Time{}, fault.New(fault.UnresolvableTime, op, "year %d out of range", year)
	case month < 1 || month > 12:
		return time.Time{}, fault.New(fault.UnresolvableTime, op, "month %d out of range", month)
	case day < 1 || day > daysIn(year, time.Month(month)):
		return time.Time{}, fault.New(fault.UnresolvableTime, op, "day %d out of range for %04d-%02d", day, year, month)
	case hour < 0 || hour > 23:
		return time.Time{}, fault.New(fault.UnresolvableTime, op, "hour %d out of range", hour)
	case minute < 0 || minute > 59:
		return time.Time{}, fault.New(fault.UnresolvableTime, op, "minute %d out of range", minute)
	}

	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, now.Location()), nil
}

// normalizeNearFuture keeps candidates close to now. A date more than a week
// away (either direction) moves onto its weekday within the coming week; a
// past candidate within the week moves forward exactly one day.
func normalizeNearFuture(now, start time.Time) time.Time {
	diff := dayNumber(start) - dayNumber(now)
	if diff > nearFutureDays || diff < -nearFutureDays {
		return onDate(start, now.AddDate(0, 0, DaysAhead(now.Weekday(), start.Weekday())))
	}
	if start.Before(now) {
		return start.AddDate(0, 0, 1)
	}
	return start
}

// onDate keeps the clock time of t and moves it onto the calendar date of d.
func onDate(t, d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
}

// dayNumber counts days since the epoch for the wall-clock date of t, so that
// differences ignore DST and time of day.
func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func pick(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
