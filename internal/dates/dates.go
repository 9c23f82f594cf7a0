// Package dates turns casual date phrases into ISO calendar dates.
package dates

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "time/tzdata" // Bundled zone database for hosts without one.
)

// Layout is the ISO date layout used throughout the application.
const Layout = "2006-01-02"

// rangeRollDay is the day of month from which a bare day range refers to next month.
const rangeRollDay = 22

var (
	weekdayRe = regexp.MustCompile(`\b(?:(on|this|next)\s+)?(mon|monday|tue|tues|tuesday|wed|wednesday|thu|thur|thurs|thursday|fri|friday|sat|saturday|sun|sunday)\b`)
	rangeRe   = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s*(?:to|-)\s*(\d{1,2})(?:st|nd|rd|th)?\b`)
	todayRe   = regexp.MustCompile(`\btoday\b`)
	tomorrow  = regexp.MustCompile(`\btomorrow\b`)
	yesterday = regexp.MustCompile(`\byesterday\b|\blast\s+night\b`)
	fedRe     = regexp.MustCompile(`\bfed\b`)
	saturday  = regexp.MustCompile(`\bsaturday\b`)
)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// Extractor resolves date phrases relative to today in a fixed location.
type Extractor struct {
	loc *time.Location
	now func() time.Time
}

// New creates an Extractor for loc using the wall clock.
func New(loc *time.Location) *Extractor {
	return &Extractor{loc: loc, now: time.Now}
}

// SetClock overrides the clock used to determine today.
func (x *Extractor) SetClock(now func() time.Time) {
	x.now = now
}

// Location returns the location dates are resolved in.
func (x *Extractor) Location() *time.Location {
	return x.loc
}

// Today returns today's date in the extractor's location.
func (x *Extractor) Today() string {
	return x.today().Format(Layout)
}

// Extract returns every date mentioned in text, sorted and deduplicated.
// Rules are applied independently and their results unioned:
//
//   - "today", "tomorrow", "yesterday" and "last night"
//   - "on <weekday>" is the most recent such day, today included
//   - bare, "this" or "next" <weekday> is the next such day, never today
//   - "D1 to D2" or "D1-D2" covers every valid day of the current month,
//     or of next month from the 22nd onwards
//   - "saturday" together with "fed" adds the previous Saturday
func (x *Extractor) Extract(text string) []string {
	text = strings.ToLower(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	today := x.today()
	set := make(map[string]bool)
	add := func(d time.Time) { set[d.Format(Layout)] = true }

	if todayRe.MatchString(text) {
		add(today)
	}
	if tomorrow.MatchString(text) {
		add(today.AddDate(0, 0, 1))
	}
	if yesterday.MatchString(text) {
		add(today.AddDate(0, 0, -1))
	}

	for _, m := range weekdayRe.FindAllStringSubmatch(text, -1) {
		wd := weekdays[m[2][:3]]
		if m[1] == "on" {
			add(onOrBefore(today, wd))
		} else {
			add(after(today, wd))
		}
	}

	if m := rangeRe.FindStringSubmatch(text); m != nil {
		for _, d := range dayRange(today, m[1], m[2]) {
			add(d)
		}
	}

	if saturday.MatchString(text) && fedRe.MatchString(text) {
		add(before(today, time.Saturday))
	}

	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (x *Extractor) today() time.Time {
	n := x.now().In(x.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, x.loc)
}

// after returns the first wd strictly after today.
func after(today time.Time, wd time.Weekday) time.Time {
	ahead := (int(wd) - int(today.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return today.AddDate(0, 0, ahead)
}

// onOrBefore returns the most recent wd, today included.
func onOrBefore(today time.Time, wd time.Weekday) time.Time {
	back := (int(today.Weekday()) - int(wd) + 7) % 7
	return today.AddDate(0, 0, -back)
}

// before returns the most recent wd strictly before today.
func before(today time.Time, wd time.Weekday) time.Time {
	back := (int(today.Weekday()) - int(wd) + 7) % 7
	if back == 0 {
		back = 7
	}
	return today.AddDate(0, 0, -back)
}

func dayRange(today time.Time, from, to string) []time.Time {
	d1, err1 := strconv.Atoi(from)
	d2, err2 := strconv.Atoi(to)
	if err1 != nil || err2 != nil {
		return nil
	}

	year, month := today.Year(), today.Month()
	if today.Day() >= rangeRollDay {
		first := time.Date(year, month, 1, 0, 0, 0, 0, today.Location()).AddDate(0, 1, 0)
		year, month = first.Year(), first.Month()
	}

	var out []time.Time
	for d := d1; d <= d2; d++ {
		if d < 1 {
			continue
		}
		t := time.Date(year, month, d, 0, 0, 0, 0, today.Location())
		if t.Month() != month {
			continue
		}
		out = append(out, t)
	}
	return out
}
