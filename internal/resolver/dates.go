package resolver

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DateLayout is the calendar-date format used by the task store.
const DateLayout = "2006-01-02"

// Calendar weeks run Monday to Sunday.
var (
	isoDate      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	koNextWeek   = regexp.MustCompile(`다음\s*주\s*(일|월|화|수|목|금|토)요일`)
	koThisWeek   = regexp.MustCompile(`이번\s*주\s*(일|월|화|수|목|금|토)요일`)
	koMonthDay   = regexp.MustCompile(`(\d{1,2})월\s*(\d{1,2})일`)
	enRelWeekday = regexp.MustCompile(`^(next|this)[\s_]+(sunday|monday|tuesday|wednesday|thursday|friday|saturday)$`)
)

var koreanWeekdays = map[string]time.Weekday{
	"일": time.Sunday,
	"월": time.Monday,
	"화": time.Tuesday,
	"수": time.Wednesday,
	"목": time.Thursday,
	"금": time.Friday,
	"토": time.Saturday,
}

var englishWeekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// KoreanWeekdayNames indexes the one-letter Korean names by time.Weekday.
var KoreanWeekdayNames = [7]string{"일", "월", "화", "수", "목", "금", "토"}

// Today returns midnight of the current day in the resolver's timezone.
func (r *Resolver) Today() time.Time {
	now := r.now().In(r.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
}

// TodayString returns today as YYYY-MM-DD.
func (r *Resolver) TodayString() string {
	return r.Today().Format(DateLayout)
}

// Yesterday returns yesterday as YYYY-MM-DD.
func (r *Resolver) Yesterday() string {
	return r.Today().AddDate(0, 0, -1).Format(DateLayout)
}

// ResolveDueDate converts an ISO date or a relative expression into
// YYYY-MM-DD. Unrecognized text resolves to today and is logged.
func (r *Resolver) ResolveDueDate(text string) string {
	today := r.Today()
	in := strings.ToLower(strings.TrimSpace(text))

	if isoDate.MatchString(in) {
		return in
	}

	switch in {
	case "today", "오늘":
		return today.Format(DateLayout)
	case "tomorrow", "내일":
		return today.AddDate(0, 0, 1).Format(DateLayout)
	case "day after tomorrow", "day_after_tomorrow", "모레":
		return today.AddDate(0, 0, 2).Format(DateLayout)
	}

	if m := enRelWeekday.FindStringSubmatch(in); m != nil {
		target := englishWeekdays[m[2]]
		if m[1] == "next" {
			return NextWeekday(today, target).Format(DateLayout)
		}
		return ThisWeekday(today, target).Format(DateLayout)
	}
	if m := koNextWeek.FindStringSubmatch(in); m != nil {
		return NextWeekday(today, koreanWeekdays[m[1]]).Format(DateLayout)
	}
	if m := koThisWeek.FindStringSubmatch(in); m != nil {
		return ThisWeekday(today, koreanWeekdays[m[1]]).Format(DateLayout)
	}
	if m := koMonthDay.FindStringSubmatch(in); m != nil {
		if d, ok := monthDay(today, m[1], m[2]); ok {
			return d.Format(DateLayout)
		}
	}

	r.logger.Warn("unrecognized due date, defaulting to today", zap.String("text", text))
	return today.Format(DateLayout)
}

// DateRange translates a due-date period into inclusive bounds.
func (r *Resolver) DateRange(period string) (from, to string, ok bool) {
	today := r.Today()
	switch period {
	case "today":
		s := today.Format(DateLayout)
		return s, s, true
	case "this_week":
		monday := today.AddDate(0, 0, -weekIndex(today.Weekday()))
		return monday.Format(DateLayout), monday.AddDate(0, 0, 6).Format(DateLayout), true
	case "next_week":
		monday := NextWeekday(today, time.Monday)
		return monday.Format(DateLayout), monday.AddDate(0, 0, 6).Format(DateLayout), true
	}
	return "", "", false
}

// DayDate pairs a weekday with its calendar date.
type DayDate struct {
	Weekday time.Weekday
	Date    string
}

// NextWeekDates lists Monday through Sunday of the next calendar week.
func (r *Resolver) NextWeekDates() []DayDate {
	monday := NextWeekday(r.Today(), time.Monday)
	out := make([]DayDate, 7)
	for i := range out {
		d := monday.AddDate(0, 0, i)
		out[i] = DayDate{Weekday: d.Weekday(), Date: d.Format(DateLayout)}
	}
	return out
}

// NextWeekday returns target in the calendar week after today's:
// the days left in this week plus the offset into the next one.
// It is never today and at most 13 days ahead.
func NextWeekday(today time.Time, target time.Weekday) time.Time {
	days := (7 - weekIndex(today.Weekday())) + weekIndex(target)
	return today.AddDate(0, 0, days)
}

// ThisWeekday returns target within today's calendar week, which may be
// earlier than today.
func ThisWeekday(today time.Time, target time.Weekday) time.Time {
	return today.AddDate(0, 0, weekIndex(target)-weekIndex(today.Weekday()))
}

// weekIndex numbers Monday 0 through Sunday 6.
func weekIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// monthDay resolves "M월 D일" in the current year, or next year when the
// date has already passed.
func monthDay(today time.Time, ms, ds string) (time.Time, bool) {
	month, _ := strconv.Atoi(ms)
	day, _ := strconv.Atoi(ds)
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}

	d := time.Date(today.Year(), time.Month(month), day, 0, 0, 0, 0, today.Location())
	if d.Day() != day {
		return time.Time{}, false // e.g. 2월 30일
	}
	if d.Before(today) {
		d = time.Date(today.Year()+1, time.Month(month), day, 0, 0, 0, 0, today.Location())
		if d.Day() != day {
			return time.Time{}, false
		}
	}
	return d, true
}
