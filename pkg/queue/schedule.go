package queue

import (
	"fmt"
	"time"
)

// Schedule computes the occurrences of a recurring submission. Next must
// return a time strictly after from; a schedule that stops returning future
// times would make the periodic entry fire on every tick.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

// EveryInterval fires at a fixed interval. Intervals below one millisecond
// are raised to it so a misconfigured schedule cannot busy-loop the
// scheduler tick.
func EveryInterval(d time.Duration) Schedule {
	return intervalSchedule{interval: max(d, time.Millisecond)}
}

// Every is shorthand for EveryInterval.
func Every(d time.Duration) Schedule {
	return EveryInterval(d)
}

// EveryMinutes fires every n minutes.
func EveryMinutes(n int) Schedule {
	return EveryInterval(time.Duration(n) * time.Minute)
}

// EveryHours fires every n hours.
func EveryHours(n int) Schedule {
	return EveryInterval(time.Duration(n) * time.Hour)
}

type intervalSchedule struct {
	interval time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.interval)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %s", s.interval)
}

// DailyAt fires once a day at the given local wall-clock time.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour, minute: minute}
}

type dailySchedule struct {
	hour, minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), s.hour, s.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

// WeeklyOn fires once a week on the given weekday at the given local
// wall-clock time.
func WeeklyOn(day time.Weekday, hour, minute int) Schedule {
	return weeklySchedule{day: day, hour: hour, minute: minute}
}

type weeklySchedule struct {
	day          time.Weekday
	hour, minute int
}

func (s weeklySchedule) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), s.hour, s.minute, 0, 0, from.Location())
	days := (int(s.day) - int(from.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, days)
	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (s weeklySchedule) String() string {
	return fmt.Sprintf("weekly on %s at %02d:%02d", s.day, s.hour, s.minute)
}
