package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/flowrunner/internal/domain"
)

// Ошибки расписаний.
var (
	// ErrNoTrigger: не задан ни cron_expr, ни interval_sec.
	ErrNoTrigger = errors.New("schedule has neither cron_expr nor interval_sec")

	// ErrInvalidCron: cron-выражение не разбирается.
	ErrInvalidCron = errors.New("invalid cron expression")

	// ErrInvalidTimezone: неизвестная IANA-зона.
	ErrInvalidTimezone = errors.New("invalid timezone")
)

// cronParser: стандартный 5-польный формат без секунд.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CalculateNextDue вычисляет следующее время запуска после from.
// Результат всегда в UTC.
func CalculateNextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	loc := time.UTC
	if sched.Timezone != "" {
		if l, err := time.LoadLocation(sched.Timezone); err == nil {
			loc = l
		}
	}
	from = from.In(loc)

	switch {
	case sched.IsCron():
		s, err := cronParser.Parse(sched.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidCron, sched.CronExpr, err)
		}
		return s.Next(from).UTC(), nil

	case sched.IsInterval():
		return from.Add(time.Duration(sched.IntervalSec) * time.Second).UTC(), nil

	default:
		return time.Time{}, ErrNoTrigger
	}
}

// ValidateCronExpr проверяет cron-выражение.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidCron, expr, err)
	}
	return nil
}

// ValidateSchedule проверяет триггер и часовой пояс расписания.
func ValidateSchedule(sched *domain.Schedule) error {
	if !sched.IsCron() && !sched.IsInterval() {
		return ErrNoTrigger
	}
	if sched.IsCron() {
		if err := ValidateCronExpr(sched.CronExpr); err != nil {
			return err
		}
	}
	if sched.Timezone != "" {
		if _, err := time.LoadLocation(sched.Timezone); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidTimezone, sched.Timezone)
		}
	}
	return nil
}

// CalculateInitialNextDue вычисляет первое время запуска нового расписания.
func CalculateInitialNextDue(sched *domain.Schedule) (time.Time, error) {
	return CalculateNextDue(sched, time.Now())
}
