package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/shaiso/flowrunner/internal/domain"
)

func TestCalculateNextDue_Cron(t *testing.T) {
	sched := &domain.Schedule{CronExpr: "0 9 * * *", Timezone: "UTC"}
	from := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculateNextDue_CronTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}

	sched := &domain.Schedule{CronExpr: "0 9 * * *", Timezone: "Europe/Moscow"}
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 9:00 по Москве
	want := time.Date(2025, 3, 10, 9, 0, 0, 0, loc).UTC()
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
	if next.Location() != time.UTC {
		t.Errorf("expected UTC result, got %v", next.Location())
	}
}

func TestCalculateNextDue_Interval(t *testing.T) {
	sched := &domain.Schedule{IntervalSec: 90}
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(from.Add(90 * time.Second)) {
		t.Errorf("unexpected next: %v", next)
	}
}

func TestCalculateNextDue_NoTrigger(t *testing.T) {
	_, err := CalculateNextDue(&domain.Schedule{}, time.Now())
	if !errors.Is(err, ErrNoTrigger) {
		t.Errorf("expected ErrNoTrigger, got %v", err)
	}
}

func TestValidateSchedule(t *testing.T) {
	if err := ValidateSchedule(&domain.Schedule{CronExpr: "*/5 * * * *"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateSchedule(&domain.Schedule{CronExpr: "every minute"}); !errors.Is(err, ErrInvalidCron) {
		t.Errorf("expected ErrInvalidCron, got %v", err)
	}
	if err := ValidateSchedule(&domain.Schedule{IntervalSec: 60, Timezone: "Mars/Olympus"}); !errors.Is(err, ErrInvalidTimezone) {
		t.Errorf("expected ErrInvalidTimezone, got %v", err)
	}
	if err := ValidateSchedule(&domain.Schedule{}); !errors.Is(err, ErrNoTrigger) {
		t.Errorf("expected ErrNoTrigger, got %v", err)
	}
}
