package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule: расписание повторного запуска flow.
//
// Поддерживаются два режима: cron-выражение ("*/5 * * * *")
// или фиксированный интервал в секундах. Если задан CronExpr,
// IntervalSec игнорируется.
type Schedule struct {
	ID     uuid.UUID `json:"id"`
	FlowID uuid.UUID `json:"flow_id"`
	Name   string    `json:"name,omitempty"`

	// CronExpr: стандартное 5-польное выражение "мин час дн мес дн_нед".
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec: интервал между запусками, если CronExpr пуст.
	IntervalSec int `json:"interval_sec,omitempty"`

	// Timezone: IANA-зона для cron, по умолчанию "UTC".
	Timezone string `json:"timezone"`

	Enabled bool `json:"enabled"`

	// NextDueAt: когда запускать в следующий раз.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastRunID *uuid.UUID `json:"last_run_id,omitempty"`

	// PreviousRuns: контекст прошлых запусков, передаётся движку как есть.
	PreviousRuns map[string]string `json:"previous_runs,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCron возвращает true для cron-расписания.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true для интервального расписания.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, наступило ли время запуска.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled || s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// RecordRun фиксирует запуск и сдвигает NextDueAt.
//
// Ключ "last_run_id" в PreviousRuns обновляется, чтобы следующий
// запуск видел ID предыдущего.
func (s *Schedule) RecordRun(runID uuid.UUID, at, nextDue time.Time) {
	s.LastRunAt = &at
	s.LastRunID = &runID
	s.NextDueAt = &nextDue
	s.UpdatedAt = at

	if s.PreviousRuns == nil {
		s.PreviousRuns = make(map[string]string)
	}
	s.PreviousRuns["last_run_id"] = runID.String()
}
