package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunSummary: итог одного запуска графа.
//
// История выполнения не хранится: сводка живёт ровно столько,
// сколько нужно, чтобы отдать её в ответ API, лог или шину событий.
type RunSummary struct {
	// RunID: идентификатор запуска, совпадает с Event.RunID.
	RunID uuid.UUID `json:"run_id"`

	// FlowID: сохранённый flow, если запуск шёл из каталога.
	FlowID *uuid.UUID `json:"flow_id,omitempty"`

	// ScheduleID: расписание, если запуск создан scheduler'ом.
	ScheduleID *uuid.UUID `json:"schedule_id,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Visited: сколько узлов посещено.
	Visited int `json:"visited"`

	// Failed: сколько http_request завершились fail.
	Failed int `json:"failed"`
}

// Duration возвращает продолжительность запуска.
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// HasFailures возвращает true, если хотя бы один узел дал fail.
func (s *RunSummary) HasFailures() bool {
	return s.Failed > 0
}
