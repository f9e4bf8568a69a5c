package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/engine"
)

// Graph DTOs

// ValidateRequest: запрос на проверку описания графа.
type ValidateRequest struct {
	Nodes []domain.Node `json:"nodes"`
}

// ValidationIssue: одна проблема описания графа.
type ValidationIssue struct {
	NodeID  string `json:"node_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidateResponse: результат проверки.
type ValidateResponse struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// IssuesFromError разворачивает результат engine.Validate.
func IssuesFromError(err error) []ValidationIssue {
	errs := engine.ValidationErrors(err)
	if len(errs) == 0 && err != nil {
		return []ValidationIssue{{Message: err.Error()}}
	}

	issues := make([]ValidationIssue, len(errs))
	for i, ve := range errs {
		issues[i] = ValidationIssue{
			NodeID:  ve.NodeID,
			Field:   ve.Field,
			Message: ve.Message,
		}
	}
	return issues
}

// Run DTOs

// RunOptions: опции обхода, общие для ad-hoc и сохранённых запусков.
type RunOptions struct {
	// Entry: ID узлов входа. Пусто: узлы без входящих рёбер.
	Entry []string `json:"entry,omitempty"`

	// PreviousRuns: контекст прошлых запусков.
	PreviousRuns map[string]string `json:"previous_runs,omitempty"`

	// StopOnTerminate: не продолжать обход после terminate.
	StopOnTerminate bool `json:"stop_on_terminate,omitempty"`

	// SkipOnFailure: не идти в потомков упавшего http_request.
	SkipOnFailure bool `json:"skip_on_failure,omitempty"`
}

// EngineOptions возвращает опции движка.
func (o RunOptions) EngineOptions() []engine.Option {
	var opts []engine.Option
	if o.StopOnTerminate {
		opts = append(opts, engine.WithStopOnTerminate())
	}
	if o.SkipOnFailure {
		opts = append(opts, engine.WithSkipOnFailure())
	}
	return opts
}

// RunRequest: запрос на ad-hoc запуск графа.
type RunRequest struct {
	Nodes []domain.Node `json:"nodes"`
	RunOptions

	// Validate: проверить граф перед запуском.
	// Сам движок граф не проверяет.
	Validate bool `json:"validate,omitempty"`
}

// CreateRunRequest: запрос на запуск сохранённого flow.
type CreateRunRequest struct {
	RunOptions

	// Async: вернуть run_id сразу, не дожидаясь конца обхода.
	Async bool `json:"async,omitempty"`
}

// RunStartedResponse: ответ на асинхронный запуск.
type RunStartedResponse struct {
	RunID uuid.UUID `json:"run_id"`
}

// Flow DTOs

// CreateFlowRequest: запрос на создание flow.
type CreateFlowRequest struct {
	Name     string        `json:"name"`
	Nodes    []domain.Node `json:"nodes"`
	Entry    []string      `json:"entry,omitempty"`
	IsActive *bool         `json:"is_active,omitempty"`
}

// UpdateFlowRequest: запрос на обновление flow.
type UpdateFlowRequest struct {
	Name     *string        `json:"name,omitempty"`
	Nodes    *[]domain.Node `json:"nodes,omitempty"`
	Entry    *[]string      `json:"entry,omitempty"`
	IsActive *bool          `json:"is_active,omitempty"`
}

// FlowResponse: ответ с flow.
type FlowResponse struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Nodes     []domain.Node `json:"nodes"`
	Entry     []string      `json:"entry,omitempty"`
	IsActive  bool          `json:"is_active"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// FlowFromDomain конвертирует domain.Flow в FlowResponse.
func FlowFromDomain(f domain.Flow) FlowResponse {
	nodes := f.Nodes
	if nodes == nil {
		nodes = []domain.Node{}
	}
	return FlowResponse{
		ID:        f.ID,
		Name:      f.Name,
		Nodes:     nodes,
		Entry:     f.Entry,
		IsActive:  f.IsActive,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest: запрос на создание schedule.
type CreateScheduleRequest struct {
	Name         string            `json:"name"`
	CronExpr     string            `json:"cron_expr,omitempty"`
	IntervalSec  int               `json:"interval_sec,omitempty"`
	Timezone     string            `json:"timezone,omitempty"`
	Enabled      bool              `json:"enabled"`
	PreviousRuns map[string]string `json:"previous_runs,omitempty"`
}

// UpdateScheduleRequest: запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name         *string            `json:"name,omitempty"`
	CronExpr     *string            `json:"cron_expr,omitempty"`
	IntervalSec  *int               `json:"interval_sec,omitempty"`
	Timezone     *string            `json:"timezone,omitempty"`
	PreviousRuns *map[string]string `json:"previous_runs,omitempty"`
}

// SetEnabledRequest: запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse: ответ с schedule.
type ScheduleResponse struct {
	ID           uuid.UUID         `json:"id"`
	FlowID       uuid.UUID         `json:"flow_id"`
	Name         string            `json:"name"`
	CronExpr     string            `json:"cron_expr,omitempty"`
	IntervalSec  int               `json:"interval_sec,omitempty"`
	Timezone     string            `json:"timezone"`
	Enabled      bool              `json:"enabled"`
	NextDueAt    *time.Time        `json:"next_due_at,omitempty"`
	LastRunAt    *time.Time        `json:"last_run_at,omitempty"`
	LastRunID    *uuid.UUID        `json:"last_run_id,omitempty"`
	PreviousRuns map[string]string `json:"previous_runs,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:           s.ID,
		FlowID:       s.FlowID,
		Name:         s.Name,
		CronExpr:     s.CronExpr,
		IntervalSec:  s.IntervalSec,
		Timezone:     s.Timezone,
		Enabled:      s.Enabled,
		NextDueAt:    s.NextDueAt,
		LastRunAt:    s.LastRunAt,
		LastRunID:    s.LastRunID,
		PreviousRuns: s.PreviousRuns,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}
