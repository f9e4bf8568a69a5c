package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/engine"
	"github.com/shaiso/flowrunner/internal/orchestrator"
	"github.com/shaiso/flowrunner/internal/repo"
)

// ScheduleStore: хранилище расписаний (repo.ScheduleRepo).
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) error
}

// FlowStore: хранилище графов (repo.FlowRepo).
type FlowStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error)
}

// Runner запускает граф (orchestrator.Orchestrator).
type Runner interface {
	Start(ctx context.Context, req orchestrator.Request, onDone func(*domain.RunSummary)) (*engine.Execution, error)
}

// Scheduler запускает сохранённые графы по расписанию.
type Scheduler struct {
	schedules ScheduleStore
	flows     FlowStore
	runner    Runner
	logger    *slog.Logger
	batchSize int
	now       func() time.Time

	// inflight: запуски, которые ещё идут.
	inflight sync.WaitGroup
}

// Config: конфигурация Scheduler.
type Config struct {
	Schedules ScheduleStore
	Flows     FlowStore
	Runner    Runner
	Logger    *slog.Logger
	BatchSize int // расписаний за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		schedules: cfg.Schedules,
		flows:     cfg.Flows,
		runner:    cfg.Runner,
		logger:    logger,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Tick обрабатывает расписания, чьё время пришло.
//
// Запуски стартуют асинхронно, Tick их не ждёт.
// Ошибка одного расписания не мешает остальным.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now().UTC()

	due, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	var started int
	for i := range due {
		sched := &due[i]

		ok, err := s.process(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			continue
		}
		if ok {
			started++
		}
	}

	s.logger.Info("scheduler tick completed", "due", len(due), "runs_started", started)
	return nil
}

// process запускает flow расписания и сдвигает next_due_at.
// Возвращает true, если запуск стартовал.
func (s *Scheduler) process(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	next, err := CalculateNextDue(sched, now)
	if err != nil {
		return false, err
	}

	flow, err := s.flows.GetByID(ctx, sched.FlowID)
	if errors.Is(err, repo.ErrNotFound) {
		s.logger.Warn("flow not found for schedule, disabling",
			"schedule_id", sched.ID,
			"flow_id", sched.FlowID,
		)
		sched.Enabled = false
		sched.UpdatedAt = now
		return false, s.schedules.Update(ctx, sched)
	}
	if err != nil {
		return false, fmt.Errorf("get flow: %w", err)
	}

	if !flow.IsActive {
		// неактивный flow пропускаем, но время сдвигаем
		sched.NextDueAt = &next
		sched.UpdatedAt = now
		return false, s.schedules.Update(ctx, sched)
	}

	scheduleID := sched.ID
	s.inflight.Add(1)
	x, err := s.runner.Start(context.WithoutCancel(ctx), orchestrator.Request{
		Nodes:        flow.Nodes,
		Entry:        flow.Entry,
		PreviousRuns: copyPreviousRuns(sched.PreviousRuns),
		FlowID:       &flow.ID,
		ScheduleID:   &scheduleID,
	}, func(*domain.RunSummary) { s.inflight.Done() })
	if err != nil {
		s.inflight.Done()
		// граф без входов запускать бессмысленно, но расписание сдвигаем
		sched.NextDueAt = &next
		sched.UpdatedAt = now
		if uerr := s.schedules.Update(ctx, sched); uerr != nil {
			return false, errors.Join(err, uerr)
		}
		return false, fmt.Errorf("start run: %w", err)
	}

	sched.RecordRun(x.ID(), now, next)
	if err := s.schedules.Update(ctx, sched); err != nil {
		return true, fmt.Errorf("update schedule: %w", err)
	}

	s.logger.Debug("scheduled run started",
		"schedule_id", sched.ID,
		"flow_id", flow.ID,
		"run_id", x.ID(),
		"next_due_at", next,
	)
	return true, nil
}

// Wait ждёт завершения всех запущенных графов.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

func copyPreviousRuns(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
