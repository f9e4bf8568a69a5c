package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/engine"
	"github.com/shaiso/flowrunner/internal/orchestrator"
	"github.com/shaiso/flowrunner/internal/repo"
)

// FlowStore: хранилище описаний графов (реализует *repo.FlowRepo).
type FlowStore interface {
	List(ctx context.Context) ([]domain.Flow, error)
	Create(ctx context.Context, flow *domain.Flow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error)
	Update(ctx context.Context, flow *domain.Flow) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ScheduleStore: хранилище расписаний (реализует *repo.ScheduleRepo).
type ScheduleStore interface {
	List(ctx context.Context, filter repo.ScheduleFilter) ([]domain.Schedule, error)
	Create(ctx context.Context, s *domain.Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

// Runner выполняет графы (реализует *orchestrator.Orchestrator).
type Runner interface {
	Execute(ctx context.Context, req orchestrator.Request) (*orchestrator.Report, error)
	Start(ctx context.Context, req orchestrator.Request, onDone func(*domain.RunSummary)) (*engine.Execution, error)
}

// Handler: главный обработчик API с зависимостями.
type Handler struct {
	flows     FlowStore
	schedules ScheduleStore
	runner    Runner
	redis     *redis.Client
	logger    *slog.Logger
}

// Config: конфигурация для создания Handler.
type Config struct {
	Flows     FlowStore
	Schedules ScheduleStore
	Runner    Runner

	// Redis: клиент шины событий; nil отключает GET /runs/{id}/stream.
	Redis *redis.Client

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		flows:     cfg.Flows,
		schedules: cfg.Schedules,
		runner:    cfg.Runner,
		redis:     cfg.Redis,
		logger:    logger,
	}
}
