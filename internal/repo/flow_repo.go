package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/flowrunner/internal/domain"
)

// FlowRepo: репозиторий сохранённых графов.
//
// Узлы хранятся как JSONB в формате обмена, так что граф, сохранённый
// редактором, возвращается без изменений.
type FlowRepo struct {
	pool *pgxpool.Pool
}

// NewFlowRepo создаёт новый FlowRepo.
func NewFlowRepo(pool *pgxpool.Pool) *FlowRepo {
	return &FlowRepo{pool: pool}
}

const flowColumns = `id, name, nodes, entry, is_active, created_at, updated_at`

// Create создаёт новый flow.
func (r *FlowRepo) Create(ctx context.Context, flow *domain.Flow) error {
	nodes, err := marshalNodes(flow.Nodes)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO flows (`+flowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		flow.ID,
		flow.Name,
		nodes,
		nonNilStrings(flow.Entry),
		flow.IsActive,
		flow.CreatedAt,
		flow.UpdatedAt,
	)
	if isPgError(err, pgUniqueViolation) {
		return fmt.Errorf("%w: flow %q", ErrAlreadyExists, flow.Name)
	}
	if err != nil {
		return fmt.Errorf("insert flow: %w", err)
	}
	return nil
}

// GetByID возвращает flow по ID.
func (r *FlowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+flowColumns+` FROM flows WHERE id = $1`, id)
	return scanFlow(row)
}

// List возвращает все flows, новые первыми.
func (r *FlowRepo) List(ctx context.Context) ([]domain.Flow, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+flowColumns+` FROM flows ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	flows := make([]domain.Flow, 0)
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, *flow)
	}
	return flows, rows.Err()
}

// Update заменяет граф, имя и флаг активности.
func (r *FlowRepo) Update(ctx context.Context, flow *domain.Flow) error {
	nodes, err := marshalNodes(flow.Nodes)
	if err != nil {
		return err
	}

	flow.UpdatedAt = time.Now().UTC()

	result, err := r.pool.Exec(ctx, `
		UPDATE flows
		SET name = $2, nodes = $3, entry = $4, is_active = $5, updated_at = $6
		WHERE id = $1
	`,
		flow.ID,
		flow.Name,
		nodes,
		nonNilStrings(flow.Entry),
		flow.IsActive,
		flow.UpdatedAt,
	)
	if isPgError(err, pgUniqueViolation) {
		return fmt.Errorf("%w: flow %q", ErrAlreadyExists, flow.Name)
	}
	if err != nil {
		return fmt.Errorf("update flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет flow вместе с его расписаниями.
func (r *FlowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanFlow(row pgx.Row) (*domain.Flow, error) {
	var flow domain.Flow
	var nodes []byte

	err := row.Scan(
		&flow.ID,
		&flow.Name,
		&nodes,
		&flow.Entry,
		&flow.IsActive,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan flow: %w", err)
	}

	flow.Nodes, err = domain.ParseNodes(nodes)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", flow.ID, err)
	}

	return &flow, nil
}

func marshalNodes(nodes []domain.Node) ([]byte, error) {
	if nodes == nil {
		nodes = []domain.Node{}
	}
	data, err := json.Marshal(nodes)
	if err != nil {
		return nil, fmt.Errorf("marshal nodes: %w", err)
	}
	return data, nil
}
