package domain

import (
	"time"

	"github.com/google/uuid"
)

// Flow: сохранённое описание графа.
//
// Flow: это то, что генерирует визуальный редактор: плоский список
// узлов. Движок получает из него Nodes и Entry.
type Flow struct {
	// ID: уникальный идентификатор flow.
	ID uuid.UUID `json:"id"`

	// Name: уникальное имя flow (например, "sync-todos").
	Name string `json:"name"`

	// Nodes: узлы графа в формате обмена.
	Nodes []Node `json:"nodes"`

	// Entry: ID узлов входа.
	// Если пусто, входом считаются узлы без входящих рёбер.
	Entry []string `json:"entry,omitempty"`

	// IsActive: флаг активности. Неактивные flows не запускаются по расписанию.
	IsActive bool `json:"is_active"`

	// CreatedAt: время создания flow.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt: время последнего изменения графа.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewFlow создаёт новый flow с ID и временными метками.
func NewFlow(name string, nodes []Node, entry []string) *Flow {
	now := time.Now().UTC()
	return &Flow{
		ID:        uuid.New(),
		Name:      name,
		Nodes:     nodes,
		Entry:     entry,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
