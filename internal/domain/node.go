package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NodeType: тип узла графа.
//
// Набор типов закрыт: каждому типу соответствует свой эффект
// и своя форма конфигурации.
type NodeType string

const (
	// NodeTypeStart: точка входа, эффекта нет.
	NodeTypeStart NodeType = "start"

	// NodeTypeHTTPRequest: HTTP-запрос, единственный асинхронный тип.
	NodeTypeHTTPRequest NodeType = "http_request"

	// NodeTypeLog: логирование выполняют наблюдатели, эффекта нет.
	NodeTypeLog NodeType = "log"

	// NodeTypeTerminate: семантическая метка остановки (обход не прерывает).
	NodeTypeTerminate NodeType = "terminate"

	// NodeTypeEnd: семантическая метка завершения flow.
	NodeTypeEnd NodeType = "end"
)

// Ошибки декодирования узлов.
var (
	// ErrUnknownNodeType: тип узла не входит в закрытый набор.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrInvalidNodeConfig: конфигурация не соответствует типу узла.
	ErrInvalidNodeConfig = errors.New("invalid node config")
)

// NodeTypes возвращает все известные типы узлов в фиксированном порядке.
func NodeTypes() []NodeType {
	return []NodeType{
		NodeTypeStart,
		NodeTypeHTTPRequest,
		NodeTypeLog,
		NodeTypeTerminate,
		NodeTypeEnd,
	}
}

// IsValid проверяет, что тип входит в закрытый набор.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeStart, NodeTypeHTTPRequest, NodeTypeLog, NodeTypeTerminate, NodeTypeEnd:
		return true
	default:
		return false
	}
}

// NodeConfig: конфигурация узла, зависящая от типа (tagged variant).
//
// Реализации: *HTTPRequestConfig, *TerminateConfig.
// Для start, log и end конфигурация отсутствует (nil).
type NodeConfig interface {
	// NodeType возвращает тип узла, которому принадлежит конфигурация.
	NodeType() NodeType
}

// HTTPRequestConfig: конфигурация узла http_request.
type HTTPRequestConfig struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

// NodeType реализует NodeConfig.
func (c *HTTPRequestConfig) NodeType() NodeType { return NodeTypeHTTPRequest }

// TerminateConfig: конфигурация узла terminate.
type TerminateConfig struct {
	Reason string `json:"reason"`
}

// NodeType реализует NodeConfig.
func (c *TerminateConfig) NodeType() NodeType { return NodeTypeTerminate }

// Node: единица работы в графе.
//
// Outputs: упорядоченный список дескрипторов рёбер вида "<id>:<targetId>".
// Пустой Outputs делает узел листом обхода.
type Node struct {
	// ID: уникальный в рамках графа идентификатор.
	// Используется как ключ индекса и как имя события узла.
	ID string

	// Type: тип узла.
	Type NodeType

	// Name: человекочитаемое имя, уникальность не требуется.
	Name string

	// Config: конфигурация, зависящая от Type.
	Config NodeConfig

	// Outputs: дескрипторы исходящих рёбер.
	Outputs []string
}

// HTTPRequest возвращает конфигурацию http_request или nil.
func (n Node) HTTPRequest() *HTTPRequestConfig {
	cfg, _ := n.Config.(*HTTPRequestConfig)
	return cfg
}

// Terminate возвращает конфигурацию terminate или nil.
func (n Node) Terminate() *TerminateConfig {
	cfg, _ := n.Config.(*TerminateConfig)
	return cfg
}

// IsLeaf возвращает true, если у узла нет исходящих дескрипторов.
func (n Node) IsLeaf() bool {
	return len(n.Outputs) == 0
}

// nodeJSON: форма узла в формате обмена.
type nodeJSON struct {
	ID      string          `json:"id"`
	Type    NodeType        `json:"type"`
	Name    string          `json:"name"`
	Config  json.RawMessage `json:"config,omitempty"`
	Outputs []string        `json:"outputs"`
}

// MarshalJSON кодирует узел в формат обмена.
func (n Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{
		ID:      n.ID,
		Type:    n.Type,
		Name:    n.Name,
		Outputs: n.Outputs,
	}
	if out.Outputs == nil {
		out.Outputs = []string{}
	}

	if n.Config != nil {
		raw, err := json.Marshal(n.Config)
		if err != nil {
			return nil, fmt.Errorf("marshal config: %w", err)
		}
		out.Config = raw
	}

	return json.Marshal(out)
}

// UnmarshalJSON декодирует узел, выбирая форму config по полю type.
//
// Для start, log и end поле config игнорируется: редактор
// присылает для них пустой объект.
func (n *Node) UnmarshalJSON(data []byte) error {
	var in nodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	cfg, err := decodeConfig(in.Type, in.Config)
	if err != nil {
		return fmt.Errorf("node %q: %w", in.ID, err)
	}

	*n = Node{
		ID:      in.ID,
		Type:    in.Type,
		Name:    in.Name,
		Config:  cfg,
		Outputs: in.Outputs,
	}
	return nil
}

// decodeConfig декодирует config для конкретного типа узла.
//
// Отсутствующий config у http_request и terminate не считается ошибкой
// декодирования: узел получает nil Config, а проблему сообщает Validate
// (или шаг http_request вернёт fail при выполнении).
func decodeConfig(t NodeType, raw json.RawMessage) (NodeConfig, error) {
	switch t {
	case NodeTypeStart, NodeTypeLog, NodeTypeEnd:
		return nil, nil

	case NodeTypeHTTPRequest:
		if isEmptyConfig(raw) {
			return nil, nil
		}
		cfg := &HTTPRequestConfig{}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidNodeConfig, err)
		}
		return cfg, nil

	case NodeTypeTerminate:
		if isEmptyConfig(raw) {
			return nil, nil
		}
		cfg := &TerminateConfig{}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidNodeConfig, err)
		}
		return cfg, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, t)
	}
}

func isEmptyConfig(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// ParseNodes декодирует описание графа (JSON-массив узлов).
func ParseNodes(data []byte) ([]Node, error) {
	var nodes []Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("parse nodes: %w", err)
	}
	return nodes, nil
}
