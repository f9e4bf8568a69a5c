package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shaiso/flowrunner/internal/domain"
)

// GraphFile: файл описания графа.
//
// Принимается либо JSON-массив узлов, либо объект
// {"nodes": [...], "entry": [...]}.
type GraphFile struct {
	Nodes []domain.Node `json:"nodes"`
	Entry []string      `json:"entry,omitempty"`

	// Raw: массив узлов как есть, для отправки в API.
	Raw json.RawMessage `json:"-"`
}

// ReadGraph читает описание графа из файла. "-" означает stdin.
func ReadGraph(path string) (*GraphFile, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}

	return ParseGraph(data)
}

// ParseGraph разбирает описание графа.
func ParseGraph(data []byte) (*GraphFile, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("parse graph: empty input")
	}

	if trimmed[0] == '[' {
		nodes, err := domain.ParseNodes(trimmed)
		if err != nil {
			return nil, err
		}
		return &GraphFile{Nodes: nodes, Raw: json.RawMessage(trimmed)}, nil
	}

	var doc struct {
		Nodes json.RawMessage `json:"nodes"`
		Entry []string        `json:"entry"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("parse graph: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("parse graph: nodes are missing")
	}

	nodes, err := domain.ParseNodes(doc.Nodes)
	if err != nil {
		return nil, err
	}

	return &GraphFile{Nodes: nodes, Entry: doc.Entry, Raw: doc.Nodes}, nil
}

// parseKeyValues разбирает повторяющийся флаг KEY=VALUE.
func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid format %q, expected KEY=VALUE", kv)
		}
		out[key] = value
	}
	return out, nil
}

func formatIssue(issue ValidationIssue) string {
	if issue.NodeID == "" {
		return issue.Message
	}
	return fmt.Sprintf("node %s: %s", issue.NodeID, issue.Message)
}

var eventHeaders = []string{"EVENT", "NODE", "TYPE", "RESULT"}

// eventRow форматирует событие для таблицы.
func eventRow(ev EventMessage) []string {
	id, _ := ev.Payload["id"].(string)
	typ, _ := ev.Payload["type"].(string)
	return []string{ev.Event, id, typ, formatResult(ev.Payload)}
}

// formatResult возвращает краткий итог эффекта узла.
func formatResult(payload map[string]any) string {
	if fail, ok := payload["fail"]; ok {
		return fmt.Sprintf("fail: %v", fail)
	}
	success, ok := payload["success"]
	if !ok {
		return ""
	}

	data, err := json.Marshal(success)
	if err != nil {
		return "success"
	}
	s := string(data)
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return "success: " + s
}

func eventRows(events []EventMessage) [][]string {
	rows := make([][]string, len(events))
	for i, ev := range events {
		rows[i] = eventRow(ev)
	}
	return rows
}

func formatPreviousRuns(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, ",")
}
