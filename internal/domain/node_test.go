package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseNodes_EditorGraph(t *testing.T) {
	data := []byte(`[
		{"id": "start", "type": "start", "name": "Start", "config": {}, "outputs": ["start:fetch"]},
		{"id": "fetch", "type": "http_request", "name": "Fetch",
		 "config": {"method": "get", "url": "http://x/todos/1", "headers": {"Accept": "application/json"}},
		 "outputs": ["fetch:stop"]},
		{"id": "stop", "type": "terminate", "name": "Stop", "config": {"reason": "done"}, "outputs": []}
	]`)

	nodes, err := ParseNodes(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}

	// start: без конфигурации
	if nodes[0].Config != nil {
		t.Errorf("start node should have nil config, got %#v", nodes[0].Config)
	}

	cfg := nodes[1].HTTPRequest()
	if cfg == nil {
		t.Fatal("expected http_request config")
	}
	if cfg.Method != "get" || cfg.URL != "http://x/todos/1" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Headers["Accept"] != "application/json" {
		t.Errorf("expected Accept header, got %v", cfg.Headers)
	}

	term := nodes[2].Terminate()
	if term == nil || term.Reason != "done" {
		t.Errorf("unexpected terminate config: %+v", term)
	}
	if !nodes[2].IsLeaf() {
		t.Error("stop should be a leaf")
	}
}

func TestParseNodes_UnknownType(t *testing.T) {
	_, err := ParseNodes([]byte(`[{"id": "x", "type": "parallel", "outputs": []}]`))
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	if !errors.Is(err, ErrUnknownNodeType) {
		t.Errorf("expected ErrUnknownNodeType, got %v", err)
	}
}

func TestParseNodes_InvalidConfig(t *testing.T) {
	_, err := ParseNodes([]byte(`[{"id": "x", "type": "http_request", "config": {"url": 42}}]`))
	if !errors.Is(err, ErrInvalidNodeConfig) {
		t.Errorf("expected ErrInvalidNodeConfig, got %v", err)
	}
}

func TestParseNodes_MissingConfigIsLenient(t *testing.T) {
	nodes, err := ParseNodes([]byte(`[{"id": "x", "type": "http_request", "config": null}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nodes[0].HTTPRequest() != nil {
		t.Error("expected nil config")
	}
}

func TestNode_MarshalJSON(t *testing.T) {
	n := Node{ID: "end", Type: NodeTypeEnd, Name: "End"}

	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := string(data)
	// пустые outputs кодируются как [], а не null
	if !strings.Contains(s, `"outputs":[]`) {
		t.Errorf("expected empty outputs array, got %s", s)
	}
	if strings.Contains(s, `"config"`) {
		t.Errorf("expected no config, got %s", s)
	}
}

func TestNodeType_IsValid(t *testing.T) {
	for _, nt := range NodeTypes() {
		if !nt.IsValid() {
			t.Errorf("%s should be valid", nt)
		}
	}
	if NodeType("delay").IsValid() {
		t.Error("delay should not be valid")
	}
}
