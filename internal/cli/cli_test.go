package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/mq"
)

const linearGraph = `[
	{"id": "start", "type": "start", "name": "Start", "config": {}, "outputs": ["start:log"]},
	{"id": "log", "type": "log", "name": "Log", "config": {}, "outputs": ["log:end"]},
	{"id": "end", "type": "end", "name": "End", "config": {}, "outputs": []}
]`

func TestParseGraph_Array(t *testing.T) {
	graph, err := ParseGraph([]byte(linearGraph))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(graph.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(graph.Nodes))
	}
	if graph.Nodes[1].Type != domain.NodeTypeLog {
		t.Errorf("expected log node, got %s", graph.Nodes[1].Type)
	}
	if len(graph.Entry) != 0 {
		t.Errorf("expected no entry, got %v", graph.Entry)
	}
	if !json.Valid(graph.Raw) {
		t.Error("expected raw nodes to be valid JSON")
	}
}

func TestParseGraph_Object(t *testing.T) {
	data := `{"entry": ["log"], "nodes": ` + linearGraph + `}`

	graph, err := ParseGraph([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(graph.Nodes) != 3 {
		t.Errorf("expected 3 nodes, got %d", len(graph.Nodes))
	}
	if len(graph.Entry) != 1 || graph.Entry[0] != "log" {
		t.Errorf("expected entry [log], got %v", graph.Entry)
	}
}

func TestParseGraph_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":        "   ",
		"no nodes":     `{"entry": ["a"]}`,
		"unknown type": `[{"id": "a", "type": "bogus"}]`,
		"garbage":      `{not json`,
	}

	for name, data := range cases {
		if _, err := ParseGraph([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseKeyValues(t *testing.T) {
	got, err := parseKeyValues([]string{"last_run_id=abc", "note=a=b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["last_run_id"] != "abc" || got["note"] != "a=b" {
		t.Errorf("unexpected result: %v", got)
	}

	if _, err := parseKeyValues([]string{"novalue"}); err == nil {
		t.Error("expected error for missing '='")
	}

	if got, _ := parseKeyValues(nil); got != nil {
		t.Errorf("expected nil map, got %v", got)
	}
}

func TestOutput_TableAndJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer

	out := NewOutputTo(false, &stdout, &stderr)
	out.Print([]string{"ID", "NAME"}, [][]string{{"1", "first"}}, nil)
	out.Success("done")

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, separator and row, got %q", stdout.String())
	}
	if !strings.HasPrefix(lines[1], "--") {
		t.Errorf("expected separator line, got %q", lines[1])
	}
	if stderr.String() != "done\n" {
		t.Errorf("expected message on stderr, got %q", stderr.String())
	}

	stdout.Reset()
	out = NewOutputTo(true, &stdout, &stderr)
	out.Print([]string{"ID"}, [][]string{{"1"}}, map[string]string{"id": "1"})

	var decoded map[string]string
	if err := json.Unmarshal(stdout.Bytes(), &decoded); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if decoded["id"] != "1" {
		t.Errorf("unexpected JSON: %v", decoded)
	}
}

func TestFormatResult(t *testing.T) {
	if got := formatResult(map[string]any{"fail": "boom"}); got != "fail: boom" {
		t.Errorf("unexpected fail result: %q", got)
	}
	if got := formatResult(map[string]any{"success": map[string]any{"ok": true}}); got != `success: {"ok":true}` {
		t.Errorf("unexpected success result: %q", got)
	}
	if got := formatResult(map[string]any{"id": "a"}); got != "" {
		t.Errorf("expected empty result, got %q", got)
	}

	long := strings.Repeat("x", 100)
	if got := formatResult(map[string]any{"success": long}); len(got) > len("success: ")+60 {
		t.Errorf("expected truncated result, got %d chars", len(got))
	}
}

func TestFormatBusMessage(t *testing.T) {
	ev := map[string]any{
		"event":  "fetch",
		"run_id": "run-1",
		"payload": map[string]any{
			"id": "fetch", "type": "http_request", "fail": "connection refused",
		},
	}
	msg, err := mq.NewMessage(mq.MessageTypeNodeDispatched, ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line, runID, err := formatBusMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runID != "run-1" {
		t.Errorf("expected run-1, got %s", runID)
	}
	for _, want := range []string{"node.dispatched", "node=fetch", "type=http_request", "fail: connection refused"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}

	summary := domain.RunSummary{Visited: 3, Failed: 1, StartedAt: time.Now(), FinishedAt: time.Now()}
	msg, _ = mq.NewMessage(mq.MessageTypeRunCompleted, summary)
	line, _, err = formatBusMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(line, "visited 3, failed 1") {
		t.Errorf("unexpected completion line: %q", line)
	}
}

func TestEventPrinter_FiltersByRun(t *testing.T) {
	var stdout bytes.Buffer
	p := &eventPrinter{out: NewOutputTo(false, &stdout, io.Discard), runID: "wanted"}

	for _, runID := range []string{"other", "wanted"} {
		msg, _ := mq.NewMessage(mq.MessageTypeNodeStarted, map[string]any{
			"event": "eval:start", "run_id": runID, "payload": map[string]any{"id": "a"},
		})
		if err := p.handle(context.Background(), msg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], "run=wanted") {
		t.Errorf("expected only the wanted run, got %q", stdout.String())
	}
}

func TestClient_ErrorDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/flows" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"code":"INVALID_GRAPH","message":"graph description is invalid",
			"details":[{"node_id":"a","message":"edge points to unknown node: b"}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.CreateFlow(CreateFlowRequest{Name: "x", Nodes: json.RawMessage(`[]`)})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "INVALID_GRAPH") || !strings.Contains(err.Error(), "node a: edge points") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_RunFlow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RunFlowRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Async {
			t.Error("expected sync run")
		}
		if !req.StopOnTerminate {
			t.Error("expected stop_on_terminate")
		}
		w.Write([]byte(`{"data":{"summary":{"run_id":"r1","visited":2,"failed":0},
			"events":[{"event":"eval:start","run_id":"r1","payload":{"id":"a"}}]}}`))
	}))
	defer server.Close()

	report, err := NewClient(server.URL).RunFlow("f1", RunFlowRequest{StopOnTerminate: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Summary.RunID != "r1" || report.Summary.Visited != 2 || len(report.Events) != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestRunCmd_Local(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := os.WriteFile(path, []byte(linearGraph), 0o644); err != nil {
		t.Fatalf("write graph: %v", err)
	}

	var stdout bytes.Buffer
	outputFn := func() *Output { return NewOutputTo(true, &stdout, io.Discard) }
	loggerFn := func() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

	cmd := NewRunCmd(outputFn, loggerFn)
	cmd.SetArgs([]string{"-f", path, "--validate"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report RunReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Summary.Visited != 3 {
		t.Errorf("expected 3 visited, got %d", report.Summary.Visited)
	}

	want := []string{"eval:start", "start", "eval:start", "log", "eval:start", "end"}
	if len(report.Events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(report.Events))
	}
	for i, name := range want {
		if report.Events[i].Event != name {
			t.Errorf("event %d: expected %s, got %s", i, name, report.Events[i].Event)
		}
	}
}

func TestValidateCmd_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	data := `[{"id": "a", "type": "start", "outputs": ["a:missing"]}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write graph: %v", err)
	}

	var stdout bytes.Buffer
	outputFn := func() *Output { return NewOutputTo(false, &stdout, io.Discard) }

	cmd := NewValidateCmd(func() *Client { return nil }, outputFn)
	cmd.SetArgs([]string{"-f", path})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	if !errors.Is(err, ErrInvalidGraph) {
		t.Fatalf("expected ErrInvalidGraph, got %v", err)
	}
	if !strings.Contains(stdout.String(), "missing") {
		t.Errorf("expected problem in output, got %q", stdout.String())
	}
}

func TestFormatPreviousRuns(t *testing.T) {
	got := formatPreviousRuns(map[string]string{"b": "2", "a": "1"})
	if got != "a=1,b=2" {
		t.Errorf("expected sorted pairs, got %q", got)
	}
	if got := formatPreviousRuns(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
