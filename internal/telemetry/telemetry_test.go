package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/engine"
)

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug {
		t.Error("expected debug")
	}
	if ParseLevel("WARN") != slog.LevelWarn {
		t.Error("expected warn")
	}
	if ParseLevel("") != slog.LevelInfo {
		t.Error("expected info by default")
	}
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "INFO", "json")
	observe := LogObserver(logger)

	runID := uuid.New()

	// eval:start пишется на DEBUG и при INFO не виден
	observe(engine.Event{Name: engine.EventStart, RunID: runID, Node: domain.Node{ID: "t"}})
	if buf.Len() != 0 {
		t.Errorf("expected no output for start event, got %s", buf.String())
	}

	observe(engine.Event{
		Name:  "t",
		RunID: runID,
		Node: domain.Node{
			ID:     "t",
			Type:   domain.NodeTypeTerminate,
			Config: &domain.TerminateConfig{Reason: "done"},
		},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry["msg"] != "terminate reached" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["reason"] != "done" {
		t.Errorf("expected reason=done, got %v", entry["reason"])
	}
	if entry["run_id"] != runID.String() || entry["node_id"] != "t" {
		t.Errorf("expected run_id and node_id, got %v", entry)
	}
}

func TestLogObserver_HTTPFail(t *testing.T) {
	var buf bytes.Buffer
	observe := LogObserver(NewLogger(&buf, "INFO", "text"))

	observe(engine.Event{
		Name:   "h",
		Node:   domain.Node{ID: "h", Type: domain.NodeTypeHTTPRequest},
		Result: domain.Failed(errors.New("connection refused")),
	})

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "connection refused") {
		t.Errorf("expected warn with error, got %s", out)
	}
}

func TestMetrics_Observer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	observe := m.Observer()

	http := domain.Node{ID: "h", Type: domain.NodeTypeHTTPRequest}

	observe(engine.Event{Name: engine.EventStart, Node: http})
	observe(engine.Event{Name: "h", Node: http, Result: domain.Succeeded(map[string]any{})})
	observe(engine.Event{Name: "h", Node: http, Result: domain.Failed(errors.New("boom"))})

	if v := testutil.ToFloat64(m.nodeEvents.WithLabelValues("start", "http_request")); v != 1 {
		t.Errorf("expected 1 start event, got %v", v)
	}
	if v := testutil.ToFloat64(m.nodeEvents.WithLabelValues("dispatched", "http_request")); v != 2 {
		t.Errorf("expected 2 dispatched events, got %v", v)
	}
	if v := testutil.ToFloat64(m.httpRequests.WithLabelValues("success")); v != 1 {
		t.Errorf("expected 1 success, got %v", v)
	}
	if v := testutil.ToFloat64(m.httpRequests.WithLabelValues("fail")); v != 1 {
		t.Errorf("expected 1 fail, got %v", v)
	}

	m.RunFinished(150 * time.Millisecond)
	if v := testutil.ToFloat64(m.runs); v != 1 {
		t.Errorf("expected 1 run, got %v", v)
	}
}
