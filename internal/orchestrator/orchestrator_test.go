package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/engine"
	"github.com/shaiso/flowrunner/internal/telemetry"
)

// memorySink запоминает всё, что ему отправили.
type memorySink struct {
	mu        sync.Mutex
	events    []string
	completed []*domain.RunSummary
	failWith  error
}

func (s *memorySink) PublishEvent(_ context.Context, ev engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev.Name)
	return s.failWith
}

func (s *memorySink) PublishCompleted(_ context.Context, summary *domain.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, summary)
	return s.failWith
}

func testGraph(url string) []domain.Node {
	return []domain.Node{
		{ID: "start", Type: domain.NodeTypeStart, Outputs: []string{"start:fetch"}},
		{ID: "fetch", Type: domain.NodeTypeHTTPRequest,
			Config:  &domain.HTTPRequestConfig{Method: "get", URL: url},
			Outputs: []string{"fetch:log"}},
		{ID: "log", Type: domain.NodeTypeLog, Outputs: []string{"log:end"}},
		{ID: "end", Type: domain.NodeTypeEnd},
	}
}

func TestExecute_RootsByDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 1}`))
	}))
	defer server.Close()

	sink := &memorySink{}
	o := New(Config{
		Metrics: telemetry.NewMetrics(prometheus.NewRegistry()),
		Sinks:   []Sink{sink},
	})

	report, err := o.Execute(context.Background(), Request{Nodes: testGraph(server.URL)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Summary.Visited != 4 {
		t.Errorf("expected 4 visited, got %d", report.Summary.Visited)
	}
	if report.Summary.HasFailures() {
		t.Errorf("expected no failures, got %d", report.Summary.Failed)
	}
	if len(report.Events) != 8 {
		t.Errorf("expected 8 events, got %d", len(report.Events))
	}
	for _, ev := range report.Events {
		if ev.RunID != report.Summary.RunID {
			t.Errorf("event %s has run id %s, expected %s", ev.Name, ev.RunID, report.Summary.RunID)
		}
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 8 {
		t.Errorf("sink: expected 8 events, got %d", len(sink.events))
	}
	if len(sink.completed) != 1 {
		t.Errorf("sink: expected 1 completion, got %d", len(sink.completed))
	}
}

func TestExecute_CountsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text"))
	}))
	defer server.Close()

	report, err := New(Config{}).Execute(context.Background(), Request{Nodes: testGraph(server.URL)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Summary.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", report.Summary.Failed)
	}
	// после fail обход продолжается
	if report.Summary.Visited != 4 {
		t.Errorf("expected 4 visited, got %d", report.Summary.Visited)
	}
}

func TestExecute_SkipOnFailureOption(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text"))
	}))
	defer server.Close()

	report, err := New(Config{}).Execute(context.Background(), Request{
		Nodes:   testGraph(server.URL),
		Options: []engine.Option{engine.WithSkipOnFailure()},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Summary.Visited != 2 {
		t.Errorf("expected 2 visited, got %d", report.Summary.Visited)
	}
}

func TestExecute_ExplicitEntry(t *testing.T) {
	report, err := New(Config{}).Execute(context.Background(), Request{
		Nodes: testGraph("http://unused"),
		Entry: []string{"log"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Summary.Visited != 2 {
		t.Errorf("expected 2 visited (log, end), got %d", report.Summary.Visited)
	}
}

func TestExecute_UnknownEntry(t *testing.T) {
	_, err := New(Config{}).Execute(context.Background(), Request{
		Nodes: testGraph("http://unused"),
		Entry: []string{"ghost"},
	})
	if !errors.Is(err, ErrUnknownEntry) {
		t.Errorf("expected ErrUnknownEntry, got %v", err)
	}
}

func TestExecute_NoEntry(t *testing.T) {
	_, err := New(Config{}).Execute(context.Background(), Request{})
	if !errors.Is(err, ErrNoEntry) {
		t.Errorf("expected ErrNoEntry, got %v", err)
	}
}

func TestExecute_SinkErrorsDoNotStopRun(t *testing.T) {
	sink := &memorySink{failWith: errors.New("broker down")}

	report, err := New(Config{Sinks: []Sink{sink}}).Execute(context.Background(), Request{
		Nodes: testGraph("http://unused"),
		Entry: []string{"log"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Summary.Visited != 2 {
		t.Errorf("expected 2 visited, got %d", report.Summary.Visited)
	}
}

func TestExecute_HandlersReceiveEvents(t *testing.T) {
	var names []string

	_, err := New(Config{}).Execute(context.Background(), Request{
		Nodes:    testGraph("http://unused"),
		Entry:    []string{"end"},
		Handlers: []engine.Handler{func(ev engine.Event) { names = append(names, ev.Name) }},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(names) != 2 || names[0] != engine.EventStart || names[1] != "end" {
		t.Errorf("expected [eval:start end], got %v", names)
	}
}
