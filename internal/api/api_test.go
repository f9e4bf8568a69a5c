package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/engine"
	"github.com/shaiso/flowrunner/internal/orchestrator"
	"github.com/shaiso/flowrunner/internal/redisbus"
	"github.com/shaiso/flowrunner/internal/repo"
)

// memFlows: FlowStore в памяти.
type memFlows struct {
	mu    sync.Mutex
	flows map[uuid.UUID]domain.Flow
}

func newMemFlows() *memFlows {
	return &memFlows{flows: make(map[uuid.UUID]domain.Flow)}
}

func (m *memFlows) List(_ context.Context) ([]domain.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Flow, 0, len(m.flows))
	for _, f := range m.flows {
		out = append(out, f)
	}
	return out, nil
}

func (m *memFlows) Create(_ context.Context, flow *domain.Flow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.flows {
		if f.Name == flow.Name {
			return repo.ErrAlreadyExists
		}
	}
	m.flows[flow.ID] = *flow
	return nil
}

func (m *memFlows) GetByID(_ context.Context, id uuid.UUID) (*domain.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &f, nil
}

func (m *memFlows) Update(_ context.Context, flow *domain.Flow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[flow.ID]; !ok {
		return repo.ErrNotFound
	}
	m.flows[flow.ID] = *flow
	return nil
}

func (m *memFlows) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.flows, id)
	return nil
}

// memSchedules: ScheduleStore в памяти.
type memSchedules struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]domain.Schedule
}

func newMemSchedules() *memSchedules {
	return &memSchedules{schedules: make(map[uuid.UUID]domain.Schedule)}
}

func (m *memSchedules) List(_ context.Context, filter repo.ScheduleFilter) ([]domain.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Schedule, 0)
	for _, s := range m.schedules {
		if filter.FlowID != nil && s.FlowID != *filter.FlowID {
			continue
		}
		if filter.Enabled != nil && s.Enabled != *filter.Enabled {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memSchedules) Create(_ context.Context, s *domain.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ID] = *s
	return nil
}

func (m *memSchedules) GetByID(_ context.Context, id uuid.UUID) (*domain.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &s, nil
}

func (m *memSchedules) Update(_ context.Context, s *domain.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[s.ID]; !ok {
		return repo.ErrNotFound
	}
	m.schedules[s.ID] = *s
	return nil
}

func (m *memSchedules) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

func (m *memSchedules) SetEnabled(_ context.Context, id uuid.UUID, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return repo.ErrNotFound
	}
	s.Enabled = enabled
	m.schedules[id] = s
	return nil
}

type testEnv struct {
	server    *httptest.Server
	flows     *memFlows
	schedules *memSchedules
}

func newTestEnv(t *testing.T, client *redis.Client) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		flows:     newMemFlows(),
		schedules: newMemSchedules(),
	}

	h := NewHandler(Config{
		Flows:     env.flows,
		Schedules: env.schedules,
		Runner:    orchestrator.New(orchestrator.Config{Logger: logger}),
		Redis:     client,
		Logger:    logger,
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	env.server = httptest.NewServer(mux)
	t.Cleanup(env.server.Close)

	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeData(t *testing.T, resp *http.Response, v any) {
	t.Helper()

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func decodeError(t *testing.T, resp *http.Response) ErrorDetail {
	t.Helper()

	var env ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return env.Error
}

func expectStatus(t *testing.T, resp *http.Response, status int) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected status %d, got %d", status, resp.StatusCode)
	}
}

func linearGraph() []domain.Node {
	return []domain.Node{
		{ID: "start", Type: domain.NodeTypeStart, Outputs: []string{"start:log"}},
		{ID: "log", Type: domain.NodeTypeLog, Outputs: []string{"log:end"}},
		{ID: "end", Type: domain.NodeTypeEnd},
	}
}

type reportJSON struct {
	Summary domain.RunSummary `json:"summary"`
	Events  []struct {
		Event   string         `json:"event"`
		Payload map[string]any `json:"payload"`
	} `json:"events"`
}

func TestValidateGraph_ReportsIssues(t *testing.T) {
	env := newTestEnv(t, nil)

	nodes := []domain.Node{
		{ID: "a", Type: domain.NodeTypeStart, Outputs: []string{"a:missing"}},
	}
	resp := env.do(t, http.MethodPost, "/api/v1/validate", ValidateRequest{Nodes: nodes})
	expectStatus(t, resp, http.StatusOK)

	var out ValidateResponse
	decodeData(t, resp, &out)

	if out.Valid {
		t.Fatal("expected graph to be invalid")
	}
	if len(out.Issues) != 1 || out.Issues[0].NodeID != "a" {
		t.Errorf("unexpected issues: %+v", out.Issues)
	}
}

func TestValidateGraph_Valid(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/validate", ValidateRequest{Nodes: linearGraph()})
	expectStatus(t, resp, http.StatusOK)

	var out ValidateResponse
	decodeData(t, resp, &out)

	if !out.Valid {
		t.Errorf("expected graph to be valid, got %+v", out.Issues)
	}
}

func TestRunGraph_ReturnsReport(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/runs", RunRequest{Nodes: linearGraph()})
	expectStatus(t, resp, http.StatusOK)

	var report reportJSON
	decodeData(t, resp, &report)

	if report.Summary.Visited != 3 {
		t.Errorf("expected 3 visited, got %d", report.Summary.Visited)
	}

	want := []string{engine.EventStart, "start", engine.EventStart, "log", engine.EventStart, "end"}
	if len(report.Events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(report.Events))
	}
	for i, name := range want {
		if report.Events[i].Event != name {
			t.Errorf("event %d: expected %s, got %s", i, name, report.Events[i].Event)
		}
	}
}

func TestRunGraph_HTTPFailureInPayload(t *testing.T) {
	env := newTestEnv(t, nil)

	nodes := []domain.Node{
		{ID: "fetch", Type: domain.NodeTypeHTTPRequest,
			Config:  &domain.HTTPRequestConfig{Method: "GET", URL: "http://127.0.0.1:1/unreachable"},
			Outputs: []string{"fetch:end"}},
		{ID: "end", Type: domain.NodeTypeEnd},
	}

	resp := env.do(t, http.MethodPost, "/api/v1/runs", RunRequest{Nodes: nodes})
	expectStatus(t, resp, http.StatusOK)

	var report reportJSON
	decodeData(t, resp, &report)

	if report.Summary.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", report.Summary.Failed)
	}
	if report.Summary.Visited != 2 {
		t.Errorf("expected traversal to continue, visited %d", report.Summary.Visited)
	}

	fetch := report.Events[1]
	if fetch.Event != "fetch" {
		t.Fatalf("expected fetch event, got %s", fetch.Event)
	}
	if _, ok := fetch.Payload["fail"]; !ok {
		t.Errorf("expected fail in payload, got %v", fetch.Payload)
	}
	if _, ok := fetch.Payload["success"]; ok {
		t.Errorf("unexpected success in payload")
	}
}

func TestRunGraph_Errors(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/runs", RunRequest{})
	expectStatus(t, resp, http.StatusBadRequest)

	req := RunRequest{Nodes: linearGraph()}
	req.Entry = []string{"nope"}
	resp = env.do(t, http.MethodPost, "/api/v1/runs", req)
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	bad := RunRequest{Nodes: []domain.Node{{ID: "a", Type: "bogus"}}, Validate: true}
	resp = env.do(t, http.MethodPost, "/api/v1/runs", bad)
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	if detail := decodeError(t, resp); detail.Code != ErrCodeInvalidGraph {
		t.Errorf("expected %s, got %s", ErrCodeInvalidGraph, detail.Code)
	}
}

func TestFlowLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/flows", CreateFlowRequest{
		Name:  "linear",
		Nodes: linearGraph(),
	})
	expectStatus(t, resp, http.StatusCreated)

	var created FlowResponse
	decodeData(t, resp, &created)
	if created.Name != "linear" || !created.IsActive || len(created.Nodes) != 3 {
		t.Fatalf("unexpected flow: %+v", created)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/flows", CreateFlowRequest{
		Name:  "linear",
		Nodes: linearGraph(),
	})
	expectStatus(t, resp, http.StatusConflict)

	path := "/api/v1/flows/" + created.ID.String()

	resp = env.do(t, http.MethodGet, path, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = env.do(t, http.MethodPost, path+"/runs", CreateRunRequest{})
	expectStatus(t, resp, http.StatusOK)

	var report reportJSON
	decodeData(t, resp, &report)
	if report.Summary.FlowID == nil || *report.Summary.FlowID != created.ID {
		t.Errorf("expected flow id in summary, got %v", report.Summary.FlowID)
	}

	resp = env.do(t, http.MethodPost, path+"/runs", CreateRunRequest{Async: true})
	expectStatus(t, resp, http.StatusAccepted)

	var started RunStartedResponse
	decodeData(t, resp, &started)
	if started.RunID == uuid.Nil {
		t.Error("expected run id")
	}

	resp = env.do(t, http.MethodDelete, path, nil)
	expectStatus(t, resp, http.StatusNoContent)

	resp = env.do(t, http.MethodGet, path, nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestCreateFlow_InvalidGraph(t *testing.T) {
	env := newTestEnv(t, nil)

	nodes := []domain.Node{
		{ID: "a", Type: domain.NodeTypeStart, Outputs: []string{"a:b"}},
		{ID: "b", Type: domain.NodeTypeLog, Outputs: []string{"b:a"}},
	}
	resp := env.do(t, http.MethodPost, "/api/v1/flows", CreateFlowRequest{Name: "cyclic", Nodes: nodes})
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	detail := decodeError(t, resp)
	if detail.Code != ErrCodeInvalidGraph {
		t.Errorf("expected %s, got %s", ErrCodeInvalidGraph, detail.Code)
	}
}

func TestUpdateFlow_Deactivate(t *testing.T) {
	env := newTestEnv(t, nil)

	flow := domain.NewFlow("linear", linearGraph(), nil)
	env.flows.Create(context.Background(), flow)

	path := "/api/v1/flows/" + flow.ID.String()
	inactive := false
	resp := env.do(t, http.MethodPut, path, UpdateFlowRequest{IsActive: &inactive})
	expectStatus(t, resp, http.StatusOK)

	var updated FlowResponse
	decodeData(t, resp, &updated)
	if updated.IsActive {
		t.Error("expected flow to be inactive")
	}

	resp = env.do(t, http.MethodPost, path+"/runs", nil)
	expectStatus(t, resp, http.StatusUnprocessableEntity)
}

func TestSchedules(t *testing.T) {
	env := newTestEnv(t, nil)

	flow := domain.NewFlow("linear", linearGraph(), nil)
	env.flows.Create(context.Background(), flow)
	flowPath := "/api/v1/flows/" + flow.ID.String() + "/schedules"

	resp := env.do(t, http.MethodPost, flowPath, CreateScheduleRequest{Name: "nothing"})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = env.do(t, http.MethodPost, flowPath, CreateScheduleRequest{Name: "bad", CronExpr: "not a cron"})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = env.do(t, http.MethodPost, "/api/v1/flows/"+uuid.NewString()+"/schedules",
		CreateScheduleRequest{Name: "orphan", IntervalSec: 60})
	expectStatus(t, resp, http.StatusNotFound)

	before := time.Now()
	resp = env.do(t, http.MethodPost, flowPath, CreateScheduleRequest{
		Name:     "every-5m",
		CronExpr: "*/5 * * * *",
		Enabled:  true,
	})
	expectStatus(t, resp, http.StatusCreated)

	var sched ScheduleResponse
	decodeData(t, resp, &sched)
	if sched.Timezone != "UTC" {
		t.Errorf("expected UTC timezone, got %s", sched.Timezone)
	}
	if sched.NextDueAt == nil || !sched.NextDueAt.After(before) {
		t.Errorf("expected next due in the future, got %v", sched.NextDueAt)
	}

	path := "/api/v1/schedules/" + sched.ID.String()

	resp = env.do(t, http.MethodPut, path+"/enabled", SetEnabledRequest{Enabled: false})
	expectStatus(t, resp, http.StatusOK)
	var disabled ScheduleResponse
	decodeData(t, resp, &disabled)
	if disabled.Enabled {
		t.Error("expected schedule to be disabled")
	}

	resp = env.do(t, http.MethodGet, "/api/v1/schedules?enabled=false&flow_id="+flow.ID.String(), nil)
	expectStatus(t, resp, http.StatusOK)
	var list []ScheduleResponse
	decodeData(t, resp, &list)
	if len(list) != 1 {
		t.Errorf("expected 1 schedule, got %d", len(list))
	}

	interval := 30
	resp = env.do(t, http.MethodPut, path, UpdateScheduleRequest{CronExpr: new(string), IntervalSec: &interval})
	expectStatus(t, resp, http.StatusOK)
	var updated ScheduleResponse
	decodeData(t, resp, &updated)
	if updated.CronExpr != "" || updated.IntervalSec != 30 {
		t.Errorf("expected interval schedule, got %+v", updated)
	}

	resp = env.do(t, http.MethodDelete, path, nil)
	expectStatus(t, resp, http.StatusNoContent)

	resp = env.do(t, http.MethodGet, path, nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

type streamJSON struct {
	Event   string             `json:"event"`
	RunID   uuid.UUID          `json:"run_id"`
	Summary *domain.RunSummary `json:"summary"`
	Message string             `json:"message"`
}

func readStream(t *testing.T, conn *websocket.Conn) []streamJSON {
	t.Helper()

	var out []streamJSON
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg streamJSON
		if err := conn.ReadJSON(&msg); err != nil {
			return out
		}
		out = append(out, msg)
		if msg.Event == StreamRunCompleted || msg.Event == StreamError {
			return out
		}
	}
}

func TestStreamRun(t *testing.T) {
	env := newTestEnv(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env.server, "/api/v1/runs/stream"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(RunRequest{Nodes: linearGraph()}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	msgs := readStream(t, conn)

	want := []string{
		engine.EventStart, "start",
		engine.EventStart, "log",
		engine.EventStart, "end",
		StreamRunCompleted,
	}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, name := range want {
		if msgs[i].Event != name {
			t.Errorf("message %d: expected %s, got %s", i, name, msgs[i].Event)
		}
	}

	last := msgs[len(msgs)-1]
	if last.Summary == nil || last.Summary.Visited != 3 {
		t.Errorf("unexpected summary: %+v", last.Summary)
	}
	if last.RunID != msgs[0].RunID {
		t.Errorf("run id mismatch: %s vs %s", last.RunID, msgs[0].RunID)
	}
}

func TestStreamRun_UnknownEntry(t *testing.T) {
	env := newTestEnv(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env.server, "/api/v1/runs/stream"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := RunRequest{Nodes: linearGraph()}
	req.Entry = []string{"nope"}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	msgs := readStream(t, conn)
	if len(msgs) != 1 || msgs[0].Event != StreamError {
		t.Fatalf("expected single error message, got %+v", msgs)
	}
}

func TestStreamRunEvents_NoRedis(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/api/v1/runs/"+uuid.NewString()+"/stream", nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
}

func TestStreamRunEvents_FromRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer mr.Close()

	client := redisbus.NewClient(mr.Addr())
	defer client.Close()

	env := newTestEnv(t, client)
	runID := uuid.New()

	conn, _, err := websocket.DefaultDialer.Dial(
		wsURL(env.server, "/api/v1/runs/"+runID.String()+"/stream"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sink := redisbus.NewSink(client, nil)
	ctx := context.Background()

	node := domain.Node{ID: "end", Type: domain.NodeTypeEnd}
	if err := sink.PublishEvent(ctx, engine.Event{Name: "end", RunID: runID, Node: node}); err != nil {
		t.Fatalf("publish event: %v", err)
	}
	summary := &domain.RunSummary{RunID: runID, Visited: 1}
	if err := sink.PublishCompleted(ctx, summary); err != nil {
		t.Fatalf("publish summary: %v", err)
	}

	msgs := readStream(t, conn)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Event != "end" || msgs[0].RunID != runID {
		t.Errorf("unexpected event message: %+v", msgs[0])
	}
	if msgs[1].Event != StreamRunCompleted || msgs[1].Summary == nil {
		t.Errorf("unexpected completion message: %+v", msgs[1])
	}
}

func TestMiddleware_RequestIDAndRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Chain(RequestLogger(logger), Recovery(), Logging())(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/flows", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if got := rec.Header().Get(HeaderRequestID); got != "req-1" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}
	if !strings.Contains(buf.String(), `"request_id":"req-1"`) {
		t.Errorf("expected request id in logs, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("expected panic to be logged, got %s", buf.String())
	}
}
