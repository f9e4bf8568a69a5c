package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, клиент не импортирует internal/api) ---

// FlowResponse: flow из API.
type FlowResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Nodes     json.RawMessage `json:"nodes,omitempty"`
	Entry     []string        `json:"entry,omitempty"`
	IsActive  bool            `json:"is_active"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// ScheduleResponse: schedule из API.
type ScheduleResponse struct {
	ID           string            `json:"id"`
	FlowID       string            `json:"flow_id"`
	Name         string            `json:"name"`
	CronExpr     string            `json:"cron_expr,omitempty"`
	IntervalSec  int               `json:"interval_sec,omitempty"`
	Timezone     string            `json:"timezone"`
	Enabled      bool              `json:"enabled"`
	NextDueAt    string            `json:"next_due_at,omitempty"`
	LastRunAt    string            `json:"last_run_at,omitempty"`
	LastRunID    string            `json:"last_run_id,omitempty"`
	PreviousRuns map[string]string `json:"previous_runs,omitempty"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
}

// RunSummary: сводка запуска.
type RunSummary struct {
	RunID      string `json:"run_id"`
	FlowID     string `json:"flow_id,omitempty"`
	ScheduleID string `json:"schedule_id,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Visited    int    `json:"visited"`
	Failed     int    `json:"failed"`
}

// EventMessage: событие движка на границе.
type EventMessage struct {
	Event   string         `json:"event"`
	RunID   string         `json:"run_id"`
	Time    string         `json:"time"`
	Payload map[string]any `json:"payload"`
}

// RunReport: отчёт синхронного запуска.
type RunReport struct {
	Summary RunSummary     `json:"summary"`
	Events  []EventMessage `json:"events"`
}

// RunStarted: ответ на асинхронный запуск.
type RunStarted struct {
	RunID string `json:"run_id"`
}

// ValidationIssue: проблема описания графа.
type ValidationIssue struct {
	NodeID  string `json:"node_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidateResponse: результат проверки графа.
type ValidateResponse struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// --- Request types ---

// CreateFlowRequest: создание flow.
type CreateFlowRequest struct {
	Name     string          `json:"name"`
	Nodes    json.RawMessage `json:"nodes"`
	Entry    []string        `json:"entry,omitempty"`
	IsActive *bool           `json:"is_active,omitempty"`
}

// UpdateFlowRequest: обновление flow.
type UpdateFlowRequest struct {
	Name     *string          `json:"name,omitempty"`
	Nodes    *json.RawMessage `json:"nodes,omitempty"`
	Entry    *[]string        `json:"entry,omitempty"`
	IsActive *bool            `json:"is_active,omitempty"`
}

// RunFlowRequest: запуск сохранённого flow.
type RunFlowRequest struct {
	Entry           []string          `json:"entry,omitempty"`
	PreviousRuns    map[string]string `json:"previous_runs,omitempty"`
	StopOnTerminate bool              `json:"stop_on_terminate,omitempty"`
	SkipOnFailure   bool              `json:"skip_on_failure,omitempty"`
	Async           bool              `json:"async,omitempty"`
}

// CreateScheduleRequest: создание schedule.
type CreateScheduleRequest struct {
	Name         string            `json:"name"`
	CronExpr     string            `json:"cron_expr,omitempty"`
	IntervalSec  int               `json:"interval_sec,omitempty"`
	Timezone     string            `json:"timezone,omitempty"`
	Enabled      bool              `json:"enabled"`
	PreviousRuns map[string]string `json:"previous_runs,omitempty"`
}

// UpdateScheduleRequest: обновление schedule.
type UpdateScheduleRequest struct {
	Name         *string            `json:"name,omitempty"`
	CronExpr     *string            `json:"cron_expr,omitempty"`
	IntervalSec  *int               `json:"interval_sec,omitempty"`
	Timezone     *string            `json:"timezone,omitempty"`
	PreviousRuns *map[string]string `json:"previous_runs,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details []ValidationIssue `json:"details,omitempty"`
	} `json:"error"`
}

// --- Client ---

// Client: HTTP-клиент для flowrunner API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
// Таймаут покрывает синхронный запуск графа.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// --- Graphs ---

// Validate проверяет описание графа на сервере.
func (c *Client) Validate(nodes json.RawMessage) (*ValidateResponse, error) {
	body := map[string]json.RawMessage{"nodes": nodes}
	var res ValidateResponse
	err := c.post("/api/v1/validate", body, &res)
	return &res, err
}

// --- Flows ---

// ListFlows возвращает все flows.
func (c *Client) ListFlows() ([]FlowResponse, error) {
	var flows []FlowResponse
	err := c.list("/api/v1/flows", nil, &flows)
	return flows, err
}

// CreateFlow сохраняет описание графа.
func (c *Client) CreateFlow(req CreateFlowRequest) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.post("/api/v1/flows", req, &flow)
	return &flow, err
}

// GetFlow возвращает flow по ID.
func (c *Client) GetFlow(id string) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.get("/api/v1/flows/"+id, &flow)
	return &flow, err
}

// UpdateFlow обновляет flow.
func (c *Client) UpdateFlow(id string, req UpdateFlowRequest) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.put("/api/v1/flows/"+id, req, &flow)
	return &flow, err
}

// DeleteFlow удаляет flow.
func (c *Client) DeleteFlow(id string) error {
	return c.delete("/api/v1/flows/" + id)
}

// RunFlow запускает flow и ждёт отчёт.
func (c *Client) RunFlow(id string, req RunFlowRequest) (*RunReport, error) {
	req.Async = false
	var report RunReport
	err := c.post("/api/v1/flows/"+id+"/runs", req, &report)
	return &report, err
}

// StartFlow запускает flow асинхронно и возвращает run_id.
func (c *Client) StartFlow(id string, req RunFlowRequest) (*RunStarted, error) {
	req.Async = true
	var started RunStarted
	err := c.post("/api/v1/flows/"+id+"/runs", req, &started)
	return &started, err
}

// --- Schedules ---

// ListSchedules возвращает schedules с необязательными фильтрами.
func (c *Client) ListSchedules(flowID string, enabled *bool) ([]ScheduleResponse, error) {
	params := url.Values{}
	if flowID != "" {
		params.Set("flow_id", flowID)
	}
	if enabled != nil {
		params.Set("enabled", strconv.FormatBool(*enabled))
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule для flow.
func (c *Client) CreateSchedule(flowID string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/flows/"+flowID+"/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет schedule.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// SetScheduleEnabled включает или выключает schedule.
func (c *Client) SetScheduleEnabled(id string, enabled bool) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id+"/enabled", map[string]bool{"enabled": enabled}, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	msg := fmt.Sprintf("%s: %s", er.Error.Code, er.Error.Message)
	for _, issue := range er.Error.Details {
		msg += "\n  " + formatIssue(issue)
	}
	return errors.New(msg)
}
