package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/engine"
	"github.com/shaiso/flowrunner/internal/telemetry"
)

// ListFlows возвращает список всех flows.
// GET /api/v1/flows
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := h.flows.List(r.Context())
	if HandleRepoError(w, r, err, "") {
		return
	}

	result := make([]FlowResponse, len(flows))
	for i, f := range flows {
		result[i] = FlowFromDomain(f)
	}

	List(w, result, len(result))
}

// CreateFlow сохраняет описание графа.
// POST /api/v1/flows
//
// В отличие от движка каталог принимает только корректные графы.
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var req CreateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	if err := engine.Validate(req.Nodes); err != nil {
		InvalidGraph(w, IssuesFromError(err))
		return
	}

	flow := domain.NewFlow(req.Name, req.Nodes, req.Entry)
	if req.IsActive != nil {
		flow.IsActive = *req.IsActive
	}

	if !h.checkEntry(w, flow.Nodes, flow.Entry) {
		return
	}

	if err := h.flows.Create(r.Context(), flow); err != nil {
		HandleRepoError(w, r, err, "")
		return
	}

	Created(w, FlowFromDomain(*flow))
}

// GetFlow возвращает flow по ID.
// GET /api/v1/flows/{id}
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	flow, err := h.flows.GetByID(r.Context(), id)
	if HandleRepoError(w, r, err, "flow not found") {
		return
	}

	Success(w, FlowFromDomain(*flow))
}

// UpdateFlow обновляет flow.
// PUT /api/v1/flows/{id}
func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	var req UpdateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	flow, err := h.flows.GetByID(r.Context(), id)
	if HandleRepoError(w, r, err, "flow not found") {
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			BadRequest(w, "name must not be empty")
			return
		}
		flow.Name = *req.Name
	}
	if req.Nodes != nil {
		if err := engine.Validate(*req.Nodes); err != nil {
			InvalidGraph(w, IssuesFromError(err))
			return
		}
		flow.Nodes = *req.Nodes
	}
	if req.Entry != nil {
		flow.Entry = *req.Entry
	}
	if req.IsActive != nil {
		flow.IsActive = *req.IsActive
	}

	if !h.checkEntry(w, flow.Nodes, flow.Entry) {
		return
	}

	if err := h.flows.Update(r.Context(), flow); err != nil {
		HandleRepoError(w, r, err, "flow not found")
		return
	}

	Success(w, FlowFromDomain(*flow))
}

// DeleteFlow удаляет flow вместе с его расписаниями.
// DELETE /api/v1/flows/{id}
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	if err := h.flows.Delete(r.Context(), id); err != nil {
		HandleRepoError(w, r, err, "flow not found")
		return
	}

	NoContent(w)
}

// RunFlow запускает сохранённый flow.
// POST /api/v1/flows/{id}/runs
//
// По умолчанию ждёт конца обхода и возвращает отчёт.
// С "async": true отвечает 202 и run_id; события идут в шины.
func (h *Handler) RunFlow(w http.ResponseWriter, r *http.Request) {
	flowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	var req CreateRunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	flow, err := h.flows.GetByID(r.Context(), flowID)
	if HandleRepoError(w, r, err, "flow not found") {
		return
	}

	if !flow.IsActive {
		InvalidState(w, "flow is not active")
		return
	}

	entry := req.Entry
	if len(entry) == 0 {
		entry = flow.Entry
	}

	runReq := newRequest(flow.Nodes, req.RunOptions)
	runReq.Entry = entry
	runReq.FlowID = &flow.ID

	if req.Async {
		// Запрос завершится раньше обхода: ctx запроса не подходит.
		x, err := h.runner.Start(context.WithoutCancel(r.Context()), runReq, nil)
		if handleRunError(w, r, err) {
			return
		}
		telemetry.WithFlowID(telemetry.FromContext(r.Context()), flow.ID.String()).
			Info("flow run started", "run_id", x.ID())
		Accepted(w, RunStartedResponse{RunID: x.ID()})
		return
	}

	report, err := h.runner.Execute(r.Context(), runReq)
	if handleRunError(w, r, err) {
		return
	}

	Success(w, report)
}
