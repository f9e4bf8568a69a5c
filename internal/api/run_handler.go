package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/engine"
	"github.com/shaiso/flowrunner/internal/orchestrator"
)

// ValidateGraph проверяет описание графа, ничего не запуская.
// POST /api/v1/validate
func (h *Handler) ValidateGraph(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := engine.Validate(req.Nodes); err != nil {
		Success(w, ValidateResponse{Valid: false, Issues: IssuesFromError(err)})
		return
	}

	Success(w, ValidateResponse{Valid: true})
}

// RunGraph выполняет присланный граф и возвращает отчёт.
// POST /api/v1/runs
func (h *Handler) RunGraph(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if len(req.Nodes) == 0 {
		BadRequest(w, "nodes are required")
		return
	}

	if req.Validate {
		if err := engine.Validate(req.Nodes); err != nil {
			InvalidGraph(w, IssuesFromError(err))
			return
		}
	}

	report, err := h.runner.Execute(r.Context(), newRequest(req.Nodes, req.RunOptions))
	if handleRunError(w, r, err) {
		return
	}

	Success(w, report)
}

// newRequest собирает запрос orchestrator'у.
func newRequest(nodes []domain.Node, opts RunOptions) orchestrator.Request {
	return orchestrator.Request{
		Nodes:        nodes,
		Entry:        opts.Entry,
		PreviousRuns: opts.PreviousRuns,
		Options:      opts.EngineOptions(),
	}
}

// checkEntry проверяет, что узлы входа разрешаются.
func (h *Handler) checkEntry(w http.ResponseWriter, nodes []domain.Node, entry []string) bool {
	if _, err := orchestrator.ResolveEntry(nodes, entry); err != nil {
		InvalidState(w, err.Error())
		return false
	}
	return true
}

// handleRunError преобразует ошибку запуска в HTTP ответ.
func handleRunError(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, orchestrator.ErrUnknownEntry) || errors.Is(err, orchestrator.ErrNoEntry) {
		InvalidState(w, err.Error())
		return true
	}

	InternalError(w, r, err)
	return true
}
