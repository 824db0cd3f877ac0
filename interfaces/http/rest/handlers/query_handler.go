package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dipan99/mindmapper/application/services"
	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
	"github.com/dipan99/mindmapper/pkg/utils"
)

// SubmitQueryRequest is the body of POST /queries
type SubmitQueryRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// MaterializationResponse describes the answer task of a query
type MaterializationResponse struct {
	QueryID  string `json:"queryId"`
	State    string `json:"state"`
	AnswerID string `json:"answerId,omitempty"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// QueryHandler handles root queries and their materialization
type QueryHandler struct {
	engine GraphEngine
	logger *zap.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(engine GraphEngine, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{engine: engine, logger: logger}
}

// SubmitQuery handles POST /queries. The answer arrives later, so the
// response is 202 with the pending task.
func (h *QueryHandler) SubmitQuery(w http.ResponseWriter, r *http.Request) {
	var req SubmitQueryRequest
	if err := decodeBody(r, &req); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondDomainError(w, h.logger, pkgerrors.NewValidationError(err.Error()))
		return
	}

	result, err := h.engine.SubmitQuery(r.Context(), req.Text)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, materialization(result.Task))
}

// GetMaterialization handles GET /queries/{queryID}/materialization
func (h *QueryHandler) GetMaterialization(w http.ResponseWriter, r *http.Request) {
	task, err := h.engine.Task(chi.URLParam(r, "queryID"))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, materialization(task))
}

// RetryMaterialization handles POST /queries/{queryID}/materialization. It
// schedules an answer for a query that has none, such as one whose previous
// materialization was cancelled.
func (h *QueryHandler) RetryMaterialization(w http.ResponseWriter, r *http.Request) {
	task, err := h.engine.Materialize(r.Context(), chi.URLParam(r, "queryID"))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, materialization(task))
}

// CancelMaterialization handles DELETE /queries/{queryID}/materialization
func (h *QueryHandler) CancelMaterialization(w http.ResponseWriter, r *http.Request) {
	queryID := chi.URLParam(r, "queryID")
	cancelled, err := h.engine.CancelMaterialization(queryID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	if !cancelled {
		respondDomainError(w, h.logger, pkgerrors.NewConflictError("no materialization in flight for "+queryID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func materialization(task *services.Task) MaterializationResponse {
	resp := MaterializationResponse{
		QueryID:  task.QueryID().String(),
		State:    string(task.State()),
		Attempts: task.Attempts(),
	}
	if answerID := task.AnswerID(); !answerID.IsZero() {
		resp.AnswerID = answerID.String()
	}
	if err := task.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}
