package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dipan99/mindmapper/application/ports"
	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
	"github.com/dipan99/mindmapper/pkg/utils"
)

// ConnectRequest is the body of POST /edges
type ConnectRequest struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// ConnectResponse describes the created edge
type ConnectResponse struct {
	EdgeID string `json:"edgeId"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// AppendBulletRequest is the body of POST /answers/{answerID}/bullets
type AppendBulletRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// AppendBulletResponse carries the index of the new bullet
type AppendBulletResponse struct {
	AnswerID string `json:"answerId"`
	Index    int    `json:"index"`
}

// SourceItemRequest is one link of an AppendSourcesRequest
type SourceItemRequest struct {
	URL   string `json:"url" validate:"required"`
	Title string `json:"title"`
}

// AppendSourcesRequest is the body of POST /sources/{sourcesID}/items
type AppendSourcesRequest struct {
	Items []SourceItemRequest `json:"items" validate:"required,min=1,dive"`
}

// EditHandler handles direct canvas edits
type EditHandler struct {
	engine GraphEngine
	logger *zap.Logger
}

// NewEditHandler creates a new edit handler
func NewEditHandler(engine GraphEngine, logger *zap.Logger) *EditHandler {
	return &EditHandler{engine: engine, logger: logger}
}

// Connect handles POST /edges
func (h *EditHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	result, err := h.engine.Connect(r.Context(), req.Source, req.Target)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, ConnectResponse{
		EdgeID: result.EdgeID,
		Source: req.Source,
		Target: req.Target,
	})
}

// AppendBullet handles POST /answers/{answerID}/bullets
func (h *EditHandler) AppendBullet(w http.ResponseWriter, r *http.Request) {
	var req AppendBulletRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	answerID := chi.URLParam(r, "answerID")
	index, err := h.engine.AppendBullet(r.Context(), answerID, req.Text)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, AppendBulletResponse{AnswerID: answerID, Index: index})
}

// AppendSources handles POST /sources/{sourcesID}/items
func (h *EditHandler) AppendSources(w http.ResponseWriter, r *http.Request) {
	var req AppendSourcesRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	results := make([]ports.SearchResult, 0, len(req.Items))
	for _, item := range req.Items {
		results = append(results, ports.SearchResult{URL: item.URL, Title: item.Title})
	}
	if err := h.engine.AppendSources(r.Context(), chi.URLParam(r, "sourcesID"), results); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EditHandler) decodeValid(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := decodeBody(r, v); err != nil {
		respondDomainError(w, h.logger, err)
		return false
	}
	if err := utils.ValidateStruct(v); err != nil {
		respondDomainError(w, h.logger, pkgerrors.NewValidationError(err.Error()))
		return false
	}
	return true
}
