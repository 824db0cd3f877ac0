package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dipan99/mindmapper/application/services"
	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
)

// BulletIntentRequest is the optional body of a bullet intent
type BulletIntentRequest struct {
	BulletText string `json:"bulletText"`
	Text       string `json:"text"`
}

// BulletIntentResponse describes what an intent created
type BulletIntentResponse struct {
	Action          string                   `json:"action"`
	NodeID          string                   `json:"nodeId"`
	EdgeID          string                   `json:"edgeId"`
	Materialization *MaterializationResponse `json:"materialization,omitempty"`
}

// IntentHandler routes bullet intents to the dispatcher
type IntentHandler struct {
	engine GraphEngine
	logger *zap.Logger
}

// NewIntentHandler creates a new intent handler
func NewIntentHandler(engine GraphEngine, logger *zap.Logger) *IntentHandler {
	return &IntentHandler{engine: engine, logger: logger}
}

// HandleBulletIntent handles POST /answers/{answerID}/bullets/{index}/{action}
func (h *IntentHandler) HandleBulletIntent(w http.ResponseWriter, r *http.Request) {
	answerID := chi.URLParam(r, "answerID")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondDomainError(w, h.logger, pkgerrors.NewInvalidBulletReferenceError(answerID, -1, "bullet index must be an integer"))
		return
	}
	action, err := services.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	var req BulletIntentRequest
	if err := decodeBody(r, &req); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	result, err := h.engine.Dispatch(r.Context(), action, services.BulletIntent{
		AnswerID:   answerID,
		Index:      index,
		BulletText: req.BulletText,
		Text:       req.Text,
	})
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	resp := BulletIntentResponse{
		Action: string(result.Action),
		NodeID: result.NodeID.String(),
		EdgeID: result.EdgeID,
	}
	status := http.StatusCreated
	if result.Task != nil {
		m := materialization(result.Task)
		resp.Materialization = &m
		status = http.StatusAccepted
	}
	respondJSON(w, status, resp)
}
