package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dipan99/mindmapper/domain/core/entities"
)

// GraphHandler serves read-only views of the graph
type GraphHandler struct {
	engine GraphEngine
	logger *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(engine GraphEngine, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{engine: engine, logger: logger}
}

// GetGraph handles GET /graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Snapshot())
}

// GetStats handles GET /graph/stats
func (h *GraphHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Stats())
}

// ListNodes handles GET /nodes?kind=answer
func (h *GraphHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		respondJSON(w, http.StatusOK, h.engine.Snapshot().Nodes)
		return
	}

	nodes, err := h.engine.NodesOfKind(kind)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	if nodes == nil {
		nodes = []*entities.Node{}
	}
	respondJSON(w, http.StatusOK, nodes)
}

// GetNode handles GET /nodes/{nodeID}
func (h *GraphHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.engine.Node(chi.URLParam(r, "nodeID"))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, node)
}
