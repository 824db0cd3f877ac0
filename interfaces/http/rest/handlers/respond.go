// Package handlers holds the REST handlers translating HTTP requests into
// engine operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/dipan99/mindmapper/application/ports"
	"github.com/dipan99/mindmapper/application/services"
	"github.com/dipan99/mindmapper/domain/core/aggregates"
	"github.com/dipan99/mindmapper/domain/core/entities"
	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
)

// GraphEngine is the part of the engine the handlers drive
type GraphEngine interface {
	SubmitQuery(ctx context.Context, text string) (*services.DispatchResult, error)
	Dispatch(ctx context.Context, action services.Action, intent services.BulletIntent) (*services.DispatchResult, error)
	Snapshot() aggregates.GraphSnapshot
	Stats() aggregates.GraphStats
	Node(id string) (*entities.Node, error)
	Task(queryID string) (*services.Task, error)
	Materialize(ctx context.Context, queryID string) (*services.Task, error)
	CancelMaterialization(queryID string) (bool, error)
	NodesOfKind(kind string) ([]*entities.Node, error)
	Connect(ctx context.Context, source, target string) (*services.DispatchResult, error)
	AppendBullet(ctx context.Context, answerID, text string) (int, error)
	AppendSources(ctx context.Context, sourcesID string, results []ports.SearchResult) error
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondDomainError maps err onto its HTTP status. Unexpected errors are
// logged and hidden from the client.
func respondDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := pkgerrors.StatusCode(err)
	domainErr := pkgerrors.GetDomainError(err)
	if domainErr == nil || status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
	}
	if domainErr == nil {
		respondError(w, status, "internal error")
		return
	}
	respondJSON(w, status, ErrorResponse{Error: domainErr.Message, Type: string(domainErr.Type)})
}

// decodeBody decodes an optional JSON body into v
func decodeBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return pkgerrors.NewValidationError("invalid request body").WithCause(err)
	}
	return nil
}
