package entities

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dipan99/mindmapper/domain/core/valueobjects"
	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
)

// EdgeKind defines the type of relationship
type EdgeKind string

const (
	EdgeKindAnswers  EdgeKind = "answers"   // query -> answer
	EdgeKindSources  EdgeKind = "sources"   // answer -> sources
	EdgeKindFollowUp EdgeKind = "follow_up" // answer -> query
	EdgeKindLink     EdgeKind = "link"      // drawn by the user between any two nodes
)

// Edge is a directed link between two nodes. It is immutable once created.
type Edge struct {
	id        string
	source    valueobjects.NodeID
	target    valueobjects.NodeID
	kind      EdgeKind
	createdAt time.Time
}

// EdgeID derives the deterministic identifier of the edge source -> target
func EdgeID(source, target valueobjects.NodeID) string {
	return fmt.Sprintf("e-%s-%s", source, target)
}

// NewEdge creates an edge produced by the engine and derives its kind from
// the endpoint kinds. Only the three directions the engine produces are
// accepted.
func NewEdge(source, target valueobjects.NodeID) (*Edge, error) {
	if err := validateEndpoints(source, target); err != nil {
		return nil, err
	}

	kind, err := kindFor(source.Kind(), target.Kind())
	if err != nil {
		return nil, err
	}
	return newEdge(source, target, kind), nil
}

// NewLinkEdge creates a user-drawn edge. Any two distinct nodes may be linked.
func NewLinkEdge(source, target valueobjects.NodeID) (*Edge, error) {
	if err := validateEndpoints(source, target); err != nil {
		return nil, err
	}
	return newEdge(source, target, EdgeKindLink), nil
}

func newEdge(source, target valueobjects.NodeID, kind EdgeKind) *Edge {
	return &Edge{
		id:        EdgeID(source, target),
		source:    source,
		target:    target,
		kind:      kind,
		createdAt: time.Now(),
	}
}

func validateEndpoints(source, target valueobjects.NodeID) error {
	if source.IsZero() || target.IsZero() {
		return pkgerrors.NewValidationError("edge endpoints are required")
	}
	if source.Equals(target) {
		return pkgerrors.NewValidationError("cannot connect node to itself")
	}
	return nil
}

func kindFor(source, target valueobjects.NodeKind) (EdgeKind, error) {
	switch {
	case source == valueobjects.KindQuery && target == valueobjects.KindAnswer:
		return EdgeKindAnswers, nil
	case source == valueobjects.KindAnswer && target == valueobjects.KindSources:
		return EdgeKindSources, nil
	case source == valueobjects.KindAnswer && target == valueobjects.KindQuery:
		return EdgeKindFollowUp, nil
	}
	return "", pkgerrors.NewValidationError(fmt.Sprintf("edges from %s to %s are not allowed", source, target))
}

// ID returns the edge identifier
func (e *Edge) ID() string {
	return e.id
}

// Source returns the origin node id
func (e *Edge) Source() valueobjects.NodeID {
	return e.source
}

// Target returns the destination node id
func (e *Edge) Target() valueobjects.NodeID {
	return e.target
}

// Kind returns the relationship type
func (e *Edge) Kind() EdgeKind {
	return e.kind
}

// CreatedAt returns the creation timestamp
func (e *Edge) CreatedAt() time.Time {
	return e.createdAt
}

// Clone returns a copy of the edge
func (e *Edge) Clone() *Edge {
	c := *e
	return &c
}

type edgeJSON struct {
	ID     string              `json:"id"`
	Source valueobjects.NodeID `json:"source"`
	Target valueobjects.NodeID `json:"target"`
	Kind   EdgeKind            `json:"kind"`
}

// MarshalJSON implements json.Marshaler
func (e *Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal(edgeJSON{
		ID:     e.id,
		Source: e.source,
		Target: e.target,
		Kind:   e.kind,
	})
}
