package valueobjects

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
)

// NodeKind is the variant of a canvas node. It never changes after creation.
type NodeKind string

const (
	KindQuery   NodeKind = "query"
	KindAnswer  NodeKind = "answer"
	KindSources NodeKind = "sources"
)

// Valid reports whether k is one of the known kinds
func (k NodeKind) Valid() bool {
	switch k {
	case KindQuery, KindAnswer, KindSources:
		return true
	}
	return false
}

func (k NodeKind) String() string {
	return string(k)
}

// NodeID is a value object of the form "<kind>-<counter>".
// The kind prefix is part of the identity, so an id alone tells which
// variant of node it names.
type NodeID struct {
	kind    NodeKind
	counter uint64
}

// NewNodeID builds an id from its parts
func NewNodeID(kind NodeKind, counter uint64) (NodeID, error) {
	if !kind.Valid() {
		return NodeID{}, pkgerrors.NewValidationError(fmt.Sprintf("unknown node kind %q", kind))
	}
	return NodeID{kind: kind, counter: counter}, nil
}

// ParseNodeID parses the string form of an id
func ParseNodeID(s string) (NodeID, error) {
	idx := strings.LastIndex(s, "-")
	if idx <= 0 || idx == len(s)-1 {
		return NodeID{}, pkgerrors.NewValidationError(fmt.Sprintf("node id %q must look like <kind>-<counter>", s))
	}

	counter, err := strconv.ParseUint(s[idx+1:], 10, 64)
	if err != nil {
		return NodeID{}, pkgerrors.NewValidationError(fmt.Sprintf("node id %q has a non-numeric counter", s))
	}

	return NewNodeID(NodeKind(s[:idx]), counter)
}

// Kind returns the node kind encoded in the id
func (id NodeID) Kind() NodeKind {
	return id.kind
}

// Counter returns the allocator sequence number of the id
func (id NodeID) Counter() uint64 {
	return id.counter
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	if id.IsZero() {
		return ""
	}
	return string(id.kind) + "-" + strconv.FormatUint(id.counter, 10)
}

// Equals checks if two NodeIDs are equal
func (id NodeID) Equals(other NodeID) bool {
	return id == other
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id.kind == ""
}

// MarshalJSON implements json.Marshaler
func (id NodeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (id *NodeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("NodeID must be a string: %w", err)
	}
	parsed, err := ParseNodeID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
