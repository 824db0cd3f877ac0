package entities

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dipan99/mindmapper/domain/core/valueobjects"
	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
)

// Node is one element of the canvas. It is a tagged variant: the kind fixes
// which payload fields are meaningful and never changes after creation.
type Node struct {
	id       valueobjects.NodeID
	position valueobjects.Position

	// query payload
	text string

	// answer payload
	bullets       []string
	degraded      bool
	failureReason string

	// sources payload
	items []valueobjects.SourceItem

	// set on nodes derived from a bullet
	anchor *valueobjects.BulletRef

	createdAt time.Time
}

// NewQueryNode creates a Query node; the text is trimmed and must not be empty
func NewQueryNode(id valueobjects.NodeID, text string, position valueobjects.Position) (*Node, error) {
	if err := expectKind(id, valueobjects.KindQuery); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, pkgerrors.NewEmptyInputError("query text")
	}

	return &Node{
		id:        id,
		position:  position,
		text:      text,
		createdAt: time.Now(),
	}, nil
}

// NewAnswerNode creates an Answer node with at least one bullet
func NewAnswerNode(id valueobjects.NodeID, bullets []string, position valueobjects.Position) (*Node, error) {
	if err := expectKind(id, valueobjects.KindAnswer); err != nil {
		return nil, err
	}
	if len(bullets) == 0 {
		return nil, pkgerrors.NewValidationError("answer must have at least one bullet")
	}

	cleaned := make([]string, 0, len(bullets))
	for i, b := range bullets {
		b = strings.TrimSpace(b)
		if b == "" {
			return nil, pkgerrors.NewEmptyInputError(fmt.Sprintf("bullet %d", i))
		}
		cleaned = append(cleaned, b)
	}

	return &Node{
		id:        id,
		position:  position,
		bullets:   cleaned,
		createdAt: time.Now(),
	}, nil
}

// NewDegradedAnswerNode creates the placeholder Answer registered when
// answering a query kept failing. It has no bullets.
func NewDegradedAnswerNode(id valueobjects.NodeID, reason string, position valueobjects.Position) (*Node, error) {
	if err := expectKind(id, valueobjects.KindAnswer); err != nil {
		return nil, err
	}

	return &Node{
		id:            id,
		position:      position,
		bullets:       []string{},
		degraded:      true,
		failureReason: reason,
		createdAt:     time.Now(),
	}, nil
}

// NewSourcesNode creates a Sources node. An empty item list is valid.
func NewSourcesNode(id valueobjects.NodeID, items []valueobjects.SourceItem, position valueobjects.Position) (*Node, error) {
	if err := expectKind(id, valueobjects.KindSources); err != nil {
		return nil, err
	}

	copied := make([]valueobjects.SourceItem, len(items))
	copy(copied, items)

	return &Node{
		id:        id,
		position:  position,
		items:     copied,
		createdAt: time.Now(),
	}, nil
}

func expectKind(id valueobjects.NodeID, kind valueobjects.NodeKind) error {
	if id.Kind() != kind {
		return pkgerrors.NewValidationError(fmt.Sprintf("node id %q is not a %s id", id, kind))
	}
	return nil
}

// ID returns the node's unique identifier
func (n *Node) ID() valueobjects.NodeID {
	return n.id
}

// Kind returns the node variant
func (n *Node) Kind() valueobjects.NodeKind {
	return n.id.Kind()
}

// Position returns the node's position
func (n *Node) Position() valueobjects.Position {
	return n.position
}

// Text returns the query text; empty for other kinds
func (n *Node) Text() string {
	return n.text
}

// Bullets returns a copy of the answer bullets
func (n *Node) Bullets() []string {
	out := make([]string, len(n.bullets))
	copy(out, n.bullets)
	return out
}

// BulletCount returns the number of bullets of an Answer node
func (n *Node) BulletCount() int {
	return len(n.bullets)
}

// BulletAt returns the bullet at index i
func (n *Node) BulletAt(i int) (string, bool) {
	if i < 0 || i >= len(n.bullets) {
		return "", false
	}
	return n.bullets[i], true
}

// Items returns a copy of the source items
func (n *Node) Items() []valueobjects.SourceItem {
	out := make([]valueobjects.SourceItem, len(n.items))
	copy(out, n.items)
	return out
}

// Anchor returns the bullet this node was derived from, if any
func (n *Node) Anchor() *valueobjects.BulletRef {
	if n.anchor == nil {
		return nil
	}
	ref := *n.anchor
	return &ref
}

// AnchorTo records the bullet a Query or Sources node derives from.
// The anchor can be set once.
func (n *Node) AnchorTo(ref valueobjects.BulletRef) error {
	if n.Kind() == valueobjects.KindAnswer {
		return pkgerrors.NewValidationError("answer nodes cannot be anchored to a bullet")
	}
	if n.anchor != nil {
		return pkgerrors.NewConflictError(fmt.Sprintf("node %s is already anchored to %s", n.id, n.anchor))
	}
	n.anchor = &ref
	return nil
}

// IsDegraded reports whether the node is a failed-materialization placeholder
func (n *Node) IsDegraded() bool {
	return n.degraded
}

// FailureReason returns why a degraded answer has no bullets
func (n *Node) FailureReason() string {
	return n.failureReason
}

// CreatedAt returns the creation timestamp
func (n *Node) CreatedAt() time.Time {
	return n.createdAt
}

// AppendBullet grows an Answer node by one bullet and returns its index
func (n *Node) AppendBullet(text string) (int, error) {
	if n.Kind() != valueobjects.KindAnswer {
		return 0, pkgerrors.NewValidationError(fmt.Sprintf("node %s does not hold bullets", n.id))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, pkgerrors.NewEmptyInputError("bullet")
	}
	n.bullets = append(n.bullets, text)
	return len(n.bullets) - 1, nil
}

// AppendItem grows a Sources node by one item
func (n *Node) AppendItem(item valueobjects.SourceItem) error {
	if n.Kind() != valueobjects.KindSources {
		return pkgerrors.NewValidationError(fmt.Sprintf("node %s does not hold source items", n.id))
	}
	if item.URL == "" {
		return pkgerrors.NewEmptyInputError("source url")
	}
	n.items = append(n.items, item)
	return nil
}

// Clone returns a deep copy that shares no mutable state with n
func (n *Node) Clone() *Node {
	c := *n
	if n.bullets != nil {
		c.bullets = n.Bullets()
	}
	if n.items != nil {
		c.items = n.Items()
	}
	c.anchor = n.Anchor()
	return &c
}

type nodeJSON struct {
	ID        valueobjects.NodeID    `json:"id"`
	Type      valueobjects.NodeKind  `json:"type"`
	Position  valueobjects.Position  `json:"position"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"createdAt"`
}

// MarshalJSON renders the node in the shape canvas renderers consume
func (n *Node) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{})
	switch n.Kind() {
	case valueobjects.KindQuery:
		data["text"] = n.text
	case valueobjects.KindAnswer:
		data["bullets"] = n.Bullets()
		if n.degraded {
			data["degraded"] = true
			data["failureReason"] = n.failureReason
		}
	case valueobjects.KindSources:
		data["items"] = n.Items()
	}
	if n.anchor != nil {
		data["anchor"] = n.anchor
	}

	return json.Marshal(nodeJSON{
		ID:        n.id,
		Type:      n.Kind(),
		Position:  n.position,
		Data:      data,
		CreatedAt: n.createdAt,
	})
}
