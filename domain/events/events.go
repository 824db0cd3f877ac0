package events

import (
	"time"

	"github.com/dipan99/mindmapper/domain/core/valueobjects"
)

// Source identifies this engine when events leave the process
const Source = "mindmapper.engine"

// Event type names
const (
	TypeNodeCreated              = "node.created"
	TypeNodesConnected           = "nodes.connected"
	TypeBulletAppended           = "answer.bullet_appended"
	TypeSourceItemsAppended      = "sources.items_appended"
	TypeAnswerMaterialized       = "answer.materialized"
	TypeMaterializationFailed    = "answer.materialization_failed"
	TypeMaterializationDiscarded = "answer.materialization_discarded"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(aggregateID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// NodeCreated is raised when a node is registered in the graph
type NodeCreated struct {
	BaseEvent
	NodeID valueobjects.NodeID     `json:"node_id"`
	Kind   valueobjects.NodeKind   `json:"kind"`
	Anchor *valueobjects.BulletRef `json:"anchor,omitempty"`
}

// NewNodeCreated creates a NodeCreated event
func NewNodeCreated(nodeID valueobjects.NodeID, anchor *valueobjects.BulletRef, timestamp time.Time) NodeCreated {
	return NodeCreated{
		BaseEvent: newBase(nodeID.String(), TypeNodeCreated, timestamp),
		NodeID:    nodeID,
		Kind:      nodeID.Kind(),
		Anchor:    anchor,
	}
}

// NodesConnected is raised when an edge is registered in the graph
type NodesConnected struct {
	BaseEvent
	EdgeID   string              `json:"edge_id"`
	SourceID valueobjects.NodeID `json:"source_id"`
	TargetID valueobjects.NodeID `json:"target_id"`
	EdgeKind string              `json:"edge_kind"`
}

// NewNodesConnected creates a NodesConnected event
func NewNodesConnected(edgeID string, sourceID, targetID valueobjects.NodeID, edgeKind string, timestamp time.Time) NodesConnected {
	return NodesConnected{
		BaseEvent: newBase(sourceID.String(), TypeNodesConnected, timestamp),
		EdgeID:    edgeID,
		SourceID:  sourceID,
		TargetID:  targetID,
		EdgeKind:  edgeKind,
	}
}

// BulletAppended is raised when an Answer node grows by one bullet
type BulletAppended struct {
	BaseEvent
	AnswerID valueobjects.NodeID `json:"answer_id"`
	Index    int                 `json:"index"`
	Text     string              `json:"text"`
}

// NewBulletAppended creates a BulletAppended event
func NewBulletAppended(answerID valueobjects.NodeID, index int, text string, timestamp time.Time) BulletAppended {
	return BulletAppended{
		BaseEvent: newBase(answerID.String(), TypeBulletAppended, timestamp),
		AnswerID:  answerID,
		Index:     index,
		Text:      text,
	}
}

// SourceItemsAppended is raised when a Sources node grows
type SourceItemsAppended struct {
	BaseEvent
	SourcesID valueobjects.NodeID       `json:"sources_id"`
	Items     []valueobjects.SourceItem `json:"items"`
}

// NewSourceItemsAppended creates a SourceItemsAppended event
func NewSourceItemsAppended(sourcesID valueobjects.NodeID, items []valueobjects.SourceItem, timestamp time.Time) SourceItemsAppended {
	return SourceItemsAppended{
		BaseEvent: newBase(sourcesID.String(), TypeSourceItemsAppended, timestamp),
		SourcesID: sourcesID,
		Items:     items,
	}
}

// Materialization events

// AnswerMaterialized is raised when a query received its Answer node
type AnswerMaterialized struct {
	BaseEvent
	QueryID  valueobjects.NodeID `json:"query_id"`
	AnswerID valueobjects.NodeID `json:"answer_id"`
	Attempts int                 `json:"attempts"`
	Degraded bool                `json:"degraded"`
}

// NewAnswerMaterialized creates an AnswerMaterialized event
func NewAnswerMaterialized(queryID, answerID valueobjects.NodeID, attempts int, degraded bool, timestamp time.Time) AnswerMaterialized {
	return AnswerMaterialized{
		BaseEvent: newBase(queryID.String(), TypeAnswerMaterialized, timestamp),
		QueryID:   queryID,
		AnswerID:  answerID,
		Attempts:  attempts,
		Degraded:  degraded,
	}
}

// MaterializationFailed is raised for every failed answering attempt
type MaterializationFailed struct {
	BaseEvent
	QueryID valueobjects.NodeID `json:"query_id"`
	Attempt int                 `json:"attempt"`
	Reason  string              `json:"reason"`
}

// NewMaterializationFailed creates a MaterializationFailed event
func NewMaterializationFailed(queryID valueobjects.NodeID, attempt int, reason string, timestamp time.Time) MaterializationFailed {
	return MaterializationFailed{
		BaseEvent: newBase(queryID.String(), TypeMaterializationFailed, timestamp),
		QueryID:   queryID,
		Attempt:   attempt,
		Reason:    reason,
	}
}

// MaterializationDiscarded is raised when a result was dropped because its
// query vanished or the task was cancelled
type MaterializationDiscarded struct {
	BaseEvent
	QueryID valueobjects.NodeID `json:"query_id"`
	Reason  string              `json:"reason"`
}

// NewMaterializationDiscarded creates a MaterializationDiscarded event
func NewMaterializationDiscarded(queryID valueobjects.NodeID, reason string, timestamp time.Time) MaterializationDiscarded {
	return MaterializationDiscarded{
		BaseEvent: newBase(queryID.String(), TypeMaterializationDiscarded, timestamp),
		QueryID:   queryID,
		Reason:    reason,
	}
}
