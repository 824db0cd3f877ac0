package aggregates

import (
	"github.com/dipan99/mindmapper/domain/core/entities"
	"github.com/dipan99/mindmapper/domain/core/valueobjects"
)

// GraphSnapshot is a point-in-time copy of the whole graph. Nodes and edges
// are deep copies in insertion order; nothing in it aliases store state.
// Consumers treat it as read-only.
type GraphSnapshot struct {
	Version uint64           `json:"version"`
	Nodes   []*entities.Node `json:"nodes"`
	Edges   []*entities.Edge `json:"edges"`
}

// Node looks a node up by id
func (s GraphSnapshot) Node(id valueobjects.NodeID) (*entities.Node, bool) {
	for _, n := range s.Nodes {
		if n.ID().Equals(id) {
			return n, true
		}
	}
	return nil, false
}

// Edge looks an edge up by id
func (s GraphSnapshot) Edge(id string) (*entities.Edge, bool) {
	for _, e := range s.Edges {
		if e.ID() == id {
			return e, true
		}
	}
	return nil, false
}

// NodesOfKind returns the nodes of one kind in insertion order
func (s GraphSnapshot) NodesOfKind(kind valueobjects.NodeKind) []*entities.Node {
	var out []*entities.Node
	for _, n := range s.Nodes {
		if n.Kind() == kind {
			out = append(out, n)
		}
	}
	return out
}

// GraphStats contains graph-level counters
type GraphStats struct {
	Version   uint64                        `json:"version"`
	NodeCount int                           `json:"nodeCount"`
	EdgeCount int                           `json:"edgeCount"`
	ByKind    map[valueobjects.NodeKind]int `json:"byKind"`
	EdgeKinds map[entities.EdgeKind]int     `json:"edgeKinds"`
	Degraded  int                           `json:"degraded"`
}
