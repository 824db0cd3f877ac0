package aggregates

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dipan99/mindmapper/domain/config"
	"github.com/dipan99/mindmapper/domain/core/entities"
	"github.com/dipan99/mindmapper/domain/core/valueobjects"
	"github.com/dipan99/mindmapper/domain/events"
	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
)

// Graph is the aggregate root holding every node and edge of a canvas.
// It is the single source of truth: every mutation goes through it, and
// observers learn about each mutation strictly after it happened, in the
// order the mutations were applied.
type Graph struct {
	mu sync.RWMutex
	// publishMu serializes delivery of the pending queue. It is never
	// acquired while mu is held, so observers may read the graph.
	publishMu sync.Mutex
	pending   []notification

	cfg *config.DomainConfig

	nodes     map[valueobjects.NodeID]*entities.Node
	nodeOrder []valueobjects.NodeID
	edges     map[string]*entities.Edge
	edgeOrder []string
	version   uint64

	observers    map[uint64]Observer
	observerSeq  []uint64
	nextObserver uint64

	// Domain events recorded since the last drain
	events []events.DomainEvent
}

type notification struct {
	snapshot  GraphSnapshot
	observers []Observer
}

// NewGraph creates an empty graph
func NewGraph(cfg *config.DomainConfig) *Graph {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &Graph{
		cfg:       cfg,
		nodes:     make(map[valueobjects.NodeID]*entities.Node),
		edges:     make(map[string]*entities.Edge),
		observers: make(map[uint64]Observer),
		events:    []events.DomainEvent{},
	}
}

// AddNode registers a node. The graph keeps its own copy.
func (g *Graph) AddNode(node *entities.Node) error {
	if node == nil {
		return pkgerrors.NewValidationError("node cannot be nil")
	}

	g.mu.Lock()
	if _, exists := g.nodes[node.ID()]; exists {
		g.mu.Unlock()
		return pkgerrors.NewDuplicateIDError("node", node.ID().String())
	}
	if g.cfg.MaxNodesPerGraph > 0 && len(g.nodes) >= g.cfg.MaxNodesPerGraph {
		g.mu.Unlock()
		return pkgerrors.NewValidationError(fmt.Sprintf("graph has reached its node limit (%d)", g.cfg.MaxNodesPerGraph))
	}

	stored := node.Clone()
	g.nodes[stored.ID()] = stored
	g.nodeOrder = append(g.nodeOrder, stored.ID())

	g.commit(events.NewNodeCreated(stored.ID(), stored.Anchor(), time.Now()))
	return nil
}

// AddEdge registers an edge. Both endpoints must already be present.
func (g *Graph) AddEdge(edge *entities.Edge) error {
	if edge == nil {
		return pkgerrors.NewValidationError("edge cannot be nil")
	}

	g.mu.Lock()
	for _, endpoint := range []valueobjects.NodeID{edge.Source(), edge.Target()} {
		if _, ok := g.nodes[endpoint]; !ok {
			g.mu.Unlock()
			return pkgerrors.NewDanglingEdgeError(edge.Source().String(), edge.Target().String(), endpoint.String())
		}
	}
	if _, exists := g.edges[edge.ID()]; exists {
		g.mu.Unlock()
		return pkgerrors.NewDuplicateIDError("edge", edge.ID())
	}

	stored := edge.Clone()
	g.edges[stored.ID()] = stored
	g.edgeOrder = append(g.edgeOrder, stored.ID())

	g.commit(events.NewNodesConnected(stored.ID(), stored.Source(), stored.Target(), string(stored.Kind()), time.Now()))
	return nil
}

// AppendBullet grows an Answer node by one bullet and returns its index
func (g *Graph) AppendBullet(answerID valueobjects.NodeID, text string) (int, error) {
	g.mu.Lock()
	node, ok := g.nodes[answerID]
	if !ok {
		g.mu.Unlock()
		return 0, pkgerrors.NewNotFoundError("node " + answerID.String())
	}
	if g.cfg.MaxBulletsPerAnswer > 0 && node.BulletCount() >= g.cfg.MaxBulletsPerAnswer {
		g.mu.Unlock()
		return 0, pkgerrors.NewValidationError(fmt.Sprintf("answer %s has reached its bullet limit (%d)", answerID, g.cfg.MaxBulletsPerAnswer))
	}

	idx, err := node.AppendBullet(text)
	if err != nil {
		g.mu.Unlock()
		return 0, err
	}

	g.commit(events.NewBulletAppended(answerID, idx, strings.TrimSpace(text), time.Now()))
	return idx, nil
}

// AppendItems grows a Sources node. Either all items are appended or none.
func (g *Graph) AppendItems(sourcesID valueobjects.NodeID, items ...valueobjects.SourceItem) error {
	if len(items) == 0 {
		return nil
	}

	g.mu.Lock()
	node, ok := g.nodes[sourcesID]
	if !ok {
		g.mu.Unlock()
		return pkgerrors.NewNotFoundError("node " + sourcesID.String())
	}
	if node.Kind() != valueobjects.KindSources {
		g.mu.Unlock()
		return pkgerrors.NewValidationError(fmt.Sprintf("node %s does not hold source items", sourcesID))
	}
	if g.cfg.MaxItemsPerSources > 0 && len(node.Items())+len(items) > g.cfg.MaxItemsPerSources {
		g.mu.Unlock()
		return pkgerrors.NewValidationError(fmt.Sprintf("sources %s would exceed its item limit (%d)", sourcesID, g.cfg.MaxItemsPerSources))
	}
	for _, item := range items {
		if item.URL == "" {
			g.mu.Unlock()
			return pkgerrors.NewEmptyInputError("source url")
		}
	}

	for _, item := range items {
		// cannot fail: kind and urls were checked above
		_ = node.AppendItem(item)
	}

	appended := make([]valueobjects.SourceItem, len(items))
	copy(appended, items)
	g.commit(events.NewSourceItemsAppended(sourcesID, appended, time.Now()))
	return nil
}

// commit bumps the version, records the event and queues the notification.
// It must be called with mu held for writing and releases it. When it returns,
// the notification for this mutation has been delivered.
func (g *Graph) commit(event events.DomainEvent) {
	g.version++
	g.events = append(g.events, event)

	if len(g.observers) == 0 {
		g.mu.Unlock()
		return
	}

	observers := make([]Observer, 0, len(g.observerSeq))
	for _, id := range g.observerSeq {
		observers = append(observers, g.observers[id])
	}
	g.pending = append(g.pending, notification{snapshot: g.snapshotLocked(), observers: observers})
	g.mu.Unlock()

	g.flush()
}

// flush delivers queued notifications in version order. Whichever mutator
// holds publishMu delivers everything queued so far, including the
// notifications of mutators still waiting for the lock.
func (g *Graph) flush() {
	g.publishMu.Lock()
	defer g.publishMu.Unlock()

	for {
		g.mu.Lock()
		if len(g.pending) == 0 {
			g.mu.Unlock()
			return
		}
		next := g.pending[0]
		g.pending[0] = notification{}
		g.pending = g.pending[1:]
		g.mu.Unlock()

		for _, o := range next.observers {
			o.OnGraphChanged(next.snapshot)
		}
	}
}

// GetNode returns a copy of the node with the given id
func (g *Graph) GetNode(id valueobjects.NodeID) (*entities.Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return node.Clone(), true
}

// HasNode checks if a node exists in the graph
func (g *Graph) HasNode(id valueobjects.NodeID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.nodes[id]
	return ok
}

// GetEdge returns a copy of the edge with the given id
func (g *Graph) GetEdge(id string) (*entities.Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edge, ok := g.edges[id]
	if !ok {
		return nil, false
	}
	return edge.Clone(), true
}

// OutgoingEdges returns copies of the edges leaving id in insertion order
func (g *Graph) OutgoingEdges(id valueobjects.NodeID) []*entities.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*entities.Edge
	for _, edgeID := range g.edgeOrder {
		if e := g.edges[edgeID]; e.Source().Equals(id) {
			out = append(out, e.Clone())
		}
	}
	return out
}

// AllNodes returns copies of all nodes in insertion order
func (g *Graph) AllNodes() []*entities.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodesLocked()
}

// AllEdges returns copies of all edges in insertion order
func (g *Graph) AllEdges() []*entities.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgesLocked()
}

// Version returns the number of mutations applied so far
func (g *Graph) Version() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

// Snapshot returns an immutable copy of the whole graph
func (g *Graph) Snapshot() GraphSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshotLocked()
}

// Stats returns node and edge counters
func (g *Graph) Stats() GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := GraphStats{
		Version:   g.version,
		NodeCount: len(g.nodes),
		EdgeCount: len(g.edges),
		ByKind:    make(map[valueobjects.NodeKind]int),
		EdgeKinds: make(map[entities.EdgeKind]int),
	}
	for _, n := range g.nodes {
		stats.ByKind[n.Kind()]++
		if n.IsDegraded() {
			stats.Degraded++
		}
	}
	for _, e := range g.edges {
		stats.EdgeKinds[e.Kind()]++
	}
	return stats
}

// Subscribe registers an observer and returns a function removing it
func (g *Graph) Subscribe(observer Observer) func() {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextObserver
	g.nextObserver++
	g.observers[id] = observer
	g.observerSeq = append(g.observerSeq, id)

	var once sync.Once
	return func() {
		once.Do(func() { g.unsubscribe(id) })
	}
}

func (g *Graph) unsubscribe(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.observers, id)
	for i, seq := range g.observerSeq {
		if seq == id {
			g.observerSeq = append(g.observerSeq[:i], g.observerSeq[i+1:]...)
			break
		}
	}
}

// DrainEvents returns the domain events recorded since the last drain and
// clears them
func (g *Graph) DrainEvents() []events.DomainEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	drained := g.events
	g.events = []events.DomainEvent{}
	return drained
}

func (g *Graph) snapshotLocked() GraphSnapshot {
	return GraphSnapshot{
		Version: g.version,
		Nodes:   g.nodesLocked(),
		Edges:   g.edgesLocked(),
	}
}

func (g *Graph) nodesLocked() []*entities.Node {
	nodes := make([]*entities.Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		nodes = append(nodes, g.nodes[id].Clone())
	}
	return nodes
}

func (g *Graph) edgesLocked() []*entities.Edge {
	edges := make([]*entities.Edge, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		edges = append(edges, g.edges[id].Clone())
	}
	return edges
}
