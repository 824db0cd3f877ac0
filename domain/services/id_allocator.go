package services

import (
	"sync/atomic"

	"github.com/dipan99/mindmapper/domain/core/valueobjects"
)

// IDAllocator hands out node identifiers. One counter is shared by every
// kind, so "query-3" and "answer-3" never both exist.
type IDAllocator struct {
	next atomic.Uint64
}

// NewIDAllocator creates an allocator whose first id uses counter start.
// A zero start is treated as 1.
func NewIDAllocator(start uint64) *IDAllocator {
	if start == 0 {
		start = 1
	}
	a := &IDAllocator{}
	a.next.Store(start)
	return a
}

// NextID returns a fresh id of the given kind. Safe for concurrent use.
func (a *IDAllocator) NextID(kind valueobjects.NodeKind) (valueobjects.NodeID, error) {
	n := a.next.Add(1) - 1
	return valueobjects.NewNodeID(kind, n)
}

// Peek returns the counter the next allocation will use
func (a *IDAllocator) Peek() uint64 {
	return a.next.Load()
}

// AdvancePast makes sure later allocations never reuse id's counter.
// Used when nodes created elsewhere (a seeded graph) are loaded.
func (a *IDAllocator) AdvancePast(id valueobjects.NodeID) {
	want := id.Counter() + 1
	for {
		cur := a.next.Load()
		if cur >= want {
			return
		}
		if a.next.CompareAndSwap(cur, want) {
			return
		}
	}
}
