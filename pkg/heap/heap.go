// Package heap is the indexed, reference-counted object store shared by
// the rest of the engine. Objects never move and are never compacted;
// a freed slot's index is retired, never reused, so a reference always
// names the same object (or nothing) for the program's whole lifetime.
package heap

import (
	"fmt"
	"sync"
)

// Null is the sentinel reference value meaning "no object", chosen as the
// maximum uint32 so ordinary small indices never collide with it.
const Null uint32 = 0xFFFFFFFF

// Value is anything the heap stores behind a reference: it must know how
// to walk its own reference-typed fields so the heap can cascade a
// DecRef when the owning slot is freed.
type Value interface {
	// References returns every outgoing reference this value holds
	// (object fields, array elements), so the heap can recursively
	// decrement them on free.
	References() []uint32
}

type entry struct {
	value  Value
	refs   int
	inUse  bool
}

// Heap is a slice-backed, mutex-guarded pool of reference-counted values.
type Heap struct {
	mu    sync.Mutex
	slots []entry
}

// New returns an empty heap.
func New() *Heap {
	return &Heap{}
}

// Allocate stores v at a fresh slot with an initial refcount of 1 and
// returns its reference. Freed slots are never reused (simple freeing;
// compaction is out of scope), so a live reference is always valid for
// as long as the object it names is.
func (h *Heap) Allocate(v Value) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := uint32(len(h.slots))
	h.slots = append(h.slots, entry{value: v, refs: 1, inUse: true})
	return idx
}

// Get returns the value stored at ref. It panics if ref is Null or does
// not name a live slot — a dangling reference is an engine bug, not a
// recoverable runtime condition.
func (h *Heap) Get(ref uint32) Value {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.getLocked(ref)
}

func (h *Heap) getLocked(ref uint32) Value {
	if ref == Null {
		panic("heap: Get(Null)")
	}
	if int(ref) >= len(h.slots) || !h.slots[ref].inUse {
		panic(fmt.Sprintf("heap: Get(%d): not a live reference", ref))
	}
	return h.slots[ref].value
}

// IncRef bumps ref's count by one. A no-op on Null.
func (h *Heap) IncRef(ref uint32) {
	if ref == Null {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(ref) >= len(h.slots) || !h.slots[ref].inUse {
		panic(fmt.Sprintf("heap: IncRef(%d): not a live reference", ref))
	}
	h.slots[ref].refs++
}

// DecRef drops ref's count by one, freeing the slot and cascading the
// decrement to every reference the freed value held once it reaches
// zero. A no-op on Null.
func (h *Heap) DecRef(ref uint32) {
	if ref == Null {
		return
	}
	h.mu.Lock()
	h.decRefLocked(ref)
	h.mu.Unlock()
}

func (h *Heap) decRefLocked(ref uint32) {
	if int(ref) >= len(h.slots) || !h.slots[ref].inUse {
		panic(fmt.Sprintf("heap: DecRef(%d): not a live reference", ref))
	}
	e := &h.slots[ref]
	e.refs--
	if e.refs > 0 {
		return
	}
	children := e.value.References()
	e.value = nil
	e.inUse = false
	for _, child := range children {
		if child != Null {
			h.decRefLocked(child)
		}
	}
}

// RefCount returns ref's current count, for tests and diagnostics.
func (h *Heap) RefCount(ref uint32) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ref == Null || int(ref) >= len(h.slots) || !h.slots[ref].inUse {
		return 0
	}
	return h.slots[ref].refs
}

// Live reports whether ref currently names a live object.
func (h *Heap) Live(ref uint32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return ref != Null && int(ref) < len(h.slots) && h.slots[ref].inUse
}

// Len returns the number of slots ever allocated, including freed ones
// still occupying a slot index — useful for capacity diagnostics, not a
// live-object count.
func (h *Heap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.slots)
}
