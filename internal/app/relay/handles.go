package relay

import (
	"sync"
)

// Handles tracks the call-leg handles referenced by in-flight messages and
// registered calls. A handle lives while at least one reference is held.
type Handles struct {
	mu   sync.Mutex
	live map[string]*Handle
}

// NewHandles creates an empty table.
func NewHandles() *Handles {
	return &Handles{live: make(map[string]*Handle)}
}

// Acquire returns the handle for id with one new reference taken, creating
// it if needed. The returned function drops that reference.
func (t *Handles) Acquire(id string) (*Handle, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.live[id]
	if !ok {
		h = &Handle{id: id, table: t}
		t.live[id] = h
	}
	h.refs++

	return h, h.releaser()
}

// Len returns the number of live handles.
func (t *Handles) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.live)
}

// Refs returns the reference count of id, 0 when not live.
func (t *Handles) Refs(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h, ok := t.live[id]; ok {
		return h.refs
	}

	return 0
}

// Handle is a reference-counted call-leg handle. It implements domain.Resource.
type Handle struct {
	id    string
	table *Handles
	refs  int // guarded by table.mu
}

// ID returns the engine's identifier for the call leg.
func (h *Handle) ID() string {
	return h.id
}

// Retain takes one reference. The returned function drops it and is safe to
// call more than once; only the first call counts.
func (h *Handle) Retain() func() {
	h.table.mu.Lock()
	h.refs++
	if _, ok := h.table.live[h.id]; !ok {
		h.table.live[h.id] = h
	}
	h.table.mu.Unlock()

	return h.releaser()
}

func (h *Handle) releaser() func() {
	var once sync.Once

	return func() {
		once.Do(h.drop)
	}
}

func (h *Handle) drop() {
	h.table.mu.Lock()
	defer h.table.mu.Unlock()

	h.refs--
	if h.refs <= 0 && h.table.live[h.id] == h {
		delete(h.table.live, h.id)
	}
}
