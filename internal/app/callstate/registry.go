package callstate

import (
	"github.com/jsamuelsen/callrelay/internal/domain"
)

// entry is a registered context plus whether it holds a limiter slot.
type entry struct {
	call    *domain.CallContext
	limited bool
}

// CallRegistry maps call ids to their correlation contexts.
// It is not safe for concurrent use on its own; Store serializes access.
type CallRegistry struct {
	calls map[string]entry
}

// NewCallRegistry creates an empty registry.
func NewCallRegistry() *CallRegistry {
	return &CallRegistry{calls: make(map[string]entry)}
}

// Insert registers c under c.ID. An existing entry is never overwritten.
func (r *CallRegistry) Insert(c *domain.CallContext) error {
	return r.insert(c, false)
}

func (r *CallRegistry) insert(c *domain.CallContext, limited bool) error {
	if _, exists := r.calls[c.ID]; exists {
		return domain.NewDuplicateRegistrationError(c.ID)
	}

	r.calls[c.ID] = entry{call: c, limited: limited}

	return nil
}

// Lookup returns the context registered under id.
func (r *CallRegistry) Lookup(id string) (*domain.CallContext, bool) {
	e, ok := r.calls[id]
	return e.call, ok
}

// Remove unregisters id and drops the context's resource reference.
// A second removal of the same id returns false and releases nothing.
func (r *CallRegistry) Remove(id string) (*domain.CallContext, bool) {
	e, ok := r.remove(id)
	return e.call, ok
}

func (r *CallRegistry) remove(id string) (entry, bool) {
	e, ok := r.take(id)
	if ok {
		e.call.Close()
	}

	return e, ok
}

// take unregisters id and leaves the resource reference with the caller.
func (r *CallRegistry) take(id string) (entry, bool) {
	e, ok := r.calls[id]
	if !ok {
		return entry{}, false
	}

	delete(r.calls, id)

	return e, true
}

// Len returns the number of registered calls.
func (r *CallRegistry) Len() int {
	return len(r.calls)
}
