package callstate

import (
	"sort"
	"time"

	"github.com/jsamuelsen/callrelay/internal/domain"
)

// DefaultUnloadTimeout bounds how long shutdown waits for the critical section.
const DefaultUnloadTimeout = 500 * time.Millisecond

// Store guards the KeyedCounter and CallRegistry with a single critical section,
// so acquire+insert and remove+release are each observed as one step.
//
// The lock is a one-slot channel rather than a sync.Mutex so that shutdown can
// wait for it with a deadline.
type Store struct {
	sem      chan struct{}
	counter  *KeyedCounter
	registry *CallRegistry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sem:      make(chan struct{}, 1),
		counter:  NewKeyedCounter(),
		registry: NewCallRegistry(),
	}
}

func (s *Store) lock() { s.sem <- struct{}{} }

func (s *Store) unlock() { <-s.sem }

// TryLock waits up to timeout for the critical section. On success the caller
// owns it until unlock is called; on timeout it returns domain.ErrBusy.
func (s *Store) TryLock(timeout time.Duration) (unlock func(), err error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		return s.unlock, nil
	case <-timer.C:
		return nil, domain.ErrBusy
	}
}

// Admit takes a limiter slot for c.DestinationKey and registers c in the same
// critical section. A rejected slot leaves both maps untouched. A duplicate id
// gives the slot back and returns the registry error.
func (s *Store) Admit(c *domain.CallContext, ceiling int) (Verdict, error) {
	s.lock()
	defer s.unlock()

	if s.counter.Acquire(c.DestinationKey, ceiling) == Rejected {
		return Rejected, nil
	}

	if err := s.registry.insert(c, true); err != nil {
		s.counter.Release(c.DestinationKey)
		return Rejected, err
	}

	return Accepted, nil
}

// Register inserts c without touching the limiter.
func (s *Store) Register(c *domain.CallContext) error {
	s.lock()
	defer s.unlock()

	return s.registry.insert(c, false)
}

// Retire removes the context registered under id and, if it was admitted
// through the limiter, gives its slot back. It is idempotent.
func (s *Store) Retire(id string) (*domain.CallContext, bool) {
	s.lock()
	defer s.unlock()

	e, ok := s.registry.remove(id)
	if !ok {
		return nil, false
	}

	if e.limited {
		s.counter.Release(e.call.DestinationKey)
	}

	return e.call, true
}

// Claim unregisters id and gives back its limiter slot like Retire, but the
// context keeps its resource reference until done is called. Of concurrent
// claims on one id exactly one succeeds, and the id is free for a new
// registration as soon as Claim returns.
func (s *Store) Claim(id string) (c *domain.CallContext, done func(), ok bool) {
	s.lock()
	defer s.unlock()

	e, ok := s.registry.take(id)
	if !ok {
		return nil, nil, false
	}

	if e.limited {
		s.counter.Release(e.call.DestinationKey)
	}

	return e.call, e.call.Close, true
}

// Lookup returns the context registered under id.
func (s *Store) Lookup(id string) (*domain.CallContext, bool) {
	s.lock()
	defer s.unlock()

	return s.registry.Lookup(id)
}

// Acquire exposes the limiter alone.
func (s *Store) Acquire(key string, ceiling int) Verdict {
	s.lock()
	defer s.unlock()

	return s.counter.Acquire(key, ceiling)
}

// Release exposes the limiter alone.
func (s *Store) Release(key string) {
	s.lock()
	defer s.unlock()

	s.counter.Release(key)
}

// Count returns the limiter count for key.
func (s *Store) Count(key string) int {
	s.lock()
	defer s.unlock()

	return s.counter.Count(key)
}

// Len returns the number of registered calls.
func (s *Store) Len() int {
	s.lock()
	defer s.unlock()

	return s.registry.Len()
}

// CallView is a read-only copy of a registered context.
type CallView struct {
	ID             string             `json:"id"`
	Kind           domain.PayloadKind `json:"kind"`
	DestinationKey string             `json:"destinationKey"`
	Limited        bool               `json:"limited"`
	ResourceID     string             `json:"resourceId,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// Snapshot is a consistent copy of the store taken under one lock.
type Snapshot struct {
	Calls  []CallView     `json:"calls"`
	Limits map[string]int `json:"limits"`
}

// Snapshot copies the registry and the limiter, calls ordered by id.
func (s *Store) Snapshot() Snapshot {
	s.lock()
	defer s.unlock()

	calls := make([]CallView, 0, s.registry.Len())
	for id, e := range s.registry.calls {
		view := CallView{
			ID:             id,
			Kind:           e.call.Kind(),
			DestinationKey: e.call.DestinationKey,
			Limited:        e.limited,
			CreatedAt:      e.call.CreatedAt,
		}
		if res := e.call.Resource(); res != nil {
			view.ResourceID = res.ID()
		}
		calls = append(calls, view)
	}

	sort.Slice(calls, func(i, j int) bool { return calls[i].ID < calls[j].ID })

	return Snapshot{Calls: calls, Limits: s.counter.snapshot()}
}
