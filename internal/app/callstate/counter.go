// Package callstate holds the per-call correlation state shared by the relay
// procedures: the keyed concurrency counter, the call registry, and the Store
// that guards both with one critical section.
package callstate

// Verdict is the result of a limiter acquisition.
type Verdict int

const (
	// Accepted means the slot was taken.
	Accepted Verdict = iota + 1

	// Rejected means the ceiling would have been exceeded; nothing changed.
	Rejected
)

// String returns a human-readable name for the verdict.
func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// KeyedCounter counts in-flight calls per limiter key.
// It is not safe for concurrent use on its own; Store serializes access.
type KeyedCounter struct {
	counts map[string]int
}

// NewKeyedCounter creates an empty counter.
func NewKeyedCounter() *KeyedCounter {
	return &KeyedCounter{counts: make(map[string]int)}
}

// Acquire increments key and rolls the increment back if the new count
// exceeds ceiling. The ceiling is the one in force for this attempt only.
func (k *KeyedCounter) Acquire(key string, ceiling int) Verdict {
	k.counts[key]++
	if k.counts[key] > ceiling {
		k.Release(key)
		return Rejected
	}

	return Accepted
}

// Release decrements key, deleting the entry once it reaches zero.
// Releasing an absent key is a no-op.
func (k *KeyedCounter) Release(key string) {
	n, ok := k.counts[key]
	if !ok {
		return
	}

	if n <= 1 {
		delete(k.counts, key)
		return
	}

	k.counts[key] = n - 1
}

// Count returns the current count for key.
func (k *KeyedCounter) Count(key string) int {
	return k.counts[key]
}

// Len returns the number of keys with a nonzero count.
func (k *KeyedCounter) Len() int {
	return len(k.counts)
}

// snapshot copies the counts.
func (k *KeyedCounter) snapshot() map[string]int {
	out := make(map[string]int, len(k.counts))
	for key, n := range k.counts {
		out[key] = n
	}

	return out
}
