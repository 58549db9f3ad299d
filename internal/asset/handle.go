package asset

import "sync"

// Handle is the shared reference to one managed resource. Every Get for the
// same ID returns the same *Handle, and the handle outlives its registry
// entry: after Destroy it still holds the destroyed resource.
//
// The resource may only be touched inside Do. A panic inside Do poisons the
// handle; later manager operations on it fail with KindLockPoisoned.
type Handle[A Asset] struct {
	mu         sync.Mutex
	value      A
	poisoned   bool
	destroyed  bool
	generation uint64
}

func newHandle[A Asset](value A) *Handle[A] {
	return &Handle[A]{value: value}
}

// Do runs fn with exclusive access to the resource. The panic of fn, if any,
// is re-raised after the handle is marked poisoned.
func (h *Handle[A]) Do(fn func(A)) error {
	return h.with(func(value A) error {
		fn(value)
		return nil
	})
}

// Poisoned reports whether a holder panicked inside Do.
func (h *Handle[A]) Poisoned() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.poisoned
}

func (h *Handle[A]) with(fn func(A) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.poisoned {
		return &Error{Kind: KindLockPoisoned, Message: "a previous holder panicked"}
	}

	completed := false
	defer func() {
		if !completed {
			h.poisoned = true
		}
	}()
	err := fn(h.value)
	completed = true
	return err
}

// destroy destroys the current resource once and reports which generation it
// was.
func (h *Handle[A]) destroy() (uint64, error) {
	var generation uint64
	err := h.with(func(value A) error {
		generation = h.generation
		if h.destroyed {
			return nil
		}
		h.destroyed = true
		return value.Destroy()
	})
	return generation, err
}

func (h *Handle[A]) currentGeneration() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generation
}

// replace swaps next into the handle and returns the previous resource.
// live is false when the previous resource was already destroyed.
func (h *Handle[A]) replace(next A) (previous A, live bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.poisoned {
		return previous, false, &Error{Kind: KindLockPoisoned, Message: "a previous holder panicked"}
	}
	previous, live = h.value, !h.destroyed
	h.value = next
	h.destroyed = false
	h.generation++
	return previous, live, nil
}
