package formstate

import "sync"

// failureRing is a thread-safe ring buffer of recent save failures.
type failureRing struct {
	mu     sync.RWMutex
	errors []error
	size   int
	head   int
	count  int
}

// newFailureRing creates a ring with the given capacity.
// If size is 0, history is disabled and nil is returned.
func newFailureRing(size int) *failureRing {
	if size <= 0 {
		return nil
	}
	return &failureRing{
		errors: make([]error, size),
		size:   size,
	}
}

// push records a failure, overwriting the oldest once full.
func (r *failureRing) push(err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors[r.head] = err
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// clear drops all recorded failures.
func (r *failureRing) clear() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.errors)
	r.head = 0
	r.count = 0
}

// all returns the recorded failures, oldest first.
func (r *failureRing) all() []error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}

	out := make([]error, r.count)
	start := (r.head - r.count + r.size) % r.size
	for i := range out {
		out[i] = r.errors[(start+i)%r.size]
	}
	return out
}
