package service

import "sync"

// stampedeTracker counts overlapping misses per cache key. Overlap is measured only; every
// miss still fetches upstream and the last write wins.
type stampedeTracker struct {
	mu       sync.Mutex
	inFlight map[string]int
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{inFlight: map[string]int{}}
}

// begin registers a miss on key. It returns how many misses on key are now running, counting
// this one, and a release func that must be called exactly once.
func (st *stampedeTracker) begin(key string) (int, func()) {
	st.mu.Lock()
	st.inFlight[key]++
	n := st.inFlight[key]
	st.mu.Unlock()

	var once sync.Once
	return n, func() { once.Do(func() { st.release(key) }) }
}

func (st *stampedeTracker) release(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.inFlight[key] <= 1 {
		delete(st.inFlight, key)
		return
	}
	st.inFlight[key]--
}
