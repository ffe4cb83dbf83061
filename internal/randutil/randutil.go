// Package randutil provides rand sources safe to share across goroutines.
package randutil

import (
	"math/rand"
	"sync"
	"time"
)

// lockedSource serializes draws from an underlying source so one *rand.Rand
// can be shared by concurrent callers.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

// New returns a time-seeded *rand.Rand safe for concurrent use.
func New() *rand.Rand {
	return Wrap(rand.NewSource(time.Now().UnixNano()))
}

// Wrap guards src with a mutex. A *rand.Rand is itself a valid src, which
// lets tests pass a deterministic generator.
func Wrap(src rand.Source) *rand.Rand {
	return rand.New(&lockedSource{src: src})
}
