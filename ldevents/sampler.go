package ldevents

import (
	"math/rand"
	"sync"
	"time"
)

// sampler makes the keep-or-drop decision for an event with a sampling ratio. A ratio of n
// gives the event a 1 in n chance of being kept; 1 means always kept, and a zero or negative
// ratio means always dropped. Callers resolve an unset ratio to 1 before asking.
type sampler interface {
	Sample(ratio int) bool
}

type randomSampler struct {
	lock sync.Mutex // rand.Rand is not safe for concurrent use
	rng  *rand.Rand
}

func newRandomSampler() *randomSampler {
	return &randomSampler{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *randomSampler) Sample(ratio int) bool {
	if ratio <= 0 {
		return false
	}
	if ratio == 1 {
		return true
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.rng.Int63n(int64(ratio)) == 0
}
