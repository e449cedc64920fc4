package coordinator

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/chaosswarm/chaosswarm/pkg/api"
)

// DefaultMaxTargets is the largest count the current action vocabulary accepts
const DefaultMaxTargets = 1

// TargetSelector narrows candidates to the requested number of targets,
// uniformly at random and without replacement
type TargetSelector struct {
	mu         sync.Mutex
	rand       *rand.Rand
	maxTargets int
}

// NewTargetSelector creates a selector. A nil source is seeded from the
// clock; maxTargets below 1 falls back to DefaultMaxTargets.
func NewTargetSelector(src rand.Source, maxTargets int) *TargetSelector {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	if maxTargets < 1 {
		maxTargets = DefaultMaxTargets
	}
	return &TargetSelector{
		rand:       rand.New(src),
		maxTargets: maxTargets,
	}
}

// ParseCount validates a requested count against policy without looking at
// any candidates
func (s *TargetSelector) ParseCount(count api.TargetCount) (int, error) {
	n, ok := count.Int()
	if !ok || n < 1 || n > s.maxTargets {
		return 0, fmt.Errorf("%w: %q (supported: 1..%d)", ErrInvalidTargetCount, string(count), s.maxTargets)
	}
	return n, nil
}

// Select picks exactly count distinct candidates. It fails without choosing
// anything when the count is unsupported or exceeds the candidates.
func (s *TargetSelector) Select(candidates []Candidate, count api.TargetCount) ([]Target, error) {
	n, err := s.ParseCount(count)
	if err != nil {
		return nil, err
	}
	if n > len(candidates) {
		return nil, fmt.Errorf("%w: requested %d targets but only %d candidates", ErrInvalidTargetCount, n, len(candidates))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Sample(s.rand, candidates, n), nil
}

// Sample returns n distinct elements of items chosen uniformly at random.
// items is not modified. n must not exceed len(items).
func Sample[T any](r *rand.Rand, items []T, n int) []T {
	pool := make([]T, len(items))
	copy(pool, items)

	// Partial Fisher-Yates: the first n slots end up holding the sample
	for i := 0; i < n; i++ {
		j := i + r.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
