// Package pid hands out the synthetic process identifiers shown in terminal
// banners and window titles. They carry no OS meaning.
package pid

import (
	"math/rand/v2"
	"sync"
)

const (
	Min = 1000
	Max = 9999
)

// Generator draws PIDs uniformly from [Min, Max]. Values are not checked for
// uniqueness; two concurrent spawns may announce the same number.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a generator seeded from the runtime's entropy source.
func New() *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeeded returns a deterministic generator for tests.
func NewSeeded(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Next returns the next PID.
func (g *Generator) Next() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Min + g.rng.IntN(Max-Min+1)
}
