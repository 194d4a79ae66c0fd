package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator issues deterministic identifiers. Each prefix keeps its own
// counter, so "res-2" stays "res-2" however many "event" ids were issued in
// between.
type IDGenerator struct {
	mu       sync.Mutex
	prefix   string
	counters map[string]int
}

// NewIDGenerator constructs a generator whose default prefix is prefix, or
// "id" when empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix, counters: make(map[string]int)}
}

// Next returns the next identifier with the default prefix.
func (g *IDGenerator) Next() string {
	return g.next(g.prefix)
}

// NextFunc exposes Next for dependency injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// For returns a sequence with its own prefix and counter.
func (g *IDGenerator) For(prefix string) func() string {
	if g == nil {
		return func() string { return "" }
	}
	return func() string { return g.next(prefix) }
}

func (g *IDGenerator) next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[prefix]++
	return fmt.Sprintf("%s-%d", prefix, g.counters[prefix])
}

// Issued reports how many identifiers were handed out across all prefixes.
func (g *IDGenerator) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.counters {
		total += n
	}
	return total
}
