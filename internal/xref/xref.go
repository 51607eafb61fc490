// Package xref maintains the directed cross-reference graph between
// addresses: forward edges From→To and an inverse index To→From-set.
package xref

import (
	"slices"

	"github.com/retroenv/disasmdb/internal/address"
)

// Graph stores cross-references. Every From address has at most one
// outgoing edge; a To address can be referenced from many places.
// The graph is not safe for concurrent use, the document serialises
// access to it.
type Graph struct {
	forward map[address.Address]address.Address
	inverse map[address.Address][]address.Address
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		forward: map[address.Address]address.Address{},
		inverse: map[address.Address][]address.Address{},
	}
}

// Add inserts the edge from→to. It returns false if from already has an
// outgoing edge.
func (g *Graph) Add(to, from address.Address) bool {
	if _, ok := g.forward[from]; ok {
		return false
	}
	g.forward[from] = to

	sources := g.inverse[to]
	idx, _ := slices.BinarySearchFunc(sources, from, address.Address.Compare)
	g.inverse[to] = slices.Insert(sources, idx, from)
	return true
}

// RemoveFrom deletes the outgoing edge of from. It returns false if no
// such edge exists.
func (g *Graph) RemoveFrom(from address.Address) bool {
	to, ok := g.forward[from]
	if !ok {
		return false
	}
	delete(g.forward, from)

	sources := g.inverse[to]
	idx, found := slices.BinarySearchFunc(sources, from, address.Address.Compare)
	if found {
		sources = slices.Delete(sources, idx, idx+1)
	}
	if len(sources) == 0 {
		delete(g.inverse, to)
	} else {
		g.inverse[to] = sources
	}
	return true
}

// Clear removes every edge.
func (g *Graph) Clear() {
	g.forward = map[address.Address]address.Address{}
	g.inverse = map[address.Address][]address.Address{}
}

// To returns the target of the outgoing edge of from.
func (g *Graph) To(from address.Address) (address.Address, bool) {
	to, ok := g.forward[from]
	return to, ok
}

// From returns the sorted source addresses referencing to.
func (g *Graph) From(to address.Address) ([]address.Address, bool) {
	sources, ok := g.inverse[to]
	if !ok {
		return nil, false
	}
	return slices.Clone(sources), true
}

// HasFrom reports whether anything references to.
func (g *Graph) HasFrom(to address.Address) bool {
	return len(g.inverse[to]) > 0
}

// HasTo reports whether from has an outgoing edge.
func (g *Graph) HasTo(from address.Address) bool {
	_, ok := g.forward[from]
	return ok
}

// Tos returns all referenced target addresses in ascending order.
func (g *Graph) Tos() []address.Address {
	tos := make([]address.Address, 0, len(g.inverse))
	for to := range g.inverse {
		tos = append(tos, to)
	}
	slices.SortFunc(tos, address.Address.Compare)
	return tos
}

// Len returns the number of forward edges.
func (g *Graph) Len() int {
	return len(g.forward)
}
