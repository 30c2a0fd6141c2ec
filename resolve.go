package fhirmsg

import "strings"

// RefTo builds a scheme-prefixed reference to an entry identity.
func RefTo(identity string) string { return RefScheme + identity }

// NormalizeRef strips the recognized reference scheme prefix, if present.
// Bare references pass through unchanged so both forms resolve identically.
func NormalizeRef(ref string) string {
	return strings.TrimPrefix(ref, RefScheme)
}

// pool is the set of same-kind entries extracted from one envelope during
// parsing. Envelopes are small, so resolution is a linear scan.
type pool[T Resource] struct {
	items []poolItem[T]
}

type poolItem[T Resource] struct {
	identity string
	resource T
}

func (p *pool[T]) add(identity string, res T) {
	p.items = append(p.items, poolItem[T]{identity: identity, resource: res})
}

func (p *pool[T]) empty() bool { return len(p.items) == 0 }

func (p *pool[T]) size() int { return len(p.items) }

// first returns the earliest entry in envelope order.
func (p *pool[T]) first() (T, bool) {
	var zero T
	if len(p.items) == 0 {
		return zero, false
	}
	return p.items[0].resource, true
}

// resolve matches a reference string against the pool by exact identity
// equality after prefix normalization. First match wins.
func (p *pool[T]) resolve(ref string) (T, bool) {
	var zero T
	if ref == "" {
		return zero, false
	}
	id := NormalizeRef(ref)
	for _, it := range p.items {
		if it.identity == id {
			return it.resource, true
		}
	}
	return zero, false
}
