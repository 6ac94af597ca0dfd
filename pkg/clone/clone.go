// Package clone provides the deep-copy capability the cache uses to isolate
// stored values from callers.
//
// A value handed to Put is copied before it is stored, and every Get hands
// out a fresh copy, so neither side can mutate the other's graph.
package clone

import (
	"net/netip"
	"reflect"
	"time"

	goclone "github.com/huandu/go-clone"
)

// Values of these types are immutable but hold interned pointers that must
// stay shared; a deep copy would break their equality checks.
func init() {
	for _, t := range []reflect.Type{
		reflect.TypeOf(netip.Addr{}),
		reflect.TypeOf(netip.AddrPort{}),
		reflect.TypeOf(netip.Prefix{}),
		reflect.TypeOf(time.Time{}),
	} {
		goclone.MarkAsScalar(t)
	}
}

// Copier duplicates values of type V.
type Copier[V any] interface {
	Copy(v V) V
}

// CopierFunc adapts a plain function to Copier.
type CopierFunc[V any] func(V) V

// Copy calls f(v).
func (f CopierFunc[V]) Copy(v V) V {
	return f(v)
}

// Cloner is implemented by types that know how to copy themselves.
// Deep prefers it over reflection.
type Cloner[V any] interface {
	Clone() V
}

// Deep returns a Copier that duplicates the whole value graph, unexported
// struct fields included. Maps, slices, pointers and arrays are copied
// recursively; netip addresses and time.Time are copied as values. Graphs
// must be acyclic.
func Deep[V any]() Copier[V] {
	return deepCopier[V]{}
}

type deepCopier[V any] struct{}

func (deepCopier[V]) Copy(v V) V {
	if c, ok := any(v).(Cloner[V]); ok {
		return c.Clone()
	}

	out, ok := goclone.Clone(v).(V)
	if !ok {
		var zero V
		return zero
	}
	return out
}

// Identity returns a Copier that hands values through unchanged. It is only
// safe for immutable payloads such as strings and numbers.
func Identity[V any]() Copier[V] {
	return CopierFunc[V](func(v V) V { return v })
}
