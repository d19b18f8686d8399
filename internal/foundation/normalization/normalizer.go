// Package normalization maps free-form configuration input onto a fixed set
// of string enum values.
package normalization

import (
	"slices"
	"strings"
)

// Normalizer matches raw input against known values, ignoring case and
// surrounding whitespace.
type Normalizer[T ~string] struct {
	values map[string]T
	keys   []string
}

// New builds a Normalizer accepting values.
func New[T ~string](values ...T) *Normalizer[T] {
	n := &Normalizer[T]{values: make(map[string]T, len(values))}
	for _, v := range values {
		key := clean(string(v))
		n.values[key] = v
		n.keys = append(n.keys, key)
	}
	slices.Sort(n.keys)
	return n
}

func clean(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Normalize returns the canonical value for raw and whether it is known.
func (n *Normalizer[T]) Normalize(raw string) (T, bool) {
	v, ok := n.values[clean(raw)]
	return v, ok
}

// Valid lists accepted values for error messages.
func (n *Normalizer[T]) Valid() string {
	return strings.Join(n.keys, ", ")
}
