package stream

import (
	"errors"
	"fmt"
	"math"
)

// ErrMissing is returned by the typed getters of [Map] for absent keys.
var ErrMissing = errors.New("missing field")

// Map is an insertion-ordered mapping from field names to values. Values are scalars, []byte,
// []any or *Map.
type Map struct {
	keys   []string
	values map[string]any
}

func NewMap() *Map {
	return &Map{values: make(map[string]any)}
}

// Set adds or replaces a field. A replaced field keeps its position.
func (m *Map) Set(key string, value any) *Map {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return m
}

func (m *Map) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns field names in insertion order.
func (m *Map) Keys() []string {
	return m.keys
}

func (m *Map) Len() int {
	return len(m.keys)
}

func (m *Map) String(key string) (string, error) {
	v, err := m.field(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError(key, v, "string")
	}
	return s, nil
}

func (m *Map) Bytes(key string) ([]byte, error) {
	v, err := m.field(key)
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, typeError(key, v, "bytes")
	}
	return b, nil
}

// Uint returns a non-negative integer field. Decoders pick the smallest encoding, so any
// integer type is accepted.
func (m *Map) Uint(key string) (uint64, error) {
	v, err := m.field(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint:
		return uint64(n), nil
	case int64:
		if n >= 0 {
			return uint64(n), nil
		}
	case int:
		if n >= 0 {
			return uint64(n), nil
		}
	}
	return 0, typeError(key, v, "unsigned integer")
}

// UintN is like Uint but also checks that the value fits into bits.
func (m *Map) UintN(key string, bits int) (uint64, error) {
	n, err := m.Uint(key)
	if err != nil {
		return 0, err
	}
	if bits < 64 && n > uint64(math.MaxUint64)>>(64-bits) {
		return 0, fmt.Errorf("field %q: %d overflows %d bits", key, n, bits)
	}
	return n, nil
}

func (m *Map) Map(key string) (*Map, error) {
	v, err := m.field(key)
	if err != nil {
		return nil, err
	}
	sub, ok := v.(*Map)
	if !ok {
		return nil, typeError(key, v, "map")
	}
	return sub, nil
}

func (m *Map) field(key string) (any, error) {
	v, ok := m.values[key]
	if !ok {
		return nil, fmt.Errorf("field %q: %w", key, ErrMissing)
	}
	return v, nil
}

func typeError(key string, v any, want string) error {
	return fmt.Errorf("field %q is %T, want %s", key, v, want)
}
