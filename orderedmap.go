package quickentity

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// OrderedMap is a string-keyed, insertion-ordered map. Insertion order is
// the single source of truth for RT array order and patch-op order
// (spec.md §3, §9 "Insertion-ordered maps") — it is never a cosmetic
// detail, so every QN collection that round-trips into an RT array or a
// deterministic patch op list is backed by one of these instead of a
// plain Go map.
type OrderedMap[V any] struct {
	om *orderedmap.OrderedMap[string, V]
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap[V any]() *OrderedMap[V] {
	return &OrderedMap[V]{om: orderedmap.New[string, V]()}
}

// Set inserts or updates key, preserving the position of an existing key.
func (m *OrderedMap[V]) Set(key string, value V) {
	if m.om == nil {
		m.om = orderedmap.New[string, V]()
	}
	m.om.Set(key, value)
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap[V]) Get(key string) (V, bool) {
	if m == nil || m.om == nil {
		var zero V
		return zero, false
	}
	return m.om.Get(key)
}

// Delete removes key, reporting whether it was present.
func (m *OrderedMap[V]) Delete(key string) bool {
	if m == nil || m.om == nil {
		return false
	}
	_, ok := m.om.Delete(key)
	return ok
}

// Len returns the number of entries.
func (m *OrderedMap[V]) Len() int {
	if m == nil || m.om == nil {
		return 0
	}
	return m.om.Len()
}

// Keys returns the keys in insertion order.
func (m *OrderedMap[V]) Keys() []string {
	if m == nil || m.om == nil {
		return nil
	}
	keys := make([]string, 0, m.om.Len())
	for pair := m.om.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Range calls f for every entry in insertion order, stopping early if f
// returns false.
func (m *OrderedMap[V]) Range(f func(key string, value V) bool) {
	if m == nil || m.om == nil {
		return
	}
	for pair := m.om.Oldest(); pair != nil; pair = pair.Next() {
		if !f(pair.Key, pair.Value) {
			return
		}
	}
}

func (m *OrderedMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var err error
	m.Range(func(key string, value V) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		var keyBytes, valBytes []byte
		keyBytes, err = json.Marshal(key)
		if err != nil {
			return false
		}
		valBytes, err = json.Marshal(value)
		if err != nil {
			return false
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		buf.Write(valBytes)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *OrderedMap[V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	m.om = orderedmap.New[string, V]()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", keyTok)
		}
		var value V
		if err := dec.Decode(&value); err != nil {
			return err
		}
		m.om.Set(key, value)
	}
	return nil
}

// EntityOrderedMap is an EntityID-keyed, insertion-ordered map. Entity.Entities
// is the only collection keyed this way; its insertion order directly
// defines the RT sub-entity array order on write (spec.md §3).
type EntityOrderedMap[V any] struct {
	om *orderedmap.OrderedMap[EntityID, V]
}

// NewEntityOrderedMap returns an empty EntityOrderedMap.
func NewEntityOrderedMap[V any]() *EntityOrderedMap[V] {
	return &EntityOrderedMap[V]{om: orderedmap.New[EntityID, V]()}
}

func (m *EntityOrderedMap[V]) Set(key EntityID, value V) {
	if m.om == nil {
		m.om = orderedmap.New[EntityID, V]()
	}
	m.om.Set(key, value)
}

func (m *EntityOrderedMap[V]) Get(key EntityID) (V, bool) {
	if m == nil || m.om == nil {
		var zero V
		return zero, false
	}
	return m.om.Get(key)
}

func (m *EntityOrderedMap[V]) Delete(key EntityID) bool {
	if m == nil || m.om == nil {
		return false
	}
	_, ok := m.om.Delete(key)
	return ok
}

func (m *EntityOrderedMap[V]) Len() int {
	if m == nil || m.om == nil {
		return 0
	}
	return m.om.Len()
}

// Keys returns the keys in insertion order — this order IS the RT array order.
func (m *EntityOrderedMap[V]) Keys() []EntityID {
	if m == nil || m.om == nil {
		return nil
	}
	keys := make([]EntityID, 0, m.om.Len())
	for pair := m.om.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func (m *EntityOrderedMap[V]) Range(f func(key EntityID, value V) bool) {
	if m == nil || m.om == nil {
		return
	}
	for pair := m.om.Oldest(); pair != nil; pair = pair.Next() {
		if !f(pair.Key, pair.Value) {
			return
		}
	}
}

func (m *EntityOrderedMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var err error
	m.Range(func(key EntityID, value V) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		var valBytes []byte
		valBytes, err = json.Marshal(value)
		if err != nil {
			return false
		}
		buf.WriteByte('"')
		buf.WriteString(key.String())
		buf.WriteString(`":`)
		buf.Write(valBytes)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *EntityOrderedMap[V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	m.om = orderedmap.New[EntityID, V]()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		keyStr, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", keyTok)
		}
		key, err := ParseEntityID(keyStr)
		if err != nil {
			return err
		}
		var value V
		if err := dec.Decode(&value); err != nil {
			return err
		}
		m.om.Set(key, value)
	}
	return nil
}
