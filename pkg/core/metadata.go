package core

import "iter"

// KeyValue is a single free-form metadata entry.
type KeyValue struct {
	Key   string
	Value string
}

// Metadata is a small insertion-ordered list of unique keys.
// Lookups are linear; the lists are expected to hold a handful of entries.
type Metadata struct {
	entries []KeyValue
}

// Add appends a key/value pair. Adding a key twice fails with ErrDuplicateKey.
func (m *Metadata) Add(key, value string) error {
	if _, ok := m.Get(key); ok {
		return invalid("metadata", ErrDuplicateKey, "key %q already present", key)
	}
	m.entries = append(m.entries, KeyValue{Key: key, Value: value})
	return nil
}

// Get returns the value stored under key.
func (m Metadata) Get(key string) (string, bool) {
	for _, kv := range m.entries {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Len returns the number of entries.
func (m Metadata) Len() int {
	return len(m.entries)
}

// All iterates entries in insertion order.
func (m Metadata) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, kv := range m.entries {
			if !yield(kv.Key, kv.Value) {
				return
			}
		}
	}
}

// Entries returns a copy of the entries in insertion order.
func (m Metadata) Entries() []KeyValue {
	out := make([]KeyValue, len(m.entries))
	copy(out, m.entries)
	return out
}

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	if len(m.entries) == 0 {
		return Metadata{}
	}
	return Metadata{entries: m.Entries()}
}
