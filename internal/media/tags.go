package media

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
)

// Tags is an ordered string dictionary with unique keys. Key lookup is
// case-insensitive; the first spelling of a key is preserved.
type Tags struct {
	keys   []string
	values map[string]string
}

// NewTags returns an empty dictionary.
func NewTags() *Tags {
	return &Tags{values: make(map[string]string)}
}

// TagsFromMap builds a dictionary from m with keys in sorted order.
func TagsFromMap(m map[string]string) *Tags {
	t := NewTags()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		t.Set(k, m[k])
	}
	return t
}

// Set stores value under key, replacing any existing value in place.
func (t *Tags) Set(key, value string) {
	if t.values == nil {
		t.values = make(map[string]string)
	}
	norm := strings.ToLower(key)
	if _, ok := t.values[norm]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[norm] = value
}

// Get returns the value stored under key.
func (t *Tags) Get(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t.values[strings.ToLower(key)]
	return v, ok
}

// Delete removes key.
func (t *Tags) Delete(key string) {
	if t == nil {
		return
	}
	norm := strings.ToLower(key)
	if _, ok := t.values[norm]; !ok {
		return
	}
	delete(t.values, norm)
	for i, k := range t.keys {
		if strings.ToLower(k) == norm {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (t *Tags) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Keys returns keys in insertion order.
func (t *Tags) Keys() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.keys...)
}

// Each calls fn for every entry in insertion order.
func (t *Tags) Each(fn func(key, value string)) {
	if t == nil {
		return
	}
	for _, k := range t.keys {
		fn(k, t.values[strings.ToLower(k)])
	}
}

// Merge copies every entry of o into t.
func (t *Tags) Merge(o *Tags) {
	o.Each(t.Set)
}

// Clone returns a copy.
func (t *Tags) Clone() *Tags {
	c := NewTags()
	c.Merge(t)
	return c
}

// Map returns the entries as a plain map.
func (t *Tags) Map() map[string]string {
	m := make(map[string]string, t.Len())
	t.Each(func(k, v string) { m[k] = v })
	return m
}

// MarshalJSON encodes the dictionary as an object in insertion order.
func (t *Tags) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var err error
	t.Each(func(k, v string) {
		if err != nil {
			return
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		var kb, vb []byte
		if kb, err = json.Marshal(k); err != nil {
			return
		}
		if vb, err = json.Marshal(v); err != nil {
			return
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
