// Package tree decodes hardware description files into a generic, order-preserving
// tree of mappings, sequences and scalars.
//
// Mappings decode to *Map so that key order survives the round trip to JSON;
// sequences decode to []any; scalars decode to nil, bool, string, int, int64,
// uint64 or float64.
package tree

import (
	"fmt"
	"strconv"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"
)

// Map is a mapping whose keys keep their insertion order.
type Map struct {
	keys []string
	vals map[string]any
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{vals: make(map[string]any)}
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Has reports whether key is present, even with a null value.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores v under key. New keys are appended; existing keys keep their position.
func (m *Map) Set(key string, v any) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Without returns a shallow copy of m minus the given keys.
func (m *Map) Without(drop ...string) *Map {
	out := NewMap()
	for _, k := range m.Keys() {
		skip := false
		for _, d := range drop {
			if k == d {
				skip = true
				break
			}
		}
		if !skip {
			out.Set(k, m.vals[k])
		}
	}
	return out
}

// Map returns the mapping stored under key, or nil.
func (m *Map) Map(key string) *Map {
	v, _ := m.Get(key)
	sub, _ := v.(*Map)
	return sub
}

// Seq returns the sequence stored under key, or nil.
func (m *Map) Seq(key string) []any {
	v, _ := m.Get(key)
	seq, _ := v.([]any)
	return seq
}

// String returns the scalar under key rendered as a string, or def when the key
// is absent or null.
func (m *Map) String(key, def string) string {
	v, ok := m.Get(key)
	if !ok || v == nil {
		return def
	}
	return String(v)
}

// MarshalJSON implements json.Marshaler, keeping key order.
func (m *Map) MarshalJSON() ([]byte, error) {
	return Encode(m)
}

// Len returns the element count of a mapping or sequence, 0 for anything else.
func Len(v any) int {
	switch t := v.(type) {
	case *Map:
		return t.Len()
	case []any:
		return len(t)
	}
	return 0
}

// IsInt reports whether v is an integer scalar.
func IsInt(v any) bool {
	switch v.(type) {
	case int, int64, uint64:
		return true
	}
	return false
}

// String renders a scalar the way it appears in generated documents.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return formatFloat(t)
	default:
		return fmt.Sprint(t)
	}
}

// Load reads and decodes a description file from fsys.
func Load(fsys billy.Basic, path string) (any, error) {
	data, err := util.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	v, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// Decode parses YAML into the generic tree. An empty document decodes to nil.
func Decode(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	return convert(&doc)
}

func convert(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return convert(n.Content[0])
	case yaml.AliasNode:
		return convert(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := convert(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		return convertMapping(n)
	case yaml.ScalarNode:
		return convertScalar(n)
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", n.Line, n.Kind)
}

func convertMapping(n *yaml.Node) (*Map, error) {
	m := NewMap()
	var merges []*yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.ShortTag() == "!!merge" {
			merges = append(merges, v)
			continue
		}
		key := k.Value
		if k.Kind != yaml.ScalarNode {
			kv, err := convert(k)
			if err != nil {
				return nil, err
			}
			key = String(kv)
		}
		val, err := convert(v)
		if err != nil {
			return nil, err
		}
		m.Set(key, val)
	}
	// Explicit keys take precedence over merged ones.
	for _, src := range merges {
		if err := mergeInto(m, src); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func mergeInto(m *Map, src *yaml.Node) error {
	if src.Kind == yaml.SequenceNode {
		for _, c := range src.Content {
			if err := mergeInto(m, c); err != nil {
				return err
			}
		}
		return nil
	}
	v, err := convert(src)
	if err != nil {
		return err
	}
	other, ok := v.(*Map)
	if !ok {
		return fmt.Errorf("line %d: merge value is not a mapping", src.Line)
	}
	for _, k := range other.keys {
		if !m.Has(k) {
			m.Set(k, other.vals[k])
		}
	}
	return nil
}

func convertScalar(n *yaml.Node) (any, error) {
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, fmt.Errorf("line %d: %w", n.Line, err)
	}
	switch t := v.(type) {
	case nil, bool, string, int, int64, uint64, float64:
		return t, nil
	default:
		// Timestamps and binary scalars keep their source text.
		return n.Value, nil
	}
}
