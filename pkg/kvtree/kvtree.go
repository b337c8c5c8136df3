package kvtree

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Tree is a hierarchical string-keyed configuration tree. A scalar value
// is represented as a key whose subtree holds the value as its only key,
// so "INTERVAL: 4" is the key INTERVAL with child key "4". This mirrors
// the on-disk shape of checkpoint configuration files and keeps mixed
// scalar/nested entries uniform.
type Tree struct {
	kids map[string]*Tree
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{kids: make(map[string]*Tree)}
}

// Subtree returns the child tree under key, creating it if absent.
func (t *Tree) Subtree(key string) *Tree {
	if c, ok := t.kids[key]; ok {
		return c
	}
	c := New()
	t.kids[key] = c
	return c
}

// Get returns the child tree under key, or nil.
func (t *Tree) Get(key string) *Tree {
	if t == nil {
		return nil
	}
	return t.kids[key]
}

// Set replaces the value under key with a single scalar.
func (t *Tree) Set(key, value string) {
	c := New()
	c.kids[value] = New()
	t.kids[key] = c
}

// SetInt replaces the value under key with a single integer scalar.
func (t *Tree) SetInt(key string, value int) {
	t.Set(key, strconv.Itoa(value))
}

// Value returns the scalar stored under key. When the subtree holds
// several keys the smallest is returned, so the result is deterministic.
func (t *Tree) Value(key string) (string, bool) {
	c := t.Get(key)
	if c == nil || len(c.kids) == 0 {
		return "", false
	}
	keys := c.Keys()
	return keys[0], true
}

// GetStr assigns the scalar under key to out if the key is present,
// leaving out untouched otherwise. Returns whether the key was present.
func (t *Tree) GetStr(key string, out *string) bool {
	v, ok := t.Value(key)
	if ok {
		*out = v
	}
	return ok
}

// GetInt assigns the integer under key to out if the key is present and
// parses, leaving out untouched otherwise.
func (t *Tree) GetInt(key string, out *int) error {
	v, ok := t.Value(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("key %s: %w", key, err)
	}
	*out = n
	return nil
}

// Keys returns the child keys in ascending order. Sorted iteration is
// what makes collective construction deterministic across ranks.
func (t *Tree) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.kids))
	for k := range t.kids {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size returns the number of child keys.
func (t *Tree) Size() int {
	if t == nil {
		return 0
	}
	return len(t.kids)
}

// Unset removes the subtree under key.
func (t *Tree) Unset(key string) {
	delete(t.kids, key)
}

// UnsetAll removes every child.
func (t *Tree) UnsetAll() {
	t.kids = make(map[string]*Tree)
}

// FromYAML builds a tree from YAML bytes. Maps become subtrees, scalars
// become leaf keys, sequences are rejected (configuration entries are
// named, not positional).
func FromYAML(data []byte) (*Tree, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	t := New()
	if err := fill(t, raw); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadYAML reads path and builds a tree from its contents.
func LoadYAML(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return FromYAML(data)
}

func fill(t *Tree, raw map[string]interface{}) error {
	for k, v := range raw {
		switch val := v.(type) {
		case map[string]interface{}:
			c := t.Subtree(k)
			if err := fill(c, val); err != nil {
				return err
			}
		case nil:
			t.Subtree(k)
		case []interface{}:
			return fmt.Errorf("key %s: sequences are not supported in configuration", k)
		default:
			t.Set(k, fmt.Sprint(val))
		}
	}
	return nil
}

// ToYAML serializes the tree back to YAML. Leaf-only subtrees with a
// single key round-trip as scalars.
func (t *Tree) ToYAML() ([]byte, error) {
	return yaml.Marshal(t.toRaw())
}

func (t *Tree) toRaw() map[string]interface{} {
	out := make(map[string]interface{}, len(t.kids))
	for _, k := range t.Keys() {
		c := t.kids[k]
		if len(c.kids) == 1 {
			only := c.Keys()[0]
			if len(c.kids[only].kids) == 0 {
				out[k] = only
				continue
			}
		}
		if len(c.kids) == 0 {
			out[k] = nil
			continue
		}
		out[k] = c.toRaw()
	}
	return out
}
