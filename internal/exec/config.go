package exec

import (
	"fmt"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Config is a nested configuration tree handed to a tool. Values are
// either strings or nested Config values.
type Config map[string]any

// Pair is one flattened leaf of a Config.
type Pair struct {
	Key   string
	Value string
}

// NewConfig returns an empty tree.
func NewConfig() Config {
	return Config{}
}

// Set stores a string leaf and returns c for chaining.
func (c Config) Set(key, value string) Config {
	c[key] = value
	return c
}

// Child returns the nested tree under key, creating it when absent.
// An existing string leaf under key is replaced.
func (c Config) Child(key string) Config {
	if child, ok := c[key].(Config); ok {
		return child
	}
	child := Config{}
	c[key] = child
	return child
}

// Lookup returns the nested tree under key without creating it.
func (c Config) Lookup(key string) (Config, bool) {
	child, ok := c[key].(Config)
	return child, ok
}

// String returns the string leaf under key.
func (c Config) String(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// Keys returns the keys of c in sorted order.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that every value is a string or a nested Config.
func (c Config) Validate() error {
	return c.validate("")
}

func (c Config) validate(prefix string) error {
	for _, k := range c.Keys() {
		if k == "" || strings.Contains(k, ".") {
			return fmt.Errorf("invalid key %q under %q", k, prefix)
		}
		switch v := c[k].(type) {
		case string:
		case Config:
			if err := v.validate(join(prefix, k)); err != nil {
				return err
			}
		default:
			return fmt.Errorf("key %q: unsupported value type %T", join(prefix, k), v)
		}
	}
	return nil
}

// Flatten returns all string leaves as dotted keys, sorted by key.
func (c Config) Flatten() []Pair {
	var pairs []Pair
	c.flatten("", &pairs)
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs
}

func (c Config) flatten(prefix string, out *[]Pair) {
	for k, v := range c {
		switch v := v.(type) {
		case string:
			*out = append(*out, Pair{Key: join(prefix, k), Value: v})
		case Config:
			v.flatten(join(prefix, k), out)
		}
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		if child, ok := v.(Config); ok {
			out[k] = child.Clone()
			continue
		}
		out[k] = v
	}
	return out
}

// YAML renders the tree as a YAML document.
func (c Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c.plain())
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// plain converts the tree to map[string]any so the encoder sorts keys.
func (c Config) plain() map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		if child, ok := v.(Config); ok {
			out[k] = child.plain()
			continue
		}
		out[k] = v
	}
	return out
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
