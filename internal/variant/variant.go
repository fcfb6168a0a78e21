package variant

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Value handles YAML values that can be string or number, so that
// "python: 3.8" and "python: '3.8'" both load as the string "3.8".
type Value string

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		*v = Value(s)
		return nil
	}
	var f float64
	if err := node.Decode(&f); err == nil {
		*v = Value(fmt.Sprintf("%g", f))
		return nil
	}
	return fmt.Errorf("variant value must be a string or number")
}

// Variant is the table of externally supplied build-time variables:
// interpreter version, pinned library versions, and the shared epoch
// variables that keep co-released packages on the same release line.
type Variant struct {
	values map[string]string
}

// New creates an empty variant table.
func New() *Variant {
	return &Variant{values: make(map[string]string)}
}

// Load reads a variant config file, a flat YAML mapping of variable
// names to versions.
func Load(path string) (*Variant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading variant config: %w", err)
	}

	var raw map[string]Value
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing variant config: %w", err)
	}

	v := New()
	for name, val := range raw {
		if strings.TrimSpace(string(val)) == "" {
			return nil, fmt.Errorf("variant variable %q is empty", name)
		}
		v.values[name] = string(val)
	}
	return v, nil
}

// Set applies a "key=value" override, as supplied on the command line.
// Later Set calls override loaded values.
func (v *Variant) Set(kv string) error {
	key, val, ok := strings.Cut(kv, "=")
	if !ok || strings.TrimSpace(key) == "" || strings.TrimSpace(val) == "" {
		return fmt.Errorf("invalid variable override %q, want key=value", kv)
	}
	v.values[strings.TrimSpace(key)] = strings.TrimSpace(val)
	return nil
}

// Lookup returns a variable value.
func (v *Variant) Lookup(name string) (string, bool) {
	val, ok := v.values[name]
	return val, ok
}

// Values returns a copy of the variable table.
func (v *Variant) Values() map[string]string {
	out := make(map[string]string, len(v.values))
	for name, val := range v.values {
		out[name] = val
	}
	return out
}

// Names returns all defined variable names, sorted.
func (v *Variant) Names() []string {
	names := make([]string, 0, len(v.values))
	for name := range v.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
