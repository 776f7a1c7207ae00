package env

import (
	"os"
	"sort"
)

// Builder assembles the extra environment handed to the runner process.
// Sources are applied in order, so later sources win.
type Builder struct {
	vars   map[string]string
	lookup func(string) (string, bool)
	warn   WarnFunc
}

// WarnFunc is called for references that cannot be resolved
type WarnFunc func(format string, args ...any)

// NewBuilder creates a builder that resolves ${VAR} references against the
// variables added so far and then the OS environment.
func NewBuilder() *Builder {
	return &Builder{
		vars:   make(map[string]string),
		lookup: os.LookupEnv,
	}
}

// SetWarnFunc sets a function to be called for unresolved references
func (b *Builder) SetWarnFunc(fn WarnFunc) *Builder {
	b.warn = fn
	return b
}

// AddFile merges the lines of a .env file in file order, so a value can
// reference any variable defined on an earlier line.
func (b *Builder) AddFile(path string) error {
	pairs, err := ReadDotEnv(path)
	if err != nil {
		return err
	}
	b.AddPairs(pairs)
	return nil
}

// AddPairs merges pairs in order, expanding references in each value
func (b *Builder) AddPairs(pairs []Pair) *Builder {
	for _, p := range pairs {
		b.vars[p.Key] = b.Expand(p.Value)
	}
	return b
}

// Add merges a map of variables. A map has no order, so keys are applied
// sorted; references between keys of the same map only resolve when the
// referenced key sorts first.
func (b *Builder) Add(vars map[string]string) *Builder {
	pairs := make([]Pair, 0, len(vars))
	for _, k := range sortedKeys(vars) {
		pairs = append(pairs, Pair{Key: k, Value: vars[k]})
	}
	return b.AddPairs(pairs)
}

// Expand replaces $VAR and ${VAR} in s. Unknown references become empty.
func (b *Builder) Expand(s string) string {
	return os.Expand(s, func(name string) string {
		if v, ok := b.vars[name]; ok {
			return v
		}
		if v, ok := b.lookup(name); ok {
			return v
		}
		if b.warn != nil {
			b.warn("unresolved environment variable: $%s", name)
		}
		return ""
	})
}

// Get returns the value assembled for key
func (b *Builder) Get(key string) (string, bool) {
	v, ok := b.vars[key]
	return v, ok
}

// Environ returns the assembled variables as sorted KEY=VALUE pairs
func (b *Builder) Environ() []string {
	out := make([]string, 0, len(b.vars))
	for _, k := range sortedKeys(b.vars) {
		out = append(out, k+"="+b.vars[k])
	}
	return out
}

// MergeVariables merges maps left to right
func MergeVariables(sources ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
