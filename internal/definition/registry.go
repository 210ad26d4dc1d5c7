package definition

import "sort"

// Builder constructs a Bundle. Definition modules register one of these
// from an init() function instead of being discovered as files on disk —
// see the package doc comment for why.
type Builder func() Bundle

var registry = map[string]Builder{}

// Register adds a definition module under name. Calling Register twice
// with the same name is a definition error the caller should surface at
// startup, not silently overwrite — panicking here matches the
// fail-fast posture spec.md takes for every other DefinitionError.
func Register(name string, b Builder) {
	if _, exists := registry[name]; exists {
		panic("definition: module already registered: " + name)
	}
	registry[name] = b
}

// All returns every registered definition module's Bundle, ordered by
// name so compilation output is deterministic across runs.
func All() []Bundle {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Bundle, 0, len(names))
	for _, name := range names {
		out = append(out, registry[name]())
	}
	return out
}

// Lookup returns a single definition module's Bundle by name.
func Lookup(name string) (Bundle, bool) {
	b, ok := registry[name]
	if !ok {
		return Bundle{}, false
	}
	return b(), true
}
