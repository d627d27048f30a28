// Package taxonomy bridges a pretrained detector's native class vocabulary
// onto the project's fixed, ordered target-class list.
//
// The mapping is a partial function: a source class with no entry means the
// detection lies outside the project's vocabulary and is discarded. The table
// is validated when the Mapper is built so that a reference to an undeclared
// target class fails at configuration-load time rather than producing bogus
// class ids during labeling.
package taxonomy

import (
	"fmt"
	"strings"
)

// MappingError reports a taxonomy table entry whose target class is not in
// the declared target-class list.
type MappingError struct {
	Source string // detector-native class name
	Target string // undeclared target class it maps to
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("taxonomy entry %q -> %q references undeclared target class", e.Source, e.Target)
}

// Mapper is an immutable source-class to target-class-id lookup table.
//
// Source names are matched case-insensitively; target class ids index the
// ordered target list the Mapper was built with, which is the same ordering
// the dataset manifest publishes.
type Mapper struct {
	targets []string
	ids     map[string]int
	table   map[string]int
}

// New builds a Mapper from the ordered target-class list and the
// source-to-target table. It returns a *MappingError if any table entry maps
// to a class absent from targets.
func New(targets []string, table map[string]string) (*Mapper, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("target class list is empty")
	}

	ids := make(map[string]int, len(targets))
	for i, name := range targets {
		if _, dup := ids[name]; dup {
			return nil, fmt.Errorf("duplicate target class %q", name)
		}
		ids[name] = i
	}

	m := &Mapper{
		targets: append([]string(nil), targets...),
		ids:     ids,
		table:   make(map[string]int, len(table)),
	}
	for source, target := range table {
		id, ok := ids[target]
		if !ok {
			return nil, &MappingError{Source: source, Target: target}
		}
		m.table[strings.ToLower(source)] = id
	}
	return m, nil
}

// Resolve maps a detector-native class name to a target class id. The second
// return value is false when the source class has no mapping, meaning the
// detection should be discarded.
func (m *Mapper) Resolve(source string) (int, bool) {
	id, ok := m.table[strings.ToLower(source)]
	return id, ok
}

// TargetID returns the id of a declared target class by name.
func (m *Mapper) TargetID(name string) (int, bool) {
	id, ok := m.ids[name]
	return id, ok
}

// Targets returns the ordered target-class list.
func (m *Mapper) Targets() []string {
	return append([]string(nil), m.targets...)
}
