package terminology

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed codes.yaml
var defaultTableYAML []byte

// Table is an immutable entity-to-code mapping. It is safe for concurrent use.
type Table struct {
	version string
	entries map[string]Entry
	order   []string
}

type tableFile struct {
	Version string  `yaml:"version"`
	Entries []Entry `yaml:"entries"`
}

// ParseTable decodes and validates a YAML coding table.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode coding table: %w", err)
	}
	if f.Version == "" {
		return nil, fmt.Errorf("coding table version is required")
	}

	t := &Table{version: f.Version, entries: make(map[string]Entry, len(f.Entries))}
	for i, e := range f.Entries {
		name := normalize(e.Entity)
		if name == "" {
			return nil, fmt.Errorf("coding table entry %d: entity is required", i)
		}
		if _, dup := t.entries[name]; dup {
			return nil, fmt.Errorf("coding table entry %d: duplicate entity %q", i, name)
		}
		if len(e.ICD10) == 0 && len(e.SNOMED) == 0 {
			return nil, fmt.Errorf("coding table entry %q: at least one code is required", name)
		}
		for _, c := range append(append([]Concept{}, e.ICD10...), e.SNOMED...) {
			if strings.TrimSpace(c.Code) == "" {
				return nil, fmt.Errorf("coding table entry %q: empty code", name)
			}
		}
		e.Entity = name
		t.entries[name] = e
		t.order = append(t.order, name)
	}
	return t, nil
}

// LoadTable reads a coding table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read coding table: %w", err)
	}
	return ParseTable(data)
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// DefaultTable returns the table compiled into the binary.
func DefaultTable() *Table {
	defaultOnce.Do(func() {
		t, err := ParseTable(defaultTableYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded coding table: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// Version returns the table version string.
func (t *Table) Version() string { return t.version }

// Lookup returns the codes for a canonical entity name.
func (t *Table) Lookup(entity string) (Entry, bool) {
	e, ok := t.entries[normalize(entity)]
	return e, ok
}

// Entries returns every entry in file order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.entries[name])
	}
	return out
}

// Entities returns the sorted entity names.
func (t *Table) Entities() []string {
	out := append([]string(nil), t.order...)
	sort.Strings(out)
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
