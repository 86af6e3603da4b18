package tables

import (
	"fmt"
	"strings"

	"github.com/vietddude/teamsync/internal/core/domain"
)

// Registry holds descriptors in a validated dependency order.
type Registry struct {
	byTable map[domain.Table]Descriptor
	ordered []Descriptor
}

// NewRegistry validates descs and orders them so every table comes after the
// tables it depends on. Ties keep declaration order.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	byTable := make(map[domain.Table]Descriptor, len(descs))
	for _, d := range descs {
		if d.Table == "" || d.Resource == "" {
			return nil, fmt.Errorf("descriptor %q: table and resource are required", d.Table)
		}
		if d.Serialize == nil {
			return nil, fmt.Errorf("descriptor %s: serializer is required", d.Table)
		}
		if _, dup := byTable[d.Table]; dup {
			return nil, fmt.Errorf("descriptor %s declared twice", d.Table)
		}
		byTable[d.Table] = d
	}
	for _, d := range descs {
		for _, dep := range d.DependsOn {
			if _, ok := byTable[dep]; !ok {
				return nil, fmt.Errorf("descriptor %s depends on unknown table %s", d.Table, dep)
			}
		}
	}

	ordered, err := topoSort(descs)
	if err != nil {
		return nil, err
	}
	return &Registry{byTable: byTable, ordered: ordered}, nil
}

// MustDefaultRegistry builds the registry of DefaultDescriptors.
func MustDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultDescriptors()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Ordered returns descriptors parents first.
func (r *Registry) Ordered() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Tables returns table names in processing order.
func (r *Registry) Tables() []domain.Table {
	out := make([]domain.Table, len(r.ordered))
	for i, d := range r.ordered {
		out[i] = d.Table
	}
	return out
}

// Get returns the descriptor of a table.
func (r *Registry) Get(table domain.Table) (Descriptor, bool) {
	d, ok := r.byTable[table]
	return d, ok
}

func topoSort(descs []Descriptor) ([]Descriptor, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	index := make(map[domain.Table]int, len(descs))
	for i, d := range descs {
		index[d.Table] = i
	}

	state := make([]int, len(descs))
	ordered := make([]Descriptor, 0, len(descs))
	var path []domain.Table

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle: %s", cyclePath(path, descs[i].Table))
		}
		state[i] = visiting
		path = append(path, descs[i].Table)
		for _, dep := range descs[i].DependsOn {
			if err := visit(index[dep]); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[i] = done
		ordered = append(ordered, descs[i])
		return nil
	}

	for i := range descs {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

func cyclePath(path []domain.Table, back domain.Table) string {
	start := 0
	for i, t := range path {
		if t == back {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(path)-start+1)
	for _, t := range path[start:] {
		parts = append(parts, string(t))
	}
	parts = append(parts, string(back))
	return strings.Join(parts, " -> ")
}
