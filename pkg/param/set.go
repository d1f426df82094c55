package param

import (
	"fmt"

	"github.com/aretw0/redo/pkg/domain"
)

// Set is an ordered collection of parameters with unique names.
type Set struct {
	params []Parameter
	byName map[string]Parameter
}

// NewSet builds a set, rejecting duplicate or nil entries with ErrConfiguration.
func NewSet(params ...Parameter) (*Set, error) {
	s := &Set{
		params: make([]Parameter, 0, len(params)),
		byName: make(map[string]Parameter, len(params)),
	}
	names := make([]string, 0, len(params))
	for _, p := range params {
		if p == nil {
			return nil, fmt.Errorf("%w: nil parameter in %v", domain.ErrConfiguration, names)
		}
		names = append(names, p.Name())
	}
	for _, p := range params {
		if _, dup := s.byName[p.Name()]; dup {
			return nil, fmt.Errorf("%w: multiple parameters named %q in %v", domain.ErrConfiguration, p.Name(), names)
		}
		s.byName[p.Name()] = p
		s.params = append(s.params, p)
	}
	return s, nil
}

// Get returns the parameter with the given name, or nil.
func (s *Set) Get(name string) Parameter {
	if s == nil {
		return nil
	}
	return s.byName[name]
}

// Value returns the runtime value of the named parameter, or nil.
func (s *Set) Value(name string) any {
	if p := s.Get(name); p != nil {
		return p.Value()
	}
	return nil
}

// All returns the parameters in declaration order.
func (s *Set) All() []Parameter {
	if s == nil {
		return nil
	}
	out := make([]Parameter, len(s.params))
	copy(out, s.params)
	return out
}

// Names returns the parameter names in declaration order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name()
	}
	return names
}

// Len returns the number of parameters.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.params)
}

// Snapshot maps every name to its current log value.
func (s *Set) Snapshot() map[string]any {
	out := make(map[string]any, s.Len())
	for _, p := range s.All() {
		out[p.Name()] = p.LogValue()
	}
	return out
}

// Refresh recomputes every snapshot, stopping at the first failure.
func (s *Set) Refresh() error {
	for _, p := range s.All() {
		if err := p.Refresh(); err != nil {
			return fmt.Errorf("refresh %q: %w", p.Name(), err)
		}
	}
	return nil
}

// Changed reports whether any parameter differs from the old snapshot mapping.
// A name missing from old counts as changed; names only present in old are ignored.
func (s *Set) Changed(old map[string]any) (bool, error) {
	changed := false
	for _, p := range s.All() {
		prev, ok := old[p.Name()]
		if !ok {
			changed = true
			continue
		}
		diff, err := p.Changed(prev)
		if err != nil {
			return false, fmt.Errorf("check %q: %w", p.Name(), err)
		}
		changed = changed || diff
	}
	return changed, nil
}
