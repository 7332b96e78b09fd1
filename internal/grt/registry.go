package grt

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry holds the metaclasses known to a process. It is populated once at
// startup and only read afterwards.
type Registry struct {
	classes map[string]*Metaclass
	mu      sync.RWMutex
}

// NewRegistry creates an empty metaclass registry
func NewRegistry() *Registry {
	return &Registry{
		classes: make(map[string]*Metaclass),
	}
}

// Register creates and registers a metaclass. The parent, if any, must already
// be registered.
func (r *Registry) Register(name, parent string, members []Member) (*Metaclass, error) {
	if name == "" {
		return nil, errors.New("class name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.classes[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateClass, name)
	}

	var base *Metaclass
	if parent != "" {
		var ok bool
		base, ok = r.classes[parent]
		if !ok {
			return nil, fmt.Errorf("%w: %s (parent of %s)", ErrUnknownClass, parent, name)
		}
	}

	own := make([]*Member, 0, len(members))
	seen := make(map[string]bool, len(members))
	for i := range members {
		m := members[i]
		if err := validateMember(&m); err != nil {
			return nil, fmt.Errorf("class %s: %w", name, err)
		}
		if seen[m.Name] {
			return nil, fmt.Errorf("class %s: %w: %s", name, ErrDuplicateMember, m.Name)
		}
		seen[m.Name] = true
		own = append(own, &m)
	}

	mc := newMetaclass(name, base, own)
	r.classes[name] = mc
	return mc, nil
}

func validateMember(m *Member) error {
	if m.Name == "" {
		return errors.New("member name must not be empty")
	}
	switch m.Type.Base.Type {
	case AnyType:
		return fmt.Errorf("member %s: type must be declared", m.Name)
	case ListType, DictType:
		if m.Type.Content.Type == ListType || m.Type.Content.Type == DictType {
			return fmt.Errorf("member %s: nested containers are not supported as member content", m.Name)
		}
	}
	if m.Default != nil {
		if !m.IsSimple() {
			return fmt.Errorf("member %s: only scalar members take a default", m.Name)
		}
		if err := checkContent(m.Type.Base, m.Default); err != nil {
			return fmt.Errorf("member %s default: %w", m.Name, err)
		}
	}
	return nil
}

// Get returns the named metaclass
func (r *Registry) Get(name string) (*Metaclass, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mc, ok := r.classes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	return mc, nil
}

// Exists reports whether a class is registered
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.classes[name]
	return ok
}

// List returns the registered class names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered classes
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.classes)
}

// ForEachMember calls fn for every member of obj's class in declaration order
// until fn returns false
func (r *Registry) ForEachMember(obj *Object, fn func(*Member, *Object) bool) {
	if obj == nil {
		return
	}
	obj.meta.ForEachMember(func(m *Member) bool {
		return fn(m, obj)
	})
}

// Validate checks that every class referenced by a member is registered.
// Classes may reference each other in any order, so this runs after loading.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range sortedKeys(r.classes) {
		for _, m := range r.classes[name].own {
			for _, class := range []string{m.Type.Base.Class, m.Type.Content.Class} {
				if class == "" {
					continue
				}
				if _, ok := r.classes[class]; !ok {
					errs = append(errs, fmt.Errorf("%s.%s: %w: %s", name, m.Name, ErrUnknownClass, class))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
