package grt

// Member describes one member of a metaclass
type Member struct {
	Name string
	Type TypeSpec

	// Owned marks an ownership edge: the object (or the list/dict contents)
	// is owned by the declaring object. Non-owned object members are weak
	// references stored by identity.
	Owned bool

	// ReadOnly members can only be set while undo recording is disabled
	// (loading); list and dict members are always read-only.
	ReadOnly bool

	// Default is the initial value of a scalar member
	Default Value

	// Overrides is set by the registry when the member shadows a base member
	Overrides bool

	// DeclaredIn is the class that declared this descriptor
	DeclaredIn string
}

// IsSimple reports whether the member holds a scalar
func (m *Member) IsSimple() bool {
	return m.Type.Base.Type.IsSimple()
}

// Metaclass is the reflective descriptor of an object class. It is created by
// a Registry and read-only afterwards.
type Metaclass struct {
	name       string
	parentName string
	parent     *Metaclass

	own     []*Member
	members []*Member
	index   map[string]*Member
}

// Name returns the class name
func (mc *Metaclass) Name() string { return mc.name }

// ParentName returns the name of the base class, or "" for root classes
func (mc *Metaclass) ParentName() string { return mc.parentName }

// ParentClass returns the base metaclass, or nil
func (mc *Metaclass) ParentClass() *Metaclass { return mc.parent }

// Members returns all members, base class members first. A member that
// overrides a base member appears once, at the base position, carrying the
// overriding descriptor.
func (mc *Metaclass) Members() []*Member {
	return mc.members
}

// OwnMembers returns the members declared by this class itself
func (mc *Metaclass) OwnMembers() []*Member {
	return mc.own
}

// Member returns the descriptor of the named member
func (mc *Metaclass) Member(name string) (*Member, bool) {
	m, ok := mc.index[name]
	return m, ok
}

// IsA reports whether the class is name or derives from it
func (mc *Metaclass) IsA(name string) bool {
	for c := mc; c != nil; c = c.parent {
		if c.name == name {
			return true
		}
	}
	return false
}

// ForEachMember calls fn for every member in declaration order until fn returns false
func (mc *Metaclass) ForEachMember(fn func(*Member) bool) {
	for _, m := range mc.members {
		if !fn(m) {
			return
		}
	}
}

func newMetaclass(name string, parent *Metaclass, own []*Member) *Metaclass {
	mc := &Metaclass{
		name:  name,
		own:   own,
		index: make(map[string]*Member),
	}
	if parent != nil {
		mc.parent = parent
		mc.parentName = parent.name
		mc.members = append(mc.members, parent.members...)
		for k, v := range parent.index {
			mc.index[k] = v
		}
	}

	for _, m := range own {
		m.DeclaredIn = name
		if _, exists := mc.index[m.Name]; exists {
			m.Overrides = true
			for i, existing := range mc.members {
				if existing.Name == m.Name {
					mc.members[i] = m
					break
				}
			}
		} else {
			mc.members = append(mc.members, m)
		}
		mc.index[m.Name] = m
	}
	return mc
}
