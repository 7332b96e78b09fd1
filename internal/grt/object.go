package grt

import (
	"fmt"
)

// Object is an instance of a registered metaclass. Its identity is a stable
// id; its owner is a back-reference resolved through the document arena.
type Object struct {
	id     string
	meta   *Metaclass
	ctx    *Context
	owner  string
	held   bool
	values map[string]Value
}

// Type implements Value
func (o *Object) Type() Type { return ObjectType }

// String implements Value
func (o *Object) String() string {
	return fmt.Sprintf("%s <%s>", o.meta.name, o.id)
}

// ID returns the object identity
func (o *Object) ID() string { return o.id }

// Class returns the class name
func (o *Object) Class() string { return o.meta.name }

// Metaclass returns the class descriptor
func (o *Object) Metaclass() *Metaclass { return o.meta }

// Context returns the document the object belongs to
func (o *Object) Context() *Context { return o.ctx }

// IsInstanceOf reports whether the object's class is class or derives from it
func (o *Object) IsInstanceOf(class string) bool {
	return o.meta.IsA(class)
}

// Owner returns the object owning this one, or nil for detached and root
// objects and for objects in standalone containers
func (o *Object) Owner() *Object {
	if o.owner == "" {
		return nil
	}
	owner, _ := o.ctx.Lookup(o.owner)
	return owner
}

// HasMember reports whether the class declares the member
func (o *Object) HasMember(name string) bool {
	_, ok := o.meta.index[name]
	return ok
}

func (o *Object) member(name string) (*Member, error) {
	m, ok := o.meta.index[name]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", o.meta.name, name, ErrKeyNotFound)
	}
	return m, nil
}

// Get returns a member value. Unset object members return nil.
func (o *Object) Get(name string) (Value, error) {
	if _, err := o.member(name); err != nil {
		return nil, err
	}
	return o.ctx.resolve(o.values[name]), nil
}

// Set assigns a member value. The value is type-checked against the member
// declaration and the change is recorded in the open transaction.
// Composite values are stored by reference.
func (o *Object) Set(name string, v Value) error {
	m, err := o.member(name)
	if err != nil {
		return err
	}

	switch m.Type.Base.Type {
	case ListType, DictType:
		return fmt.Errorf("%s.%s: %w", o.meta.name, name, ErrReadOnly)
	case ObjectType:
		if IsValid(v) {
			if err := checkContent(m.Type.Base, v); err != nil {
				return fmt.Errorf("%s.%s: %w", o.meta.name, name, err)
			}
		} else {
			v = nil
		}
	default:
		if err := checkContent(m.Type.Base, v); err != nil {
			return fmt.Errorf("%s.%s: %w", o.meta.name, name, err)
		}
	}
	if m.ReadOnly && o.ctx.undo.Enabled() {
		return fmt.Errorf("%s.%s: %w", o.meta.name, name, ErrReadOnly)
	}
	if err := o.ctx.owns(v); err != nil {
		return err
	}

	old := o.values[name]
	if err := claim(m.Owned, old, v); err != nil {
		return fmt.Errorf("%s.%s: %w", o.meta.name, name, err)
	}

	action := &ObjectChangeAction{
		ownership: owning(m.Owned, o.id, old, v),
		object:    o,
		member:    m,
		old:       old,
		new:       o.store(m, v),
	}
	return o.ctx.apply(action, action.apply)
}

// store converts a value to its slot representation
func (o *Object) store(m *Member, v Value) Value {
	if obj, ok := v.(*Object); ok && !m.Owned {
		return weakRef{id: obj.id}
	}
	return v
}

// GetInt returns an integer member
func (o *Object) GetInt(name string) (int64, error) {
	v, err := o.typed(name, IntegerType)
	if err != nil {
		return 0, err
	}
	return int64(v.(Int)), nil
}

// GetReal returns a real member
func (o *Object) GetReal(name string) (float64, error) {
	v, err := o.typed(name, DoubleType)
	if err != nil {
		return 0, err
	}
	return float64(v.(Real)), nil
}

// GetString returns a string member
func (o *Object) GetString(name string) (string, error) {
	v, err := o.typed(name, StringType)
	if err != nil {
		return "", err
	}
	return string(v.(String)), nil
}

// GetList returns a list member
func (o *Object) GetList(name string) (*List, error) {
	v, err := o.typed(name, ListType)
	if err != nil {
		return nil, err
	}
	return v.(*List), nil
}

// GetDict returns a dict member
func (o *Object) GetDict(name string) (*Dict, error) {
	v, err := o.typed(name, DictType)
	if err != nil {
		return nil, err
	}
	return v.(*Dict), nil
}

// GetObject returns an object member, or nil when unset
func (o *Object) GetObject(name string) (*Object, error) {
	m, err := o.member(name)
	if err != nil {
		return nil, err
	}
	if m.Type.Base.Type != ObjectType {
		return nil, fmt.Errorf("%s.%s: %w", o.meta.name, name,
			&TypeMismatchError{Expected: ObjectType.String(), Actual: m.Type.String()})
	}
	obj, _ := o.ctx.resolve(o.values[name]).(*Object)
	return obj, nil
}

func (o *Object) typed(name string, t Type) (Value, error) {
	m, err := o.member(name)
	if err != nil {
		return nil, err
	}
	if m.Type.Base.Type != t {
		return nil, fmt.Errorf("%s.%s: %w", o.meta.name, name,
			&TypeMismatchError{Expected: t.String(), Actual: m.Type.String()})
	}
	return o.values[name], nil
}
