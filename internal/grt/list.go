package grt

import (
	"fmt"
	"strings"
)

// List is an ordered sequence of values. An owning list holds its objects and
// is their owner's slot; a weak list (content of non-owned members and
// NewRefList) stores object identities only.
type List struct {
	ctx     *Context
	content SimpleTypeSpec
	owned   bool
	owner   string
	items   []Value
}

// Type implements Value
func (l *List) Type() Type { return ListType }

// String implements Value
func (l *List) String() string {
	parts := make([]string, len(l.items))
	for i, v := range l.items {
		if v == nil {
			parts[i] = "NULL"
			continue
		}
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ContentType returns the declared element type
func (l *List) ContentType() SimpleTypeSpec { return l.content }

// Owned reports whether the list owns its objects
func (l *List) Owned() bool { return l.owned }

// Owner returns the object whose member this list is, or nil
func (l *List) Owner() *Object {
	if l.owner == "" {
		return nil
	}
	obj, _ := l.ctx.Lookup(l.owner)
	return obj
}

// Count returns the number of elements
func (l *List) Count() int { return len(l.items) }

// Get returns the element at index
func (l *List) Get(index int) (Value, error) {
	if index < 0 || index >= len(l.items) {
		return nil, fmt.Errorf("%w: %d (count %d)", ErrIndexOutOfRange, index, len(l.items))
	}
	return l.ctx.resolve(l.items[index]), nil
}

// ForEach calls fn for every element until fn returns false
func (l *List) ForEach(fn func(int, Value) bool) {
	for i, v := range l.items {
		if !fn(i, l.ctx.resolve(v)) {
			return
		}
	}
}

// IndexOf returns the index of v or -1. Objects are matched by identity.
func (l *List) IndexOf(v Value) int {
	if obj, ok := v.(*Object); ok {
		for i, item := range l.items {
			if id, ok := storedID(item); ok && id == obj.id {
				return i
			}
		}
		return -1
	}
	for i, item := range l.items {
		if Equal(item, v) {
			return i
		}
	}
	return -1
}

func (l *List) check(v Value) error {
	if err := checkContent(l.content, v); err != nil {
		return err
	}
	return l.ctx.owns(v)
}

func (l *List) store(v Value) Value {
	if obj, ok := v.(*Object); ok && !l.owned {
		return weakRef{id: obj.id}
	}
	return v
}

// Append adds v at the end of the list
func (l *List) Append(v Value) error {
	return l.Insert(v, -1)
}

// Insert adds v before index; -1 appends
func (l *List) Insert(v Value, index int) error {
	if index == -1 {
		index = len(l.items)
	}
	if index < 0 || index > len(l.items) {
		return fmt.Errorf("%w: %d (count %d)", ErrIndexOutOfRange, index, len(l.items))
	}
	if err := l.check(v); err != nil {
		return err
	}
	if err := claim(l.owned, nil, v); err != nil {
		return err
	}

	action := &ListInsertAction{
		ownership: owning(l.owned, l.owner, nil, v),
		list:      l,
		index:     index,
		value:     l.store(v),
	}
	return l.ctx.apply(action, action.apply)
}

// Set replaces the element at index
func (l *List) Set(index int, v Value) error {
	if index < 0 || index >= len(l.items) {
		return fmt.Errorf("%w: %d (count %d)", ErrIndexOutOfRange, index, len(l.items))
	}
	if err := l.check(v); err != nil {
		return err
	}
	old := l.items[index]
	if err := claim(l.owned, old, v); err != nil {
		return err
	}

	action := &ListSetAction{
		ownership: owning(l.owned, l.owner, old, v),
		list:      l,
		index:     index,
		old:       old,
		new:       l.store(v),
	}
	return l.ctx.apply(action, action.apply)
}

// Remove deletes the element at index
func (l *List) Remove(index int) error {
	if index < 0 || index >= len(l.items) {
		return fmt.Errorf("%w: %d (count %d)", ErrIndexOutOfRange, index, len(l.items))
	}
	action := &ListRemoveAction{
		ownership: owning(l.owned, l.owner, l.items[index], nil),
		list:      l,
		index:     index,
		value:     l.items[index],
	}
	return l.ctx.apply(action, action.apply)
}

// RemoveValue deletes the first element equal to v
func (l *List) RemoveValue(v Value) error {
	index := l.IndexOf(v)
	if index < 0 {
		return fmt.Errorf("%w: %s not in list", ErrKeyNotFound, describe(v))
	}
	return l.Remove(index)
}

// Reorder moves the element at from so that it ends up at index to
func (l *List) Reorder(from, to int) error {
	if from < 0 || from >= len(l.items) {
		return fmt.Errorf("%w: %d (count %d)", ErrIndexOutOfRange, from, len(l.items))
	}
	if to < 0 || to >= len(l.items) {
		return fmt.Errorf("%w: %d (count %d)", ErrIndexOutOfRange, to, len(l.items))
	}
	if from == to {
		return nil
	}
	action := &ListReorderAction{list: l, from: from, to: to}
	return l.ctx.apply(action, action.apply)
}

func (l *List) insertRaw(index int, v Value) {
	l.items = append(l.items, nil)
	copy(l.items[index+1:], l.items[index:])
	l.items[index] = v
}

func (l *List) removeRaw(index int) Value {
	v := l.items[index]
	copy(l.items[index:], l.items[index+1:])
	l.items[len(l.items)-1] = nil
	l.items = l.items[:len(l.items)-1]
	return v
}

func (l *List) moveRaw(from, to int) {
	v := l.removeRaw(from)
	l.insertRaw(to, v)
}
