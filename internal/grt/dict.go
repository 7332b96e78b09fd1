package grt

import (
	"fmt"
	"strings"
)

// Dict maps string keys to values. Keys are unique and iterate in insertion order.
type Dict struct {
	ctx     *Context
	content SimpleTypeSpec
	owned   bool
	owner   string
	keys    []string
	values  map[string]Value
}

func newDict(ctx *Context, content SimpleTypeSpec, owned bool, owner string) *Dict {
	return &Dict{
		ctx:     ctx,
		content: content,
		owned:   owned,
		owner:   owner,
		values:  make(map[string]Value),
	}
}

// Type implements Value
func (d *Dict) Type() Type { return DictType }

// String implements Value
func (d *Dict) String() string {
	parts := make([]string, len(d.keys))
	for i, k := range d.keys {
		v := d.values[k]
		if v == nil {
			parts[i] = k + ": NULL"
			continue
		}
		parts[i] = k + ": " + v.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ContentType returns the declared value type
func (d *Dict) ContentType() SimpleTypeSpec { return d.content }

// Owned reports whether the dict owns its objects
func (d *Dict) Owned() bool { return d.owned }

// Owner returns the object whose member this dict is, or nil
func (d *Dict) Owner() *Object {
	if d.owner == "" {
		return nil
	}
	obj, _ := d.ctx.Lookup(d.owner)
	return obj
}

// Count returns the number of entries
func (d *Dict) Count() int { return len(d.keys) }

// Has reports whether key is present
func (d *Dict) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Keys returns the keys in insertion order
func (d *Dict) Keys() []string {
	keys := make([]string, len(d.keys))
	copy(keys, d.keys)
	return keys
}

// Get returns the value stored under key
func (d *Dict) Get(key string) (Value, error) {
	v, ok := d.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return d.ctx.resolve(v), nil
}

// ForEach calls fn for every entry in insertion order until fn returns false
func (d *Dict) ForEach(fn func(string, Value) bool) {
	for _, k := range d.keys {
		if !fn(k, d.ctx.resolve(d.values[k])) {
			return
		}
	}
}

// Set stores v under key, replacing any previous value in place
func (d *Dict) Set(key string, v Value) error {
	if err := checkContent(d.content, v); err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	if err := d.ctx.owns(v); err != nil {
		return err
	}

	old, had := d.values[key]
	if err := claim(d.owned, old, v); err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}

	stored := v
	if obj, ok := v.(*Object); ok && !d.owned {
		stored = weakRef{id: obj.id}
	}
	action := &DictSetAction{
		ownership: owning(d.owned, d.owner, old, v),
		dict:      d,
		key:       key,
		had:       had,
		old:       old,
		new:       stored,
	}
	return d.ctx.apply(action, action.apply)
}

// Remove deletes key
func (d *Dict) Remove(key string) error {
	v, ok := d.values[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	action := &DictRemoveAction{
		ownership: owning(d.owned, d.owner, v, nil),
		dict:      d,
		key:       key,
		value:     v,
		index:     d.position(key),
	}
	return d.ctx.apply(action, action.apply)
}

func (d *Dict) position(key string) int {
	for i, k := range d.keys {
		if k == key {
			return i
		}
	}
	return -1
}

func (d *Dict) setRaw(key string, v Value) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

func (d *Dict) insertRaw(index int, key string, v Value) {
	if index < 0 || index > len(d.keys) {
		index = len(d.keys)
	}
	d.keys = append(d.keys, "")
	copy(d.keys[index+1:], d.keys[index:])
	d.keys[index] = key
	d.values[key] = v
}

func (d *Dict) removeRaw(key string) {
	if i := d.position(key); i >= 0 {
		d.keys = append(d.keys[:i], d.keys[i+1:]...)
	}
	delete(d.values, key)
}
