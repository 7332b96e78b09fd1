package grt

import (
	"fmt"
	"io"
	"strings"
)

// Graph actions are the reversible low-level edits recorded in the undo log.
// Each one is built completely before the edit it describes is applied.

// ownership tracks the owned objects entering and leaving an owning slot.
// An object is held by at most one owning slot at a time.
type ownership struct {
	owner    string
	adopted  *Object
	released *Object
}

// owning describes storing v over old in a slot; non-owning slots change nothing
func owning(owned bool, owner string, old, v Value) ownership {
	if !owned {
		return ownership{}
	}
	o := ownership{owner: owner}
	o.released, _ = old.(*Object)
	o.adopted, _ = v.(*Object)
	return o
}

// claim checks that v may be stored in an owning slot currently holding old
func claim(owned bool, old, v Value) error {
	obj, ok := v.(*Object)
	if !ok || !owned || !obj.held {
		return nil
	}
	if cur, ok := old.(*Object); ok && cur == obj {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrAlreadyOwned, obj)
}

func (o *ownership) take() {
	detach(o.released)
	attach(o.adopted, o.owner)
}

func (o *ownership) give() {
	detach(o.adopted)
	attach(o.released, o.owner)
}

func attach(obj *Object, owner string) {
	if obj != nil {
		obj.held = true
		obj.owner = owner
	}
}

func detach(obj *Object) {
	if obj != nil {
		obj.held = false
		obj.owner = ""
	}
}

func dumpLine(w io.Writer, indent int, format string, args ...any) {
	fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", indent), fmt.Sprintf(format, args...))
}

func slotString(v Value) string {
	if v == nil {
		return "NULL"
	}
	return v.String()
}

// ObjectChangeAction records a member assignment
type ObjectChangeAction struct {
	ownership
	object *Object
	member *Member
	old    Value
	new    Value
}

func (a *ObjectChangeAction) apply() {
	a.object.values[a.member.Name] = a.new
	a.take()
}

// Undo restores the previous member value
func (a *ObjectChangeAction) Undo() error {
	a.object.values[a.member.Name] = a.old
	a.give()
	return nil
}

// Redo re-applies the assignment
func (a *ObjectChangeAction) Redo() error {
	a.apply()
	return nil
}

// Description implements undo.Action
func (a *ObjectChangeAction) Description() string {
	return fmt.Sprintf("Change %s.%s", a.object.meta.name, a.member.Name)
}

// Dump writes the action for debugging
func (a *ObjectChangeAction) Dump(w io.Writer, indent int) {
	dumpLine(w, indent, "change %s.%s: %s -> %s", a.object, a.member.Name, slotString(a.old), slotString(a.new))
}

// ListInsertAction records an insertion into a list
type ListInsertAction struct {
	ownership
	list  *List
	index int
	value Value
}

func (a *ListInsertAction) apply() {
	a.list.insertRaw(a.index, a.value)
	a.take()
}

// Undo removes the inserted element
func (a *ListInsertAction) Undo() error {
	if a.index >= len(a.list.items) {
		return fmt.Errorf("undo insert: %w: %d", ErrIndexOutOfRange, a.index)
	}
	a.list.removeRaw(a.index)
	a.give()
	return nil
}

// Redo inserts the element again
func (a *ListInsertAction) Redo() error {
	if a.index > len(a.list.items) {
		return fmt.Errorf("redo insert: %w: %d", ErrIndexOutOfRange, a.index)
	}
	a.apply()
	return nil
}

// Description implements undo.Action
func (a *ListInsertAction) Description() string { return "Insert into list" }

// Dump writes the action for debugging
func (a *ListInsertAction) Dump(w io.Writer, indent int) {
	dumpLine(w, indent, "list insert [%d] %s", a.index, slotString(a.value))
}

// ListRemoveAction records the removal of a list element
type ListRemoveAction struct {
	ownership
	list  *List
	index int
	value Value
}

func (a *ListRemoveAction) apply() {
	a.list.removeRaw(a.index)
	a.take()
}

// Undo puts the element back at its index
func (a *ListRemoveAction) Undo() error {
	if a.index > len(a.list.items) {
		return fmt.Errorf("undo remove: %w: %d", ErrIndexOutOfRange, a.index)
	}
	a.list.insertRaw(a.index, a.value)
	a.give()
	return nil
}

// Redo removes the element again
func (a *ListRemoveAction) Redo() error {
	if a.index >= len(a.list.items) {
		return fmt.Errorf("redo remove: %w: %d", ErrIndexOutOfRange, a.index)
	}
	a.apply()
	return nil
}

// Description implements undo.Action
func (a *ListRemoveAction) Description() string { return "Remove from list" }

// Dump writes the action for debugging
func (a *ListRemoveAction) Dump(w io.Writer, indent int) {
	dumpLine(w, indent, "list remove [%d] %s", a.index, slotString(a.value))
}

// ListSetAction records the replacement of a list element
type ListSetAction struct {
	ownership
	list  *List
	index int
	old   Value
	new   Value
}

func (a *ListSetAction) apply() {
	a.list.items[a.index] = a.new
	a.take()
}

// Undo restores the replaced element
func (a *ListSetAction) Undo() error {
	if a.index >= len(a.list.items) {
		return fmt.Errorf("undo set: %w: %d", ErrIndexOutOfRange, a.index)
	}
	a.list.items[a.index] = a.old
	a.give()
	return nil
}

// Redo replaces the element again
func (a *ListSetAction) Redo() error {
	if a.index >= len(a.list.items) {
		return fmt.Errorf("redo set: %w: %d", ErrIndexOutOfRange, a.index)
	}
	a.apply()
	return nil
}

// Description implements undo.Action
func (a *ListSetAction) Description() string { return "Set list item" }

// Dump writes the action for debugging
func (a *ListSetAction) Dump(w io.Writer, indent int) {
	dumpLine(w, indent, "list set [%d] %s -> %s", a.index, slotString(a.old), slotString(a.new))
}

// ListReorderAction records moving an element within a list
type ListReorderAction struct {
	list *List
	from int
	to   int
}

func (a *ListReorderAction) apply() {
	a.list.moveRaw(a.from, a.to)
}

func (a *ListReorderAction) inRange() error {
	n := len(a.list.items)
	if a.from >= n || a.to >= n {
		return fmt.Errorf("reorder: %w: %d -> %d (count %d)", ErrIndexOutOfRange, a.from, a.to, n)
	}
	return nil
}

// Undo moves the element back
func (a *ListReorderAction) Undo() error {
	if err := a.inRange(); err != nil {
		return err
	}
	a.list.moveRaw(a.to, a.from)
	return nil
}

// Redo moves the element again
func (a *ListReorderAction) Redo() error {
	if err := a.inRange(); err != nil {
		return err
	}
	a.apply()
	return nil
}

// Description implements undo.Action
func (a *ListReorderAction) Description() string { return "Reorder list" }

// Dump writes the action for debugging
func (a *ListReorderAction) Dump(w io.Writer, indent int) {
	dumpLine(w, indent, "list reorder %d -> %d", a.from, a.to)
}

// DictSetAction records storing a dict entry
type DictSetAction struct {
	ownership
	dict *Dict
	key  string
	had  bool
	old  Value
	new  Value
}

func (a *DictSetAction) apply() {
	a.dict.setRaw(a.key, a.new)
	a.take()
}

// Undo restores the previous entry, or removes a new key
func (a *DictSetAction) Undo() error {
	if a.had {
		a.dict.values[a.key] = a.old
	} else {
		a.dict.removeRaw(a.key)
	}
	a.give()
	return nil
}

// Redo stores the entry again
func (a *DictSetAction) Redo() error {
	a.apply()
	return nil
}

// Description implements undo.Action
func (a *DictSetAction) Description() string {
	return fmt.Sprintf("Set dict key %q", a.key)
}

// Dump writes the action for debugging
func (a *DictSetAction) Dump(w io.Writer, indent int) {
	dumpLine(w, indent, "dict set %q: %s -> %s", a.key, slotString(a.old), slotString(a.new))
}

// DictRemoveAction records removing a dict entry
type DictRemoveAction struct {
	ownership
	dict  *Dict
	key   string
	value Value
	index int
}

func (a *DictRemoveAction) apply() {
	a.dict.removeRaw(a.key)
	a.take()
}

// Undo reinserts the entry at its original position
func (a *DictRemoveAction) Undo() error {
	if a.dict.Has(a.key) {
		return fmt.Errorf("undo remove: key %q already present", a.key)
	}
	a.dict.insertRaw(a.index, a.key, a.value)
	a.give()
	return nil
}

// Redo removes the entry again
func (a *DictRemoveAction) Redo() error {
	if !a.dict.Has(a.key) {
		return fmt.Errorf("redo remove: %w: %q", ErrKeyNotFound, a.key)
	}
	a.apply()
	return nil
}

// Description implements undo.Action
func (a *DictRemoveAction) Description() string {
	return fmt.Sprintf("Remove dict key %q", a.key)
}

// Dump writes the action for debugging
func (a *DictRemoveAction) Dump(w io.Writer, indent int) {
	dumpLine(w, indent, "dict remove %q: %s", a.key, slotString(a.value))
}
