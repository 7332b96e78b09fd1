package grt

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Diagnostic is a non-fatal observation made while copying
type Diagnostic struct {
	ObjectID string
	Class    string
	Message  string
}

// String returns a readable form of the diagnostic
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s <%s>: %s", d.Class, d.ObjectID, d.Message)
}

// CopyContext deep-copies values in two phases. Copy and CopyValue clone
// along ownership edges, giving every cloned object a fresh identity and
// remembering which original it came from. UpdateReferences then rewrites
// every weak reference held by the clones that points at a cloned original.
//
// Several roots may be copied with one CopyContext before relinking, so
// references between them are rewritten too. Building copies records nothing
// in the undo log; the copies stay detached until the caller stores them.
type CopyContext struct {
	ctx         *Context
	copies      map[string]*Object
	cloned      []*Object
	containers  []Value
	allocated   []string
	active      map[string]bool
	diagnostics []Diagnostic
}

// NewCopyContext creates a copy context targeting the given document
func NewCopyContext(ctx *Context) *CopyContext {
	return &CopyContext{
		ctx:    ctx,
		copies: make(map[string]*Object),
		active: make(map[string]bool),
	}
}

// Copy clones obj and everything it owns. Members named in skip keep their
// default values in the copy.
func (cc *CopyContext) Copy(obj *Object, skip ...string) (*Object, error) {
	if obj == nil {
		return nil, ErrInvalidSource
	}
	if err := cc.ctx.owns(obj); err != nil {
		return nil, err
	}

	var skipped map[string]bool
	if len(skip) > 0 {
		skipped = make(map[string]bool, len(skip))
		for _, name := range skip {
			skipped[name] = true
		}
	}

	mark := len(cc.allocated)
	dup, err := cc.cloneObject(obj, skipped)
	if err != nil {
		cc.rollback(mark)
		return nil, err
	}
	return dup, nil
}

// ShallowCopy clones only obj itself: scalars and weak references are copied.
// Owned objects stay with the original, since an object has a single owner,
// so owned object members and the objects of owning containers are left out.
func (cc *CopyContext) ShallowCopy(obj *Object) (*Object, error) {
	if obj == nil {
		return nil, ErrInvalidSource
	}
	if err := cc.ctx.owns(obj); err != nil {
		return nil, err
	}
	mc, err := cc.metaclass(obj)
	if err != nil {
		return nil, err
	}

	dup, err := cc.allocate(obj, mc)
	if err != nil {
		return nil, err
	}
	cc.ctx.registry.ForEachMember(obj, func(m *Member, _ *Object) bool {
		switch src := obj.values[m.Name].(type) {
		case *List:
			dst := dup.values[m.Name].(*List)
			for _, item := range src.items {
				if _, owned := item.(*Object); !owned {
					dst.items = append(dst.items, item)
				}
			}
		case *Dict:
			dst := dup.values[m.Name].(*Dict)
			for _, k := range src.keys {
				if _, owned := src.values[k].(*Object); !owned {
					dst.setRaw(k, src.values[k])
				}
			}
		case *Object:
			// owned by the original
		default:
			dup.values[m.Name] = src
		}
		return true
	})
	return dup, nil
}

// CopyValue copies any value. Scalars are returned as they are, objects are
// copied as with Copy, and lists and dicts are copied into new detached
// containers whose owned objects are cloned.
func (cc *CopyContext) CopyValue(v Value) (Value, error) {
	if !IsValid(v) {
		return nil, ErrInvalidSource
	}
	if err := cc.ctx.owns(v); err != nil {
		return nil, err
	}

	mark, cmark := len(cc.allocated), len(cc.containers)
	var (
		dup Value
		err error
	)
	switch x := v.(type) {
	case *Object:
		dup, err = cc.cloneObject(x, nil)
	case *List:
		l := &List{ctx: cc.ctx, content: x.content, owned: x.owned}
		err = cc.cloneItems(x, l, "")
		dup = l
		cc.containers = append(cc.containers, l)
	case *Dict:
		d := newDict(cc.ctx, x.content, x.owned, "")
		err = cc.cloneEntries(x, d, "")
		dup = d
		cc.containers = append(cc.containers, d)
	default:
		return v, nil
	}
	if err != nil {
		cc.rollback(mark)
		cc.containers = cc.containers[:cmark]
		return nil, err
	}
	return dup, nil
}

// CopyFor returns the clone made of original, if any
func (cc *CopyContext) CopyFor(original *Object) (*Object, bool) {
	if original == nil {
		return nil, false
	}
	dup, ok := cc.copies[original.id]
	return dup, ok
}

// Diagnostics returns the observations collected while copying
func (cc *CopyContext) Diagnostics() []Diagnostic {
	return cc.diagnostics
}

// UpdateReferences rewrites weak references held by the copies so that those
// pointing at a copied original point at its clone instead. References to
// objects outside the copied set are left alone. Returns the number of
// rewritten references.
func (cc *CopyContext) UpdateReferences() int {
	rewritten := 0
	for _, dup := range cc.cloned {
		for _, m := range dup.meta.members {
			switch x := dup.values[m.Name].(type) {
			case weakRef:
				if target, ok := cc.copies[x.id]; ok {
					dup.values[m.Name] = weakRef{id: target.id}
					rewritten++
				}
			case *List:
				rewritten += cc.relinkList(x)
			case *Dict:
				rewritten += cc.relinkDict(x)
			}
		}
	}
	for _, c := range cc.containers {
		switch x := c.(type) {
		case *List:
			rewritten += cc.relinkList(x)
		case *Dict:
			rewritten += cc.relinkDict(x)
		}
	}
	cc.ctx.logger.Debug("relinked copies",
		zap.Int("objects", len(cc.cloned)),
		zap.Int("references", rewritten))
	return rewritten
}

func (cc *CopyContext) relinkList(l *List) int {
	n := 0
	for i, item := range l.items {
		if ref, ok := item.(weakRef); ok {
			if target, found := cc.copies[ref.id]; found {
				l.items[i] = weakRef{id: target.id}
				n++
			}
		}
	}
	return n
}

func (cc *CopyContext) relinkDict(d *Dict) int {
	n := 0
	for _, k := range d.keys {
		if ref, ok := d.values[k].(weakRef); ok {
			if target, found := cc.copies[ref.id]; found {
				d.values[k] = weakRef{id: target.id}
				n++
			}
		}
	}
	return n
}

func (cc *CopyContext) metaclass(obj *Object) (*Metaclass, error) {
	mc, err := cc.ctx.registry.Get(obj.meta.name)
	if err != nil {
		return nil, err
	}
	if mc != obj.meta {
		return nil, fmt.Errorf("%w: %s is not the registered class", ErrUnknownClass, obj.meta.name)
	}
	return mc, nil
}

func (cc *CopyContext) allocate(orig *Object, mc *Metaclass) (*Object, error) {
	dup, err := cc.ctx.allocate(mc, uuid.NewString())
	if err != nil {
		return nil, err
	}
	cc.allocated = append(cc.allocated, dup.id)
	cc.cloned = append(cc.cloned, dup)

	if _, seen := cc.copies[orig.id]; seen {
		d := Diagnostic{
			ObjectID: orig.id,
			Class:    mc.name,
			Message:  "copied more than once; references resolve to the first copy",
		}
		cc.diagnostics = append(cc.diagnostics, d)
		cc.ctx.logger.Debug("duplicate copy", zap.String("object", orig.id), zap.String("class", mc.name))
	} else {
		cc.copies[orig.id] = dup
	}
	return dup, nil
}

func (cc *CopyContext) cloneObject(obj *Object, skip map[string]bool) (*Object, error) {
	if cc.active[obj.id] {
		return nil, fmt.Errorf("%w: ownership cycle at %s", ErrInvalidSource, obj)
	}
	mc, err := cc.metaclass(obj)
	if err != nil {
		return nil, err
	}

	cc.active[obj.id] = true
	defer delete(cc.active, obj.id)

	dup, err := cc.allocate(obj, mc)
	if err != nil {
		return nil, err
	}

	cc.ctx.registry.ForEachMember(obj, func(m *Member, _ *Object) bool {
		if skip[m.Name] {
			return true
		}
		switch src := obj.values[m.Name].(type) {
		case *List:
			err = cc.cloneItems(src, dup.values[m.Name].(*List), dup.id)
		case *Dict:
			err = cc.cloneEntries(src, dup.values[m.Name].(*Dict), dup.id)
		case *Object:
			var child *Object
			if child, err = cc.cloneObject(src, nil); err == nil {
				attach(child, dup.id)
				dup.values[m.Name] = child
			}
		default:
			dup.values[m.Name] = src
		}
		if err != nil {
			err = fmt.Errorf("%s.%s: %w", mc.name, m.Name, err)
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return dup, nil
}

// cloneElement copies one container element. Owned objects are cloned and
// adopted by owner; everything else is shared.
func (cc *CopyContext) cloneElement(v Value, owned bool, owner string) (Value, error) {
	switch x := v.(type) {
	case *Object:
		if !owned {
			return weakRef{id: x.id}, nil
		}
		child, err := cc.cloneObject(x, nil)
		if err != nil {
			return nil, err
		}
		attach(child, owner)
		return child, nil
	case *List, *Dict:
		return cc.CopyValue(x)
	default:
		return v, nil
	}
}

func (cc *CopyContext) cloneItems(src, dst *List, owner string) error {
	for i, item := range src.items {
		v, err := cc.cloneElement(item, dst.owned, owner)
		if err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
		dst.items = append(dst.items, v)
	}
	return nil
}

func (cc *CopyContext) cloneEntries(src, dst *Dict, owner string) error {
	for _, k := range src.keys {
		v, err := cc.cloneElement(src.values[k], dst.owned, owner)
		if err != nil {
			return fmt.Errorf("[%q]: %w", k, err)
		}
		dst.setRaw(k, v)
	}
	return nil
}

// rollback discards the objects allocated since mark
func (cc *CopyContext) rollback(mark int) {
	dropped := cc.allocated[mark:]
	gone := make(map[string]bool, len(dropped))
	for _, id := range dropped {
		gone[id] = true
	}
	for orig, dup := range cc.copies {
		if gone[dup.id] {
			delete(cc.copies, orig)
		}
	}
	kept := cc.cloned[:0]
	for _, dup := range cc.cloned {
		if !gone[dup.id] {
			kept = append(kept, dup)
		}
	}
	cc.cloned = kept
	cc.ctx.forget(dropped)
	cc.allocated = cc.allocated[:mark]
}

// Copy deep-copies v and relinks the references inside the copy in one step
func Copy(ctx *Context, v Value) (Value, error) {
	cc := NewCopyContext(ctx)
	dup, err := cc.CopyValue(v)
	if err != nil {
		return nil, err
	}
	cc.UpdateReferences()
	return dup, nil
}
