package grt

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/grt/internal/undo"
)

// Context is one document: the object arena that resolves identities, the
// undo log recording every mutation, and the shared metaclass registry.
// A Context is not safe for concurrent use; all calls must come from the
// goroutine that owns the document.
type Context struct {
	registry *Registry
	objects  map[string]*Object
	undo     *undo.Manager
	logger   *zap.Logger
}

// Option configures a Context
type Option func(*contextOptions)

type contextOptions struct {
	logger    *zap.Logger
	undoLimit int
}

// WithLogger sets the logger used for debug tracing
func WithLogger(logger *zap.Logger) Option {
	return func(o *contextOptions) {
		o.logger = logger
	}
}

// WithUndoLimit caps the undo history of the document
func WithUndoLimit(limit int) Option {
	return func(o *contextOptions) {
		o.undoLimit = limit
	}
}

// NewContext creates an empty document bound to a registry
func NewContext(registry *Registry, opts ...Option) *Context {
	o := contextOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	return &Context{
		registry: registry,
		objects:  make(map[string]*Object),
		undo:     undo.NewManager(undo.WithLogger(o.logger.Named("undo")), undo.WithLimit(o.undoLimit)),
		logger:   o.logger,
	}
}

// Registry returns the metaclass registry
func (c *Context) Registry() *Registry { return c.registry }

// UndoManager returns the document's undo log
func (c *Context) UndoManager() *undo.Manager { return c.undo }

// Logger returns the document logger
func (c *Context) Logger() *zap.Logger { return c.logger }

// Lookup resolves an object identity
func (c *Context) Lookup(id string) (*Object, bool) {
	obj, ok := c.objects[id]
	return obj, ok
}

// ObjectCount returns the number of objects ever allocated in the document
func (c *Context) ObjectCount() int {
	return len(c.objects)
}

// NewObject allocates an object of the named class with default member values.
// The object starts detached; it becomes part of the document when it is
// stored in an owning slot.
func (c *Context) NewObject(class string) (*Object, error) {
	mc, err := c.registry.Get(class)
	if err != nil {
		return nil, err
	}
	return c.allocate(mc, uuid.NewString())
}

// NewList creates a standalone owning list
func (c *Context) NewList(content SimpleTypeSpec) *List {
	return &List{ctx: c, content: content, owned: true}
}

// NewRefList creates a standalone list of weak object references
func (c *Context) NewRefList(class string) *List {
	return &List{ctx: c, content: SimpleTypeSpec{Type: ObjectType, Class: class}}
}

// NewDict creates a standalone owning dict
func (c *Context) NewDict(content SimpleTypeSpec) *Dict {
	return newDict(c, content, true, "")
}

// Untracked runs fn with undo recording disabled, for loaders and fixtures
func (c *Context) Untracked(fn func() error) error {
	c.undo.Disable()
	defer c.undo.Enable()
	return fn()
}

func (c *Context) allocate(mc *Metaclass, id string) (*Object, error) {
	if _, exists := c.objects[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateObject, id)
	}

	obj := &Object{
		id:     id,
		meta:   mc,
		ctx:    c,
		values: make(map[string]Value, len(mc.members)),
	}
	for _, m := range mc.members {
		switch m.Type.Base.Type {
		case ListType:
			obj.values[m.Name] = &List{ctx: c, content: m.Type.Content, owned: m.Owned, owner: id}
		case DictType:
			obj.values[m.Name] = newDict(c, m.Type.Content, m.Owned, id)
		case IntegerType:
			obj.values[m.Name] = defaultOr(m.Default, Int(0))
		case DoubleType:
			obj.values[m.Name] = defaultOr(m.Default, Real(0))
		case StringType:
			obj.values[m.Name] = defaultOr(m.Default, String(""))
		}
	}
	c.objects[id] = obj
	return obj, nil
}

func (c *Context) forget(ids []string) {
	for _, id := range ids {
		delete(c.objects, id)
	}
}

func defaultOr(def, zero Value) Value {
	if def != nil {
		return def
	}
	return zero
}

// resolve turns a stored slot value into the value handed to callers
func (c *Context) resolve(v Value) Value {
	if ref, ok := v.(weakRef); ok {
		if obj, found := c.objects[ref.id]; found {
			return obj
		}
		return nil
	}
	return v
}

// apply performs a recorded mutation: it checks that the undo log accepts
// the action before touching the graph, so a refused edit changes nothing.
func (c *Context) apply(a undo.Action, edit func()) error {
	if err := c.undo.CanRecord(); err != nil {
		return err
	}
	edit()
	return c.undo.Record(a)
}

// owns checks that a value can be stored in this document
func (c *Context) owns(v Value) error {
	switch x := v.(type) {
	case *Object:
		if x.ctx != c {
			return fmt.Errorf("%w: object %s", ErrForeignValue, x.id)
		}
	case *List:
		if x.ctx != c {
			return fmt.Errorf("%w: list", ErrForeignValue)
		}
	case *Dict:
		if x.ctx != c {
			return fmt.Errorf("%w: dict", ErrForeignValue)
		}
	}
	return nil
}
