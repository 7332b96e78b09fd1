package grt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FormatVersion is the version written in serialized documents
const FormatVersion = 1

// ErrInvalidDocument is returned when serialized data cannot be decoded
var ErrInvalidDocument = errors.New("invalid document")

// document is the JSON envelope of a serialized value graph
type document struct {
	Version int        `json:"version"`
	Root    *wireValue `json:"root"`
}

// wireValue is the JSON form of one value. Objects held by non-owning slots
// are written as {"type":"ref","id":...}.
type wireValue struct {
	Type    string          `json:"type"`
	Value   json.RawMessage `json:"value,omitempty"`
	ID      string          `json:"id,omitempty"`
	Class   string          `json:"class,omitempty"`
	Content string          `json:"content,omitempty"`
	Owned   bool            `json:"owned,omitempty"`
	Items   []*wireValue    `json:"items,omitempty"`
	Entries []wireEntry     `json:"entries,omitempty"`
	Members []wireEntry     `json:"members,omitempty"`
}

type wireEntry struct {
	Key   string     `json:"key"`
	Value *wireValue `json:"value"`
}

const refType = "ref"

// Marshal serializes a value graph. Objects are walked through their
// metaclass members and containers through their items, so no per-class
// code is involved. Owned objects are written in place, weak references by id.
func Marshal(v Value) ([]byte, error) {
	if !IsValid(v) {
		return nil, ErrInvalidSource
	}
	root, err := encodeValue(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(document{Version: FormatVersion, Root: root})
}

func encodeValue(v Value) (*wireValue, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case weakRef:
		return &wireValue{Type: refType, ID: x.id}, nil
	case Int:
		return encodeScalar(IntegerType, int64(x))
	case Real:
		return encodeScalar(DoubleType, float64(x))
	case String:
		return encodeScalar(StringType, string(x))
	case *List:
		w := &wireValue{Type: ListType.String(), Content: x.content.Type.String(), Class: x.content.Class, Owned: x.owned}
		for i, item := range x.items {
			iw, err := encodeValue(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			w.Items = append(w.Items, iw)
		}
		return w, nil
	case *Dict:
		w := &wireValue{Type: DictType.String(), Content: x.content.Type.String(), Class: x.content.Class, Owned: x.owned}
		for _, k := range x.keys {
			ew, err := encodeValue(x.values[k])
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			w.Entries = append(w.Entries, wireEntry{Key: k, Value: ew})
		}
		return w, nil
	case *Object:
		w := &wireValue{Type: ObjectType.String(), Class: x.meta.name, ID: x.id}
		var err error
		x.ctx.registry.ForEachMember(x, func(m *Member, o *Object) bool {
			var mw *wireValue
			if mw, err = encodeValue(o.values[m.Name]); err != nil {
				err = fmt.Errorf("%s.%s: %w", x.meta.name, m.Name, err)
				return false
			}
			w.Members = append(w.Members, wireEntry{Key: m.Name, Value: mw})
			return true
		})
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("cannot serialize %T", v)
	}
}

func encodeScalar(t Type, v any) (*wireValue, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &wireValue{Type: t.String(), Value: raw}, nil
}

// UnmarshalOptions controls how a serialized graph is rebuilt
type UnmarshalOptions struct {
	// FreshIDs gives every object in the payload a new identity and rewrites
	// the references between them. References to objects outside the payload
	// are kept as they are.
	FreshIDs bool
}

// Unmarshal rebuilds a serialized value graph inside ctx. Nothing is recorded
// in the undo log while building. The returned root is detached.
func Unmarshal(ctx *Context, data []byte, opts UnmarshalOptions) (Value, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidDocument, doc.Version)
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("%w: missing root", ErrInvalidDocument)
	}

	d := &decoder{ctx: ctx, ids: make(map[string]string)}
	if err := d.collectIDs(doc.Root, opts.FreshIDs); err != nil {
		return nil, err
	}

	var root Value
	err := ctx.Untracked(func() error {
		var err error
		root, err = d.decode(doc.Root, "", true)
		return err
	})
	if err != nil {
		ctx.forget(d.allocated)
		return nil, err
	}
	if obj, ok := root.(*Object); ok {
		detach(obj)
	}
	ctx.logger.Debug("unmarshaled document",
		zap.Int("objects", len(d.allocated)),
		zap.Bool("fresh_ids", opts.FreshIDs))
	return root, nil
}

// LoadDocument rebuilds a serialized graph and clears the undo history, so a
// loaded document starts with nothing to undo
func LoadDocument(ctx *Context, data []byte) (Value, error) {
	root, err := Unmarshal(ctx, data, UnmarshalOptions{})
	if err != nil {
		return nil, err
	}
	ctx.undo.Reset()
	return root, nil
}

type decoder struct {
	ctx       *Context
	ids       map[string]string
	allocated []string
}

// collectIDs maps every object id in the payload to the id it gets in ctx
func (d *decoder) collectIDs(w *wireValue, fresh bool) error {
	if w == nil {
		return nil
	}
	if w.Type == ObjectType.String() {
		if w.ID == "" {
			return fmt.Errorf("%w: %s object without id", ErrInvalidDocument, w.Class)
		}
		if _, dup := d.ids[w.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateObject, w.ID)
		}
		if fresh {
			d.ids[w.ID] = uuid.NewString()
		} else {
			d.ids[w.ID] = w.ID
		}
	}
	for _, item := range w.Items {
		if err := d.collectIDs(item, fresh); err != nil {
			return err
		}
	}
	for _, e := range w.Entries {
		if err := d.collectIDs(e.Value, fresh); err != nil {
			return err
		}
	}
	for _, e := range w.Members {
		if err := d.collectIDs(e.Value, fresh); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) ref(id string) weakRef {
	if mapped, ok := d.ids[id]; ok {
		return weakRef{id: mapped}
	}
	return weakRef{id: id}
}

// decode builds one value. owner is the id adopting owned objects and owned
// tells whether the slot holding the value owns objects.
func (d *decoder) decode(w *wireValue, owner string, owned bool) (Value, error) {
	if w == nil {
		return nil, nil
	}
	switch w.Type {
	case refType:
		return d.ref(w.ID), nil
	case IntegerType.String():
		var i int64
		if err := json.Unmarshal(w.Value, &i); err != nil {
			return nil, fmt.Errorf("%w: int: %v", ErrInvalidDocument, err)
		}
		return Int(i), nil
	case DoubleType.String():
		var f float64
		if err := json.Unmarshal(w.Value, &f); err != nil {
			return nil, fmt.Errorf("%w: real: %v", ErrInvalidDocument, err)
		}
		return Real(f), nil
	case StringType.String():
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, fmt.Errorf("%w: string: %v", ErrInvalidDocument, err)
		}
		return String(s), nil
	case ListType.String():
		content, err := w.contentSpec()
		if err != nil {
			return nil, err
		}
		l := &List{ctx: d.ctx, content: content, owned: w.Owned}
		return l, d.fillList(l, w)
	case DictType.String():
		content, err := w.contentSpec()
		if err != nil {
			return nil, err
		}
		dict := newDict(d.ctx, content, w.Owned, "")
		return dict, d.fillDict(dict, w)
	case ObjectType.String():
		if !owned {
			return d.ref(w.ID), nil
		}
		obj, err := d.decodeObject(w)
		if err != nil {
			return nil, err
		}
		attach(obj, owner)
		return obj, nil
	default:
		return nil, fmt.Errorf("%w: unknown value type %q", ErrInvalidDocument, w.Type)
	}
}

func (w *wireValue) contentSpec() (SimpleTypeSpec, error) {
	t, err := ParseType(w.Content)
	if err != nil {
		return SimpleTypeSpec{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return SimpleTypeSpec{Type: t, Class: w.Class}, nil
}

func (d *decoder) fillList(l *List, w *wireValue) error {
	for i, iw := range w.Items {
		v, err := d.decode(iw, l.owner, l.owned)
		if err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
		if err := checkStored(l.content, v); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
		l.items = append(l.items, v)
	}
	return nil
}

func (d *decoder) fillDict(dict *Dict, w *wireValue) error {
	for _, e := range w.Entries {
		v, err := d.decode(e.Value, dict.owner, dict.owned)
		if err != nil {
			return fmt.Errorf("[%q]: %w", e.Key, err)
		}
		if err := checkStored(dict.content, v); err != nil {
			return fmt.Errorf("[%q]: %w", e.Key, err)
		}
		dict.setRaw(e.Key, v)
	}
	return nil
}

func (d *decoder) decodeObject(w *wireValue) (*Object, error) {
	mc, err := d.ctx.registry.Get(w.Class)
	if err != nil {
		return nil, err
	}
	obj, err := d.ctx.allocate(mc, d.ids[w.ID])
	if err != nil {
		return nil, err
	}
	d.allocated = append(d.allocated, obj.id)

	for _, e := range w.Members {
		m, err := obj.member(e.Key)
		if err != nil {
			return nil, err
		}
		if err := d.decodeMember(obj, m, e.Value); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", mc.name, m.Name, err)
		}
	}
	return obj, nil
}

func (d *decoder) decodeMember(obj *Object, m *Member, w *wireValue) error {
	switch m.Type.Base.Type {
	case ListType:
		if w == nil || w.Type != ListType.String() {
			return mismatchWire(m, w)
		}
		return d.fillList(obj.values[m.Name].(*List), w)
	case DictType:
		if w == nil || w.Type != DictType.String() {
			return mismatchWire(m, w)
		}
		return d.fillDict(obj.values[m.Name].(*Dict), w)
	}

	v, err := d.decode(w, obj.id, m.Owned)
	if err != nil {
		return err
	}
	if v == nil && m.Type.Base.Type == ObjectType {
		obj.values[m.Name] = nil
		return nil
	}
	if err := checkStored(m.Type.Base, v); err != nil {
		return err
	}
	obj.values[m.Name] = v
	return nil
}

// checkStored type-checks a decoded slot value; references are checked by tag
// only because their target may not be built yet
func checkStored(spec SimpleTypeSpec, v Value) error {
	if ref, ok := v.(weakRef); ok {
		if spec.Type != AnyType && spec.Type != ObjectType {
			return &TypeMismatchError{Expected: spec.String(), Actual: "ref " + ref.id}
		}
		return nil
	}
	return checkContent(spec, v)
}

func mismatchWire(m *Member, w *wireValue) error {
	actual := "invalid"
	if w != nil {
		actual = w.Type
	}
	return &TypeMismatchError{Expected: m.Type.String(), Actual: actual}
}
