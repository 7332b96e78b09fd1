package grt

import (
	"fmt"
	"math"
	"strconv"
)

// Value is the universal currency of the graph: Int, Real, String, *List,
// *Dict or *Object. A nil Value is the invalid value.
type Value interface {
	Type() Type
	String() string
}

// Int is an immutable integer value
type Int int64

// Type implements Value
func (Int) Type() Type { return IntegerType }

// String implements Value
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Real is an immutable floating point value
type Real float64

// Type implements Value
func (Real) Type() Type { return DoubleType }

// String implements Value
func (r Real) String() string { return strconv.FormatFloat(float64(r), 'g', -1, 64) }

// String is an immutable UTF-8 string value
type String string

// Type implements Value
func (String) Type() Type { return StringType }

// String implements Value
func (s String) String() string { return string(s) }

// weakRef is how a non-owning slot stores an object: by identity only.
// It never escapes the package; reads resolve it through the document arena.
type weakRef struct {
	id string
}

func (weakRef) Type() Type { return ObjectType }

func (w weakRef) String() string { return "<ref " + w.id + ">" }

// IsValid reports whether v holds a value
func IsValid(v Value) bool {
	if v == nil {
		return false
	}
	switch x := v.(type) {
	case *Object:
		return x != nil
	case *List:
		return x != nil
	case *Dict:
		return x != nil
	}
	return true
}

// Equal compares scalars by value and composites by identity
func Equal(a, b Value) bool {
	if !IsValid(a) || !IsValid(b) {
		return !IsValid(a) && !IsValid(b)
	}
	switch x := a.(type) {
	case *Object:
		y, ok := b.(*Object)
		return ok && x == y
	case *List:
		y, ok := b.(*List)
		return ok && x == y
	case *Dict:
		y, ok := b.(*Dict)
		return ok && x == y
	default:
		return a == b
	}
}

// DeepEqual compares two values structurally. Owned objects are compared
// member by member regardless of identity; weak references must point at the
// same object.
func DeepEqual(a, b Value) bool {
	if !IsValid(a) || !IsValid(b) {
		return !IsValid(a) && !IsValid(b)
	}
	switch x := a.(type) {
	case *Object:
		y, ok := b.(*Object)
		if !ok || x.meta != y.meta {
			return false
		}
		for _, m := range x.meta.Members() {
			if !deepEqualStored(x.values[m.Name], y.values[m.Name]) {
				return false
			}
		}
		return true
	case *List:
		y, ok := b.(*List)
		if !ok || x.content != y.content || len(x.items) != len(y.items) {
			return false
		}
		for i := range x.items {
			if !deepEqualStored(x.items[i], y.items[i]) {
				return false
			}
		}
		return true
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || x.content != y.content || len(x.keys) != len(y.keys) {
			return false
		}
		for i, k := range x.keys {
			if y.keys[i] != k || !deepEqualStored(x.values[k], y.values[k]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func deepEqualStored(a, b Value) bool {
	if ra, ok := a.(weakRef); ok {
		rb, ok := b.(weakRef)
		return ok && ra.id == rb.id
	}
	if _, ok := b.(weakRef); ok {
		return false
	}
	return DeepEqual(a, b)
}

// checkContent verifies that v may be stored in a slot declared as spec
func checkContent(spec SimpleTypeSpec, v Value) error {
	if !IsValid(v) {
		return mismatch(spec, v)
	}
	if r, ok := v.(Real); ok && (math.IsNaN(float64(r)) || math.IsInf(float64(r), 0)) {
		return fmt.Errorf("%w: %s", ErrNonFinite, r)
	}
	if spec.Type == AnyType {
		return nil
	}
	if v.Type() != spec.Type {
		return mismatch(spec, v)
	}
	if spec.Type == ObjectType && spec.Class != "" {
		if !v.(*Object).IsInstanceOf(spec.Class) {
			return mismatch(spec, v)
		}
	}
	return nil
}

// storedID returns the object identity held by a stored slot value
func storedID(v Value) (string, bool) {
	switch x := v.(type) {
	case *Object:
		return x.id, true
	case weakRef:
		return x.id, true
	}
	return "", false
}
