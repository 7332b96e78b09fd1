// Package grt implements a dynamically typed object graph: scalar values,
// ordered lists, ordered dictionaries and objects described by registered
// metaclasses. Every mutation of the graph is recorded in the document's undo
// log, and subtrees can be deep-copied with their internal references
// rewritten to point at the copies.
package grt

import (
	"fmt"
	"strings"
)

// Type is the tag of a Value
type Type int

const (
	// AnyType matches every value (untyped containers)
	AnyType Type = iota
	IntegerType
	DoubleType
	StringType
	ListType
	DictType
	ObjectType
)

// String returns the string representation of the type
func (t Type) String() string {
	switch t {
	case AnyType:
		return "any"
	case IntegerType:
		return "int"
	case DoubleType:
		return "real"
	case StringType:
		return "string"
	case ListType:
		return "list"
	case DictType:
		return "dict"
	case ObjectType:
		return "object"
	default:
		return "unknown"
	}
}

// IsSimple reports whether values of the type are immutable scalars
func (t Type) IsSimple() bool {
	return t == IntegerType || t == DoubleType || t == StringType
}

// ParseType converts a type name to a Type
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return AnyType, nil
	case "int", "integer":
		return IntegerType, nil
	case "real", "double", "float":
		return DoubleType, nil
	case "string":
		return StringType, nil
	case "list":
		return ListType, nil
	case "dict":
		return DictType, nil
	case "object":
		return ObjectType, nil
	default:
		return AnyType, fmt.Errorf("unknown type: %s", s)
	}
}

// SimpleTypeSpec is a type tag plus, for objects, the required class
type SimpleTypeSpec struct {
	Type  Type
	Class string
}

// String returns e.g. "int" or "object(db.Column)"
func (s SimpleTypeSpec) String() string {
	if s.Type == ObjectType && s.Class != "" {
		return fmt.Sprintf("object(%s)", s.Class)
	}
	return s.Type.String()
}

// TypeSpec describes a member type. Content is only meaningful for lists and dicts.
type TypeSpec struct {
	Base    SimpleTypeSpec
	Content SimpleTypeSpec
}

// String returns e.g. "list<object(db.Column)>"
func (t TypeSpec) String() string {
	switch t.Base.Type {
	case ListType, DictType:
		return fmt.Sprintf("%s<%s>", t.Base.Type, t.Content)
	default:
		return t.Base.String()
	}
}

// Simple returns a TypeSpec for a scalar type
func Simple(t Type) TypeSpec {
	return TypeSpec{Base: SimpleTypeSpec{Type: t}}
}

// ObjectOf returns a TypeSpec for an object member of the given class
func ObjectOf(class string) TypeSpec {
	return TypeSpec{Base: SimpleTypeSpec{Type: ObjectType, Class: class}}
}

// ListOf returns a TypeSpec for a list member
func ListOf(content SimpleTypeSpec) TypeSpec {
	return TypeSpec{Base: SimpleTypeSpec{Type: ListType}, Content: content}
}

// DictOf returns a TypeSpec for a dict member
func DictOf(content SimpleTypeSpec) TypeSpec {
	return TypeSpec{Base: SimpleTypeSpec{Type: DictType}, Content: content}
}
