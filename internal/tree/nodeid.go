// Package tree projects a value graph onto a tree of rows addressed by
// NodeID paths, for tree and property views. The projection is pull based:
// it caches what it has shown and re-reads the graph only when told to.
package tree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidNodeID is returned when a node path cannot be parsed
	ErrInvalidNodeID = errors.New("invalid node id")

	// ErrInvalidNode is returned when a node path does not address a node
	ErrInvalidNode = errors.New("invalid node")
)

// NodeID is a path of child indices from the root, e.g. "0.3.1". The empty
// NodeID addresses the root itself. NodeIDs are values; operations return
// new ids and never modify the receiver.
type NodeID struct {
	index []int
}

// NewNodeID creates a node id from child indices
func NewNodeID(indices ...int) NodeID {
	if len(indices) == 0 {
		return NodeID{}
	}
	index := make([]int, len(indices))
	copy(index, indices)
	return NodeID{index: index}
}

// ParseNodeID parses a path such as "1.2.3" or "1:2:3". Empty segments are
// skipped; any character other than digits and separators is an error.
func ParseNodeID(s string) (NodeID, error) {
	var index []int
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == ':' }) {
		for _, r := range part {
			if r < '0' || r > '9' {
				return NodeID{}, fmt.Errorf("%w: %q", ErrInvalidNodeID, s)
			}
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return NodeID{}, fmt.Errorf("%w: %q: %v", ErrInvalidNodeID, s, err)
		}
		index = append(index, n)
	}
	return NodeID{index: index}, nil
}

// MustParseNodeID is like ParseNodeID but panics on error
func MustParseNodeID(s string) NodeID {
	id, err := ParseNodeID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the path with '.' separators
func (n NodeID) String() string {
	return n.Format('.')
}

// Format returns the path using sep between indices
func (n NodeID) Format(sep rune) string {
	var b strings.Builder
	for i, v := range n.index {
		if i > 0 {
			b.WriteRune(sep)
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

// Depth returns the number of indices in the path
func (n NodeID) Depth() int { return len(n.index) }

// IsValid reports whether the id addresses a node below the root
func (n NodeID) IsValid() bool { return len(n.index) > 0 }

// At returns the index at the given depth
func (n NodeID) At(i int) (int, error) {
	if i < 0 || i >= len(n.index) {
		return 0, fmt.Errorf("%w: depth %d of %q", ErrInvalidNodeID, i, n)
	}
	return n.index[i], nil
}

// End returns the last index, or -1 for the root
func (n NodeID) End() int {
	if len(n.index) == 0 {
		return -1
	}
	return n.index[len(n.index)-1]
}

// Parent returns the parent path. Top-level nodes and the root have the
// empty NodeID as parent.
func (n NodeID) Parent() NodeID {
	if len(n.index) < 2 {
		return NodeID{}
	}
	return NewNodeID(n.index[:len(n.index)-1]...)
}

// Append returns the path extended by i
func (n NodeID) Append(i int) NodeID {
	index := make([]int, len(n.index), len(n.index)+1)
	copy(index, n.index)
	return NodeID{index: append(index, i)}
}

// Child returns the path of the i-th child
func (n NodeID) Child(i int) NodeID {
	return n.Append(i)
}

// Prepend returns the path with i inserted in front
func (n NodeID) Prepend(i int) NodeID {
	index := make([]int, 0, len(n.index)+1)
	index = append(index, i)
	return NodeID{index: append(index, n.index...)}
}

// Next returns the following sibling. The root has no siblings.
func (n NodeID) Next() (NodeID, bool) {
	if len(n.index) == 0 {
		return n, false
	}
	next := NewNodeID(n.index...)
	next.index[len(next.index)-1]++
	return next, true
}

// Previous returns the preceding sibling, if there is one
func (n NodeID) Previous() (NodeID, bool) {
	if len(n.index) == 0 || n.End() == 0 {
		return n, false
	}
	prev := NewNodeID(n.index...)
	prev.index[len(prev.index)-1]--
	return prev, true
}

// Equal reports whether both ids address the same path
func (n NodeID) Equal(o NodeID) bool {
	if len(n.index) != len(o.index) {
		return false
	}
	for i := range n.index {
		if n.index[i] != o.index[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether n is prefix itself or one of its descendants
func (n NodeID) HasPrefix(prefix NodeID) bool {
	if len(prefix.index) > len(n.index) {
		return false
	}
	for i, v := range prefix.index {
		if n.index[i] != v {
			return false
		}
	}
	return true
}

// Less orders shorter paths before longer ones and paths of equal depth
// index by index. Walking a sorted slice backwards visits children before
// their parents, which is the order for deleting rows.
func (n NodeID) Less(o NodeID) bool {
	if len(n.index) != len(o.index) {
		return len(n.index) < len(o.index)
	}
	for i := range n.index {
		if n.index[i] != o.index[i] {
			return n.index[i] < o.index[i]
		}
	}
	return false
}
