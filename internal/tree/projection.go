package tree

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/conduit-lang/grt/internal/grt"
)

// Column selects a field of a projected row
type Column int

const (
	// ColumnName is the member name, list index or dict key of a row
	ColumnName Column = iota
	// ColumnType is the declared type of the slot holding the row's value
	ColumnType
	// ColumnValue is the display text of the row's value
	ColumnValue
)

// String returns the column name
func (c Column) String() string {
	switch c {
	case ColumnName:
		return "name"
	case ColumnType:
		return "type"
	case ColumnValue:
		return "value"
	default:
		return "unknown"
	}
}

// slot says where a row's value lives so it can be edited
type slot struct {
	object *grt.Object
	member *grt.Member
	list   *grt.List
	dict   *grt.Dict
	index  int
	key    string
}

type row struct {
	name     string
	typ      string
	value    grt.Value
	owned    bool
	slot     slot
	children []*row
	loaded   bool
}

// Projection presents a value graph as rows. Object rows have one child per
// member, list rows one per item and dict rows one per entry. Objects held by
// owning slots can be expanded; weak references are leaves.
//
// Rows are read from the graph the first time they are visited and cached.
// After the graph changes, callers refresh the affected subtree with
// RefreshNode. Only NodeIDs, or uids from NodeIDs, stay meaningful across a
// refresh.
type Projection struct {
	ctx    *grt.Context
	root   *row
	ids    *NodeIDs
	logger *zap.Logger
}

// NewProjection creates a projection of root, which must belong to ctx
func NewProjection(ctx *grt.Context, root grt.Value) *Projection {
	return &Projection{
		ctx:    ctx,
		root:   &row{typ: typeOf(root), value: root, owned: true},
		ids:    NewNodeIDs(),
		logger: ctx.Logger().Named("tree"),
	}
}

// Root returns the projected value
func (p *Projection) Root() grt.Value { return p.root.value }

// NodeIDs returns the uid mapping of this projection
func (p *Projection) NodeIDs() *NodeIDs { return p.ids }

// Count returns the number of children of node
func (p *Projection) Count(node NodeID) (int, error) {
	r, err := p.find(node)
	if err != nil {
		return 0, err
	}
	p.load(r)
	return len(r.children), nil
}

// IsExpandable reports whether node can have children
func (p *Projection) IsExpandable(node NodeID) bool {
	r, err := p.find(node)
	if err != nil {
		return false
	}
	return expandable(r)
}

// GetValue returns the value shown at node as of the last refresh
func (p *Projection) GetValue(node NodeID) (grt.Value, error) {
	r, err := p.find(node)
	if err != nil {
		return nil, err
	}
	return r.value, nil
}

// GetField returns one column of a row as text
func (p *Projection) GetField(node NodeID, column Column) (string, error) {
	r, err := p.find(node)
	if err != nil {
		return "", err
	}
	switch column {
	case ColumnName:
		return r.name, nil
	case ColumnType:
		return r.typ, nil
	case ColumnValue:
		return display(r.value), nil
	default:
		return "", fmt.Errorf("unknown column %d", column)
	}
}

// SetField stores value in the slot shown at node. The edit runs in its own
// undo transaction; on success the row shows the new value.
func (p *Projection) SetField(node NodeID, value grt.Value) error {
	r, err := p.find(node)
	if err != nil {
		return err
	}
	if !node.IsValid() {
		return fmt.Errorf("%w: the root has no slot", ErrInvalidNode)
	}

	description := fmt.Sprintf("Edit %s", r.name)
	err = p.ctx.UndoManager().WithTransaction(description, func() error {
		switch {
		case r.slot.object != nil:
			return r.slot.object.Set(r.slot.member.Name, value)
		case r.slot.list != nil:
			return r.slot.list.Set(r.slot.index, value)
		case r.slot.dict != nil:
			return r.slot.dict.Set(r.slot.key, value)
		default:
			return fmt.Errorf("%w: %s is not editable", ErrInvalidNode, node)
		}
	})
	if err != nil {
		return err
	}

	r.value = value
	r.children = nil
	r.loaded = false
	return nil
}

// RefreshNode re-reads the children of node from the graph. With recursive
// set, every cached row below node is dropped and re-read when next visited.
// Otherwise children whose value is unchanged keep their cached subtrees.
//
// Old rows are matched to new ones so mapped uids follow their rows: list
// items by value, members and dict entries by name. Uids of rows without a
// match are forgotten together with everything below them.
func (p *Projection) RefreshNode(node NodeID, recursive bool) error {
	r, err := p.find(node)
	if err != nil {
		return err
	}

	old := r.children
	r.children = nil
	r.loaded = false
	p.load(r)

	used := make([]bool, len(old))
	moves := make(map[int]childMove, len(old))
	for i, c := range r.children {
		j := matchRow(old, used, c, i)
		if j < 0 {
			continue
		}
		used[j] = true
		keep := !recursive && grt.Equal(old[j].value, c.value)
		moves[j] = childMove{to: i, deep: keep}
		if keep {
			old[j].name = c.name
			old[j].value = c.value
			old[j].slot = c.slot
			r.children[i] = old[j]
		}
	}
	dropped := p.ids.reindex(node, moves)

	p.logger.Debug("refreshed node",
		zap.Stringer("node", node),
		zap.Bool("recursive", recursive),
		zap.Int("children", len(r.children)),
		zap.Int("forgotten", dropped))
	return nil
}

// matchRow finds the unused old row that c replaces, preferring the one at
// the same position. It returns -1 when c is new.
func matchRow(old []*row, used []bool, c *row, at int) int {
	same := func(o *row) bool {
		if c.slot.list != nil {
			return grt.Equal(o.value, c.value)
		}
		return o.name == c.name
	}
	if at < len(old) && !used[at] && same(old[at]) {
		return at
	}
	for j, o := range old {
		if !used[j] && same(o) {
			return j
		}
	}
	return -1
}

func (p *Projection) find(node NodeID) (*row, error) {
	r := p.root
	for depth := 0; depth < node.Depth(); depth++ {
		i, _ := node.At(depth)
		p.load(r)
		if i < 0 || i >= len(r.children) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidNode, node)
		}
		r = r.children[i]
	}
	return r, nil
}

func expandable(r *row) bool {
	switch r.value.(type) {
	case *grt.List, *grt.Dict:
		return true
	case *grt.Object:
		return r.owned
	default:
		return false
	}
}

// load derives the children of r from the live graph once
func (p *Projection) load(r *row) {
	if r.loaded {
		return
	}
	r.loaded = true
	r.children = nil
	if !expandable(r) {
		return
	}

	switch v := r.value.(type) {
	case *grt.Object:
		for _, m := range v.Metaclass().Members() {
			value, _ := v.Get(m.Name)
			r.children = append(r.children, &row{
				name:  m.Name,
				typ:   m.Type.String(),
				value: value,
				owned: m.Owned,
				slot:  slot{object: v, member: m},
			})
		}
	case *grt.List:
		v.ForEach(func(i int, item grt.Value) bool {
			r.children = append(r.children, &row{
				name:  "[" + strconv.Itoa(i) + "]",
				typ:   v.ContentType().String(),
				value: item,
				owned: v.Owned(),
				slot:  slot{list: v, index: i},
			})
			return true
		})
	case *grt.Dict:
		v.ForEach(func(key string, item grt.Value) bool {
			r.children = append(r.children, &row{
				name:  key,
				typ:   v.ContentType().String(),
				value: item,
				owned: v.Owned(),
				slot:  slot{dict: v, key: key},
			})
			return true
		})
	}
}

func typeOf(v grt.Value) string {
	if !grt.IsValid(v) {
		return "invalid"
	}
	if obj, ok := v.(*grt.Object); ok {
		return "object(" + obj.Class() + ")"
	}
	return v.Type().String()
}

// display renders a value for the value column. Objects show their name
// member when they have one.
func display(v grt.Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case *grt.Object:
		if x == nil {
			return ""
		}
		if name, err := x.GetString("name"); err == nil && name != "" {
			return name
		}
		return x.String()
	case *grt.List:
		return fmt.Sprintf("%d items", x.Count())
	case *grt.Dict:
		return fmt.Sprintf("%d entries", x.Count())
	default:
		return v.String()
	}
}
