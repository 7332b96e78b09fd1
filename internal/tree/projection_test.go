package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/grt/internal/grt"
)

type fixture struct {
	ctx    *grt.Context
	table  *grt.Object
	first  *grt.Object
	second *grt.Object
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := grt.NewRegistry()
	_, err := r.Register("db.Column", "", []grt.Member{
		{Name: "name", Type: grt.Simple(grt.StringType)},
		{Name: "length", Type: grt.Simple(grt.IntegerType)},
		{Name: "referencedColumn", Type: grt.ObjectOf("db.Column")},
	})
	require.NoError(t, err)
	_, err = r.Register("db.Table", "", []grt.Member{
		{Name: "name", Type: grt.Simple(grt.StringType)},
		{Name: "columns", Type: grt.ListOf(grt.SimpleTypeSpec{Type: grt.ObjectType, Class: "db.Column"}), Owned: true},
		{Name: "options", Type: grt.DictOf(grt.SimpleTypeSpec{Type: grt.StringType}), Owned: true},
	})
	require.NoError(t, err)

	f := &fixture{ctx: grt.NewContext(r)}
	require.NoError(t, f.ctx.Untracked(func() error {
		var err error
		if f.table, err = f.ctx.NewObject("db.Table"); err != nil {
			return err
		}
		if err := f.table.Set("name", grt.String("customer")); err != nil {
			return err
		}
		columns, err := f.table.GetList("columns")
		if err != nil {
			return err
		}
		for _, name := range []string{"id", "email"} {
			col, err := f.ctx.NewObject("db.Column")
			if err != nil {
				return err
			}
			if err := col.Set("name", grt.String(name)); err != nil {
				return err
			}
			if err := columns.Append(col); err != nil {
				return err
			}
		}
		f.first, _ = mustColumn(columns, 0)
		f.second, _ = mustColumn(columns, 1)
		return f.second.Set("referencedColumn", f.first)
	}))
	return f
}

func mustColumn(l *grt.List, i int) (*grt.Object, error) {
	v, err := l.Get(i)
	if err != nil {
		return nil, err
	}
	return v.(*grt.Object), nil
}

func field(t *testing.T, p *Projection, path string, column Column) string {
	t.Helper()
	s, err := p.GetField(MustParseNodeID(path), column)
	require.NoError(t, err)
	return s
}

func count(t *testing.T, p *Projection, path string) int {
	t.Helper()
	n, err := p.Count(MustParseNodeID(path))
	require.NoError(t, err)
	return n
}

func TestProjectionRows(t *testing.T) {
	f := newFixture(t)
	p := NewProjection(f.ctx, f.table)
	assert.Same(t, f.table, p.Root())

	assert.Equal(t, 3, count(t, p, ""), "one row per member")
	assert.Equal(t, "name", field(t, p, "0", ColumnName))
	assert.Equal(t, "customer", field(t, p, "0", ColumnValue))
	assert.Equal(t, "string", field(t, p, "0", ColumnType))

	assert.Equal(t, "columns", field(t, p, "1", ColumnName))
	assert.Equal(t, "list<object(db.Column)>", field(t, p, "1", ColumnType))
	assert.Equal(t, "2 items", field(t, p, "1", ColumnValue))
	assert.Equal(t, 2, count(t, p, "1"))

	assert.Equal(t, "[1]", field(t, p, "1.1", ColumnName))
	assert.Equal(t, "email", field(t, p, "1.1", ColumnValue))
	assert.True(t, p.IsExpandable(MustParseNodeID("1.1")))
	assert.Equal(t, 3, count(t, p, "1.1"))

	// the weak reference is a leaf showing its target
	assert.Equal(t, "referencedColumn", field(t, p, "1.1.2", ColumnName))
	assert.Equal(t, "id", field(t, p, "1.1.2", ColumnValue))
	assert.False(t, p.IsExpandable(MustParseNodeID("1.1.2")))
	assert.Equal(t, 0, count(t, p, "1.1.2"))

	assert.False(t, p.IsExpandable(MustParseNodeID("0")))
	assert.False(t, p.IsExpandable(MustParseNodeID("9")))

	v, err := p.GetValue(MustParseNodeID("1.0"))
	require.NoError(t, err)
	assert.Same(t, f.first, v)

	_, err = p.GetField(MustParseNodeID("1.5"), ColumnName)
	assert.ErrorIs(t, err, ErrInvalidNode)
	_, err = p.GetField(MustParseNodeID("0"), Column(42))
	assert.Error(t, err)
	assert.Equal(t, "value", ColumnValue.String())

	// negative indices address nothing
	_, err = p.Count(NewNodeID(-1))
	assert.ErrorIs(t, err, ErrInvalidNode)
	_, err = p.GetField(NewNodeID(1, -1), ColumnName)
	assert.ErrorIs(t, err, ErrInvalidNode)
	assert.ErrorIs(t, p.SetField(NewNodeID(1, -1), grt.String("x")), ErrInvalidNode)
	assert.ErrorIs(t, p.RefreshNode(NewNodeID(-1), false), ErrInvalidNode)
	assert.False(t, p.IsExpandable(NewNodeID(-2)))
}

func TestProjectionIsPullBased(t *testing.T) {
	f := newFixture(t)
	p := NewProjection(f.ctx, f.table)
	require.Equal(t, 2, count(t, p, "1"))
	require.Equal(t, "customer", field(t, p, "0", ColumnValue))

	require.NoError(t, f.ctx.UndoManager().WithTransaction("edit", func() error {
		if err := f.table.Set("name", grt.String("client")); err != nil {
			return err
		}
		col, err := f.ctx.NewObject("db.Column")
		if err != nil {
			return err
		}
		columns, err := f.table.GetList("columns")
		if err != nil {
			return err
		}
		return columns.Append(col)
	}))

	assert.Equal(t, 2, count(t, p, "1"), "cached until refreshed")
	assert.Equal(t, "customer", field(t, p, "0", ColumnValue))

	require.NoError(t, p.RefreshNode(MustParseNodeID("1"), false))
	assert.Equal(t, 3, count(t, p, "1"))
	assert.Equal(t, "customer", field(t, p, "0", ColumnValue), "siblings are not refreshed")

	require.NoError(t, p.RefreshNode(NodeID{}, true))
	assert.Equal(t, "client", field(t, p, "0", ColumnValue))

	_, err := f.ctx.UndoManager().Undo()
	require.NoError(t, err)
	require.NoError(t, p.RefreshNode(NodeID{}, true))
	assert.Equal(t, 2, count(t, p, "1"))
	assert.Equal(t, "customer", field(t, p, "0", ColumnValue))

	assert.ErrorIs(t, p.RefreshNode(MustParseNodeID("7"), false), ErrInvalidNode)
}

func TestProjectionSetField(t *testing.T) {
	f := newFixture(t)
	p := NewProjection(f.ctx, f.table)
	um := f.ctx.UndoManager()

	require.NoError(t, p.SetField(MustParseNodeID("1.0.1"), grt.Int(11)))
	assert.Equal(t, "11", field(t, p, "1.0.1", ColumnValue))
	length, err := f.first.GetInt("length")
	require.NoError(t, err)
	assert.Equal(t, int64(11), length)
	assert.Equal(t, 1, um.UndoStackSize())
	assert.Equal(t, "Edit length", um.UndoDescription())

	err = p.SetField(MustParseNodeID("1.0.1"), grt.String("long"))
	assert.True(t, grt.IsTypeMismatch(err))
	assert.Equal(t, 1, um.UndoStackSize())

	assert.ErrorIs(t, p.SetField(NodeID{}, grt.Int(1)), ErrInvalidNode)
	assert.ErrorIs(t, p.SetField(MustParseNodeID("1"), grt.Int(1)), grt.ErrReadOnly)

	t.Run("dict entry", func(t *testing.T) {
		require.NoError(t, um.WithTransaction("opt", func() error {
			opts, err := f.table.GetDict("options")
			if err != nil {
				return err
			}
			return opts.Set("engine", grt.String("InnoDB"))
		}))
		require.NoError(t, p.RefreshNode(MustParseNodeID("2"), false))
		require.Equal(t, "engine", field(t, p, "2.0", ColumnName))

		require.NoError(t, p.SetField(MustParseNodeID("2.0"), grt.String("MyISAM")))
		opts, err := f.table.GetDict("options")
		require.NoError(t, err)
		v, err := opts.Get("engine")
		require.NoError(t, err)
		assert.Equal(t, grt.String("MyISAM"), v)
	})
}

func TestProjectionForgetsVanishedRows(t *testing.T) {
	remove := func(f *fixture, index int) error {
		return f.ctx.UndoManager().WithTransaction("drop", func() error {
			columns, err := f.table.GetList("columns")
			if err != nil {
				return err
			}
			return columns.Remove(index)
		})
	}

	t.Run("last row", func(t *testing.T) {
		f := newFixture(t)
		p := NewProjection(f.ctx, f.table)
		uid := p.NodeIDs().Map(MustParseNodeID("1.1"))
		require.Equal(t, 2, count(t, p, "1"))

		require.NoError(t, remove(f, 1))
		require.NoError(t, p.RefreshNode(MustParseNodeID("1"), false))

		_, ok := p.NodeIDs().Lookup(uid)
		assert.False(t, ok)
	})

	t.Run("first row", func(t *testing.T) {
		f := newFixture(t)
		p := NewProjection(f.ctx, f.table)
		ids := p.NodeIDs()
		idUID := ids.Map(MustParseNodeID("1.0"))
		idName := ids.Map(MustParseNodeID("1.0.0"))
		emailUID := ids.Map(MustParseNodeID("1.1"))
		emailName := ids.Map(MustParseNodeID("1.1.0"))
		require.Equal(t, 3, count(t, p, "1.1"))

		require.NoError(t, remove(f, 0))
		require.NoError(t, p.RefreshNode(MustParseNodeID("1"), false))
		require.Equal(t, 1, count(t, p, "1"))

		_, ok := ids.Lookup(idUID)
		assert.False(t, ok, "the removed row is forgotten")
		_, ok = ids.Lookup(idName)
		assert.False(t, ok, "and so is everything below it")

		node, ok := ids.Lookup(emailUID)
		require.True(t, ok, "the surviving row keeps its uid")
		assert.Equal(t, "1.0", node.String())
		assert.Equal(t, "email", field(t, p, node.String(), ColumnValue))
		assert.Equal(t, "[0]", field(t, p, node.String(), ColumnName))

		node, ok = ids.Lookup(emailName)
		require.True(t, ok)
		assert.Equal(t, "1.0.0", node.String())
		assert.Equal(t, "email", field(t, p, node.String(), ColumnValue))

		uid, ok := ids.UID(MustParseNodeID("1.0"))
		require.True(t, ok)
		assert.Equal(t, emailUID, uid)
		assert.Equal(t, 2, ids.Len())
	})

	t.Run("recursive refresh keeps only the rows", func(t *testing.T) {
		f := newFixture(t)
		p := NewProjection(f.ctx, f.table)
		ids := p.NodeIDs()
		emailUID := ids.Map(MustParseNodeID("1.1"))
		emailName := ids.Map(MustParseNodeID("1.1.0"))

		require.NoError(t, remove(f, 0))
		require.NoError(t, p.RefreshNode(MustParseNodeID("1"), true))

		node, ok := ids.Lookup(emailUID)
		require.True(t, ok)
		assert.Equal(t, "1.0", node.String())
		_, ok = ids.Lookup(emailName)
		assert.False(t, ok)
	})
}
