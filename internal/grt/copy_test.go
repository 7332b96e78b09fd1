package grt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyTableWithPrimaryKey(t *testing.T) {
	ctx := newDocument(t)
	schema := mustObject(t, ctx, "db.Schema", "S")
	table := newTable(t, ctx, "customer", 5)
	tracked(t, ctx, "add table", func() error {
		return mustList(t, schema, "tables").Append(table)
	})
	undoSize := ctx.UndoManager().UndoStackSize()

	v, err := Copy(ctx, table)
	require.NoError(t, err)
	dup := v.(*Object)

	assert.NotEqual(t, table.ID(), dup.ID())
	assert.NotSame(t, table, dup)
	assert.Nil(t, dup.Owner(), "copies are detached")
	assert.Same(t, schema, table.Owner())
	assert.Equal(t, undoSize, ctx.UndoManager().UndoStackSize(), "copying records nothing")

	origPK, err := table.GetObject("primaryKey")
	require.NoError(t, err)
	dupPK, err := dup.GetObject("primaryKey")
	require.NoError(t, err)
	require.NotNil(t, dupPK)
	assert.NotSame(t, origPK, dupPK)
	assert.Same(t, dup, dupPK.Owner())

	origCols := mustList(t, table, "columns")
	dupCols := mustList(t, dup, "columns")
	require.Equal(t, 5, dupCols.Count())

	origPKCols := mustList(t, origPK, "columns")
	dupPKCols := mustList(t, dupPK, "columns")
	require.Equal(t, 5, dupPKCols.Count())
	assert.NotSame(t, mustItem(t, origPKCols, 0), mustItem(t, dupPKCols, 0))

	for i := 0; i < 5; i++ {
		col := mustItem(t, dupCols, i)
		assert.NotEqual(t, mustItem(t, origCols, i).ID(), col.ID())
		assert.Same(t, dup, col.Owner())

		ref, err := mustItem(t, dupPKCols, i).GetObject("referencedColumn")
		require.NoError(t, err)
		assert.Same(t, col, ref, "index column %d points into the copy", i)
	}

	ref, err := mustItem(t, origPKCols, 0).GetObject("referencedColumn")
	require.NoError(t, err)
	assert.Same(t, mustItem(t, origCols, 0), ref, "original is untouched")
	assert.True(t, DeepEqual(mustGet(t, table, "name"), mustGet(t, dup, "name")))
}

func TestCopyReferences(t *testing.T) {
	ctx := newDocument(t)

	// a owns b; c references b
	var a, b, c *Object
	require.NoError(t, ctx.Untracked(func() error {
		a = mustObject(t, ctx, "model.Diagram", "a")
		b = mustObject(t, ctx, "model.Layer", "b")
		c = mustObject(t, ctx, "model.Figure", "c")
		if err := a.Set("rootLayer", b); err != nil {
			return err
		}
		if err := mustList(t, a, "figures").Append(c); err != nil {
			return err
		}
		return c.Set("layer", b)
	}))

	t.Run("internal references follow the copy", func(t *testing.T) {
		v, err := Copy(ctx, a)
		require.NoError(t, err)
		dupA := v.(*Object)

		dupB, err := dupA.GetObject("rootLayer")
		require.NoError(t, err)
		dupC := mustItem(t, mustList(t, dupA, "figures"), 0)

		assert.NotSame(t, b, dupB)
		assert.NotSame(t, c, dupC)
		layer, err := dupC.GetObject("layer")
		require.NoError(t, err)
		assert.Same(t, dupB, layer)
	})

	t.Run("external references are kept", func(t *testing.T) {
		v, err := Copy(ctx, c)
		require.NoError(t, err)
		dupC := v.(*Object)

		layer, err := dupC.GetObject("layer")
		require.NoError(t, err)
		assert.Same(t, b, layer, "reference leaving the copied subtree is shared")
		assert.Same(t, a, b.Owner())
	})

	t.Run("copying the owner leaves outside referrers alone", func(t *testing.T) {
		outside := mustObject(t, ctx, "model.Figure", "outside")
		require.NoError(t, ctx.Untracked(func() error { return outside.Set("layer", b) }))

		v, err := Copy(ctx, a)
		require.NoError(t, err)
		dupB, err := v.(*Object).GetObject("rootLayer")
		require.NoError(t, err)
		assert.NotSame(t, b, dupB)

		layer, err := outside.GetObject("layer")
		require.NoError(t, err)
		assert.Same(t, b, layer)
	})

	t.Run("several roots relink together", func(t *testing.T) {
		cc := NewCopyContext(ctx)
		other := mustObject(t, ctx, "model.Figure", "other")
		require.NoError(t, ctx.Untracked(func() error { return other.Set("layer", b) }))

		dupOther, err := cc.Copy(other)
		require.NoError(t, err)
		dupA, err := cc.Copy(a)
		require.NoError(t, err)
		assert.Greater(t, cc.UpdateReferences(), 0)

		dupB, ok := cc.CopyFor(b)
		require.True(t, ok)
		rootLayer, err := dupA.GetObject("rootLayer")
		require.NoError(t, err)
		assert.Same(t, rootLayer, dupB)

		layer, err := dupOther.GetObject("layer")
		require.NoError(t, err)
		assert.Same(t, dupB, layer, "reference resolved even though its target was copied later")
		assert.Empty(t, cc.Diagnostics())
	})
}

func TestCopyContainers(t *testing.T) {
	ctx := newDocument(t)
	layer := mustObject(t, ctx, "model.Layer", "layer")
	figures := ctx.NewList(SimpleTypeSpec{Type: ObjectType, Class: "model.Figure"})
	require.NoError(t, ctx.Untracked(func() error {
		for _, name := range []string{"f1", "f2", "f3"} {
			fig := mustObject(t, ctx, "model.Figure", name)
			if err := fig.Set("layer", layer); err != nil {
				return err
			}
			if err := figures.Append(fig); err != nil {
				return err
			}
		}
		return nil
	}))

	v, err := Copy(ctx, figures)
	require.NoError(t, err)
	dup := v.(*List)
	require.Equal(t, 3, dup.Count())
	assert.NotSame(t, figures, dup)
	for i := 0; i < 3; i++ {
		orig := mustItem(t, figures, i)
		copied := mustItem(t, dup, i)
		assert.NotEqual(t, orig.ID(), copied.ID(), "each child gets a fresh identity")
		assert.Equal(t, mustGet(t, orig, "name"), mustGet(t, copied, "name"))
	}

	t.Run("weak lists share their objects", func(t *testing.T) {
		refs := ctx.NewRefList("model.Figure")
		require.NoError(t, ctx.Untracked(func() error { return refs.Append(mustItem(t, figures, 0)) }))
		v, err := Copy(ctx, refs)
		require.NoError(t, err)
		assert.Same(t, mustItem(t, figures, 0), mustItem(t, v.(*List), 0))
	})

	t.Run("dict", func(t *testing.T) {
		d := ctx.NewDict(SimpleTypeSpec{Type: StringType})
		require.NoError(t, ctx.Untracked(func() error { return d.Set("k", String("v")) }))
		v, err := Copy(ctx, d)
		require.NoError(t, err)
		assert.NotSame(t, d, v)
		assert.True(t, DeepEqual(d, v))
	})

	t.Run("scalars copy by value", func(t *testing.T) {
		v, err := Copy(ctx, Int(3))
		require.NoError(t, err)
		assert.Equal(t, Int(3), v)
	})
}

func TestCopyErrors(t *testing.T) {
	ctx := newDocument(t)

	_, err := Copy(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidSource)

	var obj *Object
	_, err = NewCopyContext(ctx).Copy(obj)
	assert.ErrorIs(t, err, ErrInvalidSource)

	other := NewContext(ctx.Registry())
	foreign, err := other.NewObject("db.Table")
	require.NoError(t, err)
	_, err = Copy(ctx, foreign)
	assert.ErrorIs(t, err, ErrForeignValue)

	t.Run("unregistered class", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Register("A", "", nil)
		require.NoError(t, err)
		doc := NewContext(r)
		a, err := doc.NewObject("A")
		require.NoError(t, err)

		doc.registry = NewRegistry()
		before := doc.ObjectCount()
		_, err = Copy(doc, a)
		assert.ErrorIs(t, err, ErrUnknownClass)
		assert.Equal(t, before, doc.ObjectCount())
	})
}

func TestCopyOptions(t *testing.T) {
	ctx := newDocument(t)
	table := newTable(t, ctx, "t", 2)

	t.Run("skip members", func(t *testing.T) {
		dup, err := NewCopyContext(ctx).Copy(table, "columns", "name")
		require.NoError(t, err)
		assert.Equal(t, 0, mustList(t, dup, "columns").Count())
		assert.Equal(t, String(""), mustGet(t, dup, "name"))
		assert.Equal(t, 1, mustList(t, dup, "indices").Count())
	})

	t.Run("shallow copy", func(t *testing.T) {
		dup, err := NewCopyContext(ctx).ShallowCopy(table)
		require.NoError(t, err)
		assert.NotEqual(t, table.ID(), dup.ID())
		assert.Equal(t, mustGet(t, table, "name"), mustGet(t, dup, "name"))
		assert.Equal(t, 0, mustList(t, dup, "columns").Count(), "owned objects stay with the original")
		assert.Same(t, table, mustItem(t, mustList(t, table, "columns"), 0).Owner())

		pk, err := table.GetObject("primaryKey")
		require.NoError(t, err)
		dupPK, err := dup.GetObject("primaryKey")
		require.NoError(t, err)
		assert.Same(t, pk, dupPK, "weak references are shared")
	})

	t.Run("same object twice", func(t *testing.T) {
		cc := NewCopyContext(ctx)
		first, err := cc.Copy(table)
		require.NoError(t, err)
		second, err := cc.Copy(table)
		require.NoError(t, err)
		assert.NotSame(t, first, second)

		got, ok := cc.CopyFor(table)
		require.True(t, ok)
		assert.Same(t, first, got, "first copy wins")
		require.NotEmpty(t, cc.Diagnostics())
		assert.Equal(t, table.ID(), cc.Diagnostics()[0].ObjectID)
	})
}
