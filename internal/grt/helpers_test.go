package grt

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func loadRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	_, err := r.LoadStructsFile("testdata/workbench.yml")
	require.NoError(t, err)
	require.NoError(t, r.Validate())
	return r
}

func newDocument(t *testing.T) *Context {
	t.Helper()
	return NewContext(loadRegistry(t))
}

func mustObject(t *testing.T, ctx *Context, class, name string) *Object {
	t.Helper()
	obj, err := ctx.NewObject(class)
	require.NoError(t, err)
	require.NoError(t, ctx.Untracked(func() error {
		return obj.Set("name", String(name))
	}))
	return obj
}

func mustList(t *testing.T, obj *Object, member string) *List {
	t.Helper()
	l, err := obj.GetList(member)
	require.NoError(t, err)
	return l
}

func mustGet(t *testing.T, obj *Object, member string) Value {
	t.Helper()
	v, err := obj.Get(member)
	require.NoError(t, err)
	return v
}

func mustItem(t *testing.T, l *List, index int) *Object {
	t.Helper()
	v, err := l.Get(index)
	require.NoError(t, err)
	obj, ok := v.(*Object)
	require.True(t, ok, "item %d is %T", index, v)
	return obj
}

// tracked runs fn inside an undo transaction
func tracked(t *testing.T, ctx *Context, description string, fn func() error) {
	t.Helper()
	require.NoError(t, ctx.UndoManager().WithTransaction(description, fn))
}

// newTable builds a table with columns col0..colN-1 and a primary key over
// all of them. Index columns and the primary key are weak references.
// Building the detached table records nothing.
func newTable(t *testing.T, ctx *Context, name string, columns int) *Object {
	t.Helper()
	ctx.UndoManager().Disable()
	defer ctx.UndoManager().Enable()

	table := mustObject(t, ctx, "db.Table", name)
	pk := mustObject(t, ctx, "db.Index", "PRIMARY")
	require.NoError(t, pk.Set("isPrimary", Int(1)))

	for i := 0; i < columns; i++ {
		col := mustObject(t, ctx, "db.Column", fmt.Sprintf("col%d", i))
		require.NoError(t, mustList(t, table, "columns").Append(col))

		ic := mustObject(t, ctx, "db.IndexColumn", fmt.Sprintf("col%d", i))
		require.NoError(t, ic.Set("referencedColumn", col))
		require.NoError(t, mustList(t, pk, "columns").Append(ic))
	}
	require.NoError(t, mustList(t, table, "indices").Append(pk))
	require.NoError(t, table.Set("primaryKey", pk))
	return table
}

type workbench struct {
	doc     *Object
	schema  *Object
	diagram *Object
	layer   *Object
}

// newWorkbench builds a document with 4 tables, 1 view and 1 routine group,
// and a diagram with 5 figures that all sit on the root layer. The history
// is empty afterwards.
func newWorkbench(t *testing.T, ctx *Context) *workbench {
	t.Helper()
	wb := &workbench{}
	err := ctx.Untracked(func() error {
		wb.doc = mustObject(t, ctx, "workbench.Document", "doc")
		wb.schema = mustObject(t, ctx, "db.Schema", "sakila")
		require.NoError(t, mustList(t, wb.doc, "schemata").Append(wb.schema))

		tables := mustList(t, wb.schema, "tables")
		for i := 0; i < 4; i++ {
			require.NoError(t, tables.Append(newTable(t, ctx, fmt.Sprintf("table%d", i), 2)))
		}
		require.NoError(t, mustList(t, wb.schema, "views").Append(mustObject(t, ctx, "db.View", "view1")))
		require.NoError(t, mustList(t, wb.schema, "routineGroups").Append(mustObject(t, ctx, "db.RoutineGroup", "routines")))

		wb.diagram = mustObject(t, ctx, "model.Diagram", "main")
		require.NoError(t, mustList(t, wb.doc, "diagrams").Append(wb.diagram))
		wb.layer = mustObject(t, ctx, "model.Layer", "root")
		require.NoError(t, wb.diagram.Set("rootLayer", wb.layer))

		for i := 0; i < 4; i++ {
			fig := mustObject(t, ctx, "model.TableFigure", fmt.Sprintf("fig%d", i))
			require.NoError(t, fig.Set("table", mustItem(t, tables, i)))
			wb.addFigure(t, fig)
		}
		wb.addFigure(t, mustObject(t, ctx, "model.Figure", "note"))
		return nil
	})
	require.NoError(t, err)
	return wb
}

func (wb *workbench) addFigure(t *testing.T, fig *Object) {
	t.Helper()
	require.NoError(t, fig.Set("layer", wb.layer))
	require.NoError(t, mustList(t, wb.diagram, "figures").Append(fig))
	require.NoError(t, mustList(t, wb.layer, "figures").Append(fig))
}

func (wb *workbench) counts(t *testing.T) (figures, tables, layerFigures int) {
	t.Helper()
	return mustList(t, wb.diagram, "figures").Count(),
		mustList(t, wb.schema, "tables").Count(),
		mustList(t, wb.layer, "figures").Count()
}
