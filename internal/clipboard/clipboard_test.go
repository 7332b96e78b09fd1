package clipboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/grt/internal/grt"
)

type document struct {
	ctx      *grt.Context
	table    *grt.Object
	external *grt.Object
}

// newDocument builds a table with two columns whose second column references
// the first, plus a column of another table referenced from the first.
func newDocument(t *testing.T) *document {
	t.Helper()
	r := grt.NewRegistry()
	_, err := r.Register("db.Column", "", []grt.Member{
		{Name: "name", Type: grt.Simple(grt.StringType)},
		{Name: "referencedColumn", Type: grt.ObjectOf("db.Column")},
	})
	require.NoError(t, err)
	_, err = r.Register("db.Table", "", []grt.Member{
		{Name: "name", Type: grt.Simple(grt.StringType)},
		{Name: "columns", Type: grt.ListOf(grt.SimpleTypeSpec{Type: grt.ObjectType, Class: "db.Column"}), Owned: true},
	})
	require.NoError(t, err)

	d := &document{ctx: grt.NewContext(r)}
	require.NoError(t, d.ctx.Untracked(func() error {
		var err error
		if d.external, err = d.ctx.NewObject("db.Column"); err != nil {
			return err
		}
		if d.table, err = d.ctx.NewObject("db.Table"); err != nil {
			return err
		}
		if err := d.table.Set("name", grt.String("orders")); err != nil {
			return err
		}
		columns, err := d.table.GetList("columns")
		if err != nil {
			return err
		}
		id, err := d.ctx.NewObject("db.Column")
		if err != nil {
			return err
		}
		ref, err := d.ctx.NewObject("db.Column")
		if err != nil {
			return err
		}
		if err := id.Set("referencedColumn", d.external); err != nil {
			return err
		}
		if err := ref.Set("referencedColumn", id); err != nil {
			return err
		}
		if err := columns.Append(id); err != nil {
			return err
		}
		return columns.Append(ref)
	}))
	return d
}

func column(t *testing.T, table *grt.Object, i int) *grt.Object {
	t.Helper()
	columns, err := table.GetList("columns")
	require.NoError(t, err)
	v, err := columns.Get(i)
	require.NoError(t, err)
	return v.(*grt.Object)
}

func setupTestRedis(t *testing.T) (*RedisClipboard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cb := NewRedisClipboardWithClient(client, DefaultConfig())
	t.Cleanup(func() { cb.Close() })
	return cb, mr
}

func testPaste(t *testing.T, cb Clipboard) {
	ctx := context.Background()
	d := newDocument(t)
	before := d.ctx.ObjectCount()

	_, err := Paste(ctx, cb, d.ctx)
	assert.ErrorIs(t, err, ErrEmpty)

	require.NoError(t, Copy(ctx, cb, d.table))

	for i := 0; i < 2; i++ {
		v, err := Paste(ctx, cb, d.ctx)
		require.NoError(t, err)
		pasted := v.(*grt.Object)

		assert.NotEqual(t, d.table.ID(), pasted.ID())
		assert.Nil(t, pasted.Owner())
		name, err := pasted.GetString("name")
		require.NoError(t, err)
		assert.Equal(t, "orders", name)

		first, second := column(t, pasted, 0), column(t, pasted, 1)
		assert.NotEqual(t, column(t, d.table, 0).ID(), first.ID())

		// references inside the pasted graph follow the copies
		target, err := second.GetObject("referencedColumn")
		require.NoError(t, err)
		assert.Same(t, first, target)

		// references leaving the graph keep their target
		target, err = first.GetObject("referencedColumn")
		require.NoError(t, err)
		assert.Same(t, d.external, target)
	}
	assert.Equal(t, before+6, d.ctx.ObjectCount())
	assert.Equal(t, 0, d.ctx.UndoManager().UndoStackSize())

	require.NoError(t, cb.Clear(ctx))
	_, err = Paste(ctx, cb, d.ctx)
	assert.True(t, IsEmpty(err))
}

func TestMemoryClipboard_Paste(t *testing.T) {
	testPaste(t, NewMemoryClipboard(DefaultConfig()))
}

func TestRedisClipboard_Paste(t *testing.T) {
	cb, _ := setupTestRedis(t)
	testPaste(t, cb)
}

func TestMemoryClipboard_Expiration(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	cb := NewMemoryClipboard(Config{TTL: time.Minute})
	cb.now = func() time.Time { return now }

	require.NoError(t, cb.Put(ctx, []byte("data")))
	data, err := cb.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)

	now = now.Add(2 * time.Minute)
	_, err = cb.Get(ctx)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMemoryClipboard_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cb := NewMemoryClipboard(DefaultConfig())
	assert.ErrorIs(t, cb.Put(ctx, []byte("x")), context.Canceled)
	_, err := cb.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisClipboard_KeyAndTTL(t *testing.T) {
	cb, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cb.Put(ctx, []byte("payload")))
	assert.True(t, mr.Exists("grt:clipboard:default"))
	assert.Equal(t, time.Hour, mr.TTL("grt:clipboard:default"))

	mr.FastForward(2 * time.Hour)
	_, err := cb.Get(ctx)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestRedisClipboard_NamedClipboardsAreSeparate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	a := NewRedisClipboardWithClient(client, Config{Prefix: "p:", Name: "a"})
	b := NewRedisClipboardWithClient(client, Config{Prefix: "p:", Name: "b"})
	ctx := context.Background()

	require.NoError(t, a.Put(ctx, []byte("one")))
	_, err := b.Get(ctx)
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Equal(t, time.Duration(0), mr.TTL("p:a"))
}

func TestNewRedisClipboard(t *testing.T) {
	mr := miniredis.RunT(t)
	cb, err := NewRedisClipboard(context.Background(), RedisConfig{Addr: mr.Addr(), Config: DefaultConfig()})
	require.NoError(t, err)
	defer cb.Close()

	_, err = NewRedisClipboard(context.Background(), RedisConfig{Addr: "localhost:99999"})
	assert.Error(t, err)
}

func TestPasteInvalidContent(t *testing.T) {
	ctx := context.Background()
	cb := NewMemoryClipboard(DefaultConfig())
	require.NoError(t, cb.Put(ctx, []byte("not a document")))

	_, err := Paste(ctx, cb, newDocument(t).ctx)
	assert.ErrorIs(t, err, grt.ErrInvalidDocument)
}
