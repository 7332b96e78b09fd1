package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/grt/internal/grt"
)

func newRegistry(t *testing.T) *grt.Registry {
	t.Helper()
	r := grt.NewRegistry()
	_, err := r.Register("db.Column", "", []grt.Member{
		{Name: "name", Type: grt.Simple(grt.StringType)},
	})
	require.NoError(t, err)
	_, err = r.Register("db.Table", "", []grt.Member{
		{Name: "name", Type: grt.Simple(grt.StringType)},
		{Name: "columns", Type: grt.ListOf(grt.SimpleTypeSpec{Type: grt.ObjectType, Class: "db.Column"}), Owned: true},
	})
	require.NoError(t, err)
	return r
}

func newTable(t *testing.T, ctx *grt.Context, name string, columns ...string) *grt.Object {
	t.Helper()
	var table *grt.Object
	require.NoError(t, ctx.Untracked(func() error {
		var err error
		if table, err = ctx.NewObject("db.Table"); err != nil {
			return err
		}
		if err := table.Set("name", grt.String(name)); err != nil {
			return err
		}
		list, err := table.GetList("columns")
		if err != nil {
			return err
		}
		for _, c := range columns {
			col, err := ctx.NewObject("db.Column")
			if err != nil {
				return err
			}
			if err := col.Set("name", grt.String(c)); err != nil {
				return err
			}
			if err := list.Append(col); err != nil {
				return err
			}
		}
		return nil
	}))
	return table
}

func openSQLite(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: "sqlite3", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Initialize(ctx))
	return s
}

func TestStoreSQLite(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	assert.Equal(t, "sqlite3", s.Driver())
	require.NoError(t, s.Initialize(ctx), "initialize is idempotent")

	registry := newRegistry(t)
	src := grt.NewContext(registry)
	table := newTable(t, src, "customer", "id", "email")

	require.NoError(t, s.Save(ctx, "customer", table))

	t.Run("load", func(t *testing.T) {
		dst := grt.NewContext(registry)
		v, err := s.Load(ctx, dst, "customer")
		require.NoError(t, err)
		loaded := v.(*grt.Object)
		assert.Equal(t, table.ID(), loaded.ID())
		assert.True(t, grt.DeepEqual(table, loaded))
		assert.Equal(t, 0, dst.UndoManager().UndoStackSize())
	})

	t.Run("save replaces", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "customer", newTable(t, src, "customer", "id")))
		docs, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "customer", docs[0].Name)
		assert.Equal(t, 2, docs[0].Objects)
		assert.Greater(t, docs[0].Size, 0)
		assert.WithinDuration(t, time.Now(), docs[0].UpdatedAt, time.Minute)
	})

	t.Run("create refuses taken names", func(t *testing.T) {
		err := s.Create(ctx, "customer", table)
		assert.ErrorIs(t, err, ErrExists)
		assert.True(t, IsExists(err))

		require.NoError(t, s.Create(ctx, "orders", newTable(t, src, "orders")))
		docs, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, []string{"customer", "orders"}, []string{docs[0].Name, docs[1].Name})
	})

	t.Run("import and export", func(t *testing.T) {
		data, err := s.Data(ctx, "orders")
		require.NoError(t, err)
		require.NoError(t, s.Import(ctx, "orders_copy", data, 1))

		again, err := s.Data(ctx, "orders_copy")
		require.NoError(t, err)
		assert.Equal(t, data, again)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "orders"))
		err := s.Delete(ctx, "orders")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.Load(ctx, grt.NewContext(registry), "orders")
		assert.True(t, IsNotFound(err))
	})

	t.Run("names are validated", func(t *testing.T) {
		assert.Error(t, s.Save(ctx, " ", table))
		assert.Error(t, s.Import(ctx, "", []byte("{}"), 0))
		assert.ErrorIs(t, s.Save(ctx, "nothing", nil), grt.ErrInvalidSource)
	})
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	_, err = New(db, "postgres", WithTable("docs; DROP TABLE x"))
	assert.Error(t, err)
}

func TestStorePostgresDialect(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := New(db, "pgx", WithTable("documents"))
	require.NoError(t, err)
	fixed := time.Unix(1700000000, 0)
	s.now = func() time.Time { return fixed }

	table := newTable(t, grt.NewContext(newRegistry(t)), "customer", "id")
	data, err := grt.Marshal(table)
	require.NoError(t, err)

	t.Run("save uses numbered placeholders", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents (name, data, objects, updated_at)\nVALUES ($1, $2, $3, $4)\nON CONFLICT (name)")).
			WithArgs("customer", string(data), 2, fixed.Unix()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, s.Save(ctx, "customer", table))
	})

	t.Run("unique violation from pgx", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
			WillReturnError(&pgconn.PgError{Code: "23505", Detail: "Key (name)=(customer) already exists."})
		err := s.Create(ctx, "customer", table)
		assert.ErrorIs(t, err, ErrExists)
	})

	t.Run("unique violation from lib/pq", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
			WillReturnError(&pq.Error{Code: "23505", Detail: "duplicate"})
		err := s.Import(ctx, "customer", data, 2)
		assert.ErrorIs(t, err, ErrExists)
	})

	t.Run("missing document", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM documents WHERE name = $1")).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)
		_, err := s.Data(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT name, LENGTH(data), objects, updated_at FROM documents ORDER BY name ASC")).
			WillReturnRows(sqlmock.NewRows([]string{"name", "length", "objects", "updated_at"}).
				AddRow("a", 10, 1, fixed.Unix()).
				AddRow("b", 20, 3, fixed.Unix()))
		docs, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, Document{Name: "b", Size: 20, Objects: 3, UpdatedAt: fixed.UTC()}, docs[1])
	})

	t.Run("delete", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE name = $1")).
			WithArgs("a").
			WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, s.Delete(ctx, "a"), ErrNotFound)
	})

	t.Run("initialize failure", func(t *testing.T) {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").
			WillReturnError(errors.New("permission denied"))
		assert.Error(t, s.Initialize(ctx))
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
