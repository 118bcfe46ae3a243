package warehouse

import (
	"context"
	"testing"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/pipeline"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

// fakeExecer captura el SQL y los argumentos sin tocar ninguna base.
type fakeExecer struct {
	sql  string
	args []any
	err  error
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = arguments
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func singleKey(id interface{}) pipeline.PrimaryKey {
	return pipeline.PrimaryKey{Columns: []string{"id"}, Values: []interface{}{id}}
}

func TestUpsert_ParameterizedSQL(t *testing.T) {
	t.Parallel()

	execer := &fakeExecer{}
	m, err := NewPgMutator(execer, "warehouse.customers")
	require.NoError(t, err)

	row := map[string]interface{}{
		"id":    int64(7),
		"email": "a@b.com",
	}

	require.NoError(t, m.Upsert(context.Background(), singleKey(int64(7)), row))

	require.Contains(t, execer.sql, `INSERT INTO "warehouse"."customers"`)
	require.Contains(t, execer.sql, "ON CONFLICT (id)")
	require.Contains(t, execer.sql, "DO UPDATE SET")
	require.Contains(t, execer.sql, "excluded")
	require.Contains(t, execer.sql, "$1")

	// Los valores viajan como argumentos, nunca dentro del SQL.
	require.NotContains(t, execer.sql, "a@b.com")
	require.ElementsMatch(t, []any{int64(7), "a@b.com"}, execer.args)
}

func TestUpsert_KeyColumnsNotUpdated(t *testing.T) {
	t.Parallel()

	execer := &fakeExecer{}
	m, err := NewPgMutator(execer, "customers")
	require.NoError(t, err)

	row := map[string]interface{}{
		"id":    int64(1),
		"email": "a@b.com",
	}

	require.NoError(t, m.Upsert(context.Background(), singleKey(int64(1)), row))

	// La cláusula de update toca email pero no la clave.
	require.Contains(t, execer.sql, `"email"`)
	require.NotContains(t, execer.sql, `SET "id"`)
}

func TestUpsert_AllColumnsAreKey_DoNothing(t *testing.T) {
	t.Parallel()

	execer := &fakeExecer{}
	m, err := NewPgMutator(execer, "customers")
	require.NoError(t, err)

	row := map[string]interface{}{"id": int64(1)}

	require.NoError(t, m.Upsert(context.Background(), singleKey(int64(1)), row))

	require.Contains(t, execer.sql, "ON CONFLICT")
	require.Contains(t, execer.sql, "DO NOTHING")
	require.NotContains(t, execer.sql, "DO UPDATE")
}

func TestUpsert_EmptyRowIsBadRowData(t *testing.T) {
	t.Parallel()

	m, err := NewPgMutator(&fakeExecer{}, "customers")
	require.NoError(t, err)

	err = m.Upsert(context.Background(), singleKey(int64(1)), nil)
	require.ErrorIs(t, err, ErrBadRowData)
}

func TestDelete_ParameterizedSQL(t *testing.T) {
	t.Parallel()

	execer := &fakeExecer{}
	m, err := NewPgMutator(execer, "warehouse.customers")
	require.NoError(t, err)

	require.NoError(t, m.Delete(context.Background(), singleKey(int64(7))))

	require.Contains(t, execer.sql, `DELETE FROM "warehouse"."customers"`)
	require.Contains(t, execer.sql, `"id"`)
	require.Contains(t, execer.sql, "$1")
	require.NotContains(t, execer.sql, "7")
	require.Equal(t, []any{int64(7)}, execer.args)
}

func TestDelete_CompositeKey(t *testing.T) {
	t.Parallel()

	execer := &fakeExecer{}
	m, err := NewPgMutator(execer, "customers")
	require.NoError(t, err)

	key := pipeline.PrimaryKey{
		Columns: []string{"tenant", "id"},
		Values:  []interface{}{"t1", int64(5)},
	}

	require.NoError(t, m.Delete(context.Background(), key))

	require.Contains(t, execer.sql, `"tenant"`)
	require.Contains(t, execer.sql, `"id"`)
	require.Contains(t, execer.sql, "$2")
	require.ElementsMatch(t, []any{"t1", int64(5)}, execer.args)
}

func TestNewPgMutator_TableNames(t *testing.T) {
	t.Parallel()

	_, err := NewPgMutator(&fakeExecer{}, "customers")
	require.NoError(t, err)

	_, err = NewPgMutator(&fakeExecer{}, "warehouse.customers")
	require.NoError(t, err)

	_, err = NewPgMutator(&fakeExecer{}, "")
	require.Error(t, err)

	_, err = NewPgMutator(&fakeExecer{}, "a.b.c")
	require.Error(t, err)

	_, err = NewPgMutator(nil, "customers")
	require.Error(t, err)
}
