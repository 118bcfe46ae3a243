package warehouse

import (
	"context"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func pgErr(code string) error {
	return &pgconn.PgError{Code: code, Message: "test"}
}

func TestIsTransient_SQLStateClasses(t *testing.T) {
	t.Parallel()

	// Transitorias: conexión, rollback, recursos, intervención del operador.
	require.True(t, IsTransient(pgErr("08006"))) // connection failure
	require.True(t, IsTransient(pgErr("40001"))) // serialization failure
	require.True(t, IsTransient(pgErr("40P01"))) // deadlock detected
	require.True(t, IsTransient(pgErr("53300"))) // too many connections
	require.True(t, IsTransient(pgErr("57014"))) // query canceled

	// Permanentes: datos, integridad, sintaxis.
	require.False(t, IsTransient(pgErr("22001"))) // string data too long
	require.False(t, IsTransient(pgErr("22P02"))) // invalid text representation
	require.False(t, IsTransient(pgErr("23505"))) // unique violation
	require.False(t, IsTransient(pgErr("23503"))) // foreign key violation
	require.False(t, IsTransient(pgErr("42703"))) // undefined column
	require.False(t, IsTransient(pgErr("42P01"))) // undefined table
	require.False(t, IsTransient(pgErr("0A000"))) // feature not supported
	require.False(t, IsTransient(pgErr("54000"))) // program limit exceeded
}

func TestIsTransient_UnknownSQLStateDefaultsToTransient(t *testing.T) {
	t.Parallel()

	require.True(t, IsTransient(pgErr("XX000"))) // internal error
	require.True(t, IsTransient(pgErr("P0001"))) // raise_exception
}

func TestIsTransient_WrappedPgError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("upsert 7: %w", pgErr("23505"))
	require.False(t, IsTransient(err))
	require.True(t, IsPermanent(err))
}

func TestIsTransient_ContextAndNetworkErrors(t *testing.T) {
	t.Parallel()

	require.True(t, IsTransient(context.DeadlineExceeded))
	require.True(t, IsTransient(context.Canceled))
	require.True(t, IsTransient(io.EOF))
	require.True(t, IsTransient(io.ErrUnexpectedEOF))
	require.True(t, IsTransient(&net.OpError{Op: "dial", Err: fmt.Errorf("refused")}))
}

func TestIsTransient_BadRowDataIsPermanent(t *testing.T) {
	t.Parallel()

	require.False(t, IsTransient(ErrBadRowData))
	require.False(t, IsTransient(fmt.Errorf("%w: fila vacía", ErrBadRowData)))
	require.True(t, IsPermanent(ErrBadRowData))
}

func TestIsTransient_UnknownErrorDefaultsToTransient(t *testing.T) {
	t.Parallel()

	require.True(t, IsTransient(fmt.Errorf("conn closed")))
}

func TestIsPermanent_NilIsNeither(t *testing.T) {
	t.Parallel()

	require.False(t, IsTransient(nil))
	require.False(t, IsPermanent(nil))
}
