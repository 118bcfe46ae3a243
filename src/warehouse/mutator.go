package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/pipeline"
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgconn"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

// ErrBadRowData marca fallas al construir la sentencia a partir de la fila
// (datos malformados). Es permanente: la fila no va a mejorar reintentando.
var ErrBadRowData = errors.New("row data cannot be translated to a statement")

// Execer es lo que el mutator necesita del pool; pgxpool.Pool lo satisface.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Mutator aplica mutaciones idempotentes sobre la tabla destino.
type Mutator interface {
	Upsert(ctx context.Context, key pipeline.PrimaryKey, row map[string]interface{}) error
	Delete(ctx context.Context, key pipeline.PrimaryKey) error
}

// PgMutator construye las sentencias con goqu en modo preparado: los valores
// de la fila siempre viajan como argumentos, nunca interpolados en el SQL.
type PgMutator struct {
	execer  Execer
	table   exp.IdentifierExpression
	dialect goqu.DialectWrapper
}

// NewPgMutator recibe el nombre calificado de la tabla destino
// (p. ej. "warehouse.customers").
func NewPgMutator(execer Execer, table string) (*PgMutator, error) {
	if execer == nil {
		return nil, fmt.Errorf("execer is required")
	}

	ident, err := parseTableName(table)
	if err != nil {
		return nil, err
	}

	return &PgMutator{
		execer:  execer,
		table:   ident,
		dialect: goqu.Dialect("postgres"),
	}, nil
}

func parseTableName(table string) (exp.IdentifierExpression, error) {
	parts := strings.Split(strings.TrimSpace(table), ".")

	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return nil, fmt.Errorf("table name is required")
		}
		return goqu.T(parts[0]), nil
	case 2:
		return goqu.S(parts[0]).Table(parts[1]), nil
	default:
		return nil, fmt.Errorf("invalid table name %q", table)
	}
}

// Upsert inserta la fila o sobreescribe sus columnas si la clave ya existe.
// Aplicarlo dos veces deja la misma fila final.
func (m *PgMutator) Upsert(ctx context.Context, key pipeline.PrimaryKey, row map[string]interface{}) error {

	sql, args, err := m.buildUpsert(key, row)
	if err != nil {
		return err
	}

	if _, err := m.execer.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", key.LaneID(), err)
	}

	return nil
}

// Delete elimina la fila identificada por la clave. Si la fila ya no existe
// no es un error: soporta reentregas at-least-once.
func (m *PgMutator) Delete(ctx context.Context, key pipeline.PrimaryKey) error {

	sql, args, err := m.buildDelete(key)
	if err != nil {
		return err
	}

	if _, err := m.execer.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete %s: %w", key.LaneID(), err)
	}

	return nil
}

func (m *PgMutator) buildUpsert(key pipeline.PrimaryKey, row map[string]interface{}) (string, []interface{}, error) {
	if len(row) == 0 {
		return "", nil, fmt.Errorf("%w: fila vacía", ErrBadRowData)
	}

	keyCols := make(map[string]struct{}, len(key.Columns))
	for _, col := range key.Columns {
		keyCols[col] = struct{}{}
	}

	// DO UPDATE SET col = excluded.col para cada columna que no es clave.
	updates := goqu.Record{}
	for col := range row {
		if _, isKey := keyCols[col]; !isKey {
			updates[col] = goqu.I("excluded." + col)
		}
	}

	conflictTarget := strings.Join(key.Columns, ",")

	var conflict exp.ConflictExpression
	if len(updates) == 0 {
		// La fila entera es la clave: no hay nada que actualizar.
		conflict = goqu.DoNothing()
	} else {
		conflict = goqu.DoUpdate(conflictTarget, updates)
	}

	ds := m.dialect.Insert(m.table).
		Prepared(true).
		Rows(goqu.Record(row)).
		OnConflict(conflict)

	sql, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadRowData, err)
	}

	return sql, args, nil
}

func (m *PgMutator) buildDelete(key pipeline.PrimaryKey) (string, []interface{}, error) {
	ds := m.dialect.Delete(m.table).
		Prepared(true).
		Where(goqu.Ex(key.Ex()))

	sql, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadRowData, err)
	}

	return sql, args, nil
}
