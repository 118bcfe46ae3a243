package warehouse

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// Clases SQLSTATE que se consideran transitorias: problemas de conexión,
// rollbacks por serialización/deadlock, recursos insuficientes e
// intervención del operador. Todo lo demás que reporte el servidor como
// clase de datos, integridad o sintaxis es permanente.
var transientSQLStateClasses = map[string]struct{}{
	"08": {}, // connection exception
	"40": {}, // transaction rollback (serialization, deadlock)
	"53": {}, // insufficient resources
	"57": {}, // operator intervention (cancel, shutdown)
}

var permanentSQLStateClasses = map[string]struct{}{
	"0A": {}, // feature not supported
	"22": {}, // data exception
	"23": {}, // integrity constraint violation
	"42": {}, // syntax error / undefined column
	"54": {}, // program limit exceeded
}

// IsTransient clasifica un error del warehouse. Los errores de red y de
// contexto se reintentan; los SQLSTATE de datos/esquema no. Un SQLSTATE
// desconocido se trata como transitorio: el tope de reintentos acota el
// costo y la reclasificación a permanente llega sola al agotarse.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrBadRowData) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) < 2 {
			return true
		}
		class := pgErr.Code[:2]

		if _, ok := permanentSQLStateClasses[class]; ok {
			return false
		}
		if _, ok := transientSQLStateClasses[class]; ok {
			return true
		}
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	// pgconn reporta conexiones cerradas/perdidas como errores propios
	// que no son PgError; ante la duda, transitorio y acotado.
	return true
}

// IsPermanent es la negación de IsTransient, para legibilidad en el engine.
func IsPermanent(err error) bool {
	return err != nil && !IsTransient(err)
}
