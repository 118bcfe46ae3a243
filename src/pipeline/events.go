package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// SchemaError indica que el documento no se pudo normalizar a un ChangeEvent:
// op faltante o desconocido, o datos de fila ausentes para la operación.
// Igual que los errores de decodificación, reentregar no ayuda.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s", e.Reason)
}

// ErrShuttingDown se retorna cuando el secuenciador ya no admite eventos.
// El mensaje queda sin confirmar para que el transporte lo reentregue.
var ErrShuttingDown = errors.New("sink is shutting down, admission closed")

// PrimaryKey identifica la fila destino. Columns y Values van en paralelo;
// el orden es el configurado en KeyColumns.
type PrimaryKey struct {
	Columns []string
	Values  []interface{}
}

// LaneID retorna la forma canónica de la clave, usada para seleccionar el
// lane de secuenciación. Dos claves iguales siempre producen el mismo LaneID.
func (k PrimaryKey) LaneID() string {
	parts := make([]string, 0, len(k.Values))
	for _, v := range k.Values {
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	return strings.Join(parts, "\x1f")
}

// Ex retorna la clave como mapa columna→valor, para construir predicados SQL.
func (k PrimaryKey) Ex() map[string]interface{} {
	ex := make(map[string]interface{}, len(k.Columns))
	for i, col := range k.Columns {
		ex[col] = k.Values[i]
	}
	return ex
}

func (k PrimaryKey) String() string {
	return k.LaneID()
}

// ChangeEvent es el modelo canónico de un cambio CDC ya normalizado.
// Inmutable una vez construido por el Normalizer.
type ChangeEvent struct {
	Operation    Operation              `json:"operation"`
	Key          PrimaryKey             `json:"-"`
	Row          map[string]interface{} `json:"row,omitempty"` // nil para delete
	SourceOffset string                 `json:"source_offset,omitempty"`
	ConsumeTime  time.Time              `json:"consume_time,omitempty"`
}

type OutcomeStatus int

const (
	OutcomeApplied OutcomeStatus = iota
	OutcomeTransientFailure
	OutcomePermanentFailure
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeApplied:
		return "applied"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomePermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// ApplyOutcome clasifica el resultado de aplicar un evento al warehouse.
// Decide la confirmación del mensaje y el enrutamiento a dead letter.
type ApplyOutcome struct {
	Status OutcomeStatus
	Reason string
	Err    error
}

func Applied() ApplyOutcome {
	return ApplyOutcome{Status: OutcomeApplied}
}

func TransientFailure(reason string, err error) ApplyOutcome {
	return ApplyOutcome{Status: OutcomeTransientFailure, Reason: reason, Err: err}
}

func PermanentFailure(reason string, err error) ApplyOutcome {
	return ApplyOutcome{Status: OutcomePermanentFailure, Reason: reason, Err: err}
}

// Applier traduce un ChangeEvent en una mutación idempotente del warehouse.
type Applier interface {
	Apply(ctx context.Context, event *ChangeEvent) ApplyOutcome
}
