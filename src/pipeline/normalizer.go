package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/envelope"
)

// DefaultOpCodes es el mapeo Debezium estándar. "r" (snapshot read) se trata
// como create: aplicar el snapshot es el mismo upsert.
var DefaultOpCodes = map[string]string{
	"c":      string(OperationCreate),
	"u":      string(OperationUpdate),
	"d":      string(OperationDelete),
	"r":      string(OperationCreate),
	"create": string(OperationCreate),
	"update": string(OperationUpdate),
	"delete": string(OperationDelete),
}

// Normalizer convierte documentos Debezium heterogéneos en ChangeEvents
// canónicos. Es una función pura: el mismo documento siempre produce el
// mismo evento o el mismo error.
type Normalizer struct {
	opCodes    map[string]Operation
	keyColumns []string
}

func NewNormalizer(opCodes map[string]string, keyColumns []string) (*Normalizer, error) {
	if len(keyColumns) == 0 {
		return nil, fmt.Errorf("key columns are required")
	}

	if len(opCodes) == 0 {
		opCodes = DefaultOpCodes
	}

	ops := make(map[string]Operation, len(opCodes))
	for code, name := range opCodes {
		switch Operation(strings.ToLower(name)) {
		case OperationCreate, OperationUpdate, OperationDelete:
			ops[code] = Operation(strings.ToLower(name))
		default:
			return nil, fmt.Errorf("invalid operation %q for op code %q", name, code)
		}
	}

	return &Normalizer{
		opCodes:    ops,
		keyColumns: keyColumns,
	}, nil
}

// Normalize extrae op y datos de fila del payload. Para create/update la fila
// viene de "after"; para delete, de "before".
func (n *Normalizer) Normalize(doc *envelope.Document) (*ChangeEvent, error) {

	if doc == nil || doc.Payload == nil {
		return nil, &SchemaError{Reason: "documento sin payload"}
	}

	opCode, ok := doc.Payload["op"].(string)
	if !ok || opCode == "" {
		return nil, &SchemaError{Reason: "payload sin clave op"}
	}

	op, ok := n.opCodes[opCode]
	if !ok {
		// "m" es un evento de mensaje de logical decoding, no un cambio de
		// fila: se confirma sin aplicar nada.
		if opCode == "m" {
			return nil, nil
		}

		return nil, &SchemaError{Reason: fmt.Sprintf("op %q no reconocida", opCode)}
	}

	rowField := "after"
	if op == OperationDelete {
		rowField = "before"
	}

	row, ok := doc.Payload[rowField].(map[string]interface{})
	if !ok || len(row) == 0 {
		return nil, &SchemaError{Reason: fmt.Sprintf("payload sin datos de fila en %q para op %q", rowField, opCode)}
	}

	key, err := n.extractKey(row)
	if err != nil {
		return nil, err
	}

	event := &ChangeEvent{
		Operation:    op,
		Key:          key,
		SourceOffset: n.sourceOffset(doc),
		ConsumeTime:  time.Now().UTC(),
	}

	// La fila solo viaja para upserts; un delete solo necesita la clave.
	if op != OperationDelete {
		event.Row = row
	}

	return event, nil
}

func (n *Normalizer) extractKey(row map[string]interface{}) (PrimaryKey, error) {
	values := make([]interface{}, 0, len(n.keyColumns))

	for _, col := range n.keyColumns {
		v, ok := row[col]
		if !ok || v == nil {
			return PrimaryKey{}, &SchemaError{Reason: fmt.Sprintf("columna de clave %q ausente en la fila", col)}
		}
		values = append(values, v)
	}

	return PrimaryKey{Columns: n.keyColumns, Values: values}, nil
}

// sourceOffset construye el token opaco de orden: el ts_ns o lsn de la fuente
// Debezium si existe, si no el messageId del transporte.
func (n *Normalizer) sourceOffset(doc *envelope.Document) string {
	if source, ok := doc.Payload["source"].(map[string]interface{}); ok {
		if tsNs, ok := source["ts_ns"]; ok {
			return fmt.Sprintf("%v", tsNs)
		}
		if lsn, ok := source["lsn"]; ok {
			return fmt.Sprintf("%v", lsn)
		}
	}
	return doc.MessageID
}
