package pipeline

import (
	"errors"
	"testing"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/envelope"
	"github.com/stretchr/testify/require"
)

func doc(payload map[string]interface{}) *envelope.Document {
	return &envelope.Document{Payload: payload, MessageID: "m-1"}
}

func TestNormalize_Create(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(nil, []string{"id"})
	require.NoError(t, err)

	event, err := n.Normalize(doc(map[string]interface{}{
		"op":    "c",
		"after": map[string]interface{}{"id": float64(7), "email": "a@b.com"},
	}))
	require.NoError(t, err)
	require.Equal(t, OperationCreate, event.Operation)
	require.Equal(t, []interface{}{float64(7)}, event.Key.Values)
	require.Equal(t, "a@b.com", event.Row["email"])
}

func TestNormalize_Delete_RowFromBefore(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(nil, []string{"id"})
	require.NoError(t, err)

	event, err := n.Normalize(doc(map[string]interface{}{
		"op":     "d",
		"before": map[string]interface{}{"id": float64(7), "email": "a@b.com"},
	}))
	require.NoError(t, err)
	require.Equal(t, OperationDelete, event.Operation)
	require.Equal(t, []interface{}{float64(7)}, event.Key.Values)
	// Un delete no transporta la fila, solo la clave.
	require.Nil(t, event.Row)
}

func TestNormalize_SnapshotReadIsCreate(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(nil, []string{"id"})
	require.NoError(t, err)

	event, err := n.Normalize(doc(map[string]interface{}{
		"op":    "r",
		"after": map[string]interface{}{"id": float64(1)},
	}))
	require.NoError(t, err)
	require.Equal(t, OperationCreate, event.Operation)
}

func TestNormalize_MessageEventIsIgnored(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(nil, []string{"id"})
	require.NoError(t, err)

	event, err := n.Normalize(doc(map[string]interface{}{
		"op":      "m",
		"message": map[string]interface{}{"prefix": "x"},
	}))
	require.NoError(t, err)
	require.Nil(t, event)
}

func TestNormalize_MissingOp(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(nil, []string{"id"})
	require.NoError(t, err)

	_, err = n.Normalize(doc(map[string]interface{}{
		"after": map[string]interface{}{"id": float64(1)},
	}))

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	require.Contains(t, schemaErr.Reason, "op")
}

func TestNormalize_UnknownOp(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(nil, []string{"id"})
	require.NoError(t, err)

	_, err = n.Normalize(doc(map[string]interface{}{
		"op":    "x",
		"after": map[string]interface{}{"id": float64(1)},
	}))

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
}

func TestNormalize_MissingRowData(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(nil, []string{"id"})
	require.NoError(t, err)

	_, err = n.Normalize(doc(map[string]interface{}{"op": "u"}))

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	require.Contains(t, schemaErr.Reason, "after")
}

func TestNormalize_MissingKeyColumn(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(nil, []string{"id"})
	require.NoError(t, err)

	_, err = n.Normalize(doc(map[string]interface{}{
		"op":    "c",
		"after": map[string]interface{}{"email": "a@b.com"},
	}))

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	require.Contains(t, schemaErr.Reason, "id")
}

func TestNormalize_CompositeKeyLaneID(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(nil, []string{"tenant", "id"})
	require.NoError(t, err)

	first, err := n.Normalize(doc(map[string]interface{}{
		"op":    "c",
		"after": map[string]interface{}{"tenant": "t1", "id": float64(5)},
	}))
	require.NoError(t, err)

	second, err := n.Normalize(doc(map[string]interface{}{
		"op":    "u",
		"after": map[string]interface{}{"tenant": "t1", "id": float64(5), "email": "x@y.z"},
	}))
	require.NoError(t, err)

	require.Equal(t, first.Key.LaneID(), second.Key.LaneID())

	other, err := n.Normalize(doc(map[string]interface{}{
		"op":    "c",
		"after": map[string]interface{}{"tenant": "t2", "id": float64(5)},
	}))
	require.NoError(t, err)
	require.NotEqual(t, first.Key.LaneID(), other.Key.LaneID())
}

func TestNormalize_CustomOpCodes(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(map[string]string{
		"INS": "create",
		"DEL": "delete",
	}, []string{"id"})
	require.NoError(t, err)

	event, err := n.Normalize(doc(map[string]interface{}{
		"op":    "INS",
		"after": map[string]interface{}{"id": float64(1)},
	}))
	require.NoError(t, err)
	require.Equal(t, OperationCreate, event.Operation)

	// El mapeo por defecto ya no aplica.
	_, err = n.Normalize(doc(map[string]interface{}{
		"op":    "c",
		"after": map[string]interface{}{"id": float64(1)},
	}))
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
}

func TestNewNormalizer_InvalidOpName(t *testing.T) {
	t.Parallel()

	_, err := NewNormalizer(map[string]string{"c": "truncate"}, []string{"id"})
	require.Error(t, err)
}

func TestNewNormalizer_NoKeyColumns(t *testing.T) {
	t.Parallel()

	_, err := NewNormalizer(nil, nil)
	require.Error(t, err)
}

func TestNormalize_SourceOffset(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(nil, []string{"id"})
	require.NoError(t, err)

	event, err := n.Normalize(doc(map[string]interface{}{
		"op":     "c",
		"after":  map[string]interface{}{"id": float64(1)},
		"source": map[string]interface{}{"ts_ns": float64(1700000000000)},
	}))
	require.NoError(t, err)
	require.Contains(t, event.SourceOffset, "1.7e+12")

	// Sin source, cae al messageId del transporte.
	event, err = n.Normalize(doc(map[string]interface{}{
		"op":    "c",
		"after": map[string]interface{}{"id": float64(1)},
	}))
	require.NoError(t, err)
	require.Equal(t, "m-1", event.SourceOffset)
}
