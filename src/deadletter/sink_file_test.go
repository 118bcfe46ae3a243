package deadletter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/observability"
	"github.com/stretchr/testify/require"
)

func TestFileSink_PersistAppendsJSONLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	sink, err := NewFileSink(dir, observability.NewNopLogger())
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()

	first := &Record{
		OriginalMessage: json.RawMessage(`{"message":{"data":"xxx"}}`),
		Reason:          "payload sin clave op",
		Timestamp:       time.Now().UTC(),
		MessageID:       "m-1",
		Stage:           "schema",
	}
	second := &Record{
		OriginalMessage: json.RawMessage(`{"message":{"data":"yyy"}}`),
		Reason:          "base64 inválido",
		Timestamp:       time.Now().UTC(),
		MessageID:       "m-2",
		Stage:           "decode",
	}

	require.NoError(t, sink.Persist(ctx, first))
	require.NoError(t, sink.Persist(ctx, second))

	file, err := os.Open(filepath.Join(dir, "deadletter.jsonl"))
	require.NoError(t, err)
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, records, 2)
	require.Equal(t, "m-1", records[0].MessageID)
	require.Equal(t, "schema", records[0].Stage)
	require.JSONEq(t, `{"message":{"data":"xxx"}}`, string(records[0].OriginalMessage))
	require.Equal(t, "m-2", records[1].MessageID)
	require.Equal(t, "decode", records[1].Stage)
}

func TestFileSink_PersistNilRecordIsNoop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	sink, err := NewFileSink(dir, observability.NewNopLogger())
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Persist(context.Background(), nil))

	info, err := os.Stat(filepath.Join(dir, "deadletter.jsonl"))
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

// failingSink simula un dead letter caído.
type failingSink struct {
	calls int
}

func (s *failingSink) Persist(ctx context.Context, record *Record) error {
	s.calls++
	return fmt.Errorf("sink caído")
}

func (s *failingSink) Close() error {
	return nil
}

func TestRouter_RoutePersistsRecord(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	sink, err := NewFileSink(dir, observability.NewNopLogger())
	require.NoError(t, err)

	router := NewRouter(sink, observability.NewNopLogger())
	defer router.Close()

	router.Route(context.Background(), []byte(`{"raw":true}`), "m-3", "apply", "reintentos agotados")

	data, err := os.ReadFile(filepath.Join(dir, "deadletter.jsonl"))
	require.NoError(t, err)

	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Equal(t, "m-3", rec.MessageID)
	require.Equal(t, "apply", rec.Stage)
	require.Equal(t, "reintentos agotados", rec.Reason)
	require.JSONEq(t, `{"raw":true}`, string(rec.OriginalMessage))
	require.False(t, rec.Timestamp.IsZero())
}

func TestRouter_SinkFailureDoesNotPanic(t *testing.T) {
	t.Parallel()

	sink := &failingSink{}
	router := NewRouter(sink, observability.NewNopLogger())

	// La falla del sink se registra y se sigue; el pipeline no se entera.
	router.Route(context.Background(), []byte(`{}`), "m-4", "decode", "x")

	require.Equal(t, 1, sink.calls)
	require.NoError(t, router.Close())
}
