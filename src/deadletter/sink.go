package deadletter

import (
	"context"
	"encoding/json"
	"time"
)

// Record es lo que se preserva de un mensaje que no se pudo procesar:
// el mensaje original completo, la razón y el momento de la falla.
type Record struct {
	OriginalMessage json.RawMessage `json:"original_message"`
	Reason          string          `json:"reason"`
	Timestamp       time.Time       `json:"timestamp"`
	MessageID       string          `json:"message_id,omitempty"`
	Stage           string          `json:"stage,omitempty"` // decode | schema | apply
}

// Sink es el destino durable de los records de dead letter.
type Sink interface {
	Persist(ctx context.Context, record *Record) error

	Close() error
}
