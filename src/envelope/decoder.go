package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrBadEnvelope indica un request estructuralmente inválido (sin mensaje push).
// Se traduce en un 400 hacia el transporte; no se hace dead letter porque
// ni siquiera hay mensaje que preservar.
var ErrBadEnvelope = errors.New("bad request: no push message received")

// DecodeError indica que el mensaje existe pero su contenido no se puede
// decodificar (base64 o JSON inválido). Reentregar no lo va a arreglar:
// el mensaje va al dead letter y se confirma.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode error: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PushMessage es el mensaje interno del envelope push, con el payload
// codificado en base64 en Data.
type PushMessage struct {
	Data        string            `json:"data"`
	MessageID   string            `json:"messageId,omitempty"`
	PublishTime time.Time         `json:"publishTime,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// PushEnvelope es el cuerpo completo del POST push.
type PushEnvelope struct {
	Message      *PushMessage `json:"message"`
	Subscription string       `json:"subscription,omitempty"`
	raw          []byte
}

// Raw retorna el cuerpo original del request, para preservarlo en dead letter.
func (e *PushEnvelope) Raw() []byte {
	return e.raw
}

// Document es el documento Debezium ya decodificado. Payload es nil cuando el
// documento no trae la clave "payload" (mensaje informativo o de prueba):
// se confirma sin procesar.
type Document struct {
	Payload     map[string]interface{}
	MessageID   string
	PublishTime time.Time
}

func (d *Document) Ignorable() bool {
	return d.Payload == nil
}

// ParseEnvelope valida la estructura externa del request push.
func ParseEnvelope(body []byte) (*PushEnvelope, error) {
	if len(body) == 0 {
		return nil, ErrBadEnvelope
	}

	var env PushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrBadEnvelope
	}

	if env.Message == nil {
		return nil, ErrBadEnvelope
	}

	env.raw = body

	return &env, nil
}

// Decode decodifica el payload del mensaje: base64 → JSON → Document.
func (e *PushEnvelope) Decode() (*Document, error) {

	data, err := base64.StdEncoding.DecodeString(e.Message.Data)
	if err != nil {
		return nil, &DecodeError{Reason: "base64 inválido", Err: err}
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &DecodeError{Reason: "JSON inválido", Err: err}
	}

	doc := &Document{
		MessageID:   e.Message.MessageID,
		PublishTime: e.Message.PublishTime,
	}

	// Los mensajes Debezium traen la clave "payload". Si falta, puede ser un
	// mensaje de prueba: se marca como ignorable, no como error.
	if payload, ok := parsed["payload"].(map[string]interface{}); ok {
		doc.Payload = payload
	}

	return doc, nil
}
