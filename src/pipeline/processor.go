package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/envelope"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/observability"
)

// Disposition es la decisión terminal sobre un mensaje push. Cada resultado
// mapea de forma determinista a una acción del transporte: confirmar,
// confirmar tras dead letter, o dejar que reentregue.
type Disposition int

const (
	// DispositionAck confirma el mensaje: aplicado o ignorable.
	DispositionAck Disposition = iota

	// DispositionAckDeadLettered confirma tras preservar el mensaje en dead
	// letter: la reentrega no puede ayudar.
	DispositionAckDeadLettered

	// DispositionRetry no confirma: el transporte reentrega más tarde
	// (shutdown en curso o error interno).
	DispositionRetry
)

const (
	StageDecode = "decode"
	StageSchema = "schema"
	StageApply  = "apply"
)

// DeadLetterRouter es lo que el procesador necesita del enrutador de dead
// letter; *deadletter.Router lo satisface.
type DeadLetterRouter interface {
	Route(ctx context.Context, originalMessage []byte, messageID, stage, reason string)
}

// Processor orquesta el recorrido completo de un mensaje:
// decode → normalize → admisión por clave → apply → decisión de confirmación.
type Processor struct {
	normalizer *Normalizer
	sequencer  *KeySequencer
	applier    Applier
	deadLetter DeadLetterRouter
	logger     observability.Logger
	metrics    *observability.SinkMetrics
}

func NewProcessor(normalizer *Normalizer,
	sequencer *KeySequencer,
	applier Applier,
	deadLetter DeadLetterRouter,
	logger observability.Logger) *Processor {

	return &Processor{
		normalizer: normalizer,
		sequencer:  sequencer,
		applier:    applier,
		deadLetter: deadLetter,
		logger:     logger,
		metrics:    observability.GetSinkMetrics(),
	}
}

// Process ejecuta la tabla de decisión por mensaje. El llamador (handler HTTP)
// traduce la Disposition al status del transporte.
func (p *Processor) Process(ctx context.Context, env *envelope.PushEnvelope) Disposition {

	if p.metrics != nil {
		p.metrics.IncMessagesReceived()
	}

	doc, err := env.Decode()
	if err != nil {
		// Base64 o JSON inválido: reentregar no lo arregla.
		p.logger.Warn(ctx, "Mensaje indecodificable, enviando a dead letter", err,
			"message_id", messageID(env))

		p.deadLetter.Route(ctx, env.Raw(), messageID(env), StageDecode, err.Error())

		return DispositionAckDeadLettered
	}

	if doc.Ignorable() {
		p.logger.Warn(ctx, "Mensaje sin clave payload, ignorando", nil,
			"message_id", doc.MessageID)

		if p.metrics != nil {
			p.metrics.IncMessagesIgnored()
		}

		return DispositionAck
	}

	event, err := p.normalizer.Normalize(doc)
	if err != nil {
		var schemaErr *SchemaError
		if errors.As(err, &schemaErr) {
			p.logger.Warn(ctx, "Evento no normalizable, enviando a dead letter", err,
				"message_id", doc.MessageID)

			p.deadLetter.Route(ctx, env.Raw(), doc.MessageID, StageSchema, err.Error())

			return DispositionAckDeadLettered
		}

		// Error interno inesperado: no confirmar, que el transporte reentregue.
		p.logger.Error(ctx, "Error interno normalizando evento", err,
			"message_id", doc.MessageID)

		return DispositionRetry
	}

	if event == nil {
		// Evento de mensaje (op "m"): no hay fila que aplicar.
		if p.metrics != nil {
			p.metrics.IncMessagesIgnored()
		}

		return DispositionAck
	}

	release, err := p.sequencer.Acquire(ctx, event.Key.LaneID())
	if err != nil {
		// Shutdown o contexto cancelado antes de la admisión: el mensaje
		// queda sin confirmar y vuelve por reentrega.
		p.logger.Warn(ctx, "Admisión rechazada, el mensaje será reentregado", err,
			"message_id", doc.MessageID,
			"key", event.Key.LaneID())

		return DispositionRetry
	}
	defer release()

	outcome := p.applier.Apply(ctx, event)

	switch outcome.Status {
	case OutcomeApplied:
		p.logger.Debug(ctx, "Evento aplicado",
			"operation", string(event.Operation),
			"key", event.Key.LaneID(),
			"offset", event.SourceOffset)

		return DispositionAck

	case OutcomePermanentFailure:
		p.deadLetter.Route(ctx, env.Raw(), doc.MessageID, StageApply, outcome.Reason)

		return DispositionAckDeadLettered

	default:
		// Una transitoria solo escapa del engine si el contexto murió en el
		// backoff: dejar que el transporte reentregue.
		p.logger.Warn(ctx, "Aplicación interrumpida, el mensaje será reentregado", outcome.Err,
			"message_id", doc.MessageID,
			"key", event.Key.LaneID())

		return DispositionRetry
	}
}

func messageID(env *envelope.PushEnvelope) string {
	if env == nil || env.Message == nil {
		return ""
	}
	return env.Message.MessageID
}

// Shutdown cierra la admisión de nuevos eventos. Los que están en vuelo
// terminan su aplicación; los pendientes quedan sin confirmar.
func (p *Processor) Shutdown(ctx context.Context) {
	p.logger.Info(ctx, "Cerrando admisión del pipeline")
	p.sequencer.Close()
}

func (p *Processor) String() string {
	return fmt.Sprintf("Processor{lanes: %d, inflight: %d}",
		p.sequencer.ActiveLanes(), p.sequencer.InflightApplies())
}
