package deadletter

import (
	"context"
	"time"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/observability"
)

// Router enruta mensajes irrecuperables al sink configurado. Es fire-and-forget
// respecto al pipeline: si el propio dead letter falla, se registra y se sigue,
// nunca se reintenta en línea ni se bloquea al secuenciador.
type Router struct {
	sink    Sink
	logger  observability.Logger
	metrics *observability.SinkMetrics
}

func NewRouter(sink Sink, logger observability.Logger) *Router {
	return &Router{
		sink:    sink,
		logger:  logger,
		metrics: observability.GetSinkMetrics(),
	}
}

// Route persiste el mensaje original con su razón de falla. stage identifica
// la etapa que lo descartó: decode, schema o apply.
func (r *Router) Route(ctx context.Context, originalMessage []byte, messageID, stage, reason string) {

	record := &Record{
		OriginalMessage: originalMessage,
		Reason:          reason,
		Timestamp:       time.Now().UTC(),
		MessageID:       messageID,
		Stage:           stage,
	}

	if err := r.sink.Persist(ctx, record); err != nil {
		r.logger.Error(ctx, "Error persistiendo record de dead letter", err,
			"stage", stage, "message_id", messageID)
		return
	}

	if r.metrics != nil {
		r.metrics.IncDeadLettered(stage)
	}

	r.logger.Warn(ctx, "Mensaje enviado a dead letter", nil,
		"stage", stage, "reason", reason, "message_id", messageID)
}

func (r *Router) Close() error {
	if r.sink != nil {
		return r.sink.Close()
	}
	return nil
}
