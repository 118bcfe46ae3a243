package server

import (
	"context"
	"io"
	"net/http"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/envelope"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/observability"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/pipeline"
	"github.com/gin-gonic/gin"
)

// Processor es lo que el endpoint push necesita del pipeline.
type Processor interface {
	Process(ctx context.Context, env *envelope.PushEnvelope) pipeline.Disposition
}

// RegisterPushEndpoint monta el endpoint POST / que recibe los mensajes push.
//
// Contrato de status hacia el transporte:
//   - 204: mensaje confirmado (aplicado o ignorable)
//   - 200 con cuerpo: error local permanente, no reintentar (ya está en dead letter)
//   - 400: request estructuralmente inválido
//   - 500: no confirmar, reentregar más tarde
func RegisterPushEndpoint(router *gin.Engine, processor Processor, logger observability.Logger) {

	router.POST("/", func(c *gin.Context) {
		ctx := c.Request.Context()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logger.Error(ctx, "Error leyendo el cuerpo del request", err)
			c.Status(http.StatusInternalServerError)
			return
		}

		env, err := envelope.ParseEnvelope(body)
		if err != nil {
			logger.Warn(ctx, "Request push inválido", err)
			c.String(http.StatusBadRequest, "Bad Request: no push message received")
			return
		}

		switch processor.Process(ctx, env) {
		case pipeline.DispositionAck:
			c.Status(http.StatusNoContent)

		case pipeline.DispositionAckDeadLettered:
			// 200 con cuerpo: el transporte confirma y no reintenta; el
			// mensaje ya quedó preservado en dead letter.
			c.String(http.StatusOK, "Message processing error")

		default:
			// Sin status de éxito: el transporte reentrega.
			c.Status(http.StatusInternalServerError)
		}
	})
}
