package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/observability"
	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/pipeline"
)

// Engine aplica ChangeEvents contra el warehouse: clasifica cada falla y
// reintenta las transitorias con backoff exponencial acotado. Al agotar los
// reintentos la falla se reclasifica como permanente para que el mensaje vaya
// a dead letter en vez de bloquear la reentrega indefinidamente.
type Engine struct {
	mutator        Mutator
	maxAttempts    int
	backoffInitial time.Duration
	backoffMax     time.Duration
	logger         observability.Logger
	metrics        *observability.SinkMetrics
}

type EngineOptions struct {
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func NewEngine(mutator Mutator, opts EngineOptions,
	logger observability.Logger) (*Engine, error) {

	if mutator == nil {
		return nil, fmt.Errorf("mutator is required")
	}

	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = 100 * time.Millisecond
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 10 * time.Second
	}

	return &Engine{
		mutator:        mutator,
		maxAttempts:    opts.MaxAttempts,
		backoffInitial: opts.BackoffInitial,
		backoffMax:     opts.BackoffMax,
		logger:         logger,
		metrics:        observability.GetSinkMetrics(),
	}, nil
}

// Apply ejecuta la mutación del evento. Nunca retorna TransientFailure:
// los transitorios se resuelven adentro (reintento) o se agotan (permanente).
func (e *Engine) Apply(ctx context.Context, event *pipeline.ChangeEvent) pipeline.ApplyOutcome {

	var lastErr error

	for attempt := 0; attempt < e.maxAttempts; attempt++ {

		if attempt > 0 {

			delay := e.calculateBackoff(attempt)

			e.logger.Warn(ctx, "Reintentando mutación al warehouse", lastErr,
				"attempt", attempt,
				"delay", delay.String(),
				"key", event.Key.LaneID(),
				"operation", string(event.Operation))

			if e.metrics != nil {
				e.metrics.IncApplyRetries()
			}

			select {
			case <-ctx.Done():
				return pipeline.TransientFailure("contexto cancelado durante backoff", ctx.Err())
			case <-time.After(delay):
			}
		}

		err := e.mutate(ctx, event)

		if err == nil {
			if e.metrics != nil {
				e.metrics.IncEventsApplied(string(event.Operation))
			}
			return pipeline.Applied()
		}

		if IsPermanent(err) {
			e.logger.Error(ctx, "Falla permanente aplicando evento", err,
				"key", event.Key.LaneID(),
				"operation", string(event.Operation))

			if e.metrics != nil {
				e.metrics.IncApplyFailures("permanent")
			}

			return pipeline.PermanentFailure(err.Error(), err)
		}

		lastErr = err
	}

	// Transitoria agotada: se reclasifica como permanente para el enrutamiento.
	e.logger.Error(ctx, "Reintentos agotados aplicando evento", lastErr,
		"key", event.Key.LaneID(),
		"operation", string(event.Operation),
		"attempts", e.maxAttempts)

	if e.metrics != nil {
		e.metrics.IncApplyFailures("retries_exhausted")
	}

	return pipeline.PermanentFailure(
		fmt.Sprintf("reintentos agotados (%d): %v", e.maxAttempts, lastErr), lastErr)
}

func (e *Engine) mutate(ctx context.Context, event *pipeline.ChangeEvent) error {
	switch event.Operation {
	case pipeline.OperationDelete:
		return e.mutator.Delete(ctx, event.Key)
	case pipeline.OperationCreate, pipeline.OperationUpdate:
		return e.mutator.Upsert(ctx, event.Key, event.Row)
	default:
		return fmt.Errorf("%w: operación %q", ErrBadRowData, event.Operation)
	}
}

func (e *Engine) calculateBackoff(attempt int) time.Duration {
	delay := e.backoffInitial * time.Duration(1<<uint(attempt-1))
	if delay > e.backoffMax {
		delay = e.backoffMax
	}
	return delay
}
