package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/SOLUCIONESSYCOM/go_warehouse_sink/src/observability"
	"github.com/puzpuzpuz/xsync/v3"
)

// lane es la cola de admisión FIFO de una clave. token tiene capacidad 1:
// quien logra enviar tiene el turno; los que esperan en el send son
// despertados en orden de llegada por el runtime.
type lane struct {
	token chan struct{}
	refs  int
}

// KeySequencer garantiza orden causal por clave: a lo sumo un evento por
// clave aplicándose a la vez, en orden de llegada, con claves distintas en
// paralelo acotado por un semáforo global.
type KeySequencer struct {
	lanes   *xsync.MapOf[string, *lane]
	sem     chan struct{}
	closed  atomic.Bool
	metrics *observability.SinkMetrics
	logger  observability.Logger
}

func NewKeySequencer(maxConcurrency int, logger observability.Logger) *KeySequencer {
	if maxConcurrency <= 0 {
		maxConcurrency = 32
	}

	return &KeySequencer{
		lanes:   xsync.NewMapOf[string, *lane](),
		sem:     make(chan struct{}, maxConcurrency),
		metrics: observability.GetSinkMetrics(),
		logger:  logger,
	}
}

// Acquire admite un evento para la clave dada. Bloquea hasta que todos los
// eventos previamente admitidos de esa clave hayan terminado y haya un cupo
// global libre. Retorna la función de liberación, que debe llamarse exactamente
// una vez al terminar de aplicar (éxito o falla permanente).
func (ks *KeySequencer) Acquire(ctx context.Context, key string) (func(), error) {

	if ks.closed.Load() {
		return nil, ErrShuttingDown
	}

	// Alta atómica en el lane: crear-o-unirse bajo el Compute del mapa,
	// que serializa las mutaciones por clave.
	ln, _ := ks.lanes.Compute(key, func(old *lane, loaded bool) (*lane, bool) {
		if !loaded {
			old = &lane{token: make(chan struct{}, 1)}
		}
		old.refs++
		return old, false
	})

	ks.reportLanes()

	// Esperar el turno dentro del lane.
	select {
	case ln.token <- struct{}{}:
	case <-ctx.Done():
		ks.leave(key)
		return nil, ctx.Err()
	}

	// Cupo global: backpressure cuando se alcanza la concurrencia máxima.
	select {
	case ks.sem <- struct{}{}:
	case <-ctx.Done():
		<-ln.token
		ks.leave(key)
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-ks.sem
			<-ln.token
			ks.leave(key)
		})
	}

	return release, nil
}

// leave da de baja una referencia del lane y lo elimina del mapa cuando queda
// vacío, para acotar memoria. El próximo evento de esa clave lo recrea.
func (ks *KeySequencer) leave(key string) {
	ks.lanes.Compute(key, func(old *lane, loaded bool) (*lane, bool) {
		if !loaded {
			return nil, true
		}
		old.refs--
		return old, old.refs <= 0
	})

	ks.reportLanes()
}

// ActiveLanes retorna el número de claves con eventos en vuelo.
func (ks *KeySequencer) ActiveLanes() int {
	return ks.lanes.Size()
}

// InflightApplies retorna cuántos cupos globales están ocupados.
func (ks *KeySequencer) InflightApplies() int {
	return len(ks.sem)
}

// Close cierra la admisión. Los eventos en vuelo terminan; los Acquire
// posteriores fallan con ErrShuttingDown y el mensaje queda sin confirmar.
func (ks *KeySequencer) Close() {
	ks.closed.Store(true)
}

func (ks *KeySequencer) reportLanes() {
	if ks.metrics != nil {
		ks.metrics.SetActiveLanes(float64(ks.lanes.Size()))
		ks.metrics.SetInflightApplies(float64(len(ks.sem)))
	}
}
