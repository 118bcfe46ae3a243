package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SinkMetrics contiene todas las métricas del sink de CDC
type SinkMetrics struct {
	// Ingesta
	messagesReceivedTotal prometheus.Counter
	messagesIgnoredTotal  prometheus.Counter

	// Aplicación al warehouse
	eventsAppliedTotal *prometheus.CounterVec
	applyRetriesTotal  prometheus.Counter
	applyFailuresTotal *prometheus.CounterVec
	inflightApplies    prometheus.Gauge

	// Secuenciación
	activeLanes prometheus.Gauge

	// Dead letter
	deadLetteredTotal *prometheus.CounterVec
}

var (
	metricsInstance *SinkMetrics
	metricsOnce     sync.Once
)

// NewSinkMetrics crea e inicializa las métricas del sink
func NewSinkMetrics(registry *prometheus.Registry) *SinkMetrics {
	metricsOnce.Do(func() {
		metrics := &SinkMetrics{
			messagesReceivedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sink_messages_received_total",
					Help: "Número total de mensajes push recibidos",
				},
			),
			messagesIgnoredTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sink_messages_ignored_total",
					Help: "Número total de mensajes sin payload reconocible, confirmados e ignorados",
				},
			),
			eventsAppliedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sink_events_applied_total",
					Help: "Número total de eventos aplicados al warehouse",
				},
				[]string{"operation"},
			),
			applyRetriesTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sink_apply_retries_total",
					Help: "Número total de reintentos por fallas transitorias del warehouse",
				},
			),
			applyFailuresTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sink_apply_failures_total",
					Help: "Número total de fallas terminales al aplicar eventos",
				},
				[]string{"class"},
			),
			inflightApplies: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "sink_inflight_applies",
					Help: "Número de mutaciones al warehouse actualmente en vuelo",
				},
			),
			activeLanes: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "sink_active_lanes",
					Help: "Número de lanes de secuenciación activos (claves con eventos en vuelo)",
				},
			),
			deadLetteredTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sink_dead_lettered_total",
					Help: "Número total de mensajes enviados al dead letter",
				},
				[]string{"stage"},
			),
		}

		registry.MustRegister(
			metrics.messagesReceivedTotal,
			metrics.messagesIgnoredTotal,
			metrics.eventsAppliedTotal,
			metrics.applyRetriesTotal,
			metrics.applyFailuresTotal,
			metrics.inflightApplies,
			metrics.activeLanes,
			metrics.deadLetteredTotal,
		)

		metricsInstance = metrics
	})

	return metricsInstance
}

// GetSinkMetrics retorna la instancia singleton de métricas
func GetSinkMetrics() *SinkMetrics {
	return metricsInstance
}

// IncMessagesReceived incrementa el contador de mensajes recibidos
func (sm *SinkMetrics) IncMessagesReceived() {
	if sm == nil {
		return
	}
	sm.messagesReceivedTotal.Inc()
}

// IncMessagesIgnored incrementa el contador de mensajes ignorados
func (sm *SinkMetrics) IncMessagesIgnored() {
	if sm == nil {
		return
	}
	sm.messagesIgnoredTotal.Inc()
}

// IncEventsApplied incrementa el contador de eventos aplicados por operación
func (sm *SinkMetrics) IncEventsApplied(operation string) {
	if sm == nil {
		return
	}
	sm.eventsAppliedTotal.WithLabelValues(operation).Inc()
}

// IncApplyRetries incrementa el contador de reintentos
func (sm *SinkMetrics) IncApplyRetries() {
	if sm == nil {
		return
	}
	sm.applyRetriesTotal.Inc()
}

// IncApplyFailures incrementa el contador de fallas terminales por clase
func (sm *SinkMetrics) IncApplyFailures(class string) {
	if sm == nil {
		return
	}
	sm.applyFailuresTotal.WithLabelValues(class).Inc()
}

// SetInflightApplies actualiza el número de mutaciones en vuelo
func (sm *SinkMetrics) SetInflightApplies(count float64) {
	if sm == nil {
		return
	}
	sm.inflightApplies.Set(count)
}

// SetActiveLanes actualiza el número de lanes activos
func (sm *SinkMetrics) SetActiveLanes(count float64) {
	if sm == nil {
		return
	}
	sm.activeLanes.Set(count)
}

// IncDeadLettered incrementa el contador de dead letter por etapa
func (sm *SinkMetrics) IncDeadLettered(stage string) {
	if sm == nil {
		return
	}
	sm.deadLetteredTotal.WithLabelValues(stage).Inc()
}
