package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики движка мониторинга позиций
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах

// ============ Счётчики сверок ============

// ReconciliationsTotal - количество сверок по кошелькам и результатам
var ReconciliationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hlwatch",
		Subsystem: "monitor",
		Name:      "reconciliations_total",
		Help:      "Total number of reconciliation cycles",
	},
	[]string{"wallet", "result"}, // result: success, fetch_error, store_error
)

// ReconcileDuration - длительность полного цикла сверки
var ReconcileDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "hlwatch",
		Subsystem: "monitor",
		Name:      "reconcile_duration_seconds",
		Help:      "Duration of a full reconciliation cycle",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"wallet"},
)

// PositionEventsTotal - события изменения позиций по типам
var PositionEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hlwatch",
		Subsystem: "monitor",
		Name:      "position_events_total",
		Help:      "Total number of position change events emitted",
	},
	[]string{"wallet", "type"}, // OPENED, CLOSED, INCREASED, DECREASED, LEVERAGE_CHANGED
)

// TriggersCoalesced - триггеры, слитые с уже ожидающей сверкой
var TriggersCoalesced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hlwatch",
		Subsystem: "monitor",
		Name:      "triggers_coalesced_total",
		Help:      "Number of reconcile triggers merged into a pending one",
	},
	[]string{"wallet"},
)

// ============ Метрики соединения ============

// WSReconnectsTotal - количество переподключений WebSocket
var WSReconnectsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hlwatch",
		Subsystem: "stream",
		Name:      "ws_reconnects_total",
		Help:      "Total number of WebSocket reconnect attempts",
	},
	[]string{"wallet"},
)

// ConnectionState - состояние пайплайна кошелька (1 в текущем состоянии)
var ConnectionState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "hlwatch",
		Subsystem: "monitor",
		Name:      "pipeline_state",
		Help:      "Pipeline state per wallet (1 = current state)",
	},
	[]string{"wallet", "state"},
)

// ============ Метрики доставки ============

// NotificationsDropped - уведомления, отброшенные из-за переполнения очереди
var NotificationsDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hlwatch",
		Subsystem: "notify",
		Name:      "notifications_dropped_total",
		Help:      "Number of notifications dropped due to full dispatch queue",
	},
	[]string{"kind"}, // position_event, operational_alert
)

// NotificationsSent - успешно доставленные уведомления
var NotificationsSent = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hlwatch",
		Subsystem: "notify",
		Name:      "notifications_sent_total",
		Help:      "Number of notifications handed to the sink",
	},
	[]string{"kind"},
)

// ============ Вспомогательные функции ============

// RecordReconciliation записывает результат цикла сверки
func RecordReconciliation(wallet, result string, durationSeconds float64) {
	ReconciliationsTotal.WithLabelValues(wallet, result).Inc()
	if result == "success" {
		ReconcileDuration.WithLabelValues(wallet).Observe(durationSeconds)
	}
}

// RecordPositionEvent записывает порожденное событие позиции
func RecordPositionEvent(wallet, eventType string) {
	PositionEventsTotal.WithLabelValues(wallet, eventType).Inc()
}

// RecordReconnect записывает попытку переподключения
func RecordReconnect(wallet string) {
	WSReconnectsTotal.WithLabelValues(wallet).Inc()
}

// SetPipelineState обновляет gauge состояния: 1 у текущего, 0 у остальных
func SetPipelineState(wallet, current string) {
	for state := range ValidTransitions {
		v := 0.0
		if state == current {
			v = 1.0
		}
		ConnectionState.WithLabelValues(wallet, state).Set(v)
	}
}
