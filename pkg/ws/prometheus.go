package ws

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tokmz/wsgate/pkg/queue"
)

// PrometheusMetrics 基于 Prometheus 的监控实现
type PrometheusMetrics struct {
	connectionsActive  prometheus.Gauge
	connectionsTotal   *prometheus.CounterVec   // route
	closesTotal        *prometheus.CounterVec   // route, code
	upgradeRejected    *prometheus.CounterVec   // status
	messagesReceived   *prometheus.CounterVec   // route
	messageBytes       *prometheus.CounterVec   // route
	middlewareRejected *prometheus.CounterVec   // route, event
	handlerErrors      *prometheus.CounterVec   // route, event
	eventDuration      *prometheus.HistogramVec // event
	sendsTotal         *prometheus.CounterVec   // result
	queueFlushed       prometheus.Counter
	publishDropped     *prometheus.CounterVec // route
}

// NewPrometheusMetrics 创建并注册指标
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) (*PrometheusMetrics, error) {
	if namespace == "" {
		namespace = "wsgate"
	}

	m := &PrometheusMetrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "connections_active",
			Help:      "Number of open WebSocket connections",
		}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "connections_total",
			Help:      "Total number of opened connections",
		}, []string{"route"}),
		closesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "closes_total",
			Help:      "Total number of closed connections by close code",
		}, []string{"route", "code"}),
		upgradeRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "upgrade_rejected_total",
			Help:      "Upgrade requests answered with an HTTP error",
		}, []string{"status"}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "messages_received_total",
			Help:      "Total number of inbound messages",
		}, []string{"route"}),
		messageBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "message_bytes_total",
			Help:      "Total size of inbound messages in bytes",
		}, []string{"route"}),
		middlewareRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "middleware_rejected_total",
			Help:      "Events rejected by middleware",
		}, []string{"route", "event"}),
		handlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "handler_errors_total",
			Help:      "Handler callbacks that returned an error or panicked",
		}, []string{"route", "event"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "event_duration_seconds",
			Help:      "Time spent processing a lifecycle event",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"event"}),
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "sends_total",
			Help:      "Point-to-point sends by result (sent/queued/failed)",
		}, []string{"result"}),
		queueFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "flushed_total",
			Help:      "Queued messages redelivered on drain",
		}),
		publishDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "dropped_total",
			Help:      "Topic deliveries dropped because the subscriber could not accept them",
		}, []string{"route"}),
	}

	collectors := []prometheus.Collector{
		m.connectionsActive, m.connectionsTotal, m.closesTotal, m.upgradeRejected,
		m.messagesReceived, m.messageBytes, m.middlewareRejected, m.handlerErrors,
		m.eventDuration, m.sendsTotal, m.queueFlushed, m.publishDropped,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) ConnectionOpened(route string) {
	m.connectionsActive.Inc()
	m.connectionsTotal.WithLabelValues(route).Inc()
}

func (m *PrometheusMetrics) ConnectionClosed(route string, code int) {
	m.connectionsActive.Dec()
	m.closesTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (m *PrometheusMetrics) UpgradeRejected(status int) {
	m.upgradeRejected.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *PrometheusMetrics) MessageReceived(route string, size int) {
	m.messagesReceived.WithLabelValues(route).Inc()
	m.messageBytes.WithLabelValues(route).Add(float64(size))
}

func (m *PrometheusMetrics) MiddlewareRejected(route string, event EventType) {
	m.middlewareRejected.WithLabelValues(route, string(event)).Inc()
}

func (m *PrometheusMetrics) HandlerFailed(route string, event EventType) {
	m.handlerErrors.WithLabelValues(route, string(event)).Inc()
}

func (m *PrometheusMetrics) ObserveEvent(event EventType, d time.Duration) {
	m.eventDuration.WithLabelValues(string(event)).Observe(d.Seconds())
}

func (m *PrometheusMetrics) SendCompleted(result queue.Result) {
	m.sendsTotal.WithLabelValues(result.String()).Inc()
}

func (m *PrometheusMetrics) QueueFlushed(n int) {
	m.queueFlushed.Add(float64(n))
}

func (m *PrometheusMetrics) PublishDropped(route string) {
	m.publishDropped.WithLabelValues(route).Inc()
}
