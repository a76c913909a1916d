package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pwnlink",
			Subsystem: "link",
			Name:      "frames_sent_total",
			Help:      "Frames written to the peripheral.",
		},
		[]string{"opcode", "success"},
	)
	receives = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pwnlink",
			Subsystem: "link",
			Name:      "receives_total",
			Help:      "Receive attempts by outcome class.",
		},
		[]string{"class"},
	)
	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pwnlink",
			Subsystem: "link",
			Name:      "handshakes_total",
			Help:      "SYN/ACK handshake attempts.",
		},
		[]string{"success"},
	)
	disconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pwnlink",
			Subsystem: "link",
			Name:      "disconnects_total",
			Help:      "Transitions out of the connected phase.",
		},
		[]string{"reason"},
	)
	connected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pwnlink",
			Subsystem: "link",
			Name:      "connected",
			Help:      "1 while the link is in the connected phase.",
		},
	)
	consecutiveErrors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pwnlink",
			Subsystem: "link",
			Name:      "consecutive_errors",
			Help:      "Receive failures since the last good frame.",
		},
	)
	fieldDispatch = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pwnlink",
			Subsystem: "ui",
			Name:      "field_dispatch_total",
			Help:      "UI field dispatch outcomes.",
		},
		[]string{"field", "result"},
	)
	inbound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pwnlink",
			Subsystem: "router",
			Name:      "inbound_commands_total",
			Help:      "Peripheral commands by opcode and reply.",
		},
		[]string{"opcode", "reply"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pwnlink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status API requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pwnlink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesSent, receives, handshakes, disconnects, connected,
			consecutiveErrors, fieldDispatch, inbound, httpRequests, httpDuration,
		)
	})
}

func RecordFrameSent(opcode string, success bool) {
	RegisterMetrics()
	framesSent.WithLabelValues(opcode, strconv.FormatBool(success)).Inc()
}

func RecordReceive(class string) {
	RegisterMetrics()
	receives.WithLabelValues(class).Inc()
}

func RecordHandshake(success bool) {
	RegisterMetrics()
	handshakes.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func RecordDisconnect(reason string) {
	RegisterMetrics()
	disconnects.WithLabelValues(reason).Inc()
	connected.Set(0)
	consecutiveErrors.Set(0)
}

func RecordConnected() {
	RegisterMetrics()
	connected.Set(1)
	consecutiveErrors.Set(0)
}

func RecordConsecutiveErrors(n int) {
	RegisterMetrics()
	consecutiveErrors.Set(float64(n))
}

func RecordFieldDispatch(field, result string) {
	RegisterMetrics()
	fieldDispatch.WithLabelValues(field, result).Inc()
}

func RecordInbound(opcode, reply string) {
	RegisterMetrics()
	inbound.WithLabelValues(opcode, reply).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
