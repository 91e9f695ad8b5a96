package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: время обработки HTTP-запроса по маршруту
	RequestDuration *prometheus.HistogramVec

	// Auth: исходы логина/регистрации (kind=login|signup, result=ok|denied|error)
	AuthAttempts *prometheus.CounterVec

	// Verify: результаты проверки токенов (result=ok|rejected)
	TokenVerifications *prometheus.CounterVec

	// Refresh: ротации refresh-токенов (result=ok|rejected)
	RefreshRotations *prometheus.CounterVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orbit_http_request_duration_seconds",
			Help:    "Histogram of request latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),

		AuthAttempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "orbit_auth_attempts_total",
			Help: "Login and signup attempts by outcome.",
		}, []string{"kind", "result"}),

		TokenVerifications: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "orbit_token_verifications_total",
			Help: "Access credential verifications by outcome.",
		}, []string{"result"}),

		RefreshRotations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "orbit_refresh_rotations_total",
			Help: "Refresh token rotations by outcome.",
		}, []string{"result"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "orbit_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),
	}
}
