package gotrue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты запросов.
const (
	outcomeOK           = "ok"
	outcomeClientError  = "client_error"
	outcomeServerError  = "server_error"
	outcomeNetworkError = "network_error"
)

var (
	idpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ua_idp_requests_total",
			Help: "Запросы к identity provider по результату",
		},
		[]string{"provider", "op", "outcome"},
	)

	idpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ua_idp_request_duration_seconds",
			Help:    "Длительность запросов к identity provider в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "op"},
	)
)

func outcomeForStatus(status int) string {
	switch {
	case status >= 500:
		return outcomeServerError
	case status >= 400:
		return outcomeClientError
	default:
		return outcomeOK
	}
}
