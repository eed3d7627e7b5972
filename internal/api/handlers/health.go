// health.go - health endpoints Users API.
// /health/live  - процесс жив
// /health/ready - пулы и identity providers отвечают
// /metrics      - метрики Prometheus
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Drim-Soft/planifika-users-api/internal/config"
)

const serviceName = "users-api"

// ReadinessChecker - проверка одной зависимости.
type ReadinessChecker interface {
	// Name - ключ проверки в отчёте готовности.
	Name() string
	// CheckReady возвращает "ok", "degraded" или "fail" и сообщение.
	CheckReady() (status string, message string)
}

// nonCritical превращает fail зависимости в degraded.
type nonCritical struct {
	ReadinessChecker
}

// NonCritical оборачивает c: его отказ понижает готовность до degraded,
// а не fail.
func NonCritical(c ReadinessChecker) ReadinessChecker {
	return nonCritical{c}
}

func (n nonCritical) CheckReady() (string, string) {
	status, msg := n.ReadinessChecker.CheckReady()
	if status == "fail" {
		status = "degraded"
	}
	return status, msg
}

// HealthHandler - обработчик health endpoints.
type HealthHandler struct {
	checkers    []ReadinessChecker
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(checkers ...ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		checkers:    checkers,
		promHandler: promhttp.Handler(),
	}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type healthReadyResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Version   string                       `json:"version"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks"`
}

// HealthLive всегда отвечает 200.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady выполняет все проверки параллельно.
// Отвечает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	results := make([]healthCheckResult, len(h.checkers))

	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			status, msg := c.CheckReady()
			results[i] = healthCheckResult{Status: status, Message: msg}
			return nil
		})
	}
	_ = g.Wait()

	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
		Checks:    make(map[string]healthCheckResult, len(h.checkers)),
	}
	statuses := make([]string, 0, len(results))
	for i, c := range h.checkers {
		resp.Checks[c.Name()] = results[i]
		statuses = append(statuses, results[i].Status)
	}
	resp.Status = overallStatus(statuses...)

	code := http.StatusOK
	if resp.Status == "fail" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// GetMetrics отдаёт метрики Prometheus.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// overallStatus: fail, если хотя бы одна зависимость fail; degraded,
// если хотя бы одна degraded; иначе ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == "fail" {
			return "fail"
		}
		if s == "degraded" {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return "degraded"
	}
	return "ok"
}
