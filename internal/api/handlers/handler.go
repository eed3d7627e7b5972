// Package handlers - HTTP-обработчики Users API.
// Делегируют вызовы сервисному слою.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/Drim-Soft/planifika-users-api/internal/api/errors"
	"github.com/Drim-Soft/planifika-users-api/internal/gotrue"
	"github.com/Drim-Soft/planifika-users-api/internal/service"
)

// maxBodySize - максимальный размер тела запроса.
const maxBodySize = 1 << 20

// APIHandler - основной обработчик Users API.
type APIHandler struct {
	health   *HealthHandler
	identity *service.IdentityService
	users    *service.UserService
	tickets  *service.TicketService
	logger   *slog.Logger
}

// NewAPIHandler создаёт API-обработчик.
func NewAPIHandler(
	health *HealthHandler,
	identity *service.IdentityService,
	users *service.UserService,
	tickets *service.TicketService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:   health,
		identity: identity,
		users:    users,
		tickets:  tickets,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive делегирует в HealthHandler.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady делегирует в HealthHandler.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics делегирует в HealthHandler.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst. При ошибке пишет 400
// и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(dst)
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) {
		apierrors.ValidationError(w, "request body is required")
		return false
	}
	apierrors.ValidationError(w, fmt.Sprintf("invalid request body: %v", err))
	return false
}

// paginationDefaults нормализует параметры пагинации.
func paginationDefaults(limit *int, offset *int) (int, int) {
	l := 100
	o := 0

	if limit != nil {
		l = *limit
		if l < 1 {
			l = 1
		}
		if l > 1000 {
			l = 1000
		}
	}

	if offset != nil {
		o = *offset
		if o < 0 {
			o = 0
		}
	}

	return l, o
}

// writeServiceError преобразует ошибку сервиса в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *gotrue.ProviderError

	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrNoFieldsProvided):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, gotrue.ErrInvalidCredentials), errors.Is(err, gotrue.ErrInvalidToken):
		msg := err.Error()
		if errors.As(err, &perr) && perr.Body != "" {
			msg = perr.Body
		}
		apierrors.Unauthorized(w, msg)
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrProfileNotProvisioned):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrConcurrentProvisioning), errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, gotrue.ErrUnavailable):
		h.logger.Warn("Identity provider недоступен",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.IDPUnavailable(w, err.Error())
	case errors.Is(err, service.ErrMalformedProviderResponse), errors.Is(err, gotrue.ErrMalformedResponse):
		apierrors.IDPBadResponse(w, err.Error())
	case errors.As(err, &perr):
		apierrors.IDPError(w, fmt.Sprintf("identity provider returned status %d: %s", perr.StatusCode, perr.Body))
	default:
		h.logger.Error("Ошибка обработки запроса",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "internal server error")
	}
}
