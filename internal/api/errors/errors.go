// Package errors - ответы об ошибках в формате Users API:
// {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибкой проходят через WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок контракта API.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeIDPError        = "IDP_ERROR"
	CodeIDPUnavailable  = "IDP_UNAVAILABLE"
	CodeIDPBadResponse  = "IDP_BAD_RESPONSE"
	CodeInternalError   = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ с ошибкой.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// ValidationError - 400 для невалидных входных данных.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound - 404.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized - 401.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden - 403.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict - 409.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// IDPError - 400, если identity provider отклонил запрос.
func IDPError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeIDPError, message)
}

// IDPUnavailable - 502, если identity provider недоступен.
func IDPUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeIDPUnavailable, message)
}

// IDPBadResponse - 502, если ответ identity provider непригоден.
func IDPBadResponse(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeIDPBadResponse, message)
}

// InternalError - 500.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
