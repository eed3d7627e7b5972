package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Drim-Soft/planifika-users-api/internal/gotrue"
	"github.com/Drim-Soft/planifika-users-api/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestWriteServiceError(t *testing.T) {
	providerErr := &gotrue.ProviderError{Op: "signup", StatusCode: 422, Body: `{"msg":"User already registered"}`}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantInMsg  string
	}{
		{"validation", fmt.Errorf("%w: title is required", service.ErrValidation), 400, "VALIDATION_ERROR", "title"},
		{"no fields", service.ErrNoFieldsProvided, 400, "VALIDATION_ERROR", "at least one"},
		{"bad credentials", fmt.Errorf("%w: %w", gotrue.ErrInvalidCredentials,
			&gotrue.ProviderError{Op: "token", StatusCode: 400, Body: "Invalid login credentials"}),
			401, "UNAUTHORIZED", "Invalid login credentials"},
		{"bad token", gotrue.ErrInvalidToken, 401, "UNAUTHORIZED", "expired"},
		{"not found", fmt.Errorf("%w: user 7", service.ErrNotFound), 404, "NOT_FOUND", "user 7"},
		{"not provisioned", service.ErrProfileNotProvisioned, 404, "NOT_FOUND", "no local user"},
		{"concurrent", service.ErrConcurrentProvisioning, 409, "CONFLICT", "concurrently"},
		{"conflict", service.ErrConflict, 409, "CONFLICT", "exists"},
		{"provider 4xx", providerErr, 400, "IDP_ERROR", "status 422"},
		{"provider down", fmt.Errorf("%w: %w", gotrue.ErrUnavailable,
			&gotrue.ProviderError{Op: "signup", StatusCode: 503, Body: "down"}), 502, "IDP_UNAVAILABLE", "unavailable"},
		{"malformed subject", service.ErrMalformedProviderResponse, 502, "IDP_BAD_RESPONSE", "subject"},
		{"malformed body", gotrue.ErrMalformedResponse, 502, "IDP_BAD_RESPONSE", "malformed"},
		{"other", errors.New("connection reset"), 500, "INTERNAL_ERROR", "internal"},
	}

	h := &APIHandler{logger: testLogger()}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/x", nil)
			h.writeServiceError(w, r, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, ожидается %d", w.Code, tt.wantStatus)
			}
			var body errorBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, ожидается %q", body.Error.Code, tt.wantCode)
			}
			if !strings.Contains(body.Error.Message, tt.wantInMsg) {
				t.Errorf("message = %q, ожидается подстрока %q", body.Error.Message, tt.wantInMsg)
			}
		})
	}
}

func TestPaginationDefaults(t *testing.T) {
	ptr := func(v int) *int { return &v }

	tests := []struct {
		name                string
		limit, offset       *int
		wantLimit, wantOffs int
	}{
		{"defaults", nil, nil, 100, 0},
		{"explicit", ptr(20), ptr(40), 20, 40},
		{"limit too small", ptr(0), nil, 1, 0},
		{"limit too large", ptr(5000), nil, 1000, 0},
		{"negative offset", nil, ptr(-3), 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, o := paginationDefaults(tt.limit, tt.offset)
			if l != tt.wantLimit || o != tt.wantOffs {
				t.Errorf("paginationDefaults() = %d, %d, ожидается %d, %d", l, o, tt.wantLimit, tt.wantOffs)
			}
		})
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		value   string
		want    int
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			var (
				got int
				err error
			)
			router := chi.NewRouter()
			router.Get("/users/{id}", func(_ http.ResponseWriter, r *http.Request) {
				got, err = pathID(r, "id")
			})
			router.Get("/users/", func(_ http.ResponseWriter, r *http.Request) {
				got, err = pathID(r, "id")
			})
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/"+tt.value, nil))

			if (err != nil) != tt.wantErr {
				t.Fatalf("pathID(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("pathID(%q) = %d, ожидается %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestPageParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/admin/users?limit=5&offset=10", nil)
	limit, offset, err := pageParams(r)
	if err != nil {
		t.Fatalf("pageParams() ошибка: %v", err)
	}
	if limit != 5 || offset != 10 {
		t.Errorf("pageParams() = %d, %d, ожидается 5, 10", limit, offset)
	}

	r = httptest.NewRequest(http.MethodGet, "/admin/users?limit=many", nil)
	if _, _, err := pageParams(r); err == nil {
		t.Error("pageParams() accepted a non-numeric limit")
	}
}

func TestQueryInt_Absent(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	v, err := queryInt(r, "status")
	if err != nil {
		t.Fatalf("queryInt() ошибка: %v", err)
	}
	if v != nil {
		t.Errorf("queryInt() = %d, ожидается nil", *v)
	}
}
