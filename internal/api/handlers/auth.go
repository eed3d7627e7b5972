// auth.go - регистрация, вход, вход студента и профиль владельца токена.
package handlers

import (
	"net/http"

	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/Drim-Soft/planifika-users-api/internal/api/errors"
	"github.com/Drim-Soft/planifika-users-api/internal/api/middleware"
	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
	"github.com/Drim-Soft/planifika-users-api/internal/service"
)

type signUpRequest struct {
	Name           string              `json:"name"`
	Email          openapi_types.Email `json:"email"`
	Password       string              `json:"password"` //nolint:gosec // G117: request payload
	PhotoURL       *string             `json:"photoUrl"`
	UserRole       *int                `json:"userRole"`
	OrganizationID *int                `json:"idOrganization"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // G117: request payload
}

type profileUpdateRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"` //nolint:gosec // G117: request payload
	PhotoURL *string `json:"photourl"`
}

// SignUp - POST /auth/signup.
func (h *APIHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := service.SignUpInput{
		Email:          string(req.Email),
		Password:       req.Password,
		Name:           req.Name,
		PhotoURL:       req.PhotoURL,
		OrganizationID: req.OrganizationID,
	}
	if req.UserRole != nil {
		t := model.UserType(*req.UserRole)
		in.RoleHint = &t
	}

	res, err := h.identity.SignUp(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, signUpResponse{
		Auth:  res.Auth,
		Local: toUserResponse(res.Local),
	})
}

// SignIn - POST /auth/login. Ответ провайдера возвращается как есть.
func (h *APIHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	payload, err := h.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// ExternalLogin - POST /auth/external-login.
func (h *APIHandler) ExternalLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.identity.ExternalLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, externalLoginResponse{
		User:        toUserResponse(res.User),
		AccessToken: res.AccessToken,
		TokenSource: res.TokenSource,
		Created:     res.Created,
		Repaired:    res.Repaired,
	})
}

// GetProfile - GET /auth/me.
func (h *APIHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	token, msg := middleware.BearerToken(r)
	if token == "" {
		apierrors.Unauthorized(w, msg)
		return
	}

	res, err := h.identity.Profile(r.Context(), token)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(res))
}

// UpdateProfile - PATCH /auth/me.
func (h *APIHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	token, msg := middleware.BearerToken(r)
	if token == "" {
		apierrors.Unauthorized(w, msg)
		return
	}

	var req profileUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.identity.UpdateProfile(r.Context(), token, service.ProfileChanges{
		Name:     req.Name,
		Password: req.Password,
		PhotoURL: req.PhotoURL,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileUpdateResponse(res))
}
