package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/Drim-Soft/planifika-users-api/internal/api/errors"
	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
	"github.com/Drim-Soft/planifika-users-api/internal/service"
)

type userRequest struct {
	Name           string              `json:"name"`
	PhotoURL       *string             `json:"photoUrl"`
	Status         *int                `json:"idUserStatus"`
	Type           *int                `json:"idUserType"`
	OrganizationID *int                `json:"idOrganization"`
	ExternalID     *openapi_types.UUID `json:"supabaseUserId"`
}

func (req userRequest) input() (service.UserInput, error) {
	in := service.UserInput{
		Name:           req.Name,
		PhotoURL:       req.PhotoURL,
		OrganizationID: req.OrganizationID,
		ExternalID:     req.ExternalID,
	}
	var err error
	if in.Status, err = narrowInt[model.UserStatus]("idUserStatus", req.Status); err != nil {
		return in, err
	}
	if in.Type, err = narrowInt[model.UserType]("idUserType", req.Type); err != nil {
		return in, err
	}
	return in, nil
}

type userPatchRequest struct {
	Name           *string `json:"name"`
	PhotoURL       *string `json:"photoUrl"`
	Type           *int    `json:"idUserType"`
	OrganizationID *int    `json:"idOrganization"`
}

// ListUsers - GET /users.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, _, err := h.users.List(r.Context(), model.UserFilter{})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponses(users))
}

// GetUser - GET /users/{id}.
func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// CreateUser - POST /users.
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in, err := req.input()
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	user, err := h.users.Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// ReplaceUser - PUT /users/{id}.
func (h *APIHandler) ReplaceUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var req userRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in, err := req.input()
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	user, err := h.users.Replace(r.Context(), id, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// PatchUser - PATCH /users/{id}.
func (h *APIHandler) PatchUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var req userPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := service.UserPatch{
		Name:           req.Name,
		PhotoURL:       req.PhotoURL,
		OrganizationID: req.OrganizationID,
	}
	if patch.Type, err = narrowInt[model.UserType]("idUserType", req.Type); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	user, err := h.users.Patch(r.Context(), id, patch)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateUserStatus - PATCH /users/{id}/status/{status}.
func (h *APIHandler) UpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	user, err := h.users.UpdateStatus(r.Context(), id, chi.URLParam(r, "status"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// DeleteUser - DELETE /users/{id}. Мягкое удаление.
func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{
		Status: http.StatusOK,
		Detail: "User deleted successfully",
	})
}
