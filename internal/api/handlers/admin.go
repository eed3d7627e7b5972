// admin.go - административные списки, доступны только с ролью admin.
package handlers

import (
	"net/http"

	apierrors "github.com/Drim-Soft/planifika-users-api/internal/api/errors"
	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
)

// AdminListUsers - GET /admin/users?status=&type=&organization=&limit=&offset=.
func (h *APIHandler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	filter := model.UserFilter{Limit: limit, Offset: offset}

	status, err := queryInt(r, "status")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if filter.Status, err = narrowInt[model.UserStatus]("status", status); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	userType, err := queryInt(r, "type")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if filter.Type, err = narrowInt[model.UserType]("type", userType); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	filter.OrganizationID, err = queryInt(r, "organization")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	users, total, err := h.users.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userPageResponse{
		Items:   toUserResponses(users),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(users) < total,
	})
}

// AdminListStaff - GET /admin/staff?limit=&offset=.
func (h *APIHandler) AdminListStaff(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	staff, err := h.tickets.Staff(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]staffResponse, 0, len(staff))
	for _, s := range staff {
		out = append(out, staffResponse{
			ID:         s.ID,
			ExternalID: s.ExternalID,
			Status:     s.Status,
			RoleID:     s.RoleID,
			Name:       s.Name,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
