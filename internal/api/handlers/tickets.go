package handlers

import (
	"net/http"

	apierrors "github.com/Drim-Soft/planifika-users-api/internal/api/errors"
	"github.com/Drim-Soft/planifika-users-api/internal/service"
)

type ticketCreateRequest struct {
	RequesterID int    `json:"idPlanifikaUser"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type ticketUpdateRequest struct {
	StatusID   *int    `json:"idTicketStatus"`
	Answer     *string `json:"answer"`
	ResolverID *int    `json:"idDrimsoftUser"`
}

// ListTickets - GET /tickets.
func (h *APIHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.tickets.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketResponses(tickets))
}

// ListTicketsByUser - GET /tickets/user/{userId}.
func (h *APIHandler) ListTicketsByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	tickets, err := h.tickets.ListByRequester(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketResponses(tickets))
}

// ListTicketsByStatus - GET /tickets/status/{statusId}.
func (h *APIHandler) ListTicketsByStatus(w http.ResponseWriter, r *http.Request) {
	statusID, err := pathID(r, "statusId")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	tickets, err := h.tickets.ListByStatus(r.Context(), statusID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketResponses(tickets))
}

// ListTicketStatuses - GET /tickets/statuses.
func (h *APIHandler) ListTicketStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.tickets.Statuses(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]ticketStatusResponse, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, ticketStatusResponse{ID: s.ID, Name: s.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTicket - GET /tickets/{id}.
func (h *APIHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	ticket, err := h.tickets.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketResponse(ticket))
}

// CreateTicket - POST /tickets. Новый тикет создаётся в статусе PENDING.
func (h *APIHandler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req ticketCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ticket, err := h.tickets.Create(r.Context(), service.TicketInput{
		RequesterID: req.RequesterID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTicketResponse(ticket))
}

// UpdateTicket - PUT /tickets/{id}. Отсутствующие поля не меняются.
func (h *APIHandler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var req ticketUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ticket, err := h.tickets.Update(r.Context(), id, service.TicketUpdate{
		StatusID:   req.StatusID,
		Answer:     req.Answer,
		ResolverID: req.ResolverID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketResponse(ticket))
}

// DeleteTicket - DELETE /tickets/{id}.
func (h *APIHandler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if err := h.tickets.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{
		Status: http.StatusOK,
		Detail: "Ticket deleted successfully",
	})
}
