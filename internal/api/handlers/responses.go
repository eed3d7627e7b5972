// responses.go - JSON-представления API и их построение из доменных моделей.
package handlers

import (
	"encoding/json"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
	"github.com/Drim-Soft/planifika-users-api/internal/service"
)

type userResponse struct {
	ID             int                 `json:"idUser"`
	Name           string              `json:"name"`
	PhotoURL       *string             `json:"photoUrl"`
	Status         int                 `json:"idUserStatus"`
	Type           int                 `json:"idUserType"`
	OrganizationID *int                `json:"idOrganization"`
	ExternalID     *openapi_types.UUID `json:"supabaseUserId"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Name:           u.Name,
		PhotoURL:       u.PhotoURL,
		Status:         int(u.Status),
		Type:           int(u.Type),
		OrganizationID: u.OrganizationID,
		ExternalID:     u.ExternalID,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func toUserResponses(users []*model.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

type userPageResponse struct {
	Items   []userResponse `json:"items"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"hasMore"`
}

type signUpResponse struct {
	Auth  json.RawMessage `json:"auth"`
	Local userResponse    `json:"local"`
}

type profileResponse struct {
	UserID         int                `json:"userId"`
	Name           string             `json:"name"`
	Email          string             `json:"email"`
	PhotoURL       *string            `json:"photoUrl"`
	UserType       int                `json:"userType"`
	UserStatus     int                `json:"userStatus"`
	OrganizationID *int               `json:"idOrganization"`
	ExternalID     openapi_types.UUID `json:"supabaseUserId"`
	Created        bool               `json:"created"`
}

func toProfileResponse(res *service.ProfileResult) profileResponse {
	resp := profileResponse{
		UserID:         res.User.ID,
		Name:           res.User.Name,
		PhotoURL:       res.User.PhotoURL,
		UserType:       int(res.User.Type),
		UserStatus:     int(res.User.Status),
		OrganizationID: res.User.OrganizationID,
		Created:        res.Created,
	}
	if res.Identity != nil {
		resp.Email = res.Identity.Email
	}
	if res.User.ExternalID != nil {
		resp.ExternalID = *res.User.ExternalID
	}
	return resp
}

type profileUpdateResponse struct {
	ExternalID   openapi_types.UUID `json:"supabaseUserId"`
	Auth         json.RawMessage    `json:"auth"`
	Local        *userResponse      `json:"local"`
	LocalSkipped bool               `json:"localSkipped"`
	Skipped      []string           `json:"skipped"`
}

func toProfileUpdateResponse(res *service.UpdateProfileResult) profileUpdateResponse {
	resp := profileUpdateResponse{
		ExternalID:   res.SubjectID,
		Auth:         res.AuthOutcome,
		LocalSkipped: res.LocalSkipped,
		Skipped:      res.Skipped,
	}
	if res.LocalOutcome != nil {
		local := toUserResponse(res.LocalOutcome)
		resp.Local = &local
	}
	if resp.Skipped == nil {
		resp.Skipped = []string{}
	}
	return resp
}

type externalLoginResponse struct {
	User        userResponse `json:"user"`
	AccessToken string       `json:"access_token"` //nolint:gosec // G117: token payload
	TokenSource string       `json:"tokenSource"`
	Created     bool         `json:"created"`
	Repaired    bool         `json:"repaired"`
}

type ticketResponse struct {
	ID          int     `json:"idTickets"`
	RequesterID int     `json:"idPlanifikaUser"`
	StatusID    int     `json:"idTicketStatus"`
	StatusName  *string `json:"ticketStatusName"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Answer      *string `json:"answer"`
	ResolverID  *int    `json:"idDrimsoftUser"`
}

func toTicketResponse(t *service.TicketView) ticketResponse {
	resp := ticketResponse{
		ID:          t.ID,
		RequesterID: t.RequesterID,
		StatusID:    t.StatusID,
		Title:       t.Title,
		Description: t.Description,
		Answer:      t.Answer,
		ResolverID:  t.ResolverID,
	}
	if t.StatusName != "" {
		name := t.StatusName
		resp.StatusName = &name
	}
	return resp
}

func toTicketResponses(tickets []*service.TicketView) []ticketResponse {
	out := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, toTicketResponse(t))
	}
	return out
}

type ticketStatusResponse struct {
	ID   int    `json:"idTicketStatus"`
	Name string `json:"name"`
}

type staffResponse struct {
	ID         int                 `json:"idUser"`
	ExternalID *openapi_types.UUID `json:"supabaseUserId"`
	Status     *int                `json:"idUserStatus"`
	RoleID     *int                `json:"idRole"`
	Name       *string             `json:"name"`
}

// detailResponse - подтверждение удаления.
type detailResponse struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}
