// tickets.go - сервис тикетов поддержки (БД внешней организации).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
	"github.com/Drim-Soft/planifika-users-api/internal/repository"
)

// TicketStore - хранилище тикетов.
type TicketStore interface {
	CreateWithStatus(ctx context.Context, t *model.Ticket, statusName string) error
	Get(ctx context.Context, id int) (*model.Ticket, error)
	List(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, error)
	Update(ctx context.Context, t *model.Ticket) error
	Delete(ctx context.Context, id int) error
}

// StaffDirectory - сотрудники внешней организации.
type StaffDirectory interface {
	GetByID(ctx context.Context, id int) (*model.Staff, error)
	List(ctx context.Context, limit, offset int) ([]*model.Staff, error)
}

// TicketView - тикет с именем статуса.
type TicketView struct {
	*model.Ticket
	// Пусто, если статус больше не существует.
	StatusName string
}

// TicketInput - данные нового тикета.
type TicketInput struct {
	RequesterID int
	Title       string
	Description string
}

// TicketUpdate - поля, изменяемые при обновлении тикета.
type TicketUpdate struct {
	StatusID   *int
	Answer     *string
	ResolverID *int
}

// TicketService - управление тикетами поддержки.
type TicketService struct {
	tickets  TicketStore
	statuses *StatusCatalog
	staff    StaffDirectory
	logger   *slog.Logger
}

// NewTicketService создаёт сервис тикетов.
func NewTicketService(tickets TicketStore, statuses *StatusCatalog, staff StaffDirectory, logger *slog.Logger) *TicketService {
	return &TicketService{
		tickets:  tickets,
		statuses: statuses,
		staff:    staff,
		logger:   logger.With(slog.String("component", "ticket_service")),
	}
}

// Create открывает тикет в статусе PENDING; статус создаётся при первом
// использовании. Ответ и исполнитель изначально пусты.
func (s *TicketService) Create(ctx context.Context, in TicketInput) (*TicketView, error) {
	if in.RequesterID <= 0 {
		return nil, validationError("requester id must be positive")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, validationError("title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, validationError("description is required")
	}

	ticket := &model.Ticket{
		RequesterID: in.RequesterID,
		Title:       in.Title,
		Description: in.Description,
	}
	if err := s.tickets.CreateWithStatus(ctx, ticket, model.StatusPending); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	s.statuses.Remember(&model.TicketStatus{ID: ticket.StatusID, Name: model.StatusPending})

	s.logger.Info("Тикет создан",
		slog.Int("ticket_id", ticket.ID),
		slog.Int("requester_id", ticket.RequesterID),
	)

	return &TicketView{Ticket: ticket, StatusName: model.StatusPending}, nil
}

// List возвращает все тикеты.
func (s *TicketService) List(ctx context.Context) ([]*TicketView, error) {
	return s.list(ctx, model.TicketFilter{})
}

// ListByRequester возвращает тикеты локального пользователя.
func (s *TicketService) ListByRequester(ctx context.Context, userID int) ([]*TicketView, error) {
	return s.list(ctx, model.TicketFilter{RequesterID: &userID})
}

// ListByStatus возвращает тикеты в статусе.
func (s *TicketService) ListByStatus(ctx context.Context, statusID int) ([]*TicketView, error) {
	return s.list(ctx, model.TicketFilter{StatusID: &statusID})
}

func (s *TicketService) list(ctx context.Context, filter model.TicketFilter) ([]*TicketView, error) {
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	views := make([]*TicketView, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, s.view(ctx, t))
	}
	return views, nil
}

// Get возвращает тикет по ID.
func (s *TicketService) Get(ctx context.Context, id int) (*TicketView, error) {
	ticket, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return s.view(ctx, ticket), nil
}

// Update меняет статус, ответ и исполнителя; отсутствующие поля не меняются.
func (s *TicketService) Update(ctx context.Context, id int, upd TicketUpdate) (*TicketView, error) {
	ticket, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}

	if upd.StatusID != nil {
		if _, err := s.statuses.Get(ctx, *upd.StatusID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, validationError("ticket status %d does not exist", *upd.StatusID)
			}
			return nil, err
		}
		ticket.StatusID = *upd.StatusID
	}
	if upd.Answer != nil {
		ticket.Answer = upd.Answer
	}
	if upd.ResolverID != nil {
		if _, err := s.staff.GetByID(ctx, *upd.ResolverID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, validationError("staff member %d does not exist", *upd.ResolverID)
			}
			return nil, fmt.Errorf("find staff member: %w", err)
		}
		ticket.ResolverID = upd.ResolverID
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, storeError(err)
	}
	return s.view(ctx, ticket), nil
}

// Delete удаляет тикет.
func (s *TicketService) Delete(ctx context.Context, id int) error {
	if err := s.tickets.Delete(ctx, id); err != nil {
		return storeError(err)
	}
	s.logger.Info("Тикет удалён", slog.Int("ticket_id", id))
	return nil
}

// Statuses возвращает справочник статусов тикетов.
func (s *TicketService) Statuses(ctx context.Context) ([]*model.TicketStatus, error) {
	statuses, err := s.statuses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ticket statuses: %w", err)
	}
	return statuses, nil
}

// Staff возвращает сотрудников внешней организации.
func (s *TicketService) Staff(ctx context.Context, limit, offset int) ([]*model.Staff, error) {
	staff, err := s.staff.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return staff, nil
}

func (s *TicketService) view(ctx context.Context, t *model.Ticket) *TicketView {
	return &TicketView{Ticket: t, StatusName: s.statuses.Name(ctx, t.StatusID)}
}
