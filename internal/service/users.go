// users.go - сервис администрирования локальных пользователей.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
	"github.com/Drim-Soft/planifika-users-api/internal/domain/rbac"
)

// UserService управляет локальными пользователями напрямую, без identity provider.
type UserService struct {
	users  UserStore
	logger *slog.Logger
}

// NewUserService создаёт сервис администрирования пользователей.
func NewUserService(users UserStore, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger.With(slog.String("component", "user_service")),
	}
}

// UserInput - полное представление пользователя для создания и замены.
type UserInput struct {
	Name           string
	PhotoURL       *string
	Status         *model.UserStatus
	Type           *model.UserType
	OrganizationID *int
	ExternalID     *uuid.UUID
}

// UserPatch - поля частичного обновления.
type UserPatch struct {
	Name           *string
	PhotoURL       *string
	Type           *model.UserType
	OrganizationID *int
}

// List возвращает страницу пользователей и общее число по фильтру.
func (s *UserService) List(ctx context.Context, filter model.UserFilter) ([]*model.User, int, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	total, err := s.users.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// Get возвращает пользователя по ID.
func (s *UserService) Get(ctx context.Context, id int) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return user, nil
}

// Create сохраняет нового пользователя. По умолчанию статус active, тип default.
func (s *UserService) Create(ctx context.Context, in UserInput) (*model.User, error) {
	if err := validateUserInput(in); err != nil {
		return nil, err
	}

	user := &model.User{
		Name:           strings.TrimSpace(in.Name),
		PhotoURL:       in.PhotoURL,
		Status:         model.StatusActive,
		Type:           model.TypeDefault,
		OrganizationID: in.OrganizationID,
		ExternalID:     in.ExternalID,
	}
	if in.Status != nil {
		user.Status = *in.Status
	}
	if in.Type != nil {
		user.Type = *in.Type
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeError(err)
	}

	s.logger.Info("Пользователь создан", slog.Int("user_id", user.ID))
	return user, nil
}

// Replace перезаписывает имя, фото, тип и организацию пользователя.
// Отсутствующий тип сбрасывается в default. Статус и внешний ID сохраняются.
func (s *UserService) Replace(ctx context.Context, id int, in UserInput) (*model.User, error) {
	if err := validateUserInput(in); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}

	user.Name = strings.TrimSpace(in.Name)
	user.PhotoURL = in.PhotoURL
	user.OrganizationID = in.OrganizationID
	user.Type = model.TypeDefault
	if in.Type != nil {
		user.Type = *in.Type
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, storeError(err)
	}
	return user, nil
}

// Patch меняет только переданные поля.
func (s *UserService) Patch(ctx context.Context, id int, p UserPatch) (*model.User, error) {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return nil, validationError("name must not be blank")
	}
	if p.Type != nil && !p.Type.Valid() {
		return nil, validationError("unknown user type %d", *p.Type)
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}

	if p.Name != nil {
		user.Name = strings.TrimSpace(*p.Name)
	}
	if p.PhotoURL != nil {
		user.PhotoURL = p.PhotoURL
	}
	if p.Type != nil {
		user.Type = *p.Type
	}
	if p.OrganizationID != nil {
		user.OrganizationID = p.OrganizationID
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, storeError(err)
	}
	return user, nil
}

// UpdateStatus задаёт статус по имени (ACTIVE или DELETED, любой регистр).
func (s *UserService) UpdateStatus(ctx context.Context, id int, statusName string) (*model.User, error) {
	status, ok := rbac.ParseStatus(statusName)
	if !ok {
		return nil, validationError("invalid status %q, allowed: ACTIVE, DELETED", statusName)
	}
	return s.setStatus(ctx, id, status)
}

// Delete помечает пользователя удалённым. Строки не удаляются.
func (s *UserService) Delete(ctx context.Context, id int) error {
	_, err := s.setStatus(ctx, id, model.StatusDeleted)
	return err
}

func (s *UserService) setStatus(ctx context.Context, id int, status model.UserStatus) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}

	user.Status = status
	if err := s.users.Save(ctx, user); err != nil {
		return nil, storeError(err)
	}

	s.logger.Info("Статус пользователя изменён",
		slog.Int("user_id", id),
		slog.String("status", rbac.StatusName(status)),
	)
	return user, nil
}

func validateUserInput(in UserInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return validationError("name is required")
	}
	if in.Type != nil && !in.Type.Valid() {
		return validationError("unknown user type %d", *in.Type)
	}
	if in.Status != nil && *in.Status != model.StatusActive && *in.Status != model.StatusDeleted {
		return validationError("unknown user status %d", *in.Status)
	}
	return nil
}
