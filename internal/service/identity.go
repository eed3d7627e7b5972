// Package service - бизнес-логика Users API.
// identity.go - согласование учётных записей IdP с локальными пользователями.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
	"github.com/Drim-Soft/planifika-users-api/internal/domain/rbac"
	"github.com/Drim-Soft/planifika-users-api/internal/gotrue"
	"github.com/Drim-Soft/planifika-users-api/internal/repository"
)

// Источник токена при внешнем входе.
const (
	TokenSourceService  = "service"
	TokenSourceProvider = "provider"
)

// IdentityProvider - часть клиента GoTrue, используемая сервисом.
type IdentityProvider interface {
	Register(ctx context.Context, email, password string) (*gotrue.Registration, error)
	Authenticate(ctx context.Context, email, password string) (*gotrue.Session, error)
	FetchProfile(ctx context.Context, accessToken string) (*gotrue.User, error)
	UpdateProfile(ctx context.Context, accessToken string, update gotrue.ProfileUpdate) (json.RawMessage, error)
}

// UserStore - хранилище локальных пользователей.
type UserStore interface {
	FindByID(ctx context.Context, id int) (*model.User, error)
	FindByExternalID(ctx context.Context, externalID uuid.UUID) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
	Save(ctx context.Context, u *model.User) error
	List(ctx context.Context, filter model.UserFilter) ([]*model.User, error)
	Count(ctx context.Context, filter model.UserFilter) (int, error)
}

// StudentDirectory - поиск студентов в студенческой системе.
type StudentDirectory interface {
	FindByExternalID(ctx context.Context, externalID uuid.UUID) (*model.Student, error)
}

// IdentityOptions - параметры IdentityService.
type IdentityOptions struct {
	// Создавать локального пользователя при первом чтении профиля.
	AutoProvision bool
	// Токен, выдаваемый студентам вместо их собственного.
	StudentServiceToken string
}

// IdentityService связывает identity providers и локальных пользователей.
type IdentityService struct {
	provider        IdentityProvider
	studentProvider IdentityProvider
	users           UserStore
	students        StudentDirectory
	opts            IdentityOptions
	logger          *slog.Logger
}

// NewIdentityService создаёт сервис согласования учётных записей.
func NewIdentityService(
	provider IdentityProvider,
	studentProvider IdentityProvider,
	users UserStore,
	students StudentDirectory,
	opts IdentityOptions,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		provider:        provider,
		studentProvider: studentProvider,
		users:           users,
		students:        students,
		opts:            opts,
		logger:          logger.With(slog.String("component", "identity_service")),
	}
}

// --- SignUp / SignIn ---

// SignUpInput - данные новой учётной записи.
type SignUpInput struct {
	Email          string
	Password       string
	Name           string
	PhotoURL       *string
	RoleHint       *model.UserType
	OrganizationID *int
}

// SignUpResult - ответ провайдера и сохранённый локальный пользователь.
type SignUpResult struct {
	Auth  json.RawMessage
	Local *model.User
}

// SignUp регистрирует учётную запись у провайдера, затем сохраняет
// локального пользователя.
//
// Две записи не атомарны. Если локальная вставка не удалась, учётная запись
// у провайдера остаётся без локального пользователя: это логируется и
// учитывается в метрике, вызывающий получает ошибку.
func (s *IdentityService) SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error) {
	if err := validateSignUp(in); err != nil {
		return nil, err
	}

	reg, err := s.provider.Register(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	subject, err := parseSubject(reg.SubjectID)
	if err != nil {
		return nil, err
	}

	userType := model.TypeDefault
	if in.RoleHint != nil {
		userType = *in.RoleHint
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = nameFromEmail(in.Email)
	}

	user := &model.User{
		Name:           name,
		PhotoURL:       in.PhotoURL,
		Status:         model.StatusActive,
		Type:           userType,
		OrganizationID: in.OrganizationID,
		ExternalID:     &subject,
	}
	if err := s.users.Create(ctx, user); err != nil {
		orphanProviderAccountsTotal.Inc()
		s.logger.Warn("Учётная запись у провайдера создана, но локальный пользователь не сохранён",
			slog.String("subject", subject.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("store local user for subject %s: %w", subject, storeError(err))
	}

	usersProvisionedTotal.WithLabelValues(sourceSignUp).Inc()
	s.logger.Info("Пользователь зарегистрирован",
		slog.String("subject", subject.String()),
		slog.Int("user_id", user.ID),
	)

	return &SignUpResult{Auth: reg.Raw, Local: user}, nil
}

func validateSignUp(in SignUpInput) error {
	if strings.TrimSpace(in.Email) == "" || !strings.Contains(in.Email, "@") {
		return validationError("a valid email is required")
	}
	if in.Password == "" {
		return validationError("password is required")
	}
	if in.RoleHint != nil && !in.RoleHint.Valid() {
		return validationError("unknown user type %d", *in.RoleHint)
	}
	return nil
}

// SignIn возвращает ответ провайдера с токеном как есть. Локальных изменений нет.
func (s *IdentityService) SignIn(ctx context.Context, email, password string) (json.RawMessage, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, validationError("email and password are required")
	}

	session, err := s.provider.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return session.Raw, nil
}

// --- Профиль ---

// ProfileResult - локальный пользователь вместе с данными провайдера.
type ProfileResult struct {
	User     *model.User
	Identity *gotrue.User
	// true, если локальный пользователь создан этим вызовом.
	Created bool
}

// Profile определяет владельца токена и возвращает локального пользователя.
// Если пользователя нет и автосоздание разрешено, создаёт его из claims провайдера.
func (s *IdentityService) Profile(ctx context.Context, accessToken string) (*ProfileResult, error) {
	identity, err := s.provider.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	subject, err := parseSubject(identity.ID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByExternalID(ctx, subject)
	if err == nil {
		return &ProfileResult{User: user, Identity: identity}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find local user: %w", err)
	}

	if !s.opts.AutoProvision {
		return nil, fmt.Errorf("%w: subject %s", ErrProfileNotProvisioned, subject)
	}

	user = userFromClaims(identity, subject)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: subject %s", ErrConcurrentProvisioning, subject)
		}
		return nil, fmt.Errorf("provision local user: %w", err)
	}

	usersProvisionedTotal.WithLabelValues(sourceProfile).Inc()
	s.logger.Info("Локальный пользователь создан из профиля",
		slog.String("subject", subject.String()),
		slog.Int("user_id", user.ID),
		slog.Int("user_type", int(user.Type)),
	)

	return &ProfileResult{User: user, Identity: identity, Created: true}, nil
}

// userFromClaims строит локального пользователя из claims провайдера.
func userFromClaims(identity *gotrue.User, subject uuid.UUID) *model.User {
	name := identity.Metadata("full_name", "name")
	if name == "" {
		name = nameFromEmail(identity.Email)
	}

	var photo *string
	if p := identity.Metadata("photourl", "avatar_url"); p != "" {
		photo = &p
	}

	return &model.User{
		Name:       name,
		PhotoURL:   photo,
		Status:     model.StatusActive,
		Type:       rbac.TypeForRoles(identity.Roles()),
		ExternalID: &subject,
	}
}

// --- UpdateProfile ---

// ProfileChanges - запрошенные изменения профиля. nil или пустая строка - без изменений.
type ProfileChanges struct {
	Name     *string
	Password *string
	PhotoURL *string
}

// UpdateProfileResult - результат обеих частей обновления профиля.
type UpdateProfileResult struct {
	SubjectID uuid.UUID
	// Ответ провайдера.
	AuthOutcome json.RawMessage
	// Сохранённый локальный пользователь; nil при LocalSkipped.
	LocalOutcome *model.User
	// true, если не менялись ни имя, ни фото.
	LocalSkipped bool
	// Поля, которые не запрашивались.
	Skipped []string
}

// UpdateProfile обновляет профиль у провайдера и переносит имя и фото
// в локального пользователя. Пароль уходит только провайдеру.
func (s *IdentityService) UpdateProfile(ctx context.Context, accessToken string, changes ProfileChanges) (*UpdateProfileResult, error) {
	name := nonBlank(changes.Name)
	password := nonBlank(changes.Password)
	photo := nonBlank(changes.PhotoURL)

	if name == nil && password == nil && photo == nil {
		return nil, ErrNoFieldsProvided
	}

	identity, err := s.provider.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	subject, err := parseSubject(identity.ID)
	if err != nil {
		return nil, err
	}

	authOutcome, err := s.provider.UpdateProfile(ctx, accessToken, gotrue.ProfileUpdate{
		Password: password,
		Name:     name,
		PhotoURL: photo,
	})
	if err != nil {
		return nil, err
	}

	result := &UpdateProfileResult{SubjectID: subject, AuthOutcome: authOutcome}
	if name == nil {
		result.Skipped = append(result.Skipped, "name")
	}
	if password == nil {
		result.Skipped = append(result.Skipped, "password")
	}
	if photo == nil {
		result.Skipped = append(result.Skipped, "photourl")
	}

	if name == nil && photo == nil {
		result.LocalSkipped = true
		return result, nil
	}

	user, err := s.mirrorProfile(ctx, subject, name, photo)
	if err != nil {
		s.logger.Error("Профиль у провайдера обновлён, локальный пользователь - нет",
			slog.String("subject", subject.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("provider profile updated, local update failed: %w", err)
	}
	result.LocalOutcome = user

	return result, nil
}

func (s *IdentityService) mirrorProfile(ctx context.Context, subject uuid.UUID, name, photo *string) (*model.User, error) {
	user, err := s.users.FindByExternalID(ctx, subject)
	if err != nil {
		return nil, storeError(err)
	}
	if name != nil {
		user.Name = *name
	}
	if photo != nil {
		user.PhotoURL = photo
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, storeError(err)
	}
	return user, nil
}

// --- ExternalLogin ---

// ExternalLoginResult - результат входа студента.
type ExternalLoginResult struct {
	User        *model.User
	AccessToken string
	// TokenSourceService или TokenSourceProvider.
	TokenSource string
	Created     bool
	Repaired    bool
}

// ExternalLogin аутентифицирует через студенческий провайдер и гарантирует
// наличие рабочего локального пользователя.
//
// Известный неактивный пользователь или пользователь без типа повторно
// активируется как студент. Неизвестный создаётся по данным студенческой
// системы. Студенты получают сервисный токен, остальные - токен провайдера.
func (s *IdentityService) ExternalLogin(ctx context.Context, email, password string) (*ExternalLoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, validationError("email and password are required")
	}

	session, err := s.studentProvider.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if session.User == nil {
		return nil, fmt.Errorf("%w: session without user", ErrMalformedProviderResponse)
	}
	subject, err := parseSubject(session.User.ID)
	if err != nil {
		return nil, err
	}

	result := &ExternalLoginResult{}

	user, err := s.users.FindByExternalID(ctx, subject)
	switch {
	case err == nil:
		if user.ID <= 0 {
			return nil, fmt.Errorf("local user for subject %s has invalid id %d", subject, user.ID)
		}
		if user.NeedsRepair() {
			user.Type = model.TypeStudent
			user.Status = model.StatusActive
			if err := s.users.Save(ctx, user); err != nil {
				return nil, fmt.Errorf("repair local user: %w", storeError(err))
			}
			result.Repaired = true
			usersRepairedTotal.Inc()
			s.logger.Info("Локальный пользователь повторно активирован как студент",
				slog.String("subject", subject.String()),
				slog.Int("user_id", user.ID),
			)
		}

	case errors.Is(err, repository.ErrNotFound):
		user, err = s.provisionStudent(ctx, subject)
		if err != nil {
			return nil, err
		}
		result.Created = true

	default:
		return nil, fmt.Errorf("find local user: %w", err)
	}

	result.User = user
	if user.Type == model.TypeStudent {
		result.AccessToken = s.opts.StudentServiceToken
		result.TokenSource = TokenSourceService
	} else {
		result.AccessToken = session.AccessToken
		result.TokenSource = TokenSourceProvider
	}

	return result, nil
}

func (s *IdentityService) provisionStudent(ctx context.Context, subject uuid.UUID) (*model.User, error) {
	student, err := s.students.FindByExternalID(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: student %s is not in the directory", ErrNotFound, subject)
		}
		return nil, fmt.Errorf("find student: %w", err)
	}

	user := &model.User{
		Name:       student.Name,
		PhotoURL:   student.PhotoURL,
		Status:     model.StatusActive,
		Type:       model.TypeStudent,
		ExternalID: &subject,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: subject %s", ErrConcurrentProvisioning, subject)
		}
		return nil, fmt.Errorf("create student user: %w", err)
	}

	usersProvisionedTotal.WithLabelValues(sourceExternal).Inc()
	s.logger.Info("Создан пользователь-студент",
		slog.String("subject", subject.String()),
		slog.Int("user_id", user.ID),
	)
	return user, nil
}

// --- Вспомогательные функции ---

func parseSubject(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: empty subject", ErrMalformedProviderResponse)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject %q: %w", ErrMalformedProviderResponse, raw, err)
	}
	return id, nil
}

// nameFromEmail возвращает локальную часть email или сам email.
func nameFromEmail(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

func nonBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
