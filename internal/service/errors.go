// errors.go - бизнес-ошибки сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/Drim-Soft/planifika-users-api/internal/repository"
)

var (
	// ErrNotFound - ресурс не найден.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict - ресурс уже существует.
	ErrConflict = errors.New("conflict: resource already exists")
	// ErrValidation - невалидные входные данные.
	ErrValidation = errors.New("validation error")
	// ErrNoFieldsProvided - в обновлении профиля нечего менять.
	ErrNoFieldsProvided = errors.New("at least one of name, password or photourl is required")
	// ErrMalformedProviderResponse - identity provider ответил без
	// пригодного subject.
	ErrMalformedProviderResponse = errors.New("identity provider returned no valid subject")
	// ErrConcurrentProvisioning - того же локального пользователя раньше
	// создал другой запрос.
	ErrConcurrentProvisioning = errors.New("local user is being provisioned concurrently")
	// ErrProfileNotProvisioned - локального пользователя нет,
	// а автосоздание выключено.
	ErrProfileNotProvisioned = errors.New("no local user for this identity")
)

// storeError переводит ошибки репозитория в ошибки сервиса,
// сохраняя исходную в цепочке.
func storeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return err
	}
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
