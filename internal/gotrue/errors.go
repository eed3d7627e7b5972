package gotrue

import (
	"errors"
	"fmt"
	"net/http"
)

// Ошибки клиента. Ошибка с HTTP-статусом всегда оборачивает и
// *ProviderError: статус и тело доступны через errors.As.
var (
	// ErrInvalidCredentials - ответ 4xx на Authenticate.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken - провайдер отклонил access token.
	ErrInvalidToken = errors.New("invalid or expired access token")
	// ErrUnavailable - сетевые ошибки и ответы 5xx.
	ErrUnavailable = errors.New("identity provider unavailable")
	// ErrMalformedResponse - ответ 2xx не удалось разобрать.
	ErrMalformedResponse = errors.New("malformed identity provider response")
)

// ProviderError - ответ провайдера со статусом не 2xx.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider %s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// classify добавляет sentinel-ошибку по статусу провайдера. clientErr выбирает
// sentinel для 4xx и может вернуть nil, оставив ошибку без него.
func classify(err error, clientErr func(status int) error) error {
	var perr *ProviderError
	if !errors.As(err, &perr) {
		return err
	}
	if perr.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %w", ErrUnavailable, perr)
	}
	if clientErr != nil {
		if sentinel := clientErr(perr.StatusCode); sentinel != nil {
			return fmt.Errorf("%w: %w", sentinel, perr)
		}
	}
	return perr
}

func credentialsError(int) error {
	return ErrInvalidCredentials
}

func tokenError(status int) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return ErrInvalidToken
	}
	return nil
}
