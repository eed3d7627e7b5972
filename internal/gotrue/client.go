// Package gotrue - HTTP-клиент для identity provider, совместимого
// с GoTrue (Supabase Auth).
//
// Каждый запрос несёт публичный API-ключ в заголовке apikey. Запросы без
// токена пользователя авторизуются тем же ключом как bearer token.
// Повторных попыток клиент не делает.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxBodySize - максимальный размер читаемого ответа провайдера.
const maxBodySize = 1 << 20

// Client - клиент одного экземпляра GoTrue.
type Client struct {
	name    string // Метка для логов и метрик (primary, students)
	baseURL string // Базовый URL без завершающего слэша
	apiKey  string // Публичный (anon) API-ключ

	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент.
// name используется в логах и метриках. httpClient может быть nil -
// тогда используется клиент с таймаутом 30s.
func New(name, baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger: logger.With(
			slog.String("component", "gotrue_client"),
			slog.String("provider", name),
		),
	}
}

// --- HTTP-хелперы ---

// call выполняет один запрос и возвращает тело ответа 2xx.
// Сетевые ошибки оборачивают ErrUnavailable, прочие статусы - *ProviderError.
func (c *Client) call(ctx context.Context, op, method, path, accessToken string, payload any) ([]byte, error) {
	start := time.Now()
	defer func() {
		idpRequestDuration.WithLabelValues(c.name, op).Observe(time.Since(start).Seconds())
	}()

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}

	bearer := accessToken
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		idpRequestsTotal.WithLabelValues(c.name, op, outcomeNetworkError).Inc()
		c.logger.Warn("Ошибка запроса к identity provider",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		idpRequestsTotal.WithLabelValues(c.name, op, outcomeNetworkError).Inc()
		return nil, fmt.Errorf("%s: read response: %w: %w", op, ErrUnavailable, err)
	}

	idpRequestsTotal.WithLabelValues(c.name, op, outcomeForStatus(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("Identity provider вернул ошибку",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
		)
		return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode, Body: string(data)}
	}

	return data, nil
}

func decode(op string, data []byte, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrMalformedResponse, err)
	}
	return nil
}

// --- Auth API ---

// Register создаёт учётную запись (POST /auth/v1/signup).
// В зависимости от настроек провайдера ответ - сессия с вложенным user
// или сам user; принимаются оба варианта.
func (c *Client) Register(ctx context.Context, email, password string) (*Registration, error) {
	const op = "signup"

	data, err := c.call(ctx, op, http.MethodPost, "/auth/v1/signup", "", credentials{Email: email, Password: password})
	if err != nil {
		return nil, classify(err, nil)
	}

	var envelope struct {
		ID   string `json:"id"`
		User *User  `json:"user"`
	}
	if err := decode(op, data, &envelope); err != nil {
		return nil, err
	}

	reg := &Registration{Raw: json.RawMessage(data)}
	switch {
	case envelope.User != nil && envelope.User.ID != "":
		reg.SubjectID = envelope.User.ID
		reg.User = envelope.User
	case envelope.ID != "":
		reg.SubjectID = envelope.ID
		user := &User{}
		if err := decode(op, data, user); err != nil {
			return nil, err
		}
		reg.User = user
	}
	if reg.User != nil {
		reg.User.Raw = reg.Raw
	}

	return reg, nil
}

// Authenticate выполняет password grant (POST /auth/v1/token?grant_type=password).
func (c *Client) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	const op = "token"

	data, err := c.call(ctx, op, http.MethodPost, "/auth/v1/token?grant_type=password", "",
		credentials{Email: email, Password: password})
	if err != nil {
		return nil, classify(err, credentialsError)
	}

	session := &Session{}
	if err := decode(op, data, session); err != nil {
		return nil, err
	}
	session.Raw = json.RawMessage(data)

	return session, nil
}

// FetchProfile возвращает пользователя по access token (GET /auth/v1/user).
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*User, error) {
	const op = "get_user"

	data, err := c.call(ctx, op, http.MethodGet, "/auth/v1/user", accessToken, nil)
	if err != nil {
		return nil, classify(err, tokenError)
	}

	user := &User{}
	if err := decode(op, data, user); err != nil {
		return nil, err
	}
	user.Raw = json.RawMessage(data)

	return user, nil
}

// UpdateProfile меняет пароль и метаданные профиля владельца токена
// (PUT /auth/v1/user). Отправляются только заданные поля.
func (c *Client) UpdateProfile(ctx context.Context, accessToken string, update ProfileUpdate) (json.RawMessage, error) {
	const op = "update_user"

	data, err := c.call(ctx, op, http.MethodPut, "/auth/v1/user", accessToken, update.payload())
	if err != nil {
		return nil, classify(err, tokenError)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedResponse)
	}
	return json.RawMessage(data), nil
}

// --- Проверка готовности ---

// Name - имя провайдера в отчёте готовности.
func (c *Client) Name() string {
	return "idp_" + c.name
}

// CheckReady проверяет GET /auth/v1/health.
// Реализует handlers.ReadinessChecker.
func (c *Client) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.call(ctx, "health", http.MethodGet, "/auth/v1/health", "", nil); err != nil {
		return "fail", fmt.Sprintf("identity provider %s unavailable: %v", c.name, err)
	}
	return "ok", fmt.Sprintf("identity provider %s reachable", c.name)
}
