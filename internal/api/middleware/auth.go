// auth.go - JWT middleware Users API.
// Токены выдаёт identity provider. Подпись проверяется по JWKS провайдера
// (RS256/ES256), а без URL JWKS - общим секретом проекта (HS256).
// Роли берутся из role, user_role и app_metadata.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/Drim-Soft/planifika-users-api/internal/api/errors"
	"github.com/Drim-Soft/planifika-users-api/internal/domain/rbac"
)

type contextKey string

// ContextKeyClaims - ключ *AuthClaims в контексте запроса.
const ContextKeyClaims contextKey = "jwt_claims"

// AuthClaims - claims, необходимые обработчикам.
type AuthClaims struct {
	// Идентификатор пользователя у провайдера (sub).
	Subject string
	Email   string
	// Нормализованные роли: нижний регистр, без дубликатов.
	Roles []string
}

// HasAnyRole проверяет наличие хотя бы одной из ролей.
func (c *AuthClaims) HasAnyRole(roles ...string) bool {
	return rbac.HasAnyRole(c.Roles, roles)
}

// tokenClaims - payload access token GoTrue.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email       string       `json:"email"`
	Role        string       `json:"role"`
	UserRole    string       `json:"user_role"`
	AppMetadata *appMetadata `json:"app_metadata,omitempty"`
}

type appMetadata struct {
	Role     string   `json:"role"`
	UserRole string   `json:"user_role"`
	Roles    []string `json:"roles"`
}

func (c *tokenClaims) roles() []string {
	roles := []string{c.Role, c.UserRole}
	if c.AppMetadata != nil {
		roles = append(roles, c.AppMetadata.Role, c.AppMetadata.UserRole)
		roles = append(roles, c.AppMetadata.Roles...)
	}
	return rbac.NormalizeRoles(roles)
}

// JWTAuth - валидация bearer-токенов.
type JWTAuth struct {
	keyfunc  func(ctx context.Context) jwt.Keyfunc
	methods  []string
	issuer   string
	audience string
	leeway   time.Duration
	logger   *slog.Logger
}

// NewJWTAuth создаёт middleware по JWKS провайдера. Ключи обновляются
// в фоне каждые refreshInterval. Недоступность JWKS при старте не
// является ошибкой.
func NewJWTAuth(
	jwksURL string,
	issuer, audience string,
	refreshInterval time.Duration,
	leeway time.Duration,
	httpClient *http.Client,
	logger *slog.Logger,
) (*JWTAuth, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("create keyfunc: %w", err)
	}

	auth := NewJWTAuthWithKeyfunc(k, issuer, audience, logger)
	auth.leeway = leeway
	return auth, nil
}

// NewJWTAuthWithKeyfunc создаёт middleware с готовым keyfunc.
// Используется в тестах с JWK set в памяти.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, issuer, audience string, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		keyfunc:  kf.KeyfuncCtx,
		methods:  []string{"RS256", "ES256"},
		issuer:   issuer,
		audience: audience,
		logger:   logger.With(slog.String("component", "jwt_auth")),
	}
}

// NewJWTAuthWithSecret создаёт middleware для токенов HS256,
// подписанных секретом проекта.
func NewJWTAuthWithSecret(secret []byte, issuer, audience string, leeway time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		keyfunc: func(context.Context) jwt.Keyfunc {
			return func(*jwt.Token) (any, error) { return secret, nil }
		},
		methods:  []string{"HS256"},
		issuer:   issuer,
		audience: audience,
		leeway:   leeway,
		logger:   logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware отклоняет запросы без валидного bearer-токена и кладёт
// *AuthClaims в контекст запроса.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, msg := BearerToken(r)
			if tokenString == "" {
				apierrors.Unauthorized(w, msg)
				return
			}

			claims, err := j.Parse(r.Context(), tokenString)
			if err != nil {
				j.logger.Debug("Ошибка валидации JWT",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Parse валидирует токен и извлекает claims.
func (j *JWTAuth) Parse(ctx context.Context, tokenString string) (*AuthClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(j.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.leeway),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}

	raw := &tokenClaims{}
	if _, err := jwt.ParseWithClaims(tokenString, raw, j.keyfunc(ctx), opts...); err != nil {
		return nil, err
	}
	if raw.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return &AuthClaims{
		Subject: raw.Subject,
		Email:   raw.Email,
		Roles:   raw.roles(),
	}, nil
}

// BearerToken извлекает токен из заголовка Authorization. Если токена нет,
// возвращает "" и сообщение для клиента.
func BearerToken(r *http.Request) (token, message string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing Authorization header"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "invalid Authorization format, expected Bearer <token>"
	}
	token = strings.TrimSpace(parts[1])
	if token == "" {
		return "", "empty bearer token"
	}
	return token, ""
}

// RequireRole пропускает только пользователей с одной из ролей.
// Должен стоять после JWTAuth.Middleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				apierrors.Unauthorized(w, "no claims in request context")
				return
			}
			if !claims.HasAnyRole(roles...) {
				apierrors.Forbidden(w, fmt.Sprintf("insufficient permissions: role %s required", strings.Join(roles, " or ")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext возвращает claims запроса или nil.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}
