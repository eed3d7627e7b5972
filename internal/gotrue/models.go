package gotrue

import (
	"encoding/json"
	"strings"
)

// User - пользователь из GET /auth/v1/user; также вложен в ответы
// token и signup.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	UserRole string `json:"user_role"`
	// full_name, name, photourl, avatar_url и всё остальное, сохранённое
	// клиентом при регистрации.
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`

	// Ответ провайдера как есть.
	Raw json.RawMessage `json:"-"`
}

// Metadata возвращает первое непустое строковое значение user_metadata по keys.
func (u *User) Metadata(keys ...string) string {
	for _, k := range keys {
		if s, ok := u.UserMetadata[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// Roles собирает роли: role и user_role верхнего уровня, а также role,
// user_role и roles из app_metadata. Значения не нормализуются.
func (u *User) Roles() []string {
	var roles []string
	if u.Role != "" {
		roles = append(roles, u.Role)
	}
	if u.UserRole != "" {
		roles = append(roles, u.UserRole)
	}
	for _, k := range []string{"role", "user_role"} {
		if s, ok := u.AppMetadata[k].(string); ok && s != "" {
			roles = append(roles, s)
		}
	}
	if list, ok := u.AppMetadata["roles"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				roles = append(roles, s)
			}
		}
	}
	return roles
}

// Session - ответ password grant.
type Session struct {
	AccessToken  string `json:"access_token"` //nolint:gosec // G117: OAuth2 token payload
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"` //nolint:gosec // G117: OAuth2 token payload
	User         *User  `json:"user"`

	Raw json.RawMessage `json:"-"`
}

// Registration - результат регистрации.
type Registration struct {
	// user.id при вложенном user, иначе id верхнего уровня.
	// Пусто, если провайдер не вернул ни того, ни другого.
	SubjectID string
	User      *User
	Raw       json.RawMessage
}

// ProfileUpdate - изменяемые поля. nil-поля не отправляются.
type ProfileUpdate struct {
	Password *string
	Name     *string
	PhotoURL *string
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // G117: forwarded credentials
}

type updatePayload struct {
	Password *string          `json:"password,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

func (p ProfileUpdate) payload() updatePayload {
	out := updatePayload{Password: p.Password}
	if p.Name != nil || p.PhotoURL != nil {
		out.Data = make(map[string]string, 3)
		if p.Name != nil {
			out.Data["name"] = *p.Name
			out.Data["full_name"] = *p.Name
		}
		if p.PhotoURL != nil {
			out.Data["photourl"] = *p.PhotoURL
		}
	}
	return out
}
