// Package rbac - сопоставление ролей из claims identity provider с типами
// локальных пользователей и проверки ролей для HTTP-слоя.
//
// Роли сравниваются без учёта регистра. Провайдер может передавать роль
// в нескольких claims; вызывающий собирает их и передаёт полный набор.
package rbac

import (
	"strings"

	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
)

// RoleAdmin - значение claim, обозначающее администратора.
const RoleAdmin = "admin"

// Имена статусов, принимаемые endpoint смены статуса.
const (
	StatusNameActive  = "ACTIVE"
	StatusNameDeleted = "DELETED"
)

// NormalizeRoles приводит роли к нижнему регистру и обрезает пробелы,
// отбрасывая пустые значения и дубликаты. Порядок первого появления сохраняется.
func NormalizeRoles(roles []string) []string {
	seen := make(map[string]bool, len(roles))
	result := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		result = append(result, r)
	}
	return result
}

// HasAnyRole проверяет, что хотя бы одна из roles входит в allowed.
func HasAnyRole(roles, allowed []string) bool {
	allowedSet := toSet(NormalizeRoles(allowed))
	for _, r := range NormalizeRoles(roles) {
		if allowedSet[r] {
			return true
		}
	}
	return false
}

// TypeForRoles возвращает тип создаваемого пользователя по claims:
// admin, если есть роль "admin", иначе default.
func TypeForRoles(roles []string) model.UserType {
	if HasAnyRole(roles, []string{RoleAdmin}) {
		return model.TypeAdmin
	}
	return model.TypeDefault
}

// ParseStatus преобразует имя статуса (ACTIVE, DELETED, любой регистр) в код.
func ParseStatus(name string) (model.UserStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case StatusNameActive:
		return model.StatusActive, true
	case StatusNameDeleted:
		return model.StatusDeleted, true
	default:
		return model.StatusUnset, false
	}
}

// StatusName возвращает имя кода статуса или "UNKNOWN".
func StatusName(s model.UserStatus) string {
	switch s {
	case model.StatusActive:
		return StatusNameActive
	case model.StatusDeleted:
		return StatusNameDeleted
	default:
		return "UNKNOWN"
	}
}

// toSet преобразует срез в map для поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
