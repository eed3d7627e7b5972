// Package model - доменные модели Users API.
package model

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus - код состояния локального пользователя (колонка iduserstatus).
type UserStatus int16

const (
	// Встречается только в старых записях.
	StatusUnset   UserStatus = 0
	StatusActive  UserStatus = 1
	StatusDeleted UserStatus = 2
)

// UserType - тип локального пользователя (колонка idusertype).
type UserType int32

const (
	TypeUnset   UserType = 0
	TypeDefault UserType = 1
	TypeAdmin   UserType = 2
	TypeStudent UserType = 3
)

// Valid проверяет, что t - известный тип пользователя.
func (t UserType) Valid() bool {
	return t == TypeDefault || t == TypeAdmin || t == TypeStudent
}

// User - локальный пользователь.
// Хранится в таблице userplanifika основной БД.
type User struct {
	// Генерируемый ID; 0 до вставки строки
	ID int
	// Отображаемое имя
	Name string
	// URL аватара
	PhotoURL *string
	// Код состояния
	Status UserStatus
	// Тип пользователя
	Type UserType
	// Организация, если есть
	OrganizationID *int
	// Subject в identity provider
	ExternalID *uuid.UUID
	// Время создания
	CreatedAt time.Time
	// Время последнего обновления
	UpdatedAt time.Time
}

// NeedsRepair сообщает, нужно ли повторно активировать запись как студента
// при входе через студенческий провайдер.
func (u *User) NeedsRepair() bool {
	return u.Status != StatusActive || u.Type == TypeUnset
}

// UserFilter - фильтр для List и Count локальных пользователей.
type UserFilter struct {
	Status         *UserStatus
	Type           *UserType
	OrganizationID *int
	Limit          int
	Offset         int
}
