package model

import "github.com/google/uuid"

// Staff - сотрудник внешней организации.
// Таблица userdrimsoft; для этого сервиса только чтение.
type Staff struct {
	ID         int
	ExternalID *uuid.UUID
	Status     *int
	RoleID     *int
	Name       *string
}

// Student - запись справочника студентов (таблица usersiu БД students).
// Только чтение.
type Student struct {
	ID         int
	Name       string
	PhotoURL   *string
	ExternalID uuid.UUID
}
