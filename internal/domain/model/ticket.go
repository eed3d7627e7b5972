package model

// StatusPending - статус, в котором создаётся каждый тикет.
const StatusPending = "PENDING"

// Ticket - тикет поддержки.
// Таблица ticketsupport БД extorg.
type Ticket struct {
	ID int
	// ID локального пользователя; хранится в другой БД
	RequesterID int
	StatusID    int
	Title       string
	Description string
	Answer      *string
	// Сотрудник, обрабатывающий тикет
	ResolverID *int
}

// TicketStatus - запись справочника статусов (таблица ticketstatus).
type TicketStatus struct {
	ID   int
	Name string
}

// TicketFilter - фильтр списков тикетов.
type TicketFilter struct {
	RequesterID *int
	StatusID    *int
}
