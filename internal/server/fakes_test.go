package server

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
	"github.com/Drim-Soft/planifika-users-api/internal/repository"
)

// memUsers - хранилище пользователей в памяти.
type memUsers struct {
	mu     sync.Mutex
	rows   map[int]*model.User
	nextID int
}

func newMemUsers() *memUsers {
	return &memUsers{rows: make(map[int]*model.User), nextID: 1}
}

func (m *memUsers) FindByID(_ context.Context, id int) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByExternalID(_ context.Context, externalID uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.ExternalID != nil && *u.ExternalID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ExternalID != nil {
		for _, existing := range m.rows {
			if existing.ExternalID != nil && *existing.ExternalID == *u.ExternalID {
				return repository.ErrConflict
			}
		}
	}
	u.ID = m.nextID
	m.nextID++
	cp := *u
	m.rows[u.ID] = &cp
	return nil
}

func (m *memUsers) Save(ctx context.Context, u *model.User) error {
	if u.ID == 0 {
		return m.Create(ctx, u)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[u.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *u
	m.rows[u.ID] = &cp
	return nil
}

func (m *memUsers) matching(filter model.UserFilter) []*model.User {
	var out []*model.User
	for _, u := range m.rows {
		if filter.Status != nil && u.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && u.Type != *filter.Type {
			continue
		}
		if filter.OrganizationID != nil && (u.OrganizationID == nil || *u.OrganizationID != *filter.OrganizationID) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memUsers) List(_ context.Context, filter model.UserFilter) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.matching(filter)
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memUsers) Count(_ context.Context, filter model.UserFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matching(filter)), nil
}

// memStudents - пустой справочник студентов.
type memStudents struct{}

func (memStudents) FindByExternalID(context.Context, uuid.UUID) (*model.Student, error) {
	return nil, repository.ErrNotFound
}

// memTickets хранит тикеты и справочник статусов.
type memTickets struct {
	mu       sync.Mutex
	rows     map[int]*model.Ticket
	statuses map[int]*model.TicketStatus
	nextID   int
}

func newMemTickets() *memTickets {
	return &memTickets{
		rows:     make(map[int]*model.Ticket),
		statuses: map[int]*model.TicketStatus{2: {ID: 2, Name: "RESOLVED"}},
		nextID:   1,
	}
}

func (m *memTickets) CreateWithStatus(_ context.Context, t *model.Ticket, statusName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	statusID := 0
	for id, s := range m.statuses {
		if s.Name == statusName {
			statusID = id
		}
	}
	if statusID == 0 {
		statusID = 1
		m.statuses[statusID] = &model.TicketStatus{ID: statusID, Name: statusName}
	}
	t.ID = m.nextID
	t.StatusID = statusID
	m.nextID++
	cp := *t
	m.rows[t.ID] = &cp
	return nil
}

func (m *memTickets) Get(_ context.Context, id int) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTickets) List(_ context.Context, filter model.TicketFilter) ([]*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Ticket
	for _, t := range m.rows {
		if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.StatusID != nil && t.StatusID != *filter.StatusID {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTickets) Update(_ context.Context, t *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[t.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *t
	m.rows[t.ID] = &cp
	return nil
}

func (m *memTickets) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// memStatuses читает справочник memTickets.
type memStatuses struct{ tickets *memTickets }

func (m memStatuses) GetByID(_ context.Context, id int) (*model.TicketStatus, error) {
	m.tickets.mu.Lock()
	defer m.tickets.mu.Unlock()
	s, ok := m.tickets.statuses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m memStatuses) List(_ context.Context) ([]*model.TicketStatus, error) {
	m.tickets.mu.Lock()
	defer m.tickets.mu.Unlock()
	out := make([]*model.TicketStatus, 0, len(m.tickets.statuses))
	for _, s := range m.tickets.statuses {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memStaff - фиксированный список сотрудников.
type memStaff []*model.Staff

func (m memStaff) GetByID(_ context.Context, id int) (*model.Staff, error) {
	for _, s := range m {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m memStaff) List(_ context.Context, limit, offset int) ([]*model.Staff, error) {
	if offset >= len(m) {
		return nil, nil
	}
	out := m[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
