package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
	"github.com/Drim-Soft/planifika-users-api/internal/gotrue"
	"github.com/Drim-Soft/planifika-users-api/internal/repository"
)

// fakeUsers - UserStore в памяти с уникальным внешним ID.
type fakeUsers struct {
	mu        sync.Mutex
	rows      map[int]*model.User
	nextID    int
	createErr error
	saveErr   error
	creates   int
	saves     int
	lookups   int
}

func newFakeUsers(seed ...*model.User) *fakeUsers {
	f := &fakeUsers{rows: make(map[int]*model.User), nextID: 1}
	for _, u := range seed {
		cp := *u
		f.rows[u.ID] = &cp
		if u.ID >= f.nextID {
			f.nextID = u.ID + 1
		}
	}
	return f
}

func (f *fakeUsers) FindByID(_ context.Context, id int) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	u, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByExternalID(_ context.Context, externalID uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	for _, u := range f.rows {
		if u.ExternalID != nil && *u.ExternalID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	if u.ExternalID != nil {
		for _, existing := range f.rows {
			if existing.ExternalID != nil && *existing.ExternalID == *u.ExternalID {
				return repository.ErrConflict
			}
		}
	}
	u.ID = f.nextID
	f.nextID++
	cp := *u
	f.rows[u.ID] = &cp
	return nil
}

func (f *fakeUsers) Save(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, ok := f.rows[u.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *u
	f.rows[u.ID] = &cp
	return nil
}

func (f *fakeUsers) List(_ context.Context, filter model.UserFilter) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.User
	for id := 1; id < f.nextID; id++ {
		u, ok := f.rows[id]
		if !ok || !matchUser(u, filter) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeUsers) Count(_ context.Context, filter model.UserFilter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.rows {
		if matchUser(u, filter) {
			n++
		}
	}
	return n, nil
}

func matchUser(u *model.User, filter model.UserFilter) bool {
	if filter.Status != nil && u.Status != *filter.Status {
		return false
	}
	if filter.Type != nil && u.Type != *filter.Type {
		return false
	}
	if filter.OrganizationID != nil && (u.OrganizationID == nil || *u.OrganizationID != *filter.OrganizationID) {
		return false
	}
	return true
}

func (f *fakeUsers) get(id int) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeUsers) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// fakeProvider - IdentityProvider с заданными ответами.
type fakeProvider struct {
	registration *gotrue.Registration
	registerErr  error
	session      *gotrue.Session
	authErr      error
	profile      *gotrue.User
	profileErr   error
	updateOut    json.RawMessage
	updateErr    error

	registered []string
	updates    []gotrue.ProfileUpdate
	fetches    int
}

func (p *fakeProvider) Register(_ context.Context, email, _ string) (*gotrue.Registration, error) {
	p.registered = append(p.registered, email)
	if p.registerErr != nil {
		return nil, p.registerErr
	}
	return p.registration, nil
}

func (p *fakeProvider) Authenticate(context.Context, string, string) (*gotrue.Session, error) {
	if p.authErr != nil {
		return nil, p.authErr
	}
	return p.session, nil
}

func (p *fakeProvider) FetchProfile(context.Context, string) (*gotrue.User, error) {
	p.fetches++
	if p.profileErr != nil {
		return nil, p.profileErr
	}
	return p.profile, nil
}

func (p *fakeProvider) UpdateProfile(_ context.Context, _ string, update gotrue.ProfileUpdate) (json.RawMessage, error) {
	p.updates = append(p.updates, update)
	if p.updateErr != nil {
		return nil, p.updateErr
	}
	return p.updateOut, nil
}

// fakeStudents - StudentDirectory в памяти.
type fakeStudents map[uuid.UUID]*model.Student

func (f fakeStudents) FindByExternalID(_ context.Context, id uuid.UUID) (*model.Student, error) {
	s, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

// fakeStatuses - TicketStatusStore в памяти со счётчиком чтений.
type fakeStatuses struct {
	mu    sync.Mutex
	rows  map[int]*model.TicketStatus
	reads int
}

func newFakeStatuses(statuses ...*model.TicketStatus) *fakeStatuses {
	f := &fakeStatuses{rows: make(map[int]*model.TicketStatus)}
	for _, s := range statuses {
		f.rows[s.ID] = s
	}
	return f
}

func (f *fakeStatuses) GetByID(_ context.Context, id int) (*model.TicketStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	s, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeStatuses) List(context.Context) ([]*model.TicketStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(f.rows))
	for id := range f.rows {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*model.TicketStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.rows[id])
	}
	return out, nil
}

// fakeTickets - TicketStore в памяти с общей таблицей статусов.
type fakeTickets struct {
	statuses *fakeStatuses
	rows     map[int]*model.Ticket
	nextID   int
}

func newFakeTickets(statuses *fakeStatuses) *fakeTickets {
	return &fakeTickets{statuses: statuses, rows: make(map[int]*model.Ticket), nextID: 1}
}

func (f *fakeTickets) CreateWithStatus(_ context.Context, t *model.Ticket, statusName string) error {
	f.statuses.mu.Lock()
	statusID := 0
	for id, s := range f.statuses.rows {
		if s.Name == statusName {
			statusID = id
		}
	}
	if statusID == 0 {
		statusID = len(f.statuses.rows) + 1
		f.statuses.rows[statusID] = &model.TicketStatus{ID: statusID, Name: statusName}
	}
	f.statuses.mu.Unlock()

	t.ID = f.nextID
	f.nextID++
	t.StatusID = statusID
	cp := *t
	f.rows[t.ID] = &cp
	return nil
}

func (f *fakeTickets) Get(_ context.Context, id int) (*model.Ticket, error) {
	t, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTickets) List(_ context.Context, filter model.TicketFilter) ([]*model.Ticket, error) {
	var out []*model.Ticket
	for id := 1; id < f.nextID; id++ {
		t, ok := f.rows[id]
		if !ok {
			continue
		}
		if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.StatusID != nil && t.StatusID != *filter.StatusID {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeTickets) Update(_ context.Context, t *model.Ticket) error {
	if _, ok := f.rows[t.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *t
	f.rows[t.ID] = &cp
	return nil
}

func (f *fakeTickets) Delete(_ context.Context, id int) error {
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

// fakeStaff - StaffDirectory в памяти.
type fakeStaff []*model.Staff

func (f fakeStaff) GetByID(_ context.Context, id int) (*model.Staff, error) {
	for _, s := range f {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f fakeStaff) List(_ context.Context, limit, offset int) ([]*model.Staff, error) {
	if offset >= len(f) {
		return nil, nil
	}
	out := f[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func ptr[T any](v T) *T {
	return &v
}
