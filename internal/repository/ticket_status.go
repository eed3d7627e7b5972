package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
)

// TicketStatusRepository - чтение справочника статусов тикетов.
type TicketStatusRepository interface {
	GetByID(ctx context.Context, id int) (*model.TicketStatus, error)
	GetByName(ctx context.Context, name string) (*model.TicketStatus, error)
	List(ctx context.Context) ([]*model.TicketStatus, error)
}

type ticketStatusRepo struct {
	db DBTX
}

// NewTicketStatusRepository создаёт репозиторий справочника статусов.
func NewTicketStatusRepository(db DBTX) TicketStatusRepository {
	return &ticketStatusRepo{db: db}
}

func (r *ticketStatusRepo) GetByID(ctx context.Context, id int) (*model.TicketStatus, error) {
	s := &model.TicketStatus{}
	err := r.db.QueryRow(ctx,
		`SELECT idticketstatus, name FROM ticketstatus WHERE idticketstatus = $1`, id,
	).Scan(&s.ID, &s.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ticket status: %w", err)
	}
	return s, nil
}

func (r *ticketStatusRepo) GetByName(ctx context.Context, name string) (*model.TicketStatus, error) {
	return statusByName(ctx, r.db, name)
}

func statusByName(ctx context.Context, db DBTX, name string) (*model.TicketStatus, error) {
	s := &model.TicketStatus{}
	err := db.QueryRow(ctx,
		`SELECT idticketstatus, name FROM ticketstatus WHERE name = $1`, name,
	).Scan(&s.ID, &s.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ticket status %q: %w", name, err)
	}
	return s, nil
}

func (r *ticketStatusRepo) List(ctx context.Context) ([]*model.TicketStatus, error) {
	rows, err := r.db.Query(ctx, `SELECT idticketstatus, name FROM ticketstatus ORDER BY idticketstatus`)
	if err != nil {
		return nil, fmt.Errorf("list ticket statuses: %w", err)
	}
	defer rows.Close()

	var result []*model.TicketStatus
	for rows.Next() {
		s := &model.TicketStatus{}
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan ticket status: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
