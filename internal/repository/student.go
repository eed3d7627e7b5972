package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
)

// StudentRepository - чтение справочника студентов (таблица usersiu БД
// students). Схемой владеет другая система, запись здесь не выполняется.
type StudentRepository interface {
	FindByExternalID(ctx context.Context, externalID uuid.UUID) (*model.Student, error)
}

type studentRepo struct {
	db DBTX
}

// NewStudentRepository создаёт репозиторий справочника студентов.
func NewStudentRepository(db DBTX) StudentRepository {
	return &studentRepo{db: db}
}

func (r *studentRepo) FindByExternalID(ctx context.Context, externalID uuid.UUID) (*model.Student, error) {
	s := &model.Student{}
	err := r.db.QueryRow(ctx, `
		SELECT idusersiu, COALESCE(name, ''), photourl, supabaseuserid
		FROM usersiu
		WHERE supabaseuserid = $1`, externalID,
	).Scan(&s.ID, &s.Name, &s.PhotoURL, &s.ExternalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return s, nil
}
