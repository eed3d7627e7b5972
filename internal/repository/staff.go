package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
)

// StaffRepository - чтение сотрудников внешней организации (таблица userdrimsoft).
type StaffRepository interface {
	GetByID(ctx context.Context, id int) (*model.Staff, error)
	List(ctx context.Context, limit, offset int) ([]*model.Staff, error)
}

type staffRepo struct {
	db DBTX
}

// NewStaffRepository создаёт репозиторий сотрудников.
func NewStaffRepository(db DBTX) StaffRepository {
	return &staffRepo{db: db}
}

const staffColumns = `iduser, supabaseuserid, iduserstatus, idrole, name`

func scanStaff(row pgx.Row) (*model.Staff, error) {
	s := &model.Staff{}
	err := row.Scan(&s.ID, &s.ExternalID, &s.Status, &s.RoleID, &s.Name)
	return s, err
}

func (r *staffRepo) GetByID(ctx context.Context, id int) (*model.Staff, error) {
	query := fmt.Sprintf(`SELECT %s FROM userdrimsoft WHERE iduser = $1`, staffColumns)
	s, err := scanStaff(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get staff member: %w", err)
	}
	return s, nil
}

func (r *staffRepo) List(ctx context.Context, limit, offset int) ([]*model.Staff, error) {
	query := fmt.Sprintf(`SELECT %s FROM userdrimsoft ORDER BY iduser LIMIT $1 OFFSET $2`, staffColumns)

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var result []*model.Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("scan staff member: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
