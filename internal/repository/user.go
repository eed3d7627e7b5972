package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
)

// UserRepository - хранилище локальных пользователей (таблица userplanifika, primary БД).
type UserRepository interface {
	// FindByID возвращает пользователя по локальному ID.
	FindByID(ctx context.Context, id int) (*model.User, error)
	// FindByExternalID возвращает пользователя по subject identity provider.
	FindByExternalID(ctx context.Context, externalID uuid.UUID) (*model.User, error)
	// Create вставляет пользователя и заполняет ID, CreatedAt и UpdatedAt.
	Create(ctx context.Context, u *model.User) error
	// Save вставляет запись при ID == 0, иначе обновляет существующую.
	Save(ctx context.Context, u *model.User) error
	// List возвращает пользователей по фильтру, упорядоченных по ID.
	List(ctx context.Context, filter model.UserFilter) ([]*model.User, error)
	// Count возвращает число пользователей по фильтру.
	Count(ctx context.Context, filter model.UserFilter) (int, error)
}

type userRepo struct {
	db DBTX
	tx *TxRunner
}

// NewUserRepository создаёт репозиторий пользователей. Чтение идёт через db,
// запись - в транзакциях tx.
func NewUserRepository(db DBTX, tx *TxRunner) UserRepository {
	return &userRepo{db: db, tx: tx}
}

const userColumns = `iduser, name, photourl, iduserstatus, idusertype,
	idorganization, supabaseuserid, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.Name, &u.PhotoURL, &u.Status, &u.Type,
		&u.OrganizationID, &u.ExternalID, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (r *userRepo) FindByID(ctx context.Context, id int) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM userplanifika WHERE iduser = $1`, userColumns)
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *userRepo) FindByExternalID(ctx context.Context, externalID uuid.UUID) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM userplanifika WHERE supabaseuserid = $1`, userColumns)
	u, err := scanUser(r.db.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by external id: %w", err)
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	return r.tx.RunInTx(ctx, func(tx DBTX) error {
		return insertUser(ctx, tx, u)
	})
}

func (r *userRepo) Save(ctx context.Context, u *model.User) error {
	return r.tx.RunInTx(ctx, func(tx DBTX) error {
		if u.ID == 0 {
			return insertUser(ctx, tx, u)
		}
		return updateUser(ctx, tx, u)
	})
}

func insertUser(ctx context.Context, db DBTX, u *model.User) error {
	query := `
		INSERT INTO userplanifika (name, photourl, iduserstatus, idusertype,
			idorganization, supabaseuserid)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING iduser, created_at, updated_at`

	err := db.QueryRow(ctx, query,
		u.Name, u.PhotoURL, u.Status, u.Type, u.OrganizationID, u.ExternalID,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user with this external id already exists", ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func updateUser(ctx context.Context, db DBTX, u *model.User) error {
	query := `
		UPDATE userplanifika
		SET name = $2, photourl = $3, iduserstatus = $4, idusertype = $5,
			idorganization = $6, supabaseuserid = $7, updated_at = NOW()
		WHERE iduser = $1
		RETURNING created_at, updated_at`

	err := db.QueryRow(ctx, query,
		u.ID, u.Name, u.PhotoURL, u.Status, u.Type, u.OrganizationID, u.ExternalID,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: external id is taken by another user", ErrConflict)
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// userWhere строит WHERE по фильтру. Аргументы начинаются с $1.
func userWhere(filter model.UserFilter) (string, []any) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("iduserstatus = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("idusertype = $%d", argNum))
		args = append(args, *filter.Type)
		argNum++
	}
	if filter.OrganizationID != nil {
		conditions = append(conditions, fmt.Sprintf("idorganization = $%d", argNum))
		args = append(args, *filter.OrganizationID)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (r *userRepo) List(ctx context.Context, filter model.UserFilter) ([]*model.User, error) {
	where, args := userWhere(filter)

	query := fmt.Sprintf(`SELECT %s FROM userplanifika %s ORDER BY iduser`, userColumns, where)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var result []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *userRepo) Count(ctx context.Context, filter model.UserFilter) (int, error) {
	where, args := userWhere(filter)

	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM userplanifika `+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
