package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
)

// TicketRepository - хранилище тикетов поддержки (таблица ticketsupport, БД extorg).
type TicketRepository interface {
	// CreateWithStatus находит статус statusName (создавая его при отсутствии)
	// и вставляет тикет с ним. Оба шага - в одной транзакции.
	CreateWithStatus(ctx context.Context, t *model.Ticket, statusName string) error
	// Get возвращает тикет по ID.
	Get(ctx context.Context, id int) (*model.Ticket, error)
	// List возвращает тикеты по фильтру, упорядоченные по ID.
	List(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, error)
	// Update перезаписывает статус, ответ и исполнителя тикета.
	Update(ctx context.Context, t *model.Ticket) error
	// Delete удаляет тикет.
	Delete(ctx context.Context, id int) error
}

type ticketRepo struct {
	db DBTX
	tx *TxRunner
}

// NewTicketRepository создаёт репозиторий тикетов.
func NewTicketRepository(db DBTX, tx *TxRunner) TicketRepository {
	return &ticketRepo{db: db, tx: tx}
}

const ticketColumns = `idtickets, idplanifikauser, idticketstatus, title,
	description, answer, iddrimsoftuser`

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	t := &model.Ticket{}
	err := row.Scan(
		&t.ID, &t.RequesterID, &t.StatusID, &t.Title,
		&t.Description, &t.Answer, &t.ResolverID,
	)
	return t, err
}

func (r *ticketRepo) CreateWithStatus(ctx context.Context, t *model.Ticket, statusName string) error {
	return r.tx.RunInTx(ctx, func(tx DBTX) error {
		status, err := ensureStatus(ctx, tx, statusName)
		if err != nil {
			return err
		}
		t.StatusID = status.ID

		query := `
			INSERT INTO ticketsupport (idplanifikauser, idticketstatus, title,
				description, answer, iddrimsoftuser)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING idtickets`

		err = tx.QueryRow(ctx, query,
			t.RequesterID, t.StatusID, t.Title, t.Description, t.Answer, t.ResolverID,
		).Scan(&t.ID)
		if err != nil {
			return fmt.Errorf("create ticket: %w", err)
		}
		return nil
	})
}

// ensureStatus возвращает статус по имени, вставляя его при отсутствии.
// Параллельная вставка того же имени даёт нарушение уникальности, после
// чего строка выбирается повторно. Повторный SELECT работает, только если
// неудачная вставка не прервала транзакцию (autosave).
func ensureStatus(ctx context.Context, db DBTX, name string) (*model.TicketStatus, error) {
	status, err := statusByName(ctx, db, name)
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	status = &model.TicketStatus{Name: name}
	err = db.QueryRow(ctx,
		`INSERT INTO ticketstatus (name) VALUES ($1) RETURNING idticketstatus`, name,
	).Scan(&status.ID)
	if err == nil {
		return status, nil
	}
	if !isUniqueViolation(err) {
		return nil, fmt.Errorf("create ticket status %q: %w", name, err)
	}

	return statusByName(ctx, db, name)
}

func (r *ticketRepo) Get(ctx context.Context, id int) (*model.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM ticketsupport WHERE idtickets = $1`, ticketColumns)
	t, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

func (r *ticketRepo) List(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, error) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.RequesterID != nil {
		conditions = append(conditions, fmt.Sprintf("idplanifikauser = $%d", argNum))
		args = append(args, *filter.RequesterID)
		argNum++
	}
	if filter.StatusID != nil {
		conditions = append(conditions, fmt.Sprintf("idticketstatus = $%d", argNum))
		args = append(args, *filter.StatusID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM ticketsupport %s ORDER BY idtickets`, ticketColumns, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var result []*model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *ticketRepo) Update(ctx context.Context, t *model.Ticket) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE ticketsupport
		SET idticketstatus = $2, answer = $3, iddrimsoftuser = $4
		WHERE idtickets = $1`,
		t.ID, t.StatusID, t.Answer, t.ResolverID,
	)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepo) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM ticketsupport WHERE idtickets = $1`, id)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
