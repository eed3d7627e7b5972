// Package repository - слой доступа к данным PostgreSQL.
// Все запросы - чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound - запись не найдена.
	ErrNotFound = errors.New("record not found")
	// ErrConflict - нарушено ограничение уникальности.
	ErrConflict = errors.New("conflict: record already exists")
)

// DBTX выполняет SQL-запросы. Реализуется *pgxpool.Pool, pgx.Tx и обёрткой
// autosave: репозитории работают как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner выполняет функции в транзакции на одном пуле.
type TxRunner struct {
	pool     *pgxpool.Pool
	autosave bool
}

// NewTxRunner создаёт TxRunner. С autosave каждый запрос транзакции
// получает свой savepoint: при ошибке откат идёт к нему, и транзакция
// остаётся рабочей.
func NewTxRunner(pool *pgxpool.Pool, autosave bool) *TxRunner {
	return &TxRunner{pool: pool, autosave: autosave}
}

// RunInTx выполняет fn в транзакции.
// При ошибке fn транзакция откатывается, иначе фиксируется.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx DBTX) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback после commit - no-op

	var db DBTX = tx
	if r.autosave {
		db = &autosaveTx{tx: tx}
	}

	if err := fn(db); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation проверяет, что err - нарушение уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
