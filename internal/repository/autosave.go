package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// autosaveTx оборачивает каждый запрос в savepoint (вложенная транзакция pgx).
// При успехе savepoint освобождается, при ошибке - откат к нему: ошибка
// одного запроса не ломает остальную транзакцию.
type autosaveTx struct {
	tx pgx.Tx
}

func (a *autosaveTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	sp, err := a.tx.Begin(ctx)
	if err != nil {
		return pgconn.CommandTag{}, err
	}

	tag, err := sp.Exec(ctx, sql, args...)
	if err != nil {
		_ = sp.Rollback(ctx)
		return tag, err
	}
	if err := sp.Commit(ctx); err != nil {
		return tag, err
	}
	return tag, nil
}

func (a *autosaveTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	sp, err := a.tx.Begin(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := sp.Query(ctx, sql, args...)
	if err != nil {
		_ = sp.Rollback(ctx)
		return nil, err
	}
	return &autosaveRows{Rows: rows, ctx: ctx, sp: sp}, nil
}

func (a *autosaveTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	sp, err := a.tx.Begin(ctx)
	if err != nil {
		return errRow{err: err}
	}
	return &autosaveRow{row: sp.QueryRow(ctx, sql, args...), ctx: ctx, sp: sp}
}

// autosaveRow завершает свой savepoint при Scan.
type autosaveRow struct {
	row pgx.Row
	ctx context.Context
	sp  pgx.Tx
}

func (r *autosaveRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	// Пустой результат - не ошибка запроса.
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		_ = r.sp.Rollback(r.ctx)
		return err
	}
	if cerr := r.sp.Commit(r.ctx); cerr != nil {
		return cerr
	}
	return err
}

// autosaveRows завершает свой savepoint, когда результат прочитан
// полностью или закрыт.
type autosaveRows struct {
	pgx.Rows
	ctx        context.Context
	sp         pgx.Tx
	done       bool
	releaseErr error
}

func (r *autosaveRows) Next() bool {
	if r.Rows.Next() {
		return true
	}
	r.finish()
	return false
}

func (r *autosaveRows) Err() error {
	if err := r.Rows.Err(); err != nil {
		return err
	}
	return r.releaseErr
}

func (r *autosaveRows) Close() {
	r.finish()
}

func (r *autosaveRows) finish() {
	if r.done {
		return
	}
	r.done = true
	r.Rows.Close()
	if r.Rows.Err() != nil {
		_ = r.sp.Rollback(r.ctx)
		return
	}
	r.releaseErr = r.sp.Commit(r.ctx)
}

// errRow возвращает ошибку, возникшую до отправки запроса.
type errRow struct {
	err error
}

func (r errRow) Scan(...any) error {
	return r.err
}
