package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStaleTicket is returned when a conditional ticket update finds the
// ticket no longer in the expected stage.
var ErrStaleTicket = errors.New("ticket changed since it was read")

// Transactor runs fn inside one transaction. Repositories called with the
// context passed to fn join that transaction; nested calls reuse the outer one.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// PgTransactor implements Transactor on a pgx pool.
type PgTransactor struct {
	pool *pgxpool.Pool
}

// NewPgTransactor builds the transactor.
func NewPgTransactor(pool *pgxpool.Pool) *PgTransactor {
	return &PgTransactor{pool: pool}
}

// WithinTx commits when fn returns nil and rolls back otherwise.
func (t *PgTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction bound to ctx, or the pool.
func conn(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// validID filters out ids the uuid columns would reject with a syntax error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
