package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// rollbackTimeout bounds a rollback issued after the caller's context is gone.
const rollbackTimeout = 5 * time.Second

// AccessMode selects the transaction access mode of a unit of work.
type AccessMode int

const (
	ReadWrite AccessMode = iota
	ReadOnly
)

func (m AccessMode) String() string {
	if m == ReadOnly {
		return "read_only"
	}
	return "read_write"
}

// UnitOfWork is a scoped transaction that owns one connection for its
// lifetime. The connection is released when Commit or Rollback returns.
//
// A pgx.Tx begun on a pool satisfies this interface.
type UnitOfWork interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Provider hands out a fresh unit of work per call. Units of work are never
// shared between calls.
type Provider interface {
	Open(ctx context.Context, mode AccessMode) (UnitOfWork, error)
}

// TxBeginner is the part of *pgxpool.Pool a PoolProvider needs.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PoolProvider opens units of work as pgx transactions on a pool.
type PoolProvider struct {
	db TxBeginner
}

// NewPoolProvider wraps db (usually *pgxpool.Pool) as a Provider.
func NewPoolProvider(db TxBeginner) *PoolProvider {
	return &PoolProvider{db: db}
}

// Open begins a transaction in the requested access mode.
func (p *PoolProvider) Open(ctx context.Context, mode AccessMode) (UnitOfWork, error) {
	var opts pgx.TxOptions
	if mode == ReadOnly {
		opts.AccessMode = pgx.ReadOnly
	}
	tx, err := p.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// RollbackError is returned by Run when rolling back after a failure also
// failed. Err is the original failure.
type RollbackError struct {
	Err         error
	RollbackErr error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%v (rollback failed: %v)", e.Err, e.RollbackErr)
}

func (e *RollbackError) Unwrap() []error {
	return []error{e.Err, e.RollbackErr}
}

// Run executes fn inside a fresh unit of work from p.
//
// The unit of work is committed when fn returns nil and rolled back when fn
// returns an error or panics; exactly one of the two happens. A panic is
// re-raised after the rollback. Rollback runs on a context detached from
// ctx's cancellation, so a cancelled or timed-out caller still releases the
// transaction promptly.
//
// A failed commit is returned wrapped; the driver has already ended the
// transaction at that point.
func Run(ctx context.Context, p Provider, mode AccessMode, fn func(ctx context.Context, uow UnitOfWork) error) error {
	uow, err := p.Open(ctx, mode)
	if err != nil {
		return fmt.Errorf("opening unit of work: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := rollback(ctx, uow); rbErr != nil {
				zerolog.Ctx(ctx).Error().
					Err(rbErr).
					Interface("panic", r).
					Msg("failed to roll back unit of work after panic")
			}
			panic(r)
		}
	}()

	if err := fn(ctx, uow); err != nil {
		if rbErr := rollback(ctx, uow); rbErr != nil {
			return &RollbackError{Err: err, RollbackErr: rbErr}
		}
		return err
	}

	if err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("committing unit of work: %w", err)
	}
	return nil
}

func rollback(ctx context.Context, uow UnitOfWork) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	err := uow.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
