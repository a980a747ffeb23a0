package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/deppfellow/recordstore/internal/database"
	"github.com/deppfellow/recordstore/internal/errs"
	"github.com/deppfellow/recordstore/internal/sqlerr"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/rs/zerolog"
)

// Operation names used in errors and logs.
const (
	opFindByID   = "find_by_id"
	opFindOne    = "find_one"
	opFindAll    = "find_all"
	opInsertOne  = "insert_one"
	opInsertMany = "insert_many"
	opUpdate     = "update"
	opDelete     = "delete"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Store provides CRUD operations for one entity type T with identifier type ID.
//
// Every call opens its own unit of work from the provider and ends it before
// returning, so a Store holds no mutable state and is safe for concurrent use.
// Mutations commit on success and roll back on any failure. Failures are
// always *errs.StoreError.
type Store[T any, ID any] struct {
	provider database.Provider
	table    Table[T]
	log      zerolog.Logger
}

// NewStore creates a Store for table backed by provider.
func NewStore[T any, ID any](provider database.Provider, table Table[T], logger *zerolog.Logger) *Store[T, ID] {
	return &Store[T, ID]{
		provider: provider,
		table:    table,
		log:      logger.With().Str("table", table.Name).Logger(),
	}
}

// Table returns the table declaration the store operates on.
func (s *Store[T, ID]) Table() Table[T] {
	return s.table
}

// FindByID returns the entity with the given identifier, or nil if none exists.
func (s *Store[T, ID]) FindByID(ctx context.Context, id ID) (*T, error) {
	return s.findOne(ctx, opFindByID, Filter{s.table.IDColumn: id})
}

// FindOne returns one entity matching filter, or nil if none matches.
//
// When several rows match, the one with the lowest identifier is returned;
// callers that need uniqueness must pass a selective enough filter.
func (s *Store[T, ID]) FindOne(ctx context.Context, filter Filter) (*T, error) {
	if err := s.table.checkFilter(opFindOne, filter); err != nil {
		return nil, err
	}
	return s.findOne(ctx, opFindOne, filter)
}

func (s *Store[T, ID]) findOne(ctx context.Context, op string, filter Filter) (*T, error) {
	query, args, err := s.selectQuery(filter).Limit(1).ToSql()
	if err != nil {
		return nil, s.fail(op, errs.ErrStorage, fmt.Errorf("building select query: %w", err))
	}

	var (
		out   T
		found bool
	)
	err = database.Run(s.withLogger(ctx), s.provider, database.ReadOnly, func(ctx context.Context, uow database.UnitOfWork) error {
		if err := pgxscan.Get(ctx, uow, &out, query, args...); err != nil {
			if pgxscan.NotFound(err) {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, s.fail(op, errs.ErrStorage, err)
	}
	if !found {
		return nil, nil
	}
	return &out, nil
}

// FindAll returns every entity matching filter. An empty filter matches all
// rows. The result is never nil.
func (s *Store[T, ID]) FindAll(ctx context.Context, filter Filter) ([]T, error) {
	if err := s.table.checkFilter(opFindAll, filter); err != nil {
		return nil, err
	}

	query, args, err := s.selectQuery(filter).ToSql()
	if err != nil {
		return nil, s.fail(opFindAll, errs.ErrStorage, fmt.Errorf("building select query: %w", err))
	}

	out := []T{}
	err = database.Run(s.withLogger(ctx), s.provider, database.ReadOnly, func(ctx context.Context, uow database.UnitOfWork) error {
		return pgxscan.Select(ctx, uow, &out, query, args...)
	})
	if err != nil {
		return nil, s.fail(opFindAll, errs.ErrStorage, err)
	}
	return out, nil
}

// InsertOne persists one entity built from values and returns it as stored,
// including identifiers and timestamps assigned by the database.
func (s *Store[T, ID]) InsertOne(ctx context.Context, values Values) (T, error) {
	var out T
	if err := s.table.checkKeys(opInsertOne, "values", values); err != nil {
		return out, err
	}

	err := database.Run(s.withLogger(ctx), s.provider, database.ReadWrite, func(ctx context.Context, uow database.UnitOfWork) error {
		var err error
		out, err = s.insert(ctx, uow, values)
		return err
	})
	if err != nil {
		var zero T
		return zero, s.failWrite(opInsertOne, err)
	}

	s.log.Debug().Str("op", opInsertOne).Msg("inserted record")
	return out, nil
}

// InsertMany persists all items in a single unit of work. Either every item
// is stored or, on the first failure, none is.
func (s *Store[T, ID]) InsertMany(ctx context.Context, items []Values) ([]T, error) {
	for i, values := range items {
		if err := s.table.checkKeys(opInsertMany, fmt.Sprintf("item %d values", i), values); err != nil {
			return nil, err
		}
	}
	if len(items) == 0 {
		return []T{}, nil
	}

	out := make([]T, 0, len(items))
	err := database.Run(s.withLogger(ctx), s.provider, database.ReadWrite, func(ctx context.Context, uow database.UnitOfWork) error {
		for i, values := range items {
			record, err := s.insert(ctx, uow, values)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, record)
		}
		return nil
	})
	if err != nil {
		return nil, s.failWrite(opInsertMany, err)
	}

	s.log.Debug().Str("op", opInsertMany).Int("rows", len(out)).Msg("inserted records")
	return out, nil
}

func (s *Store[T, ID]) insert(ctx context.Context, uow database.UnitOfWork, values Values) (T, error) {
	var out T

	var (
		query string
		args  []any
		err   error
	)
	if len(values) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", s.table.Name, s.table.columnList())
	} else {
		query, args, err = psql.Insert(s.table.Name).
			SetMap(values).
			Suffix("RETURNING " + s.table.columnList()).
			ToSql()
		if err != nil {
			return out, fmt.Errorf("building insert query: %w", err)
		}
	}

	if err := pgxscan.Get(ctx, uow, &out, query, args...); err != nil {
		return out, err
	}
	return out, nil
}

// Update applies values to every entity matching filter and returns how many
// rows changed. Zero matches is not an error. All matched rows are updated
// in one unit of work or none is.
func (s *Store[T, ID]) Update(ctx context.Context, filter Filter, values Values) (int64, error) {
	if err := s.table.checkFilter(opUpdate, filter); err != nil {
		return 0, err
	}
	if err := s.table.checkKeys(opUpdate, "values", values); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, errs.NewInvalidArgument(opUpdate, s.table.Name, "no values to update")
	}

	q := psql.Update(s.table.Name).SetMap(values)
	if col := s.table.UpdatedAtColumn; col != "" {
		if _, ok := values[col]; !ok {
			q = q.Set(col, squirrel.Expr("now()"))
		}
	}
	if len(filter) > 0 {
		q = q.Where(squirrel.Eq(filter))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, s.fail(opUpdate, errs.ErrStorage, fmt.Errorf("building update query: %w", err))
	}

	affected, err := s.exec(ctx, query, args)
	if err != nil {
		return 0, s.failWrite(opUpdate, err)
	}

	s.log.Debug().Str("op", opUpdate).Int64("rows", affected).Msg("updated records")
	return affected, nil
}

// Delete removes every entity matching filter and returns how many rows were
// deleted.
//
// An empty filter is refused with ErrInvalidArgument unless deleteAll is set;
// the check runs before any unit of work is opened.
func (s *Store[T, ID]) Delete(ctx context.Context, filter Filter, deleteAll bool) (int64, error) {
	if len(filter) == 0 && !deleteAll {
		return 0, errs.NewInvalidArgument(opDelete, s.table.Name,
			"refusing to delete without a filter; pass deleteAll to remove every row")
	}
	if err := s.table.checkFilter(opDelete, filter); err != nil {
		return 0, err
	}

	q := psql.Delete(s.table.Name)
	if len(filter) > 0 {
		q = q.Where(squirrel.Eq(filter))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, s.fail(opDelete, errs.ErrStorage, fmt.Errorf("building delete query: %w", err))
	}

	affected, err := s.exec(ctx, query, args)
	if err != nil {
		return 0, s.failWrite(opDelete, err)
	}

	s.log.Debug().Str("op", opDelete).Int64("rows", affected).Bool("delete_all", deleteAll).Msg("deleted records")
	return affected, nil
}

func (s *Store[T, ID]) exec(ctx context.Context, query string, args []any) (int64, error) {
	var affected int64
	err := database.Run(s.withLogger(ctx), s.provider, database.ReadWrite, func(ctx context.Context, uow database.UnitOfWork) error {
		tag, err := uow.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

func (s *Store[T, ID]) selectQuery(filter Filter) squirrel.SelectBuilder {
	q := psql.Select(s.table.Columns...).From(s.table.Name)
	if len(filter) > 0 {
		q = q.Where(squirrel.Eq(filter))
	}
	return q.OrderBy(s.table.IDColumn)
}

func (s *Store[T, ID]) withLogger(ctx context.Context) context.Context {
	return s.log.WithContext(ctx)
}

// failWrite classifies a failed mutation via the driver error.
func (s *Store[T, ID]) failWrite(op string, err error) error {
	return s.fail(op, sqlerr.Kind(unwrapRollback(err)), err)
}

// fail builds the StoreError for op, separating a rollback failure from the
// original cause.
func (s *Store[T, ID]) fail(op string, kind error, err error) error {
	storeErr := &errs.StoreError{
		Kind:  kind,
		Op:    op,
		Table: s.table.Name,
		Err:   err,
	}

	var rbErr *database.RollbackError
	if errors.As(err, &rbErr) {
		storeErr.Err = rbErr.Err
		storeErr.RollbackErr = rbErr.RollbackErr
		s.log.Error().
			Err(rbErr.RollbackErr).
			Str("op", op).
			AnErr("cause", rbErr.Err).
			Msg("failed to roll back unit of work")
	}

	s.log.Warn().Err(storeErr.Err).Str("op", op).Str("kind", kind.Error()).Msg("store operation failed")
	return storeErr
}

func unwrapRollback(err error) error {
	var rbErr *database.RollbackError
	if errors.As(err, &rbErr) {
		return rbErr.Err
	}
	return err
}
