package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/libcirc/circulation-service/internal/errs"
	"github.com/libcirc/circulation-service/internal/model"
)

type Repository interface {
	// WithinTx runs fn against a transaction-bound Repository. Nested calls
	// reuse the surrounding transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	CreateBook(ctx context.Context, book model.Book) (model.Book, error)
	GetBook(ctx context.Context, id int64) (model.Book, error)
	ListBooks(ctx context.Context, page, size int) ([]model.Book, error)
	Availability(ctx context.Context, bookIDs []int64) (map[int64]model.Availability, error)

	CreateCopy(ctx context.Context, copy model.Copy) (model.Copy, error)
	GetCopy(ctx context.Context, id int64) (model.Copy, error)
	GetCopyByLocation(ctx context.Context, location string) (model.Copy, error)
	LockFreeCopy(ctx context.Context, bookID int64) (model.Copy, error)
	UpdateCopy(ctx context.Context, copy model.Copy) error

	CreateReservation(ctx context.Context, res model.Reservation) (model.Reservation, error)
	GetReservation(ctx context.Context, uid string) (model.Reservation, error)
	CountActiveReservations(ctx context.Context, username string) (int, error)
	HasOpenReservationForBook(ctx context.Context, username string, bookID int64) (bool, error)
	HasOpenBorrowingForBook(ctx context.Context, username string, bookID int64) (bool, error)
	LockOldestPending(ctx context.Context, bookID int64) (model.Reservation, error)
	UpdateReservation(ctx context.Context, res model.Reservation) error
	ListExpiredAssigned(ctx context.Context, now time.Time) ([]model.Reservation, error)
	ListReservationsByUser(ctx context.Context, username string) ([]model.Reservation, error)
	ListPendingForBook(ctx context.Context, bookID int64) ([]model.Reservation, error)

	CreateBorrowing(ctx context.Context, b model.Borrowing) (model.Borrowing, error)
	GetBorrowing(ctx context.Context, id int64) (model.Borrowing, error)
	OpenBorrowingForUserAndCopy(ctx context.Context, username string, copyID int64) (model.Borrowing, error)
	UpdateBorrowing(ctx context.Context, b model.Borrowing) error
	ListBorrowingsByUser(ctx context.Context, username string) ([]model.Borrowing, error)
	ListOverdueOpen(ctx context.Context, asOf time.Time) ([]model.Borrowing, error)
	ListDueOn(ctx context.Context, day time.Time) ([]model.Borrowing, error)

	AppendLog(ctx context.Context, entry model.LogEntry) error
	ListLogs(ctx context.Context, reservationID int64) ([]model.LogEntry, error)
}

type repository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		ext: db,
		log: log.Named("repo"),
	}, nil
}

const (
	booksTableName        = `books`
	copiesTableName       = `book_copies`
	reservationsTableName = `reservations`
	borrowingsTableName   = `borrowings`
	logsTableName         = `reservation_logs`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	if _, ok := r.ext.(*sqlx.Tx); ok {
		return fn(ctx, r)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	txRepo := &repository{db: r.db, ext: tx, log: r.log}
	if err := fn(ctx, txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.log.Error("tx rollback", zap.Error(rbErr))
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// mapErr translates driver errors into the service taxonomy: unique and
// serialization failures on the circulation rows become ErrConflict so the
// engine can retry the assignment search.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation, pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return errors.Wrap(errs.ErrConflict, pgErr.ConstraintName)
		case pgerrcode.CheckViolation:
			return errs.Validation(pgErr.ConstraintName, "constraint violated")
		}
	}
	return err
}
