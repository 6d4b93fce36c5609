package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/libcirc/circulation-service/internal/model"
)

var borrowingColumns = []string{
	"id", "username", "copy_id", "borrow_date", "due_date",
	"return_date", "renewal_count", "status",
}

func (r *repository) CreateBorrowing(ctx context.Context, b model.Borrowing) (model.Borrowing, error) {
	q, args, err := qb.Insert(borrowingsTableName).
		Columns("username", "copy_id", "borrow_date", "due_date", "status").
		Values(b.Username, b.CopyID, b.BorrowDate, b.DueDate, model.BorrowingActive).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Borrowing{}, err
	}
	var created model.Borrowing
	if err := sqlx.GetContext(ctx, r.ext, &created, q, args...); err != nil {
		r.log.Error("CreateBorrowing", zap.String("q", q), zap.Any("args", args))
		return model.Borrowing{}, mapErr(err)
	}
	return created, nil
}

func (r *repository) GetBorrowing(ctx context.Context, id int64) (model.Borrowing, error) {
	q, args, err := qb.Select(borrowingColumns...).
		From(borrowingsTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Borrowing{}, err
	}
	var b model.Borrowing
	if err := sqlx.GetContext(ctx, r.ext, &b, q, args...); err != nil {
		return model.Borrowing{}, mapErr(err)
	}
	return b, nil
}

// OpenBorrowingForUserAndCopy backs the duplicate-pickup guard: confirming a
// pickup twice must not create a second borrowing.
func (r *repository) OpenBorrowingForUserAndCopy(ctx context.Context, username string, copyID int64) (model.Borrowing, error) {
	q, args, err := qb.Select(borrowingColumns...).
		From(borrowingsTableName).
		Where(sq.Eq{"username": username, "copy_id": copyID, "return_date": nil}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Borrowing{}, err
	}
	var b model.Borrowing
	if err := sqlx.GetContext(ctx, r.ext, &b, q, args...); err != nil {
		return model.Borrowing{}, mapErr(err)
	}
	return b, nil
}

func (r *repository) UpdateBorrowing(ctx context.Context, b model.Borrowing) error {
	q, args, err := qb.Update(borrowingsTableName).
		Set("due_date", b.DueDate).
		Set("return_date", b.ReturnDate).
		Set("renewal_count", b.RenewalCount).
		Set("status", b.Status).
		Where(sq.Eq{"id": b.ID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.ext.ExecContext(ctx, q, args...)
	if err != nil {
		return mapErr(err)
	}
	return checkAffected(res)
}

func (r *repository) ListBorrowingsByUser(ctx context.Context, username string) ([]model.Borrowing, error) {
	q, args, err := qb.Select(borrowingColumns...).
		From(borrowingsTableName).
		Where(sq.Eq{"username": username}).
		OrderBy("borrow_date desc", "id desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.Borrowing
	if err := sqlx.SelectContext(ctx, r.ext, &items, q, args...); err != nil {
		return nil, mapErr(err)
	}
	return items, nil
}

// ListOverdueOpen returns active borrowings whose due date has passed as of
// asOf, oldest due first. Feed for the lost-book escalation.
func (r *repository) ListOverdueOpen(ctx context.Context, asOf time.Time) ([]model.Borrowing, error) {
	q, args, err := qb.Select(borrowingColumns...).
		From(borrowingsTableName).
		Where(sq.Eq{"return_date": nil, "status": model.BorrowingActive}).
		Where(sq.Lt{"due_date": asOf}).
		OrderBy("due_date", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.Borrowing
	if err := sqlx.SelectContext(ctx, r.ext, &items, q, args...); err != nil {
		return nil, mapErr(err)
	}
	return items, nil
}

// ListDueOn returns open borrowings due on the given calendar day, the feed
// for due-soon reminders.
func (r *repository) ListDueOn(ctx context.Context, day time.Time) ([]model.Borrowing, error) {
	const q = `
select id, username, copy_id, borrow_date, due_date, return_date, renewal_count, status
from borrowings
where return_date is null and due_date::date = $1::date
order by id`

	var items []model.Borrowing
	if err := sqlx.SelectContext(ctx, r.ext, &items, q, day); err != nil {
		return nil, mapErr(err)
	}
	return items, nil
}
