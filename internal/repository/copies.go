package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/libcirc/circulation-service/internal/model"
)

const copyColumns = "id, book_id, location, condition, lost_date, lost_reason"

func (r *repository) CreateCopy(ctx context.Context, copy model.Copy) (model.Copy, error) {
	q, args, err := qb.Insert(copiesTableName).
		Columns("book_id", "location", "condition").
		Values(copy.BookID, copy.Location, copy.Condition).
		Suffix("returning " + copyColumns).
		ToSql()
	if err != nil {
		return model.Copy{}, err
	}
	var res model.Copy
	if err := sqlx.GetContext(ctx, r.ext, &res, q, args...); err != nil {
		r.log.Error("CreateCopy", zap.String("q", q), zap.Any("args", args))
		return model.Copy{}, mapErr(err)
	}
	return res, nil
}

func (r *repository) GetCopy(ctx context.Context, id int64) (model.Copy, error) {
	return r.getCopy(ctx, sq.Eq{"id": id})
}

func (r *repository) GetCopyByLocation(ctx context.Context, location string) (model.Copy, error) {
	return r.getCopy(ctx, sq.Eq{"location": location})
}

func (r *repository) getCopy(ctx context.Context, pred sq.Eq) (model.Copy, error) {
	q, args, err := qb.Select("id", "book_id", "location", "condition", "lost_date", "lost_reason").
		From(copiesTableName).
		Where(pred).
		ToSql()
	if err != nil {
		return model.Copy{}, err
	}
	var copy model.Copy
	if err := sqlx.GetContext(ctx, r.ext, &copy, q, args...); err != nil {
		return model.Copy{}, mapErr(err)
	}
	return copy, nil
}

// LockFreeCopy selects and row-locks the first circulating copy of the book
// that no assigned reservation and no open borrowing references. Stable order:
// location, then id. Must run inside a transaction; the lock closes the
// check-then-bind race window.
func (r *repository) LockFreeCopy(ctx context.Context, bookID int64) (model.Copy, error) {
	const q = `
select c.id, c.book_id, c.location, c.condition, c.lost_date, c.lost_reason
from book_copies c
where c.book_id = $1
  and c.condition <> 'lost'
  and not exists (select 1 from reservations res
                  where res.copy_id = c.id and res.status = 'assigned')
  and not exists (select 1 from borrowings b
                  where b.copy_id = c.id and b.return_date is null)
order by c.location, c.id
limit 1
for update of c skip locked`

	var copy model.Copy
	if err := sqlx.GetContext(ctx, r.ext, &copy, q, bookID); err != nil {
		return model.Copy{}, mapErr(err)
	}
	return copy, nil
}

func (r *repository) UpdateCopy(ctx context.Context, copy model.Copy) error {
	q, args, err := qb.Update(copiesTableName).
		Set("condition", copy.Condition).
		Set("lost_date", copy.LostDate).
		Set("lost_reason", copy.LostReason).
		Where(sq.Eq{"id": copy.ID}).
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
