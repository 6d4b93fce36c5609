package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/libcirc/circulation-service/internal/model"
)

func (r *repository) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	q, args, err := qb.Insert(booksTableName).
		Columns("title", "author", "publication_year", "genre", "isbn").
		Values(book.Title, book.Author, book.PublicationYear, book.Genre, book.ISBN).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var res model.Book
	if err := sqlx.GetContext(ctx, r.ext, &res, q, args...); err != nil {
		r.log.Error("CreateBook", zap.String("q", q), zap.Any("args", args))
		return model.Book{}, mapErr(err)
	}
	return res, nil
}

func (r *repository) GetBook(ctx context.Context, id int64) (model.Book, error) {
	q, args, err := qb.Select("id", "title", "author", "publication_year", "genre", "isbn").
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := sqlx.GetContext(ctx, r.ext, &book, q, args...); err != nil {
		return model.Book{}, mapErr(err)
	}
	return book, nil
}

func (r *repository) ListBooks(ctx context.Context, page, size int) ([]model.Book, error) {
	q := qb.Select("id", "title", "author", "publication_year", "genre", "isbn").
		From(booksTableName).
		OrderBy("title", "id")

	if page != 0 && size != 0 {
		q = q.Limit(uint64(size)).Offset(uint64((page - 1) * size))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var books []model.Book
	if err := sqlx.SelectContext(ctx, r.ext, &books, query, args...); err != nil {
		return nil, mapErr(err)
	}
	return books, nil
}

// Availability answers the oracle for a batch of books in one grouped query.
// Lost copies are outside the circulating pool; a copy is unavailable when an
// active borrowing is open on it or a reservation holds it assigned.
func (r *repository) Availability(ctx context.Context, bookIDs []int64) (map[int64]model.Availability, error) {
	out := make(map[int64]model.Availability, len(bookIDs))
	if len(bookIDs) == 0 {
		return out, nil
	}

	q, args, err := sqlx.In(`
select c.book_id,
       count(*) as total,
       count(*) filter (where
           exists (select 1 from borrowings b
                   where b.copy_id = c.id and b.return_date is null and b.status = 'active')
           or exists (select 1 from reservations res
                   where res.copy_id = c.id and res.status = 'assigned')
       ) as unavailable
from book_copies c
where c.book_id in (?) and c.condition <> 'lost'
group by c.book_id`, bookIDs)
	if err != nil {
		return nil, err
	}
	q = r.ext.Rebind(q)

	rows := []struct {
		BookID      int64 `db:"book_id"`
		Total       int   `db:"total"`
		Unavailable int   `db:"unavailable"`
	}{}
	if err := sqlx.SelectContext(ctx, r.ext, &rows, q, args...); err != nil {
		return nil, mapErr(err)
	}
	for _, row := range rows {
		out[row.BookID] = model.Availability{
			Total:       row.Total,
			Unavailable: row.Unavailable,
			Available:   row.Total - row.Unavailable,
		}
	}
	return out, nil
}
