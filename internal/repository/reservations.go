package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/libcirc/circulation-service/internal/model"
)

var reservationColumns = []string{
	"id", "reservation_uid", "username", "book_id", "copy_id",
	"status", "reservation_date", "expiration_date",
}

func (r *repository) CreateReservation(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	if res.ReservationUid == "" {
		res.ReservationUid = uuid.NewString()
	}
	q, args, err := qb.Insert(reservationsTableName).
		Columns("reservation_uid", "username", "book_id", "status", "reservation_date").
		Values(res.ReservationUid, res.Username, res.BookID, model.ReservationPending, res.ReservationDate).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	var created model.Reservation
	if err := sqlx.GetContext(ctx, r.ext, &created, q, args...); err != nil {
		r.log.Error("CreateReservation", zap.String("q", q), zap.Any("args", args))
		return model.Reservation{}, mapErr(err)
	}
	return created, nil
}

func (r *repository) GetReservation(ctx context.Context, uid string) (model.Reservation, error) {
	q, args, err := qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{"reservation_uid": uid}).
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	var res model.Reservation
	if err := sqlx.GetContext(ctx, r.ext, &res, q, args...); err != nil {
		return model.Reservation{}, mapErr(err)
	}
	return res, nil
}

// CountActiveReservations counts pending and assigned reservations, the ones
// held against the per-user cap.
func (r *repository) CountActiveReservations(ctx context.Context, username string) (int, error) {
	q, args, err := qb.Select("count(*)").
		From(reservationsTableName).
		Where(sq.Eq{"username": username}).
		Where(sq.Eq{"status": []model.ReservationStatus{model.ReservationPending, model.ReservationAssigned}}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	if err := sqlx.GetContext(ctx, r.ext, &count, q, args...); err != nil {
		return 0, mapErr(err)
	}
	return count, nil
}

func (r *repository) HasOpenReservationForBook(ctx context.Context, username string, bookID int64) (bool, error) {
	const q = `
select exists (
    select 1 from reservations
    where username = $1 and book_id = $2
      and status in ('pending', 'assigned', 'picked_up')
)`
	var found bool
	if err := sqlx.GetContext(ctx, r.ext, &found, q, username, bookID); err != nil {
		return false, mapErr(err)
	}
	return found, nil
}

func (r *repository) HasOpenBorrowingForBook(ctx context.Context, username string, bookID int64) (bool, error) {
	const q = `
select exists (
    select 1 from borrowings b
    join book_copies c on c.id = b.copy_id
    where b.username = $1 and c.book_id = $2 and b.return_date is null
)`
	var found bool
	if err := sqlx.GetContext(ctx, r.ext, &found, q, username, bookID); err != nil {
		return false, mapErr(err)
	}
	return found, nil
}

// LockOldestPending row-locks the pending reservation with the earliest
// reservation_date for the book, so a freed copy cascades FIFO.
func (r *repository) LockOldestPending(ctx context.Context, bookID int64) (model.Reservation, error) {
	const q = `
select id, reservation_uid, username, book_id, copy_id, status, reservation_date, expiration_date
from reservations
where book_id = $1 and status = 'pending'
order by reservation_date, id
limit 1
for update skip locked`

	var res model.Reservation
	if err := sqlx.GetContext(ctx, r.ext, &res, q, bookID); err != nil {
		return model.Reservation{}, mapErr(err)
	}
	return res, nil
}

func (r *repository) UpdateReservation(ctx context.Context, res model.Reservation) error {
	q, args, err := qb.Update(reservationsTableName).
		Set("status", res.Status).
		Set("copy_id", res.CopyID).
		Set("expiration_date", res.ExpirationDate).
		Where(sq.Eq{"id": res.ID}).
		ToSql()
	if err != nil {
		return err
	}
	execRes, err := r.ext.ExecContext(ctx, q, args...)
	if err != nil {
		return mapErr(err)
	}
	return checkAffected(execRes)
}

func (r *repository) ListExpiredAssigned(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	q, args, err := qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{"status": model.ReservationAssigned}).
		Where(sq.Lt{"expiration_date": now}).
		OrderBy("expiration_date", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.Reservation
	if err := sqlx.SelectContext(ctx, r.ext, &items, q, args...); err != nil {
		return nil, mapErr(err)
	}
	return items, nil
}

func (r *repository) ListReservationsByUser(ctx context.Context, username string) ([]model.Reservation, error) {
	q, args, err := qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{"username": username}).
		OrderBy("reservation_date desc", "id desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.Reservation
	if err := sqlx.SelectContext(ctx, r.ext, &items, q, args...); err != nil {
		return nil, mapErr(err)
	}
	return items, nil
}

func (r *repository) ListPendingForBook(ctx context.Context, bookID int64) ([]model.Reservation, error) {
	q, args, err := qb.Select(reservationColumns...).
		From(reservationsTableName).
		Where(sq.Eq{"book_id": bookID, "status": model.ReservationPending}).
		OrderBy("reservation_date", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.Reservation
	if err := sqlx.SelectContext(ctx, r.ext, &items, q, args...); err != nil {
		return nil, mapErr(err)
	}
	return items, nil
}
