package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/libcirc/circulation-service/internal/model"
)

func (r *repository) AppendLog(ctx context.Context, entry model.LogEntry) error {
	q, args, err := qb.Insert(logsTableName).
		Columns("reservation_id", "action", "action_date", "details").
		Values(entry.ReservationID, entry.Action, entry.ActionDate, entry.Details).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.ext.ExecContext(ctx, q, args...); err != nil {
		return mapErr(err)
	}
	return nil
}

func (r *repository) ListLogs(ctx context.Context, reservationID int64) ([]model.LogEntry, error) {
	q, args, err := qb.Select("id", "reservation_id", "action", "action_date", "details").
		From(logsTableName).
		Where(sq.Eq{"reservation_id": reservationID}).
		OrderBy("action_date", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.LogEntry
	if err := sqlx.SelectContext(ctx, r.ext, &items, q, args...); err != nil {
		return nil, mapErr(err)
	}
	return items, nil
}
