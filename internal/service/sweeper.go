package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/libcirc/circulation-service/internal/errs"
	"github.com/libcirc/circulation-service/internal/model"
	"github.com/libcirc/circulation-service/internal/repository"
)

// SweepExpirations expires assigned reservations whose pickup window has
// passed and cascades each freed copy to the oldest pending reservation for
// the same book. Reservations are processed one at a time, each in its own
// transaction, so two expirations never race on the same freed copy. Safe to
// re-run: already-expired reservations are skipped.
func (s *Service) SweepExpirations(ctx context.Context, now time.Time) (model.SweepReport, error) {
	stale, err := s.repo.ListExpiredAssigned(ctx, now)
	if err != nil {
		return model.SweepReport{}, err
	}

	var report model.SweepReport
	for _, res := range stale {
		expired, reassigned, err := s.expireOne(ctx, res.ReservationUid, now)
		if err != nil {
			// one broken reservation must not stop the sweep
			s.log.Error("sweep: expire reservation",
				zap.String("reservation", res.ReservationUid), zap.Error(err))
			continue
		}
		if expired {
			report.Expired++
		}
		if reassigned != nil {
			report.Reassigned++
			s.notify("reservation_assigned", func() error {
				return s.notifier.ReservationAssigned(ctx, reassigned.res, reassigned.cp)
			})
		}
	}
	return report, nil
}

type reassignment struct {
	res model.Reservation
	cp  model.Copy
}

func (s *Service) expireOne(ctx context.Context, reservationUid string, now time.Time) (bool, *reassignment, error) {
	var (
		expired bool
		out     *reassignment
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		res, err := tx.GetReservation(ctx, reservationUid)
		if err != nil {
			return err
		}
		// re-check under the transaction: another run may have expired it
		if res.Status != model.ReservationAssigned || res.ExpirationDate == nil || !res.ExpirationDate.Before(now) {
			return nil
		}

		freedCopyID := res.CopyID
		expiredAt := *res.ExpirationDate

		res.Status = model.ReservationExpired
		res.CopyID = nil
		if err := tx.UpdateReservation(ctx, res); err != nil {
			return err
		}
		expired = true
		s.audit(ctx, tx, &res.ID, model.ActionExpired,
			fmt.Sprintf("reservation expired after %s", expiredAt.Format(time.RFC3339)))

		if freedCopyID == nil {
			return nil
		}
		cp, err := tx.GetCopy(ctx, *freedCopyID)
		if err != nil {
			return err
		}

		next, err := tx.LockOldestPending(ctx, cp.BookID)
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		exp := now.AddDate(0, 0, s.cfg.AssignmentWindowDays)
		next.CopyID = &cp.ID
		next.Status = model.ReservationAssigned
		next.ExpirationDate = &exp
		if err := tx.UpdateReservation(ctx, next); err != nil {
			return err
		}
		s.audit(ctx, tx, &next.ID, model.ActionAutoAssigned,
			fmt.Sprintf("copy %s auto-assigned after reservation %s expired", cp.Location, res.ReservationUid))
		out = &reassignment{res: next, cp: cp}
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return expired, out, nil
}
