package service

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/libcirc/circulation-service/internal/errs"
	"github.com/libcirc/circulation-service/internal/model"
	"github.com/libcirc/circulation-service/internal/repository"
)

// CreateReservation enforces the per-user cap and the no-duplicate rule, then
// immediately runs the assignment engine on the new reservation.
func (s *Service) CreateReservation(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error) {
	if req.Username == "" {
		return model.Reservation{}, errs.ErrUserName
	}

	var created model.Reservation
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		if _, err := tx.GetBook(ctx, req.BookID); err != nil {
			return errors.Wrap(err, "book")
		}

		active, err := tx.CountActiveReservations(ctx, req.Username)
		if err != nil {
			return err
		}
		if active >= s.cfg.MaxActiveReservations {
			return errs.Precondition("you already have %d active reservations", active)
		}

		reserved, err := tx.HasOpenReservationForBook(ctx, req.Username, req.BookID)
		if err != nil {
			return err
		}
		if reserved {
			return errs.Precondition("book is already reserved by you")
		}
		borrowed, err := tx.HasOpenBorrowingForBook(ctx, req.Username, req.BookID)
		if err != nil {
			return err
		}
		if borrowed {
			return errs.Precondition("book is currently borrowed by you")
		}

		created, err = tx.CreateReservation(ctx, model.Reservation{
			Username:        req.Username,
			BookID:          req.BookID,
			ReservationDate: s.now(),
		})
		if err != nil {
			return err
		}
		s.audit(ctx, tx, &created.ID, model.ActionCreated,
			fmt.Sprintf("reservation created with status %s", created.Status))
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}

	return s.AssignCopy(ctx, created.ReservationUid)
}

// AssignCopy binds the first free copy of the book to a pending reservation,
// or leaves it queued when none is free. Idempotent: a non-pending
// reservation is returned unchanged.
func (s *Service) AssignCopy(ctx context.Context, reservationUid string) (model.Reservation, error) {
	res, cp, err := s.tryAssign(ctx, reservationUid)
	if errors.Is(err, errs.ErrConflict) {
		// lost the race for a copy row; one more pass over the search
		res, cp, err = s.tryAssign(ctx, reservationUid)
	}
	if err != nil {
		return model.Reservation{}, err
	}

	switch {
	case cp != nil:
		s.notify("reservation_assigned", func() error {
			return s.notifier.ReservationAssigned(ctx, res, *cp)
		})
	case res.Status == model.ReservationPending:
		s.notify("reservation_confirmed", func() error {
			return s.notifier.ReservationConfirmed(ctx, res)
		})
	}
	return res, nil
}

// tryAssign is the atomic check-then-bind: lock a free copy and the
// reservation row in one transaction.
func (s *Service) tryAssign(ctx context.Context, reservationUid string) (model.Reservation, *model.Copy, error) {
	var (
		res      model.Reservation
		assigned *model.Copy
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		var err error
		res, err = tx.GetReservation(ctx, reservationUid)
		if err != nil {
			return err
		}
		if res.Status != model.ReservationPending {
			return nil
		}

		cp, err := tx.LockFreeCopy(ctx, res.BookID)
		if errors.Is(err, errs.ErrNotFound) {
			s.log.Debug("no available copy, reservation stays queued",
				zap.String("reservation", res.ReservationUid), zap.Int64("book", res.BookID))
			return nil
		}
		if err != nil {
			return err
		}

		exp := s.now().AddDate(0, 0, s.cfg.AssignmentWindowDays)
		res.CopyID = &cp.ID
		res.Status = model.ReservationAssigned
		res.ExpirationDate = &exp
		if err := tx.UpdateReservation(ctx, res); err != nil {
			return err
		}
		s.audit(ctx, tx, &res.ID, model.ActionAssigned,
			fmt.Sprintf("copy %s assigned, expires %s", cp.Location, exp.Format("2006-01-02")))
		assigned = &cp
		return nil
	})
	if err != nil {
		return model.Reservation{}, nil, err
	}
	return res, assigned, nil
}

// CancelReservation is permitted from pending or assigned. Canceling an
// assigned reservation releases the copy; the freed copy is picked up by the
// next sweep or return cascade, not reassigned here.
func (s *Service) CancelReservation(ctx context.Context, reservationUid string) (model.Reservation, error) {
	var res model.Reservation
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		var err error
		res, err = tx.GetReservation(ctx, reservationUid)
		if err != nil {
			return err
		}
		if res.Status != model.ReservationPending && res.Status != model.ReservationAssigned {
			return errs.Precondition("cannot cancel reservation in status %s", res.Status)
		}

		res.Status = model.ReservationCanceled
		res.CopyID = nil
		res.ExpirationDate = nil
		if err := tx.UpdateReservation(ctx, res); err != nil {
			return err
		}
		s.audit(ctx, tx, &res.ID, model.ActionCanceled, "reservation canceled by user")
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

func (s *Service) GetReservation(ctx context.Context, reservationUid string) (model.Reservation, error) {
	return s.repo.GetReservation(ctx, reservationUid)
}

func (s *Service) ListReservations(ctx context.Context, username string) ([]model.Reservation, error) {
	return s.repo.ListReservationsByUser(ctx, username)
}
