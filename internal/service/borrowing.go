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

// ConfirmPickup converts an assigned reservation into a borrowing. The
// duplicate guard makes repeated confirmation calls safe: an open borrowing
// for the same user and copy is reused, never doubled.
func (s *Service) ConfirmPickup(ctx context.Context, reservationUid string) (model.Borrowing, error) {
	var (
		res       model.Reservation
		borrowing model.Borrowing
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		var err error
		res, err = tx.GetReservation(ctx, reservationUid)
		if err != nil {
			return err
		}
		if res.Status != model.ReservationAssigned || res.CopyID == nil {
			return errs.Precondition("cannot confirm pickup in status %s", res.Status)
		}

		res.Status = model.ReservationPickedUp
		if err := tx.UpdateReservation(ctx, res); err != nil {
			return err
		}

		existing, err := tx.OpenBorrowingForUserAndCopy(ctx, res.Username, *res.CopyID)
		switch {
		case err == nil:
			borrowing = existing
			s.audit(ctx, tx, &res.ID, model.ActionBorrowingSkipped,
				fmt.Sprintf("open borrowing %d already exists for copy %d", existing.ID, *res.CopyID))
			return nil
		case !errors.Is(err, errs.ErrNotFound):
			return err
		}

		now := s.now()
		due := now.AddDate(0, 0, s.cfg.BorrowDays)
		borrowing, err = tx.CreateBorrowing(ctx, model.Borrowing{
			Username:   res.Username,
			CopyID:     *res.CopyID,
			BorrowDate: now,
			DueDate:    &due,
		})
		if err != nil {
			return err
		}
		s.audit(ctx, tx, &res.ID, model.ActionPickedUp,
			fmt.Sprintf("borrowing %d created, due %s", borrowing.ID, due.Format("2006-01-02")))
		return nil
	})
	if err != nil {
		return model.Borrowing{}, err
	}

	s.notify("pickup_confirmed", func() error {
		return s.notifier.PickupConfirmed(ctx, res, borrowing)
	})
	return borrowing, nil
}

// Renew extends the due date by 14 days when the borrowing is still
// renewable. A refused renewal is not an error: the response carries the
// specific reason and nothing is mutated.
func (s *Service) Renew(ctx context.Context, borrowingID int64) (model.RenewResponse, error) {
	var resp model.RenewResponse
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		b, err := tx.GetBorrowing(ctx, borrowingID)
		if err != nil {
			return err
		}

		ok, reason := model.CanRenew(b, s.now())
		if !ok {
			resp = model.RenewResponse{Renewed: false, Message: reason}
			return nil
		}

		var due time.Time
		if b.DueDate != nil {
			due = b.DueDate.AddDate(0, 0, model.RenewalExtensionDays)
		} else {
			due = s.now().AddDate(0, 0, model.RenewalExtensionDays)
		}
		b.DueDate = &due
		b.RenewalCount++
		if err := tx.UpdateBorrowing(ctx, b); err != nil {
			return err
		}
		resp = model.RenewResponse{Renewed: true, Borrowing: &b}
		return nil
	})
	if err != nil {
		return model.RenewResponse{}, err
	}
	return resp, nil
}

// RequestReturn moves an active borrowing to return_pending. Re-requesting is
// a warning, not an error.
func (s *Service) RequestReturn(ctx context.Context, borrowingID int64) (model.Borrowing, error) {
	var b model.Borrowing
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		var err error
		b, err = tx.GetBorrowing(ctx, borrowingID)
		if err != nil {
			return err
		}
		switch b.Status {
		case model.BorrowingReturnPending:
			s.log.Warn("return already requested", zap.Int64("borrowing", b.ID))
			return nil
		case model.BorrowingReturned:
			return errs.Precondition("borrowing already returned")
		}

		b.Status = model.BorrowingReturnPending
		if err := tx.UpdateBorrowing(ctx, b); err != nil {
			return err
		}
		s.audit(ctx, tx, nil, model.ActionReturnRequested,
			fmt.Sprintf("return requested for borrowing %d by %s", b.ID, b.Username))
		return nil
	})
	if err != nil {
		return model.Borrowing{}, err
	}
	return b, nil
}

// ProcessReturn closes the borrowing and cascades the freed copy to the
// oldest pending reservation for the same book, all in one transaction.
func (s *Service) ProcessReturn(ctx context.Context, borrowingID int64) (model.Borrowing, error) {
	var (
		b        model.Borrowing
		cascaded *model.Reservation
		cp       model.Copy
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		var err error
		b, err = tx.GetBorrowing(ctx, borrowingID)
		if err != nil {
			return err
		}
		if b.Status == model.BorrowingReturned || b.ReturnDate != nil {
			return errs.Precondition("borrowing already returned")
		}

		now := s.now()
		b.ReturnDate = &now
		b.Status = model.BorrowingReturned
		if err := tx.UpdateBorrowing(ctx, b); err != nil {
			return err
		}
		s.audit(ctx, tx, nil, model.ActionReturned,
			fmt.Sprintf("borrowing %d returned by %s", b.ID, b.Username))

		cp, err = tx.GetCopy(ctx, b.CopyID)
		if err != nil {
			return err
		}
		if cp.Lost() {
			return nil
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
		s.audit(ctx, tx, &next.ID, model.ActionAssigned,
			fmt.Sprintf("copy %s auto-assigned after return of borrowing %d", cp.Location, b.ID))
		cascaded = &next
		return nil
	})
	if err != nil {
		return model.Borrowing{}, err
	}

	s.notify("return_confirmed", func() error {
		return s.notifier.ReturnConfirmed(ctx, b)
	})
	if cascaded != nil {
		s.notify("reservation_assigned", func() error {
			return s.notifier.ReservationAssigned(ctx, *cascaded, cp)
		})
	}
	return b, nil
}

func (s *Service) GetBorrowing(ctx context.Context, borrowingID int64) (model.Borrowing, error) {
	return s.repo.GetBorrowing(ctx, borrowingID)
}

func (s *Service) ListBorrowings(ctx context.Context, username string) ([]model.Borrowing, error) {
	return s.repo.ListBorrowingsByUser(ctx, username)
}
