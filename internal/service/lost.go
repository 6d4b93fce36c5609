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

// MarkLostOverdue escalates severely overdue borrowings: the copy leaves the
// circulating pool as lost, the borrowing is force-closed, and every pending
// reservation for the book gets a notified audit entry (nothing is assigned,
// the copy is gone). thresholdDays <= 0 falls back to the configured default.
// Already-lost copies are skipped, so the job is safe to re-run.
func (s *Service) MarkLostOverdue(ctx context.Context, thresholdDays int, dryRun bool) (model.LostReport, error) {
	if thresholdDays <= 0 {
		thresholdDays = s.cfg.LostThresholdDays
	}
	now := s.now()

	overdue, err := s.repo.ListOverdueOpen(ctx, now)
	if err != nil {
		return model.LostReport{}, err
	}

	report := model.LostReport{DryRun: dryRun}
	for _, b := range overdue {
		days := model.DaysOverdue(b, now)
		if days < thresholdDays {
			continue
		}
		if dryRun {
			report.MarkedLost++
			continue
		}
		notified, err := s.markOneLost(ctx, b.ID, days, now)
		if err != nil {
			// keep going; the rest of the batch is unaffected
			s.log.Error("mark lost", zap.Int64("borrowing", b.ID), zap.Error(err))
			continue
		}
		if notified < 0 {
			continue // copy was already lost
		}
		report.MarkedLost++
		report.Notified += notified
	}
	return report, nil
}

func (s *Service) markOneLost(ctx context.Context, borrowingID int64, daysOverdue int, now time.Time) (int, error) {
	notified := -1
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		b, err := tx.GetBorrowing(ctx, borrowingID)
		if err != nil {
			return err
		}
		if b.ReturnDate != nil {
			return nil
		}
		cp, err := tx.GetCopy(ctx, b.CopyID)
		if err != nil {
			return err
		}
		if cp.Lost() {
			return nil
		}

		reason := fmt.Sprintf("not returned after %d days overdue, borrowed by %s on %s",
			daysOverdue, b.Username, b.BorrowDate.Format("2006-01-02"))
		cp.Condition = model.ConditionLost
		cp.LostDate = &now
		cp.LostReason = &reason
		if err := tx.UpdateCopy(ctx, cp); err != nil {
			return err
		}

		b.Status = model.BorrowingReturned
		b.ReturnDate = &now
		if err := tx.UpdateBorrowing(ctx, b); err != nil {
			return err
		}
		s.audit(ctx, tx, nil, model.ActionBookMarkedLost,
			fmt.Sprintf("copy %s marked lost, was %d days overdue by %s", cp.Location, daysOverdue, b.Username))

		// notify-only: the waiting reservations stay pending
		pending, err := tx.ListPendingForBook(ctx, cp.BookID)
		if err != nil {
			return err
		}
		for _, res := range pending {
			resID := res.ID
			s.audit(ctx, tx, &resID, model.ActionNotifiedBookLost,
				fmt.Sprintf("user %s notified that copy %s was marked lost", res.Username, cp.Location))
		}
		notified = len(pending)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return notified, nil
}

// RestoreLostCopy puts a lost copy back into circulation and immediately
// tries to assign it to the oldest pending reservation for the book.
func (s *Service) RestoreLostCopy(ctx context.Context, req model.RestoreCopyRequest) (model.Copy, error) {
	if req.Condition == model.ConditionLost || !req.Condition.Valid() {
		return model.Copy{}, errs.Validation("condition", "must be one of new, good, fair, poor")
	}

	var cp model.Copy
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		var err error
		cp, err = tx.GetCopyByLocation(ctx, req.Location)
		if err != nil {
			return errors.Wrap(err, "copy")
		}
		if !cp.Lost() {
			return errs.Precondition("copy at %s is not marked as lost (condition: %s)", cp.Location, cp.Condition)
		}

		oldReason := ""
		if cp.LostReason != nil {
			oldReason = *cp.LostReason
		}
		cp.Condition = req.Condition
		cp.LostDate = nil
		cp.LostReason = nil
		if err := tx.UpdateCopy(ctx, cp); err != nil {
			return err
		}
		s.audit(ctx, tx, nil, model.ActionLostBookRestored,
			fmt.Sprintf("copy %s restored to %s, previous reason: %s", cp.Location, cp.Condition, oldReason))
		return nil
	})
	if err != nil {
		return model.Copy{}, err
	}

	pending, err := s.repo.ListPendingForBook(ctx, cp.BookID)
	if err != nil {
		return model.Copy{}, err
	}
	if len(pending) > 0 {
		if _, err := s.AssignCopy(ctx, pending[0].ReservationUid); err != nil {
			s.log.Error("restore: auto-assign", zap.String("reservation", pending[0].ReservationUid), zap.Error(err))
		}
	}
	return cp, nil
}

// SendDueReminders emits due-soon events for borrowings due in
// ReminderLeadDays and overdue events for every open overdue borrowing.
func (s *Service) SendDueReminders(ctx context.Context, now time.Time, dryRun bool) (model.ReminderReport, error) {
	report := model.ReminderReport{DryRun: dryRun}

	dueSoon, err := s.repo.ListDueOn(ctx, now.AddDate(0, 0, s.cfg.ReminderLeadDays))
	if err != nil {
		return report, err
	}
	for _, b := range dueSoon {
		report.DueSoon++
		if dryRun {
			continue
		}
		b := b
		s.notify("due_soon", func() error { return s.notifier.DueSoon(ctx, b) })
	}

	overdue, err := s.repo.ListOverdueOpen(ctx, now)
	if err != nil {
		return report, err
	}
	for _, b := range overdue {
		if model.DaysOverdue(b, now) == 0 {
			continue
		}
		report.Overdue++
		if dryRun {
			continue
		}
		b := b
		s.notify("overdue", func() error { return s.notifier.Overdue(ctx, b) })
	}
	return report, nil
}
