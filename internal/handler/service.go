package handler

import (
	"context"
	"time"

	"github.com/libcirc/circulation-service/internal/model"
)

//go:generate mockgen -source=service.go -destination=mocks/mock_service.go -package=service_mocks

type ReservationService interface {
	CreateReservation(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error)
	AssignCopy(ctx context.Context, reservationUid string) (model.Reservation, error)
	CancelReservation(ctx context.Context, reservationUid string) (model.Reservation, error)
	ConfirmPickup(ctx context.Context, reservationUid string) (model.Borrowing, error)
	ListReservations(ctx context.Context, username string) ([]model.Reservation, error)
}

type BorrowingService interface {
	Renew(ctx context.Context, borrowingID int64) (model.RenewResponse, error)
	RequestReturn(ctx context.Context, borrowingID int64) (model.Borrowing, error)
	ProcessReturn(ctx context.Context, borrowingID int64) (model.Borrowing, error)
	ListBorrowings(ctx context.Context, username string) ([]model.Borrowing, error)
}

type CatalogService interface {
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	ImportBookByISBN(ctx context.Context, isbn string) (model.Book, error)
	GetBook(ctx context.Context, id int64) (model.BookWithAvailability, error)
	ListBooks(ctx context.Context, page, size int) (model.ListBooks, error)
	CreateCopy(ctx context.Context, req model.CreateCopyRequest) (model.Copy, error)
	RestoreLostCopy(ctx context.Context, req model.RestoreCopyRequest) (model.Copy, error)
}

type JobService interface {
	SweepExpirations(ctx context.Context, now time.Time) (model.SweepReport, error)
	MarkLostOverdue(ctx context.Context, thresholdDays int, dryRun bool) (model.LostReport, error)
	SendDueReminders(ctx context.Context, now time.Time, dryRun bool) (model.ReminderReport, error)
}

// CirculationService is everything the router needs from the engine.
type CirculationService interface {
	ReservationService
	BorrowingService
	CatalogService
	JobService
}
