package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/libcirc/circulation-service/internal/model"
)

// LogNotifier is the fallback when Kafka is disabled: events only hit the
// service log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) emit(e Event) error {
	n.log.Info("notification",
		zap.String("type", string(e.Type)),
		zap.String("username", e.Username),
	)
	return nil
}

func (n *LogNotifier) ReservationConfirmed(_ context.Context, res model.Reservation) error {
	return n.emit(reservationEvent(EventReservationConfirmed, res))
}

func (n *LogNotifier) ReservationAssigned(_ context.Context, res model.Reservation, cp model.Copy) error {
	e := reservationEvent(EventReservationAssigned, res)
	e.CopyLocation = cp.Location
	return n.emit(e)
}

func (n *LogNotifier) PickupConfirmed(_ context.Context, res model.Reservation, b model.Borrowing) error {
	e := reservationEvent(EventPickupConfirmed, res)
	e.BorrowingID = b.ID
	return n.emit(e)
}

func (n *LogNotifier) ReturnConfirmed(_ context.Context, b model.Borrowing) error {
	return n.emit(borrowingEvent(EventReturnConfirmed, b))
}

func (n *LogNotifier) DueSoon(_ context.Context, b model.Borrowing) error {
	return n.emit(borrowingEvent(EventDueSoon, b))
}

func (n *LogNotifier) Overdue(_ context.Context, b model.Borrowing) error {
	return n.emit(borrowingEvent(EventOverdue, b))
}
