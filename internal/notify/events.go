package notify

import (
	"time"

	"github.com/libcirc/circulation-service/internal/model"
)

type EventType string

const (
	EventReservationConfirmed EventType = "reservation_confirmed"
	EventReservationAssigned  EventType = "reservation_assigned"
	EventPickupConfirmed      EventType = "pickup_confirmed"
	EventReturnConfirmed      EventType = "return_confirmed"
	EventDueSoon              EventType = "due_soon"
	EventOverdue              EventType = "overdue"
)

// Event is the wire form of one notification, published to the notifications
// topic and consumed by the mail dispatcher.
type Event struct {
	Type           EventType  `json:"type"`
	Username       string     `json:"username"`
	ReservationUid string     `json:"reservationUid,omitempty"`
	BookID         int64      `json:"bookId,omitempty"`
	CopyLocation   string     `json:"copyLocation,omitempty"`
	BorrowingID    int64      `json:"borrowingId,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	OccurredAt     time.Time  `json:"occurredAt"`
}

func reservationEvent(t EventType, res model.Reservation) Event {
	return Event{
		Type:           t,
		Username:       res.Username,
		ReservationUid: res.ReservationUid,
		BookID:         res.BookID,
		ExpirationDate: res.ExpirationDate,
		OccurredAt:     time.Now().UTC(),
	}
}

func borrowingEvent(t EventType, b model.Borrowing) Event {
	return Event{
		Type:        t,
		Username:    b.Username,
		BorrowingID: b.ID,
		DueDate:     b.DueDate,
		OccurredAt:  time.Now().UTC(),
	}
}
